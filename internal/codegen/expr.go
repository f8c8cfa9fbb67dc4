package codegen

import (
	"fmt"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
	"github.com/arxlang/arxvm/internal/bytecode"
)

// genExpr emits code that leaves exactly one value on the operand stack and
// returns its declared kind, best-effort — callers that only need the
// side effect (genExprDiscard) ignore it.
func (g *generator) genExpr(expr ast.Expr) (api.ValueKind, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		g.emit(api.OpLit, uint64(e.Value))
		return api.KindInt, nil

	case *ast.StringLit:
		id, err := g.manifest.Intern(e.Value)
		if err != nil {
			return 0, err
		}
		g.emit(api.OpLit, uint64(id))
		return api.KindString, nil

	case *ast.LocalRef:
		slot, ok := g.locals[e.Name]
		if !ok {
			return 0, fmt.Errorf("codegen: unknown local %q", e.Name)
		}
		g.emit(api.OpLod, bytecode.PackDepthSlot(0, slot))
		return api.KindVoid, nil

	case *ast.ThisRef:
		g.emit(api.OpLod, bytecode.PackDepthSlot(0, 0))
		return api.KindObject, nil

	case *ast.FieldRef:
		_, offset, kind, err := g.lookupField(e.Receiver, e.Field)
		if err != nil {
			return 0, err
		}
		if err := g.genReceiver(e.Receiver); err != nil {
			return 0, err
		}
		g.emit(api.OpLit, offset)
		g.emit(api.OpOpr, api.OprObjGetField)
		return kind, nil

	case *ast.BinaryExpr:
		if _, err := g.genExpr(e.Left); err != nil {
			return 0, err
		}
		if _, err := g.genExpr(e.Right); err != nil {
			return 0, err
		}
		g.emit(api.OpOpr, e.Op)
		return binaryResultKind(e.Op), nil

	case *ast.UnaryExpr:
		if _, err := g.genExpr(e.Operand); err != nil {
			return 0, err
		}
		g.emit(api.OpOpr, e.Op)
		return api.KindInt, nil

	case *ast.NewExpr:
		class, ok := g.manifest.ClassByName(e.Class)
		if !ok {
			return 0, fmt.Errorf("codegen: unknown class %q in new expression", e.Class)
		}
		for _, a := range e.Args {
			if _, err := g.genExpr(a); err != nil {
				return 0, err
			}
		}
		g.emit(api.OpLit, class.ID)
		g.emit(api.OpOpr, api.OprObjNew)
		return api.KindObject, nil

	case *ast.CallExpr:
		return g.genCall(e)

	default:
		return 0, fmt.Errorf("codegen: unknown expression type %T", expr)
	}
}

// genCall emits `args…, receiver, LIT string_id_of_name, OPR
// OBJ_CALL_METHOD` — the pre-link shape spec §4.2 requires; the method
// name is left as a string-table ID for the linker to resolve to an offset.
func (g *generator) genCall(e *ast.CallExpr) (api.ValueKind, error) {
	for _, a := range e.Args {
		if _, err := g.genExpr(a); err != nil {
			return 0, err
		}
	}
	if e.Receiver == nil {
		g.emit(api.OpLod, bytecode.PackDepthSlot(0, 0))
	} else if _, err := g.genExpr(e.Receiver); err != nil {
		return 0, err
	}
	id, err := g.manifest.Intern(e.Method)
	if err != nil {
		return 0, err
	}
	g.emit(api.OpLit, uint64(id))
	g.emit(api.OpOpr, api.OprObjCallMethod)

	if e.Receiver == nil {
		if _, m, ok := g.manifest.MethodByName(g.currentClass, e.Method); ok {
			return m.ReturnType, nil
		}
	}
	return api.KindVoid, nil
}

// genReceiver emits the receiver half of a field access. Field access is
// only ever permitted against the implicit `this` — spec §4.2's
// encapsulation rule rejects `receiver.field` from outside the owning
// class's own methods, and this language has no other way to name a field
// owner, so any explicit, non-`this` receiver is rejected up front in
// lookupField.
func (g *generator) genReceiver(receiver ast.Expr) error {
	g.emit(api.OpLod, bytecode.PackDepthSlot(0, 0))
	return nil
}

// lookupField resolves receiver.field against the current method's own
// class. Only fields declared directly on the current class are visible —
// this language does not merge inherited fields into a subclass's layout —
// and only an implicit or explicit `this` receiver is permitted, per spec
// §4.2's encapsulation rule.
func (g *generator) lookupField(receiver ast.Expr, name string) (*string, uint64, api.ValueKind, error) {
	if receiver != nil {
		if _, ok := receiver.(*ast.ThisRef); !ok {
			return nil, 0, 0, fmt.Errorf("codegen: field %q is not accessible outside class %s's own methods", name, g.currentClass.Name)
		}
	}
	for i := range g.currentClass.Fields {
		f := &g.currentClass.Fields[i]
		if f.Name == name {
			return &f.Name, f.Offset, f.Type, nil
		}
	}
	return nil, 0, 0, fmt.Errorf("codegen: class %s has no field %q", g.currentClass.Name, name)
}

func binaryResultKind(op api.OperatorCode) api.ValueKind {
	switch op {
	case api.OprConcat:
		return api.KindString
	default:
		return api.KindInt
	}
}
