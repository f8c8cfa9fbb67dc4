package codegen

import (
	"fmt"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
	"github.com/arxlang/arxvm/internal/bytecode"
)

func (g *generator) genStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		g.markDebug(s.Line)
		return g.genExprDiscard(s.Expr)
	case *ast.Assign:
		g.markDebug(s.Line)
		return g.genAssign(s)
	case *ast.If:
		g.markDebug(s.Line)
		return g.genIf(s)
	case *ast.While:
		g.markDebug(s.Line)
		return g.genWhile(s)
	case *ast.Return:
		g.markDebug(s.Line)
		return g.genReturn(s)
	case *ast.Print:
		g.markDebug(s.Line)
		return g.genPrint(s)
	default:
		return fmt.Errorf("codegen: unknown statement type %T", stmt)
	}
}

// genExprDiscard evaluates expr for side effects. Function calls leave a
// value on the stack that nothing consumes as a bare statement; spec §4.1's
// operator table gives every operator a fixed stack effect, so the VM has no
// "pop if present" instruction — the generator instead never emits one for
// a void-returning call, and for a function call used as a statement it
// leaves the value on the operand stack, where it stays until the enclosing
// frame's RET truncates the stack back to the frame pointer, matching how a
// PL/0-family compiler leaves discarded expression results in place.
func (g *generator) genExprDiscard(e ast.Expr) error {
	_, err := g.genExpr(e)
	return err
}

func (g *generator) genAssign(s *ast.Assign) error {
	if _, err := g.genExpr(s.Value); err != nil {
		return err
	}
	switch t := s.Target.(type) {
	case *ast.LocalLValue:
		slot, ok := g.locals[t.Name]
		if !ok {
			return fmt.Errorf("codegen: unknown local %q", t.Name)
		}
		g.emit(api.OpSto, bytecode.PackDepthSlot(0, slot))
		return nil
	case *ast.FieldLValue:
		_, offset, _, err := g.lookupField(t.Receiver, t.Field)
		if err != nil {
			return err
		}
		if err := g.genReceiver(t.Receiver); err != nil {
			return err
		}
		g.emit(api.OpLit, offset)
		g.emit(api.OpOpr, api.OprObjSetField)
		return nil
	default:
		return fmt.Errorf("codegen: unknown lvalue type %T", s.Target)
	}
}

func (g *generator) genIf(s *ast.If) error {
	if _, err := g.genExpr(s.Cond); err != nil {
		return err
	}
	elseLabel := g.newLabel()
	g.emitForwardBranch(api.OpJpc, elseLabel)
	for _, st := range s.Then {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	if len(s.Else) == 0 {
		g.resolveLabel(elseLabel)
		return nil
	}
	endLabel := g.newLabel()
	g.emitForwardBranch(api.OpJmp, endLabel)
	g.resolveLabel(elseLabel)
	for _, st := range s.Else {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	g.resolveLabel(endLabel)
	return nil
}

func (g *generator) genWhile(s *ast.While) error {
	top := uint64(len(g.code))
	if _, err := g.genExpr(s.Cond); err != nil {
		return err
	}
	endLabel := g.newLabel()
	g.emitForwardBranch(api.OpJpc, endLabel)
	for _, st := range s.Body {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	g.emit(api.OpJmp, top)
	g.resolveLabel(endLabel)
	return nil
}

func (g *generator) genReturn(s *ast.Return) error {
	if s.Value != nil {
		if _, err := g.genExpr(s.Value); err != nil {
			return err
		}
	}
	g.emit(api.OpRet, 0)
	return nil
}

func (g *generator) genPrint(s *ast.Print) error {
	if _, err := g.genExpr(s.Expr); err != nil {
		return err
	}
	switch {
	case s.Kind == api.KindInt:
		g.emit(api.OpOpr, api.OprOutInt)
	case s.Kind == api.KindString && s.CharLiteral:
		g.emit(api.OpOpr, api.OprOutChar)
	case s.Kind == api.KindString:
		g.emit(api.OpOpr, api.OprOutString)
	default:
		return fmt.Errorf("codegen: print of unsupported kind %v", s.Kind)
	}
	if s.Newline {
		g.emit(api.OpOpr, api.OprOutLn)
	}
	return nil
}
