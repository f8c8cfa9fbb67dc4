package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
)

// program builds a minimal two-class AST: Counter has a field and a
// method that loops while a condition holds, and Main constructs a
// Counter and calls a method on it — enough to exercise label fix-ups,
// field access and the pre-link call shape in one pass.
func program() *ast.Program {
	counter := &ast.Class{
		Name:   "Counter",
		Fields: []*ast.Field{{Name: "n", Type: api.KindInt}},
		Methods: []*ast.Method{
			{
				Name:       "tick",
				ReturnType: api.KindInt,
				Body: []ast.Stmt{
					&ast.While{
						Cond: &ast.BinaryExpr{
							Op:    api.OprLt,
							Left:  &ast.FieldRef{Field: "n"},
							Right: &ast.IntLit{Value: 3},
						},
						Body: []ast.Stmt{
							&ast.Assign{
								Target: &ast.FieldLValue{Field: "n"},
								Value: &ast.BinaryExpr{
									Op:    api.OprAdd,
									Left:  &ast.FieldRef{Field: "n"},
									Right: &ast.IntLit{Value: 1},
								},
							},
						},
					},
					&ast.Return{Value: &ast.FieldRef{Field: "n"}},
				},
			},
		},
	}
	main := &ast.Class{
		Name: "Main",
		Methods: []*ast.Method{
			{
				Name:       "main",
				ReturnType: api.KindVoid,
				Locals:     []*ast.Field{{Name: "c", Type: api.KindObject}},
				Body: []ast.Stmt{
					&ast.Assign{
						Target: &ast.LocalLValue{Name: "c"},
						Value:  &ast.NewExpr{Class: "Counter"},
					},
					&ast.Print{
						Expr: &ast.CallExpr{
							Receiver: &ast.LocalRef{Name: "c"},
							Method:   "tick",
						},
						Kind:    api.KindInt,
						Newline: true,
					},
				},
			},
		},
	}
	return &ast.Program{Classes: []*ast.Class{counter, main}}
}

func TestGenerateResolvesForwardBranches(t *testing.T) {
	mod, err := Generate(program())
	require.NoError(t, err)

	counter, ok := mod.Manifest.ClassByName("Counter")
	require.True(t, ok)
	_, tick, ok := mod.Manifest.MethodByName(counter, "tick")
	require.True(t, ok)

	for i := tick.Offset; i < uint64(len(mod.Code)); i++ {
		require.NotEqual(t, api.ForwardPlaceholder, mod.Code[i].Operand,
			"instruction %d still carries an unresolved forward branch", i)
	}
}

func TestGenerateEmitsPreLinkMethodCall(t *testing.T) {
	mod, err := Generate(program())
	require.NoError(t, err)

	main, ok := mod.Manifest.ClassByName("Main")
	require.True(t, ok)
	_, mainMethod, ok := mod.Manifest.MethodByName(main, "main")
	require.True(t, ok)

	tickID, err := mod.Manifest.Intern("tick")
	require.NoError(t, err)

	var sawCall bool
	for i := int(mainMethod.Offset); i < len(mod.Code)-1; i++ {
		if mod.Code[i].Op == api.OpLit && mod.Code[i].Operand == uint64(tickID) &&
			mod.Code[i+1].Op == api.OpOpr && mod.Code[i+1].Operand == api.OprObjCallMethod {
			sawCall = true
		}
	}
	require.True(t, sawCall, "expected a LIT <tick string id>; OPR OBJ_CALL_METHOD pair")
}

func TestGenerateRejectsCrossClassFieldAccess(t *testing.T) {
	bad := &ast.Program{Classes: []*ast.Class{
		{Name: "A", Fields: []*ast.Field{{Name: "x", Type: api.KindInt}}},
		{
			Name: "B",
			Methods: []*ast.Method{{
				Name: "peek",
				Body: []ast.Stmt{&ast.ExprStmt{
					Expr: &ast.FieldRef{Receiver: &ast.LocalRef{Name: "other"}, Field: "x"},
				}},
			}},
		},
	}}
	_, err := Generate(bad)
	require.Error(t, err)
}

func TestGenerateComputesFieldOffsets(t *testing.T) {
	mod, err := Generate(program())
	require.NoError(t, err)

	counter, ok := mod.Manifest.ClassByName("Counter")
	require.True(t, ok)
	require.Len(t, counter.Fields, 1)
	require.Equal(t, uint64(0), counter.Fields[0].Offset)
	require.Equal(t, uint64(8), counter.InstanceSize)
}
