package linker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
	"github.com/arxlang/arxvm/internal/bytecode"
	"github.com/arxlang/arxvm/internal/codegen"
)

func helloProgram() *ast.Program {
	return &ast.Program{Classes: []*ast.Class{
		{
			Name: "App",
			Methods: []*ast.Method{{
				Name:       "main",
				ReturnType: api.KindVoid,
				Body: []ast.Stmt{&ast.Print{
					Expr:    &ast.StringLit{Value: "hello"},
					Kind:    api.KindString,
					Newline: true,
				}},
			}},
		},
	}}
}

func TestLinkResolvesMethodCallAndEntryPoint(t *testing.T) {
	program := &ast.Program{Classes: []*ast.Class{
		{
			Name:   "Box",
			Fields: []*ast.Field{{Name: "v", Type: api.KindInt}},
			Methods: []*ast.Method{{
				Name:       "get",
				ReturnType: api.KindInt,
				Body:       []ast.Stmt{&ast.Return{Value: &ast.FieldRef{Field: "v"}}},
			}},
		},
		{
			Name: "App",
			Methods: []*ast.Method{{
				Name:       "main",
				ReturnType: api.KindVoid,
				Locals:     []*ast.Field{{Name: "b", Type: api.KindObject}},
				Body: []ast.Stmt{
					&ast.Assign{Target: &ast.LocalLValue{Name: "b"}, Value: &ast.NewExpr{Class: "Box"}},
					&ast.Print{
						Expr:    &ast.CallExpr{Receiver: &ast.LocalRef{Name: "b"}, Method: "get"},
						Kind:    api.KindInt,
						Newline: true,
					},
				},
			}},
		},
	}}

	mod, err := codegen.Generate(program)
	require.NoError(t, err)

	require.NoError(t, Link(mod))

	app, ok := mod.Manifest.ClassByName("App")
	require.True(t, ok)
	_, main, ok := mod.Manifest.MethodByName(app, "main")
	require.True(t, ok)
	require.Equal(t, main.Offset, mod.EntryPoint)

	box, ok := mod.Manifest.ClassByName("Box")
	require.True(t, ok)
	_, get, ok := mod.Manifest.MethodByName(box, "get")
	require.True(t, ok)

	var sawResolvedCall bool
	for i, instr := range mod.Code {
		if instr.Op == api.OpOpr && instr.Operand == api.OprObjCallMethod {
			require.Equal(t, get.Offset, mod.Code[i-1].Operand)
			sawResolvedCall = true
		}
	}
	require.True(t, sawResolvedCall)
}

func TestLinkIsIdempotent(t *testing.T) {
	mod, err := codegen.Generate(helloProgram())
	require.NoError(t, err)

	require.NoError(t, Link(mod))
	firstCode := append([]bytecode.Instruction{}, mod.Code...)
	firstEntry := mod.EntryPoint

	require.NoError(t, Link(mod))
	require.Equal(t, firstCode, mod.Code)
	require.Equal(t, firstEntry, mod.EntryPoint)
}

// TestLinkIsIdempotentWithMethodCallAndStringLiteral covers the case
// TestLinkIsIdempotent's helloProgram cannot: a module whose STRINGS table
// holds an interned literal small enough to alias a resolved method offset
// (e.g. offset 0), linked twice. Before the mod.Linked flag, resolveCalls
// told "still a string id" apart from "already an offset" by whether the
// operand happened to index the STRINGS table, so a second Link on this
// program would misread the resolved call-site operand as a string id and
// fail; with the flag, the second Link is a true no-op.
func TestLinkIsIdempotentWithMethodCallAndStringLiteral(t *testing.T) {
	program := &ast.Program{Classes: []*ast.Class{
		{
			Name: "Greeter",
			Methods: []*ast.Method{{
				Name:       "greeting",
				ReturnType: api.KindString,
				Body:       []ast.Stmt{&ast.Return{Value: &ast.StringLit{Value: "hi"}}},
			}},
		},
		{
			Name: "App",
			Methods: []*ast.Method{{
				Name:       "main",
				ReturnType: api.KindVoid,
				Locals:     []*ast.Field{{Name: "g", Type: api.KindObject}},
				Body: []ast.Stmt{
					&ast.Assign{Target: &ast.LocalLValue{Name: "g"}, Value: &ast.NewExpr{Class: "Greeter"}},
					&ast.Print{
						Expr:    &ast.CallExpr{Receiver: &ast.LocalRef{Name: "g"}, Method: "greeting"},
						Kind:    api.KindString,
						Newline: true,
					},
				},
			}},
		},
	}}

	mod, err := codegen.Generate(program)
	require.NoError(t, err)

	require.NoError(t, Link(mod))
	require.True(t, mod.Linked)
	firstCode := append([]bytecode.Instruction{}, mod.Code...)
	firstEntry := mod.EntryPoint

	require.NoError(t, Link(mod))
	require.Equal(t, firstCode, mod.Code)
	require.Equal(t, firstEntry, mod.EntryPoint)
}

func TestLinkRejectsAmbiguousMethodName(t *testing.T) {
	program := &ast.Program{Classes: []*ast.Class{
		{Name: "A", Methods: []*ast.Method{{Name: "go", Body: nil}}},
		{Name: "B", Methods: []*ast.Method{{Name: "go", Body: nil}}},
		{
			Name: "Main",
			Methods: []*ast.Method{{
				Name: "main",
				Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.CallExpr{Method: "go"}}},
			}},
		},
	}}
	mod, err := codegen.Generate(program)
	require.NoError(t, err)

	err = Link(mod)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrLinkFailed)
}
