package arxvm_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm"
	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
)

const helloWorldJSON = `{
  "classes": [
    {"name": "App", "methods": [
      {"name": "main", "returnType": 0, "body": [
        {"kind": "print", "type": 2, "newline": true,
         "expr": {"kind": "string", "value": "hello, world"}}
      ]}
    ]}
  ]
}`

func loadJSON(t *testing.T, src string) *ast.Program {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.json")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	prog, err := ast.LoadProgram(path)
	require.NoError(t, err)
	return prog
}

func TestRuntime_CompileAndRun_HelloWorld(t *testing.T) {
	prog := loadJSON(t, helloWorldJSON)

	rt := arxvm.NewRuntime(nil, nil)
	mod, err := rt.Compile(context.Background(), prog)
	require.NoError(t, err)

	var out bytes.Buffer
	rt2 := arxvm.NewRuntime(nil, arxvm.NewRuntimeConfig().WithStdout(&out))
	_, err = rt2.Run(context.Background(), mod)
	require.NoError(t, err)
	require.Equal(t, "hello, world\n", out.String())
}

func TestRuntime_CompileToFile_LoadModuleFile_Dump(t *testing.T) {
	prog := loadJSON(t, helloWorldJSON)

	rt := arxvm.NewRuntime(nil, nil)
	path := filepath.Join(t.TempDir(), "out.mod")
	require.NoError(t, rt.CompileToFile(context.Background(), prog, path))

	mod, err := arxvm.LoadModuleFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, len(mod.Manifest.Classes))

	dump := arxvm.Dump(mod)
	require.Contains(t, dump, "class App")
	require.Contains(t, dump, "entry_point:")
}

func TestRuntime_Compile_CodegenError(t *testing.T) {
	prog := &ast.Program{Classes: []*ast.Class{{
		Name: "Broken",
		Methods: []*ast.Method{{
			Name: "main",
			Body: []ast.Stmt{&ast.Assign{
				Target: &ast.FieldLValue{Field: "missing"},
				Value:  &ast.IntLit{Value: 1},
			}},
		}},
	}}}

	rt := arxvm.NewRuntime(nil, nil)
	_, err := rt.Compile(context.Background(), prog)
	require.Error(t, err)
}

func TestRuntime_Run_DivideByZeroTrap(t *testing.T) {
	prog := &ast.Program{Classes: []*ast.Class{{
		Name: "App",
		Methods: []*ast.Method{{
			Name: "main",
			Body: []ast.Stmt{&ast.ExprStmt{Expr: &ast.BinaryExpr{
				Op:    api.OprDiv,
				Left:  &ast.IntLit{Value: 1},
				Right: &ast.IntLit{Value: 0},
			}}},
		}},
	}}}

	rt := arxvm.NewRuntime(nil, nil)
	mod, err := rt.Compile(context.Background(), prog)
	require.NoError(t, err)

	var out bytes.Buffer
	rt2 := arxvm.NewRuntime(nil, arxvm.NewRuntimeConfig().WithStdout(&out))
	_, err = rt2.Run(context.Background(), mod)
	require.Error(t, err)
}
