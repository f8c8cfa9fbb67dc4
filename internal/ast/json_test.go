package ast_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxlang/arxvm/api"
	"github.com/arxlang/arxvm/internal/ast"
)

const helloWorldJSON = `{
  "classes": [
    {
      "name": "Main",
      "methods": [
        {
          "name": "main",
          "returnType": 0,
          "body": [
            {"kind": "print", "type": 2, "newline": true,
             "expr": {"kind": "string", "value": "hi"}}
          ]
        }
      ]
    }
  ]
}`

func TestProgram_UnmarshalJSON_HelloWorld(t *testing.T) {
	var prog ast.Program
	require.NoError(t, json.Unmarshal([]byte(helloWorldJSON), &prog))

	require.Len(t, prog.Classes, 1)
	main := prog.Classes[0]
	require.Equal(t, "Main", main.Name)
	require.Len(t, main.Methods, 1)

	m := main.Methods[0]
	require.Equal(t, "main", m.Name)
	require.Len(t, m.Body, 1)

	print, ok := m.Body[0].(*ast.Print)
	require.True(t, ok)
	require.True(t, print.Newline)
	require.Equal(t, api.ValueKind(api.KindString), print.Kind)

	str, ok := print.Expr.(*ast.StringLit)
	require.True(t, ok)
	require.Equal(t, "hi", str.Value)
}

func TestProgram_UnmarshalJSON_MethodCallAndField(t *testing.T) {
	const src = `{
  "classes": [
    {"name": "Box", "fields": [{"name": "v", "type": 1}],
     "methods": [
       {"name": "set", "params": [{"name": "x", "type": 1}], "returnType": 0,
        "body": [{"kind": "assign",
                  "target": {"kind": "field", "field": "v"},
                  "valueExpr": {"kind": "local", "name": "x"}}]},
       {"name": "get", "returnType": 1,
        "body": [{"kind": "return",
                  "valueExpr": {"kind": "field", "field": "v"}}]}
     ]}
  ]
}`
	var prog ast.Program
	require.NoError(t, json.Unmarshal([]byte(src), &prog))
	require.Len(t, prog.Classes, 1)
	box := prog.Classes[0]
	require.Len(t, box.Fields, 1)
	require.Equal(t, "v", box.Fields[0].Name)

	set := box.Methods[0]
	assign, ok := set.Body[0].(*ast.Assign)
	require.True(t, ok)
	fl, ok := assign.Target.(*ast.FieldLValue)
	require.True(t, ok)
	require.Equal(t, "v", fl.Field)
	require.Nil(t, fl.Receiver)
}
