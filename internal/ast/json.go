package ast

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadProgram reads a Program from its JSON stand-in source format at
// path. spec.md treats the real lexer/parser as an external collaborator
// outside the core's scope; this loader is the bridge a driver needs to
// get the core end to end without reimplementing one. A "kind"-tagged JSON
// document is the closest thing to "a serialized, already type-checked
// AST" that doesn't require writing a parser.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ast: %w", err)
	}
	var prog Program
	if err := json.Unmarshal(data, &prog); err != nil {
		return nil, fmt.Errorf("ast: %w", err)
	}
	return &prog, nil
}

// jsonNode is the "kind"-tagged envelope every statement, expression and
// lvalue is decoded through. Every field of every concrete node type is
// listed once here; toStmt/toExpr/toLValue then convert it into whichever
// concrete struct "kind" names.
type jsonNode struct {
	Kind string `json:"kind"`

	// shared leaf fields
	Name        string `json:"name,omitempty"`
	Value       string `json:"value,omitempty"`
	Int         int64  `json:"int,omitempty"`
	Type        byte   `json:"type,omitempty"`
	Op          uint64 `json:"op,omitempty"`
	Method      string `json:"method,omitempty"`
	Class       string `json:"class,omitempty"`
	Field       string `json:"field,omitempty"`
	Newline     bool   `json:"newline,omitempty"`
	CharLiteral bool   `json:"charLiteral,omitempty"`
	Line        uint32 `json:"line,omitempty"`

	// nested nodes, re-decoded on demand
	Target   *jsonNode   `json:"target,omitempty"`
	Receiver *jsonNode   `json:"receiver,omitempty"`
	Cond     *jsonNode   `json:"cond,omitempty"`
	Left     *jsonNode   `json:"left,omitempty"`
	Right    *jsonNode   `json:"right,omitempty"`
	Operand  *jsonNode   `json:"operand,omitempty"`
	Expr     *jsonNode   `json:"expr,omitempty"`
	ExprVal  *jsonNode   `json:"valueExpr,omitempty"`
	Then     []*jsonNode `json:"then,omitempty"`
	Else     []*jsonNode `json:"else,omitempty"`
	Body     []*jsonNode `json:"body,omitempty"`
	Args     []*jsonNode `json:"args,omitempty"`
}

func (n *jsonNode) toStmt() (Stmt, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case "exprStmt":
		e, err := n.Expr.toExpr()
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: e, Line: n.Line}, nil
	case "assign":
		target, err := n.Target.toLValue()
		if err != nil {
			return nil, err
		}
		val, err := n.ExprVal.toExpr()
		if err != nil {
			return nil, err
		}
		return &Assign{Target: target, Value: val, Line: n.Line}, nil
	case "if":
		cond, err := n.Cond.toExpr()
		if err != nil {
			return nil, err
		}
		then, err := toStmts(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := toStmts(n.Else)
		if err != nil {
			return nil, err
		}
		return &If{Cond: cond, Then: then, Else: els, Line: n.Line}, nil
	case "while":
		cond, err := n.Cond.toExpr()
		if err != nil {
			return nil, err
		}
		body, err := toStmts(n.Body)
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Body: body, Line: n.Line}, nil
	case "return":
		val, err := n.ExprVal.toExpr()
		if err != nil {
			return nil, err
		}
		return &Return{Value: val, Line: n.Line}, nil
	case "print":
		e, err := n.Expr.toExpr()
		if err != nil {
			return nil, err
		}
		return &Print{Expr: e, Kind: n.Type, Newline: n.Newline, CharLiteral: n.CharLiteral, Line: n.Line}, nil
	default:
		return nil, fmt.Errorf("ast: unknown statement kind %q", n.Kind)
	}
}

func toStmts(nodes []*jsonNode) ([]Stmt, error) {
	if nodes == nil {
		return nil, nil
	}
	out := make([]Stmt, len(nodes))
	for i, n := range nodes {
		s, err := n.toStmt()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (n *jsonNode) toLValue() (LValue, error) {
	if n == nil {
		return nil, fmt.Errorf("ast: missing assignment target")
	}
	switch n.Kind {
	case "local":
		return &LocalLValue{Name: n.Name}, nil
	case "field":
		recv, err := n.Receiver.toExpr()
		if err != nil {
			return nil, err
		}
		return &FieldLValue{Receiver: recv, Field: n.Field}, nil
	default:
		return nil, fmt.Errorf("ast: unknown lvalue kind %q", n.Kind)
	}
}

func (n *jsonNode) toExpr() (Expr, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case "int":
		return &IntLit{Value: n.Int}, nil
	case "string":
		return &StringLit{Value: n.Value}, nil
	case "local":
		return &LocalRef{Name: n.Name}, nil
	case "this":
		return &ThisRef{}, nil
	case "field":
		recv, err := n.Receiver.toExpr()
		if err != nil {
			return nil, err
		}
		return &FieldRef{Receiver: recv, Field: n.Field}, nil
	case "binary":
		l, err := n.Left.toExpr()
		if err != nil {
			return nil, err
		}
		r, err := n.Right.toExpr()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: n.Op, Left: l, Right: r}, nil
	case "unary":
		o, err := n.Operand.toExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: n.Op, Operand: o}, nil
	case "new":
		args, err := toExprs(n.Args)
		if err != nil {
			return nil, err
		}
		return &NewExpr{Class: n.Class, Args: args}, nil
	case "call":
		recv, err := n.Receiver.toExpr()
		if err != nil {
			return nil, err
		}
		args, err := toExprs(n.Args)
		if err != nil {
			return nil, err
		}
		return &CallExpr{Receiver: recv, Method: n.Method, Args: args}, nil
	default:
		return nil, fmt.Errorf("ast: unknown expression kind %q", n.Kind)
	}
}

func toExprs(nodes []*jsonNode) ([]Expr, error) {
	if nodes == nil {
		return nil, nil
	}
	out := make([]Expr, len(nodes))
	for i, n := range nodes {
		e, err := n.toExpr()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

type jsonField struct {
	Name string `json:"name"`
	Type byte   `json:"type"`
}

type jsonMethod struct {
	Name       string      `json:"name"`
	Params     []jsonField `json:"params,omitempty"`
	Locals     []jsonField `json:"locals,omitempty"`
	ReturnType byte        `json:"returnType"`
	Body       []*jsonNode `json:"body"`
}

type jsonClass struct {
	Name    string       `json:"name"`
	Parent  string       `json:"parent,omitempty"`
	Fields  []jsonField  `json:"fields,omitempty"`
	Methods []jsonMethod `json:"methods,omitempty"`
}

type jsonProgram struct {
	Classes []jsonClass `json:"classes"`
}

func fieldsOf(fs []jsonField) []*Field {
	if fs == nil {
		return nil
	}
	out := make([]*Field, len(fs))
	for i, f := range fs {
		out[i] = &Field{Name: f.Name, Type: f.Type}
	}
	return out
}

// UnmarshalJSON decodes p from the "kind"-tagged envelope format LoadProgram reads.
func (p *Program) UnmarshalJSON(data []byte) error {
	var jp jsonProgram
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}
	classes := make([]*Class, len(jp.Classes))
	for i, jc := range jp.Classes {
		methods := make([]*Method, len(jc.Methods))
		for j, jm := range jc.Methods {
			body, err := toStmts(jm.Body)
			if err != nil {
				return err
			}
			methods[j] = &Method{
				Name:       jm.Name,
				Params:     fieldsOf(jm.Params),
				Locals:     fieldsOf(jm.Locals),
				ReturnType: jm.ReturnType,
				Body:       body,
			}
		}
		classes[i] = &Class{
			Name:    jc.Name,
			Parent:  jc.Parent,
			Fields:  fieldsOf(jc.Fields),
			Methods: methods,
		}
	}
	p.Classes = classes
	return nil
}
