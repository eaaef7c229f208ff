package ast

import (
	"fmt"

	"github.com/kowhai-lang/kowhai/lang/token"
)

// Unwrap strips ParenExpr wrappers recursively until it reaches a
// non-ParenExpr.
func Unwrap(e Expr) Expr {
	if pe, ok := e.(*ParenExpr); ok {
		return Unwrap(pe.Expr)
	}
	return e
}

// IsAssignable reports whether e can appear on the left side of an
// AssignStmt: a Name, a FieldExpr or an IndexExpr.
func IsAssignable(e Expr) bool {
	switch e.(type) {
	case *Name, *FieldExpr, *IndexExpr:
		return true
	default:
		return false
	}
}

// IsValidCallStmt reports whether e is a valid ExprStmt expression. Only
// function and method calls are valid statements in Lua.
func IsValidCallStmt(e Expr) bool {
	switch Unwrap(e).(type) {
	case *CallExpr, *MethodCallExpr:
		return true
	default:
		return false
	}
}

type (
	// BadExpr represents a bad expression that failed to parse.
	BadExpr struct {
		Start token.Pos
		End   token.Pos
	}

	// NilExpr is the `nil` literal.
	NilExpr struct {
		Start token.Pos
	}

	// BoolExpr is the `true`/`false` literal.
	BoolExpr struct {
		Start token.Pos
		Value bool
	}

	// NumberExpr is an integer or float literal.
	NumberExpr struct {
		Start   token.Pos
		Raw     string // uninterpreted text, for disassembly/error messages
		IsFloat bool
		Int     int64
		Float   float64
	}

	// StringExpr is a short or long string literal. Raw is the source text
	// exactly as written (including quotes/brackets); Value is the decoded
	// byte-for-byte string content.
	StringExpr struct {
		Start token.Pos
		Raw   string
		Value string
	}

	// VarargExpr is the `...` expression, valid only inside a variadic
	// function body.
	VarargExpr struct {
		Ellipsis token.Pos
	}

	// FunctionExpr is a function literal: `function funcbody`.
	FunctionExpr struct {
		Function token.Pos
		Body     *FuncBody
	}

	// FieldExpr is a selector expression, e.g. `x.y`.
	FieldExpr struct {
		Prefix Expr
		Dot    token.Pos
		Name   *Name
	}

	// IndexExpr is an index expression, e.g. `x[y]`.
	IndexExpr struct {
		Prefix Expr
		Lbrack token.Pos
		Index  Expr
		Rbrack token.Pos
	}

	// CallExpr is a function call, e.g. `f(x, y)`, or the sugared
	// single-argument forms `f "lit"` / `f {...}` (Lparen/Rparen invalid in
	// that case).
	CallExpr struct {
		Fn     Expr
		Lparen token.Pos
		Args   []Expr
		Rparen token.Pos
	}

	// MethodCallExpr is a method call, e.g. `x:m(y)`, resolving `m` on
	// Prefix and passing Prefix as an implicit first argument.
	MethodCallExpr struct {
		Prefix Expr
		Colon  token.Pos
		Method *Name
		Lparen token.Pos
		Args   []Expr
		Rparen token.Pos
	}

	// ParenExpr truncates a multi-value expression to exactly one value, and
	// blocks `...` expansion.
	ParenExpr struct {
		Lparen token.Pos
		Expr   Expr
		Rparen token.Pos
	}

	// BinOpExpr is a binary expression, e.g. `x + y`.
	BinOpExpr struct {
		Left  Expr
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// UnOpExpr is a unary expression: `not`, `-`, `#` or `~`.
	UnOpExpr struct {
		Op    token.Token
		OpPos token.Pos
		Right Expr
	}

	// Field is one entry of a TableExpr: `[Key] = Value`, `Name = Value` (Key
	// is a *StringExpr built from Name with Key.Span() at Name's position),
	// or a bare Value for an array-style entry (Key is nil).
	Field struct {
		Key    Expr // nil for array-style entries
		Assign token.Pos
		Value  Expr
	}

	// TableExpr is a table constructor `{...}`.
	TableExpr struct {
		Lbrace token.Pos
		Fields []*Field
		Rbrace token.Pos
	}
)

func (n *BadExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad expr!", nil) }
func (n *BadExpr) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BadExpr) Walk(_ Visitor)                {}
func (n *BadExpr) expr()                         {}

func (n *NilExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "nil", nil) }
func (n *NilExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len("nil"))
}
func (n *NilExpr) Walk(_ Visitor) {}
func (n *NilExpr) expr()          {}

func (n *BoolExpr) Format(f fmt.State, verb rune) {
	lbl := "false"
	if n.Value {
		lbl = "true"
	}
	format(f, verb, n, lbl, nil)
}
func (n *BoolExpr) Span() (start, end token.Pos) {
	lbl := "false"
	if n.Value {
		lbl = "true"
	}
	return n.Start, n.Start + token.Pos(len(lbl))
}
func (n *BoolExpr) Walk(_ Visitor) {}
func (n *BoolExpr) expr()          {}

func (n *NumberExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "number "+n.Raw, nil) }
func (n *NumberExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Raw))
}
func (n *NumberExpr) Walk(_ Visitor) {}
func (n *NumberExpr) expr()          {}

func (n *StringExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "string", nil) }
func (n *StringExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Raw))
}
func (n *StringExpr) Walk(_ Visitor) {}
func (n *StringExpr) expr()          {}

func (n *VarargExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "...", nil) }
func (n *VarargExpr) Span() (start, end token.Pos) {
	return n.Ellipsis, n.Ellipsis + token.Pos(len("..."))
}
func (n *VarargExpr) Walk(_ Visitor) {}
func (n *VarargExpr) expr()          {}

func (n *FunctionExpr) Format(f fmt.State, verb rune) {
	lbl := "function"
	if n.Body.Params.Variadic {
		lbl += " ..."
	}
	format(f, verb, n, lbl, map[string]int{"params": len(n.Body.Params.Names)})
}
func (n *FunctionExpr) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.Function, end
}
func (n *FunctionExpr) Walk(v Visitor) { Walk(v, n.Body) }
func (n *FunctionExpr) expr()          {}

func (n *FieldExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "expr."+n.Name.Value, nil) }
func (n *FieldExpr) Span() (start, end token.Pos) {
	start, _ = n.Prefix.Span()
	_, end = n.Name.Span()
	return start, end
}
func (n *FieldExpr) Walk(v Visitor) {
	Walk(v, n.Prefix)
	Walk(v, n.Name)
}
func (n *FieldExpr) expr() {}

func (n *IndexExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "expr[index]", nil) }
func (n *IndexExpr) Span() (start, end token.Pos) {
	start, _ = n.Prefix.Span()
	return start, n.Rbrack + token.Pos(len("]"))
}
func (n *IndexExpr) Walk(v Visitor) {
	Walk(v, n.Prefix)
	Walk(v, n.Index)
}
func (n *IndexExpr) expr() {}

func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args)})
}
func (n *CallExpr) Span() (start, end token.Pos) {
	start, _ = n.Fn.Span()
	if n.Rparen.IsValid() {
		end = n.Rparen + token.Pos(len(")"))
	} else if len(n.Args) > 0 {
		_, end = n.Args[len(n.Args)-1].Span()
	} else {
		_, end = n.Fn.Span()
	}
	return start, end
}
func (n *CallExpr) Walk(v Visitor) {
	Walk(v, n.Fn)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *CallExpr) expr() {}

func (n *MethodCallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "method call "+n.Method.Value, map[string]int{"args": len(n.Args)})
}
func (n *MethodCallExpr) Span() (start, end token.Pos) {
	start, _ = n.Prefix.Span()
	if n.Rparen.IsValid() {
		end = n.Rparen + token.Pos(len(")"))
	} else if len(n.Args) > 0 {
		_, end = n.Args[len(n.Args)-1].Span()
	} else {
		_, end = n.Method.Span()
	}
	return start, end
}
func (n *MethodCallExpr) Walk(v Visitor) {
	Walk(v, n.Prefix)
	Walk(v, n.Method)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *MethodCallExpr) expr() {}

func (n *ParenExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "(expr)", nil) }
func (n *ParenExpr) Span() (start, end token.Pos) {
	return n.Lparen, n.Rparen + token.Pos(len(")"))
}
func (n *ParenExpr) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *ParenExpr) expr()          {}

func (n *BinOpExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binary "+n.Op.GoString(), nil)
}
func (n *BinOpExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *BinOpExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *BinOpExpr) expr() {}

func (n *UnOpExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "unary "+n.Op.GoString(), nil)
}
func (n *UnOpExpr) Span() (start, end token.Pos) {
	_, end = n.Right.Span()
	return n.OpPos, end
}
func (n *UnOpExpr) Walk(v Visitor) { Walk(v, n.Right) }
func (n *UnOpExpr) expr()          {}

func (n *TableExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "table", map[string]int{"fields": len(n.Fields)})
}
func (n *TableExpr) Span() (start, end token.Pos) {
	return n.Lbrace, n.Rbrace + token.Pos(len("}"))
}
func (n *TableExpr) Walk(v Visitor) {
	for _, fld := range n.Fields {
		if fld.Key != nil {
			Walk(v, fld.Key)
		}
		Walk(v, fld.Value)
	}
}
func (n *TableExpr) expr() {}
