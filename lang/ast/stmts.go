package ast

import (
	"fmt"

	"github.com/kowhai-lang/kowhai/lang/token"
)

type (
	// LocalStmt is `local namelist ['=' explist]`, with optional Lua 5.4
	// `<const>`/`<close>` attributes parallel to Names ("" when absent).
	LocalStmt struct {
		Local   token.Pos
		Names   []*Name
		Attribs []string
		Right   []Expr
	}

	// AssignStmt is `varlist '=' explist`. Left elements are *Name,
	// *IndexExpr or *FieldExpr.
	AssignStmt struct {
		Left  []Expr
		Right []Expr
	}

	// BadStmt represents a bad statement that failed to parse.
	BadStmt struct {
		Start token.Pos
		End   token.Pos
	}

	// ExprStmt is a function/method call used as a statement — the only
	// expression form the Lua grammar allows standalone.
	ExprStmt struct {
		Expr Expr // *CallExpr or *MethodCallExpr
	}

	// DoStmt is `do block end`.
	DoStmt struct {
		Do   token.Pos
		Body *Block
		End  token.Pos
	}

	// WhileStmt is `while cond do block end`.
	WhileStmt struct {
		While token.Pos
		Cond  Expr
		Body  *Block
		End   token.Pos
	}

	// RepeatStmt is `repeat block until cond` — Cond is in scope of Body's
	// locals per the Lua grammar, unlike every other loop form.
	RepeatStmt struct {
		Repeat token.Pos
		Body   *Block
		Cond   Expr
	}

	// IfClause is one `if`/`elseif` arm of an IfStmt.
	IfClause struct {
		Cond Expr
		Body *Block
	}

	// IfStmt is `if cond then block {elseif cond then block} [else block] end`.
	IfStmt struct {
		If      token.Pos
		Clauses []IfClause
		Else    *Block // nil if there is no else branch
		End     token.Pos
	}

	// NumericForStmt is `for Name '=' Start ',' Stop [',' Step] do block end`.
	// Step is nil when not given, meaning a step of 1.
	NumericForStmt struct {
		For               token.Pos
		Name              *Name
		Start, Stop, Step Expr
		Body              *Block
		End               token.Pos
	}

	// GenericForStmt is `for namelist in explist do block end`.
	GenericForStmt struct {
		For   token.Pos
		Names []*Name
		Exprs []Expr
		Body  *Block
		End   token.Pos
	}

	// FuncName is the dotted path plus optional method name of a
	// `function t.a.b:m ... end` declaration.
	FuncName struct {
		Base   *Name
		Fields []*Name // t.a.b -> [a, b]
		Method *Name   // non-nil for `:m` method definitions
	}

	// FunctionStmt is `function funcname funcbody`.
	FunctionStmt struct {
		Function token.Pos
		Name     *FuncName
		Body     *FuncBody
	}

	// LocalFunctionStmt is `local function Name funcbody`.
	LocalFunctionStmt struct {
		Local token.Pos
		Name  *Name
		Body  *FuncBody
	}

	// ReturnStmt is `return [explist] [';']`.
	ReturnStmt struct {
		Return token.Pos
		Exprs  []Expr
		End    token.Pos
	}

	// BreakStmt is `break`.
	BreakStmt struct {
		Break token.Pos
	}

	// GotoStmt is `goto Name`.
	GotoStmt struct {
		Goto token.Pos
		Name *Name
	}

	// LabelStmt is `::Name::`.
	LabelStmt struct {
		Start token.Pos
		Name  *Name
		End   token.Pos
	}
)

func (n *LocalStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "local", nil) }
func (n *LocalStmt) Span() (start, end token.Pos) {
	end = n.Local + token.Pos(len("local"))
	if len(n.Right) > 0 {
		_, end = n.Right[len(n.Right)-1].Span()
	} else if len(n.Names) > 0 {
		_, end = n.Names[len(n.Names)-1].Span()
	}
	return n.Local, end
}
func (n *LocalStmt) Walk(v Visitor) {
	for _, nm := range n.Names {
		Walk(v, nm)
	}
	for _, e := range n.Right {
		Walk(v, e)
	}
}
func (n *LocalStmt) BlockEnding() bool { return false }

func (n *AssignStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "assign", map[string]int{"left": len(n.Left), "right": len(n.Right)})
}
func (n *AssignStmt) Span() (start, end token.Pos) {
	start, _ = n.Left[0].Span()
	_, end = n.Right[len(n.Right)-1].Span()
	return start, end
}
func (n *AssignStmt) Walk(v Visitor) {
	for _, e := range n.Left {
		Walk(v, e)
	}
	for _, e := range n.Right {
		Walk(v, e)
	}
}
func (n *AssignStmt) BlockEnding() bool { return false }

func (n *BadStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad stmt!", nil) }
func (n *BadStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BadStmt) Walk(_ Visitor)                {}
func (n *BadStmt) BlockEnding() bool             { return false }

func (n *ExprStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "expr stmt", nil) }
func (n *ExprStmt) Span() (start, end token.Pos)  { return n.Expr.Span() }
func (n *ExprStmt) Walk(v Visitor)                { Walk(v, n.Expr) }
func (n *ExprStmt) BlockEnding() bool             { return false }

func (n *DoStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "do", nil) }
func (n *DoStmt) Span() (start, end token.Pos)  { return n.Do, n.End }
func (n *DoStmt) Walk(v Visitor)                { Walk(v, n.Body) }
func (n *DoStmt) BlockEnding() bool             { return false }

func (n *WhileStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "while", nil) }
func (n *WhileStmt) Span() (start, end token.Pos)  { return n.While, n.End }
func (n *WhileStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Body)
}
func (n *WhileStmt) BlockEnding() bool { return false }

func (n *RepeatStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "repeat", nil) }
func (n *RepeatStmt) Span() (start, end token.Pos) {
	_, end = n.Cond.Span()
	return n.Repeat, end
}
func (n *RepeatStmt) Walk(v Visitor) {
	Walk(v, n.Body)
	Walk(v, n.Cond)
}
func (n *RepeatStmt) BlockEnding() bool { return false }

func (n *IfStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "if", map[string]int{"clauses": len(n.Clauses)})
}
func (n *IfStmt) Span() (start, end token.Pos) { return n.If, n.End }
func (n *IfStmt) Walk(v Visitor) {
	for _, c := range n.Clauses {
		Walk(v, c.Cond)
		Walk(v, c.Body)
	}
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (n *IfStmt) BlockEnding() bool { return false }

func (n *NumericForStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "numeric for", nil) }
func (n *NumericForStmt) Span() (start, end token.Pos)  { return n.For, n.End }
func (n *NumericForStmt) Walk(v Visitor) {
	Walk(v, n.Name)
	Walk(v, n.Start)
	Walk(v, n.Stop)
	if n.Step != nil {
		Walk(v, n.Step)
	}
	Walk(v, n.Body)
}
func (n *NumericForStmt) BlockEnding() bool { return false }

func (n *GenericForStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "generic for", nil) }
func (n *GenericForStmt) Span() (start, end token.Pos)  { return n.For, n.End }
func (n *GenericForStmt) Walk(v Visitor) {
	for _, nm := range n.Names {
		Walk(v, nm)
	}
	for _, e := range n.Exprs {
		Walk(v, e)
	}
	Walk(v, n.Body)
}
func (n *GenericForStmt) BlockEnding() bool { return false }

func (n *FunctionStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "function", nil) }
func (n *FunctionStmt) Span() (start, end token.Pos)  { return n.Function, n.Body.End }
func (n *FunctionStmt) Walk(v Visitor) {
	Walk(v, n.Name.Base)
	for _, fld := range n.Name.Fields {
		Walk(v, fld)
	}
	if n.Name.Method != nil {
		Walk(v, n.Name.Method)
	}
	Walk(v, n.Body)
}
func (n *FunctionStmt) BlockEnding() bool { return false }

func (n *LocalFunctionStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "local function", nil)
}
func (n *LocalFunctionStmt) Span() (start, end token.Pos) { return n.Local, n.Body.End }
func (n *LocalFunctionStmt) Walk(v Visitor) {
	Walk(v, n.Name)
	Walk(v, n.Body)
}
func (n *LocalFunctionStmt) BlockEnding() bool { return false }

func (n *ReturnStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "return", map[string]int{"exprs": len(n.Exprs)})
}
func (n *ReturnStmt) Span() (start, end token.Pos) { return n.Return, n.End }
func (n *ReturnStmt) Walk(v Visitor) {
	for _, e := range n.Exprs {
		Walk(v, e)
	}
}
func (n *ReturnStmt) BlockEnding() bool { return true }

func (n *BreakStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "break", nil) }
func (n *BreakStmt) Span() (start, end token.Pos) {
	return n.Break, n.Break + token.Pos(len("break"))
}
func (n *BreakStmt) Walk(_ Visitor)    {}
func (n *BreakStmt) BlockEnding() bool { return true }

func (n *GotoStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "goto "+n.Name.Value, nil) }
func (n *GotoStmt) Span() (start, end token.Pos) {
	_, end = n.Name.Span()
	return n.Goto, end
}
func (n *GotoStmt) Walk(v Visitor)    { Walk(v, n.Name) }
func (n *GotoStmt) BlockEnding() bool { return false }

func (n *LabelStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "label "+n.Name.Value, nil) }
func (n *LabelStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *LabelStmt) Walk(v Visitor)                { Walk(v, n.Name) }
func (n *LabelStmt) BlockEnding() bool             { return false }
