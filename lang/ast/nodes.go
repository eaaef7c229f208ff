package ast

import (
	"fmt"

	"github.com/kowhai-lang/kowhai/lang/token"
)

// Name is an identifier: a variable reference when used as an expression, or
// a binding target when used as a local/parameter/label name.
type Name struct {
	NamePos token.Pos
	Value   string
}

func (n *Name) Format(f fmt.State, verb rune) { format(f, verb, n, "name "+n.Value, nil) }
func (n *Name) Span() (start, end token.Pos) {
	return n.NamePos, n.NamePos + token.Pos(len(n.Value))
}
func (n *Name) Walk(_ Visitor) {}
func (n *Name) expr()          {}

// ParList is a function's parameter list: a name per fixed parameter, plus a
// flag for a trailing `...`.
type ParList struct {
	Names    []*Name
	Variadic bool
	// VariadicPos is the position of the `...` token, valid only if
	// Variadic is true.
	VariadicPos token.Pos
}

// FuncBody is the `(parlist) block end` shared by function expressions and
// function/method declarations.
type FuncBody struct {
	Lparen, Rparen token.Pos
	Params         *ParList
	Body           *Block
	End            token.Pos
}

func (n *FuncBody) Format(f fmt.State, verb rune) {
	lbl := "funcbody"
	if n.Params.Variadic {
		lbl += " ..."
	}
	format(f, verb, n, lbl, map[string]int{"params": len(n.Params.Names)})
}
func (n *FuncBody) Span() (start, end token.Pos) { return n.Lparen, n.End }
func (n *FuncBody) Walk(v Visitor) {
	for _, nm := range n.Params.Names {
		Walk(v, nm)
	}
	if n.Body != nil {
		Walk(v, n.Body)
	}
}
