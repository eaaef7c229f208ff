// Package ast defines the types that represent the abstract syntax tree of a
// parsed Lua 5.4 chunk: chunks, blocks, statements and expressions.
package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kowhai-lang/kowhai/lang/token"
)

// Node represents any node in the AST.
type Node interface {
	// Every Node implements fmt.Formatter so it can print a short
	// description of itself for debugging and disassembly listings. Only
	// the 'v' and 's' verbs are supported; '#' adds child counts.
	fmt.Formatter

	// Span reports the start and end position of the node.
	Span() (start, end token.Pos)

	// Walk visits every direct child of the node with v.
	Walk(v Visitor)
}

// Expr represents an expression in the AST.
type Expr interface {
	Node
	expr()
}

// Stmt represents a statement in the AST.
type Stmt interface {
	Node

	// BlockEnding reports whether the statement may only appear as the last
	// statement of a block (return, break).
	BlockEnding() bool
}

// Chunk is the root of a parsed file: a Block plus the position of EOF, so
// even an empty file has a valid position to report errors against.
type Chunk struct {
	Name  string
	Block *Block
	EOF   token.Pos
}

func (n *Chunk) Format(f fmt.State, verb rune) { format(f, verb, n, "chunk", nil) }
func (n *Chunk) Span() (start, end token.Pos) {
	if n.Block != nil {
		return n.Block.Span()
	}
	return n.EOF, n.EOF
}
func (n *Chunk) Walk(v Visitor) {
	if n.Block != nil {
		Walk(v, n.Block)
	}
}

// Block is a sequence of statements, per the Lua grammar's `block`. The last
// element of Stmts may be a block-ending statement (return/break).
type Block struct {
	Start, End token.Pos
	Stmts      []Stmt
}

func (n *Block) Format(f fmt.State, verb rune) {
	format(f, verb, n, "block", map[string]int{"stmts": len(n.Stmts)})
}
func (n *Block) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *Block) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}

func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		switch {
		case len(runes) >= w:
			runes = runes[:w]
		case minus:
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		case !plus:
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}
