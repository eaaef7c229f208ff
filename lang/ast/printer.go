package ast

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kowhai-lang/kowhai/lang/token"
)

// Printer controls pretty-printing of the AST nodes, for disassembly
// listings and debugging dumps.
type Printer struct {
	// Output is the io.Writer to print to.
	Output io.Writer

	// ShowPos, if true, prefixes each printed node with its source span.
	// File must then be set.
	ShowPos bool
	File    *token.File

	// NodeFmt is the format string to use to print the nodes. The verb must
	// be either `s` or `v`, a width can be set, and the `#` and `-` flags are
	// supported (`-` only when a width is set, to pad with spaces on the
	// right instead of the left). Defaults to `%v`.
	NodeFmt string
}

// Print pretty-prints the AST node n as an indented tree.
func (p *Printer) Print(n Node) error {
	if p.ShowPos && p.File == nil {
		return errors.New("File must be set to print positions")
	}

	pp := &printer{
		w:       p.Output,
		showPos: p.ShowPos,
		nodeFmt: p.NodeFmt,
		file:    p.File,
	}
	if p.NodeFmt == "" {
		pp.nodeFmt = "%v"
	}

	Walk(pp, n)
	return pp.err
}

type printer struct {
	w       io.Writer
	showPos bool
	nodeFmt string
	file    *token.File
	depth   int
	err     error
}

func (p *printer) Visit(n Node, dir VisitDirection) Visitor {
	if dir == VisitExit || p.err != nil {
		p.depth--
		return nil
	}

	p.depth++
	p.printNode(n, p.depth-1)
	return p
}

func (p *printer) printNode(n Node, indent int) {
	if p.err != nil {
		return
	}

	format := "%s"
	args := []interface{}{strings.Repeat(". ", indent)}
	if p.showPos {
		format += "[%s:%s] "
		start, end := n.Span()
		args = append(args, p.file.Position(start), p.file.Position(end))
	}
	format += p.nodeFmt + "\n"
	args = append(args, n)

	_, p.err = fmt.Fprintf(p.w, format, args...)
}
