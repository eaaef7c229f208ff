package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/parser"
	"github.com/kowhai-lang/kowhai/lang/scanner"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFiles(ctx, stdio, true, "", args...)
}

func ParseFiles(ctx context.Context, stdio mainer.Stdio, showPos bool, nodeFmt string, files ...string) error {
	printer := ast.Printer{
		Output:  stdio.Stdout,
		ShowPos: showPos,
		NodeFmt: nodeFmt,
	}
	fs, chunks, err := parser.ParseFiles(ctx, files...)
	for _, ch := range chunks {
		start, _ := ch.Span()
		printer.File = fs.File(start)
		if err := printer.Print(ch); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}
	if err != nil {
		scanner.PrintError(stdio.Stderr, err)
	}
	return err
}
