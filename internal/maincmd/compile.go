package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/kowhai-lang/kowhai/lang/compiler"
	"github.com/kowhai-lang/kowhai/lang/parser"
	"github.com/kowhai-lang/kowhai/lang/scanner"
)

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return CompileFiles(ctx, stdio, args...)
}

// CompileFiles parses and compiles each file to a Proto, printing its
// disassembled bytecode (compiler.Dasm) to stdout.
func CompileFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	fs, chunks, perr := parser.ParseFiles(ctx, files...)
	if perr != nil {
		scanner.PrintError(stdio.Stderr, perr)
		return perr
	}

	for _, ch := range chunks {
		proto, err := compiler.CompileChunk(fs, ch)
		if err != nil {
			return printError(stdio, err)
		}
		out, err := compiler.Dasm(proto)
		if err != nil {
			return printError(stdio, err)
		}
		stdio.Stdout.Write(out)
	}
	return nil
}
