package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/kowhai-lang/kowhai/lang/compiler"
	"github.com/kowhai-lang/kowhai/lang/machine"
	"github.com/kowhai-lang/kowhai/lang/parser"
	"github.com/kowhai-lang/kowhai/lang/scanner"
	"github.com/kowhai-lang/kowhai/lang/stdlib"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFiles(ctx, stdio, args...)
}

// RunFiles parses, compiles and executes each file in turn on a fresh
// Thread, wiring stdio through to the stdlib's print/warn and to the
// Thread's own ambient I/O configuration.
func RunFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
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

		th := machine.NewThread()
		th.Stdout = stdio.Stdout
		th.Stderr = stdio.Stderr
		if err := stdlib.Install(th); err != nil {
			return printError(stdio, err)
		}

		cl := machine.NewChunkClosure(proto, th.Globals)
		if _, err := th.Call(ctx, cl, nil); err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}
