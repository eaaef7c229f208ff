package compiler

import (
	"fmt"

	"github.com/kowhai-lang/kowhai/lang/token"
)

// Error kinds, spec §7's compile-time error kinds.
const (
	ConstantOverflow  = "ConstantOverflow"
	JumpTooLong       = "JumpTooLong"
	LabelRedefinition = "LabelRedefinition"
	UnmatchedGoto     = "UnmatchedGoto"
	GotoIntoScope     = "GotoIntoScope"
	BreakOutsideLoop  = "BreakOutsideLoop"
	StackOverflow     = "StackOverflow"
	ArgOutOfRange     = "ArgOutOfRange"
)

// CompileError reports a single compile-time failure.
type CompileError struct {
	Pos  token.Position
	Kind string
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// fail aborts compilation of the current chunk by panicking with a
// *CompileError; CompileChunk recovers it and returns it as an error. This
// mirrors the parser's panic/recover synchronization idiom, but a compile
// error aborts the whole chunk rather than resuming at a BadStmt: unlike a
// syntax error, there's no sensible unit smaller than the chunk to skip and
// keep compiling.
func (c *compiler) fail(pos token.Pos, kind, msg string) {
	p := token.Position{}
	if c.file != nil {
		p = c.file.Position(pos)
	}
	panic(&CompileError{Pos: p, Kind: kind, Msg: msg})
}

// check panics with kind if err is non-nil, wrapping an isa.ArgOutOfRange
// (or any other encode-time error) into the compiler's own error type.
func (c *compiler) check(pos token.Pos, kind string, err error) {
	if err != nil {
		c.fail(pos, kind, err.Error())
	}
}
