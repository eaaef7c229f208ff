package machine

import (
	"context"
	"io"
	"os"
	"sync/atomic"
)

// Thread is one logical thread of execution: a VM stack, a stack of call
// frames, and the ambient configuration (I/O, step limit, cancellation)
// that governs a single Call. Spec §5 rules out coroutines and parallelism,
// so exactly one Thread ever drives a given program, but the type still
// carries its own stack so that, say, a pcall-style recursive Call can run
// without disturbing the caller's in-flight registers.
type Thread struct {
	// Name is an optional name that describes the thread, mostly for
	// debugging.
	Name string

	// Stdout, Stderr and Stdin are the standard I/O abstractions used by the
	// standard library's print/io facilities. If nil, os.Stdout, os.Stderr
	// and os.Stdin are used, respectively.
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// MaxSteps is the maximum number of executed instructions before the
	// thread cancels itself. A value <= 0 means no limit.
	MaxSteps int

	// Globals is the table backing _ENV for the top-level chunk.
	Globals *Table

	ctx       context.Context
	ctxCancel func()
	cancelled atomic.Bool

	steps, maxSteps uint64

	stack   []Value
	frames  []*CallFrame
	openTop int // stack index one past the last value of the most recent open-ended (B=0/C=0) production

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

// NewThread returns a Thread with a fresh, empty Globals table.
func NewThread() *Thread {
	return &Thread{Globals: NewTable(0, 8)}
}

// Out returns the thread's resolved standard-output writer: Stdout if set,
// os.Stdout otherwise. Builtins (lang/stdlib's print/warn) use this rather
// than the Stdout field directly since the field may be nil before Call
// resolves it.
func (th *Thread) Out() io.Writer {
	if th.stdout != nil {
		return th.stdout
	}
	if th.Stdout != nil {
		return th.Stdout
	}
	return os.Stdout
}

// Err is Out's counterpart for standard error.
func (th *Thread) Err() io.Writer {
	if th.stderr != nil {
		return th.stderr
	}
	if th.Stderr != nil {
		return th.Stderr
	}
	return os.Stderr
}

func (th *Thread) init(ctx context.Context) {
	if th.MaxSteps <= 0 {
		th.maxSteps--
	} else {
		th.maxSteps = uint64(th.MaxSteps)
	}
	if th.Stdout != nil {
		th.stdout = th.Stdout
	} else {
		th.stdout = os.Stdout
	}
	if th.Stderr != nil {
		th.stderr = th.Stderr
	} else {
		th.stderr = os.Stderr
	}
	if th.Stdin != nil {
		th.stdin = th.Stdin
	} else {
		th.stdin = os.Stdin
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	th.ctx = ctx
	th.ctxCancel = cancel
	if th.Globals == nil {
		th.Globals = NewTable(0, 8)
	}
}

// Call invokes cl with args as the program's entry point, growing the
// thread's stack from empty. It is the moral equivalent of spec §6's
// `Lua::execute`.
func (th *Thread) Call(ctx context.Context, cl *Closure, args []Value) ([]Value, error) {
	th.init(ctx)
	defer th.ctxCancel()
	return th.CallValue(cl, args)
}

// CallValue calls any callable Value (a Closure or a NativeFn) with args,
// used both for the top-level entry point and internally by the Call/
// TailCall opcode handlers and by the standard library's pcall.
func (th *Thread) CallValue(fn Value, args []Value) ([]Value, error) {
	switch fn := fn.(type) {
	case *Closure:
		return th.callClosure(fn, args, -1)
	case *NativeFn:
		return fn.Fn(th, args)
	default:
		return nil, invalidFunctionError(fn)
	}
}
