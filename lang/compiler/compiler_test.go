package compiler_test

import (
	"context"
	"testing"

	"github.com/kowhai-lang/kowhai/lang/compiler"
	"github.com/kowhai-lang/kowhai/lang/isa"
	"github.com/kowhai-lang/kowhai/lang/parser"
	"github.com/kowhai-lang/kowhai/lang/token"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *compiler.Proto {
	t.Helper()
	fset := token.NewFileSet()
	ch, err := parser.ParseChunk(context.Background(), fset, t.Name(), []byte(src))
	require.NoError(t, err)
	p, err := compiler.CompileChunk(fset, ch)
	require.NoError(t, err)
	return p
}

func opcodes(p *compiler.Proto) []isa.Opcode {
	ops := make([]isa.Opcode, len(p.Code))
	for i, insn := range p.Code {
		ops[i] = insn.Opcode()
	}
	return ops
}

// TestHelloWorld covers spec scenario 1: a bare global call compiles to a
// GetUpTable/LoadConstant/Call sequence, preceded by the vararg prologue
// every chunk carries since the main chunk is implicitly `...`.
func TestHelloWorld(t *testing.T) {
	p := compile(t, `print("hello")`)

	require.Equal(t, []interface{}{"print", "hello"}, p.Constants)
	require.Equal(t, []isa.Opcode{
		isa.VariadicArgumentsPrepare,
		isa.GetUpTable,
		isa.LoadConstant,
		isa.Call,
		isa.ZeroReturn,
	}, opcodes(p))

	call := p.Code[3]
	require.EqualValues(t, 0, call.A(), "call base register")
	require.EqualValues(t, 2, call.B(), "1 fixed arg + fn register")
	require.EqualValues(t, 1, call.C(), "0 results requested")
}

// TestArithmeticAndLocals covers spec scenario 2: small integer literals
// load via LoadInteger (not the constant pool), and `+` on two registers
// compiles to a plain Add.
func TestArithmeticAndLocals(t *testing.T) {
	p := compile(t, `local a, b = 10, 32; print(a + b)`)

	ops := opcodes(p)
	require.Contains(t, ops, isa.LoadInteger)
	require.Contains(t, ops, isa.Add)

	var loadIntCount int
	for i, op := range ops {
		if op == isa.LoadInteger {
			loadIntCount++
			insn := p.Code[i]
			require.Contains(t, []int32{10, 32}, insn.SBx())
		}
	}
	require.Equal(t, 2, loadIntCount)
}

// TestClosuresCaptureByReference covers spec scenario 3: the inner closure
// captures `c` as an upvalue from its parent's stack slot, and the outer
// frame's scope-exit emits Close so the upvalue detaches from the stack.
func TestClosuresCaptureByReference(t *testing.T) {
	p := compile(t, `
local function make()
	local c = 0
	return function()
		c = c + 1
		return c
	end
end
local f = make()
print(f())
`)

	require.Len(t, p.Protos, 1, "make")
	make := p.Protos[0]
	require.Len(t, make.Protos, 1, "make's returned closure")
	inner := make.Protos[0]

	require.Len(t, inner.Upvalues, 1)
	uv := inner.Upvalues[0]
	require.Equal(t, "c", uv.Name)
	require.True(t, uv.FromStack, "c is captured directly from make's stack")

	require.Contains(t, opcodes(inner), isa.GetUpvalue)
	require.Contains(t, opcodes(inner), isa.SetUpvalue)
	require.Contains(t, opcodes(make), isa.Closure)
}

// TestShortCircuit covers spec scenario 4: `and`/`or` compile through
// condition jump lists (Test+Jump).
func TestShortCircuit(t *testing.T) {
	p := compile(t, `print(1 and 2 or 3)`)
	ops := opcodes(p)
	require.Contains(t, ops, isa.Test)
	require.Contains(t, ops, isa.Jump)
}

// TestNumericForFloatStep covers spec scenario 5: a loop with a float step
// compiles to ForPrepare/ForLoop, both of which use the AsBx layout.
func TestNumericForFloatStep(t *testing.T) {
	p := compile(t, `local s = 0; for i = 1, 3.5, 0.5 do s = s + i end; print(s)`)
	ops := opcodes(p)
	require.Contains(t, ops, isa.ForPrepare)
	require.Contains(t, ops, isa.ForLoop)

	var prepIdx int
	for i, op := range ops {
		if op == isa.ForPrepare {
			prepIdx = i
			break
		}
	}
	require.Equal(t, isa.LayoutAsBx, isa.ForPrepare.Layout())
	require.Equal(t, isa.LayoutAsBx, isa.ForLoop.Layout())
	_ = prepIdx
}

// TestMultiReturnIntoTable covers spec scenario 6: inside a table
// constructor, only the last field expands a call's full result count; any
// earlier call is truncated to its first value.
func TestMultiReturnIntoTable(t *testing.T) {
	p := compile(t, `
local function two() return 10, 20 end
local t = { 1, two(), 99 }
local u = { 1, 99, two() }
print(#t, #u, u[4])
`)
	ops := opcodes(p)

	var setLists []isa.Instruction
	for i, op := range ops {
		if op == isa.SetList {
			setLists = append(setLists, p.Code[i])
		}
	}
	require.Len(t, setLists, 2)
	// t's constructor: every field fixed (two() mid-list truncates to one
	// value), so SetList's C is the fixed field count + 1.
	require.EqualValues(t, 4, setLists[0].C())
	// u's constructor: two() is the trailing field and expands, so SetList
	// requests an open count (C == 0).
	require.EqualValues(t, 0, setLists[1].C())
}

// TestConstantDedup covers spec §8's universal constant-pool invariant: two
// equal literals anywhere in a chunk share one constant slot.
func TestConstantDedup(t *testing.T) {
	p := compile(t, `print("same"); print("same"); local x = 123456789
	local y = 123456789`)
	seen := map[interface{}]int{}
	for _, c := range p.Constants {
		seen[c]++
	}
	for v, n := range seen {
		require.Equal(t, 1, n, "constant %v duplicated in pool", v)
	}
}

// TestIntegerLiteralBoundary covers spec §8's sBx boundary: literals within
// [-65535, 65535] use LoadInteger; outside it, LoadConstant.
func TestIntegerLiteralBoundary(t *testing.T) {
	p := compile(t, `local a = 65535
local b = 65536
local c = -65535
local d = -65536`)
	ops := opcodes(p)

	var loadInt, loadConst int
	for _, op := range ops {
		switch op {
		case isa.LoadInteger:
			loadInt++
		case isa.LoadConstant:
			loadConst++
		}
	}
	require.Equal(t, 2, loadInt, "65535 and -65535 fit sBx")
	require.Equal(t, 2, loadConst, "65536 and -65536 overflow sBx")
}

// TestAddIntegerBoundary covers spec §8's i8 boundary for the AddInteger
// fast path: a literal addend within [-127,127] uses AddInteger; a wider one
// falls back to AddConstant.
func TestAddIntegerBoundary(t *testing.T) {
	p := compile(t, `local x = 1
local a = x + 127
local b = x + 128`)
	ops := opcodes(p)
	require.Contains(t, ops, isa.AddInteger)
	require.Contains(t, ops, isa.AddConstant)
}

// TestReturnArity exercises spec §8's "Call arity" property: a call with a
// fixed result count requests exactly C-1 results.
func TestReturnArity(t *testing.T) {
	p := compile(t, `local function two() return 10, 20 end
local a, b, c = two(), two()`)
	var calls []isa.Instruction
	for i, op := range opcodes(p) {
		if op == isa.Call {
			calls = append(calls, p.Code[i])
		}
	}
	require.Len(t, calls, 2)
	// the non-trailing two() is truncated to exactly one result (C=2).
	require.EqualValues(t, 2, calls[0].C())
	// the trailing two() requests exactly the two remaining results (C=3).
	require.EqualValues(t, 3, calls[1].C())
}

// TestAssignSwap covers spec §8's round-trip property: `a, b = b, a`
// evaluates both right-hand sides into temporaries before writing either
// destination, so the values actually swap.
func TestAssignSwap(t *testing.T) {
	p := compile(t, `local a, b = 1, 2
a, b = b, a
print(a, b)`)
	// two Move instructions must appear for the swap's RHS evaluation (b
	// into a temp, a into another temp) before any local is overwritten.
	var moves int
	for _, op := range opcodes(p) {
		if op == isa.Move {
			moves++
		}
	}
	require.GreaterOrEqual(t, moves, 2)
}

// TestTailCall covers spec §8's round-trip property: `return f(...)`
// compiles to a TailCall instruction with no separate Call.
func TestTailCall(t *testing.T) {
	p := compile(t, `local function f(...) return f(...) end`)
	inner := p.Protos[0]
	require.Contains(t, opcodes(inner), isa.TailCall)
	require.NotContains(t, opcodes(inner), isa.Call)
}

// TestBreakOutsideLoop covers spec §7's BreakOutsideLoop compile error.
func TestBreakOutsideLoop(t *testing.T) {
	fset := token.NewFileSet()
	ch, err := parser.ParseChunk(context.Background(), fset, t.Name(), []byte(`break`))
	require.NoError(t, err)
	_, err = compiler.CompileChunk(fset, ch)
	require.Error(t, err)
	ce, ok := err.(*compiler.CompileError)
	require.True(t, ok)
	require.Equal(t, compiler.BreakOutsideLoop, ce.Kind)
}

// TestUnmatchedGoto covers spec §7's UnmatchedGoto compile error.
func TestUnmatchedGoto(t *testing.T) {
	fset := token.NewFileSet()
	ch, err := parser.ParseChunk(context.Background(), fset, t.Name(), []byte(`goto nowhere`))
	require.NoError(t, err)
	_, err = compiler.CompileChunk(fset, ch)
	require.Error(t, err)
	ce, ok := err.(*compiler.CompileError)
	require.True(t, ok)
	require.Equal(t, compiler.UnmatchedGoto, ce.Kind)
}

// TestGotoLabelForward exercises a forward goto resolving to a label
// declared later in the same block, with no locals in between.
func TestGotoLabelForward(t *testing.T) {
	p := compile(t, `
do
	goto done
	print("skipped")
	::done::
	print("reached")
end
`)
	require.Contains(t, opcodes(p), isa.Jump)
}

// TestDasm exercises the disassembler end to end: it must not error on a
// realistic chunk and must mention every opcode the chunk actually uses.
func TestDasm(t *testing.T) {
	p := compile(t, `local a, b = 10, 32; print(a + b)`)
	out, err := compiler.Dasm(p)
	require.NoError(t, err)
	require.Contains(t, string(out), "ADD")
	require.Contains(t, string(out), "LOADINTEGER")
}
