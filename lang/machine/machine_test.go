package machine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kowhai-lang/kowhai/lang/compiler"
	"github.com/kowhai-lang/kowhai/lang/machine"
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

// run compiles and executes src on a fresh Thread with just enough of the
// standard library wired in (print, writing to a buffer this function
// returns) to exercise the VM end to end.
func run(t *testing.T, src string) ([]machine.Value, string) {
	t.Helper()
	p := compile(t, src)

	th := machine.NewThread()
	var out strings.Builder
	require.NoError(t, th.Globals.Set(machine.String("print"), &machine.NativeFn{
		Name: "print",
		Fn: func(th *machine.Thread, args []machine.Value) ([]machine.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.String()
			}
			out.WriteString(strings.Join(parts, "\t"))
			out.WriteString("\n")
			return nil, nil
		},
	}))

	cl := machine.NewChunkClosure(p, th.Globals)
	results, err := th.Call(context.Background(), cl, nil)
	require.NoError(t, err)
	return results, out.String()
}

// TestHelloWorld covers spec scenario 1: a bare global call reads `print`
// via GetUpTable and invokes it with one string argument.
func TestHelloWorld(t *testing.T) {
	_, out := run(t, `print("hello")`)
	require.Equal(t, "hello\n", out)
}

// TestArithmeticAndLocals covers spec scenario 2: integer arithmetic on
// locals produces an Int result.
func TestArithmeticAndLocals(t *testing.T) {
	results, _ := run(t, `local a, b = 10, 32
return a + b`)
	require.Equal(t, []machine.Value{machine.Int(42)}, results)
}

// TestFloatPromotion exercises spec §4.4's int/float arithmetic promotion
// table: dividing two integers still yields a Float.
func TestFloatPromotion(t *testing.T) {
	results, _ := run(t, `return 7 / 2`)
	require.Equal(t, []machine.Value{machine.Float(3.5)}, results)
}

// TestClosuresCaptureByReference covers spec scenario 3: a closure's
// upvalue aliases its parent's local across repeated calls, so each call
// observes the previous call's mutation.
func TestClosuresCaptureByReference(t *testing.T) {
	results, _ := run(t, `
local function make()
	local c = 0
	return function()
		c = c + 1
		return c
	end
end
local f = make()
return f(), f(), f()
`)
	require.Equal(t, []machine.Value{machine.Int(1), machine.Int(2), machine.Int(3)}, results)
}

// TestTableConstructorAndIndex covers spec §3's Table model: array-part
// construction, dotted field access, and the `#` length operator.
func TestTableConstructorAndIndex(t *testing.T) {
	results, _ := run(t, `
local t = {10, 20, 30}
t.label = "hi"
return t[2], t.label, #t
`)
	require.Equal(t, []machine.Value{machine.Int(20), machine.String("hi"), machine.Int(3)}, results)
}

// TestMultiReturnIntoTable covers spec scenario 6: only a table
// constructor's trailing field expands a call's full result set.
func TestMultiReturnIntoTable(t *testing.T) {
	results, _ := run(t, `
local function two() return 10, 20 end
local t = {1, two(), 99}
local u = {1, 99, two()}
return #t, #u, u[4]
`)
	require.Equal(t, []machine.Value{machine.Int(3), machine.Int(4), machine.Int(20)}, results)
}

// TestNumericFor covers spec §4.3/§4.4's ForPrepare/ForLoop pair summing an
// integer range.
func TestNumericFor(t *testing.T) {
	results, _ := run(t, `
local s = 0
for i = 1, 5 do
	s = s + i
end
return s
`)
	require.Equal(t, []machine.Value{machine.Int(15)}, results)
}

// TestNumericForFloatStep exercises the float-mode path of ForPrepare/
// ForLoop (a non-integer step forces float accumulation).
func TestNumericForFloatStep(t *testing.T) {
	results, _ := run(t, `
local s = 0
for i = 1, 2, 0.5 do
	s = s + i
end
return s
`)
	require.Equal(t, []machine.Value{machine.Float(4.5)}, results)
}

// TestGenericForWithClosureIterator covers spec §4.4's generic for: a
// stateless-by-convention iterator closure is called once per step, and
// the loop ends the first time it returns nil.
func TestGenericForWithClosureIterator(t *testing.T) {
	results, _ := run(t, `
local function range(n)
	local i = 0
	return function()
		i = i + 1
		if i <= n then
			return i
		end
	end
end

local sum = 0
for v in range(5) do
	sum = sum + v
end
return sum
`)
	require.Equal(t, []machine.Value{machine.Int(15)}, results)
}

// TestTailCallRecursion covers spec §8's round-trip property for `return
// f(...)`: 1000 nested tail calls complete and return 500500. TailCall is
// implemented as an ordinary nested call (DESIGN.md's documented
// simplification), so each step adds a Go call frame.
func TestTailCallRecursion(t *testing.T) {
	results, _ := run(t, `
local function loop(n, acc)
	if n == 0 then
		return acc
	end
	return loop(n - 1, acc + n)
end
return loop(1000, 0)
`)
	require.Equal(t, []machine.Value{machine.Int(500500)}, results)
}

// TestConcat covers spec §4.4's Concat canonicalization: a whole-valued
// float renders with a trailing ".0" when concatenated with a string.
func TestConcat(t *testing.T) {
	results, _ := run(t, `return "x=" .. 2.0`)
	require.Equal(t, []machine.Value{machine.String("x=2.0")}, results)
}

// TestTypeErrorOnArithmetic covers spec §7's TypeError: arithmetic on a
// table value fails with a RuntimeError of kind TypeError rather than
// panicking.
func TestTypeErrorOnArithmetic(t *testing.T) {
	p := compile(t, `return 1 + {}`)
	th := machine.NewThread()
	cl := machine.NewChunkClosure(p, th.Globals)
	_, err := th.Call(context.Background(), cl, nil)
	require.Error(t, err)
	rerr, ok := err.(*machine.RuntimeError)
	require.True(t, ok, "expected *machine.RuntimeError, got %T", err)
	require.Equal(t, machine.TypeErrorKind, rerr.Kind)
}

// TestIndexingNonTableErrors covers spec §7's ExpectedTable error kind.
func TestIndexingNonTableErrors(t *testing.T) {
	p := compile(t, `local n = 5
return n.field`)
	th := machine.NewThread()
	cl := machine.NewChunkClosure(p, th.Globals)
	_, err := th.Call(context.Background(), cl, nil)
	require.Error(t, err)
	rerr, ok := err.(*machine.RuntimeError)
	require.True(t, ok)
	require.Equal(t, machine.ExpectedTableKind, rerr.Kind)
}

// TestCallingNonFunctionErrors covers spec §7's InvalidFunction error kind.
func TestCallingNonFunctionErrors(t *testing.T) {
	p := compile(t, `local n = 5
return n()`)
	th := machine.NewThread()
	cl := machine.NewChunkClosure(p, th.Globals)
	_, err := th.Call(context.Background(), cl, nil)
	require.Error(t, err)
	rerr, ok := err.(*machine.RuntimeError)
	require.True(t, ok)
	require.Equal(t, machine.InvalidFunctionKind, rerr.Kind)
}

// TestForZeroStepErrors covers spec §7's ForZeroStep error kind.
func TestForZeroStepErrors(t *testing.T) {
	p := compile(t, `for i = 1, 10, 0 do end`)
	th := machine.NewThread()
	cl := machine.NewChunkClosure(p, th.Globals)
	_, err := th.Call(context.Background(), cl, nil)
	require.Error(t, err)
	rerr, ok := err.(*machine.RuntimeError)
	require.True(t, ok)
	require.Equal(t, machine.ForZeroStepKind, rerr.Kind)
}

// TestMaxStepsCancelsLongRunningThread covers the ambient step-limit
// configuration on Thread: a runaway loop is stopped rather than hanging
// the host forever.
func TestMaxStepsCancelsLongRunningThread(t *testing.T) {
	p := compile(t, `local i = 0
while true do
	i = i + 1
end`)
	th := machine.NewThread()
	th.MaxSteps = 1000
	cl := machine.NewChunkClosure(p, th.Globals)
	_, err := th.Call(context.Background(), cl, nil)
	require.Error(t, err)
}
