// Package machine implements spec §4.4, the execution engine: the runtime
// Value representation and the fetch-decode-execute loop that drives a
// compiled Proto's bytecode. The opcode dispatch shape (a counted loop over
// a switch on the fetched instruction) is kept from the teacher's Starlark
// adaptation of this package, but the operand semantics are wholly Lua's
// register-machine model instead of Starlark's stack machine — see
// DESIGN.md for what survived the rewrite and what didn't.
package machine

import (
	"fmt"

	"github.com/kowhai-lang/kowhai/lang/compiler"
	"github.com/kowhai-lang/kowhai/lang/isa"
)

// NewClosure wraps proto in a fresh, uninitialized Closure: the upvalue
// slots that spec §3 says are wired by the Closure instruction are left
// empty, except upvalue 0 of a top-level chunk proto, which every chunk
// expects to be _ENV — callers compiling and running a chunk should use
// NewChunkClosure instead.
func NewClosure(proto *compiler.Proto, upvalues []*Upvalue) *Closure {
	return &Closure{Proto: proto, Upvalues: upvalues}
}

// NewChunkClosure wraps a top-level chunk Proto (as produced by
// compiler.CompileChunk) into a runnable Closure whose upvalue 0 is _ENV,
// bound to env (spec §6: "_ENV is always upvalue 0 of the top-level chunk").
func NewChunkClosure(proto *compiler.Proto, env *Table) *Closure {
	return &Closure{Proto: proto, Upvalues: []*Upvalue{{value: env}}}
}

// callClosure pushes a new frame for cl, runs it to completion, and pops it,
// truncating the thread's stack back to where the frame started.
func (th *Thread) callClosure(cl *Closure, args []Value, requestedReturns int) ([]Value, error) {
	proto := cl.Proto
	base := len(th.stack)
	numParams := proto.NumParams

	for i := 0; i < numParams; i++ {
		if i < len(args) {
			th.stack = append(th.stack, args[i])
		} else {
			th.stack = append(th.stack, Nil)
		}
	}
	var variadicArgs []Value
	if proto.IsVariadic && len(args) > numParams {
		variadicArgs = append([]Value(nil), args[numParams:]...)
	}
	for len(th.stack) < base+proto.MaxStack {
		th.stack = append(th.stack, Nil)
	}

	fr := &CallFrame{closure: cl, base: base, requestedReturns: requestedReturns, variadicArgs: variadicArgs}
	th.frames = append(th.frames, fr)

	results, err := th.run(fr)

	fr.closeFrom(base)
	th.frames = th.frames[:len(th.frames)-1]
	th.stack = th.stack[:base]
	return results, err
}

// reg/setReg address a frame's registers relative to its base.
func (th *Thread) reg(fr *CallFrame, i uint8) Value     { return th.stack[fr.base+int(i)] }
func (th *Thread) setReg(fr *CallFrame, i uint8, v Value) { th.stack[fr.base+int(i)] = v }

func constantValue(c interface{}) Value {
	switch c := c.(type) {
	case int64:
		return Int(c)
	case float64:
		return Float(c)
	case string:
		return String(c)
	}
	panic(fmt.Sprintf("machine: unsupported constant type %T", c))
}

func (fr *CallFrame) constant(idx uint8) Value {
	return constantValue(fr.closure.Proto.Constants[idx])
}

func (th *Thread) runtimeErr(fr *CallFrame, err error) error {
	if rerr, ok := err.(*RuntimeError); ok {
		if rerr.Proto == "" {
			rerr.Proto = fr.closure.Proto.Name
			rerr.PC = fr.pc
		}
		return rerr
	}
	return err
}

// run drives fr's instruction stream to a Return/ZeroReturn/OneReturn (or a
// TailCall, which ends the frame early) and returns its produced values.
func (th *Thread) run(fr *CallFrame) ([]Value, error) {
	code := fr.closure.Proto.Code

	for {
		th.steps++
		if th.steps >= th.maxSteps || th.cancelled.Load() {
			return nil, &RuntimeError{Kind: StackUnderflowKind, Msg: "thread cancelled"}
		}

		insn := code[fr.pc]
		fr.pc++
		op := insn.Opcode()

		switch op {
		case isa.Move:
			th.setReg(fr, insn.A(), th.reg(fr, insn.B()))

		case isa.LoadInteger:
			th.setReg(fr, insn.A(), Int(insn.SBx()))
		case isa.LoadFloat:
			th.setReg(fr, insn.A(), Float(insn.SBx()))
		case isa.LoadConstant:
			th.setReg(fr, insn.A(), fr.constant(uint8(insn.Bx())))
		case isa.LoadFalse:
			th.setReg(fr, insn.A(), Bool(false))
		case isa.LoadFalseSkip:
			th.setReg(fr, insn.A(), Bool(false))
			fr.pc++
		case isa.LoadTrue:
			th.setReg(fr, insn.A(), Bool(true))
		case isa.LoadNil:
			a, n := insn.A(), insn.B()
			for i := uint8(0); i <= n; i++ {
				th.setReg(fr, a+i, Nil)
			}

		case isa.GetUpvalue:
			th.setReg(fr, insn.A(), fr.closure.Upvalues[insn.Bx()].Get())
		case isa.SetUpvalue:
			fr.closure.Upvalues[insn.Bx()].Set(th.reg(fr, insn.A()))
		case isa.GetUpTable:
			env, err := asTable(fr.closure.Upvalues[insn.B()].Get())
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			v, err := env.Get(fr.constant(insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.SetUpTable:
			env, err := asTable(fr.closure.Upvalues[insn.A()].Get())
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if err := env.Set(fr.constant(insn.B()), th.reg(fr, insn.C())); err != nil {
				return nil, th.runtimeErr(fr, err)
			}

		case isa.GetTable:
			t, err := asTable(th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			v, err := t.Get(th.reg(fr, insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.GetIndex:
			t, err := asTable(th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			v, err := t.Get(Int(insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.GetField:
			t, err := asTable(th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			v, err := t.Get(fr.constant(insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.SetTable:
			t, err := asTable(th.reg(fr, insn.A()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if err := t.Set(th.reg(fr, insn.B()), th.reg(fr, insn.C())); err != nil {
				return nil, th.runtimeErr(fr, err)
			}
		case isa.SetIndex:
			t, err := asTable(th.reg(fr, insn.A()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if err := t.Set(Int(insn.B()), th.reg(fr, insn.C())); err != nil {
				return nil, th.runtimeErr(fr, err)
			}
		case isa.SetField:
			t, err := asTable(th.reg(fr, insn.A()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if err := t.Set(fr.constant(insn.B()), th.reg(fr, insn.C())); err != nil {
				return nil, th.runtimeErr(fr, err)
			}
		case isa.NewTable:
			th.setReg(fr, insn.A(), NewTable(int(insn.B()), int(insn.C())))
		case isa.TableSelf:
			obj := th.reg(fr, insn.B())
			t, err := asTable(obj)
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			method, err := t.Get(fr.constant(insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), method)
			th.setReg(fr, insn.A()+1, obj)
		case isa.SetList:
			t, err := asTable(th.reg(fr, insn.A()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			start := fr.base + int(insn.B())
			end := start + int(insn.C()) - 1
			if insn.C() == 0 {
				end = th.openTop
			}
			for _, v := range th.stack[start:end] {
				if err := t.Set(Int(t.Len()+1), v); err != nil {
					return nil, th.runtimeErr(fr, err)
				}
			}

		case isa.Add, isa.Sub, isa.Mul, isa.Mod, isa.Pow, isa.Div, isa.IDiv:
			v, err := arith(arithName(op), th.reg(fr, insn.B()), th.reg(fr, insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.AddInteger:
			v, err := arith("add", th.reg(fr, insn.B()), Int(insn.SC()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.AddConstant:
			v, err := arith("add", th.reg(fr, insn.B()), fr.constant(insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.MulConstant:
			v, err := arith("mul", th.reg(fr, insn.B()), fr.constant(insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)

		case isa.BitAnd, isa.BitOr, isa.BitXor, isa.ShiftLeft, isa.ShiftRight:
			v, err := bitwise(bitwiseName(op), th.reg(fr, insn.B()), th.reg(fr, insn.C()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)

		case isa.Neg:
			v, err := negate(th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.BitNot:
			i, err := toInt(th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), Int(^i))
		case isa.Not:
			th.setReg(fr, insn.A(), Bool(!Truthy(th.reg(fr, insn.B()))))
		case isa.Len:
			v, err := length(th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)
		case isa.Concat:
			start := fr.base + int(insn.A())
			n := int(insn.B())
			v, err := concat(th.stack[start : start+n])
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			th.setReg(fr, insn.A(), v)

		case isa.Jump:
			fr.pc += int(insn.SJ())
		case isa.Test:
			if Truthy(th.reg(fr, insn.A())) == insn.K() {
				fr.pc++
			}
		case isa.Equal:
			if valuesEqual(th.reg(fr, insn.A()), th.reg(fr, insn.B())) == insn.K() {
				fr.pc++
			}
		case isa.LessThan:
			ok, err := lessThan(th.reg(fr, insn.A()), th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if ok == insn.K() {
				fr.pc++
			}
		case isa.LessEqual:
			ok, err := lessEqual(th.reg(fr, insn.A()), th.reg(fr, insn.B()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if ok == insn.K() {
				fr.pc++
			}
		case isa.EqualConstant:
			if valuesEqual(th.reg(fr, insn.A()), fr.constant(insn.B())) == insn.K() {
				fr.pc++
			}
		case isa.EqualInteger:
			if valuesEqual(th.reg(fr, insn.A()), Int(insn.SB())) == insn.K() {
				fr.pc++
			}
		case isa.LessThanInteger:
			ok, err := lessThan(th.reg(fr, insn.A()), Int(insn.SB()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if ok == insn.K() {
				fr.pc++
			}
		case isa.LessEqualInteger:
			ok, err := lessEqual(th.reg(fr, insn.A()), Int(insn.SB()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if ok == insn.K() {
				fr.pc++
			}
		case isa.GreaterThanInteger:
			ok, err := lessThan(Int(insn.SB()), th.reg(fr, insn.A()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if ok == insn.K() {
				fr.pc++
			}
		case isa.GreaterEqualInteger:
			ok, err := lessEqual(Int(insn.SB()), th.reg(fr, insn.A()))
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			if ok == insn.K() {
				fr.pc++
			}

		case isa.Call:
			results, err := th.execCall(fr, insn)
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			_ = results

		case isa.TailCall:
			funcReg := fr.base + int(insn.A())
			args := th.gatherArgs(fr, funcReg+1, insn.B(), -1)
			fn := th.stack[funcReg]
			results, err := th.CallValue(fn, args)
			if err != nil {
				return nil, th.runtimeErr(fr, err)
			}
			return results, nil

		case isa.Return:
			start := fr.base + int(insn.A())
			end := start + int(insn.B()) - 1
			if insn.B() == 0 {
				end = th.openTop
			}
			return append([]Value(nil), th.stack[start:end]...), nil
		case isa.ZeroReturn:
			return nil, nil
		case isa.OneReturn:
			return []Value{th.reg(fr, insn.A())}, nil

		case isa.ForPrepare:
			if err := th.execForPrepare(fr, insn); err != nil {
				return nil, th.runtimeErr(fr, err)
			}
		case isa.ForLoop:
			th.execForLoop(fr, insn)

		case isa.Closure:
			th.setReg(fr, insn.A(), th.execClosure(fr, insn))
		case isa.VariadicArguments:
			th.execVarargs(fr, insn)
		case isa.VariadicArgumentsPrepare:
			// no-op at runtime: variadic arguments already live in
			// fr.variadicArgs, laid out by the caller.

		case isa.Close:
			fr.closeFrom(fr.base + int(insn.A()))

		default:
			panic(fmt.Sprintf("machine: unimplemented opcode %s", op))
		}
	}
}

func asTable(v Value) (*Table, error) {
	t, ok := v.(*Table)
	if !ok {
		return nil, expectedTableError(v.Type())
	}
	return t, nil
}

func negate(v Value) (Value, error) {
	switch v := v.(type) {
	case Int:
		return Int(-v), nil
	case Float:
		return Float(-v), nil
	}
	return nil, typeError("neg", v.Type(), "number")
}

func length(v Value) (Value, error) {
	switch v := v.(type) {
	case String:
		return Int(len(v)), nil
	case *Table:
		return Int(v.Len()), nil
	}
	return nil, typeError("length", v.Type(), "string or table")
}

func arithName(op isa.Opcode) string {
	switch op {
	case isa.Add:
		return "add"
	case isa.Sub:
		return "sub"
	case isa.Mul:
		return "mul"
	case isa.Mod:
		return "mod"
	case isa.Pow:
		return "pow"
	case isa.Div:
		return "div"
	case isa.IDiv:
		return "idiv"
	}
	panic("machine: not an arithmetic opcode")
}

func bitwiseName(op isa.Opcode) string {
	switch op {
	case isa.BitAnd:
		return "and"
	case isa.BitOr:
		return "or"
	case isa.BitXor:
		return "xor"
	case isa.ShiftLeft:
		return "shl"
	case isa.ShiftRight:
		return "shr"
	}
	panic("machine: not a bitwise opcode")
}

// gatherArgs reads a contiguous argument run starting at stack index argBase:
// a fixed count when b != 0 (fixedOverride if it is non-negative, else
// int(b)-1; a TableSelf's implicit self argument is already counted in b),
// or every value up to the thread's recorded open top when b == 0.
func (th *Thread) gatherArgs(fr *CallFrame, argBase int, b uint8, fixedOverride int) []Value {
	if b == 0 {
		return append([]Value(nil), th.stack[argBase:th.openTop]...)
	}
	n := fixedOverride
	if n < 0 {
		n = int(b) - 1
	}
	return append([]Value(nil), th.stack[argBase:argBase+n]...)
}

// execCall implements Call(A,B,C): A is the function register, B is
// in-params+1 (0 meaning "up to the thread's open top"), C is
// out-params+1 (0 meaning "all").
func (th *Thread) execCall(fr *CallFrame, insn isa.Instruction) ([]Value, error) {
	funcReg := fr.base + int(insn.A())
	argc := -1
	if insn.B() != 0 {
		argc = int(insn.B()) - 1
	}
	args := th.gatherArgs(fr, funcReg+1, insn.B(), argc)
	fn := th.stack[funcReg]

	results, err := th.CallValue(fn, args)
	if err != nil {
		return nil, err
	}

	if insn.C() == 0 {
		for len(th.stack) < funcReg+len(results) {
			th.stack = append(th.stack, Nil)
		}
		copy(th.stack[funcReg:], results)
		th.openTop = funcReg + len(results)
		return results, nil
	}

	want := int(insn.C()) - 1
	for len(results) < want {
		results = append(results, Nil)
	}
	copy(th.stack[funcReg:funcReg+want], results[:want])
	return results, nil
}

// execForPrepare implements spec §4.3/§4.4's numeric-for setup: it reads
// init/limit/step from A, A+1, A+2, computes the iteration count, and either
// primes the loop (storing the remaining-iteration count back into A and the
// visible loop variable into A+3) or jumps past the matching ForLoop.
func (th *Thread) execForPrepare(fr *CallFrame, insn isa.Instruction) error {
	a := insn.A()
	initV, limitV, stepV := th.reg(fr, a), th.reg(fr, a+1), th.reg(fr, a+2)

	initI, iok := initV.(Int)
	limitI, lok := limitV.(Int)
	stepI, sok := stepV.(Int)

	if iok && lok && sok {
		if stepI == 0 {
			return forZeroStepError()
		}
		count := floorDiv(int64(limitI)-int64(initI), int64(stepI))
		if count < 0 {
			fr.pc += int(insn.SBx())
			return nil
		}
		th.setReg(fr, a, Int(count))
		th.setReg(fr, a+3, initI)
		return nil
	}

	initF, iok := toFloat(initV)
	limitF, lok := toFloat(limitV)
	stepF, sok := toFloat(stepV)
	if !iok || !lok || !sok {
		return forNotNumericError()
	}
	if stepF == 0 {
		return forZeroStepError()
	}
	count := int64(mathFloor((limitF - initF) / stepF))
	if count < 0 {
		fr.pc += int(insn.SBx())
		return nil
	}
	th.setReg(fr, a, Int(count))
	th.setReg(fr, a+3, Float(initF))
	return nil
}

func mathFloor(f float64) float64 {
	if f != f { // NaN
		return f
	}
	i := int64(f)
	if float64(i) > f {
		i--
	}
	return float64(i)
}

func (th *Thread) execForLoop(fr *CallFrame, insn isa.Instruction) {
	a := insn.A()
	remaining := int64(th.reg(fr, a).(Int))
	if remaining == 0 {
		return
	}
	remaining--
	th.setReg(fr, a, Int(remaining))

	switch counter := th.reg(fr, a+3).(type) {
	case Int:
		step := int64(th.reg(fr, a+2).(Int))
		th.setReg(fr, a+3, Int(int64(counter)+step))
	case Float:
		step, _ := toFloat(th.reg(fr, a+2))
		th.setReg(fr, a+3, Float(float64(counter)+step))
	}
	fr.pc += int(insn.SBx())
}

// execClosure implements spec §4.4's Closure(A,Bx): instantiate proto[Bx],
// wiring each of its upvalue descriptors to either a (deduplicated) open
// upvalue on this frame's stack, or to one of this frame's own upvalues.
func (th *Thread) execClosure(fr *CallFrame, insn isa.Instruction) *Closure {
	proto := fr.closure.Proto.Protos[insn.Bx()]
	upvalues := make([]*Upvalue, len(proto.Upvalues))
	for i, desc := range proto.Upvalues {
		if desc.FromStack {
			upvalues[i] = fr.findOpenUpvalue(th, fr.base+desc.Index)
		} else {
			upvalues[i] = fr.closure.Upvalues[desc.Index]
		}
	}
	return &Closure{Proto: proto, Upvalues: upvalues}
}

func (th *Thread) execVarargs(fr *CallFrame, insn isa.Instruction) {
	a := insn.A()
	dst := fr.base + int(a)
	if insn.C() == 0 {
		for len(th.stack) < dst+len(fr.variadicArgs) {
			th.stack = append(th.stack, Nil)
		}
		copy(th.stack[dst:], fr.variadicArgs)
		th.openTop = dst + len(fr.variadicArgs)
		return
	}
	want := int(insn.C()) - 1
	for i := 0; i < want; i++ {
		if i < len(fr.variadicArgs) {
			th.setReg(fr, a+uint8(i), fr.variadicArgs[i])
		} else {
			th.setReg(fr, a+uint8(i), Nil)
		}
	}
}
