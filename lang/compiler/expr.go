package compiler

import (
	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/isa"
	"github.com/kowhai-lang/kowhai/lang/token"
)

// This file is the symbolic compiler of spec §4.3: every expression lowers
// to bytecode that materializes it into a destination register (discharge),
// a condition (compileCondTrue/compileCondFalse's pending jump lists), or a
// run of consecutive registers (compileExprList, for call arguments, return
// values and table constructors). There is no separate ExpDesc value type
// threaded between these: an expression's "symbolic" form is just the
// ast.Expr itself, and discharge dispatches directly on its dynamic type.

// dischargeExpr emits code that leaves e's value in register dst, freeing
// any temporaries it needed along the way. dst must already be reserved by
// the caller (it is never itself reserved here).
func (cf *cframe) dischargeExpr(e ast.Expr, dst uint8) {
	switch e := ast.Unwrap(e).(type) {
	case *ast.NilExpr:
		cf.emit(isa.EncodeABC(isa.LoadNil, dst, 0, 0, false))
	case *ast.BoolExpr:
		op := isa.LoadFalse
		if e.Value {
			op = isa.LoadTrue
		}
		cf.emit(isa.EncodeABC(op, dst, 0, 0, false))
	case *ast.NumberExpr:
		cf.dischargeNumber(e, dst)
	case *ast.StringExpr:
		idx := cf.addConstant(e.Value)
		cf.emitLoadConstant(dst, idx)
	case *ast.VarargExpr:
		cf.emit(isa.EncodeABC(isa.VariadicArguments, dst, 0, 2, false))
	case *ast.Name:
		cf.dischargeName(e.Value, dst)
	case *ast.FieldExpr:
		cf.dischargeFieldExpr(e, dst)
	case *ast.IndexExpr:
		cf.dischargeIndexExpr(e, dst)
	case *ast.CallExpr:
		cf.dischargeCallSingle(e, dst)
	case *ast.MethodCallExpr:
		cf.dischargeCallSingle(e, dst)
	case *ast.FunctionExpr:
		cf.dischargeFunctionExpr(e, dst)
	case *ast.TableExpr:
		cf.dischargeTableExpr(e, dst)
	case *ast.UnOpExpr:
		cf.dischargeUnOp(e, dst)
	case *ast.BinOpExpr:
		cf.dischargeBinOp(e, dst)
	default:
		panic("kowhai: unsupported expression node in discharge")
	}
}

// dischargeNumber loads an integer or float literal, choosing LoadInteger or
// LoadFloat when it fits the signed 17-bit immediate (sBx), else falling
// back to the constant pool (spec §8's boundary behavior: "-65535 <= n <=
// 65535 iff LoadInteger/LoadFloat fit; outside this range LoadConstant is
// used").
func (cf *cframe) dischargeNumber(e *ast.NumberExpr, dst uint8) {
	if !e.IsFloat && e.Int >= -65535 && e.Int <= 65535 {
		insn, err := isa.EncodeAsBx(isa.LoadInteger, dst, int32(e.Int))
		cf.c.check(e.Start, ArgOutOfRange, err)
		cf.emit(insn)
		return
	}
	if e.IsFloat && e.Float == float64(int32(e.Float)) && int64(int32(e.Float)) >= -65535 && int64(int32(e.Float)) <= 65535 {
		insn, err := isa.EncodeAsBx(isa.LoadFloat, dst, int32(e.Float))
		cf.c.check(e.Start, ArgOutOfRange, err)
		cf.emit(insn)
		return
	}
	var idx uint32
	if e.IsFloat {
		idx = cf.addConstant(e.Float)
	} else {
		idx = cf.addConstant(e.Int)
	}
	cf.emitLoadConstant(dst, idx)
}

func (cf *cframe) emitLoadConstant(dst uint8, idx uint32) {
	insn, err := isa.EncodeABx(isa.LoadConstant, dst, idx)
	cf.c.check(token.NoPos, ConstantOverflow, err)
	cf.emit(insn)
}

// dischargeName compiles an identifier reference: a local (Move, elided if
// already in dst), an upvalue (GetUpvalue), or a global (GetUpTable on
// _ENV).
func (cf *cframe) dischargeName(name string, dst uint8) {
	kind, reg := cf.c.findName(name)
	switch kind {
	case nameLocal:
		if reg != dst {
			cf.emit(isa.EncodeABC(isa.Move, dst, reg, 0, false))
		}
	case nameUpvalue:
		insn, err := isa.EncodeABx(isa.GetUpvalue, dst, uint32(reg))
		cf.c.check(token.NoPos, ArgOutOfRange, err)
		cf.emit(insn)
	case nameGlobal:
		env := cf.c.envUpvalue()
		idx := cf.addConstant(name)
		cf.emit(isa.EncodeABC(isa.GetUpTable, dst, env, uint8(idx), false))
	}
}

func (cf *cframe) dischargeFieldExpr(e *ast.FieldExpr, dst uint8) {
	base := cf.exprToReg(e.Prefix)
	idx := cf.addConstant(e.Name.Value)
	cf.emit(isa.EncodeABC(isa.GetField, dst, base.reg, uint8(idx), false))
	base.free(cf)
}

func (cf *cframe) dischargeIndexExpr(e *ast.IndexExpr, dst uint8) {
	base := cf.exprToReg(e.Prefix)
	if lit, ok := ast.Unwrap(e.Index).(*ast.NumberExpr); ok && !lit.IsFloat && lit.Int >= 0 && lit.Int <= 255 {
		cf.emit(isa.EncodeABC(isa.GetIndex, dst, base.reg, uint8(lit.Int), false))
		base.free(cf)
		return
	}
	key := cf.exprToReg(e.Index)
	cf.emit(isa.EncodeABC(isa.GetTable, dst, base.reg, key.reg, false))
	key.free(cf)
	base.free(cf)
}

func (cf *cframe) dischargeUnOp(e *ast.UnOpExpr, dst uint8) {
	if e.Op == token.NOT {
		// `not cond` is compiled through the same condition machinery used by
		// if/while, producing a false/true-valued register the same way relational
		// comparisons do (LoadFalseSkip+LoadTrue idiom).
		trueJumps := cf.condTrue(e)
		cf.emit(isa.EncodeABC(isa.LoadFalseSkip, dst, 0, 0, false))
		lt := cf.emit(isa.EncodeABC(isa.LoadTrue, dst, 0, 0, false))
		cf.patchList(trueJumps, lt)
		return
	}
	src := cf.exprToReg(e.Right)
	var op isa.Opcode
	switch e.Op {
	case token.MINUS:
		op = isa.Neg
	case token.TILDE:
		op = isa.BitNot
	case token.HASH:
		op = isa.Len
	default:
		panic("kowhai: unsupported unary operator")
	}
	cf.emit(isa.EncodeABC(op, dst, src.reg, 0, false))
	src.free(cf)
}

// dischargeBinOp handles the four binop families: short-circuit and/or,
// relational comparisons (LoadFalseSkip+LoadTrue idiom), concat (flattened
// across a chain), and arithmetic/bitwise.
func (cf *cframe) dischargeBinOp(e *ast.BinOpExpr, dst uint8) {
	switch e.Op {
	case token.AND:
		cf.dischargeExpr(e.Left, dst)
		j := cf.emitTestFalseJump(dst)
		cf.dischargeExpr(e.Right, dst)
		cf.patchJumpHere(j)
		return
	case token.OR:
		cf.dischargeExpr(e.Left, dst)
		j := cf.emitTestTrueJump(dst)
		cf.dischargeExpr(e.Right, dst)
		cf.patchJumpHere(j)
		return
	}
	if isRelational(e.Op) {
		cf.dischargeCompareValue(e, dst)
		return
	}
	if e.Op == token.DOTDOT {
		cf.dischargeConcat(e, dst)
		return
	}
	if v, ok := foldArith(e.Op, e.Left, e.Right); ok {
		switch v := v.(type) {
		case int64:
			cf.dischargeNumber(&ast.NumberExpr{Start: e.OpPos, Int: v}, dst)
		case float64:
			cf.dischargeNumber(&ast.NumberExpr{Start: e.OpPos, IsFloat: true, Float: v}, dst)
		}
		return
	}
	cf.dischargeArith(e, dst)
}

func isRelational(op token.Token) bool {
	switch op {
	case token.EQ, token.NEQ, token.LT, token.LE, token.GT, token.GE:
		return true
	}
	return false
}

// compareDesc maps a relational token to the opcode family it compiles to:
// Equal/LessThan/LessEqual, whether the operands must be swapped (a>b is
// compiled as b<a; a>=b as b<=a), and whether the whole relation's truth
// value is the negation of the base comparison's ("~=" against "==").
func compareDesc(op token.Token) (base isa.Opcode, swap, invert bool) {
	switch op {
	case token.EQ:
		return isa.Equal, false, false
	case token.NEQ:
		return isa.Equal, false, true
	case token.LT:
		return isa.LessThan, false, false
	case token.LE:
		return isa.LessEqual, false, false
	case token.GT:
		return isa.LessThan, true, false
	case token.GE:
		return isa.LessEqual, true, false
	}
	panic("kowhai: not a comparison operator")
}

// emitCompareJump emits the comparison's instruction plus a placeholder
// Jump. The base comparison opcode's K field is chosen so that the Jump
// executes exactly when jumpWhenTrue == (the relation holds). Returns the
// Jump's pc.
func (cf *cframe) emitCompareJump(op token.Token, lr, rr uint8, jumpWhenTrue bool) int {
	base, swap, invert := compareDesc(op)
	a, b := lr, rr
	if swap {
		a, b = rr, lr
	}
	want := jumpWhenTrue
	if invert {
		want = !want
	}
	cf.emit(isa.EncodeABC(base, a, b, 0, !want))
	return cf.emitJump()
}

func (cf *cframe) dischargeCompareValue(e *ast.BinOpExpr, dst uint8) {
	l := cf.exprToReg(e.Left)
	r := cf.exprToReg(e.Right)
	jHold := cf.emitCompareJump(e.Op, l.reg, r.reg, true)
	r.free(cf)
	l.free(cf)
	cf.emit(isa.EncodeABC(isa.LoadFalseSkip, dst, 0, 0, false))
	lt := cf.emit(isa.EncodeABC(isa.LoadTrue, dst, 0, 0, false))
	cf.patchJumpTo(jHold, lt)
}

// flattenConcat collects a right-associative chain of `..` into its operand
// list, so `a..b..c` compiles to a single Concat(base,3) rather than two
// nested two-operand concats.
func flattenConcat(e ast.Expr) []ast.Expr {
	bin, ok := ast.Unwrap(e).(*ast.BinOpExpr)
	if !ok || bin.Op != token.DOTDOT {
		return []ast.Expr{e}
	}
	return append([]ast.Expr{bin.Left}, flattenConcat(bin.Right)...)
}

func (cf *cframe) dischargeConcat(e *ast.BinOpExpr, dst uint8) {
	operands := flattenConcat(e)
	base := cf.reserve(len(operands))
	for i, op := range operands {
		cf.dischargeExpr(op, base+uint8(i))
	}
	cf.emit(isa.EncodeABC(isa.Concat, base, uint8(len(operands)), 0, false))
	if base != dst {
		cf.emit(isa.EncodeABC(isa.Move, dst, base, 0, false))
	}
	cf.free(len(operands))
}

func (cf *cframe) dischargeArith(e *ast.BinOpExpr, dst uint8) {
	if e.Op == token.PLUS || e.Op == token.STAR {
		if done := cf.dischargeArithConstantFast(e, dst); done {
			return
		}
	}
	l := cf.exprToReg(e.Left)
	r := cf.exprToReg(e.Right)
	op, ok := arithOpcode(e.Op)
	if !ok {
		panic("kowhai: unsupported binary operator")
	}
	cf.emit(isa.EncodeABC(op, dst, l.reg, r.reg, false))
	r.free(cf)
	l.free(cf)
}

// dischargeArithConstantFast implements spec §4.3's "Addition with a small
// integer literal uses AddInteger; with a constant uses AddConstant" (and,
// by the same shape, multiplication by a constant uses MulConstant).
func (cf *cframe) dischargeArithConstantFast(e *ast.BinOpExpr, dst uint8) bool {
	lhs, rhs := e.Left, e.Right
	lit, ok := ast.Unwrap(rhs).(*ast.NumberExpr)
	if !ok {
		if lit, ok = ast.Unwrap(lhs).(*ast.NumberExpr); ok {
			lhs = e.Right
		} else {
			return false
		}
	}
	if e.Op == token.PLUS && !lit.IsFloat && lit.Int >= -127 && lit.Int <= 127 {
		l := cf.exprToReg(lhs)
		cf.emit(isa.EncodeABsC(isa.AddInteger, dst, l.reg, int8(lit.Int)))
		l.free(cf)
		return true
	}
	var idx uint32
	if lit.IsFloat {
		idx = cf.addConstant(lit.Float)
	} else {
		idx = cf.addConstant(lit.Int)
	}
	op := isa.AddConstant
	if e.Op == token.STAR {
		op = isa.MulConstant
	}
	l := cf.exprToReg(lhs)
	cf.emit(isa.EncodeABC(op, dst, l.reg, uint8(idx), false))
	l.free(cf)
	return true
}

func arithOpcode(op token.Token) (isa.Opcode, bool) {
	switch op {
	case token.PLUS:
		return isa.Add, true
	case token.MINUS:
		return isa.Sub, true
	case token.STAR:
		return isa.Mul, true
	case token.PERCENT:
		return isa.Mod, true
	case token.CARET:
		return isa.Pow, true
	case token.SLASH:
		return isa.Div, true
	case token.SLASHSLASH:
		return isa.IDiv, true
	case token.AMP:
		return isa.BitAnd, true
	case token.PIPE:
		return isa.BitOr, true
	case token.TILDE:
		return isa.BitXor, true
	case token.LTLT:
		return isa.ShiftLeft, true
	case token.GTGT:
		return isa.ShiftRight, true
	}
	return 0, false
}

// foldArith constant-folds arithmetic on two number literals (spec §4.3:
// "Constant folding is applied for arithmetic on two literals"). Bitwise
// folding is left to runtime: the operands may be floats with a zero
// fractional part, whose bitwise conversion is itself a potential runtime
// error (spec §7's IntegerConversion), not something to fold at compile
// time.
func foldArith(op token.Token, le, re ast.Expr) (interface{}, bool) {
	l, lok := ast.Unwrap(le).(*ast.NumberExpr)
	r, rok := ast.Unwrap(re).(*ast.NumberExpr)
	if !lok || !rok {
		return nil, false
	}
	if !l.IsFloat && !r.IsFloat {
		switch op {
		case token.PLUS:
			return l.Int + r.Int, true
		case token.MINUS:
			return l.Int - r.Int, true
		case token.STAR:
			return l.Int * r.Int, true
		case token.SLASHSLASH:
			if r.Int == 0 {
				return nil, false // ForZeroStep-style error deferred to runtime
			}
			return floorDivInt(l.Int, r.Int), true
		case token.PERCENT:
			if r.Int == 0 {
				return nil, false
			}
			return l.Int - floorDivInt(l.Int, r.Int)*r.Int, true
		}
		return nil, false
	}
	lf, rf := l.Float, r.Float
	if !l.IsFloat {
		lf = float64(l.Int)
	}
	if !r.IsFloat {
		rf = float64(r.Int)
	}
	switch op {
	case token.PLUS:
		return lf + rf, true
	case token.MINUS:
		return lf - rf, true
	case token.STAR:
		return lf * rf, true
	case token.SLASH:
		return lf / rf, true
	}
	return nil, false
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// reg is a resolved expression location: either an existing local's
// register (temp false, nothing to free) or a freshly reserved temporary
// holding the discharged value (temp true, must be freed by the caller once
// done, in LIFO order with any other temporaries reserved after it).
type reg struct {
	reg  uint8
	temp bool
}

func (r reg) free(cf *cframe) {
	if r.temp {
		cf.free(1)
	}
}

// exprToReg resolves e to a register without unnecessary copying: a bare
// local name reuses its own register; anything else is discharged into a
// fresh temporary.
func (cf *cframe) exprToReg(e ast.Expr) reg {
	if nm, ok := ast.Unwrap(e).(*ast.Name); ok {
		if kind, r := cf.c.findName(nm.Value); kind == nameLocal {
			return reg{reg: r}
		}
	}
	r := cf.reserve(1)
	cf.dischargeExpr(e, r)
	return reg{reg: r, temp: true}
}

// condTrue compiles e as a boolean condition and returns the list of
// pending Jump positions taken when e is truthy; control falls through
// (unpatched) when e is falsy.
func (cf *cframe) condTrue(e ast.Expr) []int {
	switch e := ast.Unwrap(e).(type) {
	case *ast.BinOpExpr:
		switch e.Op {
		case token.AND:
			lFalse := cf.condFalse(e.Left)
			rTrue := cf.condTrue(e.Right)
			cf.patchList(lFalse, cf.pc())
			return rTrue
		case token.OR:
			lTrue := cf.condTrue(e.Left)
			rTrue := cf.condTrue(e.Right)
			return append(lTrue, rTrue...)
		}
		if isRelational(e.Op) {
			l := cf.exprToReg(e.Left)
			r := cf.exprToReg(e.Right)
			j := cf.emitCompareJump(e.Op, l.reg, r.reg, true)
			r.free(cf)
			l.free(cf)
			return []int{j}
		}
	case *ast.UnOpExpr:
		if e.Op == token.NOT {
			return cf.condFalse(e.Right)
		}
	}
	r := cf.exprToReg(e)
	j := cf.emitTestTrueJump(r.reg)
	r.free(cf)
	return []int{j}
}

// condFalse is condTrue's dual: its jump list is taken when e is falsy.
func (cf *cframe) condFalse(e ast.Expr) []int {
	switch e := ast.Unwrap(e).(type) {
	case *ast.BinOpExpr:
		switch e.Op {
		case token.AND:
			lFalse := cf.condFalse(e.Left)
			rFalse := cf.condFalse(e.Right)
			return append(lFalse, rFalse...)
		case token.OR:
			lTrue := cf.condTrue(e.Left)
			rFalse := cf.condFalse(e.Right)
			cf.patchList(lTrue, cf.pc())
			return rFalse
		}
		if isRelational(e.Op) {
			l := cf.exprToReg(e.Left)
			r := cf.exprToReg(e.Right)
			j := cf.emitCompareJump(e.Op, l.reg, r.reg, false)
			r.free(cf)
			l.free(cf)
			return []int{j}
		}
	case *ast.UnOpExpr:
		if e.Op == token.NOT {
			return cf.condTrue(e.Right)
		}
	}
	r := cf.exprToReg(e)
	j := cf.emitTestFalseJump(r.reg)
	r.free(cf)
	return []int{j}
}

// emitTestFalseJump falls through (no jump) when R[reg] is truthy, and
// jumps when it is falsy.
func (cf *cframe) emitTestFalseJump(r uint8) int {
	cf.emit(isa.EncodeABC(isa.Test, r, 0, 0, true))
	return cf.emitJump()
}

// emitTestTrueJump falls through when R[reg] is falsy, and jumps when truthy.
func (cf *cframe) emitTestTrueJump(r uint8) int {
	cf.emit(isa.EncodeABC(isa.Test, r, 0, 0, false))
	return cf.emitJump()
}

func (cf *cframe) patchList(list []int, target int) {
	for _, pos := range list {
		cf.patchJumpTo(pos, target)
	}
}

// isMultiValue reports whether e (without stripping a ParenExpr, since
// parens explicitly block expansion) is one of the forms that can yield
// more than one value: a call, or `...`.
func isMultiValue(e ast.Expr) bool {
	switch e.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr, *ast.VarargExpr:
		return true
	}
	return false
}

// compileExprList compiles exprs into consecutive registers starting at
// base, which must equal the frame's current stack top: it reserves each
// register itself as it goes, rather than requiring the caller to
// pre-reserve a block. If allowMulti and the last expression is a call or
// `...`, it is compiled to leave an open-ended run of values on the stack
// above base+len(exprs)-1 (fixed count returned is len(exprs)-1); otherwise
// every expression discharges to exactly one register and multi is false.
func (cf *cframe) compileExprList(exprs []ast.Expr, base uint8, allowMulti bool) (fixed int, multi bool) {
	if len(exprs) == 0 {
		return 0, false
	}
	for i, e := range exprs[:len(exprs)-1] {
		cf.reserve(1)
		cf.dischargeExpr(e, base+uint8(i))
	}
	last := exprs[len(exprs)-1]
	lastReg := base + uint8(len(exprs)-1)
	if allowMulti && isMultiValue(last) {
		switch last.(type) {
		case *ast.CallExpr, *ast.MethodCallExpr:
			cf.compileCallAt(last, lastReg, -1)
		case *ast.VarargExpr:
			cf.reserve(1)
			cf.emit(isa.EncodeABC(isa.VariadicArguments, lastReg, 0, 0, false))
		}
		return len(exprs) - 1, true
	}
	cf.reserve(1)
	cf.dischargeExpr(last, lastReg)
	return len(exprs), false
}

// compileCallAt compiles a call (or method call) so its function, argument
// and self registers occupy a contiguous run starting at base, which must
// equal the frame's current stack top (nothing reserved past it yet). The
// call's results occupy numResults registers starting at base, or, if
// numResults is negative, an open-ended run whose actual count is known
// only at runtime: the VM convention is that a call's results always
// overwrite its own register window starting at A=base, so "all results"
// and "fixed N results" differ only in the Call instruction's C operand.
// The open form is legal only as the last element of an argument list,
// return list or table constructor, matching spec §4.3's "only last
// element expands" rule.
func (cf *cframe) compileCallAt(e ast.Expr, base uint8, numResults int) {
	switch e := e.(type) {
	case *ast.CallExpr:
		cf.reserve(1)
		cf.dischargeExpr(e.Fn, base)
		argc, multi := cf.compileExprList(e.Args, base+1, true)
		cf.emitCallAt(base, argc, multi, 0, numResults)
	case *ast.MethodCallExpr:
		cf.reserve(2)
		obj := cf.exprToReg(e.Prefix)
		idx := cf.addConstant(e.Method.Value)
		cf.emit(isa.EncodeABC(isa.TableSelf, base, obj.reg, uint8(idx), false))
		obj.free(cf)
		argc, multi := cf.compileExprList(e.Args, base+2, true)
		cf.emitCallAt(base, argc, multi, 1, numResults)
	default:
		panic("kowhai: not a call expression")
	}
}

// emitCallAt emits Call(base, B, C) and reconciles the frame's compile-time
// stack top with the call's result window: registers base..base+reserved-1
// were reserved for the function/self/fixed-argument run (argsMulti leaves
// the true count runtime-only, so that case is left as an approximation —
// see DESIGN.md), and after the call only base..base+numResults-1 remain
// meaningful (or, for an open result count, base..base+0 as a placeholder
// the caller is expected to treat specially).
func (cf *cframe) emitCallAt(base uint8, argc int, argsMulti bool, selfExtra, numResults int) {
	b := uint8(argc + selfExtra + 1)
	if argsMulti {
		b = 0
	}
	var c uint8
	if numResults < 0 {
		c = 0
	} else {
		c = uint8(numResults + 1)
	}
	cf.emit(isa.EncodeABC(isa.Call, base, b, c, false))
	if argsMulti {
		return
	}
	reserved := 1 + selfExtra + argc
	want := numResults
	if want < 0 {
		want = 1
	}
	switch {
	case want > reserved:
		cf.reserve(want - reserved)
	case want < reserved:
		cf.free(reserved - want)
	}
}

// dischargeCallSingle compiles e (a call or method call) so its single
// result ends up in dst, using a temporary call window above the frame's
// current stack top.
func (cf *cframe) dischargeCallSingle(e ast.Expr, dst uint8) {
	cbase := cf.stackTop
	cf.compileCallAt(e, cbase, 1)
	if cbase != dst {
		cf.emit(isa.EncodeABC(isa.Move, dst, cbase, 0, false))
	}
	cf.free(1)
}

func (cf *cframe) dischargeFunctionExpr(e *ast.FunctionExpr, dst uint8) {
	proto := cf.compileFuncBody("", e.Body, false)
	cf.emitClosure(proto, dst)
}

func (cf *cframe) emitClosure(proto *Proto, dst uint8) {
	cf.proto.Protos = append(cf.proto.Protos, proto)
	idx := len(cf.proto.Protos) - 1
	insn, err := isa.EncodeABx(isa.Closure, dst, uint32(idx))
	cf.c.check(token.NoPos, ArgOutOfRange, err)
	cf.emit(insn)
}

// compileFuncBody compiles a nested function (expression or statement
// form) into its own Proto, pushing and popping a fresh CompileFrame.
func (cf *cframe) compileFuncBody(name string, body *ast.FuncBody, method bool) *Proto {
	inner := cf.c.pushFrame(name, body.Lparen, body.Params, method)
	cf.c.compileBlock(body.Body)
	inner.compileReturn(body.End, nil)
	return cf.c.popFrame()
}

func (cf *cframe) dischargeTableExpr(e *ast.TableExpr, dst uint8) {
	var arrayCount, hashCount int
	for _, fld := range e.Fields {
		if fld.Key == nil {
			arrayCount++
		} else {
			hashCount++
		}
	}
	b, h := arrayCount, hashCount
	if b > 255 {
		b = 255
	}
	if h > 255 {
		h = 255
	}
	cf.emit(isa.EncodeABC(isa.NewTable, dst, uint8(b), uint8(h), false))

	var arrayFields []ast.Expr
	for _, fld := range e.Fields {
		if fld.Key == nil {
			arrayFields = append(arrayFields, fld.Value)
			continue
		}
		if str, ok := fld.Key.(*ast.StringExpr); ok {
			v := cf.exprToReg(fld.Value)
			idx := cf.addConstant(str.Value)
			cf.emit(isa.EncodeABC(isa.SetField, dst, uint8(idx), v.reg, false))
			v.free(cf)
			continue
		}
		k := cf.exprToReg(fld.Key)
		v := cf.exprToReg(fld.Value)
		cf.emit(isa.EncodeABC(isa.SetTable, dst, k.reg, v.reg, false))
		v.free(cf)
		k.free(cf)
	}

	if len(arrayFields) == 0 {
		return
	}
	base := cf.stackTop
	fixed, multi := cf.compileExprList(arrayFields, base, true)
	c := uint8(fixed + 1)
	if multi {
		c = 0
	}
	cf.emit(isa.EncodeABC(isa.SetList, dst, base, c, false))
	cf.free(len(arrayFields))
}
