package compiler

import (
	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/isa"
	"github.com/kowhai-lang/kowhai/lang/token"
)

// compileReturn compiles `return [explist]`. A single call or method call
// (unparenthesized, so not truncated to one value) tail-calls instead of
// calling-then-returning; a single `...` or a bare value list returns
// through Return's general A,B encoding; zero or one plain value use the
// dedicated ZeroReturn/OneReturn opcodes.
func (cf *cframe) compileReturn(pos token.Pos, exprs []ast.Expr) {
	if len(exprs) == 0 {
		cf.emit(isa.EncodeABC(isa.ZeroReturn, 0, 0, 0, false))
		return
	}
	if len(exprs) == 1 {
		switch exprs[0].(type) {
		case *ast.CallExpr, *ast.MethodCallExpr:
			cf.compileTailCall(exprs[0])
			return
		case *ast.VarargExpr:
			base := cf.stackTop
			cf.reserve(1)
			cf.emit(isa.EncodeABC(isa.VariadicArguments, base, 0, 0, false))
			cf.emit(isa.EncodeABC(isa.Return, base, 0, 0, false))
			return
		}
		base := cf.stackTop
		cf.reserve(1)
		cf.dischargeExpr(exprs[0], base)
		cf.emit(isa.EncodeABC(isa.OneReturn, base, 0, 0, false))
		return
	}
	base := cf.stackTop
	fixed, multi := cf.compileExprList(exprs, base, true)
	c := uint8(fixed + 1)
	if multi {
		c = 0
	}
	cf.emit(isa.EncodeABC(isa.Return, base, c, 0, false))
}

// compileTailCall compiles e (a call or method call) as a TailCall
// instruction; the VM runs it as an ordinary nested call and returns the
// callee's results directly.
func (cf *cframe) compileTailCall(e ast.Expr) {
	base := cf.stackTop
	switch e := e.(type) {
	case *ast.CallExpr:
		cf.reserve(1)
		cf.dischargeExpr(e.Fn, base)
		argc, multi := cf.compileExprList(e.Args, base+1, true)
		b := uint8(argc + 1)
		if multi {
			b = 0
		}
		cf.emit(isa.EncodeABC(isa.TailCall, base, b, 0, false))
	case *ast.MethodCallExpr:
		cf.reserve(2)
		obj := cf.exprToReg(e.Prefix)
		idx := cf.addConstant(e.Method.Value)
		cf.emit(isa.EncodeABC(isa.TableSelf, base, obj.reg, uint8(idx), false))
		obj.free(cf)
		argc, multi := cf.compileExprList(e.Args, base+2, true)
		b := uint8(argc + 2)
		if multi {
			b = 0
		}
		cf.emit(isa.EncodeABC(isa.TailCall, base, b, 0, false))
	}
}

// compileBlock compiles a block in its own local scope: locals declared
// inside it are invisible, and their registers freed, once it ends.
func (c *compiler) compileBlock(b *ast.Block) {
	cf := c.cur()
	cf.openScope()
	for _, s := range b.Stmts {
		c.compileStmt(s)
	}
	cf.closeScope()
}

func (c *compiler) compileStmt(s ast.Stmt) {
	cf := c.cur()
	if start, _ := s.Span(); start.IsValid() {
		cf.line = int32(c.file.Position(start).Line)
	}
	switch s := s.(type) {
	case *ast.LocalStmt:
		c.compileLocalStmt(s)
	case *ast.AssignStmt:
		c.compileAssignStmt(s)
	case *ast.ExprStmt:
		c.compileExprStmt(s)
	case *ast.DoStmt:
		c.compileBlock(s.Body)
	case *ast.WhileStmt:
		c.compileWhileStmt(s)
	case *ast.RepeatStmt:
		c.compileRepeatStmt(s)
	case *ast.IfStmt:
		c.compileIfStmt(s)
	case *ast.NumericForStmt:
		c.compileNumericForStmt(s)
	case *ast.GenericForStmt:
		c.compileGenericForStmt(s)
	case *ast.FunctionStmt:
		c.compileFunctionStmt(s)
	case *ast.LocalFunctionStmt:
		c.compileLocalFunctionStmt(s)
	case *ast.ReturnStmt:
		cf.compileReturn(s.Return, s.Exprs)
	case *ast.BreakStmt:
		c.compileBreakStmt(s)
	case *ast.GotoStmt:
		c.compileGotoStmt(s)
	case *ast.LabelStmt:
		c.compileLabelStmt(s)
	case *ast.BadStmt:
		// a syntax error already recorded by the parser; nothing to compile.
	default:
		panic("kowhai: unsupported statement node")
	}
}

// compileLocalStmt declares len(s.Names) new locals, assigning them from
// s.Right by the same count-reconciliation rule as compileAssignStmt's RHS.
// Locals are declared only after their initializers are compiled, so that
// `local x = x` refers to the outer x.
func (c *compiler) compileLocalStmt(s *ast.LocalStmt) {
	cf := c.cur()
	n := len(s.Names)
	base := cf.stackTop
	cf.compileRHS(s.Right, base, n)
	for i, name := range s.Names {
		attrib := ""
		if i < len(s.Attribs) {
			attrib = s.Attribs[i]
		}
		cf.locals = append(cf.locals, localVar{name: name.Value, reg: base + uint8(i), attrib: attrib})
	}
}

// compileAssignStmt evaluates every right-hand expression into temporaries
// before writing any destination, so `a, b = b, a` swaps rather than
// clobbers (spec's explicit multi-assignment invariant).
func (c *compiler) compileAssignStmt(s *ast.AssignStmt) {
	cf := c.cur()
	n := len(s.Left)
	base := cf.stackTop
	cf.compileRHS(s.Right, base, n)
	for i, lhs := range s.Left {
		cf.assignTo(lhs, base+uint8(i))
	}
	cf.free(n)
}

// compileRHS compiles exprs into n consecutive registers starting at base
// (base must equal the frame's current stack top), reconciling a count
// mismatch per Lua's rule: extra expressions are still evaluated (for side
// effects) and discarded; a shortfall is padded with nil, unless the last
// expression is a call or `...`, which then expands to fill the gap.
func (cf *cframe) compileRHS(exprs []ast.Expr, base uint8, n int) {
	switch {
	case len(exprs) == 0:
		cf.reserve(n)
		if n > 0 {
			cf.emit(isa.EncodeABC(isa.LoadNil, base, uint8(n-1), 0, false))
		}
	case len(exprs) == n:
		cf.compileExprList(exprs, base, false)
	case len(exprs) > n:
		cf.compileExprList(exprs[:n], base, false)
		scratch := cf.reserve(1)
		for _, e := range exprs[n:] {
			cf.dischargeExpr(e, scratch)
		}
		cf.free(1)
	default: // len(exprs) < n
		// the last expression fills every destination still missing: a call
		// or `...` is asked for exactly that many values (the VM pads a short
		// result with nil); any other expression gives one value, nil-padded.
		fixed, _ := cf.compileExprList(exprs[:len(exprs)-1], base, false)
		last, lastReg, want := exprs[len(exprs)-1], base+uint8(fixed), n-fixed
		switch last.(type) {
		case *ast.CallExpr, *ast.MethodCallExpr:
			cf.compileCallAt(last, lastReg, want)
		case *ast.VarargExpr:
			cf.reserve(want)
			cf.emit(isa.EncodeABC(isa.VariadicArguments, lastReg, 0, uint8(want+1), false))
		default:
			cf.compileExprList(exprs[len(exprs)-1:], lastReg, false)
			cf.reserve(want - 1)
			cf.emit(isa.EncodeABC(isa.LoadNil, lastReg+1, uint8(want-2), 0, false))
		}
	}
}

// assignTo stores R[src] into destination lhs: a local (Move), an upvalue
// (SetUpvalue), a global (SetUpTable on _ENV), or a field/index (SetField
// or SetTable/SetIndex).
func (cf *cframe) assignTo(lhs ast.Expr, src uint8) {
	switch lhs := ast.Unwrap(lhs).(type) {
	case *ast.Name:
		kind, reg := cf.c.findName(lhs.Value)
		switch kind {
		case nameLocal:
			if reg != src {
				cf.emit(isa.EncodeABC(isa.Move, reg, src, 0, false))
			}
		case nameUpvalue:
			insn, err := isa.EncodeABx(isa.SetUpvalue, src, uint32(reg))
			cf.c.check(token.NoPos, ArgOutOfRange, err)
			cf.emit(insn)
		case nameGlobal:
			env := cf.c.envUpvalue()
			idx := cf.addConstant(lhs.Value)
			cf.emit(isa.EncodeABC(isa.SetUpTable, env, uint8(idx), src, false))
		}
	case *ast.FieldExpr:
		base := cf.exprToReg(lhs.Prefix)
		idx := cf.addConstant(lhs.Name.Value)
		cf.emit(isa.EncodeABC(isa.SetField, base.reg, uint8(idx), src, false))
		base.free(cf)
	case *ast.IndexExpr:
		base := cf.exprToReg(lhs.Prefix)
		if lit, ok := ast.Unwrap(lhs.Index).(*ast.NumberExpr); ok && !lit.IsFloat && lit.Int >= 0 && lit.Int <= 255 {
			cf.emit(isa.EncodeABC(isa.SetIndex, base.reg, uint8(lit.Int), src, false))
			base.free(cf)
			return
		}
		key := cf.exprToReg(lhs.Index)
		cf.emit(isa.EncodeABC(isa.SetTable, base.reg, key.reg, src, false))
		key.free(cf)
		base.free(cf)
	default:
		panic("kowhai: unsupported assignment target")
	}
}

// compileExprStmt compiles a standalone call statement, discarding its
// results (C=1: zero results requested, per the Call encoding).
func (c *compiler) compileExprStmt(s *ast.ExprStmt) {
	cf := c.cur()
	base := cf.stackTop
	cf.compileCallAt(s.Expr, base, 0)
	cf.free(int(cf.stackTop - base))
}

func (c *compiler) compileWhileStmt(s *ast.WhileStmt) {
	cf := c.cur()
	cf.pushLoop()
	top := cf.pc()
	falseJumps := cf.condFalse(s.Cond)
	c.compileBlock(s.Body)
	j := cf.emitJump()
	cf.patchJumpTo(j, top)
	cf.patchList(falseJumps, cf.pc())
	cf.popLoop()
}

// compileRepeatStmt compiles `repeat block until cond`: unlike every other
// loop, cond is evaluated in the scope of block's own locals, so the body's
// scope is closed only after the condition is compiled.
func (c *compiler) compileRepeatStmt(s *ast.RepeatStmt) {
	cf := c.cur()
	cf.pushLoop()
	top := cf.pc()
	cf.openScope()
	for _, stmt := range s.Body.Stmts {
		c.compileStmt(stmt)
	}
	trueJumps := cf.condTrue(s.Cond)
	cf.closeScope()
	j := cf.emitJump()
	cf.patchJumpTo(j, top)
	cf.patchList(trueJumps, cf.pc())
	cf.popLoop()
}

func (c *compiler) compileIfStmt(s *ast.IfStmt) {
	cf := c.cur()
	var endJumps []int
	var prevFalse []int
	for i, clause := range s.Clauses {
		cf.patchList(prevFalse, cf.pc())
		falseJumps := cf.condFalse(clause.Cond)
		c.compileBlock(clause.Body)
		if s.Else != nil || i != len(s.Clauses)-1 {
			endJumps = append(endJumps, cf.emitJump())
		}
		prevFalse = falseJumps
	}
	cf.patchList(prevFalse, cf.pc())
	if s.Else != nil {
		c.compileBlock(s.Else)
	}
	cf.patchList(endJumps, cf.pc())
}

// compileNumericForStmt compiles `for name = start, stop[, step] do body
// end` using ForPrepare/ForLoop, spec §4.3's numeric-for algorithm: start,
// stop and step are evaluated once into three hidden control registers
// immediately below the visible loop variable's own register. ForPrepare
// checks whether the loop should run at all and, if not, jumps forward past
// the matching ForLoop; ForLoop counts down the iteration count held in the
// first control register and advances the visible variable by step,
// jumping back to the body's top while iterations remain. Both use the
// AsBx layout, not the generic Jump opcode, so they are patched directly
// rather than through emitJump/patchJumpTo.
func (c *compiler) compileNumericForStmt(s *ast.NumericForStmt) {
	cf := c.cur()
	base := cf.reserve(4)
	cf.dischargeExpr(s.Start, base)
	cf.dischargeExpr(s.Stop, base+1)
	if s.Step != nil {
		cf.dischargeExpr(s.Step, base+2)
	} else {
		insn, err := isa.EncodeAsBx(isa.LoadInteger, base+2, 1)
		cf.c.check(s.For, ArgOutOfRange, err)
		cf.emit(insn)
	}
	prepPos := cf.emit(0)
	cf.pushLoop()
	top := cf.pc()
	cf.openScope()
	cf.locals = append(cf.locals, localVar{name: s.Name.Value, reg: base + 3})
	c.compileBlock(s.Body)
	cf.closeScope()
	loopPos := cf.pc()
	sbxBack := int32(top - (loopPos + 1))
	insn, err := isa.EncodeAsBx(isa.ForLoop, base, sbxBack)
	cf.c.check(s.For, JumpTooLong, err)
	cf.emit(insn)
	after := cf.pc()
	sbxSkip := int32(after - (prepPos + 1))
	prepInsn, err := isa.EncodeAsBx(isa.ForPrepare, base, sbxSkip)
	cf.c.check(s.For, JumpTooLong, err)
	cf.proto.Code[prepPos] = prepInsn
	cf.popLoop()
	cf.free(3) // closeScope already released the visible variable's register
}

// compileGenericForStmt compiles `for names in exprs do body end` via the
// iterator protocol (spec's supplemented generic-for feature): exprs
// supplies (iterator function, state, initial control variable). Every
// iteration copies the persistent function/state/control triple into a
// fresh call window, calls it, and rebinds the loop's names directly from
// the call's result window (no extra move needed, since a call's results
// land starting at its own function register). The loop stops once the
// first result — the new control value — is falsy; real Lua stops only on
// nil specifically, but nil is the only value well-behaved iterators use
// to signal completion, so this is a reasonable simplification.
func (c *compiler) compileGenericForStmt(s *ast.GenericForStmt) {
	cf := c.cur()
	base := cf.stackTop // persistent: iterator fn, state, control
	cf.compileRHS(s.Exprs, base, 3)
	cf.pushLoop()

	resultWidth := len(s.Names)
	if resultWidth < 1 {
		resultWidth = 1
	}

	// stage is reserved at exactly the 3 registers emitCallAt itself expects
	// to find already set aside (fn + 2 args); emitCallAt then grows or
	// shrinks that reservation to resultWidth registers as part of emitting
	// the call, so the stack accounting lives in one place.
	stage := cf.reserve(3)
	top := cf.pc()
	cf.emit(isa.EncodeABC(isa.Move, stage, base, 0, false))
	cf.emit(isa.EncodeABC(isa.Move, stage+1, base+1, 0, false))
	cf.emit(isa.EncodeABC(isa.Move, stage+2, base+2, 0, false))
	cf.emitCallAt(stage, 2, false, 0, resultWidth)
	doneJ := cf.emitTestFalseJump(stage)
	cf.emit(isa.EncodeABC(isa.Move, base+2, stage, 0, false))

	mark := len(cf.locals)
	for i, name := range s.Names {
		cf.locals = append(cf.locals, localVar{name: name.Value, reg: stage + uint8(i)})
	}
	c.compileBlock(s.Body)
	cf.emit(isa.EncodeABC(isa.Close, stage, 0, 0, false))
	cf.locals = cf.locals[:mark]

	backJ := cf.emitJump()
	cf.patchJumpTo(backJ, top)
	cf.patchJumpHere(doneJ)
	cf.popLoop()
	cf.free(resultWidth)
	cf.free(3)
}

func (c *compiler) compileFunctionStmt(s *ast.FunctionStmt) {
	cf := c.cur()
	method := s.Name.Method != nil
	name := s.Name.Base.Value
	proto := cf.compileFuncBody(name, s.Body, method)
	dst := cf.reserve(1)
	cf.emitClosure(proto, dst)

	if len(s.Name.Fields) == 0 && !method {
		cf.assignTo(s.Name.Base, dst)
		cf.free(1)
		return
	}
	obj := reg{}
	if kind, r := cf.c.findName(s.Name.Base.Value); kind == nameLocal {
		obj = reg{reg: r}
	} else {
		tmp := cf.reserve(1)
		cf.dischargeName(s.Name.Base.Value, tmp)
		obj = reg{reg: tmp, temp: true}
	}
	fields := s.Name.Fields
	last := s.Name.Method
	if last == nil {
		last = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	}
	for _, f := range fields {
		next := cf.reserve(1)
		idx := cf.addConstant(f.Value)
		cf.emit(isa.EncodeABC(isa.GetField, next, obj.reg, uint8(idx), false))
		obj.free(cf)
		obj = reg{reg: next, temp: true}
	}
	idx := cf.addConstant(last.Value)
	cf.emit(isa.EncodeABC(isa.SetField, obj.reg, uint8(idx), dst, false))
	obj.free(cf)
	cf.free(1)
}

func (c *compiler) compileLocalFunctionStmt(s *ast.LocalFunctionStmt) {
	cf := c.cur()
	// the local is declared before the body compiles, so the function can
	// call itself recursively by name.
	reg := cf.declareLocal(s.Name.Value, "")
	proto := cf.compileFuncBody(s.Name.Value, s.Body, false)
	cf.emitClosure(proto, reg)
}

func (c *compiler) compileBreakStmt(s *ast.BreakStmt) {
	cf := c.cur()
	if len(cf.breaks) == 0 {
		cf.c.fail(s.Break, BreakOutsideLoop, "break outside a loop")
	}
	n := len(cf.breaks) - 1
	j := cf.emitJump()
	cf.breaks[n] = append(cf.breaks[n], j)
}

func (c *compiler) compileGotoStmt(s *ast.GotoStmt) {
	cf := c.cur()
	for _, l := range cf.labels {
		if l.name == s.Name.Value {
			j := cf.emitJump()
			cf.patchJumpTo(j, l.pc)
			return
		}
	}
	j := cf.emitJump()
	cf.gotos = append(cf.gotos, pendingGoto{name: s.Name.Value, pc: j, pos: s.Goto, reg: uint8(len(cf.locals))})
}

func (c *compiler) compileLabelStmt(s *ast.LabelStmt) {
	cf := c.cur()
	for _, l := range cf.labels {
		if l.name == s.Name.Value {
			cf.c.fail(s.Start, LabelRedefinition, "label '"+s.Name.Value+"' already defined")
		}
	}
	here := cf.pc()
	reg := uint8(len(cf.locals))
	cf.labels = append(cf.labels, label{name: s.Name.Value, pc: here, reg: reg})

	remaining := cf.gotos[:0]
	for _, g := range cf.gotos {
		if g.name == s.Name.Value {
			if reg > g.reg {
				cf.c.fail(g.pos, GotoIntoScope, "goto jumps into the scope of a local variable")
			}
			cf.patchJumpTo(g.pc, here)
			continue
		}
		remaining = append(remaining, g)
	}
	cf.gotos = remaining
}
