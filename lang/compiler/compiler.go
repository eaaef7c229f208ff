// Package compiler implements spec §4.3, the Proto Builder: it walks a
// parsed Lua chunk and lowers it to Proto prototypes of kowhai bytecode
// (lang/isa instructions), performing name resolution (locals, upvalues,
// globals via _ENV) as it goes — there is no separate resolve phase.
package compiler

import (
	"context"
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/isa"
	"github.com/kowhai-lang/kowhai/lang/token"
)

// Compile compiles every chunk to its top-level Proto. It stops at (and
// returns) the first compile error encountered.
func Compile(ctx context.Context, fset *token.FileSet, chunks []*ast.Chunk) ([]*Proto, error) {
	protos := make([]*Proto, len(chunks))
	for i, ch := range chunks {
		p, err := CompileChunk(fset, ch)
		if err != nil {
			return nil, err
		}
		protos[i] = p
	}
	return protos, nil
}

// CompileChunk compiles a single parsed chunk into its top-level Proto. The
// chunk's own implicit _ENV upvalue (slot 0) is established here, and every
// nested function threads it down via findUpvalue.
func CompileChunk(fset *token.FileSet, ch *ast.Chunk) (proto *Proto, err error) {
	start, _ := ch.Span()
	file := fset.File(start)

	c := &compiler{file: file}

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	cf := c.pushFrame("main chunk", start, &ast.ParList{Variadic: true}, false)
	cf.proto.Upvalues = append(cf.proto.Upvalues, UpvalueDesc{Name: "_ENV"})

	c.compileBlock(ch.Block)
	cf.compileReturn(ch.EOF, nil)

	proto = c.popFrame()
	proto.Source = file.Name()
	return proto, nil
}

// compiler holds compile-time state shared across the whole chunk: the
// source file (for position lookups) and the stack of CompileFrames
// currently being built, back is current (spec §3's CompileFrame model).
type compiler struct {
	file   *token.File
	frames []*cframe
}

func (c *compiler) cur() *cframe { return c.frames[len(c.frames)-1] }

func (c *compiler) pushFrame(name string, pos token.Pos, params *ast.ParList, method bool) *cframe {
	cf := &cframe{
		c:      c,
		proto:  &Proto{Name: name, Pos: c.file.Position(pos)},
		consts: swiss.NewMap[string, uint32](8),
	}
	if method {
		cf.declareLocal("self", "")
		cf.proto.NumParams++
	}
	if params != nil {
		for _, p := range params.Names {
			cf.declareLocal(p.Value, "")
			cf.proto.NumParams++
		}
		cf.proto.IsVariadic = params.Variadic
	}
	c.frames = append(c.frames, cf)
	if cf.proto.IsVariadic {
		// every vararg function starts with VARARGPREP; the VM runs it as
		// a no-op, since it keeps the extra arguments beside the frame
		// rather than in registers, so fixed parameters always start at
		// register 0 whatever the caller passed.
		cf.emit(isa.EncodeABC(isa.VariadicArgumentsPrepare, uint8(cf.proto.NumParams), 0, 0, false))
	}
	return cf
}

// popFrame finishes and pops the current frame, returning its Proto. Any
// goto left unresolved at this point never found a matching label anywhere
// in the function.
func (c *compiler) popFrame() *Proto {
	cf := c.frames[len(c.frames)-1]
	if len(cf.gotos) > 0 {
		g := cf.gotos[0]
		c.fail(g.pos, UnmatchedGoto, "no visible label '"+g.name+"' for goto")
	}
	c.frames = c.frames[:len(c.frames)-1]
	p := cf.proto
	p.MaxStack = int(cf.maxStack)
	if p.MaxStack < 2 {
		p.MaxStack = 2
	}
	return p
}

// cframe is the per-function compile-time state: the register allocator,
// local variable list, pending break/goto/label bookkeeping, and the
// function's own Proto under construction.
type cframe struct {
	c     *compiler
	proto *Proto

	consts *swiss.Map[string, uint32] // literal encoding -> Proto.Constants index

	stackTop uint8 // next free virtual register
	maxStack uint8

	locals []localVar // active locals, searched back-to-front by findLocal
	scopes []int       // locals length at each open block's start, for closing scopes on exit

	breaks [][]int // one pending-jump list per enclosing loop, back is innermost

	labels []label
	gotos  []pendingGoto

	line int32
}

type localVar struct {
	name   string
	reg    uint8
	attrib string // "", "const" or "close"
}

type label struct {
	name string
	pc   int
	reg  uint8 // number of locals live at the label, for goto-into-scope checking
}

type pendingGoto struct {
	name string
	pc   int // position of the placeholder Jump to patch
	pos  token.Pos
	reg  uint8 // number of locals live at the goto
}

func (cf *cframe) declareLocal(name, attrib string) uint8 {
	reg := cf.reserve(1)
	cf.locals = append(cf.locals, localVar{name: name, reg: reg, attrib: attrib})
	return reg
}

// findLocal searches the frame's own locals back-to-front, so that a local
// shadowing an earlier one of the same name in an enclosing block resolves
// to the most recent declaration.
func (cf *cframe) findLocal(name string) (uint8, bool) {
	for i := len(cf.locals) - 1; i >= 0; i-- {
		if cf.locals[i].name == name {
			return cf.locals[i].reg, true
		}
	}
	return 0, false
}

// nameKind classifies how find_name (spec §4.3) resolved an identifier.
type nameKind int

const (
	nameLocal nameKind = iota
	nameUpvalue
	nameGlobal
)

// findName is spec §4.3's find_name(n): look in the current frame's locals,
// then walk up the frame stack threading a new upvalue descriptor through
// every intermediate frame, finally falling back to a global (an access to
// _ENV[n]).
func (c *compiler) findName(name string) (nameKind, uint8) {
	cf := c.cur()
	if reg, ok := cf.findLocal(name); ok {
		return nameLocal, reg
	}
	if idx, ok := c.findUpvalue(len(c.frames)-1, name); ok {
		return nameUpvalue, idx
	}
	return nameGlobal, 0
}

// findUpvalue resolves name as an upvalue of frame index fi, recursively
// threading a fresh UpvalueDesc through every intermediate frame between fi
// and wherever name is actually bound.
func (c *compiler) findUpvalue(fi int, name string) (uint8, bool) {
	f := c.frames[fi]
	for i, uv := range f.proto.Upvalues {
		if uv.Name == name {
			return uint8(i), true
		}
	}
	if fi == 0 {
		return 0, false // chunk-level: only _ENV can ever be an upvalue here
	}
	parent := c.frames[fi-1]
	if reg, ok := parent.findLocal(name); ok {
		f.proto.Upvalues = append(f.proto.Upvalues, UpvalueDesc{Name: name, FromStack: true, Index: int(reg)})
		return uint8(len(f.proto.Upvalues) - 1), true
	}
	if idx, ok := c.findUpvalue(fi-1, name); ok {
		f.proto.Upvalues = append(f.proto.Upvalues, UpvalueDesc{Name: name, FromStack: false, Index: int(idx)})
		return uint8(len(f.proto.Upvalues) - 1), true
	}
	return 0, false
}

// envUpvalue returns the current frame's upvalue index for _ENV, threading
// it down from the chunk level if this frame hasn't captured it yet.
func (c *compiler) envUpvalue() uint8 {
	idx, ok := c.findUpvalue(len(c.frames)-1, "_ENV")
	if !ok {
		panic("kowhai: internal error: no _ENV upvalue reachable")
	}
	return idx
}

// reserve allocates n consecutive virtual registers and returns the base,
// per spec §3's invariant that stack_top equals the count of reserved
// registers in the current frame.
func (cf *cframe) reserve(n int) uint8 {
	if int(cf.stackTop)+n > 255 {
		cf.c.fail(token.NoPos, StackOverflow, "too many live registers in function")
	}
	r := cf.stackTop
	cf.stackTop += uint8(n)
	if cf.stackTop > cf.maxStack {
		cf.maxStack = cf.stackTop
	}
	return r
}

// free releases n registers most recently reserved, restoring stackTop. It
// must only be called to release temporaries, never a live local.
func (cf *cframe) free(n int) {
	cf.stackTop -= uint8(n)
}

// openScope/closeScope bracket a block's locals, so a do...end or loop body
// releases its registers (and its names stop being visible) when it ends.
func (cf *cframe) openScope() {
	cf.scopes = append(cf.scopes, len(cf.locals))
}

func (cf *cframe) closeScope() {
	mark := cf.scopes[len(cf.scopes)-1]
	cf.scopes = cf.scopes[:len(cf.scopes)-1]
	if mark < len(cf.locals) {
		cf.free(len(cf.locals) - mark)
		cf.emit(isa.EncodeABC(isa.Close, cf.locals[mark].reg, 0, 0, false))
		cf.locals = cf.locals[:mark]
	}
}

// addConstant interns a literal into the Proto's constant pool, deduplicating
// by structural equality (spec §3's "the constant pool deduplicates by
// structural equality" invariant).
func (cf *cframe) addConstant(v interface{}) uint32 {
	key := constKey(v)
	if idx, ok := cf.consts.Get(key); ok {
		return idx
	}
	if len(cf.proto.Constants) >= 1<<17 {
		cf.c.fail(token.NoPos, ConstantOverflow, "more than 2^17 constants in one function")
	}
	idx := uint32(len(cf.proto.Constants))
	cf.proto.Constants = append(cf.proto.Constants, v)
	cf.consts.Put(key, idx)
	return idx
}

func constKey(v interface{}) string {
	switch v := v.(type) {
	case int64:
		return "i" + fmt.Sprint(v)
	case float64:
		return "f" + fmt.Sprint(v)
	case string:
		return "s" + v
	default:
		panic(fmt.Sprintf("kowhai: invalid constant type %T", v))
	}
}

// emit appends an instruction to the current frame's code, recording the
// current source line for the disassembler/debugger, and returns its pc.
func (cf *cframe) emit(insn isa.Instruction) int {
	cf.proto.Code = append(cf.proto.Code, insn)
	cf.proto.Lines = append(cf.proto.Lines, cf.line)
	return len(cf.proto.Code) - 1
}

func (cf *cframe) pc() int { return len(cf.proto.Code) }

// emitJump reserves a placeholder Jump instruction to be back-patched once
// its target is known.
func (cf *cframe) emitJump() int { return cf.emit(0) }

// patchJumpHere patches the placeholder Jump at pos to target the current pc.
func (cf *cframe) patchJumpHere(pos int) { cf.patchJumpTo(pos, cf.pc()) }

func (cf *cframe) patchJumpTo(pos, target int) {
	sj := int32(target - (pos + 1))
	insn, err := isa.EncodeSJ(isa.Jump, sj)
	cf.c.check(token.NoPos, JumpTooLong, err)
	cf.proto.Code[pos] = insn
}

// pushLoop opens a new pending-break list for a loop body.
func (cf *cframe) pushLoop() { cf.breaks = append(cf.breaks, nil) }

// popLoop patches every break recorded for the innermost loop to the current
// pc (the loop's exit point) and discards its pending list.
func (cf *cframe) popLoop() {
	n := len(cf.breaks) - 1
	for _, pos := range cf.breaks[n] {
		cf.patchJumpHere(pos)
	}
	cf.breaks = cf.breaks[:n]
}
