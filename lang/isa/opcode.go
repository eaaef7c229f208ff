// Package isa defines the instruction set architecture of the kowhai
// virtual machine: the Opcode enum and the 32-bit Instruction word, in its
// five field layouts (iABC, iABx, iAsBx, iAx, isJ).
package isa

import "fmt"

// Opcode identifies the operation an Instruction performs. It occupies bits
// 0..6 of the word (7 bits, up to 128 distinct opcodes).
type Opcode uint8

const ( //nolint:revive
	// data movement
	Move Opcode = iota
	LoadInteger
	LoadFloat
	LoadConstant
	LoadFalse
	LoadFalseSkip // loads false, skips the next instruction
	LoadTrue
	LoadNil // fills A..A+B with nil

	// upvalues & globals
	GetUpvalue
	SetUpvalue
	GetUpTable // A := upvalue[B][const[C]]
	SetUpTable

	// tables
	GetTable
	GetIndex // integer key 0..255 held in C
	GetField // name from constants
	SetTable
	SetIndex
	SetField
	NewTable
	TableSelf // prepare a method call: dst, dst+1 <- obj[const[C]], obj
	SetList   // bulk append

	// arithmetic
	Add
	Sub
	Mul
	Mod
	Pow
	Div
	IDiv
	AddInteger
	AddConstant
	MulConstant

	// bitwise
	BitAnd
	BitOr
	BitXor
	ShiftLeft
	ShiftRight

	// unary
	Neg
	BitNot
	Not
	Len
	Concat // concats A..A+B-1 into A

	// branching
	Jump
	Test
	Equal
	LessThan
	LessEqual
	EqualConstant
	EqualInteger
	LessThanInteger
	LessEqualInteger
	GreaterThanInteger
	GreaterEqualInteger

	// calls & returns
	Call
	TailCall
	Return
	ZeroReturn
	OneReturn

	// loops
	ForPrepare
	ForLoop

	// closures & variadics
	Closure
	VariadicArguments
	VariadicArgumentsPrepare

	// scope
	Close

	maxOpcode
)

var opcodeNames = [...]string{
	Move:                     "MOVE",
	LoadInteger:              "LOADINTEGER",
	LoadFloat:                "LOADFLOAT",
	LoadConstant:             "LOADCONSTANT",
	LoadFalse:                "LOADFALSE",
	LoadFalseSkip:            "LOADFALSESKIP",
	LoadTrue:                 "LOADTRUE",
	LoadNil:                  "LOADNIL",
	GetUpvalue:               "GETUPVALUE",
	SetUpvalue:               "SETUPVALUE",
	GetUpTable:               "GETUPTABLE",
	SetUpTable:               "SETUPTABLE",
	GetTable:                 "GETTABLE",
	GetIndex:                 "GETINDEX",
	GetField:                 "GETFIELD",
	SetTable:                 "SETTABLE",
	SetIndex:                 "SETINDEX",
	SetField:                 "SETFIELD",
	NewTable:                 "NEWTABLE",
	TableSelf:                "TABLESELF",
	SetList:                  "SETLIST",
	Add:                      "ADD",
	Sub:                      "SUB",
	Mul:                      "MUL",
	Mod:                      "MOD",
	Pow:                      "POW",
	Div:                      "DIV",
	IDiv:                     "IDIV",
	AddInteger:               "ADDINTEGER",
	AddConstant:              "ADDCONSTANT",
	MulConstant:              "MULCONSTANT",
	BitAnd:                   "BITAND",
	BitOr:                    "BITOR",
	BitXor:                   "BITXOR",
	ShiftLeft:                "SHIFTLEFT",
	ShiftRight:               "SHIFTRIGHT",
	Neg:                      "NEG",
	BitNot:                   "BITNOT",
	Not:                      "NOT",
	Len:                      "LEN",
	Concat:                   "CONCAT",
	Jump:                     "JUMP",
	Test:                     "TEST",
	Equal:                    "EQUAL",
	LessThan:                 "LESSTHAN",
	LessEqual:                "LESSEQUAL",
	EqualConstant:            "EQUALCONSTANT",
	EqualInteger:             "EQUALINTEGER",
	LessThanInteger:          "LESSTHANINTEGER",
	LessEqualInteger:         "LESSEQUALINTEGER",
	GreaterThanInteger:       "GREATERTHANINTEGER",
	GreaterEqualInteger:      "GREATEREQUALINTEGER",
	Call:                     "CALL",
	TailCall:                 "TAILCALL",
	Return:                   "RETURN",
	ZeroReturn:               "ZERORETURN",
	OneReturn:                "ONERETURN",
	ForPrepare:               "FORPREPARE",
	ForLoop:                  "FORLOOP",
	Closure:                  "CLOSURE",
	VariadicArguments:        "VARARG",
	VariadicArgumentsPrepare: "VARARGPREP",
	Close:                    "CLOSE",
}

func (op Opcode) String() string {
	if op < maxOpcode {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal opcode (%d)", uint8(op))
}

// Layout reports which of the five field layouts an opcode is encoded with.
// It exists for disassembly and is not consulted by the codec itself: the
// compiler always calls the Encode function matching the instruction it is
// emitting.
type Layout uint8

const (
	LayoutABC Layout = iota
	LayoutABx
	LayoutAsBx
	LayoutAx
	LayoutSJ
)

func (op Opcode) Layout() Layout {
	switch op {
	case LoadConstant, GetUpvalue, SetUpvalue, Closure:
		return LayoutABx
	case LoadInteger, LoadFloat, ForPrepare, ForLoop:
		return LayoutAsBx
	case Jump:
		return LayoutSJ
	default:
		return LayoutABC
	}
}
