package compiler

import (
	"github.com/kowhai-lang/kowhai/lang/isa"
	"github.com/kowhai-lang/kowhai/lang/token"
)

// UpvalueDesc describes where a closure's upvalue slot is captured from:
// either a stack slot of the immediately enclosing function, or one of that
// function's own upvalues. Upvalue slot 0 of the top-level chunk is always
// _ENV, captured from the host (FromStack false, Index 0 is meaningless for
// the chunk and is supplied directly by the machine).
type UpvalueDesc struct {
	Name      string
	FromStack bool // true: capture parent's stack slot Index; false: capture parent's upvalue Index
	Index     int
}

// LocalInfo records a local variable's name and the PC range over which its
// register is live, used by the disassembler and by runtime diagnostics.
type LocalInfo struct {
	Name           string
	Register       uint8
	StartPC, EndPC int
}

// Proto is a compiled function prototype. It is built once by the compiler
// and is immutable and shared by reference from then on: every Closure
// instantiated from it points at the same Proto.
type Proto struct {
	Source     string // chunk name, for diagnostics
	Name       string // "main chunk" for the top-level proto
	Pos        token.Position
	Code       []isa.Instruction
	Lines      []int32 // parallel to Code: source line of each instruction
	Constants  []interface{} // element is int64, float64 or string
	Protos     []*Proto      // nested function prototypes, in lexical order
	Upvalues   []UpvalueDesc
	Locals     []LocalInfo
	NumParams  int
	IsVariadic bool
	MaxStack   int
}
