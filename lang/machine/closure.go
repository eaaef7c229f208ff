package machine

import (
	"fmt"

	"github.com/kowhai-lang/kowhai/lang/compiler"
)

// Closure is a runtime function value: an immutable, shared Proto paired
// with the upvalues captured at the moment its Closure instruction ran.
type Closure struct {
	Proto    *compiler.Proto
	Upvalues []*Upvalue
}

func (c *Closure) String() string {
	return fmt.Sprintf("function: %s: %p", c.Proto.Name, c)
}
func (*Closure) Type() string { return "function" }

// Upvalue is a shared, possibly-mutable binding captured by a closure: while
// Open, it aliases a slot on some still-live frame's stack window; once that
// frame returns or its scope closes, the upvalue is Closed, copying the
// slot's last value so it survives independently of the stack.
type Upvalue struct {
	open  bool
	stack *Thread
	index int
	value Value
}

func newOpenUpvalue(th *Thread, index int) *Upvalue {
	return &Upvalue{open: true, stack: th, index: index}
}

// Get reads the upvalue's current value.
func (u *Upvalue) Get() Value {
	if u.open {
		return u.stack.stack[u.index]
	}
	return u.value
}

// Set writes the upvalue's current value.
func (u *Upvalue) Set(v Value) {
	if u.open {
		u.stack.stack[u.index] = v
		return
	}
	u.value = v
}

// Close lifts the upvalue from its stack slot into an independent, closed
// value. It is idempotent: closing an already-closed upvalue is a no-op.
func (u *Upvalue) Close() {
	if !u.open {
		return
	}
	u.value = u.stack.stack[u.index]
	u.open = false
	u.stack = nil
}
