package machine

// CallFrame records one active call, per spec §4.4's CallFrame model.
type CallFrame struct {
	closure *Closure
	base    int // stack index where this frame's registers start
	pc      int

	// variadicArgs holds the arguments beyond the fixed parameter count for
	// a variadic function. VariadicArgumentsPrepare is a no-op at runtime
	// (spec §4.4): rather than splicing these into the register stack
	// alongside the fixed parameters (the compiler never reserves registers
	// for them — only VariadicArguments ever reads them), they are kept
	// here and copied into the register window on demand.
	variadicArgs []Value

	// requestedReturns is the caller's expectation for this call's result
	// count: -1 means "all", otherwise an exact count.
	requestedReturns int

	openUpvalues []*Upvalue // open upvalues with stack index >= base

	returnPC int // pc to resume at in the caller's frame
}

// findOpenUpvalue returns the frame's open upvalue at the given stack index,
// creating one if none exists yet, so that two closures capturing the same
// local share one Upvalue (spec §4.4's Closure instruction: "dedup by
// index").
func (fr *CallFrame) findOpenUpvalue(th *Thread, index int) *Upvalue {
	for _, uv := range fr.openUpvalues {
		if uv.index == index {
			return uv
		}
	}
	uv := newOpenUpvalue(th, index)
	fr.openUpvalues = append(fr.openUpvalues, uv)
	return uv
}

// closeFrom closes every open upvalue with stack index >= index (Close(A)
// and the implicit close-on-return).
func (fr *CallFrame) closeFrom(index int) {
	kept := fr.openUpvalues[:0]
	for _, uv := range fr.openUpvalues {
		if uv.index >= index {
			uv.Close()
			continue
		}
		kept = append(kept, uv)
	}
	fr.openUpvalues = kept
}
