package bytecode

import "github.com/rill-lang/rill/vm"

// Frame is the activation record of one in-progress call: the closure
// being executed, the instruction pointer, and the base pointer marking
// where the frame's locals begin on the value stack. Parameters occupy
// the first NumParameters local slots.
type Frame struct {
	cl          *vm.Closure
	ip          int
	basePointer int
}

// NewFrame creates a frame for cl whose locals start at basePointer.
// ip starts at -1 so the dispatch loop's pre-increment lands on byte 0.
func NewFrame(cl *vm.Closure, basePointer int) *Frame {
	return &Frame{cl: cl, ip: -1, basePointer: basePointer}
}

// Instructions returns the frame's instruction stream.
func (f *Frame) Instructions() Instructions {
	return Instructions(f.cl.Fn.Instructions)
}
