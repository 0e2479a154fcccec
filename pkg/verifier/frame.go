package verifier

// Frame is the abstract state of a method while its instructions are
// replayed: the operand stack depth in words and the number of local
// slots touched so far, with running maxima.
type Frame struct {
	Depth     int
	MaxDepth  int
	MaxLocals int
}

// NewFrame creates a Frame whose first locals slots hold the arguments.
func NewFrame(locals int) *Frame {
	return &Frame{MaxLocals: locals}
}

// Push pushes n words onto the operand stack.
func (f *Frame) Push(n int) {
	f.Depth += n
	if f.Depth > f.MaxDepth {
		f.MaxDepth = f.Depth
	}
}

// Pop pops n words and reports whether the stack underflowed. An
// underflowing pop leaves the stack empty.
func (f *Frame) Pop(n int) bool {
	f.Depth -= n
	if f.Depth < 0 {
		f.Depth = 0
		return true
	}
	return false
}

// Reset sets the current depth, as at a branch target or handler entry.
func (f *Frame) Reset(depth int) {
	f.Depth = depth
	if depth > f.MaxDepth {
		f.MaxDepth = depth
	}
}

// Touch records an access to slots [slot, slot+width).
func (f *Frame) Touch(slot, width int) {
	if end := slot + width; end > f.MaxLocals {
		f.MaxLocals = end
	}
}
