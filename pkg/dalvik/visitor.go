package dalvik

// InstructionVisitor dispatches on what an instruction refers to. Unset
// handlers fall back to Any.
type InstructionVisitor struct {
	Any      func(in *Instruction)
	Simple   func(in *Instruction)
	Constant func(in *Instruction)
	Invoke   func(in *Instruction)
	Branch   func(in *Instruction)
	Payload  func(in *Instruction)
}

func (v *InstructionVisitor) Visit(in *Instruction) {
	var h func(*Instruction)
	info := in.Info()
	switch {
	case in.Payload != nil:
		h = v.Payload
	case info == nil:
	case info.Flags&FlagInvoke != 0:
		h = v.Invoke
	case info.Flags&(FlagBranch|FlagPayload) != 0:
		h = v.Branch
	case info.Index != IndexNone:
		h = v.Constant
	default:
		h = v.Simple
	}
	if h == nil {
		h = v.Any
	}
	if h != nil {
		h(in)
	}
}
