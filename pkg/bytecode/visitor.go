package bytecode

// InstructionVisitor dispatches on the operand shape of an instruction.
// Unset handlers fall back to Any.
type InstructionVisitor struct {
	Any      func(in *Instruction)
	Simple   func(in *Instruction)
	Constant func(in *Instruction)
	Local    func(in *Instruction)
	Branch   func(in *Instruction)
	Switch   func(in *Instruction)
}

func (v *InstructionVisitor) Visit(in *Instruction) {
	var h func(*Instruction)
	switch in.Info().Shape {
	case ShapeConst8, ShapeConst16, ShapeInvokeInterface, ShapeInvokeDynamic, ShapeMultiANewArray:
		h = v.Constant
	case ShapeLocal, ShapeIinc:
		h = v.Local
	case ShapeBranch, ShapeBranchWide:
		h = v.Branch
	case ShapeTableSwitch, ShapeLookupSwitch:
		h = v.Switch
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

// HasPoolIndex reports whether Index refers to the constant pool.
func (in *Instruction) HasPoolIndex() bool {
	switch in.Info().Shape {
	case ShapeConst8, ShapeConst16, ShapeInvokeInterface, ShapeInvokeDynamic, ShapeMultiANewArray:
		return true
	}
	return false
}
