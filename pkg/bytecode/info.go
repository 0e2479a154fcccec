// Package bytecode describes the JVM instruction set: the opcode table with
// operand shapes and stack effects, and the decoder and encoder that map
// between code arrays and Instruction values with symbolic branch targets.
package bytecode

type Opcode uint8

// Shape is the operand layout that follows an opcode byte.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeByte
	ShapeShort
	ShapeLocal
	ShapeIinc
	ShapeConst8
	ShapeConst16
	ShapeBranch
	ShapeBranchWide
	ShapeTableSwitch
	ShapeLookupSwitch
	ShapeInvokeInterface
	ShapeInvokeDynamic
	ShapeNewArray
	ShapeMultiANewArray
	ShapeWide
)

// Variable marks a stack effect that depends on a constant pool operand.
const Variable = -1

// Info describes one opcode. Pop and Push count stack words; LocalWidth is
// the number of local slots a load, store or iinc touches.
type Info struct {
	Name          string
	Shape         Shape
	Pop           int8
	Push          int8
	LocalWidth    int8
	ImplicitLocal int8
}

var byName map[string]Opcode

func init() {
	byName = make(map[string]Opcode, 256)
	for op, info := range opcodeTable {
		if info != nil {
			byName[info.Name] = Opcode(op)
		}
	}
}

func Lookup(op Opcode) (*Info, bool) {
	info := opcodeTable[op]
	return info, info != nil
}

func ByName(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

func (op Opcode) String() string {
	if info := opcodeTable[op]; info != nil {
		return info.Name
	}
	return "unknown"
}

// IsConditional reports whether op is a two-way branch.
func (op Opcode) IsConditional() bool {
	return (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull
}

// EndsBlock reports whether control never falls through op.
func (op Opcode) EndsBlock() bool {
	switch op {
	case OpGoto, OpGotoW, OpAthrow, OpRet, OpTableswitch, OpLookupswitch,
		OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn:
		return true
	}
	return false
}

func invert(op Opcode) Opcode {
	if op == OpIfnull || op == OpIfnonnull {
		return op ^ 1
	}
	return ((op - OpIfeq) ^ 1) + OpIfeq
}

// Array element type codes used by newarray.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

var arrayTypeNames = map[int32]string{
	TBoolean: "boolean", TChar: "char", TFloat: "float", TDouble: "double",
	TByte: "byte", TShort: "short", TInt: "int", TLong: "long",
}

func ArrayTypeName(t int32) (string, bool) {
	n, ok := arrayTypeNames[t]
	return n, ok
}

func ArrayTypeByName(name string) (int32, bool) {
	for t, n := range arrayTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}
