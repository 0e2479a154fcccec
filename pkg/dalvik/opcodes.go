// Package dalvik describes the dex instruction set: instruction formats,
// the opcode table, switch and array payloads, and the decoder and encoder
// that map between code-unit arrays and Instruction values whose branch
// targets are labels.
//
// Offsets and branch distances are counted in 16-bit code units.
package dalvik

type Opcode uint8

// Format is an instruction format from the dex specification ("22c" is two
// units, two registers and a constant pool index).
type Format uint8

const (
	F10x Format = iota
	F12x
	F11n
	F11x
	F10t
	F20t
	F22x
	F21t
	F21s
	F21h
	F21c
	F23x
	F22b
	F22t
	F22s
	F22c
	F30t
	F32x
	F31i
	F31t
	F31c
	F35c
	F3rc
	F45cc
	F4rcc
	F51l
)

var formatNames = [...]string{
	F10x: "10x", F12x: "12x", F11n: "11n", F11x: "11x", F10t: "10t", F20t: "20t",
	F22x: "22x", F21t: "21t", F21s: "21s", F21h: "21h", F21c: "21c", F23x: "23x",
	F22b: "22b", F22t: "22t", F22s: "22s", F22c: "22c", F30t: "30t", F32x: "32x",
	F31i: "31i", F31t: "31t", F31c: "31c", F35c: "35c", F3rc: "3rc", F45cc: "45cc",
	F4rcc: "4rcc", F51l: "51l",
}

func (f Format) String() string { return formatNames[f] }

// Units is the encoded length of the format.
func (f Format) Units() int { return int(formatNames[f][0] - '0') }

// IndexKind says which dex table an instruction's Index refers to.
type IndexKind uint8

const (
	IndexNone IndexKind = iota
	IndexString
	IndexType
	IndexField
	IndexMethod
	IndexCallSite
	IndexMethodHandle
	IndexProto
)

// Flags classify control flow.
type Flags uint8

const (
	FlagBranch Flags = 1 << iota
	FlagPayload
	FlagEndsBlock
	FlagInvoke
)

// Wide bits mark register operands that name a register pair.
const (
	WideA uint8 = 1 << iota
	WideB
	WideC
)

type Info struct {
	Name   string
	Format Format
	Index  IndexKind
	Flags  Flags
	Wide   uint8
}

const (
	OpNop                    Opcode = 0x00
	OpMove                   Opcode = 0x01
	OpMoveWide               Opcode = 0x04
	OpMoveObject             Opcode = 0x07
	OpMoveResult             Opcode = 0x0a
	OpMoveResultWide         Opcode = 0x0b
	OpMoveResultObject       Opcode = 0x0c
	OpMoveException          Opcode = 0x0d
	OpReturnVoid             Opcode = 0x0e
	OpReturn                 Opcode = 0x0f
	OpReturnWide             Opcode = 0x10
	OpReturnObject           Opcode = 0x11
	OpConst4                 Opcode = 0x12
	OpConst16                Opcode = 0x13
	OpConst                  Opcode = 0x14
	OpConstHigh16            Opcode = 0x15
	OpConstWide16            Opcode = 0x16
	OpConstWide32            Opcode = 0x17
	OpConstWide              Opcode = 0x18
	OpConstWideHigh16        Opcode = 0x19
	OpConstString            Opcode = 0x1a
	OpConstStringJumbo       Opcode = 0x1b
	OpConstClass             Opcode = 0x1c
	OpCheckCast              Opcode = 0x1f
	OpNewInstance            Opcode = 0x22
	OpNewArray               Opcode = 0x23
	OpFilledNewArray         Opcode = 0x24
	OpFilledNewArrayRange    Opcode = 0x25
	OpFillArrayData          Opcode = 0x26
	OpThrow                  Opcode = 0x27
	OpGoto                   Opcode = 0x28
	OpGoto16                 Opcode = 0x29
	OpGoto32                 Opcode = 0x2a
	OpPackedSwitch           Opcode = 0x2b
	OpSparseSwitch           Opcode = 0x2c
	OpIfEq                   Opcode = 0x32
	OpIfNe                   Opcode = 0x33
	OpIfLt                   Opcode = 0x34
	OpIfGe                   Opcode = 0x35
	OpIfGt                   Opcode = 0x36
	OpIfLe                   Opcode = 0x37
	OpIfEqz                  Opcode = 0x38
	OpIfNez                  Opcode = 0x39
	OpIfLtz                  Opcode = 0x3a
	OpIfGez                  Opcode = 0x3b
	OpIfGtz                  Opcode = 0x3c
	OpIfLez                  Opcode = 0x3d
	OpIget                   Opcode = 0x52
	OpIput                   Opcode = 0x59
	OpSget                   Opcode = 0x60
	OpSgetObject             Opcode = 0x62
	OpSput                   Opcode = 0x67
	OpInvokeVirtual          Opcode = 0x6e
	OpInvokeSuper            Opcode = 0x6f
	OpInvokeDirect           Opcode = 0x70
	OpInvokeStatic           Opcode = 0x71
	OpInvokeInterface        Opcode = 0x72
	OpInvokeVirtualRange     Opcode = 0x74
	OpInvokeStaticRange      Opcode = 0x77
	OpAddInt                 Opcode = 0x90
	OpAddInt2addr            Opcode = 0xb0
	OpAddIntLit16            Opcode = 0xd0
	OpAddIntLit8             Opcode = 0xd8
	OpInvokePolymorphic      Opcode = 0xfa
	OpInvokePolymorphicRange Opcode = 0xfb
	OpInvokeCustom           Opcode = 0xfc
	OpInvokeCustomRange      Opcode = 0xfd
	OpConstMethodHandle      Opcode = 0xfe
	OpConstMethodType        Opcode = 0xff
)

var opcodeTable [256]*Info

var byName map[string]Opcode

func def(op Opcode, name string, f Format, idx IndexKind, flags Flags, wide uint8) {
	opcodeTable[op] = &Info{Name: name, Format: f, Index: idx, Flags: flags, Wide: wide}
}

// family registers a run of opcodes that share a format, one per suffix.
func family(first Opcode, prefix string, suffixes []string, f Format, idx IndexKind, wide func(suffix string) uint8) {
	for i, s := range suffixes {
		def(first+Opcode(i), prefix+s, f, idx, 0, wide(s))
	}
}

func init() {
	none := func(string) uint8 { return 0 }

	def(0x00, "nop", F10x, IndexNone, 0, 0)
	moves := []struct {
		name string
		wide uint8
	}{{"move", 0}, {"move-wide", WideA | WideB}, {"move-object", 0}}
	for i, m := range moves {
		base := Opcode(0x01 + 3*i)
		def(base, m.name, F12x, IndexNone, 0, m.wide)
		def(base+1, m.name+"/from16", F22x, IndexNone, 0, m.wide)
		def(base+2, m.name+"/16", F32x, IndexNone, 0, m.wide)
	}
	def(0x0a, "move-result", F11x, IndexNone, 0, 0)
	def(0x0b, "move-result-wide", F11x, IndexNone, 0, WideA)
	def(0x0c, "move-result-object", F11x, IndexNone, 0, 0)
	def(0x0d, "move-exception", F11x, IndexNone, 0, 0)
	def(0x0e, "return-void", F10x, IndexNone, FlagEndsBlock, 0)
	def(0x0f, "return", F11x, IndexNone, FlagEndsBlock, 0)
	def(0x10, "return-wide", F11x, IndexNone, FlagEndsBlock, WideA)
	def(0x11, "return-object", F11x, IndexNone, FlagEndsBlock, 0)
	def(0x12, "const/4", F11n, IndexNone, 0, 0)
	def(0x13, "const/16", F21s, IndexNone, 0, 0)
	def(0x14, "const", F31i, IndexNone, 0, 0)
	def(0x15, "const/high16", F21h, IndexNone, 0, 0)
	def(0x16, "const-wide/16", F21s, IndexNone, 0, WideA)
	def(0x17, "const-wide/32", F31i, IndexNone, 0, WideA)
	def(0x18, "const-wide", F51l, IndexNone, 0, WideA)
	def(0x19, "const-wide/high16", F21h, IndexNone, 0, WideA)
	def(0x1a, "const-string", F21c, IndexString, 0, 0)
	def(0x1b, "const-string/jumbo", F31c, IndexString, 0, 0)
	def(0x1c, "const-class", F21c, IndexType, 0, 0)
	def(0x1d, "monitor-enter", F11x, IndexNone, 0, 0)
	def(0x1e, "monitor-exit", F11x, IndexNone, 0, 0)
	def(0x1f, "check-cast", F21c, IndexType, 0, 0)
	def(0x20, "instance-of", F22c, IndexType, 0, 0)
	def(0x21, "array-length", F12x, IndexNone, 0, 0)
	def(0x22, "new-instance", F21c, IndexType, 0, 0)
	def(0x23, "new-array", F22c, IndexType, 0, 0)
	def(0x24, "filled-new-array", F35c, IndexType, 0, 0)
	def(0x25, "filled-new-array/range", F3rc, IndexType, 0, 0)
	def(0x26, "fill-array-data", F31t, IndexNone, FlagPayload, 0)
	def(0x27, "throw", F11x, IndexNone, FlagEndsBlock, 0)
	def(0x28, "goto", F10t, IndexNone, FlagBranch|FlagEndsBlock, 0)
	def(0x29, "goto/16", F20t, IndexNone, FlagBranch|FlagEndsBlock, 0)
	def(0x2a, "goto/32", F30t, IndexNone, FlagBranch|FlagEndsBlock, 0)
	def(0x2b, "packed-switch", F31t, IndexNone, FlagPayload, 0)
	def(0x2c, "sparse-switch", F31t, IndexNone, FlagPayload, 0)
	def(0x2d, "cmpl-float", F23x, IndexNone, 0, 0)
	def(0x2e, "cmpg-float", F23x, IndexNone, 0, 0)
	def(0x2f, "cmpl-double", F23x, IndexNone, 0, WideB|WideC)
	def(0x30, "cmpg-double", F23x, IndexNone, 0, WideB|WideC)
	def(0x31, "cmp-long", F23x, IndexNone, 0, WideB|WideC)

	conds := []string{"eq", "ne", "lt", "ge", "gt", "le"}
	for i, c := range conds {
		def(0x32+Opcode(i), "if-"+c, F22t, IndexNone, FlagBranch, 0)
		def(0x38+Opcode(i), "if-"+c+"z", F21t, IndexNone, FlagBranch, 0)
	}

	kinds := []string{"", "-wide", "-object", "-boolean", "-byte", "-char", "-short"}
	wideA := func(s string) uint8 {
		if s == "-wide" {
			return WideA
		}
		return 0
	}
	family(0x44, "aget", kinds, F23x, IndexNone, wideA)
	family(0x4b, "aput", kinds, F23x, IndexNone, wideA)
	family(0x52, "iget", kinds, F22c, IndexField, wideA)
	family(0x59, "iput", kinds, F22c, IndexField, wideA)
	family(0x60, "sget", kinds, F21c, IndexField, wideA)
	family(0x67, "sput", kinds, F21c, IndexField, wideA)

	invokes := []string{"virtual", "super", "direct", "static", "interface"}
	for i, s := range invokes {
		def(0x6e+Opcode(i), "invoke-"+s, F35c, IndexMethod, FlagInvoke, 0)
		def(0x74+Opcode(i), "invoke-"+s+"/range", F3rc, IndexMethod, FlagInvoke, 0)
	}

	unops := []struct {
		name string
		wide uint8
	}{
		{"neg-int", 0}, {"not-int", 0}, {"neg-long", WideA | WideB}, {"not-long", WideA | WideB},
		{"neg-float", 0}, {"neg-double", WideA | WideB}, {"int-to-long", WideA}, {"int-to-float", 0},
		{"int-to-double", WideA}, {"long-to-int", WideB}, {"long-to-float", WideB}, {"long-to-double", WideA | WideB},
		{"float-to-int", 0}, {"float-to-long", WideA}, {"float-to-double", WideA}, {"double-to-int", WideB},
		{"double-to-long", WideA | WideB}, {"double-to-float", WideB}, {"int-to-byte", 0}, {"int-to-char", 0},
		{"int-to-short", 0},
	}
	for i, u := range unops {
		def(0x7b+Opcode(i), u.name, F12x, IndexNone, 0, u.wide)
	}

	intOps := []string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "ushr"}
	floatOps := []string{"add", "sub", "mul", "div", "rem"}
	binops := func(first Opcode, suffix string, f Format, all uint8, shift uint8) {
		op := first
		for _, n := range intOps {
			def(op, n+"-int"+suffix, f, IndexNone, 0, 0)
			op++
		}
		for _, n := range intOps {
			w := all
			if n == "shl" || n == "shr" || n == "ushr" {
				w = shift
			}
			def(op, n+"-long"+suffix, f, IndexNone, 0, w)
			op++
		}
		for _, n := range floatOps {
			def(op, n+"-float"+suffix, f, IndexNone, 0, 0)
			op++
		}
		for _, n := range floatOps {
			def(op, n+"-double"+suffix, f, IndexNone, 0, all)
			op++
		}
	}
	binops(0x90, "", F23x, WideA|WideB|WideC, WideA|WideB)
	binops(0xb0, "/2addr", F12x, WideA|WideB, WideA)

	lit16 := []string{"add-int", "rsub-int", "mul-int", "div-int", "rem-int", "and-int", "or-int", "xor-int"}
	for i, n := range lit16 {
		name := n + "/lit16"
		if n == "rsub-int" {
			name = n
		}
		def(0xd0+Opcode(i), name, F22s, IndexNone, 0, 0)
	}
	lit8 := append(append([]string{}, lit16...), "shl-int", "shr-int", "ushr-int")
	family(0xd8, "", suffixed(lit8, "/lit8"), F22b, IndexNone, none)

	def(0xfa, "invoke-polymorphic", F45cc, IndexMethod, FlagInvoke, 0)
	def(0xfb, "invoke-polymorphic/range", F4rcc, IndexMethod, FlagInvoke, 0)
	def(0xfc, "invoke-custom", F35c, IndexCallSite, FlagInvoke, 0)
	def(0xfd, "invoke-custom/range", F3rc, IndexCallSite, FlagInvoke, 0)
	def(0xfe, "const-method-handle", F21c, IndexMethodHandle, 0, 0)
	def(0xff, "const-method-type", F21c, IndexProto, 0, 0)

	byName = make(map[string]Opcode, 256)
	for op, info := range opcodeTable {
		if info != nil {
			byName[info.Name] = Opcode(op)
		}
	}
}

func suffixed(names []string, suffix string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + suffix
	}
	return out
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

// invert returns the if-test with the opposite condition.
func invert(op Opcode) Opcode {
	if op >= OpIfEq && op <= OpIfLez {
		// eq/ne, lt/ge and gt/le pairs differ in the low bit
		return op ^ 1
	}
	return op
}
