package dalvik

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/reloc"
)

// sample は主要なフォーマットと packed-switch ペイロードを含むコード
var sample = []uint16{
	0x1012,                 // 0: const/4 v0, #1
	0x0113, 0xfffe,         // 1: const/16 v1, #-2
	0x2071, 0x0003, 0x0010, // 3: invoke-static {v0, v1}, method@3
	0x0038, 0x0005,         // 6: if-eqz v0, +5
	0x002b, 0x0006, 0x0000, // 8: packed-switch v0, +6
	0x000e,                 // 11: return-void
	0xff28,                 // 12: goto -1
	0x0000,                 // 13: padding
	// 14: packed-switch payload, first key 0, targets +3 and +4
	0x0100, 0x0002, 0x0000, 0x0000, 0x0003, 0x0000, 0x0004, 0x0000,
}

func TestDecodeSample(t *testing.T) {
	code, err := Decode(sample)
	require.NoError(t, err)
	// 埋め草の nop は落ちる
	require.Len(t, code, 8)

	tests := []struct {
		idx    int
		offset int
		op     Opcode
	}{
		{0, 0, OpConst4},
		{1, 1, OpConst16},
		{2, 3, OpInvokeStatic},
		{3, 6, OpIfEqz},
		{4, 8, OpPackedSwitch},
		{5, 11, OpReturnVoid},
		{6, 12, OpGoto},
		{7, 14, OpNop},
	}
	for _, tt := range tests {
		in := code[tt.idx]
		if in.Offset != tt.offset {
			t.Errorf("instruction %d offset: got %d, want %d", tt.idx, in.Offset, tt.offset)
		}
		if in.Op != tt.op {
			t.Errorf("instruction %d op: got %s, want %s", tt.idx, in.Op, tt.op)
		}
	}

	assert.Equal(t, int64(1), code[0].Literal)
	assert.Equal(t, int64(-2), code[1].Literal)
	assert.Equal(t, []uint16{0, 1}, code[2].Regs)
	assert.Equal(t, uint32(3), code[2].Index)
	assert.Equal(t, reloc.OffsetLabel(11), code[3].Target)
	assert.Equal(t, reloc.OffsetLabel(14), code[4].Target)
	assert.Equal(t, reloc.OffsetLabel(11), code[6].Target)

	sw, ok := code[7].Payload.(*PackedSwitch)
	require.True(t, ok)
	assert.Equal(t, reloc.OffsetLabel(8), sw.Base)
	assert.Equal(t, []reloc.Label{reloc.OffsetLabel(11), reloc.OffsetLabel(12)}, sw.Targets)
}

func TestAssembleRoundTrip(t *testing.T) {
	code, err := Decode(sample)
	require.NoError(t, err)
	out, err := Assemble(code)
	require.NoError(t, err)
	assert.Equal(t, sample, out)
}

func TestLiteralFormats(t *testing.T) {
	tests := []struct {
		name  string
		units []uint16
		lit   int64
	}{
		{"const/high16", []uint16{0x0215, 0x1234}, 0x12340000},
		{"const-wide/high16", []uint16{0x0219, 0x8000}, -0x8000000000000000},
		{"const-wide", []uint16{0x0218, 0x7788, 0x5566, 0x3344, 0x1122}, 0x1122334455667788},
		{"const", []uint16{0x0314, 0xffff, 0xffff}, -1},
		{"add-int/lit8", []uint16{0x01d8, 0xfe02}, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Decode(tt.units)
			require.NoError(t, err)
			require.Len(t, code, 1)
			assert.Equal(t, tt.name, code[0].Op.String())
			if code[0].Literal != tt.lit {
				t.Errorf("literal: got %#x, want %#x", code[0].Literal, tt.lit)
			}
			out, err := Assemble(code)
			require.NoError(t, err)
			assert.Equal(t, tt.units, out)
		})
	}
}

func TestRangeInvoke(t *testing.T) {
	units := []uint16{0x0374, 0x0010, 0x0020} // invoke-virtual/range {v32 .. v34}, method@16
	code, err := Decode(units)
	require.NoError(t, err)
	assert.Equal(t, []uint16{32, 33, 34}, code[0].Regs)
	out, err := Assemble(code)
	require.NoError(t, err)
	assert.Equal(t, units, out)

	code[0].Regs = []uint16{32, 34}
	_, err = Assemble(code)
	assert.True(t, errors.Is(err, jerrors.ErrFormat), "got %v", err)
}

func nops(n int) []reloc.Item {
	items := make([]reloc.Item, n)
	for i := range items {
		items[i] = &Instruction{Op: OpNop}
	}
	return items
}

func TestGotoWidening(t *testing.T) {
	tests := []struct {
		name    string
		padding int
		want    []uint16
	}{
		{"goto", 10, []uint16{0x0b28}},
		{"goto/16", 200, []uint16{0x0029, 202}},
		{"goto/32", 40000, []uint16{0x002a, 40003 & 0xffff, 40003 >> 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []reloc.Item{&Instruction{Op: OpGoto, Target: "end"}}
			items = append(items, nops(tt.padding)...)
			items = append(items, reloc.Mark{Label: "end"}, &Instruction{Op: OpReturnVoid})
			out, lay, err := Encode(items)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out[:len(tt.want)])
			end, ok := lay.Resolve("end")
			require.True(t, ok)
			assert.Equal(t, len(tt.want)+tt.padding, end)

			// 再デコードしても同じ分岐先になる
			code, err := Decode(out)
			require.NoError(t, err)
			assert.Equal(t, reloc.OffsetLabel(end), code[0].Target)
		})
	}
}

func TestGotoToItselfUsesGoto32(t *testing.T) {
	out, _, err := Encode([]reloc.Item{reloc.Mark{Label: "spin"}, &Instruction{Op: OpGoto, Target: "spin"}})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x002a, 0, 0}, out)
}

func TestIfWidening(t *testing.T) {
	items := []reloc.Item{&Instruction{Op: OpIfEqz, Regs: []uint16{3}, Target: "far"}}
	items = append(items, nops(40000)...)
	items = append(items, reloc.Mark{Label: "far"}, &Instruction{Op: OpReturnVoid})
	out, _, err := Encode(items)
	require.NoError(t, err)
	// if-nez v3, +5; goto/32 far
	assert.Equal(t, []uint16{0x0339, 5, 0x002a, 40003 & 0xffff, 40003 >> 16}, out[:5])
}

func TestConstStringJumbo(t *testing.T) {
	out, _, err := Encode([]reloc.Item{
		&Instruction{Op: OpConstString, Regs: []uint16{1}, Index: 7},
		&Instruction{Op: OpConstString, Regs: []uint16{1}, Index: 0x12345},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x011a, 7, 0x011b, 0x2345, 0x0001}, out)
}

func TestPayloadAlignment(t *testing.T) {
	items := []reloc.Item{
		&Instruction{Op: OpNop},
		&Instruction{Op: OpFillArrayData, Regs: []uint16{0}, Target: "data"},
		&Instruction{Op: OpReturnVoid},
		reloc.Mark{Label: "data"},
		&Instruction{Op: OpNop, Payload: NewArrayData(2, []int64{1, -1, 3})},
	}
	out, lay, err := Encode(items)
	require.NoError(t, err)
	pos, _ := lay.Resolve("data")
	if pos != 6 {
		t.Errorf("payload offset: got %d, want 6", pos)
	}
	want := []uint16{
		0x0000,
		0x0026, 0x0005, 0x0000,
		0x000e,
		0x0000,
		0x0300, 0x0002, 0x0003, 0x0000, 0x0001, 0xffff, 0x0003,
	}
	assert.Equal(t, want, out)

	code, err := Decode(out)
	require.NoError(t, err)
	data := code[len(code)-1].Payload.(*ArrayData)
	assert.Equal(t, []int64{1, -1, 3}, data.Values())
}

func TestSparseSwitchRoundTrip(t *testing.T) {
	items := []reloc.Item{
		reloc.Mark{Label: "sw"},
		&Instruction{Op: OpSparseSwitch, Regs: []uint16{0}, Target: "table"},
		reloc.Mark{Label: "a"},
		&Instruction{Op: OpReturnVoid},
		reloc.Mark{Label: "b"},
		&Instruction{Op: OpReturnVoid},
		reloc.Mark{Label: "table"},
		&Instruction{Op: OpNop, Payload: &SparseSwitch{Base: "sw", Keys: []int32{-5, 100}, Targets: []reloc.Label{"a", "b"}}},
	}
	out, _, err := Encode(items)
	require.NoError(t, err)

	code, err := Decode(out)
	require.NoError(t, err)
	sw := code[len(code)-1].Payload.(*SparseSwitch)
	assert.Equal(t, []int32{-5, 100}, sw.Keys)
	assert.Equal(t, []reloc.Label{reloc.OffsetLabel(3), reloc.OffsetLabel(4)}, sw.Targets)

	again, err := Assemble(code)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		units []uint16
		want  error
	}{
		{"unused opcode", []uint16{0x003e}, jerrors.ErrUnknownTag},
		{"truncated", []uint16{0x0014, 0x0001}, jerrors.ErrFormat},
		{"branch into operand", []uint16{0x0013, 0x0001, 0xff28}, jerrors.ErrFormat},
		{"switch without payload", []uint16{0x002b, 0x0003, 0x0000, 0x000e}, jerrors.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.units)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEncodeOperandRange(t *testing.T) {
	_, _, err := Encode([]reloc.Item{&Instruction{Op: OpConst4, Regs: []uint16{16}, Literal: 1}})
	assert.True(t, errors.Is(err, jerrors.ErrOperandRange), "got %v", err)

	_, _, err = Encode([]reloc.Item{&Instruction{Op: OpConst4, Regs: []uint16{0}, Literal: 8}})
	assert.True(t, errors.Is(err, jerrors.ErrOperandRange), "got %v", err)
}

func TestRegisterUsage(t *testing.T) {
	code := []Instruction{
		{Op: OpMoveWide, Regs: []uint16{4, 6}},
		{Op: OpInvokeStatic, Regs: []uint16{0, 1, 2}},
		{Op: 0x31, Regs: []uint16{0, 2, 8}}, // cmp-long v0, v2, v8
	}
	u := RegisterUsage(code)
	if u.Registers != 10 {
		t.Errorf("registers: got %d, want 10", u.Registers)
	}
	if u.Outs != 3 {
		t.Errorf("outs: got %d, want 3", u.Outs)
	}
	assert.Equal(t, 3, InsSize([]string{"J", "I"}, true))
	assert.Equal(t, 2, InsSize([]string{"Ljava/lang/String;"}, false))
}

func TestOpcodeTable(t *testing.T) {
	tests := []struct {
		op     Opcode
		name   string
		format Format
	}{
		{0x01, "move", F12x},
		{0x06, "move-wide/16", F32x},
		{0x44, "aget", F23x},
		{0x58, "iget-short", F22c},
		{0x77, "invoke-static/range", F3rc},
		{0x8f, "int-to-short", F12x},
		{0xa5, "ushr-long", F23x},
		{0xaf, "rem-double", F23x},
		{0xcf, "rem-double/2addr", F12x},
		{0xd1, "rsub-int", F22s},
		{0xe2, "ushr-int/lit8", F22b},
		{0xfa, "invoke-polymorphic", F45cc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := Lookup(tt.op)
			require.True(t, ok)
			assert.Equal(t, tt.name, info.Name)
			assert.Equal(t, tt.format, info.Format)
			op, ok := ByName(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.op, op)
		})
	}
	_, ok := Lookup(0x73)
	assert.False(t, ok)
	assert.Equal(t, OpIfNe, invert(OpIfEq))
	assert.Equal(t, OpIfGtz, invert(OpIfLez))
}
