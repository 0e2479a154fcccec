package dexedit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/reloc"
)

// buildPick は引数が 0 なら 0、それ以外なら 1 を返す static メソッドを組み立てる
func buildPick(t *testing.T) (*dex.File, *dex.EncodedMethod) {
	t.Helper()
	f := dex.NewFile()
	c, err := f.AddClass("LPick;", "Ljava/lang/Object;", dex.AccPublic)
	require.NoError(t, err)
	insns, _, err := dalvik.Encode([]reloc.Item{
		&dalvik.Instruction{Op: dalvik.OpIfEqz, Regs: []uint16{0}, Target: "zero"},
		&dalvik.Instruction{Op: dalvik.OpConst4, Regs: []uint16{0}, Literal: 1},
		&dalvik.Instruction{Op: dalvik.OpReturn, Regs: []uint16{0}},
		reloc.Mark{Label: "zero"},
		&dalvik.Instruction{Op: dalvik.OpConst4, Regs: []uint16{0}, Literal: 0},
		&dalvik.Instruction{Op: dalvik.OpReturn, Regs: []uint16{0}},
	})
	require.NoError(t, err)
	require.Len(t, insns, 6)

	d := &dex.DebugInfo{LineStart: 10, ParameterNames: []uint32{dex.NoIndex}}
	special := func(line int32) dex.DebugOp {
		op, ok := dex.SpecialOp(line, 0)
		require.True(t, ok)
		return dex.DebugOp{Op: op, LineDiff: line}
	}
	require.NoError(t, d.SetEntries([]dex.DebugEntry{
		{Addr: 0, Line: 10, Op: special(0)},
		{Addr: 2, Line: 11, Op: special(1)},
		{Addr: 4, Line: 12, Op: special(2)},
	}))
	code := &dex.Code{Registers: 1, Ins: 1, Insns: insns, Debug: d}
	m, err := f.AddEncodedMethod(c, dex.AccStatic, "pick", "(I)I", code)
	require.NoError(t, err)
	return f, m
}

func instructionAt(t *testing.T, e *CodeEditor, off int) dalvik.Instruction {
	t.Helper()
	for _, in := range e.Instructions() {
		if in.Offset == off {
			return in
		}
	}
	t.Fatalf("no instruction at %d", off)
	return dalvik.Instruction{}
}

func TestPrependRelocatesBranches(t *testing.T) {
	f, m := buildPick(t)
	logM, err := f.AddMethod("LPick;", "log", "(I)V")
	require.NoError(t, err)
	e, err := New(f, m)
	require.NoError(t, err)

	require.NoError(t, e.Prepend(2, &dalvik.Instruction{Op: dalvik.OpInvokeStatic, Regs: []uint16{0}, Index: logM}))
	assert.True(t, e.Dirty())
	require.NoError(t, e.Finish())
	assert.False(t, e.Dirty())

	code := e.Code()
	if got := len(code.Insns); got != 9 {
		t.Errorf("code units: got %d, want 9", got)
	}
	ifeqz := instructionAt(t, e, 0)
	assert.Equal(t, reloc.OffsetLabel(7), ifeqz.Target)
	assert.Equal(t, dalvik.OpInvokeStatic, instructionAt(t, e, 2).Op)
	assert.Equal(t, uint16(1), code.Outs)
	assert.Equal(t, uint16(1), code.Ins)

	// 行番号は元の命令と一緒に動き、先頭に足したコードは元の行を引き継ぐ
	var addrs []uint32
	for _, en := range code.Debug.Entries() {
		addrs = append(addrs, en.Addr)
	}
	assert.Equal(t, []uint32{0, 2, 7}, addrs)
}

func TestRegisterOverflow(t *testing.T) {
	f, m := buildPick(t)
	before := append([]uint16(nil), m.Code.Insns...)
	e, err := New(f, m)
	require.NoError(t, err)

	require.NoError(t, e.Prepend(0, &dalvik.Instruction{Op: dalvik.OpConst4, Regs: []uint16{3}, Literal: 2}))
	err = e.Finish()
	assert.True(t, errors.Is(err, jerrors.ErrOperandRange), "got %v", err)
	// 失敗したときは何も変わらない
	assert.Equal(t, before, m.Code.Insns)
	assert.True(t, e.Dirty())

	e.SetRegisters(4)
	require.NoError(t, e.Finish())
	assert.Equal(t, uint16(4), m.Code.Registers)
}

func TestAddTry(t *testing.T) {
	f, m := buildPick(t)
	exc, err := f.AddType("Ljava/lang/ArithmeticException;")
	require.NoError(t, err)
	e, err := New(f, m)
	require.NoError(t, err)

	start, end := e.NewLabel(), e.NewLabel()
	require.NoError(t, e.Prepend(2, reloc.Mark{Label: start}))
	require.NoError(t, e.Prepend(3, reloc.Mark{Label: end}))
	e.AddTry(start, end, reloc.OffsetLabel(4), exc)
	e.AddTry(reloc.OffsetLabel(4), reloc.OffsetLabel(6), reloc.OffsetLabel(4), dex.NoIndex)
	require.NoError(t, e.Finish())

	tries := m.Code.Tries
	require.Len(t, tries, 2)
	assert.Equal(t, dex.Try{Start: 2, Count: 1, Handler: dex.Handler{Catches: []dex.Catch{{Type: exc, Addr: 4}}}}, tries[0])
	assert.Equal(t, uint32(4), tries[1].Start)
	assert.True(t, tries[1].Handler.HasCatchAll)

	pos, ok := e.LabelOffset(end)
	require.True(t, ok)
	if pos != 3 {
		t.Errorf("end label: got %d, want 3", pos)
	}
}

func TestOverlappingTries(t *testing.T) {
	f, m := buildPick(t)
	e, err := New(f, m)
	require.NoError(t, err)
	e.AddTry(reloc.OffsetLabel(0), reloc.OffsetLabel(3), reloc.OffsetLabel(4), dex.NoIndex)
	e.AddTry(reloc.OffsetLabel(2), reloc.OffsetLabel(4), reloc.OffsetLabel(4), dex.NoIndex)
	err = e.Finish()
	assert.True(t, errors.Is(err, jerrors.ErrFormat), "got %v", err)
	assert.Empty(t, m.Code.Tries)
}

func TestSharedTryRange(t *testing.T) {
	f, m := buildPick(t)
	exc, err := f.AddType("Ljava/lang/Exception;")
	require.NoError(t, err)
	e, err := New(f, m)
	require.NoError(t, err)
	e.AddTry(reloc.OffsetLabel(0), reloc.OffsetLabel(3), reloc.OffsetLabel(4), exc)
	e.AddTry(reloc.OffsetLabel(0), reloc.OffsetLabel(3), reloc.OffsetLabel(3), dex.NoIndex)
	require.NoError(t, e.Finish())

	require.Len(t, m.Code.Tries, 1)
	h := m.Code.Tries[0].Handler
	assert.Equal(t, []dex.Catch{{Type: exc, Addr: 4}}, h.Catches)
	assert.True(t, h.HasCatchAll)
	if h.CatchAll != 3 {
		t.Errorf("catch-all: got %d, want 3", h.CatchAll)
	}

	// catch-all の後ろに型付きハンドラは置けない
	e.AddTry(reloc.OffsetLabel(0), reloc.OffsetLabel(3), reloc.OffsetLabel(4), exc)
	err = e.Finish()
	assert.True(t, errors.Is(err, jerrors.ErrFormat), "got %v", err)
}

func TestEditErrors(t *testing.T) {
	f, m := buildPick(t)
	e, err := New(f, m)
	require.NoError(t, err)

	t.Run("not an instruction", func(t *testing.T) {
		err := e.Prepend(1, &dalvik.Instruction{Op: dalvik.OpNop})
		assert.True(t, errors.Is(err, jerrors.ErrIndexOutOfRange), "got %v", err)
	})
	t.Run("conflicting replace", func(t *testing.T) {
		require.NoError(t, e.Replace(3, &dalvik.Instruction{Op: dalvik.OpReturnVoid}))
		err := e.Remove(3)
		assert.True(t, errors.Is(err, jerrors.ErrConflictingEdit), "got %v", err)
	})
	t.Run("unresolved label", func(t *testing.T) {
		require.NoError(t, e.Append(0, &dalvik.Instruction{Op: dalvik.OpGoto, Target: "nowhere"}))
		err := e.Finish()
		assert.True(t, errors.Is(err, jerrors.ErrUnresolvedLabel), "got %v", err)
	})
}

func TestNewMethodBody(t *testing.T) {
	f := dex.NewFile()
	c, err := f.AddClass("LEmpty;", "Ljava/lang/Object;", dex.AccPublic)
	require.NoError(t, err)

	native, err := f.AddEncodedMethod(c, dex.AccNative, "n", "()V", nil)
	require.NoError(t, err)
	_, err = New(f, native)
	assert.True(t, errors.Is(err, jerrors.ErrFormat), "got %v", err)

	m, err := f.AddEncodedMethod(c, dex.AccPublic, "wide", "(JI)V", nil)
	require.NoError(t, err)
	e, err := New(f, m)
	require.NoError(t, err)
	// this + long(2) + int
	assert.Equal(t, uint16(4), e.Code().Registers)
	require.NoError(t, e.Prepend(0, &dalvik.Instruction{Op: dalvik.OpReturnVoid}))
	require.NoError(t, e.Finish())
	assert.Equal(t, []uint16{0x000e}, m.Code.Insns)
	assert.Equal(t, uint16(4), m.Code.Ins)
}
