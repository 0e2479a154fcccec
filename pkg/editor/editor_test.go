package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/reloc"
)

// buildBranch は引数が 0 なら 0、それ以外なら 1 を返す static メソッドを組み立てる
func buildBranch(t *testing.T) (*classfile.ClassFile, *classfile.MethodInfo) {
	t.Helper()
	cf, err := classfile.New("Branch", "java/lang/Object", classfile.AccPublic|classfile.AccSuper)
	require.NoError(t, err)
	m, err := cf.AddMethod(classfile.AccStatic, "pick", "(I)I")
	require.NoError(t, err)
	code := &classfile.CodeAttribute{MaxStack: 1, MaxLocals: 1, Instructions: []bytecode.Instruction{
		{Offset: 0, Op: bytecode.OpIload0},
		{Offset: 1, Op: bytecode.OpIfeq, Target: reloc.OffsetLabel(6)},
		{Offset: 4, Op: bytecode.OpIconst1},
		{Offset: 5, Op: bytecode.OpIreturn},
		{Offset: 6, Op: bytecode.OpIconst0},
		{Offset: 7, Op: bytecode.OpIreturn},
	}}
	code.ExceptionTable = []classfile.ExceptionHandler{{StartPC: 0, EndPC: 4, HandlerPC: 6}}
	require.NoError(t, cf.AddAttribute(&code.Attributes, &classfile.LineNumberTableAttribute{
		Entries: []classfile.LineNumber{{StartPC: 0, LineNumber: 10}, {StartPC: 4, LineNumber: 11}, {StartPC: 6, LineNumber: 12}},
	}))
	require.NoError(t, cf.AddAttribute(&m.Attributes, code))
	return cf, m
}

func instructionAt(t *testing.T, code *classfile.CodeAttribute, off int) bytecode.Instruction {
	t.Helper()
	for _, in := range code.Instructions {
		if in.Offset == off {
			return in
		}
	}
	t.Fatalf("no instruction at %d", off)
	return bytecode.Instruction{}
}

func TestPrependRelocatesBranches(t *testing.T) {
	cf, m := buildBranch(t)
	e, err := New(cf, m)
	require.NoError(t, err)

	require.NoError(t, e.Prepend(4,
		&bytecode.Instruction{Op: bytecode.OpIconst2},
		&bytecode.Instruction{Op: bytecode.OpPop},
	))
	assert.True(t, e.Dirty())
	require.NoError(t, e.Finish())
	assert.False(t, e.Dirty())

	code := m.Code()
	if got := code.CodeLength(); got != 10 {
		t.Errorf("code length: got %d, want 10", got)
	}
	ifeq := instructionAt(t, code, 1)
	assert.Equal(t, bytecode.OpIfeq, ifeq.Op)
	assert.Equal(t, reloc.OffsetLabel(8), ifeq.Target)
	assert.Equal(t, bytecode.OpIconst0, instructionAt(t, code, 8).Op)

	// 例外テーブルと行番号表も移動する
	require.Len(t, code.ExceptionTable, 1)
	assert.Equal(t, classfile.ExceptionHandler{StartPC: 0, EndPC: 4, HandlerPC: 8}, code.ExceptionTable[0])
	lnt, ok := classfile.FindAttribute(code.Attributes, classfile.AttrLineNumberTable).(*classfile.LineNumberTableAttribute)
	require.True(t, ok)
	assert.Equal(t, []classfile.LineNumber{{StartPC: 0, LineNumber: 10}, {StartPC: 4, LineNumber: 11}, {StartPC: 8, LineNumber: 12}}, lnt.Entries)

	// iconst_2 がスタックを一段深くする
	if code.MaxStack != 2 {
		t.Errorf("max stack: got %d, want 2", code.MaxStack)
	}

	_, err = cf.Bytes()
	require.NoError(t, err)
}

func TestBranchIntoPrependedCode(t *testing.T) {
	cf, m := buildBranch(t)
	e, err := New(cf, m)
	require.NoError(t, err)

	// 分岐先 6 の前に挿入したコードは分岐から到達できる
	require.NoError(t, e.Prepend(6, &bytecode.Instruction{Op: bytecode.OpNop}))
	require.NoError(t, e.Finish())

	code := m.Code()
	assert.Equal(t, reloc.OffsetLabel(6), instructionAt(t, code, 1).Target)
	assert.Equal(t, bytecode.OpNop, instructionAt(t, code, 6).Op)
	assert.Equal(t, bytecode.OpIconst0, instructionAt(t, code, 7).Op)
}

func TestReplaceAndRemove(t *testing.T) {
	cf, m := buildBranch(t)
	e, err := New(cf, m)
	require.NoError(t, err)

	require.NoError(t, e.Replace(4, &bytecode.Instruction{Op: bytecode.OpBipush, Value: 7}))
	err = e.Remove(4)
	assert.True(t, errors.Is(err, jerrors.ErrConflictingEdit), "got %v", err)
	require.NoError(t, e.Finish())

	code := m.Code()
	in := instructionAt(t, code, 4)
	assert.Equal(t, bytecode.OpBipush, in.Op)
	assert.Equal(t, int32(7), in.Value)
	assert.Equal(t, reloc.OffsetLabel(7), instructionAt(t, code, 1).Target)
	assert.Equal(t, uint16(7), code.ExceptionTable[0].HandlerPC)
}

func TestRemoveCollapsesEmptyRange(t *testing.T) {
	cf, m := buildBranch(t)
	code := m.Code()
	code.ExceptionTable = append(code.ExceptionTable, classfile.ExceptionHandler{StartPC: 4, EndPC: 5, HandlerPC: 6})
	e, err := New(cf, m)
	require.NoError(t, err)

	require.NoError(t, e.Remove(4))
	require.NoError(t, e.Finish())
	if got := len(m.Code().ExceptionTable); got != 1 {
		t.Errorf("handlers: got %d, want 1", got)
	}
}

func TestAddExceptionHandler(t *testing.T) {
	cf, err := classfile.New("Guard", "java/lang/Object", classfile.AccSuper)
	require.NoError(t, err)
	m, err := cf.AddMethod(classfile.AccStatic, "run", "()V")
	require.NoError(t, err)

	e, err := New(cf, m)
	require.NoError(t, err)
	start, end, h := e.NewLabel(), e.NewLabel(), e.NewLabel()
	require.NotEqual(t, start, end)

	require.NoError(t, e.Prepend(0,
		reloc.Mark{Label: start},
		&bytecode.Instruction{Op: bytecode.OpReturn},
		reloc.Mark{Label: end},
		reloc.Mark{Label: h},
		&bytecode.Instruction{Op: bytecode.OpAthrow},
	))
	e.AddExceptionHandler(start, end, h, 0)
	require.NoError(t, e.Finish())

	code := m.Code()
	require.NotNil(t, code)
	assert.Equal(t, []classfile.ExceptionHandler{{StartPC: 0, EndPC: 1, HandlerPC: 1}}, code.ExceptionTable)
	if code.MaxStack != 1 {
		t.Errorf("max stack: got %d, want 1", code.MaxStack)
	}
	off, ok := e.LabelOffset(h)
	assert.True(t, ok)
	assert.Equal(t, 1, off)
}

func TestFinishErrors(t *testing.T) {
	t.Run("unresolved label", func(t *testing.T) {
		cf, m := buildBranch(t)
		e, err := New(cf, m)
		require.NoError(t, err)
		require.NoError(t, e.Prepend(0, &bytecode.Instruction{Op: bytecode.OpGoto, Target: e.NewLabel()}))
		err = e.Finish()
		assert.True(t, errors.Is(err, jerrors.ErrUnresolvedLabel), "got %v", err)
		// 失敗してもメソッドは元のまま
		assert.Equal(t, 8, m.Code().CodeLength())
		assert.True(t, e.Dirty())
	})

	t.Run("offset inside an instruction", func(t *testing.T) {
		cf, m := buildBranch(t)
		e, err := New(cf, m)
		require.NoError(t, err)
		assert.Error(t, e.Prepend(2, &bytecode.Instruction{Op: bytecode.OpNop}))
	})

	t.Run("abstract method", func(t *testing.T) {
		cf, err := classfile.New("A", "java/lang/Object", classfile.AccAbstract)
		require.NoError(t, err)
		m, err := cf.AddMethod(classfile.AccAbstract, "f", "()V")
		require.NoError(t, err)
		_, err = New(cf, m)
		assert.Error(t, err)
	})
}

func TestFailedFinishKeepsStackMap(t *testing.T) {
	cf, m := buildBranch(t)
	code := m.Code()
	uninit := classfile.VerificationType{Tag: classfile.ItemUninitialized, Offset: 6}
	smt := &classfile.StackMapTableAttribute{Frames: []classfile.Frame{
		&classfile.SameFrame{OffsetDelta: 4},
		&classfile.FullFrame{OffsetDelta: 1, Locals: []classfile.VerificationType{uninit}},
	}}
	require.NoError(t, cf.AddAttribute(&code.Attributes, smt))

	frames := func() ([]int, uint16) {
		got := classfile.FindAttribute(m.Code().Attributes, classfile.AttrStackMapTable).(*classfile.StackMapTableAttribute)
		return classfile.FrameOffsets(got.Frames), got.Frames[1].(*classfile.FullFrame).Locals[0].Offset
	}

	// 存在しないメソッド参照で解析が失敗する
	e, err := New(cf, m)
	require.NoError(t, err)
	require.NoError(t, e.Prepend(4, &bytecode.Instruction{Op: bytecode.OpInvokestatic, Index: 999}))
	require.Error(t, e.Finish())
	offsets, at := frames()
	assert.Equal(t, []int{4, 6}, offsets)
	assert.Equal(t, uint16(6), at)

	e, err = New(cf, m)
	require.NoError(t, err)
	require.NoError(t, e.Prepend(5,
		&bytecode.Instruction{Op: bytecode.OpIconst2},
		&bytecode.Instruction{Op: bytecode.OpPop},
	))
	require.NoError(t, e.Finish())
	offsets, at = frames()
	assert.Equal(t, []int{4, 8}, offsets)
	assert.Equal(t, uint16(8), at)
}

func TestLongForwardBranchWidens(t *testing.T) {
	cf, m := buildBranch(t)
	e, err := New(cf, m)
	require.NoError(t, err)

	pad := make([]reloc.Item, 0, 33000)
	for range 33000 {
		pad = append(pad, &bytecode.Instruction{Op: bytecode.OpNop})
	}
	require.NoError(t, e.Prepend(4, pad...))
	require.NoError(t, e.Finish())

	// ifeq が逆条件 + goto_w に展開される
	code := m.Code()
	first := instructionAt(t, code, 1)
	assert.Equal(t, bytecode.OpIfne, first.Op)
	wide := instructionAt(t, code, 4)
	assert.Equal(t, bytecode.OpGotoW, wide.Op)
	off, ok := wide.Target.Offset()
	require.True(t, ok)
	assert.Equal(t, bytecode.OpIconst0, instructionAt(t, code, off).Op)
	assert.Equal(t, reloc.OffsetLabel(9), first.Target)
}
