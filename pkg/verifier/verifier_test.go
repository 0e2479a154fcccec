package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/reloc"
)

func TestFramePushPop(t *testing.T) {
	t.Run("tracks max depth", func(t *testing.T) {
		f := NewFrame(0)
		f.Push(1)
		f.Push(2)
		f.Pop(3)
		f.Push(1)
		if f.MaxDepth != 3 {
			t.Errorf("max depth: got %d, want 3", f.MaxDepth)
		}
		if f.Depth != 1 {
			t.Errorf("depth: got %d, want 1", f.Depth)
		}
	})

	t.Run("underflow clamps", func(t *testing.T) {
		f := NewFrame(0)
		f.Push(1)
		if !f.Pop(2) {
			t.Error("expected underflow")
		}
		if f.Depth != 0 {
			t.Errorf("depth: got %d, want 0", f.Depth)
		}
	})

	t.Run("touch widens locals", func(t *testing.T) {
		f := NewFrame(2)
		f.Touch(0, 1)
		f.Touch(3, 2)
		if f.MaxLocals != 5 {
			t.Errorf("max locals: got %d, want 5", f.MaxLocals)
		}
	})
}

func TestAnalyze(t *testing.T) {
	pool := classfile.NewConstantPool()
	out, err := pool.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	require.NoError(t, err)
	msg, err := pool.String("hi")
	require.NoError(t, err)
	printRef, err := pool.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	require.NoError(t, err)
	sum, err := pool.Methodref("Calc", "sum", "(JJ)J")
	require.NoError(t, err)

	tests := []struct {
		name      string
		flags     uint16
		desc      string
		code      []bytecode.Instruction
		handlers  []classfile.ExceptionHandler
		maxStack  int
		maxLocals int
	}{
		{
			name:  "static call",
			flags: classfile.AccStatic,
			desc:  "([Ljava/lang/String;)V",
			code: []bytecode.Instruction{
				{Offset: 0, Op: bytecode.OpGetstatic, Index: out},
				{Offset: 3, Op: bytecode.OpLdc, Index: msg},
				{Offset: 5, Op: bytecode.OpInvokevirtual, Index: printRef},
				{Offset: 8, Op: bytecode.OpReturn},
			},
			maxStack:  2,
			maxLocals: 1,
		},
		{
			name: "wide values on an instance method",
			desc: "(J)J",
			code: []bytecode.Instruction{
				{Offset: 0, Op: bytecode.OpAload0},
				{Offset: 1, Op: bytecode.OpLload1},
				{Offset: 2, Op: bytecode.OpLconst1},
				{Offset: 3, Op: bytecode.OpInvokevirtual, Index: sum},
				{Offset: 6, Op: bytecode.OpLreturn},
			},
			maxStack:  5,
			maxLocals: 3,
		},
		{
			name:  "wide local store",
			flags: classfile.AccStatic,
			desc:  "()V",
			code: []bytecode.Instruction{
				{Offset: 0, Op: bytecode.OpDconst0},
				{Offset: 1, Op: bytecode.OpDstore, Local: 300},
				{Offset: 5, Op: bytecode.OpReturn},
			},
			maxStack:  2,
			maxLocals: 302,
		},
		{
			name:  "handler entry holds the exception",
			flags: classfile.AccStatic,
			desc:  "()V",
			code: []bytecode.Instruction{
				{Offset: 0, Op: bytecode.OpReturn},
				{Offset: 1, Op: bytecode.OpAstore0},
				{Offset: 2, Op: bytecode.OpAload0},
				{Offset: 3, Op: bytecode.OpAconstNull},
				{Offset: 4, Op: bytecode.OpPop2},
				{Offset: 5, Op: bytecode.OpReturn},
			},
			handlers:  []classfile.ExceptionHandler{{StartPC: 0, EndPC: 1, HandlerPC: 1}},
			maxStack:  2,
			maxLocals: 1,
		},
		{
			name:  "depth carried to a forward branch target",
			flags: classfile.AccStatic,
			desc:  "(I)I",
			code: []bytecode.Instruction{
				{Offset: 0, Op: bytecode.OpIconst1},
				{Offset: 1, Op: bytecode.OpIload0},
				{Offset: 2, Op: bytecode.OpIfeq, Target: reloc.OffsetLabel(9)},
				{Offset: 5, Op: bytecode.OpIconst2},
				{Offset: 6, Op: bytecode.OpIadd},
				{Offset: 7, Op: bytecode.OpIreturn},
				{Offset: 8, Op: bytecode.OpNop},
				{Offset: 9, Op: bytecode.OpIconst3},
				{Offset: 10, Op: bytecode.OpIadd},
				{Offset: 11, Op: bytecode.OpIreturn},
			},
			maxStack:  2,
			maxLocals: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Analyze(pool, tt.flags, tt.desc, tt.code, tt.handlers)
			require.NoError(t, err)
			if res.MaxStack != tt.maxStack {
				t.Errorf("max stack: got %d, want %d", res.MaxStack, tt.maxStack)
			}
			if res.MaxLocals != tt.maxLocals {
				t.Errorf("max locals: got %d, want %d", res.MaxLocals, tt.maxLocals)
			}
		})
	}
}

func TestAnalyzeAppendingPushesNeverShrinks(t *testing.T) {
	pool := classfile.NewConstantPool()
	pushes := []bytecode.Opcode{bytecode.OpIconst0, bytecode.OpLconst1, bytecode.OpPop, bytecode.OpDconst1, bytecode.OpAconstNull}
	var code []bytecode.Instruction
	prev := 0
	for i, op := range pushes {
		code = append(code, bytecode.Instruction{Offset: i, Op: op})
		res, err := Analyze(pool, classfile.AccStatic, "()V", code, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.MaxStack, prev)
		prev = res.MaxStack
	}
	assert.Equal(t, 5, prev)
}

func TestAnalyzeUnresolvableMember(t *testing.T) {
	pool := classfile.NewConstantPool()
	_, err := Analyze(pool, classfile.AccStatic, "()V", []bytecode.Instruction{
		{Offset: 0, Op: bytecode.OpGetstatic, Index: 9},
	}, nil)
	assert.Error(t, err)

	_, err = Analyze(pool, 0, "bad", nil, nil)
	assert.Error(t, err)
}
