package classfile

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
)

func TestAddOrGetIsIdempotent(t *testing.T) {
	tests := []struct {
		name string
		c    func() Constant
	}{
		{"utf8", func() Constant { return &ConstantUtf8{Value: "hello"} }},
		{"integer", func() Constant { return &ConstantInteger{Value: -7} }},
		{"float NaN", func() Constant { return &ConstantFloat{Value: float32(math.NaN())} }},
		{"long", func() Constant { return &ConstantLong{Value: 1 << 40} }},
		{"class", func() Constant { return &ConstantClass{NameIndex: 1} }},
		{"name and type", func() Constant { return &ConstantNameAndType{NameIndex: 1, DescriptorIndex: 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewConstantPool()
			first, err := p.AddOrGet(tt.c())
			require.NoError(t, err)
			size := p.Count()
			second, err := p.AddOrGet(tt.c())
			require.NoError(t, err)
			if first != second {
				t.Errorf("index: got %d, want %d", second, first)
			}
			if p.Count() != size {
				t.Errorf("count: got %d, want %d", p.Count(), size)
			}
		})
	}
}

func TestWideConstantsTakeTwoSlots(t *testing.T) {
	p := NewConstantPool()
	l, err := p.Long(5)
	require.NoError(t, err)
	d, err := p.Double(2.5)
	require.NoError(t, err)
	s, err := p.Utf8("x")
	require.NoError(t, err)

	assert.Equal(t, uint16(1), l)
	assert.Equal(t, uint16(3), d)
	assert.Equal(t, uint16(5), s)
	assert.Equal(t, 6, p.Count())

	_, err = p.Get(2)
	assert.True(t, errors.Is(err, jerrors.ErrIndexOutOfRange))
	_, err = p.Get(0)
	assert.True(t, errors.Is(err, jerrors.ErrIndexOutOfRange))
	_, err = p.Get(6)
	assert.True(t, errors.Is(err, jerrors.ErrIndexOutOfRange))
}

func TestMemberrefComposesEntries(t *testing.T) {
	p := NewConstantPool()
	idx, err := p.Methodref("java/lang/Object", "<init>", "()V")
	require.NoError(t, err)
	// Utf8 x3, Class, NameAndType, Methodref
	assert.Equal(t, 7, p.Count())

	again, err := p.Methodref("java/lang/Object", "<init>", "()V")
	require.NoError(t, err)
	assert.Equal(t, idx, again)

	ref, err := p.ResolveMemberref(idx)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", ref.ClassName)
	assert.Equal(t, "<init>", ref.Name)
	assert.Equal(t, "()V", ref.Descriptor)

	_, err = p.GetClassName(idx)
	assert.Error(t, err)
}

func TestRehashAfterMutation(t *testing.T) {
	p := NewConstantPool()
	a, err := p.Utf8("a")
	require.NoError(t, err)
	c, err := p.Get(a)
	require.NoError(t, err)
	c.(*ConstantUtf8).Value = "b"
	p.Rehash()

	b, err := p.Utf8("b")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	fresh, err := p.Utf8("a")
	require.NoError(t, err)
	assert.NotEqual(t, a, fresh)
}

func TestConstantVisitorFallsBackToAny(t *testing.T) {
	p := NewConstantPool()
	_, err := p.Fieldref("A", "f", "I")
	require.NoError(t, err)
	_, err = p.Integer(3)
	require.NoError(t, err)

	var utf8s, others int
	p.Accept(&ConstantVisitor{
		Any:  func(PoolEntry) { others++ },
		Utf8: func(PoolEntry, *ConstantUtf8) { utf8s++ },
	})
	assert.Equal(t, 3, utf8s)
	// Class, NameAndType, Fieldref, Integer
	assert.Equal(t, 4, others)
}
