package classfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/byteio"
)

// buildHello は System.out.println("Hello, World!") を呼ぶ main を持つクラスを組み立てる
func buildHello(t *testing.T) *ClassFile {
	t.Helper()
	cf, err := New("Hello", "java/lang/Object", AccPublic|AccSuper)
	require.NoError(t, err)
	pool := cf.ConstantPool

	out, err := pool.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	require.NoError(t, err)
	msg, err := pool.String("Hello, World!")
	require.NoError(t, err)
	printRef, err := pool.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	require.NoError(t, err)

	m, err := cf.AddMethod(AccPublic|AccStatic, "main", "([Ljava/lang/String;)V")
	require.NoError(t, err)
	code := &CodeAttribute{MaxStack: 2, MaxLocals: 1, Instructions: []bytecode.Instruction{
		{Offset: 0, Op: bytecode.OpGetstatic, Index: out},
		{Offset: 3, Op: bytecode.OpLdc, Index: msg},
		{Offset: 5, Op: bytecode.OpInvokevirtual, Index: printRef},
		{Offset: 8, Op: bytecode.OpReturn},
	}}
	require.NoError(t, cf.AddAttribute(&m.Attributes, code))

	src, err := pool.Utf8("Hello.java")
	require.NoError(t, err)
	require.NoError(t, cf.AddAttribute(&cf.Attributes, &SourceFileAttribute{SourceFileIndex: src}))
	return cf
}

func TestParseClassFile(t *testing.T) {
	data, err := buildHello(t).Bytes()
	require.NoError(t, err)

	cf, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse Hello: %v", err)
	}

	if cf.MajorVersion != DefaultMajorVersion {
		t.Errorf("major version: got %d, want %d", cf.MajorVersion, DefaultMajorVersion)
	}

	// this_class が "Hello" を指すこと
	className, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving this_class: %v", err)
	}
	if className != "Hello" {
		t.Errorf("this_class: got %q, want %q", className, "Hello")
	}
	if got := cf.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("super_class: got %q, want %q", got, "java/lang/Object")
	}

	mainMethod := cf.FindMethod("main", "([Ljava/lang/String;)V")
	if mainMethod == nil {
		t.Fatal("main method not found")
	}
	code := mainMethod.Code()
	if code == nil {
		t.Fatal("main method has no Code attribute")
	}
	require.Len(t, code.Instructions, 4)
	assert.Equal(t, bytecode.OpLdc, code.Instructions[1].Op)
	assert.Equal(t, 9, code.CodeLength())

	ref, err := cf.ConstantPool.ResolveMemberref(code.Instructions[2].Index)
	require.NoError(t, err)
	assert.Equal(t, &MemberRef{ClassName: "java/io/PrintStream", Name: "println", Descriptor: "(Ljava/lang/String;)V"}, ref)

	// 書き戻したバイト列が元と一致すること
	again, err := cf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	if err == nil {
		t.Fatal("expected error for invalid magic number, got nil")
	}
	assert.True(t, errors.Is(err, jerrors.ErrBadMagic))
}

func TestParseRejectsMalformedInput(t *testing.T) {
	data, err := buildHello(t).Bytes()
	require.NoError(t, err)

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := ParseBytes(append(append([]byte(nil), data...), 0))
		assert.True(t, errors.Is(err, jerrors.ErrFormat))
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := ParseBytes(data[:len(data)-3])
		assert.Error(t, err)
	})
	t.Run("unknown constant tag", func(t *testing.T) {
		bad := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52, 0, 2, 2}
		_, err := ParseBytes(bad)
		assert.True(t, errors.Is(err, jerrors.ErrUnknownTag))
	})
}

func TestStackMapFrameTags(t *testing.T) {
	data := []byte{
		0x00, 0x08,
		// same_frame, delta 63
		63,
		// same_locals_1_stack_item, delta 0, int
		64, 0x01,
		// extended, delta 5, Object #3
		247, 0x00, 0x05, 0x07, 0x00, 0x03,
		// chop 2
		249, 0x00, 0x07,
		// same_frame_extended
		251, 0x00, 0x08,
		// append int, float
		253, 0x00, 0x00, 0x01, 0x02,
		// full frames
		255, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		255, 0x00, 0x02, 0x00, 0x02, 0x01, 0x07, 0x00, 0x03, 0x00, 0x01, 0x04,
	}
	a, err := parseAttribute(AttrStackMapTable, data, NewConstantPool())
	require.NoError(t, err)
	frames := a.(*StackMapTableAttribute).Frames
	require.Len(t, frames, 8)

	assert.Equal(t, &SameFrame{OffsetDelta: 63}, frames[0])
	assert.Equal(t, &SameLocals1StackItemFrame{OffsetDelta: 0, Stack: VerificationType{Tag: ItemInteger}}, frames[1])
	assert.Equal(t, &SameLocals1StackItemFrame{OffsetDelta: 5, Extended: true, Stack: VerificationType{Tag: ItemObject, Index: 3}}, frames[2])
	assert.Equal(t, &ChopFrame{OffsetDelta: 7, Chopped: 2}, frames[3])
	assert.Equal(t, &SameFrame{OffsetDelta: 8, Extended: true}, frames[4])
	assert.Len(t, frames[5].(*AppendFrame).Locals, 2)
	assert.Empty(t, frames[6].(*FullFrame).Locals)
	assert.Empty(t, frames[6].(*FullFrame).Stack)
	assert.Len(t, frames[7].(*FullFrame).Locals, 2)
	assert.Equal(t, []VerificationType{{Tag: ItemLong}}, frames[7].(*FullFrame).Stack)

	w := byteio.NewWriter(binary.BigEndian)
	require.NoError(t, writeFrames(w, frames))
	assert.Equal(t, data, w.Bytes())

	assert.Equal(t, []int{63, 64, 70, 78, 87, 88, 90, 93}, FrameOffsets(frames))
}

func TestStackMapFramePromotion(t *testing.T) {
	w := byteio.NewWriter(binary.BigEndian)
	require.NoError(t, writeFrames(w, []Frame{
		&SameFrame{OffsetDelta: 100},
		&SameLocals1StackItemFrame{OffsetDelta: 64, Stack: VerificationType{Tag: ItemNull}},
	}))
	assert.Equal(t, []byte{0x00, 0x02, 251, 0x00, 100, 247, 0x00, 64, 0x05}, w.Bytes())

	_, err := parseAttribute(AttrStackMapTable, []byte{0x00, 0x01, 200}, NewConstantPool())
	assert.True(t, errors.Is(err, jerrors.ErrUnknownTag))
}

func TestAttributeRoundTrip(t *testing.T) {
	cf := buildHello(t)
	pool := cf.ConstantPool
	desc, err := pool.Utf8("Ljava/lang/Deprecated;")
	require.NoError(t, err)
	key, err := pool.Utf8("since")
	require.NoError(t, err)
	val, err := pool.Utf8("1.0")
	require.NoError(t, err)
	num, err := pool.Integer(42)
	require.NoError(t, err)

	ann := &AnnotationsAttribute{Visible: true, Annotations: []Annotation{{
		TypeIndex: desc,
		Elements: []ElementPair{
			{NameIndex: key, Value: &ConstElement{ElemTag: 's', ConstIndex: val}},
			{NameIndex: key, Value: &ArrayElement{Values: []ElementValue{
				&ConstElement{ElemTag: 'I', ConstIndex: num},
				&EnumElement{TypeNameIndex: desc, ConstNameIndex: key},
				&AnnotationElement{Annotation: Annotation{TypeIndex: desc}},
			}}},
		},
	}}}
	require.NoError(t, cf.AddAttribute(&cf.Attributes, ann))
	require.NoError(t, cf.AddAttribute(&cf.Attributes, &UnknownAttribute{AttrName: "Custom", Data: []byte{1, 2, 3}}))
	require.NoError(t, cf.AddAttribute(&cf.Attributes, &DeprecatedAttribute{}))

	data, err := cf.Bytes()
	require.NoError(t, err)
	parsed, err := ParseBytes(data)
	require.NoError(t, err)

	got, ok := FindAttribute(parsed.Attributes, AttrRuntimeVisibleAnnotations).(*AnnotationsAttribute)
	require.True(t, ok)
	assert.Equal(t, ann.Annotations, got.Annotations)
	unknown, ok := FindAttribute(parsed.Attributes, "Custom").(*UnknownAttribute)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, unknown.Data)

	again, err := parsed.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestWriteRejectsUnnamedAttribute(t *testing.T) {
	cf := buildHello(t)
	cf.Attributes = append(cf.Attributes, &SyntheticAttribute{})
	_, err := cf.Bytes()
	assert.True(t, errors.Is(err, jerrors.ErrIndexOutOfRange))
}
