package rename

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/shrink"
)

// buildFoo は com/acme パッケージのクラスを参照する Foo を組み立てる
func buildFoo(t *testing.T) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.New("com/acme/Foo", "java/lang/Object", classfile.AccPublic|classfile.AccSuper)
	require.NoError(t, err)
	pool := cf.ConstantPool

	_, err = cf.AddField(classfile.AccPrivate, "bar", "Lcom/acme/Bar;")
	require.NoError(t, err)

	literal, err := pool.String("com/acme/Bar")
	require.NoError(t, err)
	arr, err := pool.Class("[Lcom/acme/Bar;")
	require.NoError(t, err)
	makeRef, err := pool.Methodref("com/acme/Bar", "make", "(Ljava/lang/String;)[Lcom/acme/Foo;")
	require.NoError(t, err)

	m, err := cf.AddMethod(classfile.AccStatic, "build", "(Lcom/acme/Bar;)[Lcom/acme/Foo;")
	require.NoError(t, err)
	code := &classfile.CodeAttribute{MaxStack: 1, MaxLocals: 1, Instructions: []bytecode.Instruction{
		{Offset: 0, Op: bytecode.OpAload0},
		{Offset: 1, Op: bytecode.OpCheckcast, Index: arr},
		{Offset: 4, Op: bytecode.OpPop},
		{Offset: 5, Op: bytecode.OpLdc, Index: literal},
		{Offset: 7, Op: bytecode.OpInvokestatic, Index: makeRef},
		{Offset: 10, Op: bytecode.OpAreturn},
	}}
	require.NoError(t, cf.AddAttribute(&m.Attributes, code))

	sig, err := pool.Utf8("Ljava/util/List<Lcom/acme/Bar;>;")
	require.NoError(t, err)
	f := &cf.Fields[0]
	require.NoError(t, cf.AddAttribute(&f.Attributes, &classfile.SignatureAttribute{SignatureIndex: sig}))
	return cf
}

func TestRenamePackage(t *testing.T) {
	cf := buildFoo(t)
	require.NoError(t, Class(cf, FromMap(map[string]string{"com/acme/": "org/example/"}), shrink.Options{}))

	pool := cf.ConstantPool
	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "org/example/Foo", name)

	desc, err := pool.GetUtf8(cf.Fields[0].DescriptorIndex)
	require.NoError(t, err)
	assert.Equal(t, "Lorg/example/Bar;", desc)

	sig := classfile.FindAttribute(cf.Fields[0].Attributes, classfile.AttrSignature).(*classfile.SignatureAttribute)
	s, err := pool.GetUtf8(sig.SignatureIndex)
	require.NoError(t, err)
	assert.Equal(t, "Ljava/util/List<Lorg/example/Bar;>;", s)

	m := cf.FindMethod("build", "(Lorg/example/Bar;)[Lorg/example/Foo;")
	require.NotNil(t, m)
	code := m.Code()

	arr, err := pool.GetClassName(code.Instructions[1].Index)
	require.NoError(t, err)
	assert.Equal(t, "[Lorg/example/Bar;", arr)

	// 文字列リテラルはクラス名として使われていないので変わらない
	str, err := pool.Get(code.Instructions[3].Index)
	require.NoError(t, err)
	lit, err := pool.GetUtf8(str.(*classfile.ConstantString).StringIndex)
	require.NoError(t, err)
	assert.Equal(t, "com/acme/Bar", lit)

	ref, err := pool.ResolveMemberref(code.Instructions[4].Index)
	require.NoError(t, err)
	assert.Equal(t, "org/example/Bar", ref.ClassName)
	assert.Equal(t, "(Ljava/lang/String;)[Lorg/example/Foo;", ref.Descriptor)

	// 旧名の記述子はプールから消える
	pool.Each(func(_ uint16, c classfile.Constant) {
		if u, ok := c.(*classfile.ConstantUtf8); ok {
			assert.NotContains(t, u.Value, "Lcom/acme/")
			assert.NotEqual(t, "com/acme/Foo", u.Value)
		}
	})

	data, err := cf.Bytes()
	require.NoError(t, err)
	_, err = classfile.ParseBytes(data)
	require.NoError(t, err)
}

func TestRenameIdentityKeepsBytes(t *testing.T) {
	cf := buildFoo(t)
	before, err := cf.Bytes()
	require.NoError(t, err)

	require.NoError(t, Class(cf, Identity, shrink.Options{}))
	after, err := cf.Bytes()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after), "identity rename changed the class")
}

func TestFromMap(t *testing.T) {
	p := FromMap(map[string]string{
		"a/B":    "x/Y",
		"a/":     "p/",
		"a/b/c/": "q/",
	})
	tests := []struct {
		in, want string
	}{
		{"a/B", "x/Y"},
		{"a/C", "p/C"},
		{"a/b/c/D", "q/D"},
		{"b/C", "b/C"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := p(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
