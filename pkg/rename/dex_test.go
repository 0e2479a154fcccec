package rename

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/reloc"
)

// buildDexFoo は Foo が Bar を参照し、同名の文字列リテラルも持つ dex を作る
func buildDexFoo(t *testing.T) *dex.File {
	t.Helper()
	f := dex.NewFile()
	c, err := f.AddClass("Lcom/acme/Foo;", "Ljava/lang/Object;", dex.AccPublic)
	require.NoError(t, err)
	_, err = f.AddEncodedField(c, dex.AccPrivate, "bar", "[Lcom/acme/Bar;", nil)
	require.NoError(t, err)

	literal := f.AddString("Lcom/acme/Bar;")
	mk, err := f.AddMethod("Lcom/acme/Bar;", "make", "(Ljava/lang/String;)Lcom/acme/Foo;")
	require.NoError(t, err)
	insns, _, err := dalvik.Encode([]reloc.Item{
		&dalvik.Instruction{Op: dalvik.OpConstString, Regs: []uint16{0}, Index: literal},
		&dalvik.Instruction{Op: dalvik.OpInvokeStatic, Regs: []uint16{0}, Index: mk},
		&dalvik.Instruction{Op: dalvik.OpReturnVoid},
	})
	require.NoError(t, err)
	_, err = f.AddEncodedMethod(c, dex.AccStatic, "build", "()V", &dex.Code{Registers: 1, Outs: 1, Insns: insns})
	require.NoError(t, err)

	sigType, err := f.AddType("Ldalvik/annotation/Signature;")
	require.NoError(t, err)
	fragments := []dex.EncodedValue{
		dex.IndexValue(dex.ValueString, f.AddString("Ljava/util/List<")),
		dex.IndexValue(dex.ValueString, f.AddString("Lcom/acme/Bar;")),
		dex.IndexValue(dex.ValueString, f.AddString(">;")),
	}
	c = f.FindClass("Lcom/acme/Foo;")
	c.Annotations = &dex.AnnotationsDirectory{Fields: []dex.FieldAnnotations{{
		Field: c.Data.InstanceFields[0].Field,
		Set: dex.AnnotationSet{{Visibility: dex.VisibilitySystem, Annotation: dex.EncodedAnnotation{
			Type: sigType,
			Elements: []dex.AnnotationElement{{
				Name:  f.AddString("value"),
				Value: dex.EncodedValue{Type: dex.ValueArray, Array: fragments},
			}},
		}}},
	}}}
	return f
}

func TestRenameDex(t *testing.T) {
	f := buildDexFoo(t)
	require.NoError(t, Dex(f, FromMap(map[string]string{"com/acme/": "org/example/"})))

	var types []string
	for i := range f.Types {
		name, err := f.TypeName(uint32(i))
		require.NoError(t, err)
		types = append(types, name)
	}
	assert.Contains(t, types, "Lorg/example/Foo;")
	assert.Contains(t, types, "[Lorg/example/Bar;")
	assert.NotContains(t, types, "Lcom/acme/Foo;")
	assert.NotContains(t, types, "Lcom/acme/Bar;")

	c := f.FindClass("Lorg/example/Foo;")
	require.NotNil(t, c)
	ref, err := f.FieldRef(c.Data.InstanceFields[0].Field)
	require.NoError(t, err)
	assert.Equal(t, "Lorg/example/Foo;->bar:[Lorg/example/Bar;", ref.String())

	code, err := dalvik.Decode(c.Data.DirectMethods[0].Code.Insns)
	require.NoError(t, err)
	// 文字列リテラルはそのまま
	lit, err := f.String(code[0].Index)
	require.NoError(t, err)
	assert.Equal(t, "Lcom/acme/Bar;", lit)
	m, err := f.MethodRef(code[1].Index)
	require.NoError(t, err)
	assert.Equal(t, "Lorg/example/Bar;->make:(Ljava/lang/String;)Lorg/example/Foo;", m.String())

	// シグネチャは 1 つの断片にまとめ直される
	frags := c.Annotations.Fields[0].Set[0].Annotation.Elements[0].Value.Array
	require.Len(t, frags, 1)
	sig, err := f.String(frags[0].Index)
	require.NoError(t, err)
	assert.Equal(t, "Ljava/util/List<Lorg/example/Bar;>;", sig)

	// 書き出せる
	_, err = f.Bytes()
	require.NoError(t, err)
}

func TestRenameDexIdentity(t *testing.T) {
	f := buildDexFoo(t)
	require.NoError(t, Dex(f, nil))
	assert.NotNil(t, f.FindClass("Lcom/acme/Foo;"))
	frags := f.FindClass("Lcom/acme/Foo;").Annotations.Fields[0].Set[0].Annotation.Elements[0].Value.Array
	assert.Len(t, frags, 3)
}
