package dump

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdex/pkg/asm/dasm"
	"github.com/daimatz/jdex/pkg/asm/jasm"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dex"
)

const greeterSrc = `.class public super demo/Greeter
.super java/lang/Object
.field private static final COUNT I = 3

.method public static greet (I)Ljava/lang/String;
    iload_0
    ifle Empty
    ldc "hello"
    areturn
Empty:
    ldc ""
    areturn
.end method
`

func assembleClass(t *testing.T, src string) *classfile.ClassFile {
	t.Helper()
	cf, err := jasm.Assemble("test.j", []byte(src), jasm.Options{})
	require.NoError(t, err)
	return cf
}

func TestClass(t *testing.T) {
	cf := assembleClass(t, greeterSrc)

	t.Run("summary", func(t *testing.T) {
		var buf bytes.Buffer
		p := New(&buf, Options{})
		p.Class(cf)
		require.NoError(t, p.Err())
		out := buf.String()
		assert.Contains(t, out, "public class demo/Greeter extends java/lang/Object\n")
		assert.Contains(t, out, "  field private static final COUNT I\n")
		assert.Contains(t, out, "  method public static greet(I)Ljava/lang/String;\n")
		assert.NotContains(t, out, "constant pool")
		assert.NotContains(t, out, "ifle")
	})

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		p := New(&buf, Options{Verbose: true})
		p.Class(cf)
		require.NoError(t, p.Err())
		out := buf.String()
		assert.Contains(t, out, "constant pool:")
		assert.Contains(t, out, `Utf8               "hello"`)
		assert.Contains(t, out, "          0: iload_0\n")
		assert.Contains(t, out, "          1: ifle 7\n")
		assert.Contains(t, out, `// String "hello"`)
	})
}

func TestClassesFilter(t *testing.T) {
	a := assembleClass(t, greeterSrc)
	b := assembleClass(t, strings.Replace(greeterSrc, "demo/Greeter", "other/Thing", 1))
	c := assembleClass(t, strings.Replace(greeterSrc, "demo/Greeter", "demo/Other", 1))

	var buf bytes.Buffer
	p := New(&buf, Options{Filter: regexp.MustCompile(`^demo/`)})
	v := p.Classes()
	for _, cf := range []*classfile.ClassFile{a, b, c} {
		v.Visit(cf)
	}
	require.NoError(t, p.Err())
	out := buf.String()
	assert.Contains(t, out, "demo/Greeter")
	assert.Contains(t, out, "demo/Other")
	assert.NotContains(t, out, "other/Thing")
	// クラスの間には空行がひとつだけ入る
	assert.Equal(t, 1, strings.Count(out, "\n\n"))
}

func TestClassAnnotations(t *testing.T) {
	cf := assembleClass(t, greeterSrc)
	typ, err := cf.ConstantPool.Utf8("Ljava/lang/Deprecated;")
	require.NoError(t, err)
	cf.Attributes = append(cf.Attributes, &classfile.AnnotationsAttribute{
		Visible:     true,
		Annotations: []classfile.Annotation{{TypeIndex: typ}},
	})

	var buf bytes.Buffer
	p := New(&buf, Options{Annotations: true})
	p.Class(cf)
	require.NoError(t, p.Err())
	assert.Contains(t, buf.String(), "  @Ljava/lang/Deprecated; // visible\n")

	buf.Reset()
	p = New(&buf, Options{})
	p.Class(cf)
	assert.NotContains(t, buf.String(), "Deprecated")
}

const pickSrc = `.class public LPick;
.super Ljava/lang/Object;
.source "Pick.java"
.field static final NAME:Ljava/lang/String; = string "pick"

.method public static pick(I)I
    .registers 2
    if-eqz p0, zero
    const/4 v0, 1
    return v0
zero:
    const/4 v0, 0
    return v0
.end method
`

func assembleDex(t *testing.T, src string) *dex.File {
	t.Helper()
	f := dex.NewFile()
	_, err := dasm.Assemble(f, "test.d", []byte(src), dasm.Options{})
	require.NoError(t, err)
	return f
}

func TestDex(t *testing.T) {
	f := assembleDex(t, pickSrc)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{}).Dex(f))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "dex 035: "), "got %q", out)
	assert.Contains(t, out, "\npublic class LPick; extends Ljava/lang/Object;\n")
	assert.Contains(t, out, "  source \"Pick.java\"\n")
	assert.Contains(t, out, `  field static final NAME Ljava/lang/String; = "pick"`)
	assert.Contains(t, out, "  method public static pick(I)I\n")
	assert.NotContains(t, out, "if-eqz")

	buf.Reset()
	require.NoError(t, New(&buf, Options{Verbose: true}).Dex(f))
	out = buf.String()
	assert.Contains(t, out, "strings:")
	assert.Contains(t, out, "registers=2 ins=1 outs=0 units=6\n")
	assert.Contains(t, out, "0000: if-eqz v1, 0004\n")
	assert.Contains(t, out, "0002: const/4 v0, #1\n")
}

func TestDexFilter(t *testing.T) {
	f := assembleDex(t, pickSrc+"\n.class LOther;\n")
	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{Filter: regexp.MustCompile(`Other`)}).Dex(f))
	assert.Contains(t, buf.String(), "class LOther;")
	assert.NotContains(t, buf.String(), "LPick;")
}

func TestColor(t *testing.T) {
	f := assembleDex(t, pickSrc)
	var plain, colored bytes.Buffer
	require.NoError(t, New(&plain, Options{}).Dex(f))
	require.NoError(t, New(&colored, Options{Color: true}).Dex(f))
	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
}
