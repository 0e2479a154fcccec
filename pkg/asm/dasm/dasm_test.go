package dasm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/reloc"
)

const demoSrc = `.class public final LDemo;
.super Ljava/lang/Object;
.implements Ljava/lang/Runnable;
.source "Demo.java"

.field public static final COUNT:I = int 5
.field static NAME:Ljava/lang/String; = string "demo"
.field private count:J

.method public constructor <init>()V
    .registers 1
    invoke-direct {p0}, Ljava/lang/Object;-><init>()V
    return-void
.end method

# key が 1 なら 100、2 なら 200000、それ以外は -1
.method public static pick(I)I
    .registers 3
    .param 0, "key"
    .catch Ljava/lang/RuntimeException; {start .. end} handler
    .catchall {start .. end} cleanup
    .line 10
start:
    packed-switch p0, table
    const/4 v0, -1
    return v0
one:
    .line 12
    const/16 v0, 100
    return v0
two:
    const v0, 200000
end:
    return v0
handler:
    move-exception v1
    .local v1, "e", Ljava/lang/RuntimeException;
    const/4 v0, 0
    return v0
cleanup:
    move-exception v1
    throw v1
table:
    .packed-switch 1
        one
        two
    .end packed-switch
.end method

.method static table()[I
    .registers 2
    const/4 v0, 3
    new-array v0, v0, [I
    fill-array-data v0, data
    return-object v0
data:
    .array-data 4
        1 2 -3
    .end array-data
.end method

.method static code(I)Ljava/lang/String;
    .registers 2
    sparse-switch p0, keys
    const-string v0, "other"
    return-object v0
ten:
    const-string v0, "ten"
    return-object v0
keys:
    .sparse-switch
        -5 -> ten
        10 -> ten
    .end sparse-switch
.end method

.method public run()V
    .registers 4
    iget-wide v0, p0, LDemo;->count:J
    invoke-static/range {v0 .. v1}, Ljava/lang/Long;->valueOf(J)Ljava/lang/Long;
    return-void
.end method

.method public native peek()I
.end method
`

func assemble(t *testing.T, src string) *dex.File {
	t.Helper()
	f := dex.NewFile()
	_, err := Assemble(f, "test.d", []byte(src), Options{})
	require.NoError(t, err)
	return f
}

func disassemble(t *testing.T, f *dex.File) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, DisassembleFile(f, &buf))
	return buf.String()
}

func findMethod(t *testing.T, f *dex.File, class, name string) *dex.EncodedMethod {
	t.Helper()
	c := f.FindClass(class)
	require.NotNil(t, c, "class %s", class)
	for _, m := range c.Data.Methods() {
		ref, err := f.MethodRef(m.Method)
		require.NoError(t, err)
		if ref.Name == name {
			return m
		}
	}
	t.Fatalf("no method %s in %s", name, class)
	return nil
}

func decode(t *testing.T, code *dex.Code) []dalvik.Instruction {
	t.Helper()
	insns, err := dalvik.Decode(code.Insns)
	require.NoError(t, err)
	return insns
}

func TestAssembleDemo(t *testing.T) {
	f := dex.NewFile()
	classes, err := Assemble(f, "demo.d", []byte(demoSrc), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"LDemo;"}, classes)

	c := f.FindClass("LDemo;")
	require.NotNil(t, c)
	assert.Equal(t, uint32(dex.AccPublic|dex.AccFinal), c.Access)
	require.Len(t, c.Interfaces, 1)
	src, err := f.String(c.SourceFile)
	require.NoError(t, err)
	assert.Equal(t, "Demo.java", src)

	require.Len(t, c.Data.StaticFields, 2)
	require.Len(t, c.Data.InstanceFields, 1)
	assert.Equal(t, int64(5), c.Data.StaticFields[0].Value.Int())
	name, err := f.String(c.Data.StaticFields[1].Value.Index)
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
	assert.Len(t, c.Data.DirectMethods, 4)
	assert.Len(t, c.Data.VirtualMethods, 2)

	t.Run("constructor", func(t *testing.T) {
		m := findMethod(t, f, "LDemo;", "<init>")
		assert.NotZero(t, m.Access&dex.AccConstructor)
		insns := decode(t, m.Code)
		require.Len(t, insns, 2)
		assert.Equal(t, []uint16{0}, insns[0].Regs)
		if m.Code.Outs != 1 {
			t.Errorf("outs: got %d, want 1", m.Code.Outs)
		}
	})

	t.Run("packed switch", func(t *testing.T) {
		code := findMethod(t, f, "LDemo;", "pick").Code
		if len(code.Insns) != 26 {
			t.Errorf("length: got %d, want 26", len(code.Insns))
		}
		assert.Equal(t, uint16(3), code.Registers)
		assert.Equal(t, uint16(1), code.Ins)
		assert.Equal(t, uint16(0), code.Outs)

		insns := decode(t, code)
		// p0 は最後のレジスタ
		assert.Equal(t, []uint16{2}, insns[0].Regs)
		assert.Equal(t, reloc.Label("@18"), insns[0].Target)
		last := insns[len(insns)-1]
		ps, ok := last.Payload.(*dalvik.PackedSwitch)
		require.True(t, ok, "got %T", last.Payload)
		assert.Equal(t, int32(1), ps.FirstKey)
		assert.Equal(t, reloc.Label("@0"), ps.Base)
		assert.Equal(t, []reloc.Label{"@5", "@8"}, ps.Targets)

		exc, err := f.AddType("Ljava/lang/RuntimeException;")
		require.NoError(t, err)
		require.Len(t, code.Tries, 1)
		assert.Equal(t, dex.Try{Start: 0, Count: 11, Handler: dex.Handler{
			Catches:     []dex.Catch{{Type: exc, Addr: 12}},
			HasCatchAll: true,
			CatchAll:    15,
		}}, code.Tries[0])
	})

	t.Run("debug info", func(t *testing.T) {
		d := findMethod(t, f, "LDemo;", "pick").Code.Debug
		require.NotNil(t, d)
		assert.Equal(t, uint32(10), d.LineStart)
		require.Len(t, d.ParameterNames, 1)
		key, err := f.String(d.ParameterNames[0])
		require.NoError(t, err)
		assert.Equal(t, "key", key)

		entries := d.Entries()
		require.Len(t, entries, 3)
		tests := []struct {
			addr uint32
			line int64
		}{{0, 10}, {5, 12}}
		for i, tt := range tests {
			if entries[i].Addr != tt.addr || entries[i].Line != tt.line {
				t.Errorf("entry %d: got %d:%d, want %d:%d", i, entries[i].Addr, entries[i].Line, tt.addr, tt.line)
			}
		}
		local := entries[2]
		assert.Equal(t, uint32(13), local.Addr)
		assert.Equal(t, uint8(dex.DbgStartLocal), local.Op.Op)
		assert.Equal(t, uint32(1), local.Op.Register)
	})

	t.Run("array data", func(t *testing.T) {
		code := findMethod(t, f, "LDemo;", "table").Code
		if len(code.Insns) != 18 {
			t.Errorf("length: got %d, want 18", len(code.Insns))
		}
		insns := decode(t, code)
		ad, ok := insns[len(insns)-1].Payload.(*dalvik.ArrayData)
		require.True(t, ok)
		assert.Equal(t, []int64{1, 2, -3}, ad.Values())
	})

	t.Run("sparse switch", func(t *testing.T) {
		insns := decode(t, findMethod(t, f, "LDemo;", "code").Code)
		ss, ok := insns[len(insns)-1].Payload.(*dalvik.SparseSwitch)
		require.True(t, ok)
		assert.Equal(t, []int32{-5, 10}, ss.Keys)
		assert.Equal(t, []reloc.Label{"@6", "@6"}, ss.Targets)
	})

	t.Run("range invoke", func(t *testing.T) {
		m := findMethod(t, f, "LDemo;", "run")
		insns := decode(t, m.Code)
		assert.Equal(t, []uint16{0, 3}, insns[0].Regs)
		assert.Equal(t, []uint16{0, 1}, insns[1].Regs)
		assert.Equal(t, uint16(2), m.Code.Outs)
	})

	t.Run("native", func(t *testing.T) {
		assert.Nil(t, findMethod(t, f, "LDemo;", "peek").Code)
	})
}

func TestDisassembleRoundTrip(t *testing.T) {
	f := assemble(t, demoSrc)
	text := disassemble(t, f)
	for _, want := range []string{
		".class public final LDemo;\n.super Ljava/lang/Object;\n",
		".field public static final COUNT:I = int 5\n",
		".field static NAME:Ljava/lang/String; = string \"demo\"\n",
		".method public constructor <init>()V\n",
		"    .param 0, \"key\"\n",
		"    .catch Ljava/lang/RuntimeException; {L0 .. L11} L12\n",
		"    .catchall {L0 .. L11} L15\n",
		"L0:\n    .line 10\n    packed-switch v2, L18\n",
		"    .local v1, \"e\", Ljava/lang/RuntimeException;\n",
		"L18:\n    .packed-switch 1\n        L5\n        L8\n    .end packed-switch\n",
		"    .array-data 4\n        1 2 -3\n    .end array-data\n",
		"        -5 -> L6\n        10 -> L6\n",
		"    invoke-static/range {v0 .. v1}, Ljava/lang/Long;->valueOf(J)Ljava/lang/Long;\n",
		"    iget-wide v0, v3, LDemo;->count:J\n",
		".method public native peek()I\n.end method\n",
	} {
		assert.Contains(t, text, want)
	}

	again := disassemble(t, assemble(t, text))
	assert.Equal(t, text, again)
}

func writeParse(t *testing.T, f *dex.File) *dex.File {
	t.Helper()
	require.NoError(t, f.Compact())
	b, err := f.Bytes()
	require.NoError(t, err)
	g, err := dex.ParseBytes(b, dex.Options{VerifyChecksum: true, VerifySignature: true})
	require.NoError(t, err)
	return g
}

func TestWriteRoundTrip(t *testing.T) {
	f := assemble(t, demoSrc)
	text := disassemble(t, f)

	// 書き出すとメンバーは ID 順に並ぶので、ブロック単位で比べる
	written := disassemble(t, writeParse(t, f))
	for _, block := range strings.Split(text, "\n\n") {
		assert.Contains(t, written, block)
	}
	assert.Equal(t, written, disassemble(t, writeParse(t, assemble(t, written))))
}

const indySrc = `.class public LIndy;

.field static x:I

.method static make()Ljava/lang/Runnable;
    .registers 1
    invoke-custom {}, callsite { method-handle invoke-static LBoot;->bsm(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;, string "run", method-type ()Ljava/lang/Runnable; }
    move-result-object v0
    const-method-handle v0, static-get LIndy;->x:I
    const-method-type v0, (I)V
    return-object v0
.end method
`

func TestInvokeCustom(t *testing.T) {
	f := assemble(t, indySrc)
	require.Len(t, f.CallSites, 1)
	cs := f.CallSites[0]
	require.Len(t, cs, 3)
	assert.Equal(t, dex.ValueMethodHandle, cs[0].Type)
	assert.Equal(t, dex.ValueString, cs[1].Type)
	assert.Equal(t, dex.ValueMethodType, cs[2].Type)
	require.Len(t, f.MethodHandles, 2)
	assert.Equal(t, uint16(dex.HandleInvokeStatic), f.MethodHandles[0].Kind)
	assert.Equal(t, uint16(dex.HandleStaticGet), f.MethodHandles[1].Kind)

	text := disassemble(t, f)
	assert.Contains(t, text, `callsite { method-handle invoke-static LBoot;->bsm(`)
	assert.Contains(t, text, "const-method-handle v0, static-get LIndy;->x:I\n")
	assert.Contains(t, text, "const-method-type v0, (I)V\n")
	assert.Equal(t, text, disassemble(t, assemble(t, text)))
}

func TestStaticValues(t *testing.T) {
	src := `.class LValues;
.field static b:B = byte -1
.field static c:C = char 65535
.field static j:J = long -9000000000
.field static f:F = float 1.5
.field static d:D = double -0.25
.field static z:Z = boolean true
.field static s:Ljava/lang/String; = null
.field static t:Ljava/lang/Class; = type [Ljava/lang/String;
.field static a:[I = array { int 1, int 2 }
.field static e:LE; = enum LE;->ONE:LE;
`
	f := assemble(t, src)
	c := f.FindClass("LValues;")
	require.NotNil(t, c)
	vals := c.Data.StaticFields
	require.Len(t, vals, 10)
	assert.Equal(t, int64(-1), vals[0].Value.Int())
	assert.Equal(t, uint64(65535), vals[1].Value.Bits)
	assert.Equal(t, int64(-9000000000), vals[2].Value.Int())
	assert.Equal(t, float32(1.5), vals[3].Value.Float())
	assert.Equal(t, -0.25, vals[4].Value.Double())
	assert.True(t, vals[5].Value.Bool())
	assert.Equal(t, dex.ValueNull, vals[6].Value.Type)
	assert.Len(t, vals[8].Value.Array, 2)
	assert.Equal(t, dex.ValueEnum, vals[9].Value.Type)

	text := disassemble(t, f)
	for _, line := range strings.Split(strings.TrimSpace(src), "\n")[1:] {
		assert.Contains(t, text, line+"\n")
	}
}

func methodSrc(body string) string {
	return ".class LE;\n.method static m(I)V\n" + body + "\n.end method\n"
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown instruction", methodSrc("    frob v0"), jerrors.ErrSyntax},
		{"undefined label", methodSrc("    goto nowhere"), jerrors.ErrUnresolvedLabel},
		{"literal range", methodSrc("    const/4 v0, 8\n    return-void"), jerrors.ErrOperandRange},
		{"register overflow", methodSrc("    .registers 2\n    move v0, v2\n    return-void"), jerrors.ErrOperandRange},
		{"too few registers", methodSrc("    .registers 0"), jerrors.ErrOperandRange},
		{"parameter register first", methodSrc("    move v0, p0"), jerrors.ErrSyntax},
		{"duplicate label", methodSrc("a:\n    nop\na:\n    return-void"), jerrors.ErrSyntax},
		{"unused payload", methodSrc("    return-void\nd:\n    .array-data 1\n        1\n    .end array-data"), jerrors.ErrSyntax},
		{"payload kind", methodSrc("    packed-switch v0, d\n    return-void\nd:\n    .array-data 1\n        1\n    .end array-data"), jerrors.ErrSyntax},
		{"payload without label", methodSrc("    .array-data 1\n    .end array-data"), jerrors.ErrSyntax},
		{"unsorted keys", methodSrc("    sparse-switch v0, s\n    return-void\ns:\n    .sparse-switch\n        2 -> s\n        1 -> s\n    .end sparse-switch"), jerrors.ErrSyntax},
		{"bad field reference", methodSrc("    sget v0, LE;.x"), jerrors.ErrSyntax},
		{"missing end", ".class LE;\n.method static m()V\n    return-void\n", jerrors.ErrSyntax},
		{"no class", ".field static x:I\n", jerrors.ErrSyntax},
		{"no class at all", "# empty\n", jerrors.ErrSyntax},
		{"unknown directive", ".class LE;\n.deprecated\n", jerrors.ErrSyntax},
		{"header after members", ".class LE;\n.field static x:I\n.super LF;\n", jerrors.ErrSyntax},
		{"code in native method", ".class LE;\n.method native n()V\n    return-void\n.end method\n", jerrors.ErrFormat},
		{"byte range", ".class LE;\n.field static b:B = byte 300\n", jerrors.ErrOperandRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(dex.NewFile(), "e.d", []byte(tt.src), Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLenient(t *testing.T) {
	src := `.class public LW;
.deprecated
.method sealed static foo()V
    return-void
.end method
.method static foo()V
    nop
.end method
`
	var warnings []string
	f := dex.NewFile()
	_, err := Assemble(f, "w.d", []byte(src), Options{Lenient: true, Warn: func(s string) { warnings = append(warnings, s) }})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"w.d:2: unknown directive .deprecated",
		`w.d:3: unknown access flag "sealed"`,
		"w.d:6: duplicate method foo()V",
	}, warnings)

	c := f.FindClass("LW;")
	require.NotNil(t, c)
	require.Len(t, c.Data.DirectMethods, 1)
	assert.Equal(t, []uint16{uint16(dalvik.OpReturnVoid)}, c.Data.DirectMethods[0].Code.Insns)

	_, err = Assemble(dex.NewFile(), "w.d", []byte(src), Options{})
	assert.True(t, errors.Is(err, jerrors.ErrSyntax), "got %v", err)
}

func TestSeveralClasses(t *testing.T) {
	src := ".class LA;\n\n.class LB;\n.super LA;\n.method constructor <init>()V\n    .registers 1\n    invoke-direct {p0}, LA;-><init>()V\n    return-void\n.end method\n"
	f := dex.NewFile()
	classes, err := Assemble(f, "ab.d", []byte(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"LA;", "LB;"}, classes)
	require.Len(t, f.Classes, 2)

	_, err = Assemble(f, "again.d", []byte(".class LA;\n"), Options{})
	assert.Error(t, err, "a class can only be defined once")
}
