package jasm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/reloc"
)

const counterSrc = `.version 52 0
.class public super demo/Counter
.super java/lang/Object
.implements java/lang/Runnable
.source "Counter.java"
.field private static final LIMIT I = 10
.field private count J
.field private names Ljava/util/List; "Ljava/util/List<Ljava/lang/String;>;"

.method public <init> ()V
    aload_0
    invokespecial java/lang/Object <init> ()V
    return
.end method

.method public run ()V
    .throws java/lang/IllegalStateException
    .catch java/lang/RuntimeException from Start to End using Handler
Start:
    .line 7
    aload_0
    dup
    getfield demo/Counter count J
    ldc2_w 1L
    ladd
    putfield demo/Counter count J
End:
    return
Handler:
    .line 9
    astore_1
    return
    .var 0 this Ldemo/Counter; from Start to Handler
.end method

.method public static sign (I)I
    iload_0
    ifge Positive
    iconst_m1
    ireturn
Positive:
    iload_0
    lookupswitch 0 Zero default One
Zero:
    iconst_0
    ireturn
One:   # 残りは全部 1
    iconst_1
    ireturn
.end method
`

func assemble(t *testing.T, src string) *classfile.ClassFile {
	t.Helper()
	cf, err := Assemble("test.j", []byte(src), Options{})
	require.NoError(t, err)
	return cf
}

// reparse は書き出したバイト列を読み直す
func reparse(t *testing.T, cf *classfile.ClassFile) *classfile.ClassFile {
	t.Helper()
	data, err := cf.Bytes()
	require.NoError(t, err)
	out, err := classfile.ParseBytes(data)
	require.NoError(t, err)
	return out
}

func disassemble(t *testing.T, cf *classfile.ClassFile) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Disassemble(cf, &buf))
	return buf.String()
}

func TestAssembleCounter(t *testing.T) {
	cf := reparse(t, assemble(t, counterSrc))

	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "demo/Counter", name)
	assert.Equal(t, "java/lang/Object", cf.SuperClassName())
	assert.Equal(t, uint16(classfile.AccPublic|classfile.AccSuper), cf.AccessFlags)
	require.Len(t, cf.Interfaces, 1)

	limit := cf.FindField("LIMIT")
	require.NotNil(t, limit)
	cv, ok := classfile.FindAttribute(limit.Attributes, classfile.AttrConstantValue).(*classfile.ConstantValueAttribute)
	require.True(t, ok)
	c, err := cf.ConstantPool.Get(cv.ValueIndex)
	require.NoError(t, err)
	assert.Equal(t, &classfile.ConstantInteger{Value: 10}, c)

	run := cf.FindMethod("run", "()V")
	require.NotNil(t, run)
	code := run.Code()
	require.NotNil(t, code)
	if got := code.CodeLength(); got != 15 {
		t.Errorf("run code length: got %d, want 15", got)
	}
	assert.Equal(t, uint16(5), code.MaxStack)
	assert.Equal(t, uint16(2), code.MaxLocals)
	require.Len(t, code.ExceptionTable, 1)
	h := code.ExceptionTable[0]
	assert.Equal(t, [3]uint16{0, 12, 13}, [3]uint16{h.StartPC, h.EndPC, h.HandlerPC})
	catchName, err := cf.ConstantPool.GetClassName(h.CatchType)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/RuntimeException", catchName)

	lnt, ok := classfile.FindAttribute(code.Attributes, classfile.AttrLineNumberTable).(*classfile.LineNumberTableAttribute)
	require.True(t, ok)
	assert.Equal(t, []classfile.LineNumber{{StartPC: 0, LineNumber: 7}, {StartPC: 13, LineNumber: 9}}, lnt.Entries)
	lvt, ok := classfile.FindAttribute(code.Attributes, classfile.AttrLocalVariableTable).(*classfile.LocalVariableTableAttribute)
	require.True(t, ok)
	require.Len(t, lvt.Entries, 1)
	assert.Equal(t, uint16(13), lvt.Entries[0].Length)
	assert.NotNil(t, classfile.FindAttribute(run.Attributes, classfile.AttrExceptions))

	sign := cf.FindMethod("sign", "(I)I").Code()
	require.NotNil(t, sign)
	if got := sign.CodeLength(); got != 28 {
		t.Errorf("sign code length: got %d, want 28", got)
	}
	ifge := sign.Instructions[1]
	assert.Equal(t, bytecode.OpIfge, ifge.Op)
	assert.Equal(t, reloc.OffsetLabel(6), ifge.Target)
	sw := sign.Instructions[5]
	assert.Equal(t, bytecode.OpLookupswitch, sw.Op)
	assert.Equal(t, []int32{0}, sw.Keys)
	assert.Equal(t, []reloc.Label{reloc.OffsetLabel(24)}, sw.Targets)
	assert.Equal(t, reloc.OffsetLabel(26), sw.Default)
}

func TestDisassembleRoundTrip(t *testing.T) {
	first := disassemble(t, reparse(t, assemble(t, counterSrc)))
	assert.Contains(t, first, ".catch java/lang/RuntimeException from L0 to L12 using L13")
	assert.Contains(t, first, "    ldc2_w 1L\n")
	assert.Contains(t, first, "lookupswitch 0 L24 default L26")
	assert.Contains(t, first, `.field private names Ljava/util/List; "Ljava/util/List<Ljava/lang/String;>;"`)
	assert.Contains(t, first, ".field private static final LIMIT I = 10")

	// 逆アセンブル結果を組み立て直しても同じテキストになる
	second := disassemble(t, reparse(t, assemble(t, first)))
	assert.Equal(t, first, second)
}

const lambdaSrc = `.class public demo/L
.bootstrap 0 handle invokestatic java/lang/invoke/LambdaMetafactory metafactory (Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite; , methodtype ()V , handle invokestatic demo/L lambda$0 ()V , methodtype ()V
.method public static make ()Ljava/lang/Runnable;
    invokedynamic 0 run ()Ljava/lang/Runnable;
    areturn
.end method
.method private static lambda$0 ()V
    return
.end method
`

func TestInvokeDynamic(t *testing.T) {
	cf := reparse(t, assemble(t, lambdaSrc))
	bsm := cf.BootstrapMethods()
	require.NotNil(t, bsm)
	require.Len(t, bsm.Methods, 1)
	assert.Len(t, bsm.Methods[0].Arguments, 3)

	code := cf.FindMethod("make", "()Ljava/lang/Runnable;").Code()
	require.NotNil(t, code)
	assert.Equal(t, uint16(1), code.MaxStack)
	n, d, err := cf.ConstantPool.ResolveInvokeDynamic(code.Instructions[0].Index)
	require.NoError(t, err)
	assert.Equal(t, "run", n)
	assert.Equal(t, "()Ljava/lang/Runnable;", d)

	text := disassemble(t, cf)
	assert.Contains(t, text, ".bootstrap 0 handle invokestatic java/lang/invoke/LambdaMetafactory metafactory")
	assert.Contains(t, text, "invokedynamic 0 run ()Ljava/lang/Runnable;")
	assert.Equal(t, text, disassemble(t, reparse(t, assemble(t, text))))
}

func TestConstants(t *testing.T) {
	src := `.class public demo/K
.method public static k ()V
    ldc "text"
    pop
    ldc 1.5f
    pop
    ldc2_w -2.25d
    pop2
    ldc 0x7fffffff
    pop
    ldc class java/lang/String
    pop
    ldc methodtype (I)V
    pop
    ldc handle getstatic java/lang/System out Ljava/io/PrintStream;
    pop
    return
.end method
`
	cf := assemble(t, src)
	code := cf.FindMethod("k", "()V").Code()
	require.NotNil(t, code)
	want := []classfile.Constant{
		&classfile.ConstantString{},
		&classfile.ConstantFloat{Value: 1.5},
		&classfile.ConstantDouble{Value: -2.25},
		&classfile.ConstantInteger{Value: 0x7fffffff},
		&classfile.ConstantClass{},
		&classfile.ConstantMethodType{},
		&classfile.ConstantMethodHandle{},
	}
	var got []uint8
	var loads []bytecode.Instruction
	for _, in := range code.Instructions {
		if in.Op == bytecode.OpLdc || in.Op == bytecode.OpLdc2W {
			loads = append(loads, in)
			c, err := cf.ConstantPool.Get(in.Index)
			require.NoError(t, err)
			got = append(got, c.Tag())
		}
	}
	require.Len(t, loads, len(want))
	for i, w := range want {
		if got[i] != w.Tag() {
			t.Errorf("constant %d: got tag %d, want %d", i, got[i], w.Tag())
		}
	}
	f, err := cf.ConstantPool.Get(loads[1].Index)
	require.NoError(t, err)
	assert.Equal(t, want[1], f)
	d, err := cf.ConstantPool.Get(loads[2].Index)
	require.NoError(t, err)
	assert.Equal(t, want[2], d)

	text := disassemble(t, cf)
	for _, s := range []string{`ldc "text"`, "ldc 1.5f", "ldc2_w -2.25d", "ldc 2147483647", "ldc class java/lang/String", "ldc methodtype (I)V", "ldc handle getstatic java/lang/System out Ljava/io/PrintStream;"} {
		assert.Contains(t, text, s)
	}
}

func TestAssembleErrors(t *testing.T) {
	wrap := func(body string) string {
		return ".class public demo/E\n.method public static e ()V\n" + body + "\n.end method\n"
	}
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unresolved label", wrap("goto Nowhere"), jerrors.ErrUnresolvedLabel},
		{"unknown instruction", wrap("frobnicate"), jerrors.ErrSyntax},
		{"bipush range", wrap("bipush 300\npop\nreturn"), jerrors.ErrOperandRange},
		{"ldc of a long", wrap("ldc 5L\nreturn"), jerrors.ErrSyntax},
		{"duplicate label", wrap("A:\nA:\nreturn"), jerrors.ErrSyntax},
		{"trailing operand", wrap("return 1"), jerrors.ErrSyntax},
		{"missing end", ".class demo/E\n.method static e ()V\nreturn\n", jerrors.ErrSyntax},
		{"no class", ".version 52 0\n", jerrors.ErrSyntax},
		{"unknown directive", ".class demo/E\n.deprecated\n", jerrors.ErrSyntax},
		{"missing bootstrap", wrap("invokedynamic 0 run ()Ljava/lang/Runnable;\npop\nreturn"), jerrors.ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble("e.j", []byte(tt.src), Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLenient(t *testing.T) {
	src := `.class public demo/W
.deprecated
.method public sealed foo ()V
    return
.end method
.method public foo ()V
    nop
    return
.end method
`
	var warnings []string
	cf, err := Assemble("w.j", []byte(src), Options{Lenient: true, Warn: func(s string) { warnings = append(warnings, s) }})
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "w.j:2: unknown directive .deprecated")
	assert.Contains(t, warnings[1], `unknown access flag "sealed"`)
	assert.Contains(t, warnings[2], "duplicate method foo()V")

	require.Len(t, cf.Methods, 1)
	assert.Equal(t, uint16(classfile.AccPublic), cf.Methods[0].AccessFlags)
	assert.Len(t, cf.Methods[0].Code().Instructions, 1)

	_, err = Assemble("w.j", []byte(src), Options{})
	assert.True(t, errors.Is(err, jerrors.ErrSyntax), "got %v", err)
}

func TestTargetVersion(t *testing.T) {
	tests := []struct {
		in           string
		major, minor uint16
		ok           bool
	}{
		{"1.8", 52, 0, true},
		{"8", 52, 0, true},
		{"17", 61, 0, true},
		{"1.1", 45, 3, true},
		{"1.9", 0, 0, false},
		{"java", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			major, minor, err := TargetVersion(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if major != tt.major || minor != tt.minor {
				t.Errorf("got %d.%d, want %d.%d", major, minor, tt.major, tt.minor)
			}
		})
	}

	cf, err := Assemble("t.j", []byte(".version 50 0\n.class demo/T\n"), Options{Target: "17"})
	require.NoError(t, err)
	assert.Equal(t, uint16(61), cf.MajorVersion)
}
