// Package jasm is a Jasmin-like text syntax for class files. Disassemble
// writes one class as text and Assemble builds a class back from it.
//
//	.version 52 0
//	.class public super Hello
//	.super java/lang/Object
//	.method public static main ([Ljava/lang/String;)V
//	    getstatic java/lang/System out Ljava/io/PrintStream;
//	    ldc "hi"
//	    invokevirtual java/io/PrintStream println (Ljava/lang/String;)V
//	    return
//	.end method
//
// Branch targets are labels. The disassembler names them L<offset>.
// Stack map frames and annotations are not part of the syntax; the
// disassembler notes them in comments and the assembler does not produce
// them.
package jasm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/lexer"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/reloc"
)

type printer struct {
	cf   *classfile.ClassFile
	pool *classfile.ConstantPool
	w    *bufio.Writer
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Disassemble writes cf in jasm syntax.
func Disassemble(cf *classfile.ClassFile, w io.Writer) error {
	p := &printer{cf: cf, pool: cf.ConstantPool, w: bufio.NewWriter(w)}
	if err := p.class(); err != nil {
		return err
	}
	return p.w.Flush()
}

func (p *printer) class() error {
	cf := p.cf
	name, err := cf.ClassName()
	if err != nil {
		return fmt.Errorf("resolving this class: %w", err)
	}
	p.printf(".version %d %d\n", cf.MajorVersion, cf.MinorVersion)
	p.printf(".class %s\n", join(formatFlags(classfile.FlagClass, cf.AccessFlags), name))
	if cf.SuperClass != 0 {
		super, err := p.pool.GetClassName(cf.SuperClass)
		if err != nil {
			return fmt.Errorf("resolving super class: %w", err)
		}
		p.printf(".super %s\n", super)
	}
	for _, idx := range cf.Interfaces {
		iface, err := p.pool.GetClassName(idx)
		if err != nil {
			return fmt.Errorf("resolving interface: %w", err)
		}
		p.printf(".implements %s\n", iface)
	}
	for _, a := range cf.Attributes {
		switch a := a.(type) {
		case *classfile.SourceFileAttribute:
			s, err := p.pool.GetUtf8(a.SourceFileIndex)
			if err != nil {
				return err
			}
			p.printf(".source %s\n", lexer.Quote(s))
		case *classfile.SignatureAttribute:
			s, err := p.pool.GetUtf8(a.SignatureIndex)
			if err != nil {
				return err
			}
			p.printf(".signature %s\n", lexer.Quote(s))
		case *classfile.BootstrapMethodsAttribute:
			for i, bm := range a.Methods {
				if err := p.bootstrap(i, bm); err != nil {
					return err
				}
			}
		default:
			p.printf("# %s not shown\n", a.Name())
		}
	}

	for i := range cf.Fields {
		if err := p.field(&cf.Fields[i]); err != nil {
			return err
		}
	}
	for i := range cf.Methods {
		if err := p.method(&cf.Methods[i]); err != nil {
			return err
		}
	}
	return nil
}

func join(parts ...string) string {
	var out []string
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

func (p *printer) bootstrap(i int, bm classfile.BootstrapMethod) error {
	c, err := p.pool.Get(bm.MethodRef)
	if err != nil {
		return err
	}
	h, ok := c.(*classfile.ConstantMethodHandle)
	if !ok {
		return errors.WrapFormat("bootstrap method %d is not a method handle", i)
	}
	s, err := formatHandle(p.pool, h)
	if err != nil {
		return err
	}
	p.printf(".bootstrap %d %s", i, s)
	for _, arg := range bm.Arguments {
		a, err := formatConstant(p.pool, arg)
		if err != nil {
			return fmt.Errorf("bootstrap method %d: %w", i, err)
		}
		p.printf(" , %s", a)
	}
	p.printf("\n")
	return nil
}

func (p *printer) field(f *classfile.FieldInfo) error {
	name, err := p.pool.GetUtf8(f.NameIndex)
	if err != nil {
		return err
	}
	desc, err := p.pool.GetUtf8(f.DescriptorIndex)
	if err != nil {
		return err
	}
	var sig, value string
	var notes []string
	for _, a := range f.Attributes {
		switch a := a.(type) {
		case *classfile.SignatureAttribute:
			s, err := p.pool.GetUtf8(a.SignatureIndex)
			if err != nil {
				return err
			}
			sig = lexer.Quote(s)
		case *classfile.ConstantValueAttribute:
			v, err := formatConstant(p.pool, a.ValueIndex)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			value = "= " + v
		default:
			notes = append(notes, a.Name())
		}
	}
	p.printf(".field %s\n", join(formatFlags(classfile.FlagField, f.AccessFlags), name, desc, sig, value))
	for _, n := range notes {
		p.printf("# %s not shown\n", n)
	}
	return nil
}

func (p *printer) method(m *classfile.MethodInfo) error {
	name, err := p.pool.GetUtf8(m.NameIndex)
	if err != nil {
		return err
	}
	desc, err := p.pool.GetUtf8(m.DescriptorIndex)
	if err != nil {
		return err
	}
	p.printf("\n.method %s\n", join(formatFlags(classfile.FlagMethod, m.AccessFlags), name, desc))
	for _, a := range m.Attributes {
		switch a := a.(type) {
		case *classfile.SignatureAttribute:
			s, err := p.pool.GetUtf8(a.SignatureIndex)
			if err != nil {
				return err
			}
			p.printf("    .signature %s\n", lexer.Quote(s))
		case *classfile.ExceptionsAttribute:
			for _, idx := range a.ExceptionIndexes {
				cls, err := p.pool.GetClassName(idx)
				if err != nil {
					return err
				}
				p.printf("    .throws %s\n", cls)
			}
		case *classfile.CodeAttribute:
		default:
			p.printf("    # %s not shown\n", a.Name())
		}
	}
	if code := m.Code(); code != nil {
		if err := p.code(code); err != nil {
			return fmt.Errorf("method %s%s: %w", name, desc, err)
		}
	}
	p.printf(".end method\n")
	return nil
}

func label(off int) string { return fmt.Sprintf("L%d", off) }

func labelOf(l reloc.Label) (string, error) {
	off, ok := l.Offset()
	if !ok {
		return "", errors.WrapFormat("label %s is not an offset", l)
	}
	return label(off), nil
}

func (p *printer) code(code *classfile.CodeAttribute) error {
	p.printf("    .limit stack %d\n", code.MaxStack)
	p.printf("    .limit locals %d\n", code.MaxLocals)

	labels := make(map[int]bool)
	for i := range code.Instructions {
		for _, l := range code.Instructions[i].Labels() {
			if off, ok := l.Offset(); ok {
				labels[off] = true
			}
		}
	}
	for _, h := range code.ExceptionTable {
		labels[int(h.StartPC)], labels[int(h.EndPC)], labels[int(h.HandlerPC)] = true, true, true
	}
	lines := make(map[int][]uint16)
	var vars []*classfile.LocalVariableTableAttribute
	for _, a := range code.Attributes {
		switch a := a.(type) {
		case *classfile.LineNumberTableAttribute:
			for _, ln := range a.Entries {
				lines[int(ln.StartPC)] = append(lines[int(ln.StartPC)], ln.LineNumber)
			}
		case *classfile.LocalVariableTableAttribute:
			vars = append(vars, a)
			for _, lv := range a.Entries {
				labels[int(lv.StartPC)], labels[int(lv.StartPC)+int(lv.Length)] = true, true
			}
		default:
			p.printf("    # %s not shown\n", a.Name())
		}
	}

	for _, h := range code.ExceptionTable {
		cls := "all"
		if h.CatchType != 0 {
			var err error
			if cls, err = p.pool.GetClassName(h.CatchType); err != nil {
				return err
			}
		}
		p.printf("    .catch %s from %s to %s using %s\n", cls, label(int(h.StartPC)), label(int(h.EndPC)), label(int(h.HandlerPC)))
	}

	for i := range code.Instructions {
		in := &code.Instructions[i]
		if labels[in.Offset] {
			p.printf("%s:\n", label(in.Offset))
		}
		for _, n := range lines[in.Offset] {
			p.printf("    .line %d\n", n)
		}
		s, err := p.instruction(in)
		if err != nil {
			return fmt.Errorf("%s at %d: %w", in.Op, in.Offset, err)
		}
		p.printf("    %s\n", s)
	}
	if end := code.CodeLength(); labels[end] {
		p.printf("%s:\n", label(end))
	}

	for _, a := range vars {
		dir := ".var"
		if a.Generic {
			dir = ".vartype"
		}
		for _, lv := range a.Entries {
			name, err := p.pool.GetUtf8(lv.NameIndex)
			if err != nil {
				return err
			}
			desc, err := p.pool.GetUtf8(lv.DescriptorIndex)
			if err != nil {
				return err
			}
			p.printf("    %s %d %s %s from %s to %s\n", dir, lv.Index, name, desc, label(int(lv.StartPC)), label(int(lv.StartPC)+int(lv.Length)))
		}
	}
	return nil
}

func (p *printer) member(idx uint16) (string, error) {
	ref, err := p.pool.ResolveMemberref(idx)
	if err != nil {
		return "", err
	}
	s := fmt.Sprintf("%s %s %s", ref.ClassName, ref.Name, ref.Descriptor)
	if c, _ := p.pool.Get(idx); c != nil && c.Tag() == classfile.TagInterfaceMethodref {
		s = "interface " + s
	}
	return s, nil
}

func (p *printer) instruction(in *bytecode.Instruction) (string, error) {
	info := in.Info()
	if info == nil {
		return "", errors.WrapUnknownTag("opcode", int(in.Op), in.Offset)
	}
	name := info.Name
	if in.Wide && (info.Shape == bytecode.ShapeLocal || info.Shape == bytecode.ShapeIinc) {
		name = "wide " + name
	}
	switch info.Shape {
	case bytecode.ShapeNone:
		return name, nil
	case bytecode.ShapeByte, bytecode.ShapeShort:
		return fmt.Sprintf("%s %d", name, in.Value), nil
	case bytecode.ShapeLocal:
		return fmt.Sprintf("%s %d", name, in.Local), nil
	case bytecode.ShapeIinc:
		return fmt.Sprintf("%s %d %d", name, in.Local, in.Value), nil
	case bytecode.ShapeConst8, bytecode.ShapeConst16:
		var operand string
		var err error
		switch in.Op {
		case bytecode.OpLdc, bytecode.OpLdcW, bytecode.OpLdc2W:
			operand, err = formatConstant(p.pool, in.Index)
		case bytecode.OpNew, bytecode.OpAnewarray, bytecode.OpCheckcast, bytecode.OpInstanceof:
			operand, err = p.pool.GetClassName(in.Index)
		default:
			operand, err = p.member(in.Index)
		}
		if err != nil {
			return "", err
		}
		return name + " " + operand, nil
	case bytecode.ShapeInvokeInterface:
		ref, err := p.pool.ResolveMemberref(in.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s %s", name, ref.ClassName, ref.Name, ref.Descriptor), nil
	case bytecode.ShapeInvokeDynamic:
		c, err := p.pool.Get(in.Index)
		if err != nil {
			return "", err
		}
		indy, ok := c.(*classfile.ConstantInvokeDynamic)
		if !ok {
			return "", errors.WrapFormat("invokedynamic operand %d is not InvokeDynamic", in.Index)
		}
		n, d, err := p.pool.GetNameAndType(indy.NameAndTypeIndex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %d %s %s", name, indy.BootstrapMethodAttrIndex, n, d), nil
	case bytecode.ShapeNewArray:
		t, ok := bytecode.ArrayTypeName(in.Value)
		if !ok {
			return "", errors.WrapFormat("newarray type %d", in.Value)
		}
		return name + " " + t, nil
	case bytecode.ShapeMultiANewArray:
		cls, err := p.pool.GetClassName(in.Index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %d", name, cls, in.Value), nil
	case bytecode.ShapeBranch, bytecode.ShapeBranchWide:
		l, err := labelOf(in.Target)
		if err != nil {
			return "", err
		}
		return name + " " + l, nil
	case bytecode.ShapeTableSwitch, bytecode.ShapeLookupSwitch:
		return p.switchInstruction(name, in)
	}
	return "", errors.WrapFormat("cannot print %s", name)
}

func (p *printer) switchInstruction(name string, in *bytecode.Instruction) (string, error) {
	var b strings.Builder
	b.WriteString(name)
	if in.Op == bytecode.OpTableswitch {
		fmt.Fprintf(&b, " %d", in.Low)
	}
	for i, t := range in.Targets {
		l, err := labelOf(t)
		if err != nil {
			return "", err
		}
		if in.Op == bytecode.OpLookupswitch {
			fmt.Fprintf(&b, " %d", in.Keys[i])
		}
		b.WriteString(" " + l)
	}
	def, err := labelOf(in.Default)
	if err != nil {
		return "", err
	}
	b.WriteString(" default " + def)
	return b.String(), nil
}
