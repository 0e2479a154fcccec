// Package dasm is a smali-like text syntax for dex classes.
//
//	.class public LHello;
//	.super Ljava/lang/Object;
//	.source "Hello.java"
//
//	.method public static main([Ljava/lang/String;)V
//	    .registers 2
//	    .line 3
//	    sget-object v0, Ljava/lang/System;->out:Ljava/io/PrintStream;
//	    const-string v1, "hi"
//	    invoke-virtual {v0, v1}, Ljava/io/PrintStream;->println(Ljava/lang/String;)V
//	    return-void
//	.end method
//
// One source may hold several classes. Branch targets are labels, which
// the disassembler names L<offset>. Switch and array payloads are written
// as blocks under their own label. Annotations are not part of the syntax.
package dasm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/lexer"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/reloc"
)

type printer struct {
	f *dex.File
	w *bufio.Writer
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Disassemble writes class c of f.
func Disassemble(f *dex.File, c *dex.ClassDef, w io.Writer) error {
	p := &printer{f: f, w: bufio.NewWriter(w)}
	if err := p.class(c); err != nil {
		return err
	}
	return p.w.Flush()
}

// DisassembleFile writes every class of f, separated by blank lines.
func DisassembleFile(f *dex.File, w io.Writer) error {
	p := &printer{f: f, w: bufio.NewWriter(w)}
	for i := range f.Classes {
		if i > 0 {
			p.printf("\n")
		}
		if err := p.class(&f.Classes[i]); err != nil {
			return err
		}
	}
	return p.w.Flush()
}

func (p *printer) class(c *dex.ClassDef) error {
	name, err := p.f.TypeName(c.Class)
	if err != nil {
		return fmt.Errorf("resolving class: %w", err)
	}
	p.printf(".class %s\n", join(formatAccess(classfile.FlagInnerClass, c.Access), name))
	if c.Superclass != dex.NoIndex {
		super, err := p.f.TypeName(c.Superclass)
		if err != nil {
			return fmt.Errorf("class %s: resolving super class: %w", name, err)
		}
		p.printf(".super %s\n", super)
	}
	for _, i := range c.Interfaces {
		iface, err := p.f.TypeName(i)
		if err != nil {
			return fmt.Errorf("class %s: resolving interface: %w", name, err)
		}
		p.printf(".implements %s\n", iface)
	}
	if c.SourceFile != dex.NoIndex {
		s, err := p.f.String(c.SourceFile)
		if err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
		p.printf(".source %s\n", lexer.Quote(s))
	}
	if c.Annotations != nil {
		p.printf("# annotations not shown\n")
	}
	if c.Data == nil {
		return nil
	}
	for _, ef := range c.Data.Fields() {
		if err := p.field(ef); err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
	}
	for _, em := range c.Data.Methods() {
		if err := p.method(em); err != nil {
			return fmt.Errorf("class %s: %w", name, err)
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

func (p *printer) field(ef *dex.EncodedField) error {
	ref, err := p.f.FieldRef(ef.Field)
	if err != nil {
		return err
	}
	line := join(".field", formatAccess(classfile.FlagField, ef.Access), ref.Name+":"+ref.Descriptor)
	if ef.Value != nil {
		v, err := formatValue(p.f, ef.Value)
		if err != nil {
			return fmt.Errorf("field %s: %w", ref.Name, err)
		}
		line += " = " + v
	}
	p.printf("\n%s\n", line)
	return nil
}

func (p *printer) method(em *dex.EncodedMethod) error {
	ref, err := p.f.MethodRef(em.Method)
	if err != nil {
		return err
	}
	p.printf("\n%s\n", join(".method", formatAccess(classfile.FlagMethod, em.Access), ref.Name+ref.Descriptor))
	if em.Code != nil {
		if err := p.code(em.Code); err != nil {
			return fmt.Errorf("method %s%s: %w", ref.Name, ref.Descriptor, err)
		}
	}
	p.printf(".end method\n")
	return nil
}

func label(off int) string { return "L" + strconv.Itoa(off) }

func labelOf(l reloc.Label) (string, error) {
	off, ok := l.Offset()
	if !ok {
		return "", errors.WrapUnresolvedLabel(string(l))
	}
	return label(off), nil
}

func (p *printer) code(code *dex.Code) error {
	insns, err := dalvik.Decode(code.Insns)
	if err != nil {
		return err
	}
	p.printf("    .registers %d\n", code.Registers)

	var entries []dex.DebugEntry
	if d := code.Debug; d != nil {
		for i, n := range d.ParameterNames {
			if n == dex.NoIndex {
				continue
			}
			s, err := p.f.String(n)
			if err != nil {
				return err
			}
			p.printf("    .param %d, %s\n", i, lexer.Quote(s))
		}
		entries = d.Entries()
	}

	targets := make(map[int]bool)
	for i := range insns {
		in := &insns[i]
		ls := in.Labels()
		if in.Payload != nil && len(ls) > 0 {
			switch in.Payload.(type) {
			case *dalvik.PackedSwitch, *dalvik.SparseSwitch:
				ls = ls[1:] // base is the switch itself
			}
		}
		for _, l := range ls {
			if off, ok := l.Offset(); ok {
				targets[off] = true
			}
		}
	}
	for _, t := range code.Tries {
		targets[int(t.Start)] = true
		targets[int(t.Start)+int(t.Count)] = true
		for _, c := range t.Handler.Catches {
			targets[int(c.Addr)] = true
		}
		if t.Handler.HasCatchAll {
			targets[int(t.Handler.CatchAll)] = true
		}
	}
	for _, t := range code.Tries {
		from, to := label(int(t.Start)), label(int(t.Start)+int(t.Count))
		for _, c := range t.Handler.Catches {
			typ, err := p.f.TypeName(c.Type)
			if err != nil {
				return err
			}
			p.printf("    .catch %s {%s .. %s} %s\n", typ, from, to, label(int(c.Addr)))
		}
		if t.Handler.HasCatchAll {
			p.printf("    .catchall {%s .. %s} %s\n", from, to, label(int(t.Handler.CatchAll)))
		}
	}

	next := 0
	flushDebug := func(upTo int) error {
		for ; next < len(entries) && int(entries[next].Addr) <= upTo; next++ {
			if err := p.debug(&entries[next]); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range insns {
		in := &insns[i]
		if targets[in.Offset] {
			p.printf("%s:\n", label(in.Offset))
		}
		if err := flushDebug(in.Offset); err != nil {
			return err
		}
		if in.Payload != nil {
			if err := p.payload(in.Payload); err != nil {
				return err
			}
			continue
		}
		s, err := p.instruction(in)
		if err != nil {
			return fmt.Errorf("at %d: %w", in.Offset, err)
		}
		p.printf("    %s\n", s)
	}
	end := len(code.Insns)
	if targets[end] {
		p.printf("%s:\n", label(end))
	}
	return flushDebug(math.MaxInt)
}

func (p *printer) optString(i uint32) (string, error) {
	if i == dex.NoIndex {
		return "null", nil
	}
	s, err := p.f.String(i)
	if err != nil {
		return "", err
	}
	return lexer.Quote(s), nil
}

func (p *printer) debug(e *dex.DebugEntry) error {
	op := &e.Op
	switch {
	case op.Special():
		p.printf("    .line %d\n", e.Line)
	case op.Op == dex.DbgStartLocal || op.Op == dex.DbgStartLocalExtended:
		name, err := p.optString(op.Name)
		if err != nil {
			return err
		}
		typ := "null"
		if op.Type != dex.NoIndex {
			if typ, err = p.f.TypeName(op.Type); err != nil {
				return err
			}
		}
		line := fmt.Sprintf("    .local v%d, %s, %s", op.Register, name, typ)
		if op.Op == dex.DbgStartLocalExtended {
			sig, err := p.optString(op.Signature)
			if err != nil {
				return err
			}
			line += ", " + sig
		}
		p.printf("%s\n", line)
	case op.Op == dex.DbgEndLocal:
		p.printf("    .end local v%d\n", op.Register)
	case op.Op == dex.DbgRestartLocal:
		p.printf("    .restart local v%d\n", op.Register)
	case op.Op == dex.DbgSetPrologueEnd:
		p.printf("    .prologue\n")
	case op.Op == dex.DbgSetEpilogueBegin:
		p.printf("    .epilogue\n")
	case op.Op == dex.DbgSetFile:
		name, err := p.optString(op.Name)
		if err != nil {
			return err
		}
		p.printf("    .source %s\n", name)
	default:
		return errors.WrapFormat("debug opcode 0x%02x", op.Op)
	}
	return nil
}

func (p *printer) payload(pl dalvik.Payload) error {
	switch pl := pl.(type) {
	case *dalvik.PackedSwitch:
		p.printf("    .packed-switch %d\n", pl.FirstKey)
		for _, t := range pl.Targets {
			l, err := labelOf(t)
			if err != nil {
				return err
			}
			p.printf("        %s\n", l)
		}
		p.printf("    .end packed-switch\n")
	case *dalvik.SparseSwitch:
		p.printf("    .sparse-switch\n")
		for i, t := range pl.Targets {
			l, err := labelOf(t)
			if err != nil {
				return err
			}
			p.printf("        %d -> %s\n", pl.Keys[i], l)
		}
		p.printf("    .end sparse-switch\n")
	case *dalvik.ArrayData:
		p.printf("    .array-data %d\n", pl.Width)
		for vs := range slices.Chunk(pl.Values(), 8) {
			words := make([]string, len(vs))
			for i, v := range vs {
				words[i] = strconv.FormatInt(v, 10)
			}
			p.printf("        %s\n", strings.Join(words, " "))
		}
		p.printf("    .end array-data\n")
	default:
		return errors.WrapFormat("unknown payload %T", pl)
	}
	return nil
}

func regs(rs []uint16) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = "v" + strconv.Itoa(int(r))
	}
	return strings.Join(parts, ", ")
}

func regList(info *dalvik.Info, rs []uint16) string {
	switch info.Format {
	case dalvik.F3rc, dalvik.F4rcc:
		if len(rs) == 0 {
			return "{}"
		}
		return fmt.Sprintf("{v%d .. v%d}", rs[0], rs[len(rs)-1])
	}
	return "{" + regs(rs) + "}"
}

func (p *printer) instruction(in *dalvik.Instruction) (string, error) {
	info := in.Info()
	if info == nil {
		return "", errors.WrapUnknownTag("opcode", int(in.Op), in.Offset)
	}
	ops := []string{}
	switch info.Format {
	case dalvik.F35c, dalvik.F3rc, dalvik.F45cc, dalvik.F4rcc:
		ops = append(ops, regList(info, in.Regs))
	default:
		if len(in.Regs) > 0 {
			ops = append(ops, regs(in.Regs))
		}
	}
	switch info.Format {
	case dalvik.F11n, dalvik.F21s, dalvik.F21h, dalvik.F31i, dalvik.F51l, dalvik.F22b, dalvik.F22s:
		ops = append(ops, strconv.FormatInt(in.Literal, 10))
	}
	if in.Target != "" {
		l, err := labelOf(in.Target)
		if err != nil {
			return "", err
		}
		ops = append(ops, l)
	}
	if info.Index != dalvik.IndexNone {
		s, err := p.index(info.Index, in.Index)
		if err != nil {
			return "", err
		}
		ops = append(ops, s)
	}
	if info.Format == dalvik.F45cc || info.Format == dalvik.F4rcc {
		s, err := p.f.ProtoDescriptor(in.Proto)
		if err != nil {
			return "", err
		}
		ops = append(ops, s)
	}
	if len(ops) == 0 {
		return info.Name, nil
	}
	return info.Name + " " + strings.Join(ops, ", "), nil
}

func (p *printer) index(kind dalvik.IndexKind, i uint32) (string, error) {
	switch kind {
	case dalvik.IndexString:
		s, err := p.f.String(i)
		if err != nil {
			return "", err
		}
		return lexer.Quote(s), nil
	case dalvik.IndexType:
		return p.f.TypeName(i)
	case dalvik.IndexField:
		return fieldText(p.f, i)
	case dalvik.IndexMethod:
		return methodRefText(p.f, i)
	case dalvik.IndexProto:
		return p.f.ProtoDescriptor(i)
	case dalvik.IndexMethodHandle:
		return handleText(p.f, i)
	case dalvik.IndexCallSite:
		if int64(i) >= int64(len(p.f.CallSites)) {
			return "", errors.WrapIndexOutOfRange("call site", int(i), len(p.f.CallSites))
		}
		s, err := formatValues(p.f, p.f.CallSites[i])
		if err != nil {
			return "", err
		}
		return "callsite " + s, nil
	}
	return "", errors.WrapFormat("index kind %d", kind)
}
