package dump

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/visit"
)

// Dex dumps the header counts and every class of f that passes the
// filter.
func (p *Printer) Dex(f *dex.File) error {
	p.printf(0, "%s %s: %d strings, %d types, %d protos, %d fields, %d methods, %d classes",
		p.theme.keyword("dex"), f.Version, len(f.Strings), len(f.Types), len(f.Protos),
		len(f.Fields), len(f.Methods), len(f.Classes))
	if p.opts.Verbose {
		p.tables(f)
	}
	f.AcceptClasses(visit.NameMatching(visit.Func[*dex.ClassDef](func(c *dex.ClassDef) {
		p.blank()
		p.dexClass(f, c)
	}), p.opts.Filter, func(c *dex.ClassDef) string {
		name, _ := f.TypeName(c.Class)
		return name
	}))
	return p.err
}

func (p *Printer) tables(f *dex.File) {
	p.printf(1, "strings:")
	for i, s := range f.Strings {
		p.printf(2, "%-5d %s", i, strconv.Quote(s))
	}
	p.printf(1, "types:")
	for i := range f.Types {
		name, _ := f.TypeName(uint32(i))
		p.printf(2, "%-5d %s", i, name)
	}
	p.printf(1, "protos:")
	for i := range f.Protos {
		desc, _ := f.ProtoDescriptor(uint32(i))
		p.printf(2, "%-5d %s", i, desc)
	}
	p.printf(1, "fields:")
	for i := range f.Fields {
		ref, _ := f.FieldRef(uint32(i))
		p.printf(2, "%-5d %s", i, ref)
	}
	p.printf(1, "methods:")
	for i := range f.Methods {
		ref, _ := f.MethodRef(uint32(i))
		p.printf(2, "%-5d %s->%s%s", i, ref.Class, ref.Name, ref.Descriptor)
	}
}

func dexFlags(target classfile.FlagTarget, access uint32) string {
	s := classfile.FlagKeywords(target, uint16(access))
	if access&dex.AccConstructor != 0 {
		s = strings.TrimSpace(s + " constructor")
	}
	return s
}

func (p *Printer) dexClass(f *dex.File, c *dex.ClassDef) {
	name, err := f.TypeName(c.Class)
	if err != nil {
		p.fail(fmt.Errorf("dumping class: %w", err))
		return
	}
	line := strings.TrimSpace(p.flags(dexFlags(classfile.FlagInnerClass, c.Access), "class") + " " + p.theme.name(name))
	if c.Superclass != dex.NoIndex {
		super, _ := f.TypeName(c.Superclass)
		line += " " + p.theme.keyword("extends") + " " + super
	}
	if len(c.Interfaces) > 0 {
		names := make([]string, len(c.Interfaces))
		for i, t := range c.Interfaces {
			names[i], _ = f.TypeName(t)
		}
		line += " " + p.theme.keyword("implements") + " " + strings.Join(names, ", ")
	}
	p.printf(0, "%s", line)
	if c.SourceFile != dex.NoIndex {
		src, _ := f.String(c.SourceFile)
		p.printf(1, "source %s", strconv.Quote(src))
	}
	if p.opts.Annotations && c.Annotations != nil {
		p.dexAnnotations(f, 1, c.Annotations.Class)
	}
	if c.Data == nil {
		return
	}

	members := &dex.MemberVisitor{
		Field: func(m dex.Member) {
			text := strings.TrimSpace(p.flags("field", dexFlags(classfile.FlagField, m.Field.Access)) + " " + p.theme.name(m.Ref.Name) + " " + m.Ref.Descriptor)
			if m.Field.Value != nil {
				text += " = " + valueText(f, m.Field.Value)
			}
			p.printf(1, "%s", text)
			if p.opts.Annotations && c.Annotations != nil {
				for _, fa := range c.Annotations.Fields {
					if fa.Field == m.Field.Field {
						p.dexAnnotations(f, 2, fa.Set)
					}
				}
			}
		},
		Method: func(m dex.Member) {
			p.printf(1, "%s", strings.TrimSpace(p.flags("method", dexFlags(classfile.FlagMethod, m.Method.Access))+" "+p.theme.name(m.Ref.Name)+m.Ref.Descriptor))
			if p.opts.Annotations && c.Annotations != nil {
				for _, ma := range c.Annotations.Methods {
					if ma.Method == m.Method.Method {
						p.dexAnnotations(f, 2, ma.Set)
					}
				}
			}
			if p.opts.Verbose && m.Method.Code != nil {
				p.dexCode(f, m.Method.Code)
			}
		},
	}
	for _, ef := range c.Data.Fields() {
		ref, _ := f.FieldRef(ef.Field)
		members.Visit(dex.Member{Class: c, Ref: ref, Field: ef})
	}
	for _, em := range c.Data.Methods() {
		ref, _ := f.MethodRef(em.Method)
		members.Visit(dex.Member{Class: c, Ref: ref, Method: em})
	}
}

func (p *Printer) dexCode(f *dex.File, code *dex.Code) {
	p.printf(2, "registers=%d ins=%d outs=%d units=%d", code.Registers, code.Ins, code.Outs, len(code.Insns))
	insns, err := dalvik.Decode(code.Insns)
	if err != nil {
		p.fail(err)
		return
	}
	var line string
	text := func(in *dalvik.Instruction, paint func(a ...any) string) {
		line = fmt.Sprintf("%04x: %s", in.Offset, strings.TrimSpace(paint(in.Op.String())+" "+p.operands(f, in)))
	}
	v := &dalvik.InstructionVisitor{
		Simple:   func(in *dalvik.Instruction) { text(in, p.theme.opcode) },
		Constant: func(in *dalvik.Instruction) { text(in, p.theme.opcode) },
		Invoke:   func(in *dalvik.Instruction) { text(in, p.theme.invoke) },
		Branch:   func(in *dalvik.Instruction) { text(in, p.theme.branch) },
		Payload: func(in *dalvik.Instruction) {
			var desc string
			switch pl := in.Payload.(type) {
			case *dalvik.PackedSwitch:
				desc = fmt.Sprintf("packed-switch-payload first=%d targets=%d", pl.FirstKey, len(pl.Targets))
			case *dalvik.SparseSwitch:
				desc = fmt.Sprintf("sparse-switch-payload targets=%d", len(pl.Targets))
			case *dalvik.ArrayData:
				desc = fmt.Sprintf("array-payload width=%d count=%d", pl.Width, len(pl.Values()))
			}
			line = fmt.Sprintf("%04x: %s", in.Offset, p.theme.comment(desc))
		},
	}
	for i := range insns {
		v.Visit(&insns[i])
		p.printf(3, "%s", line)
	}
	for _, t := range code.Tries {
		var hs []string
		for _, c := range t.Handler.Catches {
			typ, _ := f.TypeName(c.Type)
			hs = append(hs, fmt.Sprintf("%s -> %04x", typ, c.Addr))
		}
		if t.Handler.HasCatchAll {
			hs = append(hs, fmt.Sprintf("any -> %04x", t.Handler.CatchAll))
		}
		p.printf(2, "try %04x..%04x %s", t.Start, t.Start+uint32(t.Count), strings.Join(hs, ", "))
	}
	if code.Debug != nil {
		p.printf(2, "%s", p.theme.comment(fmt.Sprintf("debug: line %d, %d entries", code.Debug.LineStart, len(code.Debug.Entries()))))
	}
}

func (p *Printer) operands(f *dex.File, in *dalvik.Instruction) string {
	info := in.Info()
	var ops []string
	for _, r := range in.Regs {
		ops = append(ops, "v"+strconv.Itoa(int(r)))
	}
	switch info.Format {
	case dalvik.F11n, dalvik.F21s, dalvik.F21h, dalvik.F31i, dalvik.F51l, dalvik.F22b, dalvik.F22s:
		ops = append(ops, "#"+strconv.FormatInt(in.Literal, 10))
	}
	if in.Target != "" {
		if off, ok := in.Target.Offset(); ok {
			ops = append(ops, p.theme.label(fmt.Sprintf("%04x", off)))
		}
	}
	if info.Index != dalvik.IndexNone {
		ops = append(ops, p.theme.comment(indexText(f, info.Index, in.Index)))
	}
	return strings.Join(ops, ", ")
}

func indexText(f *dex.File, kind dalvik.IndexKind, i uint32) string {
	switch kind {
	case dalvik.IndexString:
		if s, err := f.String(i); err == nil {
			return strconv.Quote(s)
		}
	case dalvik.IndexType:
		if s, err := f.TypeName(i); err == nil {
			return s
		}
	case dalvik.IndexField:
		if r, err := f.FieldRef(i); err == nil {
			return r.String()
		}
	case dalvik.IndexMethod:
		if r, err := f.MethodRef(i); err == nil {
			return r.Class + "->" + r.Name + r.Descriptor
		}
	case dalvik.IndexProto:
		if s, err := f.ProtoDescriptor(i); err == nil {
			return s
		}
	case dalvik.IndexCallSite:
		return "call_site@" + strconv.FormatUint(uint64(i), 10)
	case dalvik.IndexMethodHandle:
		return "method_handle@" + strconv.FormatUint(uint64(i), 10)
	}
	return "?@" + strconv.FormatUint(uint64(i), 10)
}

// valueText is a short rendering of an encoded value; indexed kinds are
// resolved where they name a string or type.
func valueText(f *dex.File, v *dex.EncodedValue) string {
	switch v.Type {
	case dex.ValueByte, dex.ValueShort, dex.ValueInt, dex.ValueLong:
		return strconv.FormatInt(v.Int(), 10)
	case dex.ValueChar:
		return strconv.Quote(string(rune(v.Bits & 0xFFFF)))
	case dex.ValueFloat:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case dex.ValueDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case dex.ValueBoolean:
		return strconv.FormatBool(v.Bool())
	case dex.ValueNull:
		return "null"
	case dex.ValueString:
		return indexText(f, dalvik.IndexString, v.Index)
	case dex.ValueTypeRef:
		return indexText(f, dalvik.IndexType, v.Index)
	case dex.ValueField, dex.ValueEnum:
		return indexText(f, dalvik.IndexField, v.Index)
	case dex.ValueMethod:
		return indexText(f, dalvik.IndexMethod, v.Index)
	case dex.ValueArray:
		parts := make([]string, len(v.Array))
		for i := range v.Array {
			parts[i] = valueText(f, &v.Array[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case dex.ValueAnnotation:
		return "@" + indexText(f, dalvik.IndexType, v.Annotation.Type)
	}
	return v.Type.String() + "@" + strconv.FormatUint(uint64(v.Index), 10)
}

func (p *Printer) dexAnnotations(f *dex.File, indent int, set dex.AnnotationSet) {
	for _, item := range set {
		a := &item.Annotation
		typ, _ := f.TypeName(a.Type)
		parts := make([]string, len(a.Elements))
		for i, e := range a.Elements {
			name, _ := f.String(e.Name)
			parts[i] = name + "=" + valueText(f, &e.Value)
		}
		text := "@" + typ
		if len(parts) > 0 {
			text += "(" + strings.Join(parts, ", ") + ")"
		}
		vis := [...]string{"build", "runtime", "system"}
		note := "visibility " + strconv.Itoa(int(item.Visibility))
		if int(item.Visibility) < len(vis) {
			note = vis[item.Visibility]
		}
		p.printf(indent, "%s %s", text, p.theme.comment("// "+note))
	}
}
