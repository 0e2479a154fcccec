package dump

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/visit"
)

// Classes returns a visitor that dumps every class it is given that passes
// the filter, with a blank line between classes.
func (p *Printer) Classes() visit.Visitor[*classfile.ClassFile] {
	v := visit.JoinedBy[*classfile.ClassFile](visit.Func[*classfile.ClassFile](p.Class), p.blank)
	return visit.NameMatching(v, p.opts.Filter, func(cf *classfile.ClassFile) string {
		name, _ := cf.ClassName()
		return name
	})
}

// Class dumps one classfile regardless of the filter.
func (p *Printer) Class(cf *classfile.ClassFile) {
	pool := cf.ConstantPool
	name, err := cf.ClassName()
	if err != nil {
		p.fail(fmt.Errorf("dumping class: %w", err))
		return
	}
	kind := "class"
	if cf.AccessFlags&classfile.AccInterface != 0 {
		kind = "interface"
	}
	flags := cf.AccessFlags &^ (classfile.AccSuper | classfile.AccInterface)
	line := strings.TrimSpace(p.flags(classfile.FlagKeywords(classfile.FlagClass, flags), kind) + " " + p.theme.name(name))
	if super := cf.SuperClassName(); super != "" {
		line += " " + p.theme.keyword("extends") + " " + super
	}
	if len(cf.Interfaces) > 0 {
		names := make([]string, len(cf.Interfaces))
		for i, idx := range cf.Interfaces {
			if names[i], err = pool.GetClassName(idx); err != nil {
				p.fail(fmt.Errorf("class %s: %w", name, err))
				return
			}
		}
		line += " " + p.theme.keyword("implements") + " " + strings.Join(names, ", ")
	}
	p.printf(0, "%s", line)
	p.printf(1, "version %d.%d, %d constants", cf.MajorVersion, cf.MinorVersion, pool.Count())

	if p.opts.Verbose {
		p.printf(1, "constant pool:")
		pool.Accept(p.constantVisitor(pool))
	}
	if p.opts.Annotations {
		p.annotations(pool, 1, cf.Attributes)
	}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		fname, _ := pool.GetUtf8(f.NameIndex)
		desc, _ := pool.GetUtf8(f.DescriptorIndex)
		p.printf(1, "%s", strings.TrimSpace(p.flags("field", classfile.FlagKeywords(classfile.FlagField, f.AccessFlags))+" "+p.theme.name(fname)+" "+desc))
		if p.opts.Annotations {
			p.annotations(pool, 2, f.Attributes)
		}
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		mname, _ := pool.GetUtf8(m.NameIndex)
		desc, _ := pool.GetUtf8(m.DescriptorIndex)
		p.printf(1, "%s", strings.TrimSpace(p.flags("method", classfile.FlagKeywords(classfile.FlagMethod, m.AccessFlags))+" "+p.theme.name(mname)+desc))
		if p.opts.Annotations {
			p.annotations(pool, 2, m.Attributes)
		}
		if code := m.Code(); code != nil && p.opts.Verbose {
			p.code(pool, code)
		}
	}
}

func (p *Printer) constantVisitor(pool *classfile.ConstantPool) visit.Visitor[classfile.PoolEntry] {
	row := func(e classfile.PoolEntry, kind, value string) {
		p.printf(2, "#%-4d %-18s %s", e.Index, kind, value)
	}
	ref := func(e classfile.PoolEntry, kind string, a, b uint16) {
		row(e, kind, fmt.Sprintf("#%d.#%d", a, b))
	}
	return &classfile.ConstantVisitor{
		Utf8: func(e classfile.PoolEntry, c *classfile.ConstantUtf8) { row(e, "Utf8", strconv.Quote(c.Value)) },
		Number: func(e classfile.PoolEntry) {
			switch c := e.Constant.(type) {
			case *classfile.ConstantInteger:
				row(e, "Integer", strconv.FormatInt(int64(c.Value), 10))
			case *classfile.ConstantFloat:
				row(e, "Float", strconv.FormatFloat(float64(c.Value), 'g', -1, 32))
			case *classfile.ConstantLong:
				row(e, "Long", strconv.FormatInt(c.Value, 10))
			case *classfile.ConstantDouble:
				row(e, "Double", strconv.FormatFloat(c.Value, 'g', -1, 64))
			}
		},
		Class:  func(e classfile.PoolEntry, c *classfile.ConstantClass) { row(e, "Class", fmt.Sprintf("#%d", c.NameIndex)) },
		String: func(e classfile.PoolEntry, c *classfile.ConstantString) { row(e, "String", fmt.Sprintf("#%d", c.StringIndex)) },
		Member: func(e classfile.PoolEntry) {
			r, err := pool.ResolveMemberref(e.Index)
			if err != nil {
				p.fail(err)
				return
			}
			kind := "Methodref"
			switch e.Constant.(type) {
			case *classfile.ConstantFieldref:
				kind = "Fieldref"
			case *classfile.ConstantInterfaceMethodref:
				kind = "InterfaceMethodref"
			}
			row(e, kind, p.theme.comment(r.ClassName+"."+r.Name+":"+r.Descriptor))
		},
		NameAndType: func(e classfile.PoolEntry, c *classfile.ConstantNameAndType) {
			ref(e, "NameAndType", c.NameIndex, c.DescriptorIndex)
		},
		MethodHandle: func(e classfile.PoolEntry, c *classfile.ConstantMethodHandle) {
			row(e, "MethodHandle", fmt.Sprintf("%d:#%d", c.ReferenceKind, c.ReferenceIndex))
		},
		MethodType: func(e classfile.PoolEntry, c *classfile.ConstantMethodType) {
			row(e, "MethodType", fmt.Sprintf("#%d", c.DescriptorIndex))
		},
		Dynamic: func(e classfile.PoolEntry) {
			name, desc, err := pool.ResolveInvokeDynamic(e.Index)
			if err != nil {
				p.fail(err)
				return
			}
			kind := "InvokeDynamic"
			if _, ok := e.Constant.(*classfile.ConstantDynamic); ok {
				kind = "Dynamic"
			}
			row(e, kind, p.theme.comment(name+":"+desc))
		},
		Any: func(e classfile.PoolEntry) { row(e, fmt.Sprintf("tag %d", e.Constant.Tag()), "") },
	}
}

func (p *Printer) code(pool *classfile.ConstantPool, code *classfile.CodeAttribute) {
	p.printf(2, "stack=%d locals=%d length=%d", code.MaxStack, code.MaxLocals, code.CodeLength())
	var line string
	at := func(in *bytecode.Instruction, op string, operands ...string) {
		line = fmt.Sprintf("%5d: %s", in.Offset, strings.Join(append([]string{op}, operands...), " "))
	}
	target := func(l string) string {
		return p.theme.label(strings.TrimPrefix(l, "@"))
	}
	v := &bytecode.InstructionVisitor{
		Constant: func(in *bytecode.Instruction) {
			name := p.theme.invoke(in.Op.String())
			ops := []string{fmt.Sprintf("#%d", in.Index)}
			if in.Op == bytecode.OpMultianewarray {
				ops = append(ops, strconv.Itoa(int(in.Value)))
			}
			if c, err := pool.Get(in.Index); err == nil {
				ops = append(ops, p.theme.comment("// "+constantSummary(pool, in.Index, c)))
			}
			at(in, name, ops...)
		},
		Local: func(in *bytecode.Instruction) {
			ops := []string{strconv.Itoa(in.LocalIndex())}
			if in.Info().Shape == bytecode.ShapeIinc {
				ops = append(ops, strconv.Itoa(int(in.Value)))
			}
			if in.Info().ImplicitLocal >= 0 {
				ops = nil
			}
			at(in, p.theme.opcode(in.Op.String()), ops...)
		},
		Branch: func(in *bytecode.Instruction) {
			at(in, p.theme.branch(in.Op.String()), target(string(in.Target)))
		},
		Switch: func(in *bytecode.Instruction) {
			ops := []string{"default:" + target(string(in.Default))}
			for i, t := range in.Targets {
				key := int64(in.Low) + int64(i)
				if in.Info().Shape == bytecode.ShapeLookupSwitch {
					key = int64(in.Keys[i])
				}
				ops = append(ops, fmt.Sprintf("%d:%s", key, target(string(t))))
			}
			at(in, p.theme.branch(in.Op.String()), ops...)
		},
		Simple: func(in *bytecode.Instruction) {
			var ops []string
			switch in.Info().Shape {
			case bytecode.ShapeByte, bytecode.ShapeShort:
				ops = []string{strconv.Itoa(int(in.Value))}
			case bytecode.ShapeNewArray:
				name, _ := bytecode.ArrayTypeName(in.Value)
				ops = []string{name}
			}
			at(in, p.theme.opcode(in.Op.String()), ops...)
		},
	}
	for i := range code.Instructions {
		v.Visit(&code.Instructions[i])
		p.printf(3, "%s", line)
	}
	if len(code.ExceptionTable) > 0 {
		p.printf(2, "handlers:")
		for _, h := range code.ExceptionTable {
			catch := "any"
			if h.CatchType != 0 {
				catch, _ = pool.GetClassName(h.CatchType)
			}
			p.printf(3, "%5d %5d %5d  %s", h.StartPC, h.EndPC, h.HandlerPC, catch)
		}
	}
	if len(code.Attributes) > 0 {
		names := make([]string, len(code.Attributes))
		for i, a := range code.Attributes {
			names[i] = a.Name()
		}
		p.printf(2, "%s", p.theme.comment("attributes: "+strings.Join(names, " ")))
	}
}

// constantSummary resolves the entry an instruction operand points at.
func constantSummary(pool *classfile.ConstantPool, idx uint16, c classfile.Constant) string {
	switch c := c.(type) {
	case *classfile.ConstantClass:
		name, _ := pool.GetUtf8(c.NameIndex)
		return "class " + name
	case *classfile.ConstantString:
		s, _ := pool.GetUtf8(c.StringIndex)
		return "String " + strconv.Quote(s)
	case *classfile.ConstantInteger:
		return "int " + strconv.FormatInt(int64(c.Value), 10)
	case *classfile.ConstantFloat:
		return "float " + strconv.FormatFloat(float64(c.Value), 'g', -1, 32)
	case *classfile.ConstantLong:
		return "long " + strconv.FormatInt(c.Value, 10)
	case *classfile.ConstantDouble:
		return "double " + strconv.FormatFloat(c.Value, 'g', -1, 64)
	case *classfile.ConstantFieldref, *classfile.ConstantMethodref, *classfile.ConstantInterfaceMethodref:
		if r, err := pool.ResolveMemberref(idx); err == nil {
			return r.ClassName + "." + r.Name + ":" + r.Descriptor
		}
	case *classfile.ConstantInvokeDynamic, *classfile.ConstantDynamic:
		if name, desc, err := pool.ResolveInvokeDynamic(idx); err == nil {
			return "dynamic " + name + ":" + desc
		}
	case *classfile.ConstantMethodType:
		desc, _ := pool.GetUtf8(c.DescriptorIndex)
		return "MethodType " + desc
	case *classfile.ConstantMethodHandle:
		return fmt.Sprintf("MethodHandle kind %d", c.ReferenceKind)
	}
	return fmt.Sprintf("tag %d", c.Tag())
}

func (p *Printer) annotations(pool *classfile.ConstantPool, indent int, attrs []classfile.Attribute) {
	v := &classfile.AttributeVisitor{
		Annotations: func(a *classfile.AnnotationsAttribute) {
			vis := "invisible"
			if a.Visible {
				vis = "visible"
			}
			for _, an := range a.Annotations {
				p.printf(indent, "%s %s", annotationText(pool, &an), p.theme.comment("// "+vis))
			}
		},
	}
	visit.Each(attrs, visit.Visitor[classfile.Attribute](v))
}

func annotationText(pool *classfile.ConstantPool, a *classfile.Annotation) string {
	typ, _ := pool.GetUtf8(a.TypeIndex)
	if len(a.Elements) == 0 {
		return "@" + typ
	}
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		name, _ := pool.GetUtf8(e.NameIndex)
		parts[i] = name + "=" + elementText(pool, e.Value)
	}
	return "@" + typ + "(" + strings.Join(parts, ", ") + ")"
}

func elementText(pool *classfile.ConstantPool, e classfile.ElementValue) string {
	var out string
	v := &classfile.ElementValueVisitor{
		Const: func(e *classfile.ConstElement) {
			c, err := pool.Get(e.ConstIndex)
			if err != nil {
				out = "?"
				return
			}
			switch c := c.(type) {
			case *classfile.ConstantUtf8:
				out = strconv.Quote(c.Value)
			default:
				out = constantSummary(pool, e.ConstIndex, c)
			}
		},
		Enum: func(e *classfile.EnumElement) {
			typ, _ := pool.GetUtf8(e.TypeNameIndex)
			name, _ := pool.GetUtf8(e.ConstNameIndex)
			out = typ + "." + name
		},
		Class: func(e *classfile.ClassElement) {
			name, _ := pool.GetUtf8(e.ClassInfoIndex)
			out = name + ".class"
		},
		Annotation: func(e *classfile.AnnotationElement) { out = annotationText(pool, &e.Annotation) },
		Array: func(e *classfile.ArrayElement) {
			parts := make([]string, len(e.Values))
			for i, x := range e.Values {
				parts[i] = elementText(pool, x)
			}
			out = "{" + strings.Join(parts, ", ") + "}"
		},
	}
	v.Visit(e)
	return out
}
