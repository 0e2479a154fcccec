package jasm

import (
	"fmt"
	"math"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/lexer"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/editor"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Options controls Assemble.
type Options struct {
	// Target is a Java release such as "1.8" or "17". When set it
	// overrides the source's .version line.
	Target string
	// Lenient turns unknown directives, duplicate members and unknown
	// access flag keywords into warnings.
	Lenient bool
	Warn    func(string)
}

type assembler struct {
	opts  Options
	lines []lexer.Line
	pos   int

	cf           *classfile.ClassFile
	major, minor uint16
	hasVersion   bool
	hasSuper     bool
	bootstraps   []classfile.BootstrapMethod
	maxIndy      int
	indyLine     *lexer.Line
	members      map[string]bool
}

// Assemble builds the class described by src. file names the source in
// error messages.
func Assemble(file string, src []byte, opts Options) (*classfile.ClassFile, error) {
	lines, err := lexer.Lex(file, src)
	if err != nil {
		return nil, err
	}
	a := &assembler{opts: opts, lines: lines, maxIndy: -1, members: make(map[string]bool)}
	if err := a.run(); err != nil {
		return nil, err
	}
	return a.cf, nil
}

func (a *assembler) warn(l *lexer.Line, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if !a.opts.Lenient {
		return l.Errorf("%s", msg)
	}
	if a.opts.Warn != nil {
		a.opts.Warn(fmt.Sprintf("%s:%d: %s", l.File, l.Num, msg))
	}
	return nil
}

func (a *assembler) run() error {
	for a.pos < len(a.lines) {
		l := &a.lines[a.pos]
		a.pos++
		c := lexer.NewCursor(l)
		t, _ := c.Next()
		if t.Kind != lexer.Directive {
			return l.Errorf("expected a directive, got %q", t.Text)
		}
		if a.cf == nil && t.Text != ".version" && t.Text != ".class" {
			return l.Errorf("%s before .class", t.Text)
		}
		var err error
		switch t.Text {
		case ".version":
			err = a.version(c)
		case ".class":
			err = a.class(c)
		case ".super":
			err = a.super(c)
		case ".implements":
			var name string
			if name, err = c.Word(); err == nil {
				err = a.cf.AddInterface(name)
			}
		case ".source":
			err = a.source(c)
		case ".signature":
			var sig uint16
			if sig, err = a.utf8String(c); err == nil {
				err = a.cf.AddAttribute(&a.cf.Attributes, &classfile.SignatureAttribute{SignatureIndex: sig})
			}
		case ".bootstrap":
			err = a.bootstrap(c)
		case ".field":
			err = a.field(c)
		case ".method":
			err = a.method(c)
		default:
			if err := a.warn(l, "unknown directive %s", t.Text); err != nil {
				return err
			}
			continue
		}
		if err == nil {
			err = c.End()
		}
		if err != nil {
			return err
		}
	}
	if a.cf == nil {
		return errors.WrapSyntax(a.file(), 0, "no .class directive")
	}
	return a.finishClass()
}

func (a *assembler) file() string {
	if len(a.lines) > 0 {
		return a.lines[0].File
	}
	return ""
}

func (a *assembler) version(c *lexer.Cursor) error {
	major, err := a.u16(c)
	if err != nil {
		return err
	}
	minor, err := a.u16(c)
	if err != nil {
		return err
	}
	a.major, a.minor, a.hasVersion = major, minor, true
	return nil
}

func (a *assembler) u16(c *lexer.Cursor) (uint16, error) {
	v, err := c.Int(32)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %s:%d: %d does not fit in 16 bits", errors.ErrOperandRange, c.Line().File, c.Line().Num, v)
	}
	return uint16(v), nil
}

// flagWords reads access flag keywords followed by want trailing words.
func (a *assembler) flagWords(c *lexer.Cursor, target classfile.FlagTarget, want int) (uint16, []string, error) {
	var words []string
	for {
		t, ok := c.Peek()
		if !ok || t.Kind != lexer.Word || t.Text == "=" {
			break
		}
		c.Next()
		words = append(words, t.Text)
	}
	if len(words) < want {
		return 0, nil, c.Line().Errorf("expected %d names after the access flags", want)
	}
	var flags uint16
	for _, w := range words[:len(words)-want] {
		bit, ok := parseFlagWord(target, w)
		if !ok {
			if err := a.warn(c.Line(), "unknown access flag %q", w); err != nil {
				return 0, nil, err
			}
			continue
		}
		flags |= bit
	}
	return flags, words[len(words)-want:], nil
}

func (a *assembler) class(c *lexer.Cursor) error {
	if a.cf != nil {
		return c.Line().Errorf("second .class directive")
	}
	flags, names, err := a.flagWords(c, classfile.FlagClass, 1)
	if err != nil {
		return err
	}
	cf, err := classfile.New(names[0], "", flags)
	if err != nil {
		return err
	}
	a.cf = cf
	return nil
}

func (a *assembler) super(c *lexer.Cursor) error {
	name, err := c.Word()
	if err != nil {
		return err
	}
	if a.hasSuper {
		return c.Line().Errorf("second .super directive")
	}
	a.hasSuper = true
	a.cf.SuperClass, err = a.cf.ConstantPool.Class(name)
	return err
}

func (a *assembler) utf8String(c *lexer.Cursor) (uint16, error) {
	s, err := c.String()
	if err != nil {
		return 0, err
	}
	return a.cf.ConstantPool.Utf8(s)
}

func (a *assembler) source(c *lexer.Cursor) error {
	idx, err := a.utf8String(c)
	if err != nil {
		return err
	}
	return a.cf.AddAttribute(&a.cf.Attributes, &classfile.SourceFileAttribute{SourceFileIndex: idx})
}

func (a *assembler) bootstrap(c *lexer.Cursor) error {
	n, err := c.Int(32)
	if err != nil {
		return err
	}
	if int(n) != len(a.bootstraps) {
		return c.Line().Errorf("bootstrap method %d out of order, expected %d", n, len(a.bootstraps))
	}
	if err := c.Expect("handle"); err != nil {
		return err
	}
	pool := a.cf.ConstantPool
	h, err := parseHandle(pool, c)
	if err != nil {
		return err
	}
	bm := classfile.BootstrapMethod{MethodRef: h}
	for c.Accept(",") {
		arg, err := parseConstant(pool, c)
		if err != nil {
			return err
		}
		bm.Arguments = append(bm.Arguments, arg)
	}
	a.bootstraps = append(a.bootstraps, bm)
	return nil
}

func (a *assembler) field(c *lexer.Cursor) error {
	flags, names, err := a.flagWords(c, classfile.FlagField, 2)
	if err != nil {
		return err
	}
	name, desc := names[0], names[1]
	var sig string
	hasSig := false
	if t, ok := c.Peek(); ok && t.Kind == lexer.String {
		sig, _ = c.String()
		hasSig = true
	}
	var value uint16
	if c.Accept("=") {
		if value, err = parseConstant(a.cf.ConstantPool, c); err != nil {
			return err
		}
	}
	key := "field " + name + " " + desc
	if a.members[key] {
		return a.warn(c.Line(), "duplicate field %s %s", name, desc)
	}
	a.members[key] = true

	f, err := a.cf.AddField(flags, name, desc)
	if err != nil {
		return c.Line().Errorf("%v", err)
	}
	if value != 0 {
		if err := a.cf.AddAttribute(&f.Attributes, &classfile.ConstantValueAttribute{ValueIndex: value}); err != nil {
			return err
		}
	}
	if hasSig {
		idx, err := a.cf.ConstantPool.Utf8(sig)
		if err != nil {
			return err
		}
		return a.cf.AddAttribute(&f.Attributes, &classfile.SignatureAttribute{SignatureIndex: idx})
	}
	return nil
}

func (a *assembler) finishClass() error {
	cf := a.cf
	name, err := cf.ClassName()
	if err != nil {
		return err
	}
	if !a.hasSuper && name != "java/lang/Object" && cf.AccessFlags&classfile.AccModule == 0 {
		if cf.SuperClass, err = cf.ConstantPool.Class("java/lang/Object"); err != nil {
			return err
		}
	}
	cf.MajorVersion, cf.MinorVersion = classfile.DefaultMajorVersion, classfile.DefaultMinorVersion
	if a.hasVersion {
		cf.MajorVersion, cf.MinorVersion = a.major, a.minor
	}
	if a.opts.Target != "" {
		if cf.MajorVersion, cf.MinorVersion, err = TargetVersion(a.opts.Target); err != nil {
			return err
		}
	}
	if a.maxIndy >= len(a.bootstraps) {
		return a.indyLine.Errorf("invokedynamic uses bootstrap method %d, but only %d are defined", a.maxIndy, len(a.bootstraps))
	}
	if len(a.bootstraps) > 0 {
		return cf.AddAttribute(&cf.Attributes, &classfile.BootstrapMethodsAttribute{Methods: a.bootstraps})
	}
	return nil
}

// body collects a method's directives and instructions until .end method.
type body struct {
	items   []reloc.Item
	defined map[reloc.Label]bool
	catches []catchSpec
	lines   []lineMark
	vars    []varSpec
	throws  []uint16
	sig     string
	hasSig  bool
	stack   int
	locals  int
}

type catchSpec struct {
	start, end, handler reloc.Label
	class               uint16
}

type lineMark struct {
	label reloc.Label
	line  uint16
}

type varSpec struct {
	generic    bool
	slot       uint16
	name, desc string
	from, to   reloc.Label
	at         *lexer.Line
}

func (a *assembler) method(c *lexer.Cursor) error {
	start := c.Line()
	flags, names, err := a.flagWords(c, classfile.FlagMethod, 2)
	if err != nil {
		return err
	}
	if err := c.End(); err != nil {
		return err
	}
	name, desc := names[0], names[1]
	key := "method " + name + desc
	if a.members[key] {
		if err := a.warn(start, "duplicate method %s%s", name, desc); err != nil {
			return err
		}
		return a.skipMethod(start)
	}
	a.members[key] = true
	if _, err := a.cf.AddMethod(flags, name, desc); err != nil {
		return start.Errorf("%v", err)
	}
	idx := len(a.cf.Methods) - 1

	b := &body{defined: make(map[reloc.Label]bool)}
	for {
		if a.pos >= len(a.lines) {
			return start.Errorf("method %s%s has no .end method", name, desc)
		}
		l := &a.lines[a.pos]
		a.pos++
		lc := lexer.NewCursor(l)
		if lc.Accept(".end") {
			if err := lc.Expect("method"); err != nil {
				return err
			}
			if err := lc.End(); err != nil {
				return err
			}
			break
		}
		if err := a.bodyLine(b, lc); err != nil {
			return err
		}
	}
	m := &a.cf.Methods[idx]
	if err := a.finishMethod(m, b); err != nil {
		return fmt.Errorf("%s:%d: method %s%s: %w", start.File, start.Num, name, desc, err)
	}
	return nil
}

func (a *assembler) skipMethod(start *lexer.Line) error {
	for a.pos < len(a.lines) {
		l := &a.lines[a.pos]
		a.pos++
		if len(l.Tokens) > 0 && l.Tokens[0].Text == ".end" {
			return nil
		}
	}
	return start.Errorf("method has no .end method")
}

func userLabel(l *lexer.Line, name string) (reloc.Label, error) {
	if name == "" || strings.HasPrefix(name, "@") || strings.ContainsRune(name, '#') {
		return "", l.Errorf("bad label name %q", name)
	}
	return reloc.Label(name), nil
}

func labelWord(c *lexer.Cursor) (reloc.Label, error) {
	w, err := c.Word()
	if err != nil {
		return "", err
	}
	return userLabel(c.Line(), w)
}

func (a *assembler) bodyLine(b *body, c *lexer.Cursor) error {
	t, _ := c.Peek()
	switch t.Kind {
	case lexer.Label:
		c.Next()
		l, err := userLabel(c.Line(), t.Text)
		if err != nil {
			return err
		}
		if b.defined[l] {
			return c.Line().Errorf("label %s defined twice", l)
		}
		b.defined[l] = true
		b.items = append(b.items, reloc.Mark{Label: l})
		if c.Done() {
			return nil
		}
		return a.bodyLine(b, c)
	case lexer.Directive:
		c.Next()
		if err := a.bodyDirective(b, c, t.Text); err != nil {
			return err
		}
	default:
		in, err := a.instruction(c)
		if err != nil {
			return err
		}
		b.items = append(b.items, in)
	}
	return c.End()
}

func (a *assembler) bodyDirective(b *body, c *lexer.Cursor, dir string) error {
	pool := a.cf.ConstantPool
	switch dir {
	case ".limit":
		w, err := c.Word()
		if err != nil {
			return err
		}
		n, err := a.u16(c)
		if err != nil {
			return err
		}
		switch w {
		case "stack":
			b.stack = int(n)
		case "locals":
			b.locals = int(n)
		default:
			return c.Line().Errorf("unknown limit %q", w)
		}
	case ".throws":
		name, err := c.Word()
		if err != nil {
			return err
		}
		idx, err := pool.Class(name)
		if err != nil {
			return err
		}
		b.throws = append(b.throws, idx)
	case ".signature":
		s, err := c.String()
		if err != nil {
			return err
		}
		b.sig, b.hasSig = s, true
	case ".line":
		n, err := a.u16(c)
		if err != nil {
			return err
		}
		l := reloc.Label(fmt.Sprintf("line#%d", len(b.lines)))
		b.items = append(b.items, reloc.Mark{Label: l})
		b.lines = append(b.lines, lineMark{label: l, line: n})
	case ".catch":
		cls, err := c.Word()
		if err != nil {
			return err
		}
		var spec catchSpec
		if cls != "all" {
			if spec.class, err = pool.Class(cls); err != nil {
				return err
			}
		}
		for _, part := range []struct {
			kw string
			l  *reloc.Label
		}{{"from", &spec.start}, {"to", &spec.end}, {"using", &spec.handler}} {
			if err := c.Expect(part.kw); err != nil {
				return err
			}
			if *part.l, err = labelWord(c); err != nil {
				return err
			}
		}
		b.catches = append(b.catches, spec)
	case ".var", ".vartype":
		v := varSpec{generic: dir == ".vartype", at: c.Line()}
		var err error
		if v.slot, err = a.u16(c); err != nil {
			return err
		}
		if v.name, err = c.Word(); err != nil {
			return err
		}
		if v.desc, err = c.Word(); err != nil {
			return err
		}
		if err := c.Expect("from"); err != nil {
			return err
		}
		if v.from, err = labelWord(c); err != nil {
			return err
		}
		if err := c.Expect("to"); err != nil {
			return err
		}
		if v.to, err = labelWord(c); err != nil {
			return err
		}
		b.vars = append(b.vars, v)
	default:
		if err := a.warn(c.Line(), "unknown directive %s", dir); err != nil {
			return err
		}
		for !c.Done() {
			c.Next()
		}
	}
	return nil
}

func (a *assembler) finishMethod(m *classfile.MethodInfo, b *body) error {
	cf := a.cf
	if len(b.items) > 0 || len(b.catches) > 0 {
		e, err := editor.New(cf, m)
		if err != nil {
			return err
		}
		if err := e.Prepend(0, b.items...); err != nil {
			return err
		}
		for _, h := range b.catches {
			e.AddExceptionHandler(h.start, h.end, h.handler, h.class)
		}
		if err := e.Finish(); err != nil {
			return err
		}
		if err := a.debugTables(e, b); err != nil {
			return err
		}
		code := e.Code()
		code.MaxStack = max(code.MaxStack, uint16(b.stack))
		code.MaxLocals = max(code.MaxLocals, uint16(b.locals))
	}
	if len(b.throws) > 0 {
		if err := cf.AddAttribute(&m.Attributes, &classfile.ExceptionsAttribute{ExceptionIndexes: b.throws}); err != nil {
			return err
		}
	}
	if b.hasSig {
		idx, err := cf.ConstantPool.Utf8(b.sig)
		if err != nil {
			return err
		}
		return cf.AddAttribute(&m.Attributes, &classfile.SignatureAttribute{SignatureIndex: idx})
	}
	return nil
}

func (a *assembler) debugTables(e *editor.CodeEditor, b *body) error {
	cf := a.cf
	code := e.Code()
	if len(b.lines) > 0 {
		lnt := &classfile.LineNumberTableAttribute{}
		for _, lm := range b.lines {
			if pc, ok := e.LabelOffset(lm.label); ok && pc < code.CodeLength() {
				lnt.Entries = append(lnt.Entries, classfile.LineNumber{StartPC: uint16(pc), LineNumber: lm.line})
			}
		}
		if err := cf.AddAttribute(&code.Attributes, lnt); err != nil {
			return err
		}
	}
	tables := map[bool]*classfile.LocalVariableTableAttribute{}
	for _, v := range b.vars {
		from, ok1 := e.LabelOffset(v.from)
		to, ok2 := e.LabelOffset(v.to)
		if !ok1 || !ok2 {
			return fmt.Errorf("%s:%d: %w", v.at.File, v.at.Num, errors.WrapUnresolvedLabel(string(v.from)+" or "+string(v.to)))
		}
		if to < from {
			return v.at.Errorf("variable %s ends before it starts", v.name)
		}
		name, err := cf.ConstantPool.Utf8(v.name)
		if err != nil {
			return err
		}
		desc, err := cf.ConstantPool.Utf8(v.desc)
		if err != nil {
			return err
		}
		t := tables[v.generic]
		if t == nil {
			t = &classfile.LocalVariableTableAttribute{Generic: v.generic}
			tables[v.generic] = t
		}
		t.Entries = append(t.Entries, classfile.LocalVariable{
			StartPC: uint16(from), Length: uint16(to - from), NameIndex: name, DescriptorIndex: desc, Index: v.slot,
		})
	}
	for _, generic := range []bool{false, true} {
		if t := tables[generic]; t != nil {
			if err := cf.AddAttribute(&code.Attributes, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *assembler) instruction(c *lexer.Cursor) (*bytecode.Instruction, error) {
	l := c.Line()
	name, err := c.Word()
	if err != nil {
		return nil, err
	}
	in := &bytecode.Instruction{}
	if name == "wide" {
		in.Wide = true
		if name, err = c.Word(); err != nil {
			return nil, err
		}
	}
	op, ok := bytecode.ByName(name)
	if !ok {
		return nil, l.Errorf("unknown instruction %q", name)
	}
	in.Op = op
	info := in.Info()
	if in.Wide && info.Shape != bytecode.ShapeLocal && info.Shape != bytecode.ShapeIinc {
		return nil, l.Errorf("%s cannot be wide", name)
	}
	pool := a.cf.ConstantPool

	switch info.Shape {
	case bytecode.ShapeNone:
	case bytecode.ShapeByte, bytecode.ShapeShort:
		v, err := c.Int(32)
		if err != nil {
			return nil, err
		}
		in.Value = int32(v)
	case bytecode.ShapeLocal, bytecode.ShapeIinc:
		if in.Local, err = a.u16(c); err != nil {
			return nil, err
		}
		if info.Shape == bytecode.ShapeIinc {
			v, err := c.Int(32)
			if err != nil {
				return nil, err
			}
			in.Value = int32(v)
		}
	case bytecode.ShapeConst8, bytecode.ShapeConst16:
		in.Index, err = a.poolOperand(c, op)
	case bytecode.ShapeInvokeInterface:
		var class, n, d string
		if class, n, d, err = memberOperands(c); err != nil {
			return nil, err
		}
		md, derr := classfile.ParseMethodDescriptor(d)
		if derr != nil {
			return nil, l.Errorf("%v", derr)
		}
		in.Value = int32(1 + md.ArgSlots())
		in.Index, err = pool.InterfaceMethodref(class, n, d)
	case bytecode.ShapeInvokeDynamic:
		bsm, err := a.u16(c)
		if err != nil {
			return nil, err
		}
		n, err := c.Word()
		if err != nil {
			return nil, err
		}
		d, err := c.Word()
		if err != nil {
			return nil, err
		}
		if int(bsm) > a.maxIndy {
			a.maxIndy, a.indyLine = int(bsm), l
		}
		in.Index, err = pool.InvokeDynamic(bsm, n, d)
		if err != nil {
			return nil, err
		}
	case bytecode.ShapeNewArray:
		w, err := c.Word()
		if err != nil {
			return nil, err
		}
		t, ok := bytecode.ArrayTypeByName(w)
		if !ok {
			return nil, l.Errorf("unknown array type %q", w)
		}
		in.Value = t
	case bytecode.ShapeMultiANewArray:
		cls, err := c.Word()
		if err != nil {
			return nil, err
		}
		dims, err := c.Int(32)
		if err != nil {
			return nil, err
		}
		if dims < 1 || dims > math.MaxUint8 {
			return nil, errors.WrapOperandRange(name, dims)
		}
		in.Value = int32(dims)
		in.Index, err = pool.Class(cls)
		if err != nil {
			return nil, err
		}
	case bytecode.ShapeBranch, bytecode.ShapeBranchWide:
		in.Target, err = labelWord(c)
	case bytecode.ShapeTableSwitch:
		low, err := c.Int(32)
		if err != nil {
			return nil, err
		}
		in.Low = int32(low)
		for !c.Accept("default") {
			t, err := labelWord(c)
			if err != nil {
				return nil, err
			}
			in.Targets = append(in.Targets, t)
		}
		in.Default, err = labelWord(c)
		if err != nil {
			return nil, err
		}
	case bytecode.ShapeLookupSwitch:
		for !c.Accept("default") {
			k, err := c.Int(32)
			if err != nil {
				return nil, err
			}
			if n := len(in.Keys); n > 0 && int32(k) <= in.Keys[n-1] {
				return nil, l.Errorf("lookupswitch keys must increase")
			}
			t, err := labelWord(c)
			if err != nil {
				return nil, err
			}
			in.Keys = append(in.Keys, int32(k))
			in.Targets = append(in.Targets, t)
		}
		in.Default, err = labelWord(c)
		if err != nil {
			return nil, err
		}
	default:
		return nil, l.Errorf("%s is written as a prefix: wide <instruction>", name)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

// poolOperand reads the constant pool operand of a one or two byte
// index instruction.
func (a *assembler) poolOperand(c *lexer.Cursor, op bytecode.Opcode) (uint16, error) {
	pool := a.cf.ConstantPool
	switch op {
	case bytecode.OpLdc, bytecode.OpLdcW, bytecode.OpLdc2W:
		idx, err := parseConstant(pool, c)
		if err != nil {
			return 0, err
		}
		k, _ := pool.Get(idx)
		wide := k.Tag() == classfile.TagLong || k.Tag() == classfile.TagDouble
		if wide != (op == bytecode.OpLdc2W) {
			return 0, c.Line().Errorf("%s cannot load this constant", op)
		}
		return idx, nil
	case bytecode.OpNew, bytecode.OpAnewarray, bytecode.OpCheckcast, bytecode.OpInstanceof:
		name, err := c.Word()
		if err != nil {
			return 0, err
		}
		return pool.Class(name)
	case bytecode.OpGetfield, bytecode.OpPutfield, bytecode.OpGetstatic, bytecode.OpPutstatic:
		class, n, d, err := memberOperands(c)
		if err != nil {
			return 0, err
		}
		return pool.Fieldref(class, n, d)
	}
	iface := c.Accept("interface")
	class, n, d, err := memberOperands(c)
	if err != nil {
		return 0, err
	}
	if _, err := classfile.ParseMethodDescriptor(d); err != nil {
		return 0, c.Line().Errorf("%v", err)
	}
	if iface {
		return pool.InterfaceMethodref(class, n, d)
	}
	return pool.Methodref(class, n, d)
}
