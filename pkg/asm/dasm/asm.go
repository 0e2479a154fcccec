package dasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/lexer"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/dexedit"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Options controls Assemble.
type Options struct {
	// Lenient turns unknown directives, duplicate members and unknown
	// access flag keywords into warnings.
	Lenient bool
	Warn    func(string)
}

type assembler struct {
	opts    Options
	f       *dex.File
	lines   []lexer.Line
	pos     int
	cls     *classState
	classes []string
}

// classState is the class being assembled. The definition is added to
// the file when its first member or the next class starts, so the header
// directives must come first.
type classState struct {
	name       string
	access     uint32
	super      string
	hasSuper   bool
	interfaces []string
	source     string
	hasSource  bool
	def        *dex.ClassDef
	members    map[string]bool
}

// Assemble adds the classes described by src to f and returns their type
// descriptors. file names the source in error messages.
func Assemble(f *dex.File, file string, src []byte, opts Options) ([]string, error) {
	lines, err := lexer.Lex(file, src)
	if err != nil {
		return nil, err
	}
	a := &assembler{opts: opts, f: f, lines: lines}
	if err := a.run(file); err != nil {
		return nil, err
	}
	return a.classes, nil
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

func (a *assembler) run(file string) error {
	for a.pos < len(a.lines) {
		l := &a.lines[a.pos]
		a.pos++
		c := lexer.NewCursor(l)
		t, _ := c.Next()
		if t.Kind != lexer.Directive {
			return l.Errorf("expected a directive, got %q", t.Text)
		}
		if a.cls == nil && t.Text != ".class" {
			return l.Errorf("%s before .class", t.Text)
		}
		var err error
		switch t.Text {
		case ".class":
			err = a.class(c)
		case ".super":
			err = a.super(c)
		case ".implements":
			err = a.implements(c)
		case ".source":
			err = a.source(c)
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
	if a.cls == nil {
		return errors.WrapSyntax(file, 0, "no .class directive")
	}
	_, err := a.classDef()
	return err
}

// flagWords reads access flag keywords followed by one trailing name.
func (a *assembler) flagWords(c *lexer.Cursor, target classfile.FlagTarget) (uint32, string, error) {
	var words []string
	for {
		t, ok := c.Peek()
		if !ok || t.Kind != lexer.Word || t.Text == "=" {
			break
		}
		c.Next()
		words = append(words, t.Text)
	}
	if len(words) == 0 {
		return 0, "", c.Line().Errorf("expected a name after the access flags")
	}
	var flags uint32
	for _, w := range words[:len(words)-1] {
		bit, ok := parseAccessWord(target, w)
		if !ok {
			if err := a.warn(c.Line(), "unknown access flag %q", w); err != nil {
				return 0, "", err
			}
			continue
		}
		flags |= bit
	}
	return flags, words[len(words)-1], nil
}

func (a *assembler) class(c *lexer.Cursor) error {
	if a.cls != nil {
		if _, err := a.classDef(); err != nil {
			return err
		}
	}
	flags, name, err := a.flagWords(c, classfile.FlagInnerClass)
	if err != nil {
		return err
	}
	if err := checkType(name); err != nil || !strings.HasPrefix(name, "L") {
		return c.Line().Errorf("bad class name %q", name)
	}
	a.cls = &classState{name: name, access: flags, members: make(map[string]bool)}
	a.classes = append(a.classes, name)
	return nil
}

func (a *assembler) header(c *lexer.Cursor) error {
	if a.cls.def != nil {
		return c.Line().Errorf("class header directives must precede the members")
	}
	return nil
}

func (a *assembler) super(c *lexer.Cursor) error {
	if err := a.header(c); err != nil {
		return err
	}
	name, err := c.Word()
	if err != nil {
		return err
	}
	if a.cls.hasSuper {
		return c.Line().Errorf("second .super directive")
	}
	if err := checkType(name); err != nil {
		return c.Line().Errorf("%v", err)
	}
	a.cls.super, a.cls.hasSuper = name, true
	return nil
}

func (a *assembler) implements(c *lexer.Cursor) error {
	if err := a.header(c); err != nil {
		return err
	}
	name, err := c.Word()
	if err != nil {
		return err
	}
	if err := checkType(name); err != nil {
		return c.Line().Errorf("%v", err)
	}
	a.cls.interfaces = append(a.cls.interfaces, name)
	return nil
}

func (a *assembler) source(c *lexer.Cursor) error {
	if err := a.header(c); err != nil {
		return err
	}
	s, err := c.String()
	if err != nil {
		return err
	}
	a.cls.source, a.cls.hasSource = s, true
	return nil
}

// classDef adds the current class to the file on first use.
func (a *assembler) classDef() (*dex.ClassDef, error) {
	cls := a.cls
	if cls.def != nil {
		return cls.def, nil
	}
	super := cls.super
	if !cls.hasSuper && cls.name != "Ljava/lang/Object;" {
		super = "Ljava/lang/Object;"
	}
	def, err := a.f.AddClass(cls.name, super, cls.access)
	if err != nil {
		return nil, err
	}
	for _, iface := range cls.interfaces {
		if err := a.f.AddInterface(def, iface); err != nil {
			return nil, err
		}
	}
	if cls.hasSource {
		def.SourceFile = a.f.AddString(cls.source)
	}
	cls.def = def
	return def, nil
}

func (a *assembler) field(c *lexer.Cursor) error {
	flags, last, err := a.flagWords(c, classfile.FlagField)
	if err != nil {
		return err
	}
	name, typ, ok := strings.Cut(last, ":")
	if !ok || name == "" {
		return c.Line().Errorf("expected name:type, got %q", last)
	}
	if err := checkType(typ); err != nil {
		return c.Line().Errorf("field %s: %v", name, err)
	}
	var value *dex.EncodedValue
	if c.Accept("=") {
		v, err := parseValue(a.f, c)
		if err != nil {
			return err
		}
		value = &v
	}
	key := "field " + last
	if a.cls.members[key] {
		return a.warn(c.Line(), "duplicate field %s", last)
	}
	a.cls.members[key] = true

	def, err := a.classDef()
	if err != nil {
		return err
	}
	if _, err := a.f.AddEncodedField(def, flags, name, typ, value); err != nil {
		return c.Line().Errorf("%v", err)
	}
	return nil
}

// isEnd reports whether l is ".end <what>".
func isEnd(l *lexer.Line, what string) bool {
	return len(l.Tokens) >= 2 && l.Tokens[0].Text == ".end" && l.Tokens[1].Text == what
}

func (a *assembler) method(c *lexer.Cursor) error {
	start := c.Line()
	flags, last, err := a.flagWords(c, classfile.FlagMethod)
	if err != nil {
		return err
	}
	if err := c.End(); err != nil {
		return err
	}
	i := strings.IndexByte(last, '(')
	if i <= 0 {
		return start.Errorf("expected name(params)return, got %q", last)
	}
	name, desc := last[:i], last[i:]
	md, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return start.Errorf("method %s: %v", name, err)
	}
	key := "method " + last
	if a.cls.members[key] {
		if err := a.warn(start, "duplicate method %s", last); err != nil {
			return err
		}
		return a.skipMethod(start)
	}
	a.cls.members[key] = true

	def, err := a.classDef()
	if err != nil {
		return err
	}
	m, err := a.f.AddEncodedMethod(def, flags, name, desc, nil)
	if err != nil {
		return start.Errorf("%v", err)
	}
	b := &body{
		ins:       dalvik.InsSize(md.Params, flags&dex.AccStatic != 0),
		params:    len(md.Params),
		registers: -1,
		defined:   make(map[reloc.Label]bool),
		payloads:  make(map[reloc.Label]*payloadDef),
	}
	for {
		if a.pos >= len(a.lines) {
			return start.Errorf("method %s has no .end method", last)
		}
		l := &a.lines[a.pos]
		a.pos++
		if isEnd(l, "method") {
			if len(l.Tokens) > 2 {
				return l.Errorf("unexpected %q after .end method", l.Tokens[2].Text)
			}
			break
		}
		if err := a.bodyLine(b, lexer.NewCursor(l)); err != nil {
			return err
		}
	}
	if err := a.finishMethod(m, b); err != nil {
		return fmt.Errorf("%s:%d: method %s: %w", start.File, start.Num, last, err)
	}
	return nil
}

func (a *assembler) skipMethod(start *lexer.Line) error {
	for a.pos < len(a.lines) {
		l := &a.lines[a.pos]
		a.pos++
		if isEnd(l, "method") {
			return nil
		}
	}
	return start.Errorf("method has no .end method")
}

// body collects a method's directives and instructions until .end method.
type body struct {
	ins       int
	params    int
	registers int // -1 until .registers or .locals

	items    []reloc.Item
	defined  map[reloc.Label]bool
	pending  []reloc.Label // labels since the last instruction
	marks    int
	payloads map[reloc.Label]*payloadDef
	blocks   []*payloadDef
	users    []payloadUser
	tries    []trySpec
	names    []uint32
	debug    []debugMark
}

type payloadDef struct {
	in   *dalvik.Instruction
	line *lexer.Line
	used bool
}

// payloadUser is a switch or fill-array-data instruction. base labels the
// instruction for switch payloads.
type payloadUser struct {
	in   *dalvik.Instruction
	base reloc.Label
	line *lexer.Line
}

type trySpec struct {
	start, end, handler reloc.Label
	catchType           uint32
}

type debugMark struct {
	label reloc.Label
	line  int64
	op    dex.DebugOp
}

func (b *body) mark(prefix string) reloc.Label {
	b.marks++
	l := reloc.Label(fmt.Sprintf("%s#%d", prefix, b.marks))
	b.items = append(b.items, reloc.Mark{Label: l})
	return l
}

func userLabel(l *lexer.Line, name string) (reloc.Label, error) {
	if name == "" || strings.HasPrefix(name, "@") || strings.Contains(name, "#") {
		return "", l.Errorf("bad label %q", name)
	}
	return reloc.Label(name), nil
}

func (b *body) reg(c *lexer.Cursor) (uint16, error) {
	w, err := c.Word()
	if err != nil {
		return 0, err
	}
	if len(w) < 2 || (w[0] != 'v' && w[0] != 'p') {
		return 0, c.Line().Errorf("expected a register, got %q", w)
	}
	n, err := strconv.ParseUint(w[1:], 10, 16)
	if err != nil {
		return 0, c.Line().Errorf("bad register %q", w)
	}
	if w[0] == 'v' {
		return uint16(n), nil
	}
	if b.registers < 0 {
		return 0, c.Line().Errorf("parameter register %s needs .registers or .locals first", w)
	}
	if int(n) >= b.ins {
		return 0, c.Line().Errorf("parameter register %s out of range, method has %d", w, b.ins)
	}
	return uint16(b.registers - b.ins + int(n)), nil
}

func (b *body) regs(c *lexer.Cursor, n int) ([]uint16, error) {
	out := make([]uint16, n)
	for i := range out {
		if i > 0 {
			if err := c.Expect(","); err != nil {
				return nil, err
			}
		}
		r, err := b.reg(c)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// regList reads "{v0, v1}" or the range form "{v0 .. v3}".
func (b *body) regList(c *lexer.Cursor) ([]uint16, error) {
	if err := c.Expect("{"); err != nil {
		return nil, err
	}
	var out []uint16
	if c.Accept("}") {
		return out, nil
	}
	first, err := b.reg(c)
	if err != nil {
		return nil, err
	}
	out = append(out, first)
	if c.Accept("..") {
		last, err := b.reg(c)
		if err != nil {
			return nil, err
		}
		if last < first {
			return nil, c.Line().Errorf("register range v%d .. v%d is empty", first, last)
		}
		for r := first + 1; r <= last; r++ {
			out = append(out, r)
		}
		return out, c.Expect("}")
	}
	for !c.Accept("}") {
		if err := c.Expect(","); err != nil {
			return nil, err
		}
		r, err := b.reg(c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *assembler) bodyLine(b *body, c *lexer.Cursor) error {
	t, _ := c.Next()
	switch t.Kind {
	case lexer.Label:
		name, err := userLabel(c.Line(), t.Text)
		if err != nil {
			return err
		}
		if b.defined[name] {
			return c.Line().Errorf("duplicate label %s", name)
		}
		b.defined[name] = true
		b.items = append(b.items, reloc.Mark{Label: name})
		b.pending = append(b.pending, name)
		if c.Done() {
			return nil
		}
		return a.bodyLine(b, c)
	case lexer.Directive:
		if err := a.bodyDirective(b, c, t.Text); err != nil {
			return err
		}
	case lexer.Word:
		b.pending = nil
		if err := a.instruction(b, c, t.Text); err != nil {
			return err
		}
	default:
		return c.Line().Errorf("unexpected %s %q", t.Kind, t.Text)
	}
	return c.End()
}

func (a *assembler) bodyDirective(b *body, c *lexer.Cursor, name string) error {
	l := c.Line()
	switch name {
	case ".registers", ".locals":
		if b.registers >= 0 {
			return l.Errorf("register count given twice")
		}
		n, err := c.Int(32)
		if err != nil {
			return err
		}
		if name == ".locals" {
			n += int64(b.ins)
		}
		if n < int64(b.ins) || n > math.MaxUint16 {
			return fmt.Errorf("%w: %s:%d: %d registers for %d argument words", errors.ErrOperandRange, l.File, l.Num, n, b.ins)
		}
		b.registers = int(n)
	case ".param":
		i, err := c.Int(32)
		if err != nil {
			return err
		}
		if i < 0 || int(i) >= b.params {
			return l.Errorf("parameter %d out of range, method has %d", i, b.params)
		}
		if err := c.Expect(","); err != nil {
			return err
		}
		s, err := c.String()
		if err != nil {
			return err
		}
		if b.names == nil {
			b.names = make([]uint32, b.params)
			for j := range b.names {
				b.names[j] = dex.NoIndex
			}
		}
		b.names[i] = a.f.AddString(s)
	case ".catch", ".catchall":
		t := trySpec{catchType: dex.NoIndex}
		if name == ".catch" {
			typ, err := c.Word()
			if err != nil {
				return err
			}
			if err := checkType(typ); err != nil {
				return l.Errorf("%v", err)
			}
			if t.catchType, err = a.f.AddType(typ); err != nil {
				return err
			}
		}
		if err := c.Expect("{"); err != nil {
			return err
		}
		from, err := c.Word()
		if err != nil {
			return err
		}
		if err := c.Expect(".."); err != nil {
			return err
		}
		to, err := c.Word()
		if err != nil {
			return err
		}
		if err := c.Expect("}"); err != nil {
			return err
		}
		handler, err := c.Word()
		if err != nil {
			return err
		}
		t.start, t.end, t.handler = reloc.Label(from), reloc.Label(to), reloc.Label(handler)
		b.tries = append(b.tries, t)
	case ".line":
		n, err := c.Int(64)
		if err != nil {
			return err
		}
		if n < 0 || n > math.MaxUint32 {
			return fmt.Errorf("%w: %s:%d: line %d", errors.ErrOperandRange, l.File, l.Num, n)
		}
		b.debug = append(b.debug, debugMark{label: b.mark("line"), line: n, op: dex.DebugOp{Op: dex.DbgFirstSpecial}})
	case ".local":
		return a.local(b, c)
	case ".end", ".restart":
		if err := c.Expect("local"); err != nil {
			return err
		}
		r, err := b.reg(c)
		if err != nil {
			return err
		}
		op := uint8(dex.DbgEndLocal)
		if name == ".restart" {
			op = dex.DbgRestartLocal
		}
		b.addDebug(dex.DebugOp{Op: op, Register: uint32(r)})
	case ".prologue":
		b.addDebug(dex.DebugOp{Op: dex.DbgSetPrologueEnd})
	case ".epilogue":
		b.addDebug(dex.DebugOp{Op: dex.DbgSetEpilogueBegin})
	case ".source":
		file, err := a.optString(c)
		if err != nil {
			return err
		}
		b.addDebug(dex.DebugOp{Op: dex.DbgSetFile, Name: file})
	case ".packed-switch", ".sparse-switch", ".array-data":
		return a.payloadBlock(b, c, name)
	default:
		return a.warn(l, "unknown directive %s", name)
	}
	return nil
}

// addDebug records a debug op at the current position. Absent string
// operands are NoIndex unless op sets them.
func (b *body) addDebug(op dex.DebugOp) {
	if op.Op != dex.DbgSetFile && op.Op != dex.DbgStartLocal && op.Op != dex.DbgStartLocalExtended {
		op.Name = dex.NoIndex
	}
	if op.Op != dex.DbgStartLocal && op.Op != dex.DbgStartLocalExtended {
		op.Type = dex.NoIndex
	}
	if op.Op != dex.DbgStartLocalExtended {
		op.Signature = dex.NoIndex
	}
	b.debug = append(b.debug, debugMark{label: b.mark("debug"), op: op})
}

func (a *assembler) optString(c *lexer.Cursor) (uint32, error) {
	if c.Accept("null") {
		return dex.NoIndex, nil
	}
	s, err := c.String()
	if err != nil {
		return 0, err
	}
	return a.f.AddString(s), nil
}

// local reads ".local vR, name, type[, signature]" where absent parts are
// written null.
func (a *assembler) local(b *body, c *lexer.Cursor) error {
	r, err := b.reg(c)
	if err != nil {
		return err
	}
	op := dex.DebugOp{Op: dex.DbgStartLocal, Register: uint32(r)}
	if err := c.Expect(","); err != nil {
		return err
	}
	if op.Name, err = a.optString(c); err != nil {
		return err
	}
	if err := c.Expect(","); err != nil {
		return err
	}
	op.Type = dex.NoIndex
	if !c.Accept("null") {
		typ, err := c.Word()
		if err != nil {
			return err
		}
		if err := checkType(typ); err != nil {
			return c.Line().Errorf("%v", err)
		}
		if op.Type, err = a.f.AddType(typ); err != nil {
			return err
		}
	}
	if c.Accept(",") {
		op.Op = dex.DbgStartLocalExtended
		if op.Signature, err = a.optString(c); err != nil {
			return err
		}
	}
	b.addDebug(op)
	return nil
}

// payloadBlock reads a switch or array payload, which runs until its
// .end line and is named by the labels just before it.
func (a *assembler) payloadBlock(b *body, c *lexer.Cursor, kind string) error {
	start := c.Line()
	labels := b.pending
	b.pending = nil
	if len(labels) == 0 {
		return start.Errorf("%s needs a label", kind)
	}
	var pl dalvik.Payload
	var entry func(lc *lexer.Cursor) error
	var width int64
	var values []int64
	switch kind {
	case ".packed-switch":
		first, err := c.Int(32)
		if err != nil {
			return err
		}
		ps := &dalvik.PackedSwitch{FirstKey: int32(first)}
		pl = ps
		entry = func(lc *lexer.Cursor) error {
			w, err := lc.Word()
			if err != nil {
				return err
			}
			ps.Targets = append(ps.Targets, reloc.Label(w))
			return nil
		}
	case ".sparse-switch":
		ss := &dalvik.SparseSwitch{}
		pl = ss
		entry = func(lc *lexer.Cursor) error {
			k, err := lc.Int(32)
			if err != nil {
				return err
			}
			if n := len(ss.Keys); n > 0 && int32(k) <= ss.Keys[n-1] {
				return lc.Line().Errorf("sparse-switch keys must increase, %d follows %d", k, ss.Keys[n-1])
			}
			if err := lc.Expect("->"); err != nil {
				return err
			}
			w, err := lc.Word()
			if err != nil {
				return err
			}
			ss.Keys = append(ss.Keys, int32(k))
			ss.Targets = append(ss.Targets, reloc.Label(w))
			return nil
		}
	default:
		var err error
		if width, err = c.Int(8); err != nil {
			return err
		}
		switch width {
		case 1, 2, 4, 8:
		default:
			return start.Errorf("array element width %d", width)
		}
		entry = func(lc *lexer.Cursor) error {
			v, err := lc.Int(int(width) * 8)
			if err != nil {
				return err
			}
			values = append(values, v)
			return nil
		}
	}
	if err := c.End(); err != nil {
		return err
	}

	end := strings.TrimPrefix(kind, ".")
	for {
		if a.pos >= len(a.lines) {
			return start.Errorf("%s has no .end %s", kind, end)
		}
		l := &a.lines[a.pos]
		a.pos++
		if isEnd(l, end) {
			if len(l.Tokens) > 2 {
				return l.Errorf("unexpected %q after .end %s", l.Tokens[2].Text, end)
			}
			break
		}
		lc := lexer.NewCursor(l)
		for !lc.Done() {
			if err := entry(lc); err != nil {
				return err
			}
		}
	}

	if kind == ".array-data" {
		pl = dalvik.NewArrayData(int(width), values)
	}
	def := &payloadDef{in: &dalvik.Instruction{Op: dalvik.OpNop, Payload: pl}, line: start}
	b.items = append(b.items, def.in)
	b.blocks = append(b.blocks, def)
	for _, l := range labels {
		b.payloads[l] = def
	}
	return nil
}

func (a *assembler) instruction(b *body, c *lexer.Cursor, name string) error {
	op, ok := dalvik.ByName(name)
	if !ok {
		return c.Line().Errorf("unknown instruction %q", name)
	}
	info, _ := dalvik.Lookup(op)
	in := &dalvik.Instruction{Op: op}
	nregs := 0
	switch info.Format {
	case dalvik.F11x, dalvik.F11n, dalvik.F21s, dalvik.F21h, dalvik.F31i, dalvik.F51l,
		dalvik.F21t, dalvik.F31t, dalvik.F21c, dalvik.F31c:
		nregs = 1
	case dalvik.F12x, dalvik.F22x, dalvik.F32x, dalvik.F22b, dalvik.F22s, dalvik.F22t, dalvik.F22c:
		nregs = 2
	case dalvik.F23x:
		nregs = 3
	}
	var err error
	switch info.Format {
	case dalvik.F35c, dalvik.F3rc, dalvik.F45cc, dalvik.F4rcc:
		if in.Regs, err = b.regList(c); err != nil {
			return err
		}
	default:
		if in.Regs, err = b.regs(c, nregs); err != nil {
			return err
		}
	}
	sep := func() error {
		if len(in.Regs) == 0 && info.Format != dalvik.F35c && info.Format != dalvik.F3rc &&
			info.Format != dalvik.F45cc && info.Format != dalvik.F4rcc {
			return nil
		}
		return c.Expect(",")
	}

	switch info.Format {
	case dalvik.F11n, dalvik.F21s, dalvik.F21h, dalvik.F31i, dalvik.F51l, dalvik.F22b, dalvik.F22s:
		if err := sep(); err != nil {
			return err
		}
		if in.Literal, err = c.Int(64); err != nil {
			return err
		}
	case dalvik.F10t, dalvik.F20t, dalvik.F30t, dalvik.F21t, dalvik.F22t, dalvik.F31t:
		if err := sep(); err != nil {
			return err
		}
		w, err := c.Word()
		if err != nil {
			return err
		}
		in.Target = reloc.Label(w)
	}
	if info.Index != dalvik.IndexNone {
		if err := sep(); err != nil {
			return err
		}
		if in.Index, err = a.index(c, info.Index); err != nil {
			return err
		}
	}
	if info.Format == dalvik.F45cc || info.Format == dalvik.F4rcc {
		if err := c.Expect(","); err != nil {
			return err
		}
		w, err := c.Word()
		if err != nil {
			return err
		}
		if in.Proto, err = a.f.AddProtoDescriptor(w); err != nil {
			return c.Line().Errorf("%v", err)
		}
	}

	if info.Flags&dalvik.FlagPayload != 0 {
		u := payloadUser{in: in, line: c.Line()}
		if op != dalvik.OpFillArrayData {
			u.base = b.mark("switch")
		}
		b.users = append(b.users, u)
	}
	b.items = append(b.items, in)
	return nil
}

func (a *assembler) index(c *lexer.Cursor, kind dalvik.IndexKind) (uint32, error) {
	if kind == dalvik.IndexString {
		s, err := c.String()
		if err != nil {
			return 0, err
		}
		return a.f.AddString(s), nil
	}
	if kind == dalvik.IndexMethodHandle {
		return parseHandle(a.f, c)
	}
	if kind == dalvik.IndexCallSite {
		if err := c.Expect("callsite"); err != nil {
			return 0, err
		}
		vs, err := parseValues(a.f, c)
		if err != nil {
			return 0, err
		}
		return a.f.AddCallSite(vs), nil
	}
	w, err := c.Word()
	if err != nil {
		return 0, err
	}
	switch kind {
	case dalvik.IndexType:
		if err := checkType(w); err != nil {
			return 0, c.Line().Errorf("%v", err)
		}
		return a.f.AddType(w)
	case dalvik.IndexField:
		return addFieldRef(a.f, c.Line(), w)
	case dalvik.IndexMethod:
		return addMethodRef(a.f, c.Line(), w)
	case dalvik.IndexProto:
		idx, err := a.f.AddProtoDescriptor(w)
		if err != nil {
			return 0, c.Line().Errorf("%v", err)
		}
		return idx, nil
	}
	return 0, c.Line().Errorf("index kind %d", kind)
}

// linkPayloads points every payload at the instruction that uses it.
func (b *body) linkPayloads() error {
	for _, u := range b.users {
		def, ok := b.payloads[u.in.Target]
		if !ok {
			return u.line.Errorf("%s target %s is not a payload", u.in.Op, u.in.Target)
		}
		if def.used {
			return u.line.Errorf("payload %s is used by more than one instruction", u.in.Target)
		}
		def.used = true
		var match bool
		switch p := def.in.Payload.(type) {
		case *dalvik.PackedSwitch:
			match, p.Base = u.in.Op == dalvik.OpPackedSwitch, u.base
		case *dalvik.SparseSwitch:
			match, p.Base = u.in.Op == dalvik.OpSparseSwitch, u.base
		case *dalvik.ArrayData:
			match = u.in.Op == dalvik.OpFillArrayData
		}
		if !match {
			return u.line.Errorf("%s cannot use payload %s", u.in.Op, u.in.Target)
		}
	}
	for _, def := range b.blocks {
		if !def.used {
			return def.line.Errorf("payload is not used by any instruction")
		}
	}
	return nil
}

func (a *assembler) finishMethod(m *dex.EncodedMethod, b *body) error {
	if m.Access&(dex.AccAbstract|dex.AccNative) != 0 {
		if len(b.items) > 0 || len(b.tries) > 0 || b.registers >= 0 || b.names != nil {
			return errors.WrapFormat("abstract and native methods have no code")
		}
		return nil
	}
	if err := b.linkPayloads(); err != nil {
		return err
	}
	e, err := dexedit.New(a.f, m)
	if err != nil {
		return err
	}
	regs := b.registers
	if regs < 0 {
		var code []dalvik.Instruction
		for _, it := range b.items {
			if in, ok := it.(*dalvik.Instruction); ok {
				code = append(code, *in)
			}
		}
		regs = max(dalvik.RegisterUsage(code).Registers, b.ins)
		if regs > math.MaxUint16 {
			return errors.WrapOperandRange("register count", int64(regs))
		}
	}
	if uint16(regs) != e.Code().Registers {
		e.SetRegisters(uint16(regs))
	}
	if len(b.items) > 0 {
		if err := e.Prepend(0, b.items...); err != nil {
			return err
		}
	}
	for _, t := range b.tries {
		e.AddTry(t.start, t.end, t.handler, t.catchType)
	}
	if err := e.Finish(); err != nil {
		return err
	}
	return b.debugInfo(e)
}

// debugInfo builds the debug item from the marks bound by Finish.
func (b *body) debugInfo(e *dexedit.CodeEditor) error {
	if len(b.debug) == 0 && b.names == nil {
		return nil
	}
	d := &dex.DebugInfo{ParameterNames: b.names}
	if d.ParameterNames == nil {
		d.ParameterNames = make([]uint32, b.params)
		for i := range d.ParameterNames {
			d.ParameterNames[i] = dex.NoIndex
		}
	}
	first := true
	entries := make([]dex.DebugEntry, 0, len(b.debug))
	for _, dm := range b.debug {
		off, ok := e.LabelOffset(dm.label)
		if !ok {
			return errors.WrapUnresolvedLabel(string(dm.label))
		}
		if dm.op.Special() && first {
			d.LineStart, first = uint32(dm.line), false
		}
		entries = append(entries, dex.DebugEntry{Addr: uint32(off), Line: dm.line, Op: dm.op})
	}
	if err := d.SetEntries(entries); err != nil {
		return err
	}
	e.Code().Debug = d
	return nil
}
