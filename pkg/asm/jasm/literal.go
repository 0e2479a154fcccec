package jasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/lexer"
	"github.com/daimatz/jdex/pkg/classfile"
)

var refKindNames = [...]string{
	classfile.RefGetField:         "getfield",
	classfile.RefGetStatic:        "getstatic",
	classfile.RefPutField:         "putfield",
	classfile.RefPutStatic:        "putstatic",
	classfile.RefInvokeVirtual:    "invokevirtual",
	classfile.RefInvokeStatic:     "invokestatic",
	classfile.RefInvokeSpecial:    "invokespecial",
	classfile.RefNewInvokeSpecial: "newinvokespecial",
	classfile.RefInvokeInterface:  "invokeinterface",
}

func refKindByName(name string) (uint8, bool) {
	for k, n := range refKindNames {
		if n != "" && n == name {
			return uint8(k), true
		}
	}
	return 0, false
}

// formatConstant renders a loadable constant. Literals carry a suffix for
// their type: 1 is an int, 1L a long, 1.0f a float and 1.0d a double.
func formatConstant(pool *classfile.ConstantPool, idx uint16) (string, error) {
	c, err := pool.Get(idx)
	if err != nil {
		return "", err
	}
	switch c := c.(type) {
	case *classfile.ConstantInteger:
		return strconv.FormatInt(int64(c.Value), 10), nil
	case *classfile.ConstantLong:
		return strconv.FormatInt(c.Value, 10) + "L", nil
	case *classfile.ConstantFloat:
		return strconv.FormatFloat(float64(c.Value), 'g', -1, 32) + "f", nil
	case *classfile.ConstantDouble:
		return strconv.FormatFloat(c.Value, 'g', -1, 64) + "d", nil
	case *classfile.ConstantString:
		s, err := pool.GetUtf8(c.StringIndex)
		if err != nil {
			return "", err
		}
		return lexer.Quote(s), nil
	case *classfile.ConstantClass:
		name, err := pool.GetUtf8(c.NameIndex)
		if err != nil {
			return "", err
		}
		return "class " + name, nil
	case *classfile.ConstantMethodType:
		desc, err := pool.GetUtf8(c.DescriptorIndex)
		if err != nil {
			return "", err
		}
		return "methodtype " + desc, nil
	case *classfile.ConstantMethodHandle:
		return formatHandle(pool, c)
	case *classfile.ConstantDynamic:
		return "", fmt.Errorf("%w: dynamic constant at index %d", errors.ErrUnsupportedFormat, idx)
	}
	return "", errors.WrapFormat("constant pool index %d (tag %d) is not loadable", idx, c.Tag())
}

func formatHandle(pool *classfile.ConstantPool, h *classfile.ConstantMethodHandle) (string, error) {
	if int(h.ReferenceKind) >= len(refKindNames) || refKindNames[h.ReferenceKind] == "" {
		return "", errors.WrapFormat("method handle kind %d", h.ReferenceKind)
	}
	ref, err := pool.ResolveMemberref(h.ReferenceIndex)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("handle ")
	b.WriteString(refKindNames[h.ReferenceKind])
	if c, _ := pool.Get(h.ReferenceIndex); c != nil && c.Tag() == classfile.TagInterfaceMethodref && h.ReferenceKind != classfile.RefInvokeInterface {
		b.WriteString(" interface")
	}
	fmt.Fprintf(&b, " %s %s %s", ref.ClassName, ref.Name, ref.Descriptor)
	return b.String(), nil
}

// parseConstant reads a literal written by formatConstant and adds it to
// the pool.
func parseConstant(pool *classfile.ConstantPool, c *lexer.Cursor) (uint16, error) {
	t, err := c.Next()
	if err != nil {
		return 0, err
	}
	if t.Kind == lexer.String {
		return pool.String(t.Text)
	}
	if t.Kind != lexer.Word {
		return 0, c.Line().Errorf("expected a constant, got %s %q", t.Kind, t.Text)
	}
	switch t.Text {
	case "class":
		name, err := c.Word()
		if err != nil {
			return 0, err
		}
		return pool.Class(name)
	case "methodtype":
		desc, err := c.Word()
		if err != nil {
			return 0, err
		}
		if _, err := classfile.ParseMethodDescriptor(desc); err != nil {
			return 0, c.Line().Errorf("bad method type: %v", err)
		}
		return pool.MethodType(desc)
	case "handle":
		return parseHandle(pool, c)
	}
	return parseNumber(pool, c.Line(), t.Text)
}

func parseNumber(pool *classfile.ConstantPool, l *lexer.Line, s string) (uint16, error) {
	if v, err := strconv.ParseInt(s, 0, 32); err == nil {
		return pool.Integer(int32(v))
	}
	body, suffix := s[:len(s)-1], s[len(s)-1]
	switch suffix {
	case 'L', 'l':
		v, err := strconv.ParseInt(body, 0, 64)
		if err != nil {
			return 0, l.Errorf("bad long %q", s)
		}
		return pool.Long(v)
	case 'F', 'f':
		v, err := strconv.ParseFloat(body, 32)
		if err != nil {
			return 0, l.Errorf("bad float %q", s)
		}
		return pool.Float(float32(v))
	case 'D', 'd':
		v, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return 0, l.Errorf("bad double %q", s)
		}
		return pool.Double(v)
	}
	if _, err := strconv.ParseInt(s, 0, 64); err == nil {
		return 0, fmt.Errorf("%w: %s:%d: int constant %s", errors.ErrOperandRange, l.File, l.Num, s)
	}
	return 0, l.Errorf("bad constant %q", s)
}

func parseHandle(pool *classfile.ConstantPool, c *lexer.Cursor) (uint16, error) {
	kw, err := c.Word()
	if err != nil {
		return 0, err
	}
	kind, ok := refKindByName(kw)
	if !ok {
		return 0, c.Line().Errorf("unknown method handle kind %q", kw)
	}
	iface := c.Accept("interface") || kind == classfile.RefInvokeInterface
	class, name, desc, err := memberOperands(c)
	if err != nil {
		return 0, err
	}
	var ref uint16
	switch {
	case kind <= classfile.RefPutStatic:
		ref, err = pool.Fieldref(class, name, desc)
	case iface:
		ref, err = pool.InterfaceMethodref(class, name, desc)
	default:
		ref, err = pool.Methodref(class, name, desc)
	}
	if err != nil {
		return 0, err
	}
	return pool.MethodHandle(kind, ref)
}

// memberOperands reads "class name descriptor".
func memberOperands(c *lexer.Cursor) (string, string, string, error) {
	var out [3]string
	for i := range out {
		w, err := c.Word()
		if err != nil {
			return "", "", "", err
		}
		out[i] = w
	}
	return out[0], out[1], out[2], nil
}

// formatFlags renders access flags as keywords. Bits without a keyword
// are written as a hex word so they survive a round trip.
func formatFlags(target classfile.FlagTarget, flags uint16) string {
	kw := classfile.FlagKeywords(target, flags)
	rest := flags
	for _, w := range strings.Fields(kw) {
		bit, _ := classfile.ParseFlag(target, w)
		rest &^= bit
	}
	if rest != 0 {
		if kw != "" {
			kw += " "
		}
		kw += fmt.Sprintf("0x%04x", rest)
	}
	return kw
}

func parseFlagWord(target classfile.FlagTarget, w string) (uint16, bool) {
	if bit, ok := classfile.ParseFlag(target, w); ok {
		return bit, true
	}
	if strings.HasPrefix(w, "0x") {
		if v, err := strconv.ParseUint(w, 0, 16); err == nil {
			return uint16(v), true
		}
	}
	return 0, false
}
