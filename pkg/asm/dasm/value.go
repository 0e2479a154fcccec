package dasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/lexer"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dex"
)

var handleKindNames = [...]string{
	dex.HandleStaticPut:         "static-put",
	dex.HandleStaticGet:         "static-get",
	dex.HandleInstancePut:       "instance-put",
	dex.HandleInstanceGet:       "instance-get",
	dex.HandleInvokeStatic:      "invoke-static",
	dex.HandleInvokeInstance:    "invoke-instance",
	dex.HandleInvokeConstructor: "invoke-constructor",
	dex.HandleInvokeDirect:      "invoke-direct",
	dex.HandleInvokeInterface:   "invoke-interface",
}

func handleKindByName(name string) (uint16, bool) {
	for k, n := range handleKindNames {
		if n == name {
			return uint16(k), true
		}
	}
	return 0, false
}

// methodText renders a method reference as LC;->name(params)R.
func methodText(m dex.MemberRef) string { return m.Class + "->" + m.Name + m.Descriptor }

func fieldText(f *dex.File, i uint32) (string, error) {
	ref, err := f.FieldRef(i)
	if err != nil {
		return "", err
	}
	return ref.String(), nil
}

func methodRefText(f *dex.File, i uint32) (string, error) {
	ref, err := f.MethodRef(i)
	if err != nil {
		return "", err
	}
	return methodText(ref), nil
}

func handleText(f *dex.File, i uint32) (string, error) {
	if int64(i) >= int64(len(f.MethodHandles)) {
		return "", errors.WrapIndexOutOfRange("method handle", int(i), len(f.MethodHandles))
	}
	h := f.MethodHandles[i]
	if int(h.Kind) >= len(handleKindNames) {
		return "", errors.WrapFormat("method handle kind %d", h.Kind)
	}
	var ref string
	var err error
	if h.IsField() {
		ref, err = fieldText(f, h.Target)
	} else {
		ref, err = methodRefText(f, h.Target)
	}
	if err != nil {
		return "", err
	}
	return handleKindNames[h.Kind] + " " + ref, nil
}

// formatValue renders an encoded value as its type keyword followed by
// the value: "int 5", "string \"s\"", "array { int 1, int 2 }".
func formatValue(f *dex.File, v *dex.EncodedValue) (string, error) {
	name := v.Type.String()
	switch v.Type {
	case dex.ValueByte, dex.ValueShort, dex.ValueInt, dex.ValueLong:
		return name + " " + strconv.FormatInt(v.Int(), 10), nil
	case dex.ValueChar:
		return name + " " + strconv.FormatUint(v.Bits&0xFFFF, 10), nil
	case dex.ValueFloat:
		return name + " " + strconv.FormatFloat(float64(v.Float()), 'g', -1, 32), nil
	case dex.ValueDouble:
		return name + " " + strconv.FormatFloat(v.Double(), 'g', -1, 64), nil
	case dex.ValueBoolean:
		return name + " " + strconv.FormatBool(v.Bool()), nil
	case dex.ValueNull:
		return name, nil
	case dex.ValueString:
		s, err := f.String(v.Index)
		if err != nil {
			return "", err
		}
		return name + " " + lexer.Quote(s), nil
	case dex.ValueTypeRef:
		s, err := f.TypeName(v.Index)
		if err != nil {
			return "", err
		}
		return name + " " + s, nil
	case dex.ValueField, dex.ValueEnum:
		s, err := fieldText(f, v.Index)
		if err != nil {
			return "", err
		}
		return name + " " + s, nil
	case dex.ValueMethod:
		s, err := methodRefText(f, v.Index)
		if err != nil {
			return "", err
		}
		return name + " " + s, nil
	case dex.ValueMethodType:
		s, err := f.ProtoDescriptor(v.Index)
		if err != nil {
			return "", err
		}
		return name + " " + s, nil
	case dex.ValueMethodHandle:
		s, err := handleText(f, v.Index)
		if err != nil {
			return "", err
		}
		return name + " " + s, nil
	case dex.ValueArray:
		s, err := formatValues(f, v.Array)
		if err != nil {
			return "", err
		}
		return name + " " + s, nil
	case dex.ValueAnnotation:
		return "", fmt.Errorf("%w: annotation values", errors.ErrUnsupportedFormat)
	}
	return "", errors.WrapFormat("encoded value type %s", v.Type)
}

// formatValues renders a brace enclosed, comma separated value list.
func formatValues(f *dex.File, vs []dex.EncodedValue) (string, error) {
	if len(vs) == 0 {
		return "{ }", nil
	}
	parts := make([]string, len(vs))
	for i := range vs {
		s, err := formatValue(f, &vs[i])
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

var valueTypes = map[string]dex.ValueType{
	"byte": dex.ValueByte, "short": dex.ValueShort, "char": dex.ValueChar, "int": dex.ValueInt,
	"long": dex.ValueLong, "float": dex.ValueFloat, "double": dex.ValueDouble, "boolean": dex.ValueBoolean,
	"null": dex.ValueNull, "string": dex.ValueString, "type": dex.ValueTypeRef, "field": dex.ValueField,
	"enum": dex.ValueEnum, "method": dex.ValueMethod, "method-type": dex.ValueMethodType,
	"method-handle": dex.ValueMethodHandle, "array": dex.ValueArray,
}

var intBits = map[dex.ValueType]int{
	dex.ValueByte: 8, dex.ValueShort: 16, dex.ValueInt: 32, dex.ValueLong: 64,
}

// parseValue reads a value written by formatValue, adding what it
// references to f.
func parseValue(f *dex.File, c *lexer.Cursor) (dex.EncodedValue, error) {
	kw, err := c.Word()
	if err != nil {
		return dex.EncodedValue{}, err
	}
	t, ok := valueTypes[kw]
	if !ok {
		return dex.EncodedValue{}, c.Line().Errorf("unknown value type %q", kw)
	}
	switch t {
	case dex.ValueNull:
		return dex.NullValue(), nil
	case dex.ValueArray:
		vs, err := parseValues(f, c)
		if err != nil {
			return dex.EncodedValue{}, err
		}
		return dex.EncodedValue{Type: dex.ValueArray, Array: vs}, nil
	case dex.ValueString:
		s, err := c.String()
		if err != nil {
			return dex.EncodedValue{}, err
		}
		return dex.IndexValue(t, f.AddString(s)), nil
	case dex.ValueMethodHandle:
		idx, err := parseHandle(f, c)
		if err != nil {
			return dex.EncodedValue{}, err
		}
		return dex.IndexValue(t, idx), nil
	}

	w, err := c.Word()
	if err != nil {
		return dex.EncodedValue{}, err
	}
	var idx uint32
	switch t {
	case dex.ValueChar:
		v, err := strconv.ParseUint(w, 0, 16)
		if err != nil {
			return dex.EncodedValue{}, c.Line().Errorf("bad char %q", w)
		}
		return dex.IntValue(t, int64(v)), nil
	case dex.ValueFloat:
		v, err := strconv.ParseFloat(w, 32)
		if err != nil {
			return dex.EncodedValue{}, c.Line().Errorf("bad float %q", w)
		}
		return dex.FloatValue(float32(v)), nil
	case dex.ValueDouble:
		v, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return dex.EncodedValue{}, c.Line().Errorf("bad double %q", w)
		}
		return dex.DoubleValue(v), nil
	case dex.ValueBoolean:
		v, err := strconv.ParseBool(w)
		if err != nil {
			return dex.EncodedValue{}, c.Line().Errorf("bad boolean %q", w)
		}
		return dex.BoolValue(v), nil
	case dex.ValueTypeRef:
		if err := checkType(w); err != nil {
			return dex.EncodedValue{}, c.Line().Errorf("%v", err)
		}
		idx, err = f.AddType(w)
	case dex.ValueField, dex.ValueEnum:
		idx, err = addFieldRef(f, c.Line(), w)
	case dex.ValueMethod:
		idx, err = addMethodRef(f, c.Line(), w)
	case dex.ValueMethodType:
		idx, err = f.AddProtoDescriptor(w)
	default:
		v, perr := strconv.ParseInt(w, 0, intBits[t])
		if perr != nil {
			if v64, err := strconv.ParseInt(w, 0, 64); err == nil {
				return dex.EncodedValue{}, errors.WrapOperandRange(kw, v64)
			}
			return dex.EncodedValue{}, c.Line().Errorf("bad %s %q", kw, w)
		}
		return dex.IntValue(t, v), nil
	}
	if err != nil {
		return dex.EncodedValue{}, err
	}
	return dex.IndexValue(t, idx), nil
}

// parseValues reads "{ v, v, ... }".
func parseValues(f *dex.File, c *lexer.Cursor) ([]dex.EncodedValue, error) {
	if err := c.Expect("{"); err != nil {
		return nil, err
	}
	var out []dex.EncodedValue
	if c.Accept("}") {
		return out, nil
	}
	for {
		v, err := parseValue(f, c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if c.Accept("}") {
			return out, nil
		}
		if err := c.Expect(","); err != nil {
			return nil, err
		}
	}
}

func parseHandle(f *dex.File, c *lexer.Cursor) (uint32, error) {
	kw, err := c.Word()
	if err != nil {
		return 0, err
	}
	kind, ok := handleKindByName(kw)
	if !ok {
		return 0, c.Line().Errorf("unknown method handle kind %q", kw)
	}
	ref, err := c.Word()
	if err != nil {
		return 0, err
	}
	var target uint32
	if kind <= dex.HandleInstanceGet {
		target, err = addFieldRef(f, c.Line(), ref)
	} else {
		target, err = addMethodRef(f, c.Line(), ref)
	}
	if err != nil {
		return 0, err
	}
	return f.AddMethodHandle(kind, target), nil
}

// checkType validates a single field type descriptor.
func checkType(t string) error {
	md, err := classfile.ParseMethodDescriptor("(" + t + ")V")
	if err != nil || len(md.Params) != 1 {
		return errors.WrapFormat("type descriptor %q", t)
	}
	return nil
}

// addFieldRef adds a reference written as LC;->name:T.
func addFieldRef(f *dex.File, l *lexer.Line, s string) (uint32, error) {
	class, rest, ok := strings.Cut(s, "->")
	name, typ, ok2 := strings.Cut(rest, ":")
	if !ok || !ok2 || name == "" {
		return 0, l.Errorf("bad field reference %q", s)
	}
	for _, t := range []string{class, typ} {
		if err := checkType(t); err != nil {
			return 0, l.Errorf("field reference %q: %v", s, err)
		}
	}
	return f.AddField(class, name, typ)
}

// addMethodRef adds a reference written as LC;->name(params)R.
func addMethodRef(f *dex.File, l *lexer.Line, s string) (uint32, error) {
	class, rest, ok := strings.Cut(s, "->")
	i := strings.IndexByte(rest, '(')
	if !ok || i <= 0 {
		return 0, l.Errorf("bad method reference %q", s)
	}
	if err := checkType(class); err != nil {
		return 0, l.Errorf("method reference %q: %v", s, err)
	}
	idx, err := f.AddMethod(class, rest[:i], rest[i:])
	if err != nil {
		return 0, l.Errorf("method reference %q: %v", s, err)
	}
	return idx, nil
}

// Access flags beyond the class file's 16 bits.
var extraFlags = []struct {
	bit  uint32
	name string
}{
	{dex.AccConstructor, "constructor"},
	{0x20000, "declared-synchronized"},
}

// formatAccess renders dex access flags. The low bits share their
// meaning with class file flags, and classes take the inner class
// keywords since dex keeps member class bits on the definition. Bits
// without a keyword are written as a hex word.
func formatAccess(target classfile.FlagTarget, flags uint32) string {
	var words []string
	if kw := classfile.FlagKeywords(target, uint16(flags)); kw != "" {
		words = strings.Fields(kw)
	}
	rest := flags
	for _, w := range words {
		bit, _ := classfile.ParseFlag(target, w)
		rest &^= uint32(bit)
	}
	if target == classfile.FlagMethod {
		for _, x := range extraFlags {
			if flags&x.bit != 0 {
				words = append(words, x.name)
				rest &^= x.bit
			}
		}
	}
	if rest != 0 {
		words = append(words, fmt.Sprintf("0x%x", rest))
	}
	return strings.Join(words, " ")
}

func parseAccessWord(target classfile.FlagTarget, w string) (uint32, bool) {
	if bit, ok := classfile.ParseFlag(target, w); ok {
		return uint32(bit), true
	}
	if target == classfile.FlagMethod {
		for _, x := range extraFlags {
			if x.name == w {
				return x.bit, true
			}
		}
	}
	if strings.HasPrefix(w, "0x") {
		if v, err := strconv.ParseUint(w, 0, 32); err == nil {
			return uint32(v), true
		}
	}
	return 0, false
}
