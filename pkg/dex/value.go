package dex

import (
	"fmt"
	"math"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
)

// ValueType is the low five bits of an encoded value header.
type ValueType uint8

const (
	ValueByte         ValueType = 0x00
	ValueShort        ValueType = 0x02
	ValueChar         ValueType = 0x03
	ValueInt          ValueType = 0x04
	ValueLong         ValueType = 0x06
	ValueFloat        ValueType = 0x10
	ValueDouble       ValueType = 0x11
	ValueMethodType   ValueType = 0x15
	ValueMethodHandle ValueType = 0x16
	ValueString       ValueType = 0x17
	ValueTypeRef      ValueType = 0x18
	ValueField        ValueType = 0x19
	ValueMethod       ValueType = 0x1a
	ValueEnum         ValueType = 0x1b
	ValueArray        ValueType = 0x1c
	ValueAnnotation   ValueType = 0x1d
	ValueNull         ValueType = 0x1e
	ValueBoolean      ValueType = 0x1f
)

var valueTypeNames = map[ValueType]string{
	ValueByte:         "byte",
	ValueShort:        "short",
	ValueChar:         "char",
	ValueInt:          "int",
	ValueLong:         "long",
	ValueFloat:        "float",
	ValueDouble:       "double",
	ValueMethodType:   "method-type",
	ValueMethodHandle: "method-handle",
	ValueString:       "string",
	ValueTypeRef:      "type",
	ValueField:        "field",
	ValueMethod:       "method",
	ValueEnum:         "enum",
	ValueArray:        "array",
	ValueAnnotation:   "annotation",
	ValueNull:         "null",
	ValueBoolean:      "boolean",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("value-type(0x%02x)", uint8(t))
}

// Indexed reports whether values of this type carry an ID table index.
func (t ValueType) Indexed() bool {
	return t >= ValueMethodType && t <= ValueEnum
}

// EncodedValue is one encoded_value. Numeric kinds keep their bits in
// Bits (sign-extended for the signed kinds, IEEE bits for floats), indexed
// kinds use Index, and the composite kinds use Array or Annotation.
type EncodedValue struct {
	Type       ValueType
	Bits       uint64
	Index      uint32
	Array      []EncodedValue
	Annotation *EncodedAnnotation
}

type EncodedAnnotation struct {
	Type     uint32
	Elements []AnnotationElement
}

type AnnotationElement struct {
	Name  uint32
	Value EncodedValue
}

// Equal reports whether v and o encode the same value. Only the field
// the type uses is compared, and a nil array equals an empty one.
func (v *EncodedValue) Equal(o *EncodedValue) bool {
	if v.Type != o.Type {
		return false
	}
	switch {
	case v.Type == ValueNull:
		return true
	case v.Type == ValueArray:
		return valuesEqual(v.Array, o.Array)
	case v.Type == ValueAnnotation:
		if v.Annotation == nil || o.Annotation == nil {
			return v.Annotation == o.Annotation
		}
		return v.Annotation.Equal(o.Annotation)
	case v.Type.Indexed():
		return v.Index == o.Index
	}
	return v.Bits == o.Bits
}

func (a *EncodedAnnotation) Equal(o *EncodedAnnotation) bool {
	if a.Type != o.Type || len(a.Elements) != len(o.Elements) {
		return false
	}
	for i := range a.Elements {
		if a.Elements[i].Name != o.Elements[i].Name || !a.Elements[i].Value.Equal(&o.Elements[i].Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b []EncodedValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}

func IntValue(t ValueType, v int64) EncodedValue { return EncodedValue{Type: t, Bits: uint64(v)} }

func FloatValue(v float32) EncodedValue {
	return EncodedValue{Type: ValueFloat, Bits: uint64(math.Float32bits(v))}
}

func DoubleValue(v float64) EncodedValue {
	return EncodedValue{Type: ValueDouble, Bits: math.Float64bits(v)}
}

func BoolValue(v bool) EncodedValue {
	ev := EncodedValue{Type: ValueBoolean}
	if v {
		ev.Bits = 1
	}
	return ev
}

func IndexValue(t ValueType, idx uint32) EncodedValue { return EncodedValue{Type: t, Index: idx} }
func NullValue() EncodedValue                         { return EncodedValue{Type: ValueNull} }

func (v *EncodedValue) Int() int64      { return int64(v.Bits) }
func (v *EncodedValue) Float() float32  { return math.Float32frombits(uint32(v.Bits)) }
func (v *EncodedValue) Double() float64 { return math.Float64frombits(v.Bits) }
func (v *EncodedValue) Bool() bool      { return v.Bits != 0 }

var numericWidths = map[ValueType]int{
	ValueByte: 1, ValueShort: 2, ValueChar: 2, ValueInt: 4, ValueLong: 8, ValueFloat: 4, ValueDouble: 8,
}

// DefaultValue is the zero value a static field of type desc takes.
func DefaultValue(desc string) EncodedValue {
	switch desc {
	case "Z":
		return EncodedValue{Type: ValueBoolean}
	case "B":
		return EncodedValue{Type: ValueByte}
	case "S":
		return EncodedValue{Type: ValueShort}
	case "C":
		return EncodedValue{Type: ValueChar}
	case "I":
		return EncodedValue{Type: ValueInt}
	case "J":
		return EncodedValue{Type: ValueLong}
	case "F":
		return EncodedValue{Type: ValueFloat}
	case "D":
		return EncodedValue{Type: ValueDouble}
	}
	return NullValue()
}

func readValue(in *input, depth int) (EncodedValue, error) {
	if depth > maxValueDepth {
		return EncodedValue{}, errors.WrapFormat("encoded values nested deeper than %d", maxValueDepth)
	}
	pos := in.r.Pos()
	head := in.u1()
	if in.err != nil {
		return EncodedValue{}, in.err
	}
	t, arg := ValueType(head&0x1f), int(head>>5)
	v := EncodedValue{Type: t}
	switch t {
	case ValueArray:
		if arg != 0 {
			return v, errors.WrapFormat("array value with argument %d", arg)
		}
		arr, err := readArray(in, depth)
		v.Array = arr
		return v, err
	case ValueAnnotation:
		if arg != 0 {
			return v, errors.WrapFormat("annotation value with argument %d", arg)
		}
		a, err := readAnnotation(in, depth)
		v.Annotation = &a
		return v, err
	case ValueNull:
		return v, nil
	case ValueBoolean:
		if arg > 1 {
			return v, errors.WrapFormat("boolean value with argument %d", arg)
		}
		v.Bits = uint64(arg)
		return v, nil
	}
	if _, ok := valueTypeNames[t]; !ok {
		return v, errors.WrapUnknownTag("encoded value type", int(t), pos)
	}

	size := arg + 1
	width := numericWidths[t]
	if t.Indexed() {
		width = 4
	}
	if size > width {
		return v, errors.WrapFormat("%s value of %d bytes at offset %d", t, size, pos)
	}
	var raw uint64
	b := in.bytes(size)
	if in.err != nil {
		return v, in.err
	}
	for i, x := range b {
		raw |= uint64(x) << (8 * i)
	}
	shift := uint(64 - 8*size)
	switch t {
	case ValueByte, ValueShort, ValueInt, ValueLong:
		v.Bits = uint64(int64(raw<<shift) >> shift)
	case ValueChar:
		v.Bits = raw
	case ValueFloat:
		v.Bits = raw << uint(32-8*size)
	case ValueDouble:
		v.Bits = raw << shift
	default:
		v.Index = uint32(raw)
	}
	return v, nil
}

const maxValueDepth = 64

func readArray(in *input, depth int) ([]EncodedValue, error) {
	n := in.uleb()
	if in.err != nil {
		return nil, in.err
	}
	if int(n) > in.r.Remaining() {
		return nil, errors.WrapFormat("array of %d values exceeds remaining input", n)
	}
	out := make([]EncodedValue, n)
	for i := range out {
		v, err := readValue(in, depth+1)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func readAnnotation(in *input, depth int) (EncodedAnnotation, error) {
	a := EncodedAnnotation{Type: in.uleb()}
	n := in.uleb()
	if in.err != nil {
		return a, in.err
	}
	if int(n) > in.r.Remaining() {
		return a, errors.WrapFormat("annotation with %d elements exceeds remaining input", n)
	}
	a.Elements = make([]AnnotationElement, n)
	for i := range a.Elements {
		a.Elements[i].Name = in.uleb()
		if in.err != nil {
			return a, in.err
		}
		v, err := readValue(in, depth+1)
		if err != nil {
			return a, fmt.Errorf("annotation element %d: %w", i, err)
		}
		a.Elements[i].Value = v
	}
	return a, nil
}

// signedSize is the fewest bytes that hold v sign-extended.
func signedSize(v int64) int {
	n := 1
	for n < 8 {
		shift := uint(64 - 8*n)
		if v<<shift>>shift == v {
			break
		}
		n++
	}
	return n
}

func unsignedSize(v uint64) int {
	n := 1
	for n < 8 && v >= 1<<(8*uint(n)) {
		n++
	}
	return n
}

func writeValue(w *byteio.Writer, v *EncodedValue) error {
	header := func(arg int) { w.U8(uint8(arg<<5) | uint8(v.Type)) }
	le := func(x uint64, n int) {
		for i := 0; i < n; i++ {
			w.U8(uint8(x >> (8 * i)))
		}
	}
	switch v.Type {
	case ValueByte:
		header(0)
		w.U8(uint8(v.Bits))
	case ValueShort, ValueInt, ValueLong:
		x := int64(v.Bits)
		width := numericWidths[v.Type]
		if shift := uint(64 - 8*width); x<<shift>>shift != x {
			return errors.WrapOperandRange(v.Type.String()+" value", x)
		}
		n := signedSize(x)
		header(n - 1)
		le(uint64(x), n)
	case ValueChar:
		if v.Bits > math.MaxUint16 {
			return errors.WrapOperandRange("char value", int64(v.Bits))
		}
		n := unsignedSize(v.Bits)
		header(n - 1)
		le(v.Bits, n)
	case ValueFloat, ValueDouble:
		width := numericWidths[v.Type]
		x := v.Bits
		if v.Type == ValueFloat {
			x <<= 32
		}
		// floats are stored by their high bytes, zero-extended to the right
		n := width
		for n > 1 && x<<(8*uint(n-1))>>56 == 0 {
			n--
		}
		header(n - 1)
		le(x>>uint(64-8*n), n)
	case ValueArray:
		header(0)
		return writeArray(w, v.Array)
	case ValueAnnotation:
		if v.Annotation == nil {
			return errors.WrapFormat("annotation value without annotation")
		}
		header(0)
		return writeAnnotation(w, v.Annotation)
	case ValueNull:
		header(0)
	case ValueBoolean:
		if v.Bits > 1 {
			return errors.WrapOperandRange("boolean value", int64(v.Bits))
		}
		header(int(v.Bits))
	default:
		if !v.Type.Indexed() {
			return errors.WrapUnknownTag("encoded value type", int(v.Type), w.Pos())
		}
		n := unsignedSize(uint64(v.Index))
		header(n - 1)
		le(uint64(v.Index), n)
	}
	return nil
}

func writeArray(w *byteio.Writer, vs []EncodedValue) error {
	w.Uleb128(uint32(len(vs)))
	for i := range vs {
		if err := writeValue(w, &vs[i]); err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
	}
	return nil
}

func writeAnnotation(w *byteio.Writer, a *EncodedAnnotation) error {
	w.Uleb128(a.Type)
	w.Uleb128(uint32(len(a.Elements)))
	for i := range a.Elements {
		w.Uleb128(a.Elements[i].Name)
		if err := writeValue(w, &a.Elements[i].Value); err != nil {
			return fmt.Errorf("annotation element %d: %w", i, err)
		}
	}
	return nil
}
