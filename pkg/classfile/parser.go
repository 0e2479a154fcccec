package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/byteio"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes a complete class file. Trailing bytes are an error.
func ParseBytes(data []byte) (*ClassFile, error) {
	in := &input{r: byteio.NewReader(data, binary.BigEndian)}
	cf := &ClassFile{}

	magic := in.u4()
	if in.err != nil {
		return nil, fmt.Errorf("reading magic number: %w", in.err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("%w: 0x%X (expected 0xCAFEBABE)", errors.ErrBadMagic, magic)
	}
	cf.MinorVersion = in.u2()
	cf.MajorVersion = in.u2()
	cpCount := in.u2()
	if in.err != nil {
		return nil, fmt.Errorf("reading version: %w", in.err)
	}

	pool, err := parseConstantPool(in, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = in.u2()
	cf.ThisClass = in.u2()
	cf.SuperClass = in.u2()
	cf.Interfaces = in.u2s()
	if in.err != nil {
		return nil, fmt.Errorf("reading class header: %w", in.err)
	}

	if cf.Fields, err = parseFields(in, pool); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	if cf.Methods, err = parseMethods(in, pool); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}
	if cf.Attributes, err = parseAttributes(in, pool); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	if n := in.r.Remaining(); n > 0 {
		return nil, errors.WrapFormat("%d trailing bytes after class file", n)
	}
	return cf, nil
}

// input is a byteio.Reader with a sticky error, so a run of fixed fields
// can be read before checking once.
type input struct {
	r   *byteio.Reader
	err error
}

func (in *input) u1() uint8 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.U8()
	in.err = err
	return v
}

func (in *input) u2() uint16 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.U16()
	in.err = err
	return v
}

func (in *input) u4() uint32 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.U32()
	in.err = err
	return v
}

func (in *input) bytes(n int) []byte {
	if in.err != nil {
		return nil
	}
	b, err := in.r.Bytes(n)
	in.err = err
	return b
}

// u2s reads a u2 count followed by that many u2 values.
func (in *input) u2s() []uint16 {
	n := in.u2()
	if in.err != nil {
		return nil
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = in.u2()
	}
	return out
}

func parseConstantPool(in *input, count uint16) (*ConstantPool, error) {
	pool := NewConstantPool()
	for i := 1; i < int(count); i++ {
		tag := in.u1()
		if in.err != nil {
			return nil, fmt.Errorf("reading tag of entry %d: %w", i, in.err)
		}
		var c Constant
		switch tag {
		case TagUtf8:
			n := in.u2()
			raw := in.bytes(int(n))
			if in.err != nil {
				return nil, fmt.Errorf("reading Utf8 entry %d: %w", i, in.err)
			}
			s, err := byteio.DecodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("decoding Utf8 entry %d: %w", i, err)
			}
			c = &ConstantUtf8{Value: s}
		case TagInteger:
			c = &ConstantInteger{Value: int32(in.u4())}
		case TagFloat:
			c = &ConstantFloat{Value: math.Float32frombits(in.u4())}
		case TagLong:
			hi, lo := in.u4(), in.u4()
			c = &ConstantLong{Value: int64(uint64(hi)<<32 | uint64(lo))}
		case TagDouble:
			hi, lo := in.u4(), in.u4()
			c = &ConstantDouble{Value: math.Float64frombits(uint64(hi)<<32 | uint64(lo))}
		case TagClass:
			c = &ConstantClass{NameIndex: in.u2()}
		case TagString:
			c = &ConstantString{StringIndex: in.u2()}
		case TagFieldref:
			c = &ConstantFieldref{ClassIndex: in.u2(), NameAndTypeIndex: in.u2()}
		case TagMethodref:
			c = &ConstantMethodref{ClassIndex: in.u2(), NameAndTypeIndex: in.u2()}
		case TagInterfaceMethodref:
			c = &ConstantInterfaceMethodref{ClassIndex: in.u2(), NameAndTypeIndex: in.u2()}
		case TagNameAndType:
			c = &ConstantNameAndType{NameIndex: in.u2(), DescriptorIndex: in.u2()}
		case TagMethodHandle:
			c = &ConstantMethodHandle{ReferenceKind: in.u1(), ReferenceIndex: in.u2()}
		case TagMethodType:
			c = &ConstantMethodType{DescriptorIndex: in.u2()}
		case TagDynamic:
			c = &ConstantDynamic{BootstrapMethodAttrIndex: in.u2(), NameAndTypeIndex: in.u2()}
		case TagInvokeDynamic:
			c = &ConstantInvokeDynamic{BootstrapMethodAttrIndex: in.u2(), NameAndTypeIndex: in.u2()}
		case TagModule:
			c = &ConstantModule{NameIndex: in.u2()}
		case TagPackage:
			c = &ConstantPackage{NameIndex: in.u2()}
		default:
			return nil, errors.WrapUnknownTag("constant pool tag", int(tag), in.r.Pos()-1)
		}
		if in.err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, in.err)
		}
		if _, err := pool.appendRaw(c); err != nil {
			return nil, err
		}
		if slots(c) == 2 {
			i++
		}
	}
	if pool.Count() != int(count) {
		return nil, errors.WrapFormat("constant pool count %d, last entry ends at %d", count, pool.Count())
	}
	return pool, nil
}

func parseFields(in *input, pool *ConstantPool) ([]FieldInfo, error) {
	count := in.u2()
	if in.err != nil {
		return nil, fmt.Errorf("reading fields count: %w", in.err)
	}
	fields := make([]FieldInfo, count)
	for i := range fields {
		f := &fields[i]
		f.AccessFlags = in.u2()
		f.NameIndex = in.u2()
		f.DescriptorIndex = in.u2()
		if in.err != nil {
			return nil, fmt.Errorf("reading field %d: %w", i, in.err)
		}
		attrs, err := parseAttributes(in, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d attributes: %w", i, err)
		}
		f.Attributes = attrs
	}
	return fields, nil
}

func parseMethods(in *input, pool *ConstantPool) ([]MethodInfo, error) {
	count := in.u2()
	if in.err != nil {
		return nil, fmt.Errorf("reading methods count: %w", in.err)
	}
	methods := make([]MethodInfo, count)
	for i := range methods {
		m := &methods[i]
		m.AccessFlags = in.u2()
		m.NameIndex = in.u2()
		m.DescriptorIndex = in.u2()
		if in.err != nil {
			return nil, fmt.Errorf("reading method %d: %w", i, in.err)
		}
		attrs, err := parseAttributes(in, pool)
		if err != nil {
			name, _ := pool.GetUtf8(m.NameIndex)
			return nil, fmt.Errorf("parsing method %d (%s) attributes: %w", i, name, err)
		}
		m.Attributes = attrs
	}
	return methods, nil
}

func parseAttributes(in *input, pool *ConstantPool) ([]Attribute, error) {
	count := in.u2()
	if in.err != nil {
		return nil, fmt.Errorf("reading attributes count: %w", in.err)
	}
	attrs := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIndex := in.u2()
		length := in.u4()
		data := in.bytes(int(length))
		if in.err != nil {
			return nil, fmt.Errorf("reading attribute %d: %w", i, in.err)
		}
		name, err := pool.GetUtf8(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		a, err := parseAttribute(name, data, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing %s attribute: %w", name, err)
		}
		a.Header().NameIndex = nameIndex
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// parseAttribute decodes one payload. The payload must be consumed exactly.
func parseAttribute(name string, data []byte, pool *ConstantPool) (Attribute, error) {
	in := &input{r: byteio.NewReader(data, binary.BigEndian)}
	var a Attribute
	switch name {
	case AttrCode:
		code, err := parseCode(in, pool)
		if err != nil {
			return nil, err
		}
		a = code
	case AttrConstantValue:
		a = &ConstantValueAttribute{ValueIndex: in.u2()}
	case AttrExceptions:
		a = &ExceptionsAttribute{ExceptionIndexes: in.u2s()}
	case AttrSourceFile:
		a = &SourceFileAttribute{SourceFileIndex: in.u2()}
	case AttrSignature:
		a = &SignatureAttribute{SignatureIndex: in.u2()}
	case AttrSourceDebugExtension:
		a = &SourceDebugExtensionAttribute{Data: append([]byte(nil), data...)}
		in.bytes(len(data))
	case AttrLineNumberTable:
		lnt := &LineNumberTableAttribute{Entries: make([]LineNumber, in.u2())}
		for i := range lnt.Entries {
			lnt.Entries[i] = LineNumber{StartPC: in.u2(), LineNumber: in.u2()}
		}
		a = lnt
	case AttrLocalVariableTable, AttrLocalVariableTypeTable:
		lvt := &LocalVariableTableAttribute{Generic: name == AttrLocalVariableTypeTable}
		lvt.Entries = make([]LocalVariable, in.u2())
		for i := range lvt.Entries {
			lvt.Entries[i] = LocalVariable{StartPC: in.u2(), Length: in.u2(), NameIndex: in.u2(), DescriptorIndex: in.u2(), Index: in.u2()}
		}
		a = lvt
	case AttrStackMapTable:
		frames, err := parseFrames(in)
		if err != nil {
			return nil, err
		}
		a = &StackMapTableAttribute{Frames: frames}
	case AttrInnerClasses:
		ic := &InnerClassesAttribute{Classes: make([]InnerClass, in.u2())}
		for i := range ic.Classes {
			ic.Classes[i] = InnerClass{InnerClassInfoIndex: in.u2(), OuterClassInfoIndex: in.u2(), InnerNameIndex: in.u2(), InnerClassAccessFlags: in.u2()}
		}
		a = ic
	case AttrEnclosingMethod:
		a = &EnclosingMethodAttribute{ClassIndex: in.u2(), MethodIndex: in.u2()}
	case AttrSynthetic:
		a = &SyntheticAttribute{}
	case AttrDeprecated:
		a = &DeprecatedAttribute{}
	case AttrBootstrapMethods:
		bm := &BootstrapMethodsAttribute{Methods: make([]BootstrapMethod, in.u2())}
		for i := range bm.Methods {
			bm.Methods[i] = BootstrapMethod{MethodRef: in.u2(), Arguments: in.u2s()}
		}
		a = bm
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations:
		anns, err := parseAnnotations(in)
		if err != nil {
			return nil, err
		}
		a = &AnnotationsAttribute{Visible: name == AttrRuntimeVisibleAnnotations, Annotations: anns}
	case AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations:
		pa := &ParameterAnnotationsAttribute{Visible: name == AttrRuntimeVisibleParameterAnnotations}
		pa.Parameters = make([][]Annotation, in.u1())
		for i := range pa.Parameters {
			anns, err := parseAnnotations(in)
			if err != nil {
				return nil, fmt.Errorf("parameter %d: %w", i, err)
			}
			pa.Parameters[i] = anns
		}
		a = pa
	case AttrAnnotationDefault:
		v, err := parseElementValue(in)
		if err != nil {
			return nil, err
		}
		a = &AnnotationDefaultAttribute{Value: v}
	case AttrMethodParameters:
		mp := &MethodParametersAttribute{Parameters: make([]MethodParameter, in.u1())}
		for i := range mp.Parameters {
			mp.Parameters[i] = MethodParameter{NameIndex: in.u2(), AccessFlags: in.u2()}
		}
		a = mp
	case AttrNestHost:
		a = &NestHostAttribute{HostClassIndex: in.u2()}
	case AttrNestMembers:
		a = &NestMembersAttribute{Classes: in.u2s()}
	case AttrPermittedSubclasses:
		a = &PermittedSubclassesAttribute{Classes: in.u2s()}
	case AttrRecord:
		n := in.u2()
		rec := &RecordAttribute{}
		for i := uint16(0); i < n && in.err == nil; i++ {
			rc := RecordComponent{NameIndex: in.u2(), DescriptorIndex: in.u2()}
			attrs, err := parseAttributes(in, pool)
			if err != nil {
				return nil, fmt.Errorf("record component %d: %w", i, err)
			}
			rc.Attributes = attrs
			rec.Components = append(rec.Components, rc)
		}
		a = rec
	default:
		a = &UnknownAttribute{AttrName: name, Data: append([]byte(nil), data...)}
		in.bytes(len(data))
	}
	if in.err != nil {
		return nil, in.err
	}
	if n := in.r.Remaining(); n > 0 {
		return nil, errors.WrapFormat("%d unread bytes in %s attribute", n, name)
	}
	return a, nil
}

func parseCode(in *input, pool *ConstantPool) (*CodeAttribute, error) {
	code := &CodeAttribute{MaxStack: in.u2(), MaxLocals: in.u2()}
	codeLength := in.u4()
	raw := in.bytes(int(codeLength))
	if in.err != nil {
		return nil, in.err
	}
	insns, err := bytecode.Decode(raw)
	if err != nil {
		return nil, err
	}
	code.Instructions = insns
	code.ExceptionTable = make([]ExceptionHandler, in.u2())
	for i := range code.ExceptionTable {
		code.ExceptionTable[i] = ExceptionHandler{StartPC: in.u2(), EndPC: in.u2(), HandlerPC: in.u2(), CatchType: in.u2()}
	}
	if in.err != nil {
		return nil, fmt.Errorf("reading exception table: %w", in.err)
	}
	attrs, err := parseAttributes(in, pool)
	if err != nil {
		return nil, err
	}
	code.Attributes = attrs
	return code, nil
}

func parseFrames(in *input) ([]Frame, error) {
	n := in.u2()
	frames := make([]Frame, 0, n)
	for i := uint16(0); i < n && in.err == nil; i++ {
		pos := in.r.Pos()
		tag := in.u1()
		var f Frame
		switch {
		case tag <= 63:
			f = &SameFrame{OffsetDelta: uint16(tag)}
		case tag <= 127:
			f = &SameLocals1StackItemFrame{OffsetDelta: uint16(tag - 64), Stack: parseVerificationType(in)}
		case tag < 247:
			return nil, errors.WrapUnknownTag("stack map frame", int(tag), pos)
		case tag == 247:
			delta := in.u2()
			f = &SameLocals1StackItemFrame{OffsetDelta: delta, Extended: true, Stack: parseVerificationType(in)}
		case tag <= 250:
			f = &ChopFrame{OffsetDelta: in.u2(), Chopped: 251 - int(tag)}
		case tag == 251:
			f = &SameFrame{OffsetDelta: in.u2(), Extended: true}
		case tag <= 254:
			af := &AppendFrame{OffsetDelta: in.u2()}
			for j := 0; j < int(tag)-251; j++ {
				af.Locals = append(af.Locals, parseVerificationType(in))
			}
			f = af
		default:
			ff := &FullFrame{OffsetDelta: in.u2()}
			ff.Locals = parseVerificationTypes(in)
			ff.Stack = parseVerificationTypes(in)
			f = ff
		}
		frames = append(frames, f)
	}
	if in.err != nil {
		return nil, in.err
	}
	return frames, nil
}

func parseVerificationTypes(in *input) []VerificationType {
	n := in.u2()
	if in.err != nil {
		return nil
	}
	out := make([]VerificationType, n)
	for i := range out {
		out[i] = parseVerificationType(in)
	}
	return out
}

func parseVerificationType(in *input) VerificationType {
	pos := in.r.Pos()
	vt := VerificationType{Tag: in.u1()}
	switch vt.Tag {
	case ItemTop, ItemInteger, ItemFloat, ItemDouble, ItemLong, ItemNull, ItemUninitializedThis:
	case ItemObject:
		vt.Index = in.u2()
	case ItemUninitialized:
		vt.Offset = in.u2()
	default:
		if in.err == nil {
			in.err = errors.WrapUnknownTag("verification type", int(vt.Tag), pos)
		}
	}
	return vt
}

func parseAnnotations(in *input) ([]Annotation, error) {
	n := in.u2()
	out := make([]Annotation, 0, n)
	for i := uint16(0); i < n && in.err == nil; i++ {
		a, err := parseAnnotation(in)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, in.err
}

func parseAnnotation(in *input) (Annotation, error) {
	a := Annotation{TypeIndex: in.u2()}
	n := in.u2()
	for i := uint16(0); i < n && in.err == nil; i++ {
		pair := ElementPair{NameIndex: in.u2()}
		v, err := parseElementValue(in)
		if err != nil {
			return a, err
		}
		pair.Value = v
		a.Elements = append(a.Elements, pair)
	}
	return a, in.err
}

func parseElementValue(in *input) (ElementValue, error) {
	pos := in.r.Pos()
	tag := in.u1()
	if in.err != nil {
		return nil, in.err
	}
	switch {
	case isConstElementTag(tag):
		return &ConstElement{ElemTag: tag, ConstIndex: in.u2()}, in.err
	case tag == 'e':
		return &EnumElement{TypeNameIndex: in.u2(), ConstNameIndex: in.u2()}, in.err
	case tag == 'c':
		return &ClassElement{ClassInfoIndex: in.u2()}, in.err
	case tag == '@':
		a, err := parseAnnotation(in)
		return &AnnotationElement{Annotation: a}, err
	case tag == '[':
		n := in.u2()
		arr := &ArrayElement{}
		for i := uint16(0); i < n && in.err == nil; i++ {
			v, err := parseElementValue(in)
			if err != nil {
				return nil, err
			}
			arr.Values = append(arr.Values, v)
		}
		return arr, in.err
	}
	return nil, errors.WrapUnknownTag("element value", int(tag), pos)
}
