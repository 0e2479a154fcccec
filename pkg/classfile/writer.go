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

// Bytes serializes the class. Counts and attribute lengths are recomputed
// from the current model; a dangling pool index is an error.
func (cf *ClassFile) Bytes() ([]byte, error) {
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	w := byteio.NewWriter(binary.BigEndian)
	w.U32(classMagic)
	w.U16(cf.MinorVersion)
	w.U16(cf.MajorVersion)
	if err := writeConstantPool(w, cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("writing constant pool: %w", err)
	}
	w.U16(cf.AccessFlags)
	w.U16(cf.ThisClass)
	w.U16(cf.SuperClass)
	if err := writeU2s(w, cf.Interfaces); err != nil {
		return nil, fmt.Errorf("writing interfaces: %w", err)
	}

	if err := writeCount(w, len(cf.Fields)); err != nil {
		return nil, fmt.Errorf("writing fields: %w", err)
	}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		w.U16(f.AccessFlags)
		w.U16(f.NameIndex)
		w.U16(f.DescriptorIndex)
		if err := writeAttributes(w, f.Attributes); err != nil {
			return nil, fmt.Errorf("writing field %d: %w", i, err)
		}
	}

	if err := writeCount(w, len(cf.Methods)); err != nil {
		return nil, fmt.Errorf("writing methods: %w", err)
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		w.U16(m.AccessFlags)
		w.U16(m.NameIndex)
		w.U16(m.DescriptorIndex)
		if err := writeAttributes(w, m.Attributes); err != nil {
			return nil, fmt.Errorf("writing method %d: %w", i, err)
		}
	}

	if err := writeAttributes(w, cf.Attributes); err != nil {
		return nil, fmt.Errorf("writing class attributes: %w", err)
	}
	return w.Bytes(), nil
}

// Write serializes the class to out.
func (cf *ClassFile) Write(out io.Writer) error {
	b, err := cf.Bytes()
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// WriteFile serializes the class to path.
func (cf *ClassFile) WriteFile(path string) error {
	b, err := cf.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCount(w *byteio.Writer, n int) error {
	if n > math.MaxUint16 {
		return errors.WrapOperandRange("u2 count", int64(n))
	}
	w.U16(uint16(n))
	return nil
}

func writeU2s(w *byteio.Writer, vs []uint16) error {
	if err := writeCount(w, len(vs)); err != nil {
		return err
	}
	for _, v := range vs {
		w.U16(v)
	}
	return nil
}

func writeConstantPool(w *byteio.Writer, pool *ConstantPool) error {
	w.U16(uint16(pool.Count()))
	var err error
	pool.Each(func(index uint16, c Constant) {
		if err != nil {
			return
		}
		w.U8(c.Tag())
		switch c := c.(type) {
		case *ConstantUtf8:
			b := byteio.EncodeModifiedUTF8(c.Value)
			if len(b) > math.MaxUint16 {
				err = errors.WrapOperandRange(fmt.Sprintf("Utf8 entry %d length", index), int64(len(b)))
				return
			}
			w.U16(uint16(len(b)))
			w.Write(b)
		case *ConstantInteger:
			w.U32(uint32(c.Value))
		case *ConstantFloat:
			w.U32(math.Float32bits(c.Value))
		case *ConstantLong:
			w.U64(uint64(c.Value))
		case *ConstantDouble:
			w.U64(math.Float64bits(c.Value))
		case *ConstantClass:
			w.U16(c.NameIndex)
		case *ConstantString:
			w.U16(c.StringIndex)
		case *ConstantFieldref:
			w.U16(c.ClassIndex)
			w.U16(c.NameAndTypeIndex)
		case *ConstantMethodref:
			w.U16(c.ClassIndex)
			w.U16(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			w.U16(c.ClassIndex)
			w.U16(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			w.U16(c.NameIndex)
			w.U16(c.DescriptorIndex)
		case *ConstantMethodHandle:
			w.U8(c.ReferenceKind)
			w.U16(c.ReferenceIndex)
		case *ConstantMethodType:
			w.U16(c.DescriptorIndex)
		case *ConstantDynamic:
			w.U16(c.BootstrapMethodAttrIndex)
			w.U16(c.NameAndTypeIndex)
		case *ConstantInvokeDynamic:
			w.U16(c.BootstrapMethodAttrIndex)
			w.U16(c.NameAndTypeIndex)
		case *ConstantModule:
			w.U16(c.NameIndex)
		case *ConstantPackage:
			w.U16(c.NameIndex)
		default:
			err = errors.WrapUnknownTag("constant pool tag", int(c.Tag()), int(index))
		}
	})
	return err
}

func writeAttributes(w *byteio.Writer, attrs []Attribute) error {
	if err := writeCount(w, len(attrs)); err != nil {
		return err
	}
	for _, a := range attrs {
		if a.Header().NameIndex == 0 {
			return fmt.Errorf("%s attribute: %w", a.Name(), errors.WrapIndexOutOfRange("attribute name", 0, 0))
		}
		w.U16(a.Header().NameIndex)
		lengthAt := w.Pos()
		w.U32(0)
		if err := writeAttributeBody(w, a); err != nil {
			return fmt.Errorf("writing %s attribute: %w", a.Name(), err)
		}
		if err := w.PutU32At(lengthAt, uint32(w.Pos()-lengthAt-4)); err != nil {
			return err
		}
	}
	return nil
}

func writeAttributeBody(w *byteio.Writer, a Attribute) error {
	switch a := a.(type) {
	case *CodeAttribute:
		code, err := bytecode.Assemble(a.Instructions)
		if err != nil {
			return err
		}
		w.U16(a.MaxStack)
		w.U16(a.MaxLocals)
		w.U32(uint32(len(code)))
		w.Write(code)
		if err := writeCount(w, len(a.ExceptionTable)); err != nil {
			return err
		}
		for _, h := range a.ExceptionTable {
			w.U16(h.StartPC)
			w.U16(h.EndPC)
			w.U16(h.HandlerPC)
			w.U16(h.CatchType)
		}
		return writeAttributes(w, a.Attributes)
	case *ConstantValueAttribute:
		w.U16(a.ValueIndex)
	case *ExceptionsAttribute:
		return writeU2s(w, a.ExceptionIndexes)
	case *SourceFileAttribute:
		w.U16(a.SourceFileIndex)
	case *SignatureAttribute:
		w.U16(a.SignatureIndex)
	case *SourceDebugExtensionAttribute:
		w.Write(a.Data)
	case *LineNumberTableAttribute:
		if err := writeCount(w, len(a.Entries)); err != nil {
			return err
		}
		for _, e := range a.Entries {
			w.U16(e.StartPC)
			w.U16(e.LineNumber)
		}
	case *LocalVariableTableAttribute:
		if err := writeCount(w, len(a.Entries)); err != nil {
			return err
		}
		for _, e := range a.Entries {
			w.U16(e.StartPC)
			w.U16(e.Length)
			w.U16(e.NameIndex)
			w.U16(e.DescriptorIndex)
			w.U16(e.Index)
		}
	case *StackMapTableAttribute:
		return writeFrames(w, a.Frames)
	case *InnerClassesAttribute:
		if err := writeCount(w, len(a.Classes)); err != nil {
			return err
		}
		for _, c := range a.Classes {
			w.U16(c.InnerClassInfoIndex)
			w.U16(c.OuterClassInfoIndex)
			w.U16(c.InnerNameIndex)
			w.U16(c.InnerClassAccessFlags)
		}
	case *EnclosingMethodAttribute:
		w.U16(a.ClassIndex)
		w.U16(a.MethodIndex)
	case *SyntheticAttribute, *DeprecatedAttribute:
	case *BootstrapMethodsAttribute:
		if err := writeCount(w, len(a.Methods)); err != nil {
			return err
		}
		for _, m := range a.Methods {
			w.U16(m.MethodRef)
			if err := writeU2s(w, m.Arguments); err != nil {
				return err
			}
		}
	case *AnnotationsAttribute:
		return writeAnnotations(w, a.Annotations)
	case *ParameterAnnotationsAttribute:
		if len(a.Parameters) > math.MaxUint8 {
			return errors.WrapOperandRange("parameter count", int64(len(a.Parameters)))
		}
		w.U8(uint8(len(a.Parameters)))
		for _, anns := range a.Parameters {
			if err := writeAnnotations(w, anns); err != nil {
				return err
			}
		}
	case *AnnotationDefaultAttribute:
		return writeElementValue(w, a.Value)
	case *MethodParametersAttribute:
		if len(a.Parameters) > math.MaxUint8 {
			return errors.WrapOperandRange("parameter count", int64(len(a.Parameters)))
		}
		w.U8(uint8(len(a.Parameters)))
		for _, p := range a.Parameters {
			w.U16(p.NameIndex)
			w.U16(p.AccessFlags)
		}
	case *NestHostAttribute:
		w.U16(a.HostClassIndex)
	case *NestMembersAttribute:
		return writeU2s(w, a.Classes)
	case *PermittedSubclassesAttribute:
		return writeU2s(w, a.Classes)
	case *RecordAttribute:
		if err := writeCount(w, len(a.Components)); err != nil {
			return err
		}
		for _, c := range a.Components {
			w.U16(c.NameIndex)
			w.U16(c.DescriptorIndex)
			if err := writeAttributes(w, c.Attributes); err != nil {
				return err
			}
		}
	case *UnknownAttribute:
		w.Write(a.Data)
	default:
		return errors.WrapFormat("unsupported attribute type %T", a)
	}
	return nil
}

func writeFrames(w *byteio.Writer, frames []Frame) error {
	if err := writeCount(w, len(frames)); err != nil {
		return err
	}
	for _, f := range frames {
		tag := frameTag(f)
		w.U8(tag)
		switch f := f.(type) {
		case *SameFrame:
			if tag == 251 {
				w.U16(f.OffsetDelta)
			}
		case *SameLocals1StackItemFrame:
			if tag == 247 {
				w.U16(f.OffsetDelta)
			}
			writeVerificationType(w, f.Stack)
		case *ChopFrame:
			if f.Chopped < 1 || f.Chopped > 3 {
				return errors.WrapOperandRange("chop_frame count", int64(f.Chopped))
			}
			w.U16(f.OffsetDelta)
		case *AppendFrame:
			if len(f.Locals) < 1 || len(f.Locals) > 3 {
				return errors.WrapOperandRange("append_frame locals", int64(len(f.Locals)))
			}
			w.U16(f.OffsetDelta)
			for _, vt := range f.Locals {
				writeVerificationType(w, vt)
			}
		case *FullFrame:
			w.U16(f.OffsetDelta)
			if err := writeCount(w, len(f.Locals)); err != nil {
				return err
			}
			for _, vt := range f.Locals {
				writeVerificationType(w, vt)
			}
			if err := writeCount(w, len(f.Stack)); err != nil {
				return err
			}
			for _, vt := range f.Stack {
				writeVerificationType(w, vt)
			}
		default:
			return errors.WrapFormat("unsupported frame type %T", f)
		}
	}
	return nil
}

func writeVerificationType(w *byteio.Writer, vt VerificationType) {
	w.U8(vt.Tag)
	switch vt.Tag {
	case ItemObject:
		w.U16(vt.Index)
	case ItemUninitialized:
		w.U16(vt.Offset)
	}
}

func writeAnnotations(w *byteio.Writer, anns []Annotation) error {
	if err := writeCount(w, len(anns)); err != nil {
		return err
	}
	for i := range anns {
		if err := writeAnnotation(w, &anns[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeAnnotation(w *byteio.Writer, a *Annotation) error {
	w.U16(a.TypeIndex)
	if err := writeCount(w, len(a.Elements)); err != nil {
		return err
	}
	for _, e := range a.Elements {
		w.U16(e.NameIndex)
		if err := writeElementValue(w, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func writeElementValue(w *byteio.Writer, v ElementValue) error {
	w.U8(v.ElementTag())
	switch v := v.(type) {
	case *ConstElement:
		if !isConstElementTag(v.ElemTag) {
			return errors.WrapUnknownTag("element value", int(v.ElemTag), w.Pos()-1)
		}
		w.U16(v.ConstIndex)
	case *EnumElement:
		w.U16(v.TypeNameIndex)
		w.U16(v.ConstNameIndex)
	case *ClassElement:
		w.U16(v.ClassInfoIndex)
	case *AnnotationElement:
		return writeAnnotation(w, &v.Annotation)
	case *ArrayElement:
		if err := writeCount(w, len(v.Values)); err != nil {
			return err
		}
		for _, e := range v.Values {
			if err := writeElementValue(w, e); err != nil {
				return err
			}
		}
	}
	return nil
}
