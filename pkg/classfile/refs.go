package classfile

import (
	"fmt"

	"github.com/daimatz/jdex/pkg/bytecode"
)

// RefKind says what a pool reference is expected to point at. For Utf8
// targets it also says how the string is used, which is what the renamer
// keys on.
type RefKind int

const (
	KindAny RefKind = iota
	KindUtf8
	KindClassName
	KindClass
	KindFieldDescriptor
	KindMethodDescriptor
	// KindDescriptor is a NameAndType descriptor reached without a
	// field or method context.
	KindDescriptor
	KindSignature
	KindNameAndType
	KindFieldNameAndType
	KindMethodNameAndType
	KindMember
	KindMethodHandle
)

var kindNames = [...]string{
	KindAny:               "any",
	KindUtf8:              "utf8",
	KindClassName:         "class-name",
	KindClass:             "class",
	KindFieldDescriptor:   "field-descriptor",
	KindMethodDescriptor:  "method-descriptor",
	KindDescriptor:        "descriptor",
	KindSignature:         "signature",
	KindNameAndType:       "name-and-type",
	KindFieldNameAndType:  "field-name-and-type",
	KindMethodNameAndType: "method-name-and-type",
	KindMember:            "member",
	KindMethodHandle:      "method-handle",
}

func (k RefKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Ref is one pool reference site. Index points into the model so the same
// walk can collect and rewrite references.
type Ref struct {
	Kind  RefKind
	Index *uint16
}

type refFunc func(Ref)

func (fn refFunc) ref(kind RefKind, idx *uint16) {
	if *idx != 0 {
		fn(Ref{Kind: kind, Index: idx})
	}
}

// Refs calls fn for every constant pool reference held by the class
// structure, not counting references between pool entries. Zero indices
// ("none") are skipped.
func (cf *ClassFile) Refs(fn func(Ref)) {
	r := refFunc(fn)
	r.ref(KindClass, &cf.ThisClass)
	r.ref(KindClass, &cf.SuperClass)
	for i := range cf.Interfaces {
		r.ref(KindClass, &cf.Interfaces[i])
	}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		r.ref(KindUtf8, &f.NameIndex)
		r.ref(KindFieldDescriptor, &f.DescriptorIndex)
		attributeRefs(r, f.Attributes)
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		r.ref(KindUtf8, &m.NameIndex)
		r.ref(KindMethodDescriptor, &m.DescriptorIndex)
		attributeRefs(r, m.Attributes)
	}
	attributeRefs(r, cf.Attributes)
}

// InstructionRefKind classifies the pool index carried by an instruction.
func InstructionRefKind(op bytecode.Opcode) RefKind {
	switch op {
	case bytecode.OpGetstatic, bytecode.OpPutstatic, bytecode.OpGetfield, bytecode.OpPutfield,
		bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		return KindMember
	case bytecode.OpNew, bytecode.OpAnewarray, bytecode.OpCheckcast, bytecode.OpInstanceof, bytecode.OpMultianewarray:
		return KindClass
	}
	return KindAny
}

func attributeRefs(r refFunc, attrs []Attribute) {
	for _, a := range attrs {
		r.ref(KindUtf8, &a.Header().NameIndex)
		switch a := a.(type) {
		case *CodeAttribute:
			for i := range a.Instructions {
				in := &a.Instructions[i]
				if in.HasPoolIndex() {
					r.ref(InstructionRefKind(in.Op), &in.Index)
				}
			}
			for i := range a.ExceptionTable {
				r.ref(KindClass, &a.ExceptionTable[i].CatchType)
			}
			attributeRefs(r, a.Attributes)
		case *ConstantValueAttribute:
			r.ref(KindAny, &a.ValueIndex)
		case *ExceptionsAttribute:
			for i := range a.ExceptionIndexes {
				r.ref(KindClass, &a.ExceptionIndexes[i])
			}
		case *SourceFileAttribute:
			r.ref(KindUtf8, &a.SourceFileIndex)
		case *SignatureAttribute:
			r.ref(KindSignature, &a.SignatureIndex)
		case *LocalVariableTableAttribute:
			desc := KindFieldDescriptor
			if a.Generic {
				desc = KindSignature
			}
			for i := range a.Entries {
				r.ref(KindUtf8, &a.Entries[i].NameIndex)
				r.ref(desc, &a.Entries[i].DescriptorIndex)
			}
		case *StackMapTableAttribute:
			for _, f := range a.Frames {
				frameRefs(r, f)
			}
		case *InnerClassesAttribute:
			for i := range a.Classes {
				c := &a.Classes[i]
				r.ref(KindClass, &c.InnerClassInfoIndex)
				r.ref(KindClass, &c.OuterClassInfoIndex)
				r.ref(KindUtf8, &c.InnerNameIndex)
			}
		case *EnclosingMethodAttribute:
			r.ref(KindClass, &a.ClassIndex)
			r.ref(KindMethodNameAndType, &a.MethodIndex)
		case *BootstrapMethodsAttribute:
			for i := range a.Methods {
				m := &a.Methods[i]
				r.ref(KindMethodHandle, &m.MethodRef)
				for j := range m.Arguments {
					r.ref(KindAny, &m.Arguments[j])
				}
			}
		case *AnnotationsAttribute:
			for i := range a.Annotations {
				annotationRefs(r, &a.Annotations[i])
			}
		case *ParameterAnnotationsAttribute:
			for _, anns := range a.Parameters {
				for i := range anns {
					annotationRefs(r, &anns[i])
				}
			}
		case *AnnotationDefaultAttribute:
			elementRefs(r, a.Value)
		case *MethodParametersAttribute:
			for i := range a.Parameters {
				r.ref(KindUtf8, &a.Parameters[i].NameIndex)
			}
		case *NestHostAttribute:
			r.ref(KindClass, &a.HostClassIndex)
		case *NestMembersAttribute:
			for i := range a.Classes {
				r.ref(KindClass, &a.Classes[i])
			}
		case *PermittedSubclassesAttribute:
			for i := range a.Classes {
				r.ref(KindClass, &a.Classes[i])
			}
		case *RecordAttribute:
			for i := range a.Components {
				c := &a.Components[i]
				r.ref(KindUtf8, &c.NameIndex)
				r.ref(KindFieldDescriptor, &c.DescriptorIndex)
				attributeRefs(r, c.Attributes)
			}
		}
	}
}

func frameRefs(r refFunc, f Frame) {
	vts := func(list []VerificationType) {
		for i := range list {
			if list[i].Tag == ItemObject {
				r.ref(KindClass, &list[i].Index)
			}
		}
	}
	switch f := f.(type) {
	case *SameLocals1StackItemFrame:
		if f.Stack.Tag == ItemObject {
			r.ref(KindClass, &f.Stack.Index)
		}
	case *AppendFrame:
		vts(f.Locals)
	case *FullFrame:
		vts(f.Locals)
		vts(f.Stack)
	}
}

func annotationRefs(r refFunc, a *Annotation) {
	r.ref(KindFieldDescriptor, &a.TypeIndex)
	for i := range a.Elements {
		r.ref(KindUtf8, &a.Elements[i].NameIndex)
		elementRefs(r, a.Elements[i].Value)
	}
}

func elementRefs(r refFunc, v ElementValue) {
	switch v := v.(type) {
	case *ConstElement:
		if v.ElemTag == 's' {
			r.ref(KindUtf8, &v.ConstIndex)
		} else {
			r.ref(KindAny, &v.ConstIndex)
		}
	case *EnumElement:
		r.ref(KindFieldDescriptor, &v.TypeNameIndex)
		r.ref(KindUtf8, &v.ConstNameIndex)
	case *ClassElement:
		r.ref(KindFieldDescriptor, &v.ClassInfoIndex)
	case *AnnotationElement:
		annotationRefs(r, &v.Annotation)
	case *ArrayElement:
		for _, e := range v.Values {
			elementRefs(r, e)
		}
	}
}

// ConstantRefs calls fn for every pool index held by c. via is the kind of
// the reference that reached c; it decides whether a NameAndType
// descriptor is a field or a method descriptor.
func ConstantRefs(c Constant, via RefKind, fn func(Ref)) {
	r := refFunc(fn)
	switch c := c.(type) {
	case *ConstantClass:
		r.ref(KindClassName, &c.NameIndex)
	case *ConstantString:
		r.ref(KindUtf8, &c.StringIndex)
	case *ConstantFieldref:
		r.ref(KindClass, &c.ClassIndex)
		r.ref(KindFieldNameAndType, &c.NameAndTypeIndex)
	case *ConstantMethodref:
		r.ref(KindClass, &c.ClassIndex)
		r.ref(KindMethodNameAndType, &c.NameAndTypeIndex)
	case *ConstantInterfaceMethodref:
		r.ref(KindClass, &c.ClassIndex)
		r.ref(KindMethodNameAndType, &c.NameAndTypeIndex)
	case *ConstantNameAndType:
		r.ref(KindUtf8, &c.NameIndex)
		switch via {
		case KindFieldNameAndType:
			r.ref(KindFieldDescriptor, &c.DescriptorIndex)
		case KindMethodNameAndType:
			r.ref(KindMethodDescriptor, &c.DescriptorIndex)
		default:
			r.ref(KindDescriptor, &c.DescriptorIndex)
		}
	case *ConstantMethodHandle:
		r.ref(KindMember, &c.ReferenceIndex)
	case *ConstantMethodType:
		r.ref(KindMethodDescriptor, &c.DescriptorIndex)
	case *ConstantDynamic:
		r.ref(KindFieldNameAndType, &c.NameAndTypeIndex)
	case *ConstantInvokeDynamic:
		r.ref(KindMethodNameAndType, &c.NameAndTypeIndex)
	case *ConstantModule:
		r.ref(KindUtf8, &c.NameIndex)
	case *ConstantPackage:
		r.ref(KindUtf8, &c.NameIndex)
	}
}

// Validate checks that every pool index held by the class structure and
// by the pool entries themselves names an existing entry.
func (cf *ClassFile) Validate() error {
	pool := cf.ConstantPool
	var bad error
	check := func(where string) func(Ref) {
		return func(r Ref) {
			if bad != nil {
				return
			}
			if _, err := pool.Get(*r.Index); err != nil {
				bad = fmt.Errorf("%s %s reference: %w", where, r.Kind, err)
			}
		}
	}
	pool.Each(func(i uint16, c Constant) {
		ConstantRefs(c, KindAny, check(fmt.Sprintf("constant #%d", i)))
	})
	cf.Refs(check("class"))
	return bad
}

// HasOpaqueAttributes reports whether any attribute in the class is kept
// as raw bytes and may therefore hide pool references.
func (cf *ClassFile) HasOpaqueAttributes() (string, bool) {
	var name string
	var walk func(attrs []Attribute) bool
	walk = func(attrs []Attribute) bool {
		for _, a := range attrs {
			switch a := a.(type) {
			case *UnknownAttribute:
				name = a.AttrName
				return true
			case *CodeAttribute:
				if walk(a.Attributes) {
					return true
				}
			case *RecordAttribute:
				for _, c := range a.Components {
					if walk(c.Attributes) {
						return true
					}
				}
			}
		}
		return false
	}
	if walk(cf.Attributes) {
		return name, true
	}
	for _, f := range cf.Fields {
		if walk(f.Attributes) {
			return name, true
		}
	}
	for _, m := range cf.Methods {
		if walk(m.Attributes) {
			return name, true
		}
	}
	return "", false
}
