package classfile

import "github.com/daimatz/jdex/pkg/visit"

// PoolEntry is a constant together with its pool index.
type PoolEntry struct {
	Index    uint16
	Constant Constant
}

// ConstantVisitor dispatches on the constant's kind. Unset handlers fall
// back to Any.
type ConstantVisitor struct {
	Any          func(e PoolEntry)
	Utf8         func(e PoolEntry, c *ConstantUtf8)
	Number       func(e PoolEntry)
	Class        func(e PoolEntry, c *ConstantClass)
	String       func(e PoolEntry, c *ConstantString)
	Member       func(e PoolEntry)
	NameAndType  func(e PoolEntry, c *ConstantNameAndType)
	MethodHandle func(e PoolEntry, c *ConstantMethodHandle)
	MethodType   func(e PoolEntry, c *ConstantMethodType)
	Dynamic      func(e PoolEntry)
}

func (v *ConstantVisitor) Visit(e PoolEntry) {
	switch c := e.Constant.(type) {
	case *ConstantUtf8:
		if v.Utf8 != nil {
			v.Utf8(e, c)
			return
		}
	case *ConstantInteger, *ConstantFloat, *ConstantLong, *ConstantDouble:
		if v.Number != nil {
			v.Number(e)
			return
		}
	case *ConstantClass:
		if v.Class != nil {
			v.Class(e, c)
			return
		}
	case *ConstantString:
		if v.String != nil {
			v.String(e, c)
			return
		}
	case *ConstantFieldref, *ConstantMethodref, *ConstantInterfaceMethodref:
		if v.Member != nil {
			v.Member(e)
			return
		}
	case *ConstantNameAndType:
		if v.NameAndType != nil {
			v.NameAndType(e, c)
			return
		}
	case *ConstantMethodHandle:
		if v.MethodHandle != nil {
			v.MethodHandle(e, c)
			return
		}
	case *ConstantMethodType:
		if v.MethodType != nil {
			v.MethodType(e, c)
			return
		}
	case *ConstantDynamic, *ConstantInvokeDynamic:
		if v.Dynamic != nil {
			v.Dynamic(e)
			return
		}
	}
	if v.Any != nil {
		v.Any(e)
	}
}

// Accept visits every pool entry in index order.
func (p *ConstantPool) Accept(v visit.Visitor[PoolEntry]) {
	p.Each(func(index uint16, c Constant) {
		v.Visit(PoolEntry{Index: index, Constant: c})
	})
}

// AttributeVisitor dispatches on the attribute type. Unset handlers fall
// back to Any.
type AttributeVisitor struct {
	Any                func(a Attribute)
	Code               func(a *CodeAttribute)
	LineNumberTable    func(a *LineNumberTableAttribute)
	LocalVariableTable func(a *LocalVariableTableAttribute)
	StackMapTable      func(a *StackMapTableAttribute)
	Annotations        func(a *AnnotationsAttribute)
	Unknown            func(a *UnknownAttribute)
}

func (v *AttributeVisitor) Visit(a Attribute) {
	switch a := a.(type) {
	case *CodeAttribute:
		if v.Code != nil {
			v.Code(a)
			return
		}
	case *LineNumberTableAttribute:
		if v.LineNumberTable != nil {
			v.LineNumberTable(a)
			return
		}
	case *LocalVariableTableAttribute:
		if v.LocalVariableTable != nil {
			v.LocalVariableTable(a)
			return
		}
	case *StackMapTableAttribute:
		if v.StackMapTable != nil {
			v.StackMapTable(a)
			return
		}
	case *AnnotationsAttribute:
		if v.Annotations != nil {
			v.Annotations(a)
			return
		}
	case *UnknownAttribute:
		if v.Unknown != nil {
			v.Unknown(a)
			return
		}
	}
	if v.Any != nil {
		v.Any(a)
	}
}

// AcceptAttributes visits every attribute in the class, including those
// nested in members, Code and Record components, parents first.
func (cf *ClassFile) AcceptAttributes(v visit.Visitor[Attribute]) {
	var walk func(attrs []Attribute)
	walk = func(attrs []Attribute) {
		for _, a := range attrs {
			v.Visit(a)
			switch a := a.(type) {
			case *CodeAttribute:
				walk(a.Attributes)
			case *RecordAttribute:
				for _, c := range a.Components {
					walk(c.Attributes)
				}
			}
		}
	}
	walk(cf.Attributes)
	for _, f := range cf.Fields {
		walk(f.Attributes)
	}
	for _, m := range cf.Methods {
		walk(m.Attributes)
	}
}

// FrameVisitor dispatches on the stack map frame kind.
type FrameVisitor struct {
	Any         func(f Frame)
	Same        func(f *SameFrame)
	SameLocals1 func(f *SameLocals1StackItemFrame)
	Chop        func(f *ChopFrame)
	Append      func(f *AppendFrame)
	Full        func(f *FullFrame)
}

func (v *FrameVisitor) Visit(f Frame) {
	switch f := f.(type) {
	case *SameFrame:
		if v.Same != nil {
			v.Same(f)
			return
		}
	case *SameLocals1StackItemFrame:
		if v.SameLocals1 != nil {
			v.SameLocals1(f)
			return
		}
	case *ChopFrame:
		if v.Chop != nil {
			v.Chop(f)
			return
		}
	case *AppendFrame:
		if v.Append != nil {
			v.Append(f)
			return
		}
	case *FullFrame:
		if v.Full != nil {
			v.Full(f)
			return
		}
	}
	if v.Any != nil {
		v.Any(f)
	}
}

// ElementValueVisitor dispatches on the annotation element kind.
type ElementValueVisitor struct {
	Any        func(e ElementValue)
	Const      func(e *ConstElement)
	Enum       func(e *EnumElement)
	Class      func(e *ClassElement)
	Annotation func(e *AnnotationElement)
	Array      func(e *ArrayElement)
}

func (v *ElementValueVisitor) Visit(e ElementValue) {
	switch e := e.(type) {
	case *ConstElement:
		if v.Const != nil {
			v.Const(e)
			return
		}
	case *EnumElement:
		if v.Enum != nil {
			v.Enum(e)
			return
		}
	case *ClassElement:
		if v.Class != nil {
			v.Class(e)
			return
		}
	case *AnnotationElement:
		if v.Annotation != nil {
			v.Annotation(e)
			return
		}
	case *ArrayElement:
		if v.Array != nil {
			v.Array(e)
			return
		}
	}
	if v.Any != nil {
		v.Any(e)
	}
}
