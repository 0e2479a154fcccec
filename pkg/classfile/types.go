package classfile

// Access flags
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccModule       = 0x8000
)

// ClassFile represents a parsed .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []Attribute
}

// FieldInfo represents a field declared in a class.
type FieldInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// MethodInfo represents a method declared in a class.
type MethodInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.ConstantPool.GetClassName(cf.ThisClass)
}

// SuperClassName returns the fully qualified name of the super class.
// Returns "" if this is java/lang/Object (SuperClass == 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := cf.ConstantPool.GetClassName(cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		n, _ := cf.ConstantPool.GetUtf8(m.NameIndex)
		d, _ := cf.ConstantPool.GetUtf8(m.DescriptorIndex)
		if n == name && d == descriptor {
			return m
		}
	}
	return nil
}

// FindField finds a field by name.
func (cf *ClassFile) FindField(name string) *FieldInfo {
	for i := range cf.Fields {
		if n, _ := cf.ConstantPool.GetUtf8(cf.Fields[i].NameIndex); n == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

// Code returns the method's Code attribute, or nil for abstract and
// native methods.
func (m *MethodInfo) Code() *CodeAttribute {
	for _, a := range m.Attributes {
		if c, ok := a.(*CodeAttribute); ok {
			return c
		}
	}
	return nil
}

// FindAttribute returns the first attribute called name.
func FindAttribute(attrs []Attribute, name string) Attribute {
	for _, a := range attrs {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// RemoveAttribute drops every attribute called name and returns the rest.
func RemoveAttribute(attrs []Attribute, name string) []Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		if a.Name() != name {
			out = append(out, a)
		}
	}
	return out
}
