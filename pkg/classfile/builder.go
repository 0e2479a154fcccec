package classfile

import "fmt"

// Default class file version written for new classes (Java 8).
const (
	DefaultMajorVersion = 52
	DefaultMinorVersion = 0
)

// New creates an empty class. An empty super name leaves SuperClass 0,
// which only java/lang/Object and module-info may do.
func New(name, super string, flags uint16) (*ClassFile, error) {
	cf := &ClassFile{
		MinorVersion: DefaultMinorVersion,
		MajorVersion: DefaultMajorVersion,
		ConstantPool: NewConstantPool(),
		AccessFlags:  flags,
	}
	var err error
	if cf.ThisClass, err = cf.ConstantPool.Class(name); err != nil {
		return nil, err
	}
	if super != "" {
		if cf.SuperClass, err = cf.ConstantPool.Class(super); err != nil {
			return nil, err
		}
	}
	return cf, nil
}

// AddInterface appends an implemented interface.
func (cf *ClassFile) AddInterface(name string) error {
	idx, err := cf.ConstantPool.Class(name)
	if err != nil {
		return err
	}
	cf.Interfaces = append(cf.Interfaces, idx)
	return nil
}

// AddField appends a field. The returned pointer is valid until the next
// AddField.
func (cf *ClassFile) AddField(flags uint16, name, descriptor string) (*FieldInfo, error) {
	n, d, err := cf.memberIndexes(name, descriptor)
	if err != nil {
		return nil, fmt.Errorf("adding field %s: %w", name, err)
	}
	cf.Fields = append(cf.Fields, FieldInfo{AccessFlags: flags, NameIndex: n, DescriptorIndex: d})
	return &cf.Fields[len(cf.Fields)-1], nil
}

// AddMethod appends a method without a Code attribute. The returned
// pointer is valid until the next AddMethod.
func (cf *ClassFile) AddMethod(flags uint16, name, descriptor string) (*MethodInfo, error) {
	if _, err := ParseMethodDescriptor(descriptor); err != nil {
		return nil, fmt.Errorf("adding method %s: %w", name, err)
	}
	n, d, err := cf.memberIndexes(name, descriptor)
	if err != nil {
		return nil, fmt.Errorf("adding method %s: %w", name, err)
	}
	cf.Methods = append(cf.Methods, MethodInfo{AccessFlags: flags, NameIndex: n, DescriptorIndex: d})
	return &cf.Methods[len(cf.Methods)-1], nil
}

func (cf *ClassFile) memberIndexes(name, descriptor string) (uint16, uint16, error) {
	n, err := cf.ConstantPool.Utf8(name)
	if err != nil {
		return 0, 0, err
	}
	d, err := cf.ConstantPool.Utf8(descriptor)
	if err != nil {
		return 0, 0, err
	}
	return n, d, nil
}

// AddAttribute names a and appends it to list.
func (cf *ClassFile) AddAttribute(list *[]Attribute, a Attribute) error {
	if err := cf.NameAttribute(a); err != nil {
		return err
	}
	*list = append(*list, a)
	return nil
}

// NameAttribute points a's NameIndex at its name in the pool, along with
// the names of any attributes nested inside it.
func (cf *ClassFile) NameAttribute(a Attribute) error {
	idx, err := cf.ConstantPool.Utf8(a.Name())
	if err != nil {
		return err
	}
	a.Header().NameIndex = idx
	var nested []Attribute
	switch a := a.(type) {
	case *CodeAttribute:
		nested = a.Attributes
	case *RecordAttribute:
		for _, c := range a.Components {
			nested = append(nested, c.Attributes...)
		}
	}
	for _, n := range nested {
		if err := cf.NameAttribute(n); err != nil {
			return err
		}
	}
	return nil
}
