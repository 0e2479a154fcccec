package dex

import "fmt"

// DefaultVersion is the dex format version written for new files.
const DefaultVersion = "035"

// NewFile creates an empty dex file.
func NewFile() *File {
	return &File{Version: DefaultVersion}
}

// AddClass appends a class definition. An empty super leaves the
// superclass unset, which only java.lang.Object may do. The returned
// pointer is valid until the next AddClass.
func (f *File) AddClass(name, super string, access uint32) (*ClassDef, error) {
	idx, err := f.AddType(name)
	if err != nil {
		return nil, fmt.Errorf("adding class %s: %w", name, err)
	}
	if f.FindClass(name) != nil {
		return nil, fmt.Errorf("adding class %s: already defined", name)
	}
	c := ClassDef{Class: idx, Access: access, Superclass: NoIndex, SourceFile: NoIndex}
	if super != "" {
		if c.Superclass, err = f.AddType(super); err != nil {
			return nil, fmt.Errorf("adding class %s: %w", name, err)
		}
	}
	f.Classes = append(f.Classes, c)
	return &f.Classes[len(f.Classes)-1], nil
}

// AddInterface appends an implemented interface to c.
func (f *File) AddInterface(c *ClassDef, name string) error {
	idx, err := f.AddType(name)
	if err != nil {
		return err
	}
	c.Interfaces = append(c.Interfaces, idx)
	return nil
}

// AddEncodedField declares a field in c. Static fields go to the static
// list, and value, if not nil, becomes the static initial value.
func (f *File) AddEncodedField(c *ClassDef, access uint32, name, typ string, value *EncodedValue) (*EncodedField, error) {
	class, err := f.TypeName(c.Class)
	if err != nil {
		return nil, err
	}
	idx, err := f.AddField(class, name, typ)
	if err != nil {
		return nil, fmt.Errorf("adding field %s: %w", name, err)
	}
	if c.Data == nil {
		c.Data = &ClassData{}
	}
	ef := EncodedField{Field: idx, Access: access}
	if access&AccStatic != 0 {
		ef.Value = value
		c.Data.StaticFields = append(c.Data.StaticFields, ef)
		return &c.Data.StaticFields[len(c.Data.StaticFields)-1], nil
	}
	if value != nil {
		return nil, fmt.Errorf("adding field %s: instance fields have no initial value", name)
	}
	c.Data.InstanceFields = append(c.Data.InstanceFields, ef)
	return &c.Data.InstanceFields[len(c.Data.InstanceFields)-1], nil
}

// AddEncodedMethod declares a method in c. Static, private and constructor
// methods are direct; everything else is virtual.
func (f *File) AddEncodedMethod(c *ClassDef, access uint32, name, desc string, code *Code) (*EncodedMethod, error) {
	class, err := f.TypeName(c.Class)
	if err != nil {
		return nil, err
	}
	idx, err := f.AddMethod(class, name, desc)
	if err != nil {
		return nil, fmt.Errorf("adding method %s: %w", name, err)
	}
	if c.Data == nil {
		c.Data = &ClassData{}
	}
	em := EncodedMethod{Method: idx, Access: access, Code: code}
	if access&(AccStatic|AccPrivate|AccConstructor) != 0 {
		c.Data.DirectMethods = append(c.Data.DirectMethods, em)
		return &c.Data.DirectMethods[len(c.Data.DirectMethods)-1], nil
	}
	c.Data.VirtualMethods = append(c.Data.VirtualMethods, em)
	return &c.Data.VirtualMethods[len(c.Data.VirtualMethods)-1], nil
}
