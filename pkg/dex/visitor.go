package dex

import "github.com/daimatz/jdex/pkg/visit"

// AcceptClasses visits every class definition in file order.
func (f *File) AcceptClasses(v visit.Visitor[*ClassDef]) {
	for i := range f.Classes {
		v.Visit(&f.Classes[i])
	}
}

// Member is a field or method of a class. Exactly one of Field and Method
// is set.
type Member struct {
	Class  *ClassDef
	Ref    MemberRef
	Field  *EncodedField
	Method *EncodedMethod
}

func (m Member) Access() uint32 {
	if m.Field != nil {
		return m.Field.Access
	}
	return m.Method.Access
}

// MemberVisitor dispatches on the member kind. Unset handlers fall back to
// Any.
type MemberVisitor struct {
	Any    func(m Member)
	Field  func(m Member)
	Method func(m Member)
}

func (v *MemberVisitor) Visit(m Member) {
	h := v.Method
	if m.Field != nil {
		h = v.Field
	}
	if h == nil {
		h = v.Any
	}
	if h != nil {
		h(m)
	}
}

// AcceptMembers visits the fields and then the methods of every class.
// Members whose reference cannot be resolved are visited with an empty Ref.
func (f *File) AcceptMembers(v visit.Visitor[Member]) {
	for i := range f.Classes {
		c := &f.Classes[i]
		if c.Data == nil {
			continue
		}
		for _, ef := range c.Data.Fields() {
			ref, _ := f.FieldRef(ef.Field)
			v.Visit(Member{Class: c, Ref: ref, Field: ef})
		}
		for _, em := range c.Data.Methods() {
			ref, _ := f.MethodRef(em.Method)
			v.Visit(Member{Class: c, Ref: ref, Method: em})
		}
	}
}
