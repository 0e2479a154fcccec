package dex

import (
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/dalvik"
)

// RefKind names the ID table a reference points into.
type RefKind int

const (
	KindString RefKind = iota
	KindType
	KindProto
	KindField
	KindMethod
	KindCallSite
	KindMethodHandle
)

var refKindNames = [...]string{
	KindString:       "string",
	KindType:         "type",
	KindProto:        "proto",
	KindField:        "field",
	KindMethod:       "method",
	KindCallSite:     "call-site",
	KindMethodHandle: "method-handle",
}

func (k RefKind) String() string {
	if int(k) < len(refKindNames) {
		return refKindNames[k]
	}
	return "unknown"
}

// Ref is one reference site. Index points into the model so a walk can
// both collect and rewrite.
type Ref struct {
	Kind  RefKind
	Index *uint32
}

type refFunc func(Ref)

func (fn refFunc) ref(kind RefKind, idx *uint32) {
	if *idx != NoIndex {
		fn(Ref{Kind: kind, Index: idx})
	}
}

// PoolRefs calls fn for the references held by ID table entries: type
// descriptors, proto parts, member parts, method handle targets and call
// site arguments.
func (f *File) PoolRefs(fn func(Ref)) {
	r := refFunc(fn)
	for i := range f.Types {
		r.ref(KindString, &f.Types[i])
	}
	for i := range f.Protos {
		p := &f.Protos[i]
		r.ref(KindString, &p.Shorty)
		r.ref(KindType, &p.Return)
		for j := range p.Parameters {
			r.ref(KindType, &p.Parameters[j])
		}
	}
	for i := range f.Fields {
		id := &f.Fields[i]
		r.ref(KindType, &id.Class)
		r.ref(KindType, &id.Type)
		r.ref(KindString, &id.Name)
	}
	for i := range f.Methods {
		id := &f.Methods[i]
		r.ref(KindType, &id.Class)
		r.ref(KindProto, &id.Proto)
		r.ref(KindString, &id.Name)
	}
	for i := range f.MethodHandles {
		h := &f.MethodHandles[i]
		if h.IsField() {
			r.ref(KindField, &h.Target)
		} else {
			r.ref(KindMethod, &h.Target)
		}
	}
	for i := range f.CallSites {
		for j := range f.CallSites[i] {
			valueRefs(r, &f.CallSites[i][j])
		}
	}
}

// Refs calls fn for every reference held by class definitions, including
// the indices inside instructions. Instruction operands are decoded for
// the walk; a code body whose operands fn changed is re-encoded through
// Rebuild, so a string index crossing 0xFFFF switches const-string to
// its jumbo form.
func (f *File) Refs(fn func(Ref)) error {
	return f.classRefs(refFunc(fn), true)
}

func (f *File) classRefs(r refFunc, withCode bool) error {
	for ci := range f.Classes {
		c := &f.Classes[ci]
		r.ref(KindType, &c.Class)
		r.ref(KindType, &c.Superclass)
		for i := range c.Interfaces {
			r.ref(KindType, &c.Interfaces[i])
		}
		r.ref(KindString, &c.SourceFile)
		if c.Annotations != nil {
			directoryRefs(r, c.Annotations)
		}
		if c.Data == nil {
			continue
		}
		for _, ef := range c.Data.Fields() {
			r.ref(KindField, &ef.Field)
			if ef.Value != nil {
				valueRefs(r, ef.Value)
			}
		}
		for _, em := range c.Data.Methods() {
			r.ref(KindMethod, &em.Method)
			if em.Code == nil {
				continue
			}
			if err := codeRefs(r, em.Code, withCode); err != nil {
				return fmt.Errorf("class %d method %d: %w", ci, em.Method, err)
			}
		}
	}
	return nil
}

func codeRefs(r refFunc, c *Code, withCode bool) error {
	for i := range c.Tries {
		h := &c.Tries[i].Handler
		for j := range h.Catches {
			r.ref(KindType, &h.Catches[j].Type)
		}
	}
	if c.Debug != nil {
		d := c.Debug
		for i := range d.ParameterNames {
			r.ref(KindString, &d.ParameterNames[i])
		}
		for i := range d.Ops {
			op := &d.Ops[i]
			switch op.Op {
			case DbgStartLocal, DbgStartLocalExtended:
				r.ref(KindString, &op.Name)
				r.ref(KindType, &op.Type)
				if op.Op == DbgStartLocalExtended {
					r.ref(KindString, &op.Signature)
				}
			case DbgSetFile:
				r.ref(KindString, &op.Name)
			}
		}
	}
	if !withCode {
		return nil
	}

	code, err := dalvik.Decode(c.Insns)
	if err != nil {
		return err
	}
	changed := false
	for i := range code {
		in := &code[i]
		kind, ok := InstructionRefKind(in)
		if !ok {
			continue
		}
		old := in.Index
		r(Ref{Kind: kind, Index: &in.Index})
		changed = changed || in.Index != old
		if info := in.Info(); info.Format == dalvik.F45cc || info.Format == dalvik.F4rcc {
			oldProto := in.Proto
			r(Ref{Kind: KindProto, Index: &in.Proto})
			changed = changed || in.Proto != oldProto
		}
	}
	if !changed {
		return nil
	}
	return c.Rebuild(OriginalItems(code, len(c.Insns)))
}

// InstructionRefKind reports which ID table the index operand of in
// addresses.
func InstructionRefKind(in *dalvik.Instruction) (RefKind, bool) {
	info := in.Info()
	if in.Payload != nil || info == nil {
		return 0, false
	}
	switch info.Index {
	case dalvik.IndexString:
		return KindString, true
	case dalvik.IndexType:
		return KindType, true
	case dalvik.IndexField:
		return KindField, true
	case dalvik.IndexMethod:
		return KindMethod, true
	case dalvik.IndexCallSite:
		return KindCallSite, true
	case dalvik.IndexMethodHandle:
		return KindMethodHandle, true
	case dalvik.IndexProto:
		return KindProto, true
	}
	return 0, false
}

func directoryRefs(r refFunc, d *AnnotationsDirectory) {
	setRefs := func(s AnnotationSet) {
		for i := range s {
			annotationRefs(r, &s[i].Annotation)
		}
	}
	setRefs(d.Class)
	for i := range d.Fields {
		r.ref(KindField, &d.Fields[i].Field)
		setRefs(d.Fields[i].Set)
	}
	for i := range d.Methods {
		r.ref(KindMethod, &d.Methods[i].Method)
		setRefs(d.Methods[i].Set)
	}
	for i := range d.Parameters {
		r.ref(KindMethod, &d.Parameters[i].Method)
		for _, s := range d.Parameters[i].Sets {
			setRefs(s)
		}
	}
}

func annotationRefs(r refFunc, a *EncodedAnnotation) {
	r.ref(KindType, &a.Type)
	for i := range a.Elements {
		r.ref(KindString, &a.Elements[i].Name)
		valueRefs(r, &a.Elements[i].Value)
	}
}

func valueRefs(r refFunc, v *EncodedValue) {
	switch v.Type {
	case ValueString:
		r.ref(KindString, &v.Index)
	case ValueTypeRef:
		r.ref(KindType, &v.Index)
	case ValueField, ValueEnum:
		r.ref(KindField, &v.Index)
	case ValueMethod:
		r.ref(KindMethod, &v.Index)
	case ValueMethodType:
		r.ref(KindProto, &v.Index)
	case ValueMethodHandle:
		r.ref(KindMethodHandle, &v.Index)
	case ValueArray:
		for i := range v.Array {
			valueRefs(r, &v.Array[i])
		}
	case ValueAnnotation:
		if v.Annotation != nil {
			annotationRefs(r, v.Annotation)
		}
	}
}

// tableSize returns the size of the table kind addresses.
func (f *File) tableSize(kind RefKind) int {
	switch kind {
	case KindString:
		return len(f.Strings)
	case KindType:
		return len(f.Types)
	case KindProto:
		return len(f.Protos)
	case KindField:
		return len(f.Fields)
	case KindMethod:
		return len(f.Methods)
	case KindCallSite:
		return len(f.CallSites)
	case KindMethodHandle:
		return len(f.MethodHandles)
	}
	return 0
}

// Validate checks that every reference outside of instruction operands
// lands inside its table and that 16-bit tables fit.
func (f *File) Validate() error {
	for _, t := range []struct {
		what string
		n    int
	}{{"types", len(f.Types)}, {"protos", len(f.Protos)}, {"fields", len(f.Fields)}, {"methods", len(f.Methods)}} {
		if t.n > maxShortIndex {
			return fmt.Errorf("%w: %d %s", errors.ErrPoolFull, t.n, t.what)
		}
	}
	var bad error
	check := func(r Ref) {
		if bad == nil && int64(*r.Index) >= int64(f.tableSize(r.Kind)) {
			bad = errors.WrapIndexOutOfRange(r.Kind.String(), int(*r.Index), f.tableSize(r.Kind))
		}
	}
	f.PoolRefs(check)
	if bad != nil {
		return bad
	}
	if err := f.classRefs(check, false); err != nil {
		return err
	}
	return bad
}
