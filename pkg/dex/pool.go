package dex

import (
	"fmt"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/classfile"
)

// maxShortIndex bounds ID tables addressed by 16-bit fields.
const maxShortIndex = 1 << 16

type protoKey struct {
	ret    uint32
	params string
}

type poolIndex struct {
	strings map[string]uint32
	types   map[uint32]uint32
	protos  map[protoKey]uint32
	fields  map[FieldID]uint32
	methods map[MethodID]uint32
}

func paramsKey(params []uint32) string {
	var b strings.Builder
	for _, p := range params {
		fmt.Fprintf(&b, "%d,", p)
	}
	return b.String()
}

func (f *File) pool() *poolIndex {
	if f.index != nil {
		return f.index
	}
	ix := &poolIndex{
		strings: make(map[string]uint32, len(f.Strings)),
		types:   make(map[uint32]uint32, len(f.Types)),
		protos:  make(map[protoKey]uint32, len(f.Protos)),
		fields:  make(map[FieldID]uint32, len(f.Fields)),
		methods: make(map[MethodID]uint32, len(f.Methods)),
	}
	for i, s := range f.Strings {
		if _, ok := ix.strings[s]; !ok {
			ix.strings[s] = uint32(i)
		}
	}
	for i, s := range f.Types {
		if _, ok := ix.types[s]; !ok {
			ix.types[s] = uint32(i)
		}
	}
	for i, p := range f.Protos {
		k := protoKey{p.Return, paramsKey(p.Parameters)}
		if _, ok := ix.protos[k]; !ok {
			ix.protos[k] = uint32(i)
		}
	}
	for i, fi := range f.Fields {
		if _, ok := ix.fields[fi]; !ok {
			ix.fields[fi] = uint32(i)
		}
	}
	for i, m := range f.Methods {
		if _, ok := ix.methods[m]; !ok {
			ix.methods[m] = uint32(i)
		}
	}
	f.index = ix
	return ix
}

// Rehash drops the lookup index after the ID tables were edited directly.
func (f *File) Rehash() { f.index = nil }

// AddString returns the index of s, appending it if needed.
func (f *File) AddString(s string) uint32 {
	ix := f.pool()
	if i, ok := ix.strings[s]; ok {
		return i
	}
	i := uint32(len(f.Strings))
	f.Strings = append(f.Strings, s)
	ix.strings[s] = i
	return i
}

// AddType returns the index of the type with the given descriptor.
func (f *File) AddType(desc string) (uint32, error) {
	s := f.AddString(desc)
	ix := f.pool()
	if i, ok := ix.types[s]; ok {
		return i, nil
	}
	if len(f.Types) >= maxShortIndex {
		return 0, fmt.Errorf("%w: type %s", errors.ErrPoolFull, desc)
	}
	i := uint32(len(f.Types))
	f.Types = append(f.Types, s)
	ix.types[s] = i
	return i, nil
}

func shortyOf(desc string) byte {
	switch desc[0] {
	case 'L', '[':
		return 'L'
	}
	return desc[0]
}

// AddProto returns the index of the prototype ret(params...).
func (f *File) AddProto(ret string, params []string) (uint32, error) {
	r, err := f.AddType(ret)
	if err != nil {
		return 0, err
	}
	ps := make([]uint32, len(params))
	shorty := []byte{shortyOf(ret)}
	for i, p := range params {
		if ps[i], err = f.AddType(p); err != nil {
			return 0, err
		}
		shorty = append(shorty, shortyOf(p))
	}
	ix := f.pool()
	k := protoKey{r, paramsKey(ps)}
	if i, ok := ix.protos[k]; ok {
		return i, nil
	}
	if len(f.Protos) >= maxShortIndex {
		return 0, fmt.Errorf("%w: proto %s", errors.ErrPoolFull, shorty)
	}
	i := uint32(len(f.Protos))
	f.Protos = append(f.Protos, Proto{Shorty: f.AddString(string(shorty)), Return: r, Parameters: ps})
	ix.protos[k] = i
	return i, nil
}

// AddProtoDescriptor parses a JVM style method descriptor such as (IJ)V.
func (f *File) AddProtoDescriptor(desc string) (uint32, error) {
	md, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	return f.AddProto(md.Return, md.Params)
}

// AddField returns the index of the field class->name:typ.
func (f *File) AddField(class, name, typ string) (uint32, error) {
	c, err := f.AddType(class)
	if err != nil {
		return 0, err
	}
	t, err := f.AddType(typ)
	if err != nil {
		return 0, err
	}
	id := FieldID{Class: c, Type: t, Name: f.AddString(name)}
	ix := f.pool()
	if i, ok := ix.fields[id]; ok {
		return i, nil
	}
	if len(f.Fields) >= maxShortIndex {
		return 0, fmt.Errorf("%w: field %s.%s", errors.ErrPoolFull, class, name)
	}
	i := uint32(len(f.Fields))
	f.Fields = append(f.Fields, id)
	ix.fields[id] = i
	return i, nil
}

// AddMethod returns the index of the method class->name desc.
func (f *File) AddMethod(class, name, desc string) (uint32, error) {
	c, err := f.AddType(class)
	if err != nil {
		return 0, err
	}
	p, err := f.AddProtoDescriptor(desc)
	if err != nil {
		return 0, err
	}
	id := MethodID{Class: c, Proto: p, Name: f.AddString(name)}
	ix := f.pool()
	if i, ok := ix.methods[id]; ok {
		return i, nil
	}
	if len(f.Methods) >= maxShortIndex {
		return 0, fmt.Errorf("%w: method %s.%s", errors.ErrPoolFull, class, name)
	}
	i := uint32(len(f.Methods))
	f.Methods = append(f.Methods, id)
	ix.methods[id] = i
	return i, nil
}

func (f *File) String(i uint32) (string, error) {
	if int64(i) >= int64(len(f.Strings)) {
		return "", errors.WrapIndexOutOfRange("string", int(i), len(f.Strings))
	}
	return f.Strings[i], nil
}

// TypeName returns the descriptor of type i.
func (f *File) TypeName(i uint32) (string, error) {
	if int64(i) >= int64(len(f.Types)) {
		return "", errors.WrapIndexOutOfRange("type", int(i), len(f.Types))
	}
	return f.String(f.Types[i])
}

// ProtoDescriptor renders proto i as a method descriptor.
func (f *File) ProtoDescriptor(i uint32) (string, error) {
	if int64(i) >= int64(len(f.Protos)) {
		return "", errors.WrapIndexOutOfRange("proto", int(i), len(f.Protos))
	}
	p := &f.Protos[i]
	var b strings.Builder
	b.WriteByte('(')
	for _, t := range p.Parameters {
		s, err := f.TypeName(t)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteByte(')')
	r, err := f.TypeName(p.Return)
	if err != nil {
		return "", err
	}
	b.WriteString(r)
	return b.String(), nil
}

// MemberRef is a resolved field or method reference.
type MemberRef struct {
	Class      string
	Name       string
	Descriptor string
}

func (m MemberRef) String() string { return m.Class + "->" + m.Name + ":" + m.Descriptor }

func (f *File) FieldRef(i uint32) (MemberRef, error) {
	if int64(i) >= int64(len(f.Fields)) {
		return MemberRef{}, errors.WrapIndexOutOfRange("field", int(i), len(f.Fields))
	}
	id := &f.Fields[i]
	class, err := f.TypeName(id.Class)
	if err != nil {
		return MemberRef{}, err
	}
	name, err := f.String(id.Name)
	if err != nil {
		return MemberRef{}, err
	}
	typ, err := f.TypeName(id.Type)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{class, name, typ}, nil
}

func (f *File) MethodRef(i uint32) (MemberRef, error) {
	if int64(i) >= int64(len(f.Methods)) {
		return MemberRef{}, errors.WrapIndexOutOfRange("method", int(i), len(f.Methods))
	}
	id := &f.Methods[i]
	class, err := f.TypeName(id.Class)
	if err != nil {
		return MemberRef{}, err
	}
	name, err := f.String(id.Name)
	if err != nil {
		return MemberRef{}, err
	}
	desc, err := f.ProtoDescriptor(id.Proto)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{class, name, desc}, nil
}

// AddMethodHandle returns the index of the handle, appending it if needed.
func (f *File) AddMethodHandle(kind uint16, target uint32) uint32 {
	for i, h := range f.MethodHandles {
		if h.Kind == kind && h.Target == target {
			return uint32(i)
		}
	}
	f.MethodHandles = append(f.MethodHandles, MethodHandle{Kind: kind, Target: target})
	return uint32(len(f.MethodHandles) - 1)
}

// AddCallSite returns the index of a call site with these bootstrap
// arguments, appending it if needed.
func (f *File) AddCallSite(values []EncodedValue) uint32 {
	for i, cs := range f.CallSites {
		if valuesEqual(cs, values) {
			return uint32(i)
		}
	}
	f.CallSites = append(f.CallSites, values)
	return uint32(len(f.CallSites) - 1)
}

// ParamTypes returns the parameter descriptors of proto i.
func (f *File) ParamTypes(i uint32) ([]string, error) {
	if int64(i) >= int64(len(f.Protos)) {
		return nil, errors.WrapIndexOutOfRange("proto", int(i), len(f.Protos))
	}
	out := make([]string, len(f.Protos[i].Parameters))
	for j, t := range f.Protos[i].Parameters {
		s, err := f.TypeName(t)
		if err != nil {
			return nil, err
		}
		out[j] = s
	}
	return out, nil
}

// FindClass returns the class definition for a type descriptor.
func (f *File) FindClass(desc string) *ClassDef {
	for i := range f.Classes {
		if name, err := f.TypeName(f.Classes[i].Class); err == nil && name == desc {
			return &f.Classes[i]
		}
	}
	return nil
}
