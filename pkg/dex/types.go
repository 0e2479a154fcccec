// Package dex reads, edits and writes dex files. The model keeps every
// cross reference as an index into the ID tables of File, mirroring the
// on-disk layout; offsets are resolved into nested values on read and
// recomputed on write.
package dex

// NoIndex marks an absent index, such as the superclass of java.lang.Object.
const NoIndex uint32 = 0xFFFFFFFF

// Access flags used by the builder to place members.
const (
	AccPublic      = 0x0001
	AccPrivate     = 0x0002
	AccProtected   = 0x0004
	AccStatic      = 0x0008
	AccFinal       = 0x0010
	AccInterface   = 0x0200
	AccAbstract    = 0x0400
	AccNative      = 0x0100
	AccSynthetic   = 0x1000
	AccConstructor = 0x10000
)

// File is a parsed dex file.
type File struct {
	// Version is the three digit format version from the magic, e.g. "035".
	Version string

	Strings       []string
	Types         []uint32 // string index of each type descriptor
	Protos        []Proto
	Fields        []FieldID
	Methods       []MethodID
	Classes       []ClassDef
	CallSites     [][]EncodedValue
	MethodHandles []MethodHandle

	index *poolIndex
}

type Proto struct {
	Shorty     uint32 // string
	Return     uint32 // type
	Parameters []uint32
}

type FieldID struct {
	Class uint32 // type
	Type  uint32 // type
	Name  uint32 // string
}

type MethodID struct {
	Class uint32 // type
	Proto uint32
	Name  uint32 // string
}

// Method handle kinds.
const (
	HandleStaticPut = iota
	HandleStaticGet
	HandleInstancePut
	HandleInstanceGet
	HandleInvokeStatic
	HandleInvokeInstance
	HandleInvokeConstructor
	HandleInvokeDirect
	HandleInvokeInterface
)

// MethodHandle targets a field for the accessor kinds and a method
// otherwise.
type MethodHandle struct {
	Kind   uint16
	Target uint32
}

func (h *MethodHandle) IsField() bool { return h.Kind <= HandleInstanceGet }

type ClassDef struct {
	Class       uint32
	Access      uint32
	Superclass  uint32 // NoIndex for none
	Interfaces  []uint32
	SourceFile  uint32 // NoIndex for none
	Annotations *AnnotationsDirectory
	Data        *ClassData
}

// ClassData holds the members of a class. Static field initial values
// live on the fields themselves.
type ClassData struct {
	StaticFields   []EncodedField
	InstanceFields []EncodedField
	DirectMethods  []EncodedMethod
	VirtualMethods []EncodedMethod
}

type EncodedField struct {
	Field  uint32
	Access uint32
	// Value is the static initial value, nil when the field takes the
	// default for its type.
	Value *EncodedValue
}

type EncodedMethod struct {
	Method uint32
	Access uint32
	Code   *Code
}

// Code is a method body. Insns holds raw code units; pkg/dalvik decodes
// them.
type Code struct {
	Registers uint16
	Ins       uint16
	Outs      uint16
	Insns     []uint16
	Tries     []Try
	Debug     *DebugInfo
}

// Try covers code units [Start, Start+Count).
type Try struct {
	Start   uint32
	Count   uint16
	Handler Handler
}

type Handler struct {
	Catches     []Catch
	HasCatchAll bool
	CatchAll    uint32
}

type Catch struct {
	Type uint32
	Addr uint32
}

// Annotation visibilities.
const (
	VisibilityBuild   = 0x00
	VisibilityRuntime = 0x01
	VisibilitySystem  = 0x02
)

type AnnotationItem struct {
	Visibility uint8
	Annotation EncodedAnnotation
}

// AnnotationSet is nil when absent; an empty non-nil set is written.
type AnnotationSet []AnnotationItem

type AnnotationsDirectory struct {
	Class      AnnotationSet
	Fields     []FieldAnnotations
	Methods    []MethodAnnotations
	Parameters []ParameterAnnotations
}

type FieldAnnotations struct {
	Field uint32
	Set   AnnotationSet
}

type MethodAnnotations struct {
	Method uint32
	Set    AnnotationSet
}

// ParameterAnnotations has one set per parameter; a nil set is written as
// a zero offset.
type ParameterAnnotations struct {
	Method uint32
	Sets   []AnnotationSet
}

func (d *AnnotationsDirectory) empty() bool {
	return d.Class == nil && len(d.Fields) == 0 && len(d.Methods) == 0 && len(d.Parameters) == 0
}

// Methods returns the direct methods followed by the virtual ones.
func (cd *ClassData) Methods() []*EncodedMethod {
	out := make([]*EncodedMethod, 0, len(cd.DirectMethods)+len(cd.VirtualMethods))
	for i := range cd.DirectMethods {
		out = append(out, &cd.DirectMethods[i])
	}
	for i := range cd.VirtualMethods {
		out = append(out, &cd.VirtualMethods[i])
	}
	return out
}

// Fields returns the static fields followed by the instance ones.
func (cd *ClassData) Fields() []*EncodedField {
	out := make([]*EncodedField, 0, len(cd.StaticFields)+len(cd.InstanceFields))
	for i := range cd.StaticFields {
		out = append(out, &cd.StaticFields[i])
	}
	for i := range cd.InstanceFields {
		out = append(out, &cd.InstanceFields[i])
	}
	return out
}
