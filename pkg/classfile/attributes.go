package classfile

import "github.com/daimatz/jdex/pkg/bytecode"

// Attribute names
const (
	AttrCode                                 = "Code"
	AttrConstantValue                        = "ConstantValue"
	AttrExceptions                           = "Exceptions"
	AttrSourceFile                           = "SourceFile"
	AttrSignature                            = "Signature"
	AttrSourceDebugExtension                 = "SourceDebugExtension"
	AttrLineNumberTable                      = "LineNumberTable"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrStackMapTable                        = "StackMapTable"
	AttrInnerClasses                         = "InnerClasses"
	AttrEnclosingMethod                      = "EnclosingMethod"
	AttrSynthetic                            = "Synthetic"
	AttrDeprecated                           = "Deprecated"
	AttrBootstrapMethods                     = "BootstrapMethods"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrAnnotationDefault                    = "AnnotationDefault"
	AttrMethodParameters                     = "MethodParameters"
	AttrNestHost                             = "NestHost"
	AttrNestMembers                          = "NestMembers"
	AttrPermittedSubclasses                  = "PermittedSubclasses"
	AttrRecord                               = "Record"
)

// Attribute is a class, member or code attribute. NameIndex in the header
// points at the attribute's name in the constant pool; it is assigned by
// the builder or the reader.
type Attribute interface {
	Name() string
	Header() *AttributeHeader
}

type AttributeHeader struct {
	NameIndex uint16
}

func (h *AttributeHeader) Header() *AttributeHeader { return h }

type CodeAttribute struct {
	AttributeHeader
	MaxStack       uint16
	MaxLocals      uint16
	Instructions   []bytecode.Instruction
	ExceptionTable []ExceptionHandler
	Attributes     []Attribute
}

// ExceptionHandler represents an entry in the exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 = catch all (finally)
}

// CodeLength returns the length of the code array as last committed.
func (c *CodeAttribute) CodeLength() int {
	if len(c.Instructions) == 0 {
		return 0
	}
	last := &c.Instructions[len(c.Instructions)-1]
	return last.Offset + last.Size(last.Offset, 0)
}

type ConstantValueAttribute struct {
	AttributeHeader
	ValueIndex uint16
}

type ExceptionsAttribute struct {
	AttributeHeader
	ExceptionIndexes []uint16
}

type SourceFileAttribute struct {
	AttributeHeader
	SourceFileIndex uint16
}

type SignatureAttribute struct {
	AttributeHeader
	SignatureIndex uint16
}

type SourceDebugExtensionAttribute struct {
	AttributeHeader
	Data []byte
}

type LineNumber struct {
	StartPC    uint16
	LineNumber uint16
}

type LineNumberTableAttribute struct {
	AttributeHeader
	Entries []LineNumber
}

// LocalVariable is an entry of LocalVariableTable, or of
// LocalVariableTypeTable when DescriptorIndex names a generic signature.
type LocalVariable struct {
	StartPC         uint16
	Length          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Index           uint16
}

type LocalVariableTableAttribute struct {
	AttributeHeader
	// Generic selects LocalVariableTypeTable.
	Generic bool
	Entries []LocalVariable
}

type StackMapTableAttribute struct {
	AttributeHeader
	Frames []Frame
}

type InnerClass struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags uint16
}

type InnerClassesAttribute struct {
	AttributeHeader
	Classes []InnerClass
}

type EnclosingMethodAttribute struct {
	AttributeHeader
	ClassIndex  uint16
	MethodIndex uint16
}

type SyntheticAttribute struct {
	AttributeHeader
}

type DeprecatedAttribute struct {
	AttributeHeader
}

// BootstrapMethod represents an entry in the BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef uint16
	Arguments []uint16
}

type BootstrapMethodsAttribute struct {
	AttributeHeader
	Methods []BootstrapMethod
}

type AnnotationsAttribute struct {
	AttributeHeader
	Visible     bool
	Annotations []Annotation
}

type ParameterAnnotationsAttribute struct {
	AttributeHeader
	Visible    bool
	Parameters [][]Annotation
}

type AnnotationDefaultAttribute struct {
	AttributeHeader
	Value ElementValue
}

type MethodParameter struct {
	NameIndex   uint16
	AccessFlags uint16
}

type MethodParametersAttribute struct {
	AttributeHeader
	Parameters []MethodParameter
}

type NestHostAttribute struct {
	AttributeHeader
	HostClassIndex uint16
}

type NestMembersAttribute struct {
	AttributeHeader
	Classes []uint16
}

type PermittedSubclassesAttribute struct {
	AttributeHeader
	Classes []uint16
}

type RecordComponent struct {
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

type RecordAttribute struct {
	AttributeHeader
	Components []RecordComponent
}

// UnknownAttribute keeps the payload of an attribute this package does not
// model so it can be written back unchanged.
type UnknownAttribute struct {
	AttributeHeader
	AttrName string
	Data     []byte
}

func (*CodeAttribute) Name() string                 { return AttrCode }
func (*ConstantValueAttribute) Name() string        { return AttrConstantValue }
func (*ExceptionsAttribute) Name() string           { return AttrExceptions }
func (*SourceFileAttribute) Name() string           { return AttrSourceFile }
func (*SignatureAttribute) Name() string            { return AttrSignature }
func (*SourceDebugExtensionAttribute) Name() string { return AttrSourceDebugExtension }
func (*LineNumberTableAttribute) Name() string      { return AttrLineNumberTable }
func (*StackMapTableAttribute) Name() string        { return AttrStackMapTable }
func (*InnerClassesAttribute) Name() string         { return AttrInnerClasses }
func (*EnclosingMethodAttribute) Name() string      { return AttrEnclosingMethod }
func (*SyntheticAttribute) Name() string            { return AttrSynthetic }
func (*DeprecatedAttribute) Name() string           { return AttrDeprecated }
func (*BootstrapMethodsAttribute) Name() string     { return AttrBootstrapMethods }
func (*AnnotationDefaultAttribute) Name() string    { return AttrAnnotationDefault }
func (*MethodParametersAttribute) Name() string     { return AttrMethodParameters }
func (*NestHostAttribute) Name() string             { return AttrNestHost }
func (*NestMembersAttribute) Name() string          { return AttrNestMembers }
func (*PermittedSubclassesAttribute) Name() string  { return AttrPermittedSubclasses }
func (*RecordAttribute) Name() string               { return AttrRecord }
func (a *UnknownAttribute) Name() string            { return a.AttrName }

func (a *LocalVariableTableAttribute) Name() string {
	if a.Generic {
		return AttrLocalVariableTypeTable
	}
	return AttrLocalVariableTable
}

func (a *AnnotationsAttribute) Name() string {
	if a.Visible {
		return AttrRuntimeVisibleAnnotations
	}
	return AttrRuntimeInvisibleAnnotations
}

func (a *ParameterAnnotationsAttribute) Name() string {
	if a.Visible {
		return AttrRuntimeVisibleParameterAnnotations
	}
	return AttrRuntimeInvisibleParameterAnnotations
}

// BootstrapMethods returns the class's bootstrap method table, or nil.
func (cf *ClassFile) BootstrapMethods() *BootstrapMethodsAttribute {
	for _, a := range cf.Attributes {
		if b, ok := a.(*BootstrapMethodsAttribute); ok {
			return b
		}
	}
	return nil
}
