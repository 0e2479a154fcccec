package classfile

// Annotation is a type index plus element-value pairs.
type Annotation struct {
	TypeIndex uint16
	Elements  []ElementPair
}

type ElementPair struct {
	NameIndex uint16
	Value     ElementValue
}

// ElementValue is one of ConstElement, EnumElement, ClassElement,
// AnnotationElement or ArrayElement.
type ElementValue interface {
	ElementTag() uint8
}

// ConstElement holds a primitive or String constant. ElemTag is one of
// B C D F I J S Z s.
type ConstElement struct {
	ElemTag    uint8
	ConstIndex uint16
}

type EnumElement struct {
	TypeNameIndex  uint16
	ConstNameIndex uint16
}

type ClassElement struct {
	ClassInfoIndex uint16
}

type AnnotationElement struct {
	Annotation Annotation
}

type ArrayElement struct {
	Values []ElementValue
}

func (e *ConstElement) ElementTag() uint8      { return e.ElemTag }
func (e *EnumElement) ElementTag() uint8       { return 'e' }
func (e *ClassElement) ElementTag() uint8      { return 'c' }
func (e *AnnotationElement) ElementTag() uint8 { return '@' }
func (e *ArrayElement) ElementTag() uint8      { return '[' }

func isConstElementTag(tag uint8) bool {
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		return true
	}
	return false
}
