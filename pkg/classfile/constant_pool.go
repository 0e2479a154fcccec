package classfile

import (
	"fmt"
	"math"

	"github.com/daimatz/jdex/internal/errors"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// Constant is a constant pool entry.
type Constant interface {
	Tag() uint8
}

type ConstantUtf8 struct {
	Value string
}

type ConstantInteger struct {
	Value int32
}

type ConstantFloat struct {
	Value float32
}

type ConstantLong struct {
	Value int64
}

type ConstantDouble struct {
	Value float64
}

type ConstantClass struct {
	NameIndex uint16
}

type ConstantString struct {
	StringIndex uint16
}

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

type ConstantMethodType struct {
	DescriptorIndex uint16
}

type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

type ConstantModule struct {
	NameIndex uint16
}

type ConstantPackage struct {
	NameIndex uint16
}

func (c *ConstantUtf8) Tag() uint8               { return TagUtf8 }
func (c *ConstantInteger) Tag() uint8            { return TagInteger }
func (c *ConstantFloat) Tag() uint8              { return TagFloat }
func (c *ConstantLong) Tag() uint8               { return TagLong }
func (c *ConstantDouble) Tag() uint8             { return TagDouble }
func (c *ConstantClass) Tag() uint8              { return TagClass }
func (c *ConstantString) Tag() uint8             { return TagString }
func (c *ConstantFieldref) Tag() uint8           { return TagFieldref }
func (c *ConstantMethodref) Tag() uint8          { return TagMethodref }
func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }
func (c *ConstantNameAndType) Tag() uint8        { return TagNameAndType }
func (c *ConstantMethodHandle) Tag() uint8       { return TagMethodHandle }
func (c *ConstantMethodType) Tag() uint8         { return TagMethodType }
func (c *ConstantDynamic) Tag() uint8            { return TagDynamic }
func (c *ConstantInvokeDynamic) Tag() uint8      { return TagInvokeDynamic }
func (c *ConstantModule) Tag() uint8             { return TagModule }
func (c *ConstantPackage) Tag() uint8            { return TagPackage }

// Method handle reference kinds
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// slots returns how many pool indices an entry occupies.
func slots(c Constant) int {
	switch c.(type) {
	case *ConstantLong, *ConstantDouble:
		return 2
	}
	return 1
}

type constKey struct {
	tag  uint8
	s    string
	a, b uint64
}

func keyOf(c Constant) constKey {
	switch c := c.(type) {
	case *ConstantUtf8:
		return constKey{tag: TagUtf8, s: c.Value}
	case *ConstantInteger:
		return constKey{tag: TagInteger, a: uint64(uint32(c.Value))}
	case *ConstantFloat:
		return constKey{tag: TagFloat, a: uint64(math.Float32bits(c.Value))}
	case *ConstantLong:
		return constKey{tag: TagLong, a: uint64(c.Value)}
	case *ConstantDouble:
		return constKey{tag: TagDouble, a: math.Float64bits(c.Value)}
	case *ConstantClass:
		return constKey{tag: TagClass, a: uint64(c.NameIndex)}
	case *ConstantString:
		return constKey{tag: TagString, a: uint64(c.StringIndex)}
	case *ConstantFieldref:
		return constKey{tag: TagFieldref, a: uint64(c.ClassIndex), b: uint64(c.NameAndTypeIndex)}
	case *ConstantMethodref:
		return constKey{tag: TagMethodref, a: uint64(c.ClassIndex), b: uint64(c.NameAndTypeIndex)}
	case *ConstantInterfaceMethodref:
		return constKey{tag: TagInterfaceMethodref, a: uint64(c.ClassIndex), b: uint64(c.NameAndTypeIndex)}
	case *ConstantNameAndType:
		return constKey{tag: TagNameAndType, a: uint64(c.NameIndex), b: uint64(c.DescriptorIndex)}
	case *ConstantMethodHandle:
		return constKey{tag: TagMethodHandle, a: uint64(c.ReferenceKind), b: uint64(c.ReferenceIndex)}
	case *ConstantMethodType:
		return constKey{tag: TagMethodType, a: uint64(c.DescriptorIndex)}
	case *ConstantDynamic:
		return constKey{tag: TagDynamic, a: uint64(c.BootstrapMethodAttrIndex), b: uint64(c.NameAndTypeIndex)}
	case *ConstantInvokeDynamic:
		return constKey{tag: TagInvokeDynamic, a: uint64(c.BootstrapMethodAttrIndex), b: uint64(c.NameAndTypeIndex)}
	case *ConstantModule:
		return constKey{tag: TagModule, a: uint64(c.NameIndex)}
	case *ConstantPackage:
		return constKey{tag: TagPackage, a: uint64(c.NameIndex)}
	}
	return constKey{tag: c.Tag()}
}

// ConstantPool is the 1-based constant pool of a class. Index 0 and the
// slot after each long or double hold nil.
type ConstantPool struct {
	entries []Constant
	lookup  map[constKey]uint16
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: []Constant{nil}, lookup: make(map[constKey]uint16)}
}

// Count is the constant_pool_count written to the class file.
func (p *ConstantPool) Count() int { return len(p.entries) }

// Get returns the entry at index.
func (p *ConstantPool) Get(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(p.entries) || p.entries[index] == nil {
		return nil, errors.WrapIndexOutOfRange("constant pool", int(index), len(p.entries))
	}
	return p.entries[index], nil
}

// Each calls fn for every entry in index order.
func (p *ConstantPool) Each(fn func(index uint16, c Constant)) {
	for i, c := range p.entries {
		if c != nil {
			fn(uint16(i), c)
		}
	}
}

// appendRaw adds c without deduplication, as read from a class file.
func (p *ConstantPool) appendRaw(c Constant) (uint16, error) {
	if len(p.entries)+slots(c) > math.MaxUint16 {
		return 0, fmt.Errorf("%w: constant pool exceeds 65535 entries", errors.ErrPoolFull)
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if slots(c) == 2 {
		p.entries = append(p.entries, nil)
	}
	if _, ok := p.lookup[keyOf(c)]; !ok {
		p.lookup[keyOf(c)] = idx
	}
	return idx, nil
}

// AddOrGet returns the index of an entry equal to c, appending c if there
// is none.
func (p *ConstantPool) AddOrGet(c Constant) (uint16, error) {
	if idx, ok := p.lookup[keyOf(c)]; ok {
		return idx, nil
	}
	return p.appendRaw(c)
}

// Retain drops every entry keep rejects, packing the survivors in their
// original order, and returns the old-to-new index map. References
// between entries are left for the caller to rewrite.
func (p *ConstantPool) Retain(keep func(index uint16) bool) map[uint16]uint16 {
	remap := make(map[uint16]uint16)
	kept := []Constant{nil}
	for i, c := range p.entries {
		if c == nil || !keep(uint16(i)) {
			continue
		}
		remap[uint16(i)] = uint16(len(kept))
		kept = append(kept, c)
		if slots(c) == 2 {
			kept = append(kept, nil)
		}
	}
	p.entries = kept
	p.Rehash()
	return remap
}

// Rehash rebuilds the deduplication index after entries were mutated in
// place. The lowest index wins among equal entries.
func (p *ConstantPool) Rehash() {
	p.lookup = make(map[constKey]uint16, len(p.entries))
	for i, c := range p.entries {
		if c == nil {
			continue
		}
		if _, ok := p.lookup[keyOf(c)]; !ok {
			p.lookup[keyOf(c)] = uint16(i)
		}
	}
}

func (p *ConstantPool) Utf8(s string) (uint16, error) {
	return p.AddOrGet(&ConstantUtf8{Value: s})
}

func (p *ConstantPool) Class(name string) (uint16, error) {
	n, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantClass{NameIndex: n})
}

func (p *ConstantPool) String(s string) (uint16, error) {
	n, err := p.Utf8(s)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantString{StringIndex: n})
}

func (p *ConstantPool) Integer(v int32) (uint16, error) {
	return p.AddOrGet(&ConstantInteger{Value: v})
}

func (p *ConstantPool) Float(v float32) (uint16, error) {
	return p.AddOrGet(&ConstantFloat{Value: v})
}

func (p *ConstantPool) Long(v int64) (uint16, error) {
	return p.AddOrGet(&ConstantLong{Value: v})
}

func (p *ConstantPool) Double(v float64) (uint16, error) {
	return p.AddOrGet(&ConstantDouble{Value: v})
}

func (p *ConstantPool) NameAndType(name, descriptor string) (uint16, error) {
	n, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.Utf8(descriptor)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantNameAndType{NameIndex: n, DescriptorIndex: d})
}

func (p *ConstantPool) classAndNAT(class, name, descriptor string) (uint16, uint16, error) {
	c, err := p.Class(class)
	if err != nil {
		return 0, 0, err
	}
	nat, err := p.NameAndType(name, descriptor)
	if err != nil {
		return 0, 0, err
	}
	return c, nat, nil
}

// Fieldref adds or gets the (class, name, type) field reference, creating
// the Class, NameAndType and Utf8 entries it needs.
func (p *ConstantPool) Fieldref(class, name, descriptor string) (uint16, error) {
	c, nat, err := p.classAndNAT(class, name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantFieldref{ClassIndex: c, NameAndTypeIndex: nat})
}

func (p *ConstantPool) Methodref(class, name, descriptor string) (uint16, error) {
	c, nat, err := p.classAndNAT(class, name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantMethodref{ClassIndex: c, NameAndTypeIndex: nat})
}

func (p *ConstantPool) InterfaceMethodref(class, name, descriptor string) (uint16, error) {
	c, nat, err := p.classAndNAT(class, name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantInterfaceMethodref{ClassIndex: c, NameAndTypeIndex: nat})
}

func (p *ConstantPool) MethodType(descriptor string) (uint16, error) {
	d, err := p.Utf8(descriptor)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantMethodType{DescriptorIndex: d})
}

func (p *ConstantPool) MethodHandle(kind uint8, reference uint16) (uint16, error) {
	return p.AddOrGet(&ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: reference})
}

func (p *ConstantPool) InvokeDynamic(bootstrap uint16, name, descriptor string) (uint16, error) {
	nat, err := p.NameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.AddOrGet(&ConstantInvokeDynamic{BootstrapMethodAttrIndex: bootstrap, NameAndTypeIndex: nat})
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func (p *ConstantPool) GetUtf8(index uint16) (string, error) {
	c, err := p.Get(index)
	if err != nil {
		return "", err
	}
	utf8, ok := c.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, c.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func (p *ConstantPool) GetClassName(index uint16) (string, error) {
	c, err := p.Get(index)
	if err != nil {
		return "", err
	}
	class, ok := c.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class (tag=%d)", index, c.Tag())
	}
	return p.GetUtf8(class.NameIndex)
}

// GetNameAndType returns the name and descriptor of a CONSTANT_NameAndType.
func (p *ConstantPool) GetNameAndType(index uint16) (string, string, error) {
	c, err := p.Get(index)
	if err != nil {
		return "", "", err
	}
	nat, ok := c.(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType (tag=%d)", index, c.Tag())
	}
	name, err := p.GetUtf8(nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	desc, err := p.GetUtf8(nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, desc, nil
}

// MemberRef holds a resolved field, method or interface method reference.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

// ResolveMemberref resolves a Fieldref, Methodref or InterfaceMethodref.
func (p *ConstantPool) ResolveMemberref(index uint16) (*MemberRef, error) {
	c, err := p.Get(index)
	if err != nil {
		return nil, err
	}
	var classIndex, natIndex uint16
	switch c := c.(type) {
	case *ConstantFieldref:
		classIndex, natIndex = c.ClassIndex, c.NameAndTypeIndex
	case *ConstantMethodref:
		classIndex, natIndex = c.ClassIndex, c.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = c.ClassIndex, c.NameAndTypeIndex
	default:
		return nil, fmt.Errorf("constant pool index %d is not a member reference (tag=%d)", index, c.Tag())
	}
	className, err := p.GetClassName(classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member class: %w", err)
	}
	name, desc, err := p.GetNameAndType(natIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, Name: name, Descriptor: desc}, nil
}

// ResolveInvokeDynamic returns the name and descriptor of an
// InvokeDynamic or Dynamic entry.
func (p *ConstantPool) ResolveInvokeDynamic(index uint16) (string, string, error) {
	c, err := p.Get(index)
	if err != nil {
		return "", "", err
	}
	switch c := c.(type) {
	case *ConstantInvokeDynamic:
		return p.GetNameAndType(c.NameAndTypeIndex)
	case *ConstantDynamic:
		return p.GetNameAndType(c.NameAndTypeIndex)
	}
	return "", "", fmt.Errorf("constant pool index %d is not InvokeDynamic (tag=%d)", index, c.Tag())
}
