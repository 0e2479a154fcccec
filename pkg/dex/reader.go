package dex

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash/adler32"
	"io"
	"os"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
)

// A big-endian file carries reverseEndianTag; those are not supported.
const (
	headerSize       = 0x70
	endianTag        = 0x12345678
	reverseEndianTag = 0x78563412
)

// Options controls integrity checks on read.
type Options struct {
	VerifyChecksum  bool
	VerifySignature bool
}

// DefaultOptions verifies the Adler-32 checksum only. Signatures are off
// because many shipped files carry stale ones.
func DefaultOptions() Options {
	return Options{VerifyChecksum: true}
}

// ParseFile reads and parses the dex file at path.
func ParseFile(path string, opts Options) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data, opts)
}

// Parse reads a dex file from r.
func Parse(r io.Reader, opts Options) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading dex file: %w", err)
	}
	return ParseBytes(data, opts)
}

// IsDex reports whether data starts with a dex magic.
func IsDex(data []byte) bool {
	_, ok := parseMagic(data)
	return ok
}

func parseMagic(data []byte) (string, bool) {
	if len(data) < 8 || !bytes.Equal(data[:4], []byte("dex\n")) || data[7] != 0 {
		return "", false
	}
	for _, c := range data[4:7] {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return string(data[4:7]), true
}

// Checksum computes the Adler-32 header checksum of a complete file.
func Checksum(data []byte) uint32 { return adler32.Checksum(data[12:]) }

// Signature computes the SHA-1 header signature of a complete file.
func Signature(data []byte) [20]byte { return sha1.Sum(data[32:]) }

type section struct {
	size, off uint32
}

type header struct {
	fileSize   uint32
	mapOff     uint32
	strings    section
	types      section
	protos     section
	fields     section
	methods    section
	classDefs  section
	data       section
	checksum   uint32
	signature  [20]byte
	headerSize uint32
}

// ParseBytes decodes a complete dex file.
func ParseBytes(data []byte, opts Options) (*File, error) {
	version, ok := parseMagic(data)
	if !ok {
		n := min(len(data), 8)
		return nil, fmt.Errorf("%w: %q (expected dex\\n03x\\0)", errors.ErrBadMagic, data[:n])
	}
	if len(data) < headerSize {
		return nil, errors.WrapFormat("dex file of %d bytes is shorter than its header", len(data))
	}
	in := &input{r: byteio.NewReader(data, binary.LittleEndian)}
	var h header
	in.seek(8)
	h.checksum = in.u4()
	copy(h.signature[:], in.bytes(20))
	h.fileSize = in.u4()
	h.headerSize = in.u4()
	tag := in.u4()
	in.u4() // link_size
	in.u4() // link_off
	h.mapOff = in.u4()
	for _, s := range []*section{&h.strings, &h.types, &h.protos, &h.fields, &h.methods, &h.classDefs, &h.data} {
		s.size = in.u4()
		s.off = in.u4()
	}
	if in.err != nil {
		return nil, fmt.Errorf("reading header: %w", in.err)
	}
	switch tag {
	case endianTag:
	case reverseEndianTag:
		return nil, fmt.Errorf("%w: big-endian dex file", errors.ErrUnsupportedFormat)
	default:
		return nil, errors.WrapFormat("endian tag 0x%08x", tag)
	}
	if h.headerSize != headerSize {
		return nil, errors.WrapFormat("header size 0x%x", h.headerSize)
	}
	if h.fileSize < headerSize {
		return nil, errors.WrapFormat("header file size %d is smaller than the header", h.fileSize)
	}
	if int64(h.fileSize) > int64(len(data)) {
		return nil, errors.WrapFormat("header file size %d exceeds %d bytes of input", h.fileSize, len(data))
	}
	data = data[:h.fileSize]
	if opts.VerifyChecksum {
		if got := Checksum(data); got != h.checksum {
			return nil, errors.WrapChecksum(h.checksum, got)
		}
	}
	if opts.VerifySignature {
		if got := Signature(data); got != h.signature {
			return nil, fmt.Errorf("%w: header %x, computed %x", errors.ErrSignature, h.signature, got)
		}
	}

	p := &parser{in: &input{r: byteio.NewReader(data, binary.LittleEndian)}, f: &File{Version: version}}
	steps := []struct {
		what string
		fn   func(*header) error
	}{
		{"string ids", p.strings},
		{"type ids", p.types},
		{"proto ids", p.protos},
		{"field ids", p.fieldIDs},
		{"method ids", p.methodIDs},
		{"map list", p.mapList},
		{"class defs", p.classDefs},
	}
	for _, s := range steps {
		if err := s.fn(&h); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", s.what, err)
		}
	}
	return p.f, nil
}

// input is a byteio.Reader with a sticky error.
type input struct {
	r   *byteio.Reader
	err error
}

func (in *input) seek(off uint32) {
	if in.err == nil {
		in.err = in.r.Seek(int(off))
	}
}

func (in *input) u1() uint8 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.U8()
	in.err = err
	return v
}

func (in *input) u2() uint16 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.U16()
	in.err = err
	return v
}

func (in *input) u4() uint32 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.U32()
	in.err = err
	return v
}

func (in *input) bytes(n int) []byte {
	if in.err != nil {
		return nil
	}
	b, err := in.r.Bytes(n)
	in.err = err
	return b
}

func (in *input) uleb() uint32 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.Uleb128()
	in.err = err
	return v
}

func (in *input) ulebp1() uint32 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.Uleb128p1()
	in.err = err
	return uint32(v)
}

func (in *input) sleb() int32 {
	if in.err != nil {
		return 0
	}
	v, err := in.r.Sleb128()
	in.err = err
	return v
}

type parser struct {
	in *input
	f  *File
}

// table checks that count entries of size bytes fit at off.
func (p *parser) table(s section, size int) error {
	if s.size == 0 {
		return nil
	}
	end := int64(s.off) + int64(s.size)*int64(size)
	if s.off < headerSize || end > int64(p.in.r.Len()) {
		return errors.WrapFormat("table of %d entries at 0x%x overruns the file", s.size, s.off)
	}
	p.in.seek(s.off)
	return p.in.err
}

func (p *parser) strings(h *header) error {
	if err := p.table(h.strings, 4); err != nil {
		return err
	}
	offs := make([]uint32, h.strings.size)
	for i := range offs {
		offs[i] = p.in.u4()
	}
	p.f.Strings = make([]string, len(offs))
	for i, off := range offs {
		p.in.seek(off)
		n := p.in.uleb()
		if p.in.err != nil {
			return fmt.Errorf("string %d: %w", i, p.in.err)
		}
		s, err := p.in.r.CString()
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		if got := byteio.UTF16Len(s); got != int(n) {
			return errors.WrapFormat("string %d has %d UTF-16 units, header says %d", i, got, n)
		}
		p.f.Strings[i] = s
	}
	return nil
}

func (p *parser) checkIndex(what string, idx uint32, size int) error {
	if int64(idx) >= int64(size) {
		return errors.WrapIndexOutOfRange(what, int(idx), size)
	}
	return nil
}

func (p *parser) types(h *header) error {
	if err := p.table(h.types, 4); err != nil {
		return err
	}
	p.f.Types = make([]uint32, h.types.size)
	for i := range p.f.Types {
		p.f.Types[i] = p.in.u4()
		if err := p.checkIndex("type descriptor", p.f.Types[i], len(p.f.Strings)); err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		}
	}
	return p.in.err
}

func (p *parser) typeList(off uint32) ([]uint32, error) {
	if off == 0 {
		return nil, nil
	}
	pos := p.in.r.Pos()
	defer p.in.r.Seek(pos)
	p.in.seek(off)
	n := p.in.u4()
	if p.in.err != nil {
		return nil, p.in.err
	}
	if int64(n)*2 > int64(p.in.r.Remaining()) {
		return nil, errors.WrapFormat("type list of %d entries at 0x%x overruns the file", n, off)
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(p.in.u2())
		if err := p.checkIndex("type", out[i], len(p.f.Types)); err != nil {
			return nil, err
		}
	}
	return out, p.in.err
}

func (p *parser) protos(h *header) error {
	if err := p.table(h.protos, 12); err != nil {
		return err
	}
	p.f.Protos = make([]Proto, h.protos.size)
	for i := range p.f.Protos {
		pr := &p.f.Protos[i]
		pr.Shorty = p.in.u4()
		pr.Return = p.in.u4()
		off := p.in.u4()
		if p.in.err != nil {
			return p.in.err
		}
		var err error
		if pr.Parameters, err = p.typeList(off); err != nil {
			return fmt.Errorf("proto %d parameters: %w", i, err)
		}
		if err := p.checkIndex("shorty", pr.Shorty, len(p.f.Strings)); err != nil {
			return fmt.Errorf("proto %d: %w", i, err)
		}
		if err := p.checkIndex("return type", pr.Return, len(p.f.Types)); err != nil {
			return fmt.Errorf("proto %d: %w", i, err)
		}
	}
	return nil
}

func (p *parser) fieldIDs(h *header) error {
	if err := p.table(h.fields, 8); err != nil {
		return err
	}
	p.f.Fields = make([]FieldID, h.fields.size)
	for i := range p.f.Fields {
		fi := &p.f.Fields[i]
		fi.Class = uint32(p.in.u2())
		fi.Type = uint32(p.in.u2())
		fi.Name = p.in.u4()
		for _, c := range []struct {
			what string
			idx  uint32
			n    int
		}{{"field class", fi.Class, len(p.f.Types)}, {"field type", fi.Type, len(p.f.Types)}, {"field name", fi.Name, len(p.f.Strings)}} {
			if err := p.checkIndex(c.what, c.idx, c.n); err != nil {
				return fmt.Errorf("field %d: %w", i, err)
			}
		}
	}
	return p.in.err
}

func (p *parser) methodIDs(h *header) error {
	if err := p.table(h.methods, 8); err != nil {
		return err
	}
	p.f.Methods = make([]MethodID, h.methods.size)
	for i := range p.f.Methods {
		m := &p.f.Methods[i]
		m.Class = uint32(p.in.u2())
		m.Proto = uint32(p.in.u2())
		m.Name = p.in.u4()
		for _, c := range []struct {
			what string
			idx  uint32
			n    int
		}{{"method class", m.Class, len(p.f.Types)}, {"method proto", m.Proto, len(p.f.Protos)}, {"method name", m.Name, len(p.f.Strings)}} {
			if err := p.checkIndex(c.what, c.idx, c.n); err != nil {
				return fmt.Errorf("method %d: %w", i, err)
			}
		}
	}
	return p.in.err
}

// Map item types.
const (
	mapHeader               = 0x0000
	mapStringID             = 0x0001
	mapTypeID               = 0x0002
	mapProtoID              = 0x0003
	mapFieldID              = 0x0004
	mapMethodID             = 0x0005
	mapClassDef             = 0x0006
	mapCallSiteID           = 0x0007
	mapMethodHandle         = 0x0008
	mapMapList              = 0x1000
	mapTypeList             = 0x1001
	mapAnnotationSetRefList = 0x1002
	mapAnnotationSet        = 0x1003
	mapClassData            = 0x2000
	mapCode                 = 0x2001
	mapStringData           = 0x2002
	mapDebugInfo            = 0x2003
	mapAnnotation           = 0x2004
	mapEncodedArray         = 0x2005
	mapAnnotationsDirectory = 0x2006
)

// mapList reads the call site and method handle tables, which the header
// does not locate.
func (p *parser) mapList(h *header) error {
	if h.mapOff == 0 {
		return nil
	}
	p.in.seek(h.mapOff)
	n := p.in.u4()
	if p.in.err != nil {
		return p.in.err
	}
	if int64(n)*12 > int64(p.in.r.Remaining()) {
		return errors.WrapFormat("map list of %d entries overruns the file", n)
	}
	var callSites, handles section
	for i := uint32(0); i < n; i++ {
		typ := p.in.u2()
		p.in.u2()
		s := section{size: p.in.u4(), off: p.in.u4()}
		switch typ {
		case mapCallSiteID:
			callSites = s
		case mapMethodHandle:
			handles = s
		}
	}
	if p.in.err != nil {
		return p.in.err
	}

	if err := p.table(handles, 8); err != nil {
		return fmt.Errorf("method handles: %w", err)
	}
	if handles.size > 0 {
		p.f.MethodHandles = make([]MethodHandle, handles.size)
	}
	for i := range p.f.MethodHandles {
		mh := &p.f.MethodHandles[i]
		mh.Kind = p.in.u2()
		p.in.u2()
		mh.Target = uint32(p.in.u2())
		p.in.u2()
		if mh.Kind > HandleInvokeInterface {
			return errors.WrapUnknownTag("method handle kind", int(mh.Kind), p.in.r.Pos()-8)
		}
	}

	if err := p.table(callSites, 4); err != nil {
		return fmt.Errorf("call sites: %w", err)
	}
	offs := make([]uint32, callSites.size)
	for i := range offs {
		offs[i] = p.in.u4()
	}
	if len(offs) > 0 {
		p.f.CallSites = make([][]EncodedValue, len(offs))
	}
	for i, off := range offs {
		p.in.seek(off)
		arr, err := readArray(p.in, 0)
		if err != nil {
			return fmt.Errorf("call site %d: %w", i, err)
		}
		p.f.CallSites[i] = arr
	}
	return p.in.err
}

func (p *parser) classDefs(h *header) error {
	if err := p.table(h.classDefs, 32); err != nil {
		return err
	}
	p.f.Classes = make([]ClassDef, h.classDefs.size)
	for i := range p.f.Classes {
		p.in.seek(h.classDefs.off + uint32(i)*32)
		c := &p.f.Classes[i]
		c.Class = p.in.u4()
		c.Access = p.in.u4()
		c.Superclass = p.in.u4()
		ifaces := p.in.u4()
		c.SourceFile = p.in.u4()
		annOff := p.in.u4()
		dataOff := p.in.u4()
		valuesOff := p.in.u4()
		if p.in.err != nil {
			return fmt.Errorf("class %d: %w", i, p.in.err)
		}
		if err := p.checkIndex("class type", c.Class, len(p.f.Types)); err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
		var err error
		if c.Interfaces, err = p.typeList(ifaces); err != nil {
			return fmt.Errorf("class %d interfaces: %w", i, err)
		}
		if dataOff != 0 {
			if c.Data, err = p.classData(dataOff); err != nil {
				return fmt.Errorf("class %d data: %w", i, err)
			}
		}
		if valuesOff != 0 {
			if err := p.staticValues(c, valuesOff); err != nil {
				return fmt.Errorf("class %d static values: %w", i, err)
			}
		}
		if annOff != 0 {
			if c.Annotations, err = p.annotationsDirectory(annOff); err != nil {
				return fmt.Errorf("class %d annotations: %w", i, err)
			}
		}
	}
	return nil
}

func (p *parser) classData(off uint32) (*ClassData, error) {
	p.in.seek(off)
	var counts [4]uint32
	for i := range counts {
		counts[i] = p.in.uleb()
	}
	if p.in.err != nil {
		return nil, p.in.err
	}
	for _, n := range counts {
		if int(n) > p.in.r.Remaining() {
			return nil, errors.WrapFormat("class data member count %d overruns the file", n)
		}
	}
	cd := &ClassData{}
	fields := func(n uint32) []EncodedField {
		out := make([]EncodedField, n)
		idx := uint32(0)
		for i := range out {
			idx += p.in.uleb()
			out[i] = EncodedField{Field: idx, Access: p.in.uleb()}
		}
		return out
	}
	type pending struct {
		m   *EncodedMethod
		off uint32
	}
	var codes []pending
	methods := func(n uint32) []EncodedMethod {
		out := make([]EncodedMethod, n)
		idx := uint32(0)
		for i := range out {
			idx += p.in.uleb()
			out[i] = EncodedMethod{Method: idx, Access: p.in.uleb()}
			if codeOff := p.in.uleb(); codeOff != 0 {
				codes = append(codes, pending{&out[i], codeOff})
			}
		}
		return out
	}
	cd.StaticFields = fields(counts[0])
	cd.InstanceFields = fields(counts[1])
	cd.DirectMethods = methods(counts[2])
	cd.VirtualMethods = methods(counts[3])
	if p.in.err != nil {
		return nil, p.in.err
	}
	for _, f := range cd.Fields() {
		if err := p.checkIndex("field", f.Field, len(p.f.Fields)); err != nil {
			return nil, err
		}
	}
	for _, m := range cd.Methods() {
		if err := p.checkIndex("method", m.Method, len(p.f.Methods)); err != nil {
			return nil, err
		}
	}
	for _, c := range codes {
		code, err := p.code(c.off)
		if err != nil {
			return nil, fmt.Errorf("method %d code: %w", c.m.Method, err)
		}
		c.m.Code = code
	}
	return cd, nil
}

func (p *parser) staticValues(c *ClassDef, off uint32) error {
	p.in.seek(off)
	values, err := readArray(p.in, 0)
	if err != nil {
		return err
	}
	if c.Data == nil || len(values) > len(c.Data.StaticFields) {
		return errors.WrapFormat("%d static values for fewer static fields", len(values))
	}
	for i := range values {
		c.Data.StaticFields[i].Value = &values[i]
	}
	return nil
}

func (p *parser) code(off uint32) (*Code, error) {
	in := p.in
	in.seek(off)
	c := &Code{Registers: in.u2(), Ins: in.u2(), Outs: in.u2()}
	tries := in.u2()
	debugOff := in.u4()
	n := in.u4()
	if in.err != nil {
		return nil, in.err
	}
	if int64(n)*2 > int64(in.r.Remaining()) {
		return nil, errors.WrapFormat("code of %d units overruns the file", n)
	}
	c.Insns = make([]uint16, n)
	for i := range c.Insns {
		c.Insns[i] = in.u2()
	}
	if tries > 0 {
		if n%2 == 1 {
			in.u2()
		}
		type raw struct {
			start   uint32
			count   uint16
			handler uint16
		}
		raws := make([]raw, tries)
		for i := range raws {
			raws[i] = raw{in.u4(), in.u2(), in.u2()}
		}
		listOff := in.r.Pos()
		c.Tries = make([]Try, tries)
		for i, r := range raws {
			in.seek(uint32(listOff) + uint32(r.handler))
			h, err := p.handler()
			if err != nil {
				return nil, fmt.Errorf("try %d handler: %w", i, err)
			}
			c.Tries[i] = Try{Start: r.start, Count: r.count, Handler: h}
		}
	}
	if in.err != nil {
		return nil, in.err
	}
	if debugOff != 0 {
		in.seek(debugOff)
		d, err := readDebugInfo(in)
		if err != nil {
			return nil, fmt.Errorf("debug info: %w", err)
		}
		c.Debug = d
	}
	return c, nil
}

func (p *parser) handler() (Handler, error) {
	size := p.in.sleb()
	if p.in.err != nil {
		return Handler{}, p.in.err
	}
	n := size
	if n < 0 {
		n = -n
	}
	if int(n) > p.in.r.Remaining() {
		return Handler{}, errors.WrapFormat("handler with %d catches overruns the file", n)
	}
	h := Handler{Catches: make([]Catch, n)}
	for i := range h.Catches {
		h.Catches[i] = Catch{Type: p.in.uleb(), Addr: p.in.uleb()}
	}
	if size <= 0 {
		h.HasCatchAll = true
		h.CatchAll = p.in.uleb()
	}
	return h, p.in.err
}

func (p *parser) annotationSet(off uint32) (AnnotationSet, error) {
	p.in.seek(off)
	n := p.in.u4()
	if p.in.err != nil {
		return nil, p.in.err
	}
	if int64(n)*4 > int64(p.in.r.Remaining()) {
		return nil, errors.WrapFormat("annotation set of %d entries overruns the file", n)
	}
	offs := make([]uint32, n)
	for i := range offs {
		offs[i] = p.in.u4()
	}
	set := make(AnnotationSet, n)
	for i, o := range offs {
		p.in.seek(o)
		set[i].Visibility = p.in.u1()
		if p.in.err != nil {
			return nil, p.in.err
		}
		a, err := readAnnotation(p.in, 0)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		set[i].Annotation = a
	}
	return set, nil
}

func (p *parser) annotationsDirectory(off uint32) (*AnnotationsDirectory, error) {
	in := p.in
	in.seek(off)
	classOff := in.u4()
	nf, nm, np := in.u4(), in.u4(), in.u4()
	if in.err != nil {
		return nil, in.err
	}
	if (int64(nf)+int64(nm)+int64(np))*8 > int64(in.r.Remaining()) {
		return nil, errors.WrapFormat("annotations directory overruns the file")
	}
	type entry struct{ idx, off uint32 }
	read := func(n uint32) []entry {
		out := make([]entry, n)
		for i := range out {
			out[i] = entry{in.u4(), in.u4()}
		}
		return out
	}
	fields, methods, params := read(nf), read(nm), read(np)
	if in.err != nil {
		return nil, in.err
	}

	d := &AnnotationsDirectory{}
	var err error
	if classOff != 0 {
		if d.Class, err = p.annotationSet(classOff); err != nil {
			return nil, fmt.Errorf("class annotations: %w", err)
		}
	}
	for _, e := range fields {
		set, err := p.annotationSet(e.off)
		if err != nil {
			return nil, fmt.Errorf("field %d annotations: %w", e.idx, err)
		}
		d.Fields = append(d.Fields, FieldAnnotations{Field: e.idx, Set: set})
	}
	for _, e := range methods {
		set, err := p.annotationSet(e.off)
		if err != nil {
			return nil, fmt.Errorf("method %d annotations: %w", e.idx, err)
		}
		d.Methods = append(d.Methods, MethodAnnotations{Method: e.idx, Set: set})
	}
	for _, e := range params {
		in.seek(e.off)
		n := in.u4()
		if in.err != nil {
			return nil, in.err
		}
		if int64(n)*4 > int64(in.r.Remaining()) {
			return nil, errors.WrapFormat("parameter annotation list of %d entries overruns the file", n)
		}
		offs := make([]uint32, n)
		for i := range offs {
			offs[i] = in.u4()
		}
		pa := ParameterAnnotations{Method: e.idx, Sets: make([]AnnotationSet, n)}
		for i, o := range offs {
			if o == 0 {
				continue
			}
			if pa.Sets[i], err = p.annotationSet(o); err != nil {
				return nil, fmt.Errorf("method %d parameter %d annotations: %w", e.idx, i, err)
			}
		}
		d.Parameters = append(d.Parameters, pa)
	}
	return d, nil
}
