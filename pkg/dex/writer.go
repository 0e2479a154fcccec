package dex

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
)

// Bytes serializes the file in a canonical layout: header, ID tables,
// then the data section ordered so that every item is written before the
// items that point at it, followed by the map list. Offsets, sizes, the
// signature and the checksum are recomputed.
func (f *File) Bytes() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	wr := &writer{
		f:         f,
		w:         byteio.NewWriter(binary.LittleEndian),
		typeLists: make(map[string]uint32),
		debug:     make(map[*Code]uint32),
		code:      make(map[*Code]uint32),
	}
	return wr.write()
}

// Write serializes the file to out.
func (f *File) Write(out io.Writer) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// WriteFile serializes the file to path.
func (f *File) WriteFile(path string) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

type mapItem struct {
	typ       uint16
	size, off uint32
}

type writer struct {
	f    *File
	w    *byteio.Writer
	maps []mapItem

	typeLists map[string]uint32
	debug     map[*Code]uint32
	code      map[*Code]uint32

	stringIDs, protoIDs, classDefs, callSiteIDs int
	classFix                                   []classFixups
}

type classFixups struct {
	interfaces, annotations, data, values uint32
}

func (wr *writer) pos() uint32 { return uint32(wr.w.Len()) }

// begin aligns and records the start of a map section.
func (wr *writer) begin(typ uint16, align int) uint32 {
	wr.w.Align(align)
	off := wr.pos()
	wr.maps = append(wr.maps, mapItem{typ: typ, off: off})
	return off
}

// end closes the section opened last, dropping it when it stayed empty.
func (wr *writer) end(count int) {
	last := &wr.maps[len(wr.maps)-1]
	if count == 0 {
		wr.maps = wr.maps[:len(wr.maps)-1]
		return
	}
	last.size = uint32(count)
}

func (wr *writer) patch(at int, v uint32) {
	// positions come from earlier writes, so the patch cannot fail
	_ = wr.w.PutU32At(at, v)
}

func (wr *writer) section(typ uint16) mapItem {
	for _, m := range wr.maps {
		if m.typ == typ {
			return m
		}
	}
	return mapItem{typ: typ}
}

func (wr *writer) write() ([]byte, error) {
	f, w := wr.f, wr.w
	w.Write(make([]byte, headerSize))
	wr.maps = append(wr.maps, mapItem{typ: mapHeader, size: 1})

	wr.begin(mapStringID, 4)
	wr.stringIDs = w.Len()
	w.Write(make([]byte, 4*len(f.Strings)))
	wr.end(len(f.Strings))

	wr.begin(mapTypeID, 4)
	for _, s := range f.Types {
		w.U32(s)
	}
	wr.end(len(f.Types))

	wr.begin(mapProtoID, 4)
	wr.protoIDs = w.Len()
	for _, p := range f.Protos {
		w.U32(p.Shorty)
		w.U32(p.Return)
		w.U32(0)
	}
	wr.end(len(f.Protos))

	wr.begin(mapFieldID, 4)
	for _, id := range f.Fields {
		w.U16(uint16(id.Class))
		w.U16(uint16(id.Type))
		w.U32(id.Name)
	}
	wr.end(len(f.Fields))

	wr.begin(mapMethodID, 4)
	for _, id := range f.Methods {
		w.U16(uint16(id.Class))
		w.U16(uint16(id.Proto))
		w.U32(id.Name)
	}
	wr.end(len(f.Methods))

	wr.begin(mapClassDef, 4)
	wr.classDefs = w.Len()
	for _, c := range f.Classes {
		w.U32(c.Class)
		w.U32(c.Access)
		w.U32(c.Superclass)
		w.U32(0)
		w.U32(c.SourceFile)
		w.U32(0)
		w.U32(0)
		w.U32(0)
	}
	wr.end(len(f.Classes))
	wr.classFix = make([]classFixups, len(f.Classes))

	wr.begin(mapCallSiteID, 4)
	wr.callSiteIDs = w.Len()
	w.Write(make([]byte, 4*len(f.CallSites)))
	wr.end(len(f.CallSites))

	wr.begin(mapMethodHandle, 4)
	for _, h := range f.MethodHandles {
		if h.Target > math.MaxUint16 {
			return nil, errors.WrapOperandRange("method handle target", int64(h.Target))
		}
		w.U16(h.Kind)
		w.U16(0)
		w.U16(uint16(h.Target))
		w.U16(0)
	}
	wr.end(len(f.MethodHandles))

	dataOff := wr.pos()
	steps := []struct {
		what string
		fn   func() error
	}{
		{"string data", wr.stringData},
		{"type lists", wr.typeListItems},
		{"debug info", wr.debugInfo},
		{"code", wr.codeItems},
		{"encoded arrays", wr.encodedArrays},
		{"annotations", wr.annotations},
		{"class data", wr.classData},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, fmt.Errorf("writing %s: %w", s.what, err)
		}
	}
	for i, fx := range wr.classFix {
		base := wr.classDefs + 32*i
		wr.patch(base+12, fx.interfaces)
		wr.patch(base+20, fx.annotations)
		wr.patch(base+24, fx.data)
		wr.patch(base+28, fx.values)
	}

	mapOff := wr.begin(mapMapList, 4)
	wr.end(1)
	slices.SortStableFunc(wr.maps, func(a, b mapItem) int { return cmp.Compare(a.off, b.off) })
	w.U32(uint32(len(wr.maps)))
	for _, m := range wr.maps {
		w.U16(m.typ)
		w.U16(0)
		w.U32(m.size)
		w.U32(m.off)
	}

	out := w.Bytes()
	version := f.Version
	if len(version) != 3 {
		version = "035"
	}
	copy(out, "dex\n"+version+"\x00")
	le := binary.LittleEndian
	le.PutUint32(out[32:], uint32(len(out)))
	le.PutUint32(out[36:], headerSize)
	le.PutUint32(out[40:], endianTag)
	le.PutUint32(out[52:], mapOff)
	for i, typ := range []uint16{mapStringID, mapTypeID, mapProtoID, mapFieldID, mapMethodID, mapClassDef} {
		s := wr.section(typ)
		le.PutUint32(out[56+8*i:], s.size)
		le.PutUint32(out[60+8*i:], s.off)
	}
	le.PutUint32(out[104:], uint32(len(out))-dataOff)
	le.PutUint32(out[108:], dataOff)
	sig := Signature(out)
	copy(out[12:32], sig[:])
	le.PutUint32(out[8:], Checksum(out))
	return out, nil
}

func (wr *writer) stringData() error {
	wr.begin(mapStringData, 1)
	for i, s := range wr.f.Strings {
		wr.patch(wr.stringIDs+4*i, wr.pos())
		wr.w.Uleb128(uint32(byteio.UTF16Len(s)))
		wr.w.ModifiedUTF8(s)
		wr.w.U8(0)
	}
	wr.end(len(wr.f.Strings))
	return nil
}

// typeList writes list once per distinct content and returns its offset,
// or 0 for an empty list.
func (wr *writer) typeList(list []uint32, count *int) (uint32, error) {
	if len(list) == 0 {
		return 0, nil
	}
	key := paramsKey(list)
	if off, ok := wr.typeLists[key]; ok {
		return off, nil
	}
	wr.w.Align(4)
	off := wr.pos()
	wr.w.U32(uint32(len(list)))
	for _, t := range list {
		if t > math.MaxUint16 {
			return 0, errors.WrapOperandRange("type list entry", int64(t))
		}
		wr.w.U16(uint16(t))
	}
	wr.typeLists[key] = off
	*count++
	return off, nil
}

func (wr *writer) typeListItems() error {
	wr.begin(mapTypeList, 4)
	n := 0
	for i, p := range wr.f.Protos {
		off, err := wr.typeList(p.Parameters, &n)
		if err != nil {
			return fmt.Errorf("proto %d: %w", i, err)
		}
		wr.patch(wr.protoIDs+12*i+8, off)
	}
	for i, c := range wr.f.Classes {
		off, err := wr.typeList(c.Interfaces, &n)
		if err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
		wr.classFix[i].interfaces = off
	}
	wr.end(n)
	return nil
}

// codes lists method bodies in class order.
func (wr *writer) codes() []*Code {
	var out []*Code
	for i := range wr.f.Classes {
		if d := wr.f.Classes[i].Data; d != nil {
			for _, m := range d.Methods() {
				if m.Code != nil {
					out = append(out, m.Code)
				}
			}
		}
	}
	return out
}

func (wr *writer) debugInfo() error {
	wr.begin(mapDebugInfo, 1)
	n := 0
	for _, c := range wr.codes() {
		if c.Debug == nil {
			continue
		}
		wr.debug[c] = wr.pos()
		writeDebugInfo(wr.w, c.Debug)
		n++
	}
	wr.end(n)
	return nil
}

func (wr *writer) codeItems() error {
	w := wr.w
	wr.begin(mapCode, 4)
	codes := wr.codes()
	for i, c := range codes {
		w.Align(4)
		wr.code[c] = wr.pos()
		if len(c.Tries) > math.MaxUint16 {
			return errors.WrapOperandRange("tries", int64(len(c.Tries)))
		}
		w.U16(c.Registers)
		w.U16(c.Ins)
		w.U16(c.Outs)
		w.U16(uint16(len(c.Tries)))
		w.U32(wr.debug[c])
		w.U32(uint32(len(c.Insns)))
		for _, u := range c.Insns {
			w.U16(u)
		}
		if len(c.Tries) == 0 {
			continue
		}
		if len(c.Insns)%2 == 1 {
			w.U16(0)
		}
		tries := w.Len()
		for _, t := range c.Tries {
			w.U32(t.Start)
			w.U16(t.Count)
			w.U16(0)
		}
		list := w.Len()
		seen := make(map[string]int)
		var handlers []*Handler
		for j := range c.Tries {
			key := fmt.Sprint(c.Tries[j].Handler)
			if _, ok := seen[key]; !ok {
				seen[key] = len(handlers)
				handlers = append(handlers, &c.Tries[j].Handler)
			}
		}
		w.Uleb128(uint32(len(handlers)))
		offs := make([]int, len(handlers))
		for j, h := range handlers {
			offs[j] = w.Len() - list
			size := int32(len(h.Catches))
			if h.HasCatchAll {
				size = -size
			}
			w.Sleb128(size)
			for _, ct := range h.Catches {
				w.Uleb128(ct.Type)
				w.Uleb128(ct.Addr)
			}
			if h.HasCatchAll {
				w.Uleb128(h.CatchAll)
			}
		}
		for j := range c.Tries {
			off := offs[seen[fmt.Sprint(c.Tries[j].Handler)]]
			if off > math.MaxUint16 {
				return fmt.Errorf("code item %d: %w", i, errors.WrapOperandRange("handler offset", int64(off)))
			}
			if err := w.PutU16At(tries+8*j+6, uint16(off)); err != nil {
				return err
			}
		}
	}
	wr.end(len(codes))
	return nil
}

func sortedFields(fs []EncodedField) []EncodedField {
	out := slices.Clone(fs)
	slices.SortStableFunc(out, func(a, b EncodedField) int { return cmp.Compare(a.Field, b.Field) })
	return out
}

func sortedMethods(ms []EncodedMethod) []EncodedMethod {
	out := slices.Clone(ms)
	slices.SortStableFunc(out, func(a, b EncodedMethod) int { return cmp.Compare(a.Method, b.Method) })
	return out
}

// staticValues returns the initial values of the static fields in written
// order, up to the last field that has one.
func (wr *writer) staticValues(c *ClassDef) ([]EncodedValue, error) {
	if c.Data == nil {
		return nil, nil
	}
	fields := sortedFields(c.Data.StaticFields)
	last := -1
	for i := range fields {
		if fields[i].Value != nil {
			last = i
		}
	}
	out := make([]EncodedValue, last+1)
	for i := range out {
		if v := fields[i].Value; v != nil {
			out[i] = *v
			continue
		}
		desc, err := wr.f.TypeName(wr.f.Fields[fields[i].Field].Type)
		if err != nil {
			return nil, err
		}
		out[i] = DefaultValue(desc)
	}
	return out, nil
}

func (wr *writer) encodedArrays() error {
	wr.begin(mapEncodedArray, 1)
	n := 0
	for i := range wr.f.Classes {
		values, err := wr.staticValues(&wr.f.Classes[i])
		if err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
		if len(values) == 0 {
			continue
		}
		wr.classFix[i].values = wr.pos()
		if err := writeArray(wr.w, values); err != nil {
			return fmt.Errorf("class %d static values: %w", i, err)
		}
		n++
	}
	for i, cs := range wr.f.CallSites {
		wr.patch(wr.callSiteIDs+4*i, wr.pos())
		if err := writeArray(wr.w, cs); err != nil {
			return fmt.Errorf("call site %d: %w", i, err)
		}
		n++
	}
	wr.end(n)
	return nil
}

// directorySets lists the sets of a directory in writing order. Field and
// method entries always get a set; absent parameter sets are skipped.
func directorySets(d *AnnotationsDirectory) []AnnotationSet {
	var out []AnnotationSet
	if d.Class != nil {
		out = append(out, d.Class)
	}
	for _, fa := range d.Fields {
		out = append(out, nonNil(fa.Set))
	}
	for _, ma := range d.Methods {
		out = append(out, nonNil(ma.Set))
	}
	for _, pa := range d.Parameters {
		for _, s := range pa.Sets {
			if s != nil {
				out = append(out, s)
			}
		}
	}
	return out
}

func nonNil(s AnnotationSet) AnnotationSet {
	if s == nil {
		return AnnotationSet{}
	}
	return s
}

func (wr *writer) annotations() error {
	w, classes := wr.w, wr.f.Classes
	sets := make([][]AnnotationSet, len(classes))
	for i := range classes {
		if d := classes[i].Annotations; d != nil && !d.empty() {
			sets[i] = directorySets(d)
		}
	}

	wr.begin(mapAnnotation, 1)
	n := 0
	items := make([][][]uint32, len(classes))
	for i := range classes {
		items[i] = make([][]uint32, len(sets[i]))
		for j, set := range sets[i] {
			for k := range set {
				items[i][j] = append(items[i][j], wr.pos())
				w.U8(set[k].Visibility)
				if err := writeAnnotation(w, &set[k].Annotation); err != nil {
					return fmt.Errorf("class %d: %w", i, err)
				}
				n++
			}
		}
	}
	wr.end(n)

	wr.begin(mapAnnotationSet, 4)
	n = 0
	setOffs := make([][]uint32, len(classes))
	for i := range classes {
		for j := range sets[i] {
			w.Align(4)
			setOffs[i] = append(setOffs[i], wr.pos())
			w.U32(uint32(len(items[i][j])))
			for _, off := range items[i][j] {
				w.U32(off)
			}
			n++
		}
	}
	wr.end(n)

	type entry struct{ idx, off uint32 }
	wr.begin(mapAnnotationSetRefList, 4)
	n = 0
	refLists := make([][]entry, len(classes))
	for i := range classes {
		d := classes[i].Annotations
		if sets[i] == nil {
			continue
		}
		next := len(d.Fields) + len(d.Methods)
		if d.Class != nil {
			next++
		}
		for _, pa := range d.Parameters {
			w.Align(4)
			refLists[i] = append(refLists[i], entry{pa.Method, wr.pos()})
			w.U32(uint32(len(pa.Sets)))
			for _, s := range pa.Sets {
				if s == nil {
					w.U32(0)
					continue
				}
				w.U32(setOffs[i][next])
				next++
			}
			n++
		}
	}
	wr.end(n)

	wr.begin(mapAnnotationsDirectory, 4)
	n = 0
	for i := range classes {
		d := classes[i].Annotations
		if sets[i] == nil {
			continue
		}
		next := 0
		var classOff uint32
		if d.Class != nil {
			classOff = setOffs[i][0]
			next++
		}
		fields := make([]entry, len(d.Fields))
		for j, fa := range d.Fields {
			fields[j] = entry{fa.Field, setOffs[i][next]}
			next++
		}
		methods := make([]entry, len(d.Methods))
		for j, ma := range d.Methods {
			methods[j] = entry{ma.Method, setOffs[i][next]}
			next++
		}
		params := refLists[i]
		for _, list := range [][]entry{fields, methods, params} {
			slices.SortStableFunc(list, func(a, b entry) int { return cmp.Compare(a.idx, b.idx) })
		}
		w.Align(4)
		wr.classFix[i].annotations = wr.pos()
		w.U32(classOff)
		w.U32(uint32(len(fields)))
		w.U32(uint32(len(methods)))
		w.U32(uint32(len(params)))
		for _, list := range [][]entry{fields, methods, params} {
			for _, e := range list {
				w.U32(e.idx)
				w.U32(e.off)
			}
		}
		n++
	}
	wr.end(n)
	return nil
}

func (wr *writer) classData() error {
	w := wr.w
	wr.begin(mapClassData, 1)
	n := 0
	for i := range wr.f.Classes {
		cd := wr.f.Classes[i].Data
		if cd == nil {
			continue
		}
		wr.classFix[i].data = wr.pos()
		sf, inf := sortedFields(cd.StaticFields), sortedFields(cd.InstanceFields)
		dm, vm := sortedMethods(cd.DirectMethods), sortedMethods(cd.VirtualMethods)
		w.Uleb128(uint32(len(sf)))
		w.Uleb128(uint32(len(inf)))
		w.Uleb128(uint32(len(dm)))
		w.Uleb128(uint32(len(vm)))
		for _, list := range [][]EncodedField{sf, inf} {
			prev := uint32(0)
			for _, ef := range list {
				w.Uleb128(ef.Field - prev)
				w.Uleb128(ef.Access)
				prev = ef.Field
			}
		}
		for _, list := range [][]EncodedMethod{dm, vm} {
			prev := uint32(0)
			for _, em := range list {
				w.Uleb128(em.Method - prev)
				w.Uleb128(em.Access)
				w.Uleb128(wr.code[em.Code])
				prev = em.Method
			}
		}
		n++
	}
	wr.end(n)
	return nil
}
