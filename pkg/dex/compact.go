package dex

import (
	"cmp"
	"slices"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
)

// Compact drops ID table entries that nothing references, merges equal
// entries and sorts the tables into the canonical dex order. Every
// reference, including instruction operands, is rewritten. Call sites and
// method handles are always kept.
func (f *File) Compact() error {
	live, err := f.liveEntries()
	if err != nil {
		return err
	}

	remap := make(map[RefKind][]int64, 7)
	newString := f.order(KindString, live, func(a, b uint32) int {
		return slices.Compare(byteio.UTF16Units(f.Strings[a]), byteio.UTF16Units(f.Strings[b]))
	}, remap)
	str := func(i uint32) int64 { return newString[i] }
	newType := f.order(KindType, live, func(a, b uint32) int {
		return cmp.Compare(str(f.Types[a]), str(f.Types[b]))
	}, remap)
	typ := func(i uint32) int64 { return newType[i] }
	typeList := func(l []uint32) []int64 {
		out := make([]int64, len(l))
		for i, t := range l {
			out[i] = typ(t)
		}
		return out
	}
	newProto := f.order(KindProto, live, func(a, b uint32) int {
		pa, pb := &f.Protos[a], &f.Protos[b]
		if c := cmp.Compare(typ(pa.Return), typ(pb.Return)); c != 0 {
			return c
		}
		return slices.Compare(typeList(pa.Parameters), typeList(pb.Parameters))
	}, remap)
	f.order(KindField, live, func(a, b uint32) int {
		fa, fb := &f.Fields[a], &f.Fields[b]
		return cmp.Or(
			cmp.Compare(typ(fa.Class), typ(fb.Class)),
			cmp.Compare(str(fa.Name), str(fb.Name)),
			cmp.Compare(typ(fa.Type), typ(fb.Type)),
		)
	}, remap)
	f.order(KindMethod, live, func(a, b uint32) int {
		ma, mb := &f.Methods[a], &f.Methods[b]
		return cmp.Or(
			cmp.Compare(typ(ma.Class), typ(mb.Class)),
			cmp.Compare(str(ma.Name), str(mb.Name)),
			cmp.Compare(newProto[ma.Proto], newProto[mb.Proto]),
		)
	}, remap)
	f.order(KindCallSite, live, nil, remap)
	f.order(KindMethodHandle, live, nil, remap)

	var missing error
	check := func(r Ref) {
		m := remap[r.Kind]
		if missing == nil && (int64(*r.Index) >= int64(len(m)) || m[*r.Index] < 0) {
			missing = errors.WrapMissingMapping(r.Kind.String(), int(*r.Index))
		}
	}
	// dropped entries may point at other dropped entries; only live ones
	// are carried over
	for k, l := range live {
		for i, ok := range l {
			if ok {
				f.entryRefs(k, uint32(i), check)
			}
		}
	}
	if err := f.Refs(check); err != nil {
		return err
	}
	if missing != nil {
		return missing
	}

	f.Strings = gather(f.Strings, remap[KindString])
	f.Types = gather(f.Types, remap[KindType])
	f.Protos = gather(f.Protos, remap[KindProto])
	f.Fields = gather(f.Fields, remap[KindField])
	f.Methods = gather(f.Methods, remap[KindMethod])
	f.CallSites = gather(f.CallSites, remap[KindCallSite])
	f.MethodHandles = gather(f.MethodHandles, remap[KindMethodHandle])
	for i := range f.Protos {
		f.Protos[i].Parameters = slices.Clone(f.Protos[i].Parameters)
	}

	rewrite := func(r Ref) { *r.Index = uint32(remap[r.Kind][*r.Index]) }
	f.PoolRefs(rewrite)
	if err := f.Refs(rewrite); err != nil {
		return err
	}
	f.Rehash()
	return nil
}

// gather builds the new table from an old-to-new index mapping. Merged
// entries keep the first occurrence.
func gather[T any](old []T, m []int64) []T {
	n := int64(0)
	for _, v := range m {
		n = max(n, v+1)
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	done := make([]bool, n)
	for i, v := range m {
		if v >= 0 && !done[v] {
			out[v] = old[i]
			done[v] = true
		}
	}
	return out
}

// order sorts the live entries of one table with compare and returns the
// old-to-new mapping, -1 for dropped entries. Entries comparing equal share
// a slot; a nil compare keeps the original order without merging.
func (f *File) order(kind RefKind, live map[RefKind][]bool, compare func(a, b uint32) int, remap map[RefKind][]int64) []int64 {
	keep := live[kind]
	var idx []uint32
	for i, ok := range keep {
		if ok {
			idx = append(idx, uint32(i))
		}
	}
	m := make([]int64, len(keep))
	for i := range m {
		m[i] = -1
	}
	if compare != nil {
		slices.SortStableFunc(idx, compare)
	}
	next := int64(-1)
	for i, old := range idx {
		if i == 0 || compare == nil || compare(idx[i-1], old) != 0 {
			next++
		}
		m[old] = next
	}
	remap[kind] = m
	return m
}

// liveEntries marks every ID table entry reachable from the class
// definitions, the call sites and the method handles.
func (f *File) liveEntries() (map[RefKind][]bool, error) {
	live := make(map[RefKind][]bool, 7)
	for k := KindString; k <= KindMethodHandle; k++ {
		live[k] = make([]bool, f.tableSize(k))
	}
	type entry struct {
		kind RefKind
		idx  uint32
	}
	var (
		queue []entry
		bad   error
	)
	mark := func(r Ref) {
		l := live[r.Kind]
		i := *r.Index
		if int64(i) >= int64(len(l)) {
			if bad == nil {
				bad = errors.WrapMissingMapping(r.Kind.String(), int(i))
			}
			return
		}
		if !l[i] {
			l[i] = true
			queue = append(queue, entry{r.Kind, i})
		}
	}
	if err := f.Refs(mark); err != nil {
		return nil, err
	}
	for i := range f.CallSites {
		idx := uint32(i)
		mark(Ref{Kind: KindCallSite, Index: &idx})
	}
	for i := range f.MethodHandles {
		idx := uint32(i)
		mark(Ref{Kind: KindMethodHandle, Index: &idx})
	}
	for len(queue) > 0 {
		e := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		f.entryRefs(e.kind, e.idx, mark)
	}
	return live, bad
}

// entryRefs calls fn for the references held by one ID table entry. The
// pointers address copies, so fn must not rewrite through them.
func (f *File) entryRefs(kind RefKind, i uint32, fn func(Ref)) {
	r := refFunc(fn)
	switch kind {
	case KindType:
		s := f.Types[i]
		r.ref(KindString, &s)
	case KindProto:
		p := f.Protos[i]
		r.ref(KindString, &p.Shorty)
		r.ref(KindType, &p.Return)
		for _, t := range p.Parameters {
			r.ref(KindType, &t)
		}
	case KindField:
		id := f.Fields[i]
		r.ref(KindType, &id.Class)
		r.ref(KindType, &id.Type)
		r.ref(KindString, &id.Name)
	case KindMethod:
		id := f.Methods[i]
		r.ref(KindType, &id.Class)
		r.ref(KindProto, &id.Proto)
		r.ref(KindString, &id.Name)
	case KindMethodHandle:
		h := f.MethodHandles[i]
		if h.IsField() {
			r.ref(KindField, &h.Target)
		} else {
			r.ref(KindMethod, &h.Target)
		}
	case KindCallSite:
		for _, v := range f.CallSites[i] {
			valueRefs(r, &v)
		}
	}
}
