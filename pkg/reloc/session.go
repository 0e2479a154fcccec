package reloc

import (
	"github.com/daimatz/jdex/internal/errors"
)

// Session collects pending edits keyed by original instruction offset.
// Each offset may carry prepended and appended items, and at most one
// replacement (a removal is a replacement with nothing).
type Session[I any] struct {
	prepend map[int][]I
	append  map[int][]I
	replace map[int][]I
	dirty   bool
}

func NewSession[I any]() *Session[I] {
	s := &Session[I]{}
	s.Reset()
	return s
}

func (s *Session[I]) Reset() {
	s.prepend = make(map[int][]I)
	s.append = make(map[int][]I)
	s.replace = make(map[int][]I)
	s.dirty = false
}

func (s *Session[I]) Dirty() bool { return s.dirty }

// Touch marks the session dirty without adding items, for edits kept
// outside the session such as new exception handlers.
func (s *Session[I]) Touch() { s.dirty = true }

func (s *Session[I]) Prepend(off int, items ...I) {
	s.prepend[off] = append(s.prepend[off], items...)
	s.dirty = true
}

func (s *Session[I]) Append(off int, items ...I) {
	s.append[off] = append(s.append[off], items...)
	s.dirty = true
}

func (s *Session[I]) Replace(off int, items ...I) error {
	if _, ok := s.replace[off]; ok {
		return errors.WrapConflictingEdit(off, "instruction already replaced or removed")
	}
	s.replace[off] = append([]I{}, items...)
	s.dirty = true
	return nil
}

func (s *Session[I]) Remove(off int) error {
	return s.Replace(off)
}

// Merge interleaves the original items with the pending edits. For each
// original offset the output holds mark(off), the prepended items, the
// original or its replacement, then the appended items. Edits at end (the
// offset just past the last original) are emitted after mark(end).
func (s *Session[I]) Merge(offsets []int, originals []I, end int, mark func(off int) I) []I {
	out := make([]I, 0, len(originals)*2+1)
	emit := func(off int, orig *I) {
		out = append(out, mark(off))
		out = append(out, s.prepend[off]...)
		if rep, ok := s.replace[off]; ok {
			out = append(out, rep...)
		} else if orig != nil {
			out = append(out, *orig)
		}
		out = append(out, s.append[off]...)
	}
	for i := range originals {
		emit(offsets[i], &originals[i])
	}
	emit(end, nil)
	return out
}
