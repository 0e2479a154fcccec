// Package reloc lays out instruction streams that refer to each other by
// label. Planning runs in two named phases: Plan binds every label to an
// offset and fixes the encoding level of each item, producing an immutable
// Layout; encoders then read that Layout to write final bytes.
package reloc

import (
	"fmt"
	"strconv"

	"github.com/daimatz/jdex/internal/errors"
)

// Label names a position in an instruction stream.
type Label string

// OffsetLabel is the label bound to an instruction's original offset.
func OffsetLabel(off int) Label { return Label("@" + strconv.Itoa(off)) }

// Offset reports the offset an OffsetLabel stands for.
func (l Label) Offset() (int, bool) {
	if len(l) < 2 || l[0] != '@' {
		return 0, false
	}
	off, err := strconv.Atoi(string(l[1:]))
	return off, err == nil
}

// Resolver looks up label offsets.
type Resolver interface {
	Resolve(l Label) (int, bool)
}

// Item is one element of a stream. Size reports the encoded size at pos
// for a given encoding level; Grow returns the smallest level >= level that
// can encode the item at pos with the labels known to res. Labels that res
// does not know yet must not force growth.
type Item interface {
	Size(pos, level int) int
	Grow(pos, level int, res Resolver) int
}

// Mark binds a label to the position of the next item. It occupies no space.
type Mark struct {
	Label Label
}

func (Mark) Size(int, int) int                 { return 0 }
func (Mark) Grow(_, level int, _ Resolver) int { return level }

// Layout is the result of the planning phase.
type Layout struct {
	labels map[Label]int
	pos    []int
	level  []int
	end    int
}

func (l *Layout) Resolve(label Label) (int, bool) {
	off, ok := l.labels[label]
	return off, ok
}

// Target resolves label or reports it as unresolved.
func (l *Layout) Target(label Label) (int, error) {
	off, ok := l.labels[label]
	if !ok {
		return 0, errors.WrapUnresolvedLabel(string(label))
	}
	return off, nil
}

func (l *Layout) Pos(i int) int   { return l.pos[i] }
func (l *Layout) Level(i int) int { return l.level[i] }
func (l *Layout) Size() int       { return l.end }

// planRounds bounds the fixpoint loop; levels only grow, so a well-behaved
// item set converges long before this.
const planRounds = 64

// Plan computes label bindings and item levels. Levels start at zero and
// only ever increase, so the iteration terminates once no item needs to
// grow. A label bound twice is an error; labels that are never bound are
// left for the encoding phase to report.
func Plan(items []Item) (*Layout, error) {
	level := make([]int, len(items))
	pos := make([]int, len(items))
	for round := 0; round < planRounds; round++ {
		labels := make(map[Label]int)
		off := 0
		for i, it := range items {
			pos[i] = off
			if m, ok := it.(Mark); ok {
				if _, dup := labels[m.Label]; dup {
					return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateLabel, m.Label)
				}
				labels[m.Label] = off
			}
			off += it.Size(off, level[i])
		}
		res := &Layout{labels: labels}
		changed := false
		for i, it := range items {
			if nl := it.Grow(pos[i], level[i], res); nl > level[i] {
				level[i] = nl
				changed = true
			}
		}
		if !changed {
			return &Layout{labels: labels, pos: pos, level: level, end: off}, nil
		}
	}
	return nil, errors.WrapFormat("instruction layout did not converge")
}
