package dex

import (
	"fmt"
	"math"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/reloc"
)

// OriginalItems turns decoded code back into layout items, marking every
// instruction and the end of the code with its original offset.
func OriginalItems(code []dalvik.Instruction, end int) []reloc.Item {
	items := make([]reloc.Item, 0, 2*len(code)+1)
	for i := range code {
		items = append(items, reloc.Mark{Label: reloc.OffsetLabel(code[i].Offset)}, &code[i])
	}
	return append(items, reloc.Mark{Label: reloc.OffsetLabel(end)})
}

// Relayout is a re-encoded code body that has not been applied yet.
type Relayout struct {
	Layout *reloc.Layout
	Insns  []uint16
	Tries  []Try
	Debug  *DebugInfo

	code *Code
}

// Relayout encodes items, which must mark old instruction offsets with
// reloc.OffsetLabel, and moves tries, handlers and debug addresses to the
// new offsets. Try ranges that collapse are dropped, and so are debug
// entries whose address no longer exists. The code is left untouched until
// Commit.
func (c *Code) Relayout(items []reloc.Item) (*Relayout, error) {
	insns, lay, err := dalvik.Encode(items)
	if err != nil {
		return nil, err
	}
	moved := func(off uint32) (uint32, bool) {
		p, ok := lay.Resolve(reloc.OffsetLabel(int(off)))
		return uint32(p), ok
	}

	r := &Relayout{Layout: lay, Insns: insns, Debug: c.Debug, code: c}
	for i, t := range c.Tries {
		end := t.Start + uint32(t.Count)
		start, ok1 := moved(t.Start)
		newEnd, ok2 := moved(end)
		if !ok1 || !ok2 {
			return nil, errors.WrapFormat("try %d [%d, %d) is not on instruction boundaries", i, t.Start, end)
		}
		if newEnd <= start {
			continue
		}
		if newEnd-start > math.MaxUint16 {
			return nil, errors.WrapOperandRange("try length", int64(newEnd-start))
		}
		h := Handler{Catches: make([]Catch, len(t.Handler.Catches)), HasCatchAll: t.Handler.HasCatchAll}
		for j, ct := range t.Handler.Catches {
			a, ok := moved(ct.Addr)
			if !ok {
				return nil, errors.WrapFormat("try %d handler address %d is not an instruction", i, ct.Addr)
			}
			h.Catches[j] = Catch{Type: ct.Type, Addr: a}
		}
		if h.HasCatchAll {
			a, ok := moved(t.Handler.CatchAll)
			if !ok {
				return nil, errors.WrapFormat("try %d catch-all address %d is not an instruction", i, t.Handler.CatchAll)
			}
			h.CatchAll = a
		}
		r.Tries = append(r.Tries, Try{Start: start, Count: uint16(newEnd - start), Handler: h})
	}

	if c.Debug != nil {
		entries := c.Debug.Entries()
		same := true
		kept := make([]DebugEntry, 0, len(entries))
		for _, e := range entries {
			a, ok := moved(e.Addr)
			if !ok {
				same = false
				continue
			}
			same = same && a == e.Addr
			e.Addr = a
			kept = append(kept, e)
		}
		if !same {
			d := &DebugInfo{LineStart: c.Debug.LineStart, ParameterNames: c.Debug.ParameterNames}
			if err := d.SetEntries(kept); err != nil {
				return nil, fmt.Errorf("relocating debug info: %w", err)
			}
			r.Debug = d
		}
	}
	return r, nil
}

// Commit replaces the code body with the relayout.
func (r *Relayout) Commit() {
	r.code.Insns = r.Insns
	r.code.Tries = r.Tries
	r.code.Debug = r.Debug
}

// Rebuild relayouts and commits in one step.
func (c *Code) Rebuild(items []reloc.Item) error {
	r, err := c.Relayout(items)
	if err != nil {
		return err
	}
	r.Commit()
	return nil
}
