// Package dexedit edits dex method bodies with the same queued-edit model
// as the JVM editor: edits are keyed by original code unit offsets and
// applied together by Finish, which relocates branches, payload
// references, try blocks and debug info, then recomputes the ins and outs
// sizes of the code item.
//
// Branch targets of inserted instructions are labels, either from
// NewLabel bound with reloc.Mark or reloc.OffsetLabel(off) for an
// original instruction.
package dexedit

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/dalvik"
	"github.com/daimatz/jdex/pkg/dex"
	"github.com/daimatz/jdex/pkg/reloc"
)

// CodeEditor holds a pending edit session for one method.
type CodeEditor struct {
	f       *dex.File
	method  *dex.EncodedMethod
	code    *dex.Code
	insns   []dalvik.Instruction
	session *reloc.Session[reloc.Item]
	tries   []try
	labels  int
	layout  *reloc.Layout
}

type try struct {
	start, end, handler reloc.Label
	catchType           uint32
}

// New starts an editor on m. A method without code gets an empty body
// whose register count equals its argument words.
func New(f *dex.File, m *dex.EncodedMethod) (*CodeEditor, error) {
	if m.Access&(dex.AccAbstract|dex.AccNative) != 0 {
		return nil, fmt.Errorf("%w: abstract and native methods have no code", errors.ErrFormat)
	}
	ins, err := insSize(f, m)
	if err != nil {
		return nil, err
	}
	if m.Code == nil {
		m.Code = &dex.Code{Registers: uint16(ins), Ins: uint16(ins)}
	}
	insns, err := dalvik.Decode(m.Code.Insns)
	if err != nil {
		return nil, fmt.Errorf("decoding method %d: %w", m.Method, err)
	}
	return &CodeEditor{f: f, method: m, code: m.Code, insns: insns, session: reloc.NewSession[reloc.Item]()}, nil
}

func insSize(f *dex.File, m *dex.EncodedMethod) (int, error) {
	if int64(m.Method) >= int64(len(f.Methods)) {
		return 0, errors.WrapIndexOutOfRange("method", int(m.Method), len(f.Methods))
	}
	params, err := f.ParamTypes(f.Methods[m.Method].Proto)
	if err != nil {
		return 0, err
	}
	return dalvik.InsSize(params, m.Access&dex.AccStatic != 0), nil
}

// Code returns the code item being edited.
func (e *CodeEditor) Code() *dex.Code { return e.code }

// Instructions returns the decoded body as of the last Finish.
func (e *CodeEditor) Instructions() []dalvik.Instruction { return e.insns }

// NewLabel returns a label unique within this editor.
func (e *CodeEditor) NewLabel() reloc.Label {
	e.labels++
	return reloc.Label(fmt.Sprintf("#%d", e.labels))
}

// SetRegisters changes the frame size. Parameters live in the last Ins
// registers, so growing the frame renumbers them; callers that do so must
// rewrite their operands.
func (e *CodeEditor) SetRegisters(n uint16) {
	e.code.Registers = n
	e.session.Touch()
}

func (e *CodeEditor) checkOffset(off int) error {
	if off == len(e.code.Insns) {
		return nil
	}
	i := sort.Search(len(e.insns), func(i int) bool { return e.insns[i].Offset >= off })
	if i == len(e.insns) || e.insns[i].Offset != off {
		return fmt.Errorf("%w: %d is not an instruction offset", errors.ErrIndexOutOfRange, off)
	}
	return nil
}

// Prepend inserts items before the instruction at off. off may also be
// the code length, to insert at the end of the method.
func (e *CodeEditor) Prepend(off int, items ...reloc.Item) error {
	if err := e.checkOffset(off); err != nil {
		return err
	}
	e.session.Prepend(off, items...)
	return nil
}

func (e *CodeEditor) Append(off int, items ...reloc.Item) error {
	if err := e.checkOffset(off); err != nil {
		return err
	}
	e.session.Append(off, items...)
	return nil
}

// Replace substitutes items for the instruction at off. Each offset can be
// replaced or removed at most once per session.
func (e *CodeEditor) Replace(off int, items ...reloc.Item) error {
	if err := e.checkOffset(off); err != nil {
		return err
	}
	return e.session.Replace(off, items...)
}

func (e *CodeEditor) Remove(off int) error {
	if err := e.checkOffset(off); err != nil {
		return err
	}
	return e.session.Remove(off)
}

// AddTry queues a try block covering [start, end) with one handler. A
// catchType of dex.NoIndex makes the handler a catch-all.
func (e *CodeEditor) AddTry(start, end, handler reloc.Label, catchType uint32) {
	e.tries = append(e.tries, try{start: start, end: end, handler: handler, catchType: catchType})
	e.session.Touch()
}

func (e *CodeEditor) Dirty() bool { return e.session.Dirty() }

// LabelOffset returns the code unit offset a label was bound to by the
// last Finish.
func (e *CodeEditor) LabelOffset(l reloc.Label) (int, bool) {
	if e.layout == nil {
		return 0, false
	}
	return e.layout.Resolve(l)
}

// Finish applies the pending edits. On error the method is left unchanged
// and the pending edits are kept.
func (e *CodeEditor) Finish() error {
	if !e.session.Dirty() {
		return nil
	}
	offsets := make([]int, len(e.insns))
	items := make([]reloc.Item, len(e.insns))
	for i := range e.insns {
		in := e.insns[i]
		offsets[i] = in.Offset
		items[i] = &in
	}
	merged := e.session.Merge(offsets, items, len(e.code.Insns), func(off int) reloc.Item {
		return reloc.Mark{Label: reloc.OffsetLabel(off)}
	})

	r, err := e.code.Relayout(merged)
	if err != nil {
		return fmt.Errorf("relocating code: %w", err)
	}
	tries, err := e.addTries(r.Layout, r.Tries)
	if err != nil {
		return err
	}
	insns, err := dalvik.Decode(r.Insns)
	if err != nil {
		return fmt.Errorf("re-decoding edited code: %w", err)
	}
	ins, err := insSize(e.f, e.method)
	if err != nil {
		return err
	}
	usage := dalvik.RegisterUsage(insns)
	if usage.Registers > int(e.code.Registers) {
		return errors.WrapOperandRange("register", int64(usage.Registers-1))
	}
	if ins > int(e.code.Registers) {
		return errors.WrapOperandRange("ins size", int64(ins))
	}

	r.Tries = tries
	r.Commit()
	e.code.Ins = uint16(ins)
	e.code.Outs = uint16(usage.Outs)
	e.insns = insns
	e.layout = r.Layout
	e.tries = nil
	e.session.Reset()
	logger.Logger.Debug("dex code edit committed", "units", len(r.Insns), "registers", e.code.Registers, "outs", usage.Outs)
	return nil
}

// addTries resolves the queued try blocks and merges them with the
// relocated ones. Try blocks must not overlap.
func (e *CodeEditor) addTries(lay *reloc.Layout, relocated []dex.Try) ([]dex.Try, error) {
	out := slices.Clone(relocated)
	for _, t := range e.tries {
		start, err := lay.Target(t.start)
		if err != nil {
			return nil, err
		}
		end, err := lay.Target(t.end)
		if err != nil {
			return nil, err
		}
		target, err := lay.Target(t.handler)
		if err != nil {
			return nil, err
		}
		if start >= end {
			return nil, errors.WrapFormat("try range %s-%s is empty", t.start, t.end)
		}
		if end-start > 0xffff {
			return nil, errors.WrapOperandRange("try length", int64(end-start))
		}
		h := dex.Handler{}
		if t.catchType == dex.NoIndex {
			h.HasCatchAll, h.CatchAll = true, uint32(target)
		} else {
			h.Catches = []dex.Catch{{Type: t.catchType, Addr: uint32(target)}}
		}
		out = append(out, dex.Try{Start: uint32(start), Count: uint16(end - start), Handler: h})
	}
	slices.SortStableFunc(out, func(a, b dex.Try) int { return cmp.Compare(a.Start, b.Start) })
	out, err := mergeTries(out)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(out); i++ {
		if prev := out[i-1]; prev.Start+uint32(prev.Count) > out[i].Start {
			return nil, errors.WrapFormat("try blocks at %d and %d overlap", prev.Start, out[i].Start)
		}
	}
	return out, nil
}

// mergeTries joins the handlers of adjacent tries with the same range,
// in queue order. A range has at most one catch-all, and it comes last.
func mergeTries(tries []dex.Try) ([]dex.Try, error) {
	var out []dex.Try
	for _, t := range tries {
		n := len(out)
		if n == 0 || out[n-1].Start != t.Start || out[n-1].Count != t.Count {
			out = append(out, t)
			continue
		}
		h := &out[n-1].Handler
		if h.HasCatchAll {
			return nil, errors.WrapFormat("try at %d has handlers after its catch-all", t.Start)
		}
		h.Catches = append(slices.Clone(h.Catches), t.Handler.Catches...)
		h.HasCatchAll, h.CatchAll = t.Handler.HasCatchAll, t.Handler.CatchAll
	}
	return out, nil
}
