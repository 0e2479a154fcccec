// Package editor edits JVM method bodies. Edits are queued against the
// offsets of the original instructions and applied together by Finish,
// which relocates branches, exception ranges and debug tables and then
// recomputes the method's stack and local bounds.
//
// Inserted instructions are *bytecode.Instruction values whose branch
// targets are labels: either labels from NewLabel bound with reloc.Mark
// items, or reloc.OffsetLabel(off) to reach an original instruction. An
// original offset resolves to the first item emitted for it, so code
// prepended at an offset is reached by branches into that offset.
package editor

import (
	"fmt"
	"math"
	"sort"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/reloc"
	"github.com/daimatz/jdex/pkg/verifier"
)

// CodeEditor holds a pending edit session for one method.
type CodeEditor struct {
	cf       *classfile.ClassFile
	method   *classfile.MethodInfo
	code     *classfile.CodeAttribute
	session  *reloc.Session[reloc.Item]
	handlers []handler
	labels   int
	layout   *reloc.Layout
}

type handler struct {
	start, end, handler reloc.Label
	catchType           uint16
}

// New starts an editor on m. A method without a Code attribute gets an
// empty one.
func New(cf *classfile.ClassFile, m *classfile.MethodInfo) (*CodeEditor, error) {
	if m.AccessFlags&(classfile.AccAbstract|classfile.AccNative) != 0 {
		return nil, fmt.Errorf("%w: abstract and native methods have no code", errors.ErrFormat)
	}
	code := m.Code()
	if code == nil {
		code = &classfile.CodeAttribute{}
		if err := cf.AddAttribute(&m.Attributes, code); err != nil {
			return nil, err
		}
	}
	return &CodeEditor{cf: cf, method: m, code: code, session: reloc.NewSession[reloc.Item]()}, nil
}

// Code returns the attribute being edited.
func (e *CodeEditor) Code() *classfile.CodeAttribute { return e.code }

// NewLabel returns a label unique within this editor.
func (e *CodeEditor) NewLabel() reloc.Label {
	e.labels++
	return reloc.Label(fmt.Sprintf("#%d", e.labels))
}

func (e *CodeEditor) checkOffset(off int) error {
	if off == e.code.CodeLength() {
		return nil
	}
	i := sort.Search(len(e.code.Instructions), func(i int) bool { return e.code.Instructions[i].Offset >= off })
	if i == len(e.code.Instructions) || e.code.Instructions[i].Offset != off {
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

// Append inserts items after the instruction at off.
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

// Remove deletes the instruction at off. Branches to it land on whatever
// follows.
func (e *CodeEditor) Remove(off int) error {
	if err := e.checkOffset(off); err != nil {
		return err
	}
	return e.session.Remove(off)
}

// AddExceptionHandler queues a new exception table entry. The labels are
// resolved by Finish; catchType 0 catches everything.
func (e *CodeEditor) AddExceptionHandler(start, end, handlerLabel reloc.Label, catchType uint16) {
	e.handlers = append(e.handlers, handler{start: start, end: end, handler: handlerLabel, catchType: catchType})
	e.session.Touch()
}

func (e *CodeEditor) Dirty() bool { return e.session.Dirty() }

// LabelOffset returns the offset a label was bound to by the last Finish.
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
	orig := e.code.Instructions
	offsets := make([]int, len(orig))
	items := make([]reloc.Item, len(orig))
	for i := range orig {
		in := orig[i]
		offsets[i] = in.Offset
		items[i] = &in
	}
	merged := e.session.Merge(offsets, items, e.code.CodeLength(), func(off int) reloc.Item {
		return reloc.Mark{Label: reloc.OffsetLabel(off)}
	})

	out, lay, err := bytecode.Encode(merged)
	if err != nil {
		return fmt.Errorf("relocating code: %w", err)
	}
	if len(out) > math.MaxUint16 {
		return errors.WrapOperandRange("code length", int64(len(out)))
	}

	moved := func(off int) (int, bool) { return lay.Resolve(reloc.OffsetLabel(off)) }
	table, err := e.relocateHandlers(lay, moved)
	if err != nil {
		return err
	}
	insns, err := bytecode.Decode(out)
	if err != nil {
		return fmt.Errorf("re-decoding edited code: %w", err)
	}
	attrs, err := relocateAttributes(e.code.Attributes, moved)
	if err != nil {
		return err
	}

	desc, err := e.cf.ConstantPool.GetUtf8(e.method.DescriptorIndex)
	if err != nil {
		return fmt.Errorf("resolving method descriptor: %w", err)
	}
	res, err := verifier.Analyze(e.cf.ConstantPool, e.method.AccessFlags, desc, insns, table)
	if err != nil {
		return fmt.Errorf("computing max stack: %w", err)
	}

	e.code.Instructions = insns
	e.code.ExceptionTable = table
	e.code.Attributes = attrs
	e.code.MaxStack = uint16(res.MaxStack)
	e.code.MaxLocals = uint16(res.MaxLocals)
	e.layout = lay
	e.handlers = nil
	e.session.Reset()
	logger.Logger.Debug("code edit committed", "length", len(out), "max_stack", res.MaxStack, "max_locals", res.MaxLocals)
	return nil
}

func (e *CodeEditor) relocateHandlers(lay *reloc.Layout, moved func(int) (int, bool)) ([]classfile.ExceptionHandler, error) {
	var table []classfile.ExceptionHandler
	for _, h := range e.code.ExceptionTable {
		start, ok1 := moved(int(h.StartPC))
		end, ok2 := moved(int(h.EndPC))
		target, ok3 := moved(int(h.HandlerPC))
		if !ok1 || !ok2 || !ok3 {
			return nil, errors.WrapFormat("exception range %d-%d -> %d does not match instruction offsets", h.StartPC, h.EndPC, h.HandlerPC)
		}
		if start >= end {
			continue
		}
		table = append(table, classfile.ExceptionHandler{StartPC: uint16(start), EndPC: uint16(end), HandlerPC: uint16(target), CatchType: h.CatchType})
	}
	for _, h := range e.handlers {
		start, err := lay.Target(h.start)
		if err != nil {
			return nil, err
		}
		end, err := lay.Target(h.end)
		if err != nil {
			return nil, err
		}
		target, err := lay.Target(h.handler)
		if err != nil {
			return nil, err
		}
		if start >= end {
			return nil, errors.WrapFormat("exception range %s-%s is empty", h.start, h.end)
		}
		table = append(table, classfile.ExceptionHandler{StartPC: uint16(start), EndPC: uint16(end), HandlerPC: uint16(target), CatchType: h.catchType})
	}
	return table, nil
}

// relocateAttributes rewrites the code offsets held by the debug tables
// and the stack map. Line and variable entries whose offsets no longer
// exist are dropped.
func relocateAttributes(attrs []classfile.Attribute, moved func(int) (int, bool)) ([]classfile.Attribute, error) {
	out := make([]classfile.Attribute, 0, len(attrs))
	for _, a := range attrs {
		switch a := a.(type) {
		case *classfile.LineNumberTableAttribute:
			lnt := &classfile.LineNumberTableAttribute{AttributeHeader: a.AttributeHeader}
			for _, ln := range a.Entries {
				if pc, ok := moved(int(ln.StartPC)); ok {
					lnt.Entries = append(lnt.Entries, classfile.LineNumber{StartPC: uint16(pc), LineNumber: ln.LineNumber})
				} else {
					logger.Logger.Debug("dropping line number entry", "pc", ln.StartPC, "line", ln.LineNumber)
				}
			}
			out = append(out, lnt)
		case *classfile.LocalVariableTableAttribute:
			lvt := &classfile.LocalVariableTableAttribute{AttributeHeader: a.AttributeHeader, Generic: a.Generic}
			for _, lv := range a.Entries {
				start, ok1 := moved(int(lv.StartPC))
				end, ok2 := moved(int(lv.StartPC) + int(lv.Length))
				if !ok1 || !ok2 || end < start {
					logger.Logger.Debug("dropping local variable entry", "pc", lv.StartPC, "slot", lv.Index)
					continue
				}
				lv.StartPC, lv.Length = uint16(start), uint16(end-start)
				lvt.Entries = append(lvt.Entries, lv)
			}
			out = append(out, lvt)
		case *classfile.StackMapTableAttribute:
			smt, err := relocateFrames(a, moved)
			if err != nil {
				return nil, err
			}
			out = append(out, smt)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// relocateFrames returns a relocated copy of the stack map; a is left as
// it was when relocation fails.
func relocateFrames(a *classfile.StackMapTableAttribute, moved func(int) (int, bool)) (*classfile.StackMapTableAttribute, error) {
	smt := &classfile.StackMapTableAttribute{AttributeHeader: a.AttributeHeader, Frames: make([]classfile.Frame, len(a.Frames))}
	for i, f := range a.Frames {
		smt.Frames[i] = copyFrame(f)
	}
	offsets := classfile.FrameOffsets(smt.Frames)
	for i, off := range offsets {
		pc, ok := moved(off)
		if !ok {
			return nil, errors.WrapFormat("stack map frame at %d does not match an instruction", off)
		}
		if i > 0 && pc <= offsets[i-1] {
			return nil, errors.WrapFormat("stack map frames at %d and its predecessor collapsed", off)
		}
		offsets[i] = pc
	}
	uninit := func(list []classfile.VerificationType) error {
		for i := range list {
			if list[i].Tag != classfile.ItemUninitialized {
				continue
			}
			pc, ok := moved(int(list[i].Offset))
			if !ok {
				return errors.WrapFormat("uninitialized type refers to %d, which is not an instruction", list[i].Offset)
			}
			list[i].Offset = uint16(pc)
		}
		return nil
	}
	for _, f := range smt.Frames {
		var err error
		switch f := f.(type) {
		case *classfile.SameLocals1StackItemFrame:
			one := []classfile.VerificationType{f.Stack}
			err = uninit(one)
			f.Stack = one[0]
		case *classfile.AppendFrame:
			err = uninit(f.Locals)
		case *classfile.FullFrame:
			if err = uninit(f.Locals); err == nil {
				err = uninit(f.Stack)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	classfile.SetFrameOffsets(smt.Frames, offsets)
	return smt, nil
}

func copyFrame(f classfile.Frame) classfile.Frame {
	types := func(vs []classfile.VerificationType) []classfile.VerificationType {
		return append([]classfile.VerificationType(nil), vs...)
	}
	switch f := f.(type) {
	case *classfile.SameFrame:
		c := *f
		return &c
	case *classfile.SameLocals1StackItemFrame:
		c := *f
		return &c
	case *classfile.ChopFrame:
		c := *f
		return &c
	case *classfile.AppendFrame:
		return &classfile.AppendFrame{OffsetDelta: f.OffsetDelta, Locals: types(f.Locals)}
	case *classfile.FullFrame:
		return &classfile.FullFrame{OffsetDelta: f.OffsetDelta, Locals: types(f.Locals), Stack: types(f.Stack)}
	}
	return f
}
