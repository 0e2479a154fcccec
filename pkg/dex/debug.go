package dex

import (
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
)

// Debug info state machine opcodes.
const (
	DbgEndSequence        = 0x00
	DbgAdvancePC          = 0x01
	DbgAdvanceLine        = 0x02
	DbgStartLocal         = 0x03
	DbgStartLocalExtended = 0x04
	DbgEndLocal           = 0x05
	DbgRestartLocal       = 0x06
	DbgSetPrologueEnd     = 0x07
	DbgSetEpilogueBegin   = 0x08
	DbgSetFile            = 0x09
	DbgFirstSpecial       = 0x0a
)

const (
	dbgLineBase  = -4
	dbgLineRange = 15
)

// DebugInfo is a debug_info_item. Ops excludes the final END_SEQUENCE.
type DebugInfo struct {
	LineStart      uint32
	ParameterNames []uint32 // NoIndex for unnamed parameters
	Ops            []DebugOp
}

// DebugOp is one state machine instruction. Special opcodes carry their
// decoded LineDiff and AddrDiff; string and type operands use NoIndex when
// absent.
type DebugOp struct {
	Op        uint8
	AddrDiff  uint32
	LineDiff  int32
	Register  uint32
	Name      uint32
	Type      uint32
	Signature uint32
}

// SpecialOp returns the special opcode that advances the line by lineDiff
// and the address by addrDiff, if one exists.
func SpecialOp(lineDiff int32, addrDiff uint32) (uint8, bool) {
	l := int64(lineDiff) - dbgLineBase
	if l < 0 || l >= dbgLineRange {
		return 0, false
	}
	op := l + int64(addrDiff)*dbgLineRange + DbgFirstSpecial
	if op > 0xff {
		return 0, false
	}
	return uint8(op), true
}

// SpecialDiffs decodes a special opcode.
func SpecialDiffs(op uint8) (lineDiff int32, addrDiff uint32) {
	adjusted := int32(op) - DbgFirstSpecial
	return dbgLineBase + adjusted%dbgLineRange, uint32(adjusted / dbgLineRange)
}

func (op *DebugOp) Special() bool { return op.Op >= DbgFirstSpecial }

func readDebugInfo(in *input) (*DebugInfo, error) {
	d := &DebugInfo{LineStart: in.uleb()}
	n := in.uleb()
	if in.err != nil {
		return nil, in.err
	}
	if int(n) > in.r.Remaining() {
		return nil, errors.WrapFormat("debug info with %d parameters exceeds remaining input", n)
	}
	d.ParameterNames = make([]uint32, n)
	for i := range d.ParameterNames {
		d.ParameterNames[i] = in.ulebp1()
	}
	for {
		pos := in.r.Pos()
		op := DebugOp{Op: in.u1(), Name: NoIndex, Type: NoIndex, Signature: NoIndex}
		if in.err != nil {
			return nil, fmt.Errorf("reading debug opcode at %d: %w", pos, in.err)
		}
		switch op.Op {
		case DbgEndSequence:
			return d, nil
		case DbgAdvancePC:
			op.AddrDiff = in.uleb()
		case DbgAdvanceLine:
			op.LineDiff = in.sleb()
		case DbgStartLocal, DbgStartLocalExtended:
			op.Register = in.uleb()
			op.Name = in.ulebp1()
			op.Type = in.ulebp1()
			if op.Op == DbgStartLocalExtended {
				op.Signature = in.ulebp1()
			}
		case DbgEndLocal, DbgRestartLocal:
			op.Register = in.uleb()
		case DbgSetPrologueEnd, DbgSetEpilogueBegin:
		case DbgSetFile:
			op.Name = in.ulebp1()
		default:
			op.LineDiff, op.AddrDiff = SpecialDiffs(op.Op)
		}
		if in.err != nil {
			return nil, fmt.Errorf("reading debug opcode at %d: %w", pos, in.err)
		}
		d.Ops = append(d.Ops, op)
	}
}

func writeDebugInfo(w *byteio.Writer, d *DebugInfo) {
	w.Uleb128(d.LineStart)
	w.Uleb128(uint32(len(d.ParameterNames)))
	for _, n := range d.ParameterNames {
		w.Uleb128p1(int32(n))
	}
	for i := range d.Ops {
		op := &d.Ops[i]
		w.U8(op.Op)
		switch op.Op {
		case DbgAdvancePC:
			w.Uleb128(op.AddrDiff)
		case DbgAdvanceLine:
			w.Sleb128(op.LineDiff)
		case DbgStartLocal, DbgStartLocalExtended:
			w.Uleb128(op.Register)
			w.Uleb128p1(int32(op.Name))
			w.Uleb128p1(int32(op.Type))
			if op.Op == DbgStartLocalExtended {
				w.Uleb128p1(int32(op.Signature))
			}
		case DbgEndLocal, DbgRestartLocal:
			w.Uleb128(op.Register)
		case DbgSetFile:
			w.Uleb128p1(int32(op.Name))
		}
	}
	w.U8(DbgEndSequence)
}

// DebugEntry is a debug op placed at an absolute code address. Special
// ops become position rows with the absolute Line; ADVANCE_PC and
// ADVANCE_LINE are folded away.
type DebugEntry struct {
	Addr uint32
	Line int64
	Op   DebugOp
}

// Entries runs the state machine and returns the ops at their addresses.
func (d *DebugInfo) Entries() []DebugEntry {
	var out []DebugEntry
	addr, line := uint32(0), int64(d.LineStart)
	for _, op := range d.Ops {
		switch {
		case op.Op == DbgAdvancePC:
			addr += op.AddrDiff
		case op.Op == DbgAdvanceLine:
			line += int64(op.LineDiff)
		case op.Special():
			addr += op.AddrDiff
			line += int64(op.LineDiff)
			out = append(out, DebugEntry{Addr: addr, Line: line, Op: op})
		default:
			out = append(out, DebugEntry{Addr: addr, Line: line, Op: op})
		}
	}
	return out
}

// SetEntries re-encodes entries, which must be in address order, using
// special opcodes where they fit.
func (d *DebugInfo) SetEntries(entries []DebugEntry) error {
	var ops []DebugOp
	addr, line := uint32(0), int64(d.LineStart)
	advance := func(to uint32) {
		if to > addr {
			ops = append(ops, DebugOp{Op: DbgAdvancePC, AddrDiff: to - addr, Name: NoIndex, Type: NoIndex, Signature: NoIndex})
			addr = to
		}
	}
	for i, e := range entries {
		if e.Addr < addr {
			return errors.WrapFormat("debug entry %d at address %d precedes %d", i, e.Addr, addr)
		}
		if !e.Op.Special() {
			advance(e.Addr)
			ops = append(ops, e.Op)
			continue
		}
		dl := e.Line - line
		if dl < dbgLineBase || dl >= dbgLineBase+dbgLineRange {
			if dl < -1<<31 || dl > 1<<31-1 {
				return errors.WrapOperandRange("debug line advance", dl)
			}
			ops = append(ops, DebugOp{Op: DbgAdvanceLine, LineDiff: int32(dl), Name: NoIndex, Type: NoIndex, Signature: NoIndex})
			dl = 0
		}
		code, ok := SpecialOp(int32(dl), e.Addr-addr)
		if !ok {
			advance(e.Addr)
			code, _ = SpecialOp(int32(dl), 0)
		}
		ops = append(ops, DebugOp{Op: code, LineDiff: int32(dl), AddrDiff: e.Addr - addr, Name: NoIndex, Type: NoIndex, Signature: NoIndex})
		addr, line = e.Addr, e.Line
	}
	d.Ops = ops
	return nil
}
