package dalvik

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Instruction is one decoded instruction. Regs lists the register operands
// in format order (vA, vB, vC), or the argument registers of an invoke or
// filled-new-array. Literal holds the full constant value, so const/high16
// stores 0x12340000 rather than 0x1234. A payload pseudo-instruction has a
// non-nil Payload and Op nop.
type Instruction struct {
	Offset  int
	Op      Opcode
	Regs    []uint16
	Literal int64
	Index   uint32
	Proto   uint32
	Target  reloc.Label
	Payload Payload
}

func (in *Instruction) Info() *Info { return opcodeTable[in.Op] }

// Labels returns every label the instruction refers to.
func (in *Instruction) Labels() []reloc.Label {
	if in.Payload != nil {
		return in.Payload.Labels()
	}
	if in.Target == "" {
		return nil
	}
	return []reloc.Label{in.Target}
}

func gotoBase(op Opcode) int { return int(op - OpGoto) }

func isGoto(op Opcode) bool { return op >= OpGoto && op <= OpGoto32 }

func isIf(op Opcode) bool { return op >= OpIfEq && op <= OpIfLez }

func (in *Instruction) Size(pos, level int) int {
	if in.Payload != nil {
		return in.Payload.Units()
	}
	info := in.Info()
	switch {
	case info == nil:
		return 1
	case isGoto(in.Op):
		return max(gotoBase(in.Op), level) + 1
	case isIf(in.Op) && level > 0:
		return 5
	case in.Op == OpConstString && in.Index > math.MaxUint16:
		return 3
	}
	return info.Format.Units()
}

// Grow widens gotos to goto/16 and goto/32, and turns an if-test whose
// target is out of 16-bit range into the inverted test around a goto/32.
func (in *Instruction) Grow(pos, level int, res reloc.Resolver) int {
	if in.Payload != nil || !(isGoto(in.Op) || isIf(in.Op)) {
		return level
	}
	t, ok := res.Resolve(in.Target)
	if !ok {
		return level
	}
	d := t - pos
	if isIf(in.Op) {
		if d < math.MinInt16 || d > math.MaxInt16 {
			return 1
		}
		return level
	}
	need := 0
	switch {
	case d == 0 || d < math.MinInt16 || d > math.MaxInt16:
		need = 2
	case d < math.MinInt8 || d > math.MaxInt8:
		need = 1
	}
	return max(level, need)
}

func checkReg(name string, r uint16, bits uint) error {
	if uint(r) >= 1<<bits {
		return errors.WrapOperandRange(name+" register", int64(r))
	}
	return nil
}

func checkLit(name string, v int64, bits uint) error {
	lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
	if v < lo || v > hi {
		return errors.WrapOperandRange(name, v)
	}
	return nil
}

// Encode writes the instruction at pos using the level chosen by the plan.
func (in *Instruction) Encode(w *byteio.Writer, pos, level int, lay *reloc.Layout) error {
	if in.Payload != nil {
		if pos%2 != 0 {
			return errors.WrapFormat("payload at odd offset %d", pos)
		}
		return in.Payload.encode(w, lay)
	}
	info := in.Info()
	if info == nil {
		return errors.WrapUnknownTag("opcode", int(in.Op), pos)
	}
	target := func() (int64, error) {
		t, err := lay.Target(in.Target)
		if err != nil {
			return 0, fmt.Errorf("%s at %d: %w", info.Name, pos, err)
		}
		return int64(t - pos), nil
	}
	regs := in.Regs
	want := 0
	switch info.Format {
	case F12x, F22x, F22t, F22s, F22c, F32x, F22b:
		want = 2
	case F11n, F11x, F21t, F21s, F21h, F21c, F31i, F31t, F31c, F51l:
		want = 1
	case F23x:
		want = 3
	case F35c, F45cc:
		want = -1
		if len(regs) > 5 {
			return errors.WrapOperandRange(info.Name+" argument count", int64(len(regs)))
		}
	case F3rc, F4rcc:
		want = -1
		if len(regs) > math.MaxUint8 {
			return errors.WrapOperandRange(info.Name+" argument count", int64(len(regs)))
		}
		for i := 1; i < len(regs); i++ {
			if regs[i] != regs[i-1]+1 {
				return errors.WrapFormat("%s at %d: registers are not consecutive", info.Name, pos)
			}
		}
	}
	if want >= 0 && len(regs) != want {
		return errors.WrapFormat("%s at %d takes %d registers, got %d", info.Name, pos, want, len(regs))
	}
	reg := func(i int, bits uint) (uint16, error) { return regs[i], checkReg(info.Name, regs[i], bits) }
	index := func(bits uint) error {
		if uint64(in.Index) >= 1<<bits {
			return errors.WrapOperandRange(info.Name+" index", int64(in.Index))
		}
		return nil
	}
	op := uint16(in.Op)

	switch {
	case isGoto(in.Op):
		d, err := target()
		if err != nil {
			return err
		}
		switch max(gotoBase(in.Op), level) {
		case 0:
			w.U16(uint16(OpGoto) | uint16(uint8(int8(d)))<<8)
		case 1:
			w.U16(uint16(OpGoto16))
			w.U16(uint16(int16(d)))
		default:
			w.U16(uint16(OpGoto32))
			w.U32(uint32(int32(d)))
		}
		return nil
	case isIf(in.Op):
		d, err := target()
		if err != nil {
			return err
		}
		first := op
		if level > 0 {
			first = uint16(invert(in.Op))
		}
		if info.Format == F22t {
			a, err := reg(0, 4)
			if err != nil {
				return err
			}
			b, err := reg(1, 4)
			if err != nil {
				return err
			}
			w.U16(first | a<<8 | b<<12)
		} else {
			a, err := reg(0, 8)
			if err != nil {
				return err
			}
			w.U16(first | a<<8)
		}
		if level == 0 {
			if err := checkLit(info.Name+" offset", d, 16); err != nil {
				return err
			}
			w.U16(uint16(int16(d)))
			return nil
		}
		// if<!cond> +5; goto/32 target
		w.U16(5)
		w.U16(uint16(OpGoto32))
		w.U32(uint32(int32(d - 2)))
		return nil
	case in.Op == OpConstString && in.Index > math.MaxUint16:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		w.U16(uint16(OpConstStringJumbo) | a<<8)
		w.U32(in.Index)
		return nil
	}

	switch info.Format {
	case F10x:
		w.U16(op)
	case F12x:
		a, err := reg(0, 4)
		if err != nil {
			return err
		}
		b, err := reg(1, 4)
		if err != nil {
			return err
		}
		w.U16(op | a<<8 | b<<12)
	case F11n:
		a, err := reg(0, 4)
		if err != nil {
			return err
		}
		if err := checkLit(info.Name, in.Literal, 4); err != nil {
			return err
		}
		w.U16(op | a<<8 | uint16(in.Literal&0xF)<<12)
	case F11x:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		w.U16(op | a<<8)
	case F22x:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U16(regs[1])
	case F21s:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		if err := checkLit(info.Name, in.Literal, 16); err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U16(uint16(in.Literal))
	case F21h:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		var hi uint16
		if in.Op == OpConstHigh16 {
			if in.Literal&0xFFFF != 0 || checkLit(info.Name, in.Literal, 32) != nil {
				return errors.WrapOperandRange(info.Name, in.Literal)
			}
			hi = uint16(uint32(in.Literal) >> 16)
		} else {
			if in.Literal&0xFFFF_FFFF_FFFF != 0 {
				return errors.WrapOperandRange(info.Name, in.Literal)
			}
			hi = uint16(uint64(in.Literal) >> 48)
		}
		w.U16(op | a<<8)
		w.U16(hi)
	case F21c:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		if err := index(16); err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U16(uint16(in.Index))
	case F23x:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		b, err := reg(1, 8)
		if err != nil {
			return err
		}
		c, err := reg(2, 8)
		if err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U16(b | c<<8)
	case F22b:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		b, err := reg(1, 8)
		if err != nil {
			return err
		}
		if err := checkLit(info.Name, in.Literal, 8); err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U16(b | uint16(uint8(in.Literal))<<8)
	case F22s, F22c:
		a, err := reg(0, 4)
		if err != nil {
			return err
		}
		b, err := reg(1, 4)
		if err != nil {
			return err
		}
		second := uint16(in.Literal)
		if info.Format == F22s {
			if err := checkLit(info.Name, in.Literal, 16); err != nil {
				return err
			}
		} else {
			if err := index(16); err != nil {
				return err
			}
			second = uint16(in.Index)
		}
		w.U16(op | a<<8 | b<<12)
		w.U16(second)
	case F32x:
		w.U16(op)
		w.U16(regs[0])
		w.U16(regs[1])
	case F31i:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		if err := checkLit(info.Name, in.Literal, 32); err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U32(uint32(in.Literal))
	case F31t:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		d, err := target()
		if err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U32(uint32(int32(d)))
	case F31c:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U32(in.Index)
	case F35c, F45cc:
		if err := index(16); err != nil {
			return err
		}
		var nib [5]uint16
		for i := range regs {
			r, err := reg(i, 4)
			if err != nil {
				return err
			}
			nib[i] = r
		}
		w.U16(op | nib[4]<<8 | uint16(len(regs))<<12)
		w.U16(uint16(in.Index))
		w.U16(nib[0] | nib[1]<<4 | nib[2]<<8 | nib[3]<<12)
		if info.Format == F45cc {
			if in.Proto > math.MaxUint16 {
				return errors.WrapOperandRange(info.Name+" proto", int64(in.Proto))
			}
			w.U16(uint16(in.Proto))
		}
	case F3rc, F4rcc:
		if err := index(16); err != nil {
			return err
		}
		var first uint16
		if len(regs) > 0 {
			first = regs[0]
		}
		w.U16(op | uint16(len(regs))<<8)
		w.U16(uint16(in.Index))
		w.U16(first)
		if info.Format == F4rcc {
			if in.Proto > math.MaxUint16 {
				return errors.WrapOperandRange(info.Name+" proto", int64(in.Proto))
			}
			w.U16(uint16(in.Proto))
		}
	case F51l:
		a, err := reg(0, 8)
		if err != nil {
			return err
		}
		w.U16(op | a<<8)
		w.U64(uint64(in.Literal))
	default:
		return errors.WrapFormat("%s at %d: format %s is not encodable here", info.Name, pos, info.Format)
	}
	return nil
}

// align pads to an even code unit offset with a nop.
type align struct{}

func (align) Size(pos, _ int) int                     { return pos & 1 }
func (align) Grow(_, level int, _ reloc.Resolver) int { return level }

// withAlignment inserts alignment padding ahead of every payload, before
// any marks that bind to it, so labels land on the aligned offset.
func withAlignment(items []reloc.Item) []reloc.Item {
	out := make([]reloc.Item, 0, len(items))
	for _, it := range items {
		if in, ok := it.(*Instruction); ok && in.Payload != nil {
			k := len(out)
			for k > 0 {
				if _, mark := out[k-1].(reloc.Mark); !mark {
					break
				}
				k--
			}
			out = append(out, nil)
			copy(out[k+1:], out[k:])
			out[k] = align{}
		}
		out = append(out, it)
	}
	return out
}

// Encode lays out a stream of *Instruction and reloc.Mark items and
// returns the code units together with the layout that placed them.
func Encode(items []reloc.Item) ([]uint16, *reloc.Layout, error) {
	items = withAlignment(items)
	lay, err := reloc.Plan(items)
	if err != nil {
		return nil, nil, err
	}
	w := byteio.NewWriter(binary.LittleEndian)
	for i, it := range items {
		start := w.Len()
		switch it := it.(type) {
		case reloc.Mark:
		case align:
			if lay.Pos(i)&1 != 0 {
				w.U16(uint16(OpNop))
			}
		case *Instruction:
			if err := it.Encode(w, lay.Pos(i), lay.Level(i), lay); err != nil {
				return nil, nil, err
			}
			if got, want := (w.Len()-start)/2, it.Size(lay.Pos(i), lay.Level(i)); got != want {
				return nil, nil, errors.WrapFormat("%s at %d encoded to %d units, planned %d", it.Op, lay.Pos(i), got, want)
			}
		default:
			return nil, nil, errors.WrapFormat("unsupported code item %T", it)
		}
	}
	return units(w.Bytes()), lay, nil
}

func units(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return out
}

// Assemble encodes code whose offsets were fixed by Decode or by an
// editor commit, failing with ErrLayoutChanged if any instruction moves.
func Assemble(code []Instruction) ([]uint16, error) {
	items := make([]reloc.Item, 0, 2*len(code))
	for i := range code {
		items = append(items, reloc.Mark{Label: reloc.OffsetLabel(code[i].Offset)}, &code[i])
	}
	out, lay, err := Encode(items)
	if err != nil {
		return nil, err
	}
	for i := range code {
		if got, _ := lay.Resolve(reloc.OffsetLabel(code[i].Offset)); got != code[i].Offset {
			return nil, fmt.Errorf("%w: %s recorded at %d encodes at %d", errors.ErrLayoutChanged, code[i].Op, code[i].Offset, got)
		}
	}
	return out, nil
}
