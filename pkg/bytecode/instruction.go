package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Instruction is one decoded JVM instruction. Branch and switch targets are
// labels; after decoding they are reloc.OffsetLabel of the absolute target.
type Instruction struct {
	// Offset is the instruction's position in the code array it was read
	// from or last committed to.
	Offset int
	Op     Opcode
	// Wide forces the wide-prefixed form for local and iinc instructions.
	Wide  bool
	Index uint16
	Local uint16
	// Value holds bipush/sipush literals, the iinc increment, the newarray
	// element type, multianewarray dimensions and the invokeinterface count.
	Value   int32
	Target  reloc.Label
	Default reloc.Label
	Low     int32
	Keys    []int32
	Targets []reloc.Label
}

func (in *Instruction) Info() *Info { return opcodeTable[in.Op] }

// LocalIndex returns the local slot used by a load, store, iinc or ret.
func (in *Instruction) LocalIndex() int {
	if info := in.Info(); info != nil && info.ImplicitLocal >= 0 {
		return int(info.ImplicitLocal)
	}
	return int(in.Local)
}

// Labels returns every label the instruction refers to.
func (in *Instruction) Labels() []reloc.Label {
	info := in.Info()
	if info == nil {
		return nil
	}
	switch info.Shape {
	case ShapeBranch, ShapeBranchWide:
		return []reloc.Label{in.Target}
	case ShapeTableSwitch, ShapeLookupSwitch:
		return append([]reloc.Label{in.Default}, in.Targets...)
	}
	return nil
}

func (in *Instruction) wideLocal() bool {
	if in.Wide || in.Local > math.MaxUint8 {
		return true
	}
	return in.Info().Shape == ShapeIinc && (in.Value < math.MinInt8 || in.Value > math.MaxInt8)
}

func switchPad(pos int) int { return (^pos) & 3 }

func (in *Instruction) Size(pos, level int) int {
	info := in.Info()
	if info == nil {
		return 1
	}
	switch info.Shape {
	case ShapeByte, ShapeNewArray:
		return 2
	case ShapeShort, ShapeConst16:
		return 3
	case ShapeLocal:
		if in.wideLocal() {
			return 4
		}
		return 2
	case ShapeIinc:
		if in.wideLocal() {
			return 6
		}
		return 3
	case ShapeConst8:
		if in.Index > math.MaxUint8 {
			return 3
		}
		return 2
	case ShapeBranch:
		switch {
		case level == 0:
			return 3
		case in.Op == OpGoto || in.Op == OpJsr:
			return 5
		default:
			return 8
		}
	case ShapeBranchWide, ShapeInvokeInterface, ShapeInvokeDynamic:
		return 5
	case ShapeMultiANewArray:
		return 4
	case ShapeTableSwitch:
		return 1 + switchPad(pos) + 12 + 4*len(in.Targets)
	case ShapeLookupSwitch:
		return 1 + switchPad(pos) + 8 + 8*len(in.Keys)
	}
	return 1
}

// Grow widens short branches whose distance no longer fits in 16 bits.
func (in *Instruction) Grow(pos, level int, res reloc.Resolver) int {
	if level > 0 || in.Info() == nil || in.Info().Shape != ShapeBranch {
		return level
	}
	t, ok := res.Resolve(in.Target)
	if !ok {
		return level
	}
	if d := t - pos; d < math.MinInt16 || d > math.MaxInt16 {
		return 1
	}
	return level
}

// Encode writes the instruction at pos using the level chosen by the plan.
func (in *Instruction) Encode(w *byteio.Writer, pos, level int, lay *reloc.Layout) error {
	info := in.Info()
	if info == nil {
		return errors.WrapUnknownTag("opcode", int(in.Op), pos)
	}
	if info.Shape == ShapeWide {
		return errors.WrapFormat("bare wide prefix at %d", pos)
	}
	target := func(l reloc.Label) (int32, error) {
		t, err := lay.Target(l)
		if err != nil {
			return 0, fmt.Errorf("%s at %d: %w", info.Name, pos, err)
		}
		return int32(t - pos), nil
	}

	switch info.Shape {
	case ShapeNone:
		w.U8(uint8(in.Op))
	case ShapeByte:
		if in.Value < math.MinInt8 || in.Value > math.MaxInt8 {
			return errors.WrapOperandRange(info.Name, int64(in.Value))
		}
		w.U8(uint8(in.Op))
		w.U8(uint8(int8(in.Value)))
	case ShapeShort:
		if in.Value < math.MinInt16 || in.Value > math.MaxInt16 {
			return errors.WrapOperandRange(info.Name, int64(in.Value))
		}
		w.U8(uint8(in.Op))
		w.U16(uint16(int16(in.Value)))
	case ShapeLocal:
		if in.wideLocal() {
			w.U8(uint8(OpWide))
			w.U8(uint8(in.Op))
			w.U16(in.Local)
		} else {
			w.U8(uint8(in.Op))
			w.U8(uint8(in.Local))
		}
	case ShapeIinc:
		if in.wideLocal() {
			if in.Value < math.MinInt16 || in.Value > math.MaxInt16 {
				return errors.WrapOperandRange(info.Name, int64(in.Value))
			}
			w.U8(uint8(OpWide))
			w.U8(uint8(in.Op))
			w.U16(in.Local)
			w.U16(uint16(int16(in.Value)))
		} else {
			w.U8(uint8(in.Op))
			w.U8(uint8(in.Local))
			w.U8(uint8(int8(in.Value)))
		}
	case ShapeConst8:
		if in.Index > math.MaxUint8 {
			w.U8(uint8(OpLdcW))
			w.U16(in.Index)
		} else {
			w.U8(uint8(in.Op))
			w.U8(uint8(in.Index))
		}
	case ShapeConst16:
		w.U8(uint8(in.Op))
		w.U16(in.Index)
	case ShapeBranch:
		d, err := target(in.Target)
		if err != nil {
			return err
		}
		switch {
		case level == 0:
			if d < math.MinInt16 || d > math.MaxInt16 {
				return errors.WrapOperandRange(info.Name, int64(d))
			}
			w.U8(uint8(in.Op))
			w.U16(uint16(int16(d)))
		case in.Op == OpGoto:
			w.U8(uint8(OpGotoW))
			w.U32(uint32(d))
		case in.Op == OpJsr:
			w.U8(uint8(OpJsrW))
			w.U32(uint32(d))
		default:
			// if<cond> L  =>  if<!cond> +8; goto_w L
			w.U8(uint8(invert(in.Op)))
			w.U16(8)
			w.U8(uint8(OpGotoW))
			w.U32(uint32(d - 3))
		}
	case ShapeBranchWide:
		d, err := target(in.Target)
		if err != nil {
			return err
		}
		w.U8(uint8(in.Op))
		w.U32(uint32(d))
	case ShapeTableSwitch, ShapeLookupSwitch:
		w.U8(uint8(in.Op))
		for i := 0; i < switchPad(pos); i++ {
			w.U8(0)
		}
		def, err := target(in.Default)
		if err != nil {
			return err
		}
		w.U32(uint32(def))
		if info.Shape == ShapeTableSwitch {
			w.U32(uint32(in.Low))
			w.U32(uint32(in.Low + int32(len(in.Targets)) - 1))
			for _, l := range in.Targets {
				d, err := target(l)
				if err != nil {
					return err
				}
				w.U32(uint32(d))
			}
			return nil
		}
		if len(in.Keys) != len(in.Targets) {
			return errors.WrapFormat("lookupswitch at %d has %d keys and %d targets", pos, len(in.Keys), len(in.Targets))
		}
		w.U32(uint32(len(in.Keys)))
		for i, k := range in.Keys {
			d, err := target(in.Targets[i])
			if err != nil {
				return err
			}
			w.U32(uint32(k))
			w.U32(uint32(d))
		}
	case ShapeInvokeInterface:
		w.U8(uint8(in.Op))
		w.U16(in.Index)
		w.U8(uint8(in.Value))
		w.U8(0)
	case ShapeInvokeDynamic:
		w.U8(uint8(in.Op))
		w.U16(in.Index)
		w.U16(0)
	case ShapeNewArray:
		w.U8(uint8(in.Op))
		w.U8(uint8(in.Value))
	case ShapeMultiANewArray:
		w.U8(uint8(in.Op))
		w.U16(in.Index)
		w.U8(uint8(in.Value))
	}
	return nil
}

// Encode lays out a stream of *Instruction and reloc.Mark items and
// returns the code bytes together with the layout that placed them.
func Encode(items []reloc.Item) ([]byte, *reloc.Layout, error) {
	lay, err := reloc.Plan(items)
	if err != nil {
		return nil, nil, err
	}
	w := byteio.NewWriter(binary.BigEndian)
	for i, it := range items {
		switch it := it.(type) {
		case reloc.Mark:
		case *Instruction:
			if err := it.Encode(w, lay.Pos(i), lay.Level(i), lay); err != nil {
				return nil, nil, err
			}
			if got, want := w.Len()-lay.Pos(i), it.Size(lay.Pos(i), lay.Level(i)); got != want {
				return nil, nil, errors.WrapFormat("%s at %d encoded to %d bytes, planned %d", it.Op, lay.Pos(i), got, want)
			}
		default:
			return nil, nil, errors.WrapFormat("unsupported code item %T", it)
		}
	}
	return w.Bytes(), lay, nil
}

// Assemble encodes code whose offsets were fixed by Decode or by an
// editor commit. It fails with ErrLayoutChanged if any instruction would
// land somewhere other than its recorded Offset.
func Assemble(code []Instruction) ([]byte, error) {
	items := make([]reloc.Item, 0, 2*len(code))
	for i := range code {
		items = append(items, reloc.Mark{Label: reloc.OffsetLabel(code[i].Offset)}, &code[i])
	}
	out, lay, err := Encode(items)
	if err != nil {
		return nil, err
	}
	for i := range code {
		if got := lay.Pos(2*i + 1); got != code[i].Offset {
			return nil, fmt.Errorf("%w: %s recorded at %d encodes at %d", errors.ErrLayoutChanged, code[i].Op, code[i].Offset, got)
		}
	}
	return out, nil
}
