package dalvik

import (
	"encoding/binary"
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Payload idents, stored in the code unit where an opcode would be.
const (
	identPackedSwitch = 0x0100
	identSparseSwitch = 0x0200
	identArrayData    = 0x0300
)

// Payload is the data block of a switch or fill-array-data instruction.
// Payloads live in the instruction stream as pseudo-instructions and are
// aligned to an even code unit offset.
type Payload interface {
	Units() int
	Labels() []reloc.Label
	encode(w *byteio.Writer, lay *reloc.Layout) error
}

// PackedSwitch maps FirstKey, FirstKey+1, ... to Targets. Branch
// distances are relative to the switch instruction, which Base labels.
type PackedSwitch struct {
	Base     reloc.Label
	FirstKey int32
	Targets  []reloc.Label
}

// SparseSwitch maps sorted Keys to Targets.
type SparseSwitch struct {
	Base    reloc.Label
	Keys    []int32
	Targets []reloc.Label
}

// ArrayData holds the little-endian elements of a fill-array-data payload.
type ArrayData struct {
	Width int
	Data  []byte
}

func (p *PackedSwitch) Units() int { return 4 + 2*len(p.Targets) }
func (p *SparseSwitch) Units() int { return 2 + 4*len(p.Targets) }
func (p *ArrayData) Units() int    { return 4 + (len(p.Data)+1)/2 }

func (p *PackedSwitch) Labels() []reloc.Label { return append([]reloc.Label{p.Base}, p.Targets...) }
func (p *SparseSwitch) Labels() []reloc.Label { return append([]reloc.Label{p.Base}, p.Targets...) }
func (p *ArrayData) Labels() []reloc.Label    { return nil }

func switchTargets(lay *reloc.Layout, base reloc.Label, targets []reloc.Label) ([]int32, error) {
	b, err := lay.Target(base)
	if err != nil {
		return nil, fmt.Errorf("switch payload: %w", err)
	}
	out := make([]int32, len(targets))
	for i, l := range targets {
		t, err := lay.Target(l)
		if err != nil {
			return nil, fmt.Errorf("switch payload: %w", err)
		}
		out[i] = int32(t - b)
	}
	return out, nil
}

func (p *PackedSwitch) encode(w *byteio.Writer, lay *reloc.Layout) error {
	rel, err := switchTargets(lay, p.Base, p.Targets)
	if err != nil {
		return err
	}
	if len(rel) > 0xFFFF {
		return errors.WrapOperandRange("packed-switch size", int64(len(rel)))
	}
	w.U16(identPackedSwitch)
	w.U16(uint16(len(rel)))
	w.U32(uint32(p.FirstKey))
	for _, d := range rel {
		w.U32(uint32(d))
	}
	return nil
}

func (p *SparseSwitch) encode(w *byteio.Writer, lay *reloc.Layout) error {
	if len(p.Keys) != len(p.Targets) {
		return errors.WrapFormat("sparse-switch has %d keys and %d targets", len(p.Keys), len(p.Targets))
	}
	for i := 1; i < len(p.Keys); i++ {
		if p.Keys[i] <= p.Keys[i-1] {
			return errors.WrapFormat("sparse-switch keys are not ascending at %d", i)
		}
	}
	rel, err := switchTargets(lay, p.Base, p.Targets)
	if err != nil {
		return err
	}
	if len(rel) > 0xFFFF {
		return errors.WrapOperandRange("sparse-switch size", int64(len(rel)))
	}
	w.U16(identSparseSwitch)
	w.U16(uint16(len(rel)))
	for _, k := range p.Keys {
		w.U32(uint32(k))
	}
	for _, d := range rel {
		w.U32(uint32(d))
	}
	return nil
}

func (p *ArrayData) encode(w *byteio.Writer, _ *reloc.Layout) error {
	switch p.Width {
	case 1, 2, 4, 8:
	default:
		return errors.WrapOperandRange("array element width", int64(p.Width))
	}
	if len(p.Data)%p.Width != 0 {
		return errors.WrapFormat("array data of %d bytes is not a multiple of width %d", len(p.Data), p.Width)
	}
	w.U16(identArrayData)
	w.U16(uint16(p.Width))
	w.U32(uint32(len(p.Data) / p.Width))
	w.Write(p.Data)
	if len(p.Data)%2 != 0 {
		w.U8(0)
	}
	return nil
}

// NewArrayData packs values into elements of the given width.
func NewArrayData(width int, values []int64) *ArrayData {
	data := make([]byte, width*len(values))
	for i, v := range values {
		b := data[i*width:]
		switch width {
		case 1:
			b[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(b, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(b, uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(b, uint64(v))
		}
	}
	return &ArrayData{Width: width, Data: data}
}

// Values returns the elements sign-extended to int64.
func (p *ArrayData) Values() []int64 {
	if p.Width == 0 {
		return nil
	}
	out := make([]int64, 0, len(p.Data)/p.Width)
	for i := 0; i+p.Width <= len(p.Data); i += p.Width {
		b := p.Data[i:]
		switch p.Width {
		case 1:
			out = append(out, int64(int8(b[0])))
		case 2:
			out = append(out, int64(int16(binary.LittleEndian.Uint16(b))))
		case 4:
			out = append(out, int64(int32(binary.LittleEndian.Uint32(b))))
		case 8:
			out = append(out, int64(binary.LittleEndian.Uint64(b)))
		}
	}
	return out
}
