package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/byteio"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Decode parses a code array. Every branch and switch target must land on
// the first byte of an instruction.
func Decode(code []byte) ([]Instruction, error) {
	r := byteio.NewReader(code, binary.BigEndian)
	var out []Instruction
	starts := make(map[int]bool)
	for r.Remaining() > 0 {
		pos := r.Pos()
		starts[pos] = true
		in, err := decodeOne(r, pos)
		if err != nil {
			return nil, fmt.Errorf("decoding instruction at %d: %w", pos, err)
		}
		out = append(out, in)
	}
	for i := range out {
		for _, l := range out[i].Labels() {
			if t, ok := l.Offset(); !ok || !starts[t] {
				return nil, errors.WrapFormat("%s at %d targets %s, which is not an instruction boundary", out[i].Op, out[i].Offset, l)
			}
		}
	}
	return out, nil
}

func decodeOne(r *byteio.Reader, pos int) (Instruction, error) {
	b, err := r.U8()
	if err != nil {
		return Instruction{}, err
	}
	in := Instruction{Offset: pos, Op: Opcode(b)}
	info, ok := Lookup(in.Op)
	if !ok {
		return in, errors.WrapUnknownTag("opcode", int(b), pos)
	}
	if info.ImplicitLocal >= 0 {
		in.Local = uint16(info.ImplicitLocal)
	}
	abs := func(d int32) reloc.Label { return reloc.OffsetLabel(pos + int(d)) }

	switch info.Shape {
	case ShapeNone:
	case ShapeByte:
		v, err := r.U8()
		in.Value = int32(int8(v))
		return in, err
	case ShapeShort:
		v, err := r.U16()
		in.Value = int32(int16(v))
		return in, err
	case ShapeLocal:
		v, err := r.U8()
		in.Local = uint16(v)
		return in, err
	case ShapeIinc:
		l, err := r.U8()
		if err != nil {
			return in, err
		}
		v, err := r.U8()
		in.Local, in.Value = uint16(l), int32(int8(v))
		return in, err
	case ShapeConst8:
		v, err := r.U8()
		in.Index = uint16(v)
		return in, err
	case ShapeConst16:
		in.Index, err = r.U16()
		return in, err
	case ShapeBranch:
		v, err := r.U16()
		in.Target = abs(int32(int16(v)))
		return in, err
	case ShapeBranchWide:
		v, err := r.U32()
		in.Target = abs(int32(v))
		return in, err
	case ShapeTableSwitch, ShapeLookupSwitch:
		if _, err := r.Bytes(switchPad(pos)); err != nil {
			return in, err
		}
		def, err := r.U32()
		if err != nil {
			return in, err
		}
		in.Default = abs(int32(def))
		if info.Shape == ShapeTableSwitch {
			low, err := r.U32()
			if err != nil {
				return in, err
			}
			high, err := r.U32()
			if err != nil {
				return in, err
			}
			in.Low = int32(low)
			n := int64(int32(high)) - int64(in.Low) + 1
			if n < 0 || n > int64(r.Remaining()/4) {
				return in, errors.WrapFormat("tableswitch range %d..%d", int32(low), int32(high))
			}
			for i := int64(0); i < n; i++ {
				d, err := r.U32()
				if err != nil {
					return in, err
				}
				in.Targets = append(in.Targets, abs(int32(d)))
			}
			return in, nil
		}
		npairs, err := r.U32()
		if err != nil {
			return in, err
		}
		if int64(npairs) > int64(r.Remaining()/8) {
			return in, errors.WrapFormat("lookupswitch with %d pairs", npairs)
		}
		for i := uint32(0); i < npairs; i++ {
			k, err := r.U32()
			if err != nil {
				return in, err
			}
			d, err := r.U32()
			if err != nil {
				return in, err
			}
			in.Keys = append(in.Keys, int32(k))
			in.Targets = append(in.Targets, abs(int32(d)))
		}
	case ShapeInvokeInterface:
		if in.Index, err = r.U16(); err != nil {
			return in, err
		}
		count, err := r.U8()
		if err != nil {
			return in, err
		}
		in.Value = int32(count)
		_, err = r.U8()
		return in, err
	case ShapeInvokeDynamic:
		if in.Index, err = r.U16(); err != nil {
			return in, err
		}
		_, err = r.U16()
		return in, err
	case ShapeNewArray:
		v, err := r.U8()
		in.Value = int32(v)
		return in, err
	case ShapeMultiANewArray:
		if in.Index, err = r.U16(); err != nil {
			return in, err
		}
		dims, err := r.U8()
		in.Value = int32(dims)
		return in, err
	case ShapeWide:
		op, err := r.U8()
		if err != nil {
			return in, err
		}
		in.Op, in.Wide = Opcode(op), true
		inner, ok := Lookup(in.Op)
		if !ok || (inner.Shape != ShapeLocal && inner.Shape != ShapeIinc) {
			return in, errors.WrapFormat("wide applied to opcode 0x%02x", op)
		}
		if in.Local, err = r.U16(); err != nil {
			return in, err
		}
		if inner.Shape == ShapeIinc {
			v, err := r.U16()
			in.Value = int32(int16(v))
			return in, err
		}
	}
	return in, nil
}
