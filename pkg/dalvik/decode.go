package dalvik

import (
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/reloc"
)

// rawSwitch keeps the branch distances of a switch payload until the
// instruction that owns it is known.
type rawSwitch struct {
	rel []int32
}

// Decode parses a code-unit array. Payloads are decoded in place; a second
// pass binds each one to the switch or fill-array-data instruction that
// refers to it, converting switch distances into labels. The nop that pads
// a payload to an even offset is dropped unless something branches to it,
// and Encode puts it back.
func Decode(insns []uint16) ([]Instruction, error) {
	var out []Instruction
	raw := make(map[int]*rawSwitch)
	for pos := 0; pos < len(insns); {
		in, n, rs, err := decodeOne(insns, pos)
		if err != nil {
			return nil, fmt.Errorf("decoding instruction at %d: %w", pos, err)
		}
		if rs != nil {
			raw[pos] = rs
		}
		out = append(out, in)
		pos += n
	}

	byOffset := make(map[int]int, len(out))
	for i := range out {
		byOffset[out[i].Offset] = i
	}
	owned := make(map[int]bool)
	for i := range out {
		in := &out[i]
		info := in.Info()
		if in.Payload != nil || info == nil || info.Flags&FlagPayload == 0 {
			continue
		}
		off, _ := in.Target.Offset()
		j, ok := byOffset[off]
		if !ok || out[j].Payload == nil {
			return nil, errors.WrapFormat("%s at %d does not point at a payload", info.Name, in.Offset)
		}
		if owned[off] {
			return nil, errors.WrapFormat("payload at %d is shared by more than one instruction", off)
		}
		owned[off] = true
		base := reloc.OffsetLabel(in.Offset)
		switch p := out[j].Payload.(type) {
		case *PackedSwitch:
			if in.Op != OpPackedSwitch {
				return nil, errors.WrapFormat("%s at %d points at a packed-switch payload", info.Name, in.Offset)
			}
			p.Base, p.Targets = base, absolute(in.Offset, raw[off].rel)
		case *SparseSwitch:
			if in.Op != OpSparseSwitch {
				return nil, errors.WrapFormat("%s at %d points at a sparse-switch payload", info.Name, in.Offset)
			}
			p.Base, p.Targets = base, absolute(in.Offset, raw[off].rel)
		case *ArrayData:
			if in.Op != OpFillArrayData {
				return nil, errors.WrapFormat("%s at %d points at an array payload", info.Name, in.Offset)
			}
		}
	}
	for off := range raw {
		if !owned[off] {
			return nil, errors.WrapFormat("switch payload at %d is not referenced", off)
		}
	}

	targets := make(map[int]bool)
	for i := range out {
		for _, l := range out[i].Labels() {
			t, ok := l.Offset()
			if _, start := byOffset[t]; !ok || !start {
				return nil, errors.WrapFormat("%s at %d targets %s, which is not an instruction boundary", out[i].Op, out[i].Offset, l)
			}
			targets[t] = true
		}
	}
	kept := out[:0]
	for i, in := range out {
		pad := in.Op == OpNop && in.Payload == nil && in.Offset%2 == 1 &&
			i+1 < len(out) && out[i+1].Payload != nil && !targets[in.Offset]
		if !pad {
			kept = append(kept, in)
		}
	}
	return kept, nil
}

func absolute(base int, rel []int32) []reloc.Label {
	out := make([]reloc.Label, len(rel))
	for i, d := range rel {
		out[i] = reloc.OffsetLabel(base + int(d))
	}
	return out
}

func decodeOne(insns []uint16, pos int) (Instruction, int, *rawSwitch, error) {
	word := insns[pos]
	need := func(n int) error {
		if pos+n > len(insns) {
			return errors.WrapFormat("instruction needs %d units, %d left", n, len(insns)-pos)
		}
		return nil
	}
	u32 := func(at int) uint32 { return uint32(insns[at]) | uint32(insns[at+1])<<16 }

	switch word {
	case identPackedSwitch, identSparseSwitch:
		if err := need(2); err != nil {
			return Instruction{}, 0, nil, err
		}
		size := int(insns[pos+1])
		in := Instruction{Offset: pos, Op: OpNop}
		rs := &rawSwitch{rel: make([]int32, size)}
		if word == identPackedSwitch {
			n := 4 + 2*size
			if err := need(n); err != nil {
				return in, 0, nil, err
			}
			for i := range size {
				rs.rel[i] = int32(u32(pos + 4 + 2*i))
			}
			in.Payload = &PackedSwitch{FirstKey: int32(u32(pos + 2))}
			return in, n, rs, nil
		}
		n := 2 + 4*size
		if err := need(n); err != nil {
			return in, 0, nil, err
		}
		keys := make([]int32, size)
		for i := range size {
			keys[i] = int32(u32(pos + 2 + 2*i))
			rs.rel[i] = int32(u32(pos + 2 + 2*size + 2*i))
		}
		in.Payload = &SparseSwitch{Keys: keys}
		return in, n, rs, nil
	case identArrayData:
		if err := need(4); err != nil {
			return Instruction{}, 0, nil, err
		}
		width := int(insns[pos+1])
		count := int(u32(pos + 2))
		nbytes := width * count
		n := 4 + (nbytes+1)/2
		if err := need(n); err != nil {
			return Instruction{}, 0, nil, err
		}
		data := make([]byte, nbytes)
		for i := range data {
			u := insns[pos+4+i/2]
			if i%2 == 1 {
				u >>= 8
			}
			data[i] = byte(u)
		}
		return Instruction{Offset: pos, Op: OpNop, Payload: &ArrayData{Width: width, Data: data}}, n, nil, nil
	}

	in := Instruction{Offset: pos, Op: Opcode(word)}
	info, ok := Lookup(in.Op)
	if !ok {
		return in, 0, nil, errors.WrapUnknownTag("opcode", int(in.Op), pos)
	}
	n := info.Format.Units()
	if err := need(n); err != nil {
		return in, 0, nil, err
	}
	aa := word >> 8
	a4, b4 := (word>>8)&0xF, word>>12
	rel := func(d int64) reloc.Label { return reloc.OffsetLabel(pos + int(d)) }

	switch info.Format {
	case F10x:
		if aa != 0 {
			return in, 0, nil, errors.WrapFormat("%s with nonzero operand byte", info.Name)
		}
	case F12x:
		in.Regs = []uint16{a4, b4}
	case F11n:
		in.Regs = []uint16{a4}
		in.Literal = int64(int8(b4<<4) >> 4)
	case F11x:
		in.Regs = []uint16{aa}
	case F10t:
		in.Target = rel(int64(int8(aa)))
	case F20t:
		in.Target = rel(int64(int16(insns[pos+1])))
	case F22x:
		in.Regs = []uint16{aa, insns[pos+1]}
	case F21t:
		in.Regs = []uint16{aa}
		in.Target = rel(int64(int16(insns[pos+1])))
	case F21s:
		in.Regs = []uint16{aa}
		in.Literal = int64(int16(insns[pos+1]))
	case F21h:
		in.Regs = []uint16{aa}
		if in.Op == OpConstHigh16 {
			in.Literal = int64(int32(uint32(insns[pos+1]) << 16))
		} else {
			in.Literal = int64(uint64(insns[pos+1]) << 48)
		}
	case F21c:
		in.Regs = []uint16{aa}
		in.Index = uint32(insns[pos+1])
	case F23x:
		in.Regs = []uint16{aa, insns[pos+1] & 0xFF, insns[pos+1] >> 8}
	case F22b:
		in.Regs = []uint16{aa, insns[pos+1] & 0xFF}
		in.Literal = int64(int8(insns[pos+1] >> 8))
	case F22t:
		in.Regs = []uint16{a4, b4}
		in.Target = rel(int64(int16(insns[pos+1])))
	case F22s:
		in.Regs = []uint16{a4, b4}
		in.Literal = int64(int16(insns[pos+1]))
	case F22c:
		in.Regs = []uint16{a4, b4}
		in.Index = uint32(insns[pos+1])
	case F30t:
		in.Target = rel(int64(int32(u32(pos + 1))))
	case F32x:
		in.Regs = []uint16{insns[pos+1], insns[pos+2]}
	case F31i:
		in.Regs = []uint16{aa}
		in.Literal = int64(int32(u32(pos + 1)))
	case F31t:
		in.Regs = []uint16{aa}
		in.Target = rel(int64(int32(u32(pos + 1))))
	case F31c:
		in.Regs = []uint16{aa}
		in.Index = u32(pos + 1)
	case F35c, F45cc:
		count := int(b4)
		if count > 5 {
			return in, 0, nil, errors.WrapFormat("%s with %d arguments", info.Name, count)
		}
		w := insns[pos+2]
		all := []uint16{w & 0xF, (w >> 4) & 0xF, (w >> 8) & 0xF, w >> 12, a4}
		in.Regs = append([]uint16{}, all[:count]...)
		in.Index = uint32(insns[pos+1])
		if info.Format == F45cc {
			in.Proto = uint32(insns[pos+3])
		}
	case F3rc, F4rcc:
		first := insns[pos+2]
		in.Regs = make([]uint16, aa)
		for i := range in.Regs {
			in.Regs[i] = first + uint16(i)
		}
		in.Index = uint32(insns[pos+1])
		if info.Format == F4rcc {
			in.Proto = uint32(insns[pos+3])
		}
	case F51l:
		in.Regs = []uint16{aa}
		var v uint64
		for i := 0; i < 4; i++ {
			v |= uint64(insns[pos+1+i]) << (16 * i)
		}
		in.Literal = int64(v)
	}
	return in, n, nil, nil
}
