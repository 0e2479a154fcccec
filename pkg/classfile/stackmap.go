package classfile

// Verification type tags
const (
	ItemTop               = 0
	ItemInteger           = 1
	ItemFloat             = 2
	ItemDouble            = 3
	ItemLong              = 4
	ItemNull              = 5
	ItemUninitializedThis = 6
	ItemObject            = 7
	ItemUninitialized     = 8
)

// VerificationType is one verification_type_info. Index is the class for
// ItemObject; Offset is the new instruction for ItemUninitialized.
type VerificationType struct {
	Tag    uint8
	Index  uint16
	Offset uint16
}

// Frame is one StackMapTable entry.
type Frame interface {
	Delta() uint16
	SetDelta(d uint16)
}

// SameFrame covers same_frame (tags 0-63) and same_frame_extended (251).
type SameFrame struct {
	OffsetDelta uint16
	Extended    bool
}

// SameLocals1StackItemFrame covers tags 64-127 and the extended tag 247.
type SameLocals1StackItemFrame struct {
	OffsetDelta uint16
	Extended    bool
	Stack       VerificationType
}

// ChopFrame removes the last Chopped (1-3) locals.
type ChopFrame struct {
	OffsetDelta uint16
	Chopped     int
}

// AppendFrame adds 1-3 locals.
type AppendFrame struct {
	OffsetDelta uint16
	Locals      []VerificationType
}

type FullFrame struct {
	OffsetDelta uint16
	Locals      []VerificationType
	Stack       []VerificationType
}

func (f *SameFrame) Delta() uint16                 { return f.OffsetDelta }
func (f *SameLocals1StackItemFrame) Delta() uint16 { return f.OffsetDelta }
func (f *ChopFrame) Delta() uint16                 { return f.OffsetDelta }
func (f *AppendFrame) Delta() uint16               { return f.OffsetDelta }
func (f *FullFrame) Delta() uint16                 { return f.OffsetDelta }

func (f *SameFrame) SetDelta(d uint16)                 { f.OffsetDelta = d }
func (f *SameLocals1StackItemFrame) SetDelta(d uint16) { f.OffsetDelta = d }
func (f *ChopFrame) SetDelta(d uint16)                 { f.OffsetDelta = d }
func (f *AppendFrame) SetDelta(d uint16)               { f.OffsetDelta = d }
func (f *FullFrame) SetDelta(d uint16)                 { f.OffsetDelta = d }

// FrameOffsets returns the absolute code offset of each frame.
func FrameOffsets(frames []Frame) []int {
	out := make([]int, len(frames))
	prev := -1
	for i, f := range frames {
		prev += int(f.Delta()) + 1
		out[i] = prev
	}
	return out
}

// SetFrameOffsets recomputes offset deltas from absolute offsets, which
// must be strictly increasing.
func SetFrameOffsets(frames []Frame, offsets []int) {
	prev := -1
	for i, f := range frames {
		f.SetDelta(uint16(offsets[i] - prev - 1))
		prev = offsets[i]
	}
}

// frameTag picks the encoding for f. A delta of 64 or more forces the
// extended forms of the compact frames.
func frameTag(f Frame) uint8 {
	switch f := f.(type) {
	case *SameFrame:
		if f.Extended || f.OffsetDelta > 63 {
			return 251
		}
		return uint8(f.OffsetDelta)
	case *SameLocals1StackItemFrame:
		if f.Extended || f.OffsetDelta > 63 {
			return 247
		}
		return uint8(64 + f.OffsetDelta)
	case *ChopFrame:
		return uint8(251 - f.Chopped)
	case *AppendFrame:
		return uint8(251 + len(f.Locals))
	}
	return 255
}
