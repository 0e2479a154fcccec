package byteio

import (
	"encoding/binary"
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
)

// Writer is a growable byte sink with a settable position. Writing at a
// position inside the buffer overwrites; writing at or past the end extends
// it, zero-filling any gap.
type Writer struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

func (w *Writer) Pos() int      { return w.pos }
func (w *Writer) Len() int      { return len(w.buf) }
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Seek(off int) error {
	if off < 0 {
		return errors.WrapIndexOutOfRange("offset", off, len(w.buf))
	}
	w.pos = off
	return nil
}

// SeekEnd moves the cursor to the end of the written data.
func (w *Writer) SeekEnd() { w.pos = len(w.buf) }

func (w *Writer) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			nb := make([]byte, len(w.buf), 2*end+64)
			copy(nb, w.buf)
			w.buf = nb
		}
		w.buf = w.buf[:end]
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *Writer) U8(v uint8) { w.Write([]byte{v}) }

func (w *Writer) U16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *Writer) U64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.Write(b[:])
}

// PutU32At overwrites four bytes at off without moving the cursor.
func (w *Writer) PutU32At(off int, v uint32) error {
	if off < 0 || off+4 > len(w.buf) {
		return fmt.Errorf("patching u4: %w", errors.WrapIndexOutOfRange("offset", off, len(w.buf)))
	}
	w.order.PutUint32(w.buf[off:], v)
	return nil
}

func (w *Writer) PutU16At(off int, v uint16) error {
	if off < 0 || off+2 > len(w.buf) {
		return fmt.Errorf("patching u2: %w", errors.WrapIndexOutOfRange("offset", off, len(w.buf)))
	}
	w.order.PutUint16(w.buf[off:], v)
	return nil
}

func (w *Writer) Uleb128(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			w.U8(b)
			return
		}
		w.U8(b | 0x80)
	}
}

func (w *Writer) Sleb128(v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.U8(b)
			return
		}
		w.U8(b | 0x80)
	}
}

func (w *Writer) Uleb128p1(v int32) { w.Uleb128(uint32(v + 1)) }

// ModifiedUTF8 writes s without a length prefix and returns the number of
// bytes written.
func (w *Writer) ModifiedUTF8(s string) int {
	b := EncodeModifiedUTF8(s)
	w.Write(b)
	return len(b)
}

// Align pads with zero bytes until the position is a multiple of n.
func (w *Writer) Align(n int) {
	for w.pos%n != 0 {
		w.U8(0)
	}
}

// UlebSize returns the encoded length of v.
func UlebSize(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
