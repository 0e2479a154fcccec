// Package byteio provides positionable cursors over byte buffers with the
// fixed-width, LEB128 and modified UTF-8 primitives shared by the classfile
// (big-endian) and dex (little-endian) codecs.
package byteio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/daimatz/jdex/internal/errors"
)

// Reader is a forward cursor over an in-memory buffer. The position can be
// moved with Seek, which the dex reader needs to follow offset fields.
type Reader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func NewReader(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

func (r *Reader) Pos() int       { return r.pos }
func (r *Reader) Len() int       { return len(r.data) }
func (r *Reader) Remaining() int { return len(r.data) - r.pos }
func (r *Reader) Data() []byte   { return r.data }

func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.data) {
		return fmt.Errorf("seeking to %d: %w", off, errors.WrapIndexOutOfRange("offset", off, len(r.data)))
	}
	r.pos = off
	return nil
}

func (r *Reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("reading %s at offset %d: %w", what, r.pos, io.ErrUnexpectedEOF)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1, "u1")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2, "u2")
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4, "u4")
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8, "u8")
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// Bytes returns the next n bytes. The slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n, fmt.Sprintf("%d bytes", n))
}

// Uleb128 reads an unsigned LEB128 value of at most five bytes.
func (r *Reader) Uleb128() (uint32, error) {
	start := r.pos
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		if i == 4 && b&0xf0 != 0 {
			return 0, fmt.Errorf("%w at offset %d", errors.ErrMalformedVarint, start)
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, fmt.Errorf("%w at offset %d", errors.ErrMalformedVarint, start)
}

// Sleb128 reads a signed LEB128 value, sign-extending from the last
// significant bit.
func (r *Reader) Sleb128() (int32, error) {
	start := r.pos
	var result int32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
	return 0, fmt.Errorf("%w at offset %d", errors.ErrMalformedVarint, start)
}

// Uleb128p1 reads a ULEB128 value biased by one, so that NO_INDEX (-1)
// encodes as a single zero byte.
func (r *Reader) Uleb128p1() (int32, error) {
	v, err := r.Uleb128()
	if err != nil {
		return 0, err
	}
	return int32(v) - 1, nil
}

// ModifiedUTF8 decodes the next n bytes as modified UTF-8.
func (r *Reader) ModifiedUTF8(n int) (string, error) {
	start := r.pos
	b, err := r.take(n, "modified UTF-8")
	if err != nil {
		return "", err
	}
	s, err := DecodeModifiedUTF8(b)
	if err != nil {
		return "", fmt.Errorf("string at offset %d: %w", start, err)
	}
	return s, nil
}

// CString reads a zero-terminated modified UTF-8 string.
func (r *Reader) CString() (string, error) {
	start := r.pos
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s, err := r.ModifiedUTF8(i - r.pos)
			if err != nil {
				return "", err
			}
			r.pos++
			return s, nil
		}
	}
	return "", fmt.Errorf("unterminated string at offset %d: %w", start, io.ErrUnexpectedEOF)
}
