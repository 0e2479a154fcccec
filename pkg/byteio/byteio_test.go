package byteio

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
)

func TestFixedWidth(t *testing.T) {
	t.Run("big endian", func(t *testing.T) {
		w := NewWriter(binary.BigEndian)
		w.U8(0xca)
		w.U16(0xfeba)
		w.U32(0xbe000034)
		assert.Equal(t, []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x34}, w.Bytes())

		r := NewReader(w.Bytes(), binary.BigEndian)
		u8, _ := r.U8()
		u16, _ := r.U16()
		u32, err := r.U32()
		require.NoError(t, err)
		assert.Equal(t, uint8(0xca), u8)
		assert.Equal(t, uint16(0xfeba), u16)
		assert.Equal(t, uint32(0xbe000034), u32)
		assert.Equal(t, 0, r.Remaining())
	})

	t.Run("little endian", func(t *testing.T) {
		w := NewWriter(binary.LittleEndian)
		w.U32(0x12345678)
		assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, w.Bytes())
	})

	t.Run("short read", func(t *testing.T) {
		r := NewReader([]byte{1}, binary.BigEndian)
		_, err := r.U16()
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
}

func TestLEB128(t *testing.T) {
	uleb := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16256, []byte{0x80, 0x7f}},
		{0xffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, tt := range uleb {
		w := NewWriter(binary.LittleEndian)
		w.Uleb128(tt.v)
		assert.Equal(t, tt.want, w.Bytes(), "uleb %d", tt.v)
		assert.Equal(t, len(tt.want), UlebSize(tt.v))

		got, err := NewReader(tt.want, binary.LittleEndian).Uleb128()
		require.NoError(t, err)
		assert.Equal(t, tt.v, got)
	}

	sleb := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0x7f}},
		{-128, []byte{0x80, 0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-2147483648, []byte{0x80, 0x80, 0x80, 0x80, 0x78}},
	}
	for _, tt := range sleb {
		w := NewWriter(binary.LittleEndian)
		w.Sleb128(tt.v)
		assert.Equal(t, tt.want, w.Bytes(), "sleb %d", tt.v)

		got, err := NewReader(tt.want, binary.LittleEndian).Sleb128()
		require.NoError(t, err)
		assert.Equal(t, tt.v, got)
	}

	t.Run("uleb128p1 no index", func(t *testing.T) {
		w := NewWriter(binary.LittleEndian)
		w.Uleb128p1(-1)
		assert.Equal(t, []byte{0x00}, w.Bytes())
		v, err := NewReader(w.Bytes(), binary.LittleEndian).Uleb128p1()
		require.NoError(t, err)
		assert.Equal(t, int32(-1), v)
	})

	t.Run("overlong", func(t *testing.T) {
		_, err := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, binary.LittleEndian).Uleb128()
		assert.True(t, errors.Is(err, jerrors.ErrMalformedVarint))
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := NewReader([]byte{0x80}, binary.LittleEndian).Sleb128()
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
}

func TestModifiedUTF8(t *testing.T) {
	tests := []struct {
		name string
		s    string
		enc  []byte
	}{
		{"ascii", "abc", []byte("abc")},
		{"nul", "a\x00b", []byte{'a', 0xc0, 0x80, 'b'}},
		{"two byte", "é", []byte{0xc3, 0xa9}},
		{"three byte", "€", []byte{0xe2, 0x82, 0xac}},
		{"supplementary", "\U0001F600", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}},
		{"lone surrogate", "\xed\xa0\x80x", []byte{0xed, 0xa0, 0x80, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.enc, EncodeModifiedUTF8(tt.s))
			got, err := DecodeModifiedUTF8(tt.enc)
			require.NoError(t, err)
			assert.Equal(t, tt.s, got)
		})
	}

	t.Run("malformed continuation", func(t *testing.T) {
		_, err := DecodeModifiedUTF8([]byte{0xc3, 0x41})
		assert.True(t, errors.Is(err, jerrors.ErrMalformedUTF8))
	})

	t.Run("overlong forms rejected", func(t *testing.T) {
		for _, b := range [][]byte{
			{0xc1, 0x81},
			{0xc0, 0xaf},
			{0xe0, 0x81, 0x81},
			{0xe0, 0x80, 0x80},
		} {
			_, err := DecodeModifiedUTF8(b)
			assert.True(t, errors.Is(err, jerrors.ErrMalformedUTF8), "% x", b)
		}
	})

	t.Run("raw nul rejected", func(t *testing.T) {
		_, err := DecodeModifiedUTF8([]byte{'a', 0})
		assert.True(t, errors.Is(err, jerrors.ErrMalformedUTF8))
	})

	t.Run("utf16 length", func(t *testing.T) {
		assert.Equal(t, 3, UTF16Len("a\U0001F600"))
		assert.Equal(t, []uint16{'a', 0xd83d, 0xde00}, UTF16Units("a\U0001F600"))
	})
}

func TestCStringAndSeek(t *testing.T) {
	data := []byte{0xff, 'h', 'i', 0, 'x'}
	r := NewReader(data, binary.LittleEndian)
	require.NoError(t, r.Seek(1))
	s, err := r.CString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
	assert.Equal(t, 4, r.Pos())

	assert.Error(t, r.Seek(9))
	_, err = NewReader([]byte{'a'}, binary.LittleEndian).CString()
	assert.Error(t, err)
}

func TestWriterPatchAndAlign(t *testing.T) {
	w := NewWriter(binary.BigEndian)
	w.U8(1)
	w.Align(4)
	assert.Equal(t, 4, w.Len())
	w.U32(0)
	require.NoError(t, w.PutU32At(4, 0xdeadbeef))
	assert.Equal(t, []byte{1, 0, 0, 0, 0xde, 0xad, 0xbe, 0xef}, w.Bytes())
	assert.Error(t, w.PutU32At(6, 1))

	require.NoError(t, w.Seek(12))
	w.U8(9)
	assert.Equal(t, 13, w.Len())
	assert.Equal(t, byte(0), w.Bytes()[10])
}
