package byteio

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/daimatz/jdex/internal/errors"
)

// Modified UTF-8 encodes NUL as C0 80, the only overlong form accepted,
// and supplementary characters as a pair of three-byte surrogates. Unpaired surrogates cannot be held in a
// valid Go string, so they are kept as their raw three-byte sequence and
// written back unchanged.

// DecodeModifiedUTF8 converts modified UTF-8 bytes to a Go string.
func DecodeModifiedUTF8(b []byte) (string, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", fmt.Errorf("%w: raw NUL at byte %d", errors.ErrMalformedUTF8, i)
		case c < 0x80:
			out = append(out, c)
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w: bad continuation at byte %d", errors.ErrMalformedUTF8, i+1)
			}
			r := rune(c&0x1f)<<6 | rune(b[i+1]&0x3f)
			if r != 0 && r < 0x80 {
				return "", fmt.Errorf("%w: overlong encoding at byte %d", errors.ErrMalformedUTF8, i)
			}
			out = utf8.AppendRune(out, r)
			i += 2
		case c&0xf0 == 0xe0:
			r, ok := decode3(b, i)
			if !ok {
				return "", fmt.Errorf("%w: bad continuation at byte %d", errors.ErrMalformedUTF8, i+1)
			}
			if r < 0x800 {
				return "", fmt.Errorf("%w: overlong encoding at byte %d", errors.ErrMalformedUTF8, i)
			}
			if utf16.IsSurrogate(r) {
				if r < 0xdc00 {
					if low, ok := decode3(b, i+3); ok && low >= 0xdc00 && low < 0xe000 {
						out = utf8.AppendRune(out, utf16.DecodeRune(r, low))
						i += 6
						continue
					}
				}
				out = append(out, b[i:i+3]...)
				i += 3
				continue
			}
			out = utf8.AppendRune(out, r)
			i += 3
		default:
			return "", fmt.Errorf("%w: invalid lead byte 0x%02x at byte %d", errors.ErrMalformedUTF8, c, i)
		}
	}
	return string(out), nil
}

func decode3(b []byte, i int) (rune, bool) {
	if i+2 >= len(b) || b[i]&0xf0 != 0xe0 || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
		return 0, false
	}
	return rune(b[i]&0x0f)<<12 | rune(b[i+1]&0x3f)<<6 | rune(b[i+2]&0x3f), true
}

// EncodeModifiedUTF8 converts a Go string to modified UTF-8.
func EncodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if raw, ok := rawSurrogate(s, i); ok {
				out = append(out, raw...)
				i += 3
				continue
			}
			out = append(out, s[i])
			i++
			continue
		}
		i += size
		switch {
		case r == 0:
			out = append(out, 0xc0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
		case r < 0x10000:
			out = append3(out, r)
		default:
			hi, lo := utf16.EncodeRune(r)
			out = append3(out, hi)
			out = append3(out, lo)
		}
	}
	return out
}

func append3(out []byte, r rune) []byte {
	return append(out, 0xe0|byte(r>>12), 0x80|byte((r>>6)&0x3f), 0x80|byte(r&0x3f))
}

func rawSurrogate(s string, i int) (string, bool) {
	if i+3 > len(s) || s[i] != 0xed || s[i+1] < 0xa0 || s[i+1] > 0xbf || s[i+2]&0xc0 != 0x80 {
		return "", false
	}
	return s[i : i+3], true
}

// UTF16Len returns the number of UTF-16 code units in s, the length the dex
// string_data_item records.
func UTF16Len(s string) int {
	n := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if _, ok := rawSurrogate(s, i); ok {
				n++
				i += 3
				continue
			}
		}
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
		i += size
	}
	return n
}

// UTF16Units returns the UTF-16 code units of s, used for dex string ordering.
func UTF16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if raw, ok := rawSurrogate(s, i); ok {
				units = append(units, uint16(raw[0]&0x0f)<<12|uint16(raw[1]&0x3f)<<6|uint16(raw[2]&0x3f))
				i += 3
				continue
			}
		}
		i += size
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			units = append(units, uint16(hi), uint16(lo))
		} else {
			units = append(units, uint16(r))
		}
	}
	return units
}
