package bitcodec

import (
	"strings"
	"unicode/utf16"
)

// WriteString writes s as raw UTF-8 into a span of byteLen bytes starting at
// st.BitOffset. The span is zero padded; bytes beyond byteLen are dropped.
// The span may start at any bit offset.
func WriteString(buf []byte, s string, byteLen int, st *State) error {
	return WriteBytes(buf, []byte(s), byteLen, st)
}

// ReadString reads a byteLen byte string starting at bitOffset.
// Trailing NULs and surrounding whitespace are trimmed.
func ReadString(buf []byte, bitOffset, byteLen int) (string, error) {
	raw, err := ReadBytes(buf, bitOffset, byteLen)
	if err != nil {
		return "", err
	}
	return TrimField(string(raw)), nil
}

// TrimField removes the padding of a fixed-length string field.
func TrimField(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// WriteBytes copies src into a span of byteLen bytes starting at
// st.BitOffset, zero padding the remainder, and advances st.
func WriteBytes(buf []byte, src []byte, byteLen int, st *State) error {
	if byteLen < 0 {
		return ErrInvalidWidth
	}
	if st.BitOffset < 0 || st.BitOffset+byteLen*8 > len(buf)*8 {
		return ErrOutOfBounds
	}

	if st.Aligned() {
		start := st.ByteOffset()
		span := buf[start : start+byteLen]
		n := copy(span, src)
		for i := n; i < byteLen; i++ {
			span[i] = 0
		}
		st.BitOffset += byteLen * 8
		return nil
	}

	for i := 0; i < byteLen; i++ {
		var b byte
		if i < len(src) {
			b = src[i]
		}
		if err := WriteBits(buf, uint64(b), 8, st); err != nil {
			return err
		}
	}
	return nil
}

// ReadBytes returns a copy of the byteLen bytes starting at bitOffset.
func ReadBytes(buf []byte, bitOffset, byteLen int) ([]byte, error) {
	if byteLen < 0 {
		return nil, ErrInvalidWidth
	}
	if bitOffset < 0 || bitOffset+byteLen*8 > len(buf)*8 {
		return nil, ErrOutOfBounds
	}

	out := make([]byte, byteLen)
	if bitOffset%8 == 0 {
		copy(out, buf[bitOffset/8:])
		return out, nil
	}

	for i := range out {
		v, err := ReadBits(buf, bitOffset+i*8, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// WriteWideString writes s as count characters of charBits bits each
// (UTF-16 code units for 16-bit characters). Unused characters are zero.
func WriteWideString(buf []byte, s string, count, charBits int, st *State) error {
	if count < 0 {
		return ErrInvalidWidth
	}
	units := utf16.Encode([]rune(s))
	for i := 0; i < count; i++ {
		var c uint64
		if i < len(units) {
			c = uint64(units[i])
		}
		if err := WriteBits(buf, c, charBits, st); err != nil {
			return err
		}
	}
	return nil
}

// ReadWideString reads count characters of charBits bits each starting at
// bitOffset. Zero characters are skipped and the result is trimmed.
func ReadWideString(buf []byte, bitOffset, count, charBits int) (string, error) {
	if count < 0 {
		return "", ErrInvalidWidth
	}
	units := make([]uint16, 0, count)
	for i := 0; i < count; i++ {
		c, err := ReadBits(buf, bitOffset+i*charBits, charBits)
		if err != nil {
			return "", err
		}
		if c != 0 {
			units = append(units, uint16(c))
		}
	}
	return strings.TrimSpace(string(utf16.Decode(units))), nil
}
