// Package bitcodec implements big-endian bit packing over byte buffers.
//
// Every signaling body in the protocol is a sequence of fields of arbitrary
// bit width laid out back to back, most significant bit first, with no
// padding between fields. This package provides the primitives used by all
// packet layouts:
//   - Unsigned integers of 1 to 64 bits at any bit offset
//   - Fixed byte-length strings (NUL padded, trimmed on read)
//   - Fixed character-count strings of wider characters (e.g. 16-bit)
//   - Raw byte ranges
//
// Reads are pure and never modify the buffer. Writes advance a caller-owned
// State, so independent encodings never share hidden cursor state.
package bitcodec

// MaxWidth is the widest integer field supported by ReadBits and WriteBits.
const MaxWidth = 64

// State tracks the write position inside a buffer.
type State struct {
	// BitOffset is the absolute bit position of the next write.
	BitOffset int
}

// ByteOffset returns the index of the byte containing the next bit.
func (s *State) ByteOffset() int {
	return s.BitOffset / 8
}

// Aligned returns true if the next write starts on a byte boundary.
func (s *State) Aligned() bool {
	return s.BitOffset%8 == 0
}

// WriteBits writes the low width bits of value into buf starting at
// st.BitOffset, most significant bit first, and advances st.
// Bits of buf outside the field are preserved.
func WriteBits(buf []byte, value uint64, width int, st *State) error {
	if err := checkRange(len(buf), st.BitOffset, width); err != nil {
		return err
	}

	if width < MaxWidth {
		value &= (uint64(1) << uint(width)) - 1
	}

	offset := st.BitOffset
	remaining := width
	for remaining > 0 {
		byteIdx := offset / 8
		bitInByte := offset % 8
		available := 8 - bitInByte
		n := available
		if remaining < n {
			n = remaining
		}

		// Take the next n most significant bits of what is left.
		chunk := byte((value >> uint(remaining-n)) & ((1 << uint(n)) - 1))
		shift := uint(available - n)
		mask := byte(((1 << uint(n)) - 1) << shift)

		buf[byteIdx] = (buf[byteIdx] &^ mask) | (chunk << shift)

		offset += n
		remaining -= n
	}

	st.BitOffset = offset
	return nil
}

// ReadBits returns the unsigned integer formed by the width bits of buf
// starting at bitOffset, most significant bit first.
func ReadBits(buf []byte, bitOffset, width int) (uint64, error) {
	if err := checkRange(len(buf), bitOffset, width); err != nil {
		return 0, err
	}

	var value uint64
	offset := bitOffset
	remaining := width
	for remaining > 0 {
		byteIdx := offset / 8
		bitInByte := offset % 8
		available := 8 - bitInByte
		n := available
		if remaining < n {
			n = remaining
		}

		chunk := (buf[byteIdx] >> uint(available-n)) & byte((1<<uint(n))-1)
		value = (value << uint(n)) | uint64(chunk)

		offset += n
		remaining -= n
	}

	return value, nil
}

// checkRange validates a width and that [bitOffset, bitOffset+width) lies
// inside a buffer of bufLen bytes.
func checkRange(bufLen, bitOffset, width int) error {
	if width < 1 || width > MaxWidth {
		return ErrInvalidWidth
	}
	if bitOffset < 0 || bitOffset+width > bufLen*8 {
		return ErrOutOfBounds
	}
	return nil
}

// BitsToBytes returns the number of whole bytes needed to hold bits.
func BitsToBytes(bits int) int {
	return (bits + 7) / 8
}
