package bitcodec

import "strings"

// Reader reads consecutive fields from a buffer.
// The first error is sticky: once a read fails, later reads return zero
// values and Err reports the original failure.
type Reader struct {
	buf    []byte
	offset int
	err    error
}

// NewReader creates a reader positioned at bit 0 of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Uint reads an unsigned integer of width bits.
func (r *Reader) Uint(width int) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := ReadBits(r.buf, r.offset, width)
	if err != nil {
		r.err = err
		return 0
	}
	r.offset += width
	return v
}

// Uint8 reads a field of up to 8 bits.
func (r *Reader) Uint8(width int) uint8 {
	return uint8(r.Uint(width))
}

// Uint16 reads a field of up to 16 bits.
func (r *Reader) Uint16(width int) uint16 {
	return uint16(r.Uint(width))
}

// Uint32 reads a field of up to 32 bits.
func (r *Reader) Uint32(width int) uint32 {
	return uint32(r.Uint(width))
}

// Bool reads a single bit.
func (r *Reader) Bool() bool {
	return r.Uint(1) != 0
}

// String reads a byteLen byte string field.
func (r *Reader) String(byteLen int) string {
	if r.err != nil {
		return ""
	}
	s, err := ReadString(r.buf, r.offset, byteLen)
	if err != nil {
		r.err = err
		return ""
	}
	r.offset += byteLen * 8
	return s
}

// WideString reads count characters of charBits bits each.
func (r *Reader) WideString(count, charBits int) string {
	if r.err != nil {
		return ""
	}
	s, err := ReadWideString(r.buf, r.offset, count, charBits)
	if err != nil {
		r.err = err
		return ""
	}
	r.offset += count * charBits
	return s
}

// Bytes reads byteLen raw bytes.
func (r *Reader) Bytes(byteLen int) []byte {
	if r.err != nil {
		return nil
	}
	b, err := ReadBytes(r.buf, r.offset, byteLen)
	if err != nil {
		r.err = err
		return nil
	}
	r.offset += byteLen * 8
	return b
}

// Skip advances past bits reserved fields.
func (r *Reader) Skip(bits int) {
	if r.err != nil {
		return
	}
	if bits < 0 || r.offset+bits > len(r.buf)*8 {
		r.err = ErrOutOfBounds
		return
	}
	r.offset += bits
}

// Seek moves the cursor to an absolute bit offset.
func (r *Reader) Seek(bitOffset int) {
	if r.err != nil {
		return
	}
	if bitOffset < 0 || bitOffset > len(r.buf)*8 {
		r.err = ErrOutOfBounds
		return
	}
	r.offset = bitOffset
}

// Offset returns the current bit offset.
func (r *Reader) Offset() int {
	return r.offset
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return len(r.buf)*8 - r.offset
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// Writer writes consecutive fields into a fixed-size buffer.
// Like Reader, the first error is sticky.
type Writer struct {
	buf []byte
	st  State
	err error
}

// NewWriter creates a writer over a zeroed buffer of size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// NewWriterBuffer creates a writer over an existing buffer.
func NewWriterBuffer(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Uint writes the low width bits of v.
func (w *Writer) Uint(v uint64, width int) {
	if w.err != nil {
		return
	}
	w.err = WriteBits(w.buf, v, width, &w.st)
}

// Bool writes a single bit.
func (w *Writer) Bool(v bool) {
	var b uint64
	if v {
		b = 1
	}
	w.Uint(b, 1)
}

// String writes s into a byteLen byte field.
func (w *Writer) String(s string, byteLen int) {
	if w.err != nil {
		return
	}
	w.err = WriteString(w.buf, s, byteLen, &w.st)
}

// WideString writes s as count characters of charBits bits each.
func (w *Writer) WideString(s string, count, charBits int) {
	if w.err != nil {
		return
	}
	w.err = WriteWideString(w.buf, s, count, charBits, &w.st)
}

// Bytes writes b into a byteLen byte field.
func (w *Writer) Bytes(b []byte, byteLen int) {
	if w.err != nil {
		return
	}
	w.err = WriteBytes(w.buf, b, byteLen, &w.st)
}

// Skip leaves bits reserved bits untouched.
func (w *Writer) Skip(bits int) {
	if w.err != nil {
		return
	}
	if bits < 0 || w.st.BitOffset+bits > len(w.buf)*8 {
		w.err = ErrOutOfBounds
		return
	}
	w.st.BitOffset += bits
}

// Offset returns the current bit offset.
func (w *Writer) Offset() int {
	return w.st.BitOffset
}

// Buffer returns the underlying buffer.
func (w *Writer) Buffer() []byte {
	return w.buf
}

// Err returns the first error encountered.
func (w *Writer) Err() error {
	return w.err
}

// FormatBits renders data as space separated groups of 8 binary digits.
// Used for trace logging of raw datagrams.
func FormatBits(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 9)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}
