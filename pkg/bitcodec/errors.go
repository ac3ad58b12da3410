package bitcodec

import "errors"

// Codec errors.
var (
	// ErrOutOfBounds is returned when a field extends past the end of the buffer.
	ErrOutOfBounds = errors.New("bitcodec: field out of bounds")

	// ErrInvalidWidth is returned for an integer width outside 1-64 bits or a
	// negative byte or character count.
	ErrInvalidWidth = errors.New("bitcodec: invalid field width")
)
