package packet

import (
	"errors"
	"fmt"

	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/message"
)

// Packet layer errors.
var (
	// ErrTruncatedBody is returned when a body is shorter than its layout.
	ErrTruncatedBody = errors.New("packet: truncated body")

	// ErrUnrecognizedCommand is returned by Lookup for commands without a
	// registered layout. Parse never returns it; unknown commands decode
	// to *Unrecognized.
	ErrUnrecognizedCommand = errors.New("packet: unrecognized command")

	// ErrInvalidFieldValue is returned when a field cannot be represented
	// in its declared layout.
	ErrInvalidFieldValue = errors.New("packet: invalid field value")
)

// needBytes fails with ErrTruncatedBody if body is shorter than n bytes.
func needBytes(cmd message.Command, body []byte, n int) error {
	if len(body) < n {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncatedBody, cmd, n, len(body))
	}
	return nil
}

// codecError maps a bitcodec failure onto the packet error taxonomy.
func codecError(cmd message.Command, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bitcodec.ErrOutOfBounds):
		return fmt.Errorf("%w: %s: %w", ErrTruncatedBody, cmd, err)
	case errors.Is(err, bitcodec.ErrInvalidWidth):
		return fmt.Errorf("%w: %s: %w", ErrInvalidFieldValue, cmd, err)
	default:
		return fmt.Errorf("packet: %s: %w", cmd, err)
	}
}
