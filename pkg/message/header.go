package message

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed datagram header. All multi-byte fields are big-endian
// on the wire.
type Header struct {
	// ProtocolVersion identifies the wire protocol revision.
	ProtocolVersion uint32

	// RecipientID is the 64-bit identifier of the addressee.
	// Clients send 0; servers address the client's sender id.
	RecipientID uint64

	// SenderID is the 64-bit identifier of the originator.
	SenderID uint64

	// SeqMajor and SeqMinor form the two-level sequence number.
	SeqMajor uint8
	SeqMinor uint8

	// Command is the effective command. Values from EscapeCommand upward are
	// encoded through the escape byte.
	Command Command

	// DoNotReply asks the peer not to acknowledge this datagram.
	DoNotReply bool

	// Reserved is the unused low bit of the command byte, kept for
	// round-tripping.
	Reserved bool
}

// Escaped returns true if the command travels in the escape byte.
func (h *Header) Escaped() bool {
	return h.Command.NeedsEscape()
}

// Size returns the encoded size of the header in bytes.
func (h *Header) Size() int {
	if h.Escaped() {
		return EscapedHeaderSize
	}
	return HeaderSize
}

// Encode serializes the header to bytes.
func (h *Header) Encode() []byte {
	buf := make([]byte, h.Size())
	h.EncodeTo(buf)
	return buf
}

// EncodeTo serializes the header into buf, which must be at least Size()
// bytes long. Returns the number of bytes written.
func (h *Header) EncodeTo(buf []byte) int {
	binary.BigEndian.PutUint32(buf[0:], h.ProtocolVersion)
	binary.BigEndian.PutUint64(buf[4:], h.RecipientID)
	binary.BigEndian.PutUint64(buf[12:], h.SenderID)
	buf[20] = h.SeqMajor
	buf[21] = h.SeqMinor

	raw := h.Command
	if h.Escaped() {
		raw = EscapeCommand
	}
	b := uint8(raw) << commandShift
	if h.DoNotReply {
		b |= flagDoNotReply
	}
	if h.Reserved {
		b |= flagReserved
	}
	buf[commandOffset] = b

	if h.Escaped() {
		buf[HeaderSize] = uint8(h.Command)
		return EscapedHeaderSize
	}
	return HeaderSize
}

// Decode deserializes a header from data and resolves an escaped command.
// Returns the number of bytes consumed, which is where the body starts.
func (h *Header) Decode(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTruncatedHeader, len(data))
	}

	h.ProtocolVersion = binary.BigEndian.Uint32(data[0:])
	h.RecipientID = binary.BigEndian.Uint64(data[4:])
	h.SenderID = binary.BigEndian.Uint64(data[12:])
	h.SeqMajor = data[20]
	h.SeqMinor = data[21]

	b := data[commandOffset]
	h.Command = Command(b >> commandShift)
	h.DoNotReply = b&flagDoNotReply != 0
	h.Reserved = b&flagReserved != 0

	if h.Command != EscapeCommand {
		return HeaderSize, nil
	}
	if len(data) < EscapedHeaderSize {
		return 0, fmt.Errorf("%w: escape byte missing", ErrTruncatedHeader)
	}
	h.Command = Command(data[HeaderSize])
	return EscapedHeaderSize, nil
}

// String returns a compact one-line description used in logs, in the form
// "L0.3 Register" (L for the first major cycle, R afterwards).
func (h *Header) String() string {
	dir := "L"
	if h.SeqMajor > 0 {
		dir = "R"
	}
	return fmt.Sprintf("%s%d.%d %s", dir, h.SeqMajor, h.SeqMinor, h.Command)
}

// Identity holds the addressing fields stamped on every outbound header.
type Identity struct {
	ProtocolVersion uint32
	SenderID        uint64
	RecipientID     uint64
}

// DefaultIdentity returns the identity used by the reference client.
func DefaultIdentity() Identity {
	return Identity{
		ProtocolVersion: DefaultProtocolVersion,
		SenderID:        DefaultSenderID,
	}
}

// NewOutbound builds the header for a datagram about to be sent. seq must
// already be advanced with SequenceState.Next for cmd.
func NewOutbound(id Identity, seq SequenceState, cmd Command) Header {
	return Header{
		ProtocolVersion: id.ProtocolVersion,
		RecipientID:     id.RecipientID,
		SenderID:        id.SenderID,
		SeqMajor:        seq.Major,
		SeqMinor:        seq.Minor,
		Command:         cmd,
	}
}

// FromReceived returns the identity for replying to the originator of
// received: sender and recipient are swapped.
func FromReceived(received Header) Identity {
	return Identity{
		ProtocolVersion: received.ProtocolVersion,
		SenderID:        received.RecipientID,
		RecipientID:     received.SenderID,
	}
}
