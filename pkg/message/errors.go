package message

import "errors"

// Message layer errors.
var (
	// ErrTruncatedHeader is returned when a datagram is shorter than the
	// header it declares (23 bytes, or 24 with an escaped command).
	ErrTruncatedHeader = errors.New("message: truncated header")
)

// Wire format constants.
const (
	// HeaderSize is the size of the fixed header in bytes.
	// ProtocolVersion (4) + Recipient (8) + Sender (8) + SeqMajor (1) +
	// SeqMinor (1) + Command/flags (1) = 23
	HeaderSize = 23

	// EscapedHeaderSize is the header size when the command escape byte
	// follows the fixed header.
	EscapedHeaderSize = HeaderSize + 1

	// commandOffset is the byte holding the 6-bit command and flag bits.
	commandOffset = 22

	// commandBits is the width of the in-header command field.
	commandBits = 6

	// MaxUDPMessageSize bounds a single datagram.
	MaxUDPMessageSize = 1500
)

// Command/flags byte layout.
const (
	flagDoNotReply uint8 = 0x02
	flagReserved   uint8 = 0x01
	commandShift         = 2
)

// Default identity values used by the reference client.
const (
	// DefaultProtocolVersion is the protocol version carried in every header.
	DefaultProtocolVersion uint32 = 0x0200001C

	// DefaultSenderID is the client's 64-bit identifier.
	DefaultSenderID uint64 = 0x0DDD2935029EA54F
)
