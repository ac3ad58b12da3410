// Package audio handles the media side of a dispatch session: the audio
// datagram framing, the vocoder table, and decoding of received voice
// frames through an external decoder.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed audio datagram header length.
const HeaderSize = 34

// ErrTruncated is returned when an audio datagram is shorter than its header.
var ErrTruncated = errors.New("audio: truncated datagram")

// Header precedes every voice frame.
type Header struct {
	ProtocolVersion uint32
	RecipientID     uint64
	SenderID        uint64
	SessionID       uint64
	Vocoder         Vocoder
	Serial          uint16
	OriginalSize    uint16
}

// Packet is one audio datagram.
type Packet struct {
	Header
	Payload []byte
}

// Parse decodes an audio datagram. Payload aliases data.
func Parse(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	be := binary.BigEndian
	return &Packet{
		Header: Header{
			ProtocolVersion: be.Uint32(data[0:4]),
			RecipientID:     be.Uint64(data[4:12]),
			SenderID:        be.Uint64(data[12:20]),
			SessionID:       be.Uint64(data[20:28]),
			Vocoder:         Vocoder(be.Uint16(data[28:30])),
			Serial:          be.Uint16(data[30:32]),
			OriginalSize:    be.Uint16(data[32:34]),
		},
		Payload: data[HeaderSize:],
	}, nil
}

// Encode serializes the datagram.
func (p *Packet) Encode() []byte {
	buf := make([]byte, HeaderSize, HeaderSize+len(p.Payload))
	be := binary.BigEndian
	be.PutUint32(buf[0:4], p.ProtocolVersion)
	be.PutUint64(buf[4:12], p.RecipientID)
	be.PutUint64(buf[12:20], p.SenderID)
	be.PutUint64(buf[20:28], p.SessionID)
	be.PutUint16(buf[28:30], uint16(p.Vocoder))
	be.PutUint16(buf[30:32], p.Serial)
	be.PutUint16(buf[32:34], p.OriginalSize)
	return append(buf, p.Payload...)
}

// String returns a one-line summary.
func (p *Packet) String() string {
	return fmt.Sprintf("Audio{session=%d sender=%d vocoder=%s serial=%d size=%d payload=%d}",
		p.SessionID, p.SenderID, p.Vocoder, p.Serial, p.OriginalSize, len(p.Payload))
}
