// Package packet implements the command-specific datagram bodies.
//
// Each command with a known layout has a variant type implementing Packet.
// Variants are plain values: Parse builds a fresh one per datagram and the
// sender builds a fresh one per send. Commands without a registered layout
// decode to *Unrecognized so callers can ignore them without failing.
package packet

import (
	"fmt"

	"github.com/backkem/ptt/pkg/message"
)

// Packet is a decoded command body. The set of implementations is closed.
type Packet interface {
	// Command returns the command this body belongs to.
	Command() message.Command

	// MarshalBody encodes the body without the header.
	MarshalBody() ([]byte, error)

	isPacket()
}

// ParseFunc decodes a body of a known command.
type ParseFunc func(body []byte) (Packet, error)

var registry = map[message.Command]ParseFunc{
	message.CommandAck:                   parseAck,
	message.CommandKeepAlive:             parseKeepAlive,
	message.CommandRegister:              parseRegister,
	message.CommandApproved:              parseApproved,
	message.CommandCreateAdHoc:           parseCreateAdHoc,
	message.CommandNewSession:            parseNewSession,
	message.CommandEndSession:            parseEndSession,
	message.CommandEnablePTT:             parseEnablePTT,
	message.CommandDisablePTT:            parseDisablePTT,
	message.CommandAccept:                parseAccept,
	message.CommandPending:               parsePending,
	message.CommandError:                 parseError,
	message.CommandPABSyncRequest:        parsePABSyncRequest,
	message.CommandPABGroupList:          parseGroupList,
	message.CommandPABContactList:        parseContactList,
	message.CommandPABGroupIDList:        parseGroupIDList,
	message.CommandPABStateList:          parseStateList,
	message.CommandPABSessionUpdatesList: parseSessionUpdatesList,
	message.CommandAuthorize:             parseAuthorize,
	message.CommandPABGroupListEx:        parseGroupListEx,
}

// Lookup returns the body parser for cmd.
func Lookup(cmd message.Command) (ParseFunc, error) {
	fn, ok := registry[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedCommand, cmd)
	}
	return fn, nil
}

// Registered returns true if cmd has a known body layout.
func Registered(cmd message.Command) bool {
	_, ok := registry[cmd]
	return ok
}

// Frame is a decoded datagram.
type Frame struct {
	Header message.Header
	Packet Packet
}

// Parse decodes a complete datagram: header, optional escape byte, body.
func Parse(data []byte) (*Frame, error) {
	f := &Frame{}
	n, err := f.Header.Decode(data)
	if err != nil {
		return nil, err
	}
	p, err := ParseBody(f.Header, data[n:])
	if err != nil {
		return nil, err
	}
	f.Packet = p
	return f, nil
}

// ParseBody decodes body as the command carried by h.
// Unknown commands yield *Unrecognized holding a copy of the body.
func ParseBody(h message.Header, body []byte) (Packet, error) {
	fn, err := Lookup(h.Command)
	if err != nil {
		raw := make([]byte, len(body))
		copy(raw, body)
		return &Unrecognized{Cmd: h.Command, Body: raw}, nil
	}
	return fn(body)
}

// Encode serializes h followed by the body of p. The header command is
// taken from p.
func Encode(h message.Header, p Packet) ([]byte, error) {
	body, err := p.MarshalBody()
	if err != nil {
		return nil, err
	}
	h.Command = p.Command()
	buf := make([]byte, h.Size()+len(body))
	n := h.EncodeTo(buf)
	copy(buf[n:], body)
	return buf, nil
}

// Unrecognized is a command without a registered layout.
type Unrecognized struct {
	Cmd  message.Command
	Body []byte
}

func (p *Unrecognized) Command() message.Command { return p.Cmd }

func (p *Unrecognized) MarshalBody() ([]byte, error) {
	out := make([]byte, len(p.Body))
	copy(out, p.Body)
	return out, nil
}

func (*Unrecognized) isPacket() {}
