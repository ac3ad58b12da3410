package packet

import (
	"fmt"
	"net/netip"

	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/message"
)

// Body sizes in bytes.
const (
	NewSessionSize  = 46 // 361 bits
	SessionIDSize   = 8
	ErrorSize       = 10
	DisablePTTSize  = 42 // 334 bits
	CreateAdHocSize = MaxAdHocIDs * 8

	// MaxAdHocIDs is the number of id slots in CreateAdHoc.
	MaxAdHocIDs = 10

	talkerNameLen = 13
)

// SessionType is the session kind derived from the NewSession flags.
type SessionType uint8

const (
	SessionTypeUndefined             SessionType = 0
	SessionTypeConference            SessionType = 1
	SessionTypeChatRoom              SessionType = 2
	SessionTypeAdHoc                 SessionType = 3
	SessionTypePGroup                SessionType = 4
	SessionTypePrivateServer         SessionType = 6
	SessionTypePrivateDirect         SessionType = 7
	SessionTypeAny                   SessionType = 8
	SessionTypeTotalBroadcast        SessionType = 9
	SessionTypeGroupBroadcast        SessionType = 10
	SessionTypeOrganizationBroadcast SessionType = 11
)

// String returns a human-readable name for the session type.
func (t SessionType) String() string {
	switch t {
	case SessionTypeUndefined:
		return "Undefined"
	case SessionTypeConference:
		return "Conference"
	case SessionTypeChatRoom:
		return "ChatRoom"
	case SessionTypeAdHoc:
		return "AdHoc"
	case SessionTypePGroup:
		return "PGroup"
	case SessionTypePrivateServer:
		return "PrivateServer"
	case SessionTypePrivateDirect:
		return "PrivateDirect"
	case SessionTypeAny:
		return "Any"
	case SessionTypeTotalBroadcast:
		return "TotalBroadcast"
	case SessionTypeGroupBroadcast:
		return "GroupBroadcast"
	case SessionTypeOrganizationBroadcast:
		return "OrganizationBroadcast"
	default:
		return fmt.Sprintf("SessionType(%d)", uint8(t))
	}
}

// SessionPriority is the priority of a session.
type SessionPriority uint8

const (
	PriorityUndefined SessionPriority = 0
	PriorityLow       SessionPriority = 1
	PriorityNormal    SessionPriority = 2
	PriorityHigh      SessionPriority = 3
	PriorityUrgent    SessionPriority = 4
	PriorityEmergency SessionPriority = 5
)

// String returns a human-readable name for the priority.
func (p SessionPriority) String() string {
	switch p {
	case PriorityUndefined:
		return "Undefined"
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	case PriorityEmergency:
		return "Emergency"
	default:
		return fmt.Sprintf("SessionPriority(%d)", uint8(p))
	}
}

// Session flag mask bits.
const (
	SessionFlagInitiatorEndCall                   uint8 = 0x01
	SessionFlagNonInitiatorLeaveDisabled          uint8 = 0x02
	SessionFlagInitiatorSessionUpdatesDisabled    uint8 = 0x04
	SessionFlagNonInitiatorSessionUpdatesDisabled uint8 = 0x08
	SessionFlagNonInitiatorPTTDisabled            uint8 = 0x10
)

// CodecMask is the 16-bit vocoder capability mask of NewSession.
type CodecMask uint16

const (
	CodecNone       CodecMask = 0x0000
	CodecEVRC       CodecMask = 0x0001
	CodecAMR475     CodecMask = 0x0002
	CodecGSM        CodecMask = 0x0004
	CodecSpirit2400 CodecMask = 0x0008
	CodecLPC        CodecMask = 0x0010
	CodecGSMHR      CodecMask = 0x0020
	CodecPCM        CodecMask = 0x0040
	CodecAll        CodecMask = 0xFFFF
)

// NewSession announces a session the client is invited to.
type NewSession struct {
	SessionID uint64
	// ServerID is decoded but always sent as zero.
	ServerID        uint64
	ControlEndpoint netip.AddrPort
	AudioEndpoint   netip.AddrPort

	Initiator  bool
	PTTEnabled bool
	Public     bool
	ChatRoom   bool
	Direct     bool
	AdHoc      bool

	Vocoder           CodecMask
	EarlyMedia        bool
	SessionFlags      uint8
	InitiatorID       uint64
	Priority          SessionPriority
	AudioOutputDevice uint8
	Broadcast         bool
}

// Type derives the session kind from the role flags.
func (p *NewSession) Type() SessionType {
	if p.Public {
		switch {
		case p.Direct:
			return SessionTypeUndefined
		case p.AdHoc && p.ChatRoom:
			return SessionTypeUndefined
		case p.AdHoc:
			return SessionTypeAdHoc
		case p.ChatRoom:
			return SessionTypeChatRoom
		case p.Broadcast:
			return SessionTypeOrganizationBroadcast
		default:
			return SessionTypeConference
		}
	}
	switch {
	case p.AdHoc || p.ChatRoom:
		return SessionTypeUndefined
	case p.Direct:
		return SessionTypePrivateDirect
	default:
		return SessionTypePrivateServer
	}
}

func (*NewSession) Command() message.Command { return message.CommandNewSession }
func (*NewSession) isPacket()                {}

func (p *NewSession) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(NewSessionSize)
	w.Uint(p.SessionID, 64)
	w.Uint(0, 64)
	writeEndpoint(w, p.ControlEndpoint)
	writeEndpoint(w, p.AudioEndpoint)
	w.Bool(p.Initiator)
	w.Bool(p.PTTEnabled)
	w.Bool(p.Public)
	w.Bool(p.ChatRoom)
	w.Bool(p.Direct)
	w.Bool(p.AdHoc)
	w.Uint(uint64(p.Vocoder), 16)
	w.Bool(p.EarlyMedia)
	w.Skip(1)
	w.Uint(uint64(p.SessionFlags), 8)
	w.Uint(p.InitiatorID, 64)
	w.Uint(uint64(p.Priority), 8)
	w.Uint(uint64(p.AudioOutputDevice), 8)
	w.Skip(24)
	w.Bool(p.Broadcast)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseNewSession(body []byte) (Packet, error) {
	if err := needBytes(message.CommandNewSession, body, NewSessionSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &NewSession{
		SessionID:       r.Uint(64),
		ServerID:        r.Uint(64),
		ControlEndpoint: readEndpoint(r),
		AudioEndpoint:   readEndpoint(r),
		Initiator:       r.Bool(),
		PTTEnabled:      r.Bool(),
		Public:          r.Bool(),
		ChatRoom:        r.Bool(),
		Direct:          r.Bool(),
		AdHoc:           r.Bool(),
		Vocoder:         CodecMask(r.Uint16(16)),
		EarlyMedia:      r.Bool(),
	}
	r.Skip(1)
	p.SessionFlags = r.Uint8(8)
	p.InitiatorID = r.Uint(64)
	p.Priority = SessionPriority(r.Uint8(8))
	p.AudioOutputDevice = r.Uint8(8)
	r.Skip(24)
	p.Broadcast = r.Bool()
	return p, codecError(p.Command(), r.Err())
}

func writeEndpoint(w *bitcodec.Writer, ep netip.AddrPort) {
	w.Uint(uint64(addrToUint32(ep.Addr())), 32)
	w.Uint(uint64(ep.Port()), 16)
}

func readEndpoint(r *bitcodec.Reader) netip.AddrPort {
	addr := addrFromUint32(r.Uint32(32))
	return netip.AddrPortFrom(addr, r.Uint16(16))
}

// Pending tells the server the client is preparing to join a session.
type Pending struct {
	SessionID uint64
}

func (*Pending) Command() message.Command       { return message.CommandPending }
func (p *Pending) MarshalBody() ([]byte, error) { return marshalSessionID(p.Command(), p.SessionID) }
func (*Pending) isPacket()                      {}

func parsePending(body []byte) (Packet, error) {
	id, err := parseSessionID(message.CommandPending, body)
	if err != nil {
		return nil, err
	}
	return &Pending{SessionID: id}, nil
}

// Accept joins a session.
type Accept struct {
	SessionID uint64
}

func (*Accept) Command() message.Command       { return message.CommandAccept }
func (p *Accept) MarshalBody() ([]byte, error) { return marshalSessionID(p.Command(), p.SessionID) }
func (*Accept) isPacket()                      {}

func parseAccept(body []byte) (Packet, error) {
	id, err := parseSessionID(message.CommandAccept, body)
	if err != nil {
		return nil, err
	}
	return &Accept{SessionID: id}, nil
}

// EnablePTT requests (or grants) the floor in a session.
type EnablePTT struct {
	SessionID uint64
}

func (*EnablePTT) Command() message.Command       { return message.CommandEnablePTT }
func (p *EnablePTT) MarshalBody() ([]byte, error) { return marshalSessionID(p.Command(), p.SessionID) }
func (*EnablePTT) isPacket()                      {}

func parseEnablePTT(body []byte) (Packet, error) {
	id, err := parseSessionID(message.CommandEnablePTT, body)
	if err != nil {
		return nil, err
	}
	return &EnablePTT{SessionID: id}, nil
}

func marshalSessionID(cmd message.Command, id uint64) ([]byte, error) {
	w := bitcodec.NewWriter(SessionIDSize)
	w.Uint(id, 64)
	return w.Buffer(), codecError(cmd, w.Err())
}

func parseSessionID(cmd message.Command, body []byte) (uint64, error) {
	if err := needBytes(cmd, body, SessionIDSize); err != nil {
		return 0, err
	}
	v, err := bitcodec.ReadBits(body, 0, 64)
	return v, codecError(cmd, err)
}

// EndSession tears down a session. The body is optional; when present it
// starts with the session id.
type EndSession struct {
	SessionID uint64
}

func (*EndSession) Command() message.Command { return message.CommandEndSession }
func (*EndSession) isPacket()                {}

func (p *EndSession) MarshalBody() ([]byte, error) {
	if p.SessionID == 0 {
		return nil, nil
	}
	return marshalSessionID(p.Command(), p.SessionID)
}

func parseEndSession(body []byte) (Packet, error) {
	if len(body) < SessionIDSize {
		return &EndSession{}, nil
	}
	id, err := parseSessionID(message.CommandEndSession, body)
	if err != nil {
		return nil, err
	}
	return &EndSession{SessionID: id}, nil
}

// DisablePTT releases the floor, or announces the current talker when
// received from the server.
type DisablePTT struct {
	SessionID  uint64
	Random     uint32
	TalkerID   uint64
	TalkerName string
	DeviceID   uint64
	Priority   uint8 // 5 bits
	Alert      bool
}

func (*DisablePTT) Command() message.Command { return message.CommandDisablePTT }
func (*DisablePTT) isPacket()                {}

func (p *DisablePTT) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(DisablePTTSize)
	w.Uint(p.SessionID, 64)
	w.Uint(uint64(p.Random), 32)
	w.Uint(p.TalkerID, 64)
	w.String(p.TalkerName, talkerNameLen)
	w.Uint(p.DeviceID, 64)
	w.Uint(uint64(p.Priority), 5)
	w.Bool(p.Alert)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseDisablePTT(body []byte) (Packet, error) {
	if err := needBytes(message.CommandDisablePTT, body, DisablePTTSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &DisablePTT{
		SessionID:  r.Uint(64),
		Random:     r.Uint32(32),
		TalkerID:   r.Uint(64),
		TalkerName: r.String(talkerNameLen),
		DeviceID:   r.Uint(64),
		Priority:   r.Uint8(5),
		Alert:      r.Bool(),
	}
	return p, codecError(p.Command(), r.Err())
}

// CreateAdHoc asks the server to open an ad-hoc session with up to
// MaxAdHocIDs participants. Unused slots are zero on the wire.
type CreateAdHoc struct {
	IDs []uint64
}

func (*CreateAdHoc) Command() message.Command { return message.CommandCreateAdHoc }
func (*CreateAdHoc) isPacket()                {}

func (p *CreateAdHoc) MarshalBody() ([]byte, error) {
	if len(p.IDs) > MaxAdHocIDs {
		return nil, fmt.Errorf("%w: %d ad-hoc ids, max %d", ErrInvalidFieldValue, len(p.IDs), MaxAdHocIDs)
	}
	w := bitcodec.NewWriter(CreateAdHocSize)
	for i := 0; i < MaxAdHocIDs; i++ {
		var id uint64
		if i < len(p.IDs) {
			id = p.IDs[i]
		}
		w.Uint(id, 64)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseCreateAdHoc(body []byte) (Packet, error) {
	if err := needBytes(message.CommandCreateAdHoc, body, CreateAdHocSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &CreateAdHoc{}
	for i := 0; i < MaxAdHocIDs; i++ {
		if id := r.Uint(64); id != 0 {
			p.IDs = append(p.IDs, id)
		}
	}
	return p, codecError(p.Command(), r.Err())
}
