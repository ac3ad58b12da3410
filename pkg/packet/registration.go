package packet

import (
	"net/netip"

	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/message"
)

// Register defaults sent by the reference client.
const (
	DefaultClientProtocolVersion uint32 = 33882126
	DefaultClientVersion         uint32 = 1208025285
	DefaultClientType            uint32 = 6
	DefaultAppVersion            uint32 = 587989143
	DefaultVocoderMask           uint32 = 49537
	DefaultControlPort           uint16 = 57457
	DefaultAudioPort             uint16 = 57458
	DefaultInitialState          uint8  = 2
)

// Body sizes in bytes.
const (
	RegisterSize          = 57
	AckSize               = 3
	AuthorizeCompactSize  = 239
	AuthorizeExtendedSize = 240
	ApprovedSize          = 38 // 298 bits
)

// Register announces the client to the server.
type Register struct {
	ClientProtocolVersion uint32
	ClientVersion         uint32
	ClientType            uint32
	AppVersion            uint32
	VocoderMask           uint32
	ControlPort           uint16
	AudioPort             uint16
	InitialState          uint8
	DirectoryNumber       uint64
	MobileSubscriberID    uint64
	MobileEquipmentID     uint64
	DeviceID              uint64
}

// NewRegister returns a Register carrying the reference client values.
func NewRegister(deviceID uint64) *Register {
	return &Register{
		ClientProtocolVersion: DefaultClientProtocolVersion,
		ClientVersion:         DefaultClientVersion,
		ClientType:            DefaultClientType,
		AppVersion:            DefaultAppVersion,
		VocoderMask:           DefaultVocoderMask,
		ControlPort:           DefaultControlPort,
		AudioPort:             DefaultAudioPort,
		InitialState:          DefaultInitialState,
		DeviceID:              deviceID,
	}
}

func (*Register) Command() message.Command { return message.CommandRegister }
func (*Register) isPacket()                {}

func (p *Register) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(RegisterSize)
	w.Uint(uint64(p.ClientProtocolVersion), 32)
	w.Uint(uint64(p.ClientVersion), 32)
	w.Uint(uint64(p.ClientType), 32)
	w.Uint(uint64(p.AppVersion), 32)
	w.Uint(uint64(p.VocoderMask), 32)
	w.Uint(uint64(p.ControlPort), 16)
	w.Uint(uint64(p.AudioPort), 16)
	w.Uint(uint64(p.InitialState), 8)
	w.Uint(p.DirectoryNumber, 64)
	w.Uint(p.MobileSubscriberID, 64)
	w.Uint(p.MobileEquipmentID, 64)
	w.Uint(p.DeviceID, 64)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseRegister(body []byte) (Packet, error) {
	if err := needBytes(message.CommandRegister, body, RegisterSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &Register{
		ClientProtocolVersion: r.Uint32(32),
		ClientVersion:         r.Uint32(32),
		ClientType:            r.Uint32(32),
		AppVersion:            r.Uint32(32),
		VocoderMask:           r.Uint32(32),
		ControlPort:           r.Uint16(16),
		AudioPort:             r.Uint16(16),
		InitialState:          r.Uint8(8),
		DirectoryNumber:       r.Uint(64),
		MobileSubscriberID:    r.Uint(64),
		MobileEquipmentID:     r.Uint(64),
		DeviceID:              r.Uint(64),
	}
	return p, codecError(p.Command(), r.Err())
}

// Ack acknowledges the previous datagram.
type Ack struct {
	LastArxSec uint8
	SystemMode bool
	// ServerID straddles bytes 1 and 2 of the body.
	ServerID uint8
}

func (*Ack) Command() message.Command { return message.CommandAck }
func (*Ack) isPacket()                {}

func (p *Ack) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(AckSize)
	w.Uint(uint64(p.LastArxSec), 8)
	w.Bool(p.SystemMode)
	w.Uint(uint64(p.ServerID), 8)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseAck(body []byte) (Packet, error) {
	if err := needBytes(message.CommandAck, body, AckSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &Ack{
		LastArxSec: r.Uint8(8),
		SystemMode: r.Bool(),
		ServerID:   r.Uint8(8),
	}
	return p, codecError(p.Command(), r.Err())
}

// KeepAlive has no body.
type KeepAlive struct{}

func (*KeepAlive) Command() message.Command     { return message.CommandKeepAlive }
func (*KeepAlive) MarshalBody() ([]byte, error) { return nil, nil }
func (*KeepAlive) isPacket()                    {}

func parseKeepAlive([]byte) (Packet, error) { return &KeepAlive{}, nil }

// PABSyncRequest asks for (or announces) a directory sync. It has no body.
type PABSyncRequest struct{}

func (*PABSyncRequest) Command() message.Command     { return message.CommandPABSyncRequest }
func (*PABSyncRequest) MarshalBody() ([]byte, error) { return nil, nil }
func (*PABSyncRequest) isPacket()                    {}

func parsePABSyncRequest([]byte) (Packet, error) { return &PABSyncRequest{}, nil }

// AuthorizeLayout selects between the two known Authorize body layouts.
type AuthorizeLayout uint8

const (
	// AuthorizeCompact is the 239-byte layout ending with the device id.
	AuthorizeCompact AuthorizeLayout = iota
	// AuthorizeExtended is the 240-byte layout with a trailing 4-bit pass type.
	AuthorizeExtended
)

// String returns the layout name.
func (l AuthorizeLayout) String() string {
	switch l {
	case AuthorizeCompact:
		return "Compact"
	case AuthorizeExtended:
		return "Extended"
	default:
		return "Unknown"
	}
}

// Size returns the body size of the layout in bytes.
func (l AuthorizeLayout) Size() int {
	if l == AuthorizeExtended {
		return AuthorizeExtendedSize
	}
	return AuthorizeCompactSize
}

// Authorize field sizes in bytes.
const (
	authURILen      = 63
	authRealmLen    = 63
	authMethodLen   = 16
	authResponseLen = 16
	authUsernameLen = 63
)

// Authorize is both the server's digest challenge and the client's answer.
type Authorize struct {
	Algorithm  uint8 // 4 bits
	AuthMethod uint8 // 4 bits
	URI        string
	Realm      string
	Nonce      uint32
	Opaque     uint32
	Method     string
	// Response is the raw 16-byte digest.
	Response [16]byte
	Username string
	DeviceID uint64
	// PassType is only carried by AuthorizeExtended.
	PassType uint8
	Layout   AuthorizeLayout
}

func (*Authorize) Command() message.Command { return message.CommandAuthorize }
func (*Authorize) isPacket()                {}

func (p *Authorize) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(p.Layout.Size())
	w.Uint(uint64(p.Algorithm), 4)
	w.Uint(uint64(p.AuthMethod), 4)
	w.String(p.URI, authURILen)
	w.Skip(8)
	w.String(p.Realm, authRealmLen)
	w.Uint(uint64(p.Nonce), 32)
	w.Uint(uint64(p.Opaque), 32)
	w.String(p.Method, authMethodLen)
	w.Bytes(p.Response[:], authResponseLen)
	w.String(p.Username, authUsernameLen)
	w.Uint(p.DeviceID, 64)
	if p.Layout == AuthorizeExtended {
		w.Uint(uint64(p.PassType), 4)
	}
	return w.Buffer(), codecError(p.Command(), w.Err())
}

func parseAuthorize(body []byte) (Packet, error) {
	if err := needBytes(message.CommandAuthorize, body, AuthorizeCompactSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &Authorize{
		Algorithm:  r.Uint8(4),
		AuthMethod: r.Uint8(4),
		URI:        r.String(authURILen),
	}
	r.Skip(8)
	p.Realm = r.String(authRealmLen)
	p.Nonce = r.Uint32(32)
	p.Opaque = r.Uint32(32)
	p.Method = r.String(authMethodLen)
	copy(p.Response[:], r.Bytes(authResponseLen))
	p.Username = r.String(authUsernameLen)
	p.DeviceID = r.Uint(64)
	if len(body) >= AuthorizeExtendedSize {
		p.Layout = AuthorizeExtended
		p.PassType = r.Uint8(4)
	}
	return p, codecError(p.Command(), r.Err())
}

// Approved carries the server-side configuration after a successful login.
// Timer fields are in the units the server uses (seconds unless noted).
type Approved struct {
	KeepAlive             uint16
	FrequentKeepAlive     uint16
	DirectSessionUpdate   uint8
	PrivateIdleTimeout    uint8
	PageMeTimeout         uint8
	PTTReleaseTime        uint8
	PTTTimeMaxAllowed     uint8
	KidnapPTTDisabled     uint8
	MaxSilence            uint8
	NetworkSignalFloor    uint8
	ComSeqIdleTime        uint8
	ComSeqLocalIdleTime   uint8
	RetryTimer            uint8
	NumRetries            uint8  // 3 bits
	NoSessionEnabled      bool
	MaxFailedPackets      uint8  // 4 bits
	UserInactivity        uint16 // 10 bits
	ServerProtocolVersion uint32
	Privileges            uint64
	SecondaryServer       netip.Addr
	PrimaryServer         netip.Addr
}

func (*Approved) Command() message.Command { return message.CommandApproved }
func (*Approved) isPacket()                {}

func (p *Approved) MarshalBody() ([]byte, error) {
	w := bitcodec.NewWriter(ApprovedSize)
	w.Uint(uint64(p.KeepAlive), 16)
	w.Uint(uint64(p.FrequentKeepAlive), 16)
	for _, v := range p.timers() {
		w.Uint(uint64(*v), 8)
	}
	w.Uint(uint64(p.NumRetries), 3)
	w.Bool(p.NoSessionEnabled)
	w.Uint(uint64(p.MaxFailedPackets), 4)
	w.Uint(uint64(p.UserInactivity), 10)
	w.Uint(uint64(p.ServerProtocolVersion), 32)
	w.Uint(p.Privileges, 64)
	w.Uint(uint64(addrToUint32(p.SecondaryServer)), 32)
	w.Uint(uint64(addrToUint32(p.PrimaryServer)), 32)
	return w.Buffer(), codecError(p.Command(), w.Err())
}

// timers returns the eleven 8-bit fields in wire order.
func (p *Approved) timers() []*uint8 {
	return []*uint8{
		&p.DirectSessionUpdate,
		&p.PrivateIdleTimeout,
		&p.PageMeTimeout,
		&p.PTTReleaseTime,
		&p.PTTTimeMaxAllowed,
		&p.KidnapPTTDisabled,
		&p.MaxSilence,
		&p.NetworkSignalFloor,
		&p.ComSeqIdleTime,
		&p.ComSeqLocalIdleTime,
		&p.RetryTimer,
	}
}

func parseApproved(body []byte) (Packet, error) {
	if err := needBytes(message.CommandApproved, body, ApprovedSize); err != nil {
		return nil, err
	}
	r := bitcodec.NewReader(body)
	p := &Approved{
		KeepAlive:         r.Uint16(16),
		FrequentKeepAlive: r.Uint16(16),
	}
	for _, v := range p.timers() {
		*v = r.Uint8(8)
	}
	p.NumRetries = r.Uint8(3)
	p.NoSessionEnabled = r.Bool()
	p.MaxFailedPackets = r.Uint8(4)
	p.UserInactivity = r.Uint16(10)
	p.ServerProtocolVersion = r.Uint32(32)
	p.Privileges = r.Uint(64)
	p.SecondaryServer = addrFromUint32(r.Uint32(32))
	p.PrimaryServer = addrFromUint32(r.Uint32(32))
	return p, codecError(p.Command(), r.Err())
}

// addrFromUint32 decodes a big-endian IPv4 address.
func addrFromUint32(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// addrToUint32 encodes an IPv4 address; anything else encodes as 0.
func addrToUint32(a netip.Addr) uint32 {
	a = a.Unmap()
	if !a.Is4() {
		return 0
	}
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
