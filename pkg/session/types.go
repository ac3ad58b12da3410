package session

import (
	"net/netip"
	"time"

	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
)

// Sender delivers an encoded datagram to a server endpoint.
type Sender interface {
	Send(data []byte, to netip.AddrPort) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(data []byte, to netip.AddrPort) error

// Send calls f(data, to).
func (f SenderFunc) Send(data []byte, to netip.AddrPort) error { return f(data, to) }

// AudioSink is notified when the audio path of a session should start and
// stop. Implementations must not call back into the Machine.
type AudioSink interface {
	SessionStarted(info SessionInfo)
	SessionEnded(info SessionInfo)
}

// Observer receives protocol events, typically for metrics.
// Implementations must not block.
type Observer interface {
	PacketSent(cmd message.Command)
	PacketReceived(cmd message.Command)
	ParseError(err error)
	StateChanged(from, to State)
	KeepAliveSent(missed int)
	ServerSwitched(to netip.AddrPort)
}

// SessionInfo is captured from a NewSession request and lives until the
// session ends, the client re-registers, or a session-scoped Error arrives.
type SessionInfo struct {
	SessionID       uint64
	InitiatorID     uint64
	ControlEndpoint netip.AddrPort
	AudioEndpoint   netip.AddrPort
	Vocoder         packet.CodecMask
	Flags           uint8
	Type            packet.SessionType
	Priority        packet.SessionPriority
	Initiator       bool
	PTTEnabled      bool
	EarlyMedia      bool
}

func sessionInfoFrom(p *packet.NewSession) SessionInfo {
	return SessionInfo{
		SessionID:       p.SessionID,
		InitiatorID:     p.InitiatorID,
		ControlEndpoint: p.ControlEndpoint,
		AudioEndpoint:   p.AudioEndpoint,
		Vocoder:         p.Vocoder,
		Flags:           p.SessionFlags,
		Type:            p.Type(),
		Priority:        p.Priority,
		Initiator:       p.Initiator,
		PTTEnabled:      p.PTTEnabled,
		EarlyMedia:      p.EarlyMedia,
	}
}

// KeepAliveConfig is learned from Approved. Intervals are in server units;
// the Runner converts them to a duration.
type KeepAliveConfig struct {
	Interval         uint16
	FrequentInterval uint16
	// MaxFailedPackets is the number of unanswered keep-alives tolerated
	// before switching to the secondary server.
	MaxFailedPackets uint8
}

// Enabled returns true if a periodic keep-alive is configured.
func (k KeepAliveConfig) Enabled() bool {
	return k.Interval > 0
}

// Period converts Interval to a duration using the given unit.
func (k KeepAliveConfig) Period(unit time.Duration) time.Duration {
	return time.Duration(k.Interval) * unit
}

// ServerConfig holds the servers the client may talk to. Approved replaces
// the addresses while keeping the configured port.
type ServerConfig struct {
	Primary   netip.AddrPort
	Secondary netip.AddrPort
}

// HasSecondary returns true if a distinct fail-over server is known.
func (s ServerConfig) HasSecondary() bool {
	return s.Secondary.IsValid() && !s.Secondary.Addr().IsUnspecified() && s.Secondary != s.Primary
}

// learn updates the addresses from an Approved datagram. Zero addresses are
// ignored.
func (s ServerConfig) learn(p *packet.Approved) ServerConfig {
	port := s.Primary.Port()
	if p.PrimaryServer.IsValid() && !p.PrimaryServer.IsUnspecified() {
		s.Primary = netip.AddrPortFrom(p.PrimaryServer, port)
	}
	if p.SecondaryServer.IsValid() && !p.SecondaryServer.IsUnspecified() {
		s.Secondary = netip.AddrPortFrom(p.SecondaryServer, port)
	}
	return s
}

// Floor describes who currently holds the talk permission of the session.
type Floor struct {
	SessionID  uint64
	Busy       bool
	Local      bool // held by this client
	TalkerID   uint64
	TalkerName string
	Priority   uint8
	Alert      bool
}
