package session

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/backkem/ptt/pkg/auth"
	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/pion/logging"
)

// Config configures a Machine.
type Config struct {
	// Identity stamps every outbound header.
	// Zero value uses message.DefaultIdentity().
	Identity message.Identity

	// Credentials are the login credentials. DeviceID is overwritten on
	// every registration attempt.
	Credentials auth.Credentials

	// Server is the initial server configuration. Primary is required.
	Server ServerConfig

	// Sender delivers outbound datagrams. Required.
	Sender Sender

	// AudioSink is notified about session start and end. Optional.
	AudioSink AudioSink

	// Observer receives protocol events. Optional.
	Observer Observer

	// Uptime returns the client uptime used as the device id.
	// Defaults to the time elapsed since NewMachine.
	Uptime func() time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Sender == nil {
		return ErrNoSender
	}
	if !c.Server.Primary.IsValid() {
		return ErrNoServer
	}
	return c.Credentials.Validate()
}

func (c *Config) applyDefaults() {
	if c.Identity == (message.Identity{}) {
		c.Identity = message.DefaultIdentity()
	}
	if c.Uptime == nil {
		start := time.Now()
		c.Uptime = func() time.Duration { return time.Since(start) }
	}
}

// Machine is the client protocol state machine. It is not safe for
// concurrent use.
type Machine struct {
	identity message.Identity
	solver   *auth.Solver
	sender   Sender
	audio    AudioSink
	obs      Observer
	uptime   func() time.Duration
	log      logging.LeveledLogger

	state State
	seq   message.SequenceState
	prev  message.Command

	servers ServerConfig
	active  netip.AddrPort

	challenge *auth.Challenge
	approved  *packet.Approved
	keepAlive KeepAliveConfig
	missed    int
	serverID  uint8

	session *SessionInfo
	floor   Floor
	dir     *Directory
}

// NewMachine creates a machine in StateUnregistered. Nothing is sent until
// Start is called.
func NewMachine(config Config) (*Machine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	m := &Machine{
		identity: config.Identity,
		solver:   auth.NewSolver(config.Credentials, config.LoggerFactory),
		sender:   config.Sender,
		audio:    config.AudioSink,
		obs:      config.Observer,
		uptime:   config.Uptime,
		state:    StateUnregistered,
		prev:     message.CommandRegister,
		servers:  config.Server,
		active:   config.Server.Primary,
		dir:      NewDirectory(),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("session")
	}
	return m, nil
}

// Start sends the initial Register.
func (m *Machine) Start() error {
	return m.Register()
}

// Register (re)starts the login. Any pending or active session is dropped.
func (m *Machine) Register() error {
	m.endSession()
	m.challenge = nil
	return m.sendRegister(StateAwaitingRegisterAck)
}

func (m *Machine) sendRegister(next State) error {
	deviceID := uint64(m.uptime().Milliseconds())
	m.solver.Credentials.DeviceID = deviceID
	if err := m.send(packet.NewRegister(deviceID)); err != nil {
		return err
	}
	m.setState(next)
	return nil
}

// HandleDatagram parses and handles one inbound datagram. Parse errors are
// returned without touching any state.
func (m *Machine) HandleDatagram(data []byte) error {
	if m.log != nil {
		m.log.Tracef("rx bits %s", bitcodec.FormatBits(data))
	}
	f, err := packet.Parse(data)
	if err != nil {
		if m.obs != nil {
			m.obs.ParseError(err)
		}
		return fmt.Errorf("discarding datagram: %w", err)
	}
	return m.Handle(f)
}

// Handle processes a decoded frame.
func (m *Machine) Handle(f *packet.Frame) error {
	cmd := f.Header.Command
	m.seq = m.seq.Observe(cmd)
	m.missed = 0
	if m.obs != nil {
		m.obs.PacketReceived(cmd)
	}
	if m.log != nil {
		m.log.Debugf("rx %s from %s in %s", f.Header.String(), m.active, m.state)
	}

	switch p := f.Packet.(type) {
	case *packet.Ack:
		return m.onAck(p)
	case *packet.Authorize:
		return m.onAuthorize(p)
	case *packet.Approved:
		return m.onApproved(p)
	case *packet.KeepAlive, *packet.PABSyncRequest:
		return m.sendAck()
	case *packet.NewSession:
		return m.onNewSession(p)
	case *packet.Error:
		return m.onError(p)
	case *packet.EnablePTT:
		return m.onEnablePTT(p)
	case *packet.DisablePTT:
		return m.onDisablePTT(p)
	case *packet.EndSession:
		return m.onEndSession(p)
	case *packet.Unrecognized:
		if m.log != nil {
			m.log.Debugf("ignoring unrecognized %s (%d byte body)", p.Cmd, len(p.Body))
		}
		return nil
	}

	if m.dir.Apply(f.Packet) {
		if m.state == StateSyncingDirectory {
			m.setState(StateReady)
		}
		return m.sendAck()
	}

	if m.log != nil {
		m.log.Debugf("ignoring %s in %s", cmd, m.state)
	}
	return nil
}

func (m *Machine) onAck(p *packet.Ack) error {
	m.serverID = p.ServerID

	switch m.prev {
	case message.CommandRegister:
		// The Ack of the Register sent after authorization is followed by
		// Approved; stay in AwaitingApproval.
		if m.state == StateAwaitingRegisterAck {
			m.setState(StateUnauthorized)
		}
	case message.CommandAuthorize:
		m.setState(StateAuthorized)
		return m.sendRegister(StateAwaitingApproval)
	case message.CommandPABSyncRequest:
		if m.state == StateSyncingDirectory {
			m.setState(StateReady)
		}
	case message.CommandPending:
		return m.acceptSession()
	case message.CommandEnablePTT:
		if m.session != nil {
			m.floor = Floor{SessionID: m.session.SessionID, Busy: true, Local: true, TalkerID: m.identity.SenderID}
		}
	case message.CommandDisablePTT:
		if m.session != nil {
			m.floor = Floor{SessionID: m.session.SessionID}
		}
	}
	return nil
}

func (m *Machine) onAuthorize(p *packet.Authorize) error {
	m.challenge = auth.ChallengeFrom(p)
	return m.AnswerChallenge()
}

// AnswerChallenge sends the answer to the captured Authorize challenge.
// The challenge is consumed once the answer has been sent; after a
// transport failure it stays captured so the answer can be retried.
func (m *Machine) AnswerChallenge() error {
	reply, err := m.solver.Reply(m.challenge, m.prev)
	if err != nil {
		return err
	}
	if m.log != nil {
		m.log.Infof("answering challenge realm=%q with method %s", reply.Realm, reply.Method)
	}
	if err := m.send(reply); err != nil {
		return err
	}
	m.challenge = nil
	m.setState(StateAwaitingAuthorizeAck)
	return nil
}

func (m *Machine) onApproved(p *packet.Approved) error {
	m.approved = p
	m.keepAlive = KeepAliveConfig{
		Interval:         p.KeepAlive,
		FrequentInterval: p.FrequentKeepAlive,
		MaxFailedPackets: p.MaxFailedPackets,
	}
	onPrimary := m.active == m.servers.Primary
	m.servers = m.servers.learn(p)
	if onPrimary {
		m.active = m.servers.Primary
	}
	m.setState(StateApproved)
	if m.log != nil {
		m.log.Infof("approved: keep-alive %d, primary %s, secondary %s", p.KeepAlive, m.servers.Primary, m.servers.Secondary)
	}

	if err := m.send(&packet.PABSyncRequest{}); err != nil {
		return err
	}
	m.setState(StateSyncingDirectory)
	return nil
}

func (m *Machine) onNewSession(p *packet.NewSession) error {
	if m.session != nil && m.session.SessionID != p.SessionID {
		if m.log != nil {
			m.log.Infof("session %d replaced by %d", m.session.SessionID, p.SessionID)
		}
		m.endSession()
	}
	info := sessionInfoFrom(p)
	m.session = &info
	m.floor = Floor{SessionID: p.SessionID}

	if err := m.send(&packet.Pending{SessionID: p.SessionID}); err != nil {
		return err
	}
	m.setState(StateSessionPending)
	return nil
}

func (m *Machine) acceptSession() error {
	if m.session == nil {
		return ErrNoSession
	}
	if err := m.send(&packet.Accept{SessionID: m.session.SessionID}); err != nil {
		return err
	}
	m.setState(StateSessionActive)
	if m.audio != nil {
		m.audio.SessionStarted(*m.session)
	}
	return nil
}

func (m *Machine) onError(p *packet.Error) error {
	if m.log != nil {
		m.log.Warnf("server error for session %d: %s", p.SessionID, p.Reason)
	}
	switch {
	case p.Reason.RequiresReauth():
		return m.Register()
	case m.session != nil && p.SessionID == m.session.SessionID:
		m.endSession()
		m.setState(StateReady)
	}
	return nil
}

// onEndSession closes the pending or active session. A zero session id
// refers to the current one.
func (m *Machine) onEndSession(p *packet.EndSession) error {
	if m.session == nil || (p.SessionID != 0 && p.SessionID != m.session.SessionID) {
		return nil
	}
	if m.log != nil {
		m.log.Infof("session %d ended by server", m.session.SessionID)
	}
	m.endSession()
	m.setState(StateReady)
	return nil
}

func (m *Machine) onEnablePTT(p *packet.EnablePTT) error {
	if m.session != nil && m.session.SessionID == p.SessionID {
		m.floor = Floor{SessionID: p.SessionID, Busy: true}
	}
	return m.sendAck()
}

func (m *Machine) onDisablePTT(p *packet.DisablePTT) error {
	if m.session != nil && m.session.SessionID == p.SessionID {
		m.floor = Floor{
			SessionID:  p.SessionID,
			Busy:       p.TalkerID != 0,
			TalkerID:   p.TalkerID,
			TalkerName: p.TalkerName,
			Priority:   p.Priority,
			Alert:      p.Alert,
		}
	}
	return m.sendAck()
}

func (m *Machine) sendAck() error {
	return m.send(&packet.Ack{ServerID: m.serverID})
}

// RequestFloor asks for the talk permission of the active session.
func (m *Machine) RequestFloor() error {
	if m.session == nil || m.state != StateSessionActive {
		return ErrNoSession
	}
	return m.send(&packet.EnablePTT{SessionID: m.session.SessionID})
}

// ReleaseFloor gives up the talk permission of the active session.
func (m *Machine) ReleaseFloor() error {
	if m.session == nil || m.state != StateSessionActive {
		return ErrNoSession
	}
	return m.send(&packet.DisablePTT{
		SessionID: m.session.SessionID,
		TalkerID:  m.identity.SenderID,
		DeviceID:  m.solver.Credentials.DeviceID,
		Priority:  uint8(m.session.Priority),
	})
}

// CreateAdHoc asks the server to open an ad-hoc session with the given
// participants.
func (m *Machine) CreateAdHoc(ids ...uint64) error {
	if !m.state.IsApproved() {
		return ErrNotApproved
	}
	return m.send(&packet.CreateAdHoc{IDs: ids})
}

// Tick is driven by the keep-alive timer. It sends a KeepAlive once
// approved and fails over to the secondary server after more than
// MaxFailedPackets ticks without any inbound datagram.
func (m *Machine) Tick() error {
	if !m.keepAlive.Enabled() || m.state == StateUnregistered {
		return nil
	}
	if m.missed > int(m.keepAlive.MaxFailedPackets) {
		m.missed = 0
		if m.servers.HasSecondary() {
			m.switchServer()
		}
		return m.Register()
	}
	m.missed++
	if !m.state.IsApproved() {
		return nil
	}
	if m.obs != nil {
		m.obs.KeepAliveSent(m.missed)
	}
	return m.send(&packet.KeepAlive{})
}

func (m *Machine) switchServer() {
	if m.active == m.servers.Primary {
		m.active = m.servers.Secondary
	} else {
		m.active = m.servers.Primary
	}
	if m.log != nil {
		m.log.Warnf("no answer from server, switching to %s", m.active)
	}
	if m.obs != nil {
		m.obs.ServerSwitched(m.active)
	}
}

// Close drops the current session and returns to StateUnregistered.
// Nothing is sent.
func (m *Machine) Close() {
	m.endSession()
	m.setState(StateUnregistered)
}

func (m *Machine) endSession() {
	if m.session == nil {
		return
	}
	info := *m.session
	wasActive := m.state == StateSessionActive
	m.session = nil
	m.floor = Floor{}
	if wasActive && m.audio != nil {
		m.audio.SessionEnded(info)
	}
}

// send encodes p behind the next outbound header and hands it to the
// Sender. Sequence and previous command only advance on success.
func (m *Machine) send(p packet.Packet) error {
	cmd := p.Command()
	seq := m.seq.Next(cmd)
	h := message.NewOutbound(m.identity, seq, cmd)
	data, err := packet.Encode(h, p)
	if err != nil {
		return err
	}

	if m.log != nil {
		m.log.Debugf("tx %s to %s (%d bytes)", h.String(), m.active, len(data))
		m.log.Tracef("tx bits %s", bitcodec.FormatBits(data))
	}

	if err := m.sender.Send(data, m.active); err != nil {
		if m.log != nil {
			m.log.Warnf("send %s failed: %v", cmd, err)
		}
		return fmt.Errorf("%w: sending %s: %w", ErrTransportFailure, cmd, err)
	}

	m.seq = seq
	m.prev = cmd
	if m.obs != nil {
		m.obs.PacketSent(cmd)
	}
	return nil
}

func (m *Machine) setState(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	if m.log != nil {
		m.log.Infof("state %s -> %s", from, to)
	}
	if m.obs != nil {
		m.obs.StateChanged(from, to)
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Sequence returns the sequence state of the last sent header.
func (m *Machine) Sequence() message.SequenceState { return m.seq }

// PreviousCommand returns the command sent last.
func (m *Machine) PreviousCommand() message.Command { return m.prev }

// KeepAlive returns the keep-alive configuration learned from Approved.
func (m *Machine) KeepAlive() KeepAliveConfig { return m.keepAlive }

// Approved returns the last Approved datagram, or nil.
func (m *Machine) Approved() *packet.Approved { return m.approved }

// Servers returns the known server addresses.
func (m *Machine) Servers() ServerConfig { return m.servers }

// ActiveServer returns the server datagrams are currently sent to.
func (m *Machine) ActiveServer() netip.AddrPort { return m.active }

// DeviceID returns the device id of the current registration.
func (m *Machine) DeviceID() uint64 { return m.solver.Credentials.DeviceID }

// Session returns the pending or active session.
func (m *Machine) Session() (SessionInfo, bool) {
	if m.session == nil {
		return SessionInfo{}, false
	}
	return *m.session, true
}

// Floor returns the floor state of the current session.
func (m *Machine) Floor() Floor { return m.floor }

// Directory returns the synchronized directory.
func (m *Machine) Directory() *Directory { return m.dir }
