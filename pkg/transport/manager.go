package transport

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/pion/logging"
)

// Manager owns the client's control endpoint and, when enabled, its audio
// endpoint.
type Manager struct {
	control *UDP
	audio   *UDP

	mu      sync.RWMutex
	started bool
	closed  bool
}

// ManagerConfig configures the transport manager.
type ManagerConfig struct {
	// ControlPort is the local control port. Zero picks an ephemeral port.
	ControlPort int

	// AudioPort is the local audio port. Zero picks an ephemeral port.
	AudioPort int

	// AudioEnabled opens the audio endpoint.
	AudioEnabled bool

	// ControlHandler is called for each control datagram.
	// Required.
	ControlHandler MessageHandler

	// AudioHandler is called for each audio datagram.
	// Required when AudioEnabled is set.
	AudioHandler MessageHandler

	// ControlConn is an optional pre-existing connection for testing.
	ControlConn net.PacketConn

	// AudioConn is an optional pre-existing connection for testing.
	AudioConn net.PacketConn

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewManager creates a new transport manager with the given configuration.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.ControlHandler == nil {
		return nil, ErrNoHandler
	}
	if config.AudioEnabled && config.AudioHandler == nil {
		return nil, fmt.Errorf("audio channel: %w", ErrNoHandler)
	}

	m := &Manager{}

	control, err := NewUDP(UDPConfig{
		Conn:           config.ControlConn,
		ListenAddr:     fmt.Sprintf(":%d", config.ControlPort),
		Channel:        ChannelControl,
		MessageHandler: config.ControlHandler,
		LoggerFactory:  config.LoggerFactory,
	})
	if err != nil {
		return nil, fmt.Errorf("creating control transport: %w", err)
	}
	m.control = control

	if config.AudioEnabled {
		audio, err := NewUDP(UDPConfig{
			Conn:           config.AudioConn,
			ListenAddr:     fmt.Sprintf(":%d", config.AudioPort),
			Channel:        ChannelAudio,
			MessageHandler: config.AudioHandler,
			LoggerFactory:  config.LoggerFactory,
		})
		if err != nil {
			m.control.conn.Close()
			return nil, fmt.Errorf("creating audio transport: %w", err)
		}
		m.audio = audio
	}

	return m, nil
}

// Start begins listening on all enabled endpoints.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	if err := m.control.Start(); err != nil {
		return fmt.Errorf("starting control transport: %w", err)
	}

	if m.audio != nil {
		if err := m.audio.Start(); err != nil {
			m.control.Stop()
			return fmt.Errorf("starting audio transport: %w", err)
		}
	}

	return nil
}

// Stop closes all endpoints.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.mu.Unlock()

	var errs []error

	if err := m.control.Stop(); err != nil && err != ErrClosed {
		errs = append(errs, fmt.Errorf("stopping control: %w", err))
	}

	if m.audio != nil {
		if err := m.audio.Stop(); err != nil && err != ErrClosed {
			errs = append(errs, fmt.Errorf("stopping audio: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Send sends a datagram to the specified peer.
// The endpoint is selected by PeerAddress.Channel.
func (m *Manager) Send(data []byte, peer PeerAddress) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	m.mu.RUnlock()

	if !peer.IsValid() {
		return ErrInvalidAddress
	}

	switch peer.Channel {
	case ChannelControl:
		return m.control.Send(data, peer.Addr)
	case ChannelAudio:
		if m.audio == nil {
			return ErrChannelDisabled
		}
		return m.audio.Send(data, peer.Addr)
	default:
		return ErrInvalidAddress
	}
}

// SendControl sends a signaling datagram.
func (m *Manager) SendControl(data []byte, to netip.AddrPort) error {
	return m.Send(data, NewControlPeer(to))
}

// LocalAddresses returns all local addresses the manager is listening on.
func (m *Manager) LocalAddresses() []net.Addr {
	addrs := []net.Addr{m.control.LocalAddr()}
	if m.audio != nil {
		addrs = append(addrs, m.audio.LocalAddr())
	}
	return addrs
}

// Control returns the control endpoint.
func (m *Manager) Control() *UDP {
	return m.control
}

// Audio returns the audio endpoint, or nil if not enabled.
func (m *Manager) Audio() *UDP {
	return m.audio
}
