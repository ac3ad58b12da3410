package transport

import (
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/backkem/ptt/pkg/message"
	"github.com/pion/logging"
)

// Default client ports announced in Register.
const (
	DefaultControlPort = 57457
	DefaultAudioPort   = 57458
)

// UDP is one datagram endpoint. It wraps a net.PacketConn and runs a read
// loop that calls the configured MessageHandler for each datagram.
type UDP struct {
	conn    net.PacketConn
	channel Channel
	handler MessageHandler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a new connection will be created using ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the address to listen on (e.g., ":57457").
	// Ignored if Conn is provided.
	ListenAddr string

	// Channel tags received messages. Default: ChannelControl.
	Channel Channel

	// MessageHandler is called for each received message.
	// Required.
	MessageHandler MessageHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewUDP creates a new UDP transport with the given configuration.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}
	if !config.Channel.IsValid() {
		config.Channel = ChannelControl
	}

	u := &UDP{
		conn:    config.Conn,
		channel: config.Channel,
		handler: config.MessageHandler,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		u.log = config.LoggerFactory.NewLogger("transport-udp")
	}

	if u.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}

		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}

	return u, nil
}

// Start begins the read loop for receiving messages.
// Messages are delivered to the configured MessageHandler.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Infof("starting %s UDP transport on %s", u.channel, u.conn.LocalAddr())
	}

	u.wg.Add(1)
	go u.readLoop()

	return nil
}

// Stop closes the transport and waits for the read loop to exit.
func (u *UDP) Stop() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Infof("stopping %s UDP transport", u.channel)
	}

	close(u.closeCh)

	// Unblock a pending read.
	u.conn.SetReadDeadline(time.Now())
	u.conn.Close()
	u.wg.Wait()

	return nil
}

// Send sends a datagram to the specified endpoint.
func (u *UDP) Send(data []byte, to netip.AddrPort) error {
	u.mu.RLock()
	if u.closed {
		u.mu.RUnlock()
		return ErrClosed
	}
	u.mu.RUnlock()

	if !to.IsValid() {
		return ErrInvalidAddress
	}

	if len(data) > message.MaxUDPMessageSize {
		return ErrMessageTooLarge
	}

	if u.log != nil {
		u.log.Debugf("sending %d bytes to %s", len(data), to)
	}

	if _, err := u.conn.WriteTo(data, net.UDPAddrFromAddrPort(to)); err != nil {
		if u.log != nil {
			u.log.Warnf("send failed: %v", err)
		}
		return err
	}

	return nil
}

// LocalAddr returns the local address the transport is listening on.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Channel returns the channel this endpoint serves.
func (u *UDP) Channel() Channel {
	return u.channel
}

// readLoop reads datagrams from the connection and dispatches them.
func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, message.MaxUDPMessageSize)

	for {
		select {
		case <-u.closeCh:
			return
		default:
		}

		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.closeCh:
				return
			default:
				if u.log != nil {
					u.log.Warnf("UDP read error: %v", err)
				}
				continue
			}
		}

		if n == 0 {
			continue
		}

		from, ok := addrPortOf(addr)
		if !ok {
			if u.log != nil {
				u.log.Warnf("dropping %d bytes from unsupported address %v", n, addr)
			}
			continue
		}

		// The handler may keep the slice.
		data := make([]byte, n)
		copy(data, buf[:n])

		if u.log != nil {
			u.log.Debugf("received %d bytes from %s", n, from)
		}

		u.handler(&ReceivedMessage{
			Data:     data,
			PeerAddr: PeerAddress{Addr: from, Channel: u.channel},
		})
	}
}
