package ptt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/backkem/ptt/pkg/transport"
)

// TestServerID is the sender id stamped on TestServer datagrams.
const TestServerID uint64 = 0x1122334455667788

// errNoPeer is returned by TestServer.Send before the client sent anything.
var errNoPeer = errors.New("ptt: test server has not heard from a client")

// TestServer is a scripted dispatch server on a packet conn, either one end
// of a transport.Pipe or a loopback UDP socket. Tests read what the client
// sent with Next and answer with Send, which targets the last sender.
type TestServer struct {
	conn net.PacketConn
	rx   chan *packet.Frame

	mu   sync.Mutex
	peer net.Addr
	errs []error

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewTestServer serves on conn until Close.
func NewTestServer(conn net.PacketConn) *TestServer {
	s := &TestServer{
		conn:    conn,
		rx:      make(chan *packet.Frame, 64),
		closeCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

func (s *TestServer) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, message.MaxUDPMessageSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.peer = from
		s.mu.Unlock()
		f, err := packet.Parse(append([]byte(nil), buf[:n]...))
		if err != nil {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
			continue
		}
		select {
		case s.rx <- f:
		case <-s.closeCh:
			return
		}
	}
}

// Addr returns the server address the client should be configured with.
func (s *TestServer) Addr() netip.AddrPort {
	if u, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		ap := u.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.MustParseAddrPort(s.conn.LocalAddr().String())
}

// Peer returns the address the client last sent from, or nil.
func (s *TestServer) Peer() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Next returns the next datagram sent by the client.
func (s *TestServer) Next(ctx context.Context) (*packet.Frame, error) {
	select {
	case f := <-s.rx:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Expect returns the next datagram and checks its command.
func (s *TestServer) Expect(ctx context.Context, cmd message.Command) (*packet.Frame, error) {
	f, err := s.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", cmd, err)
	}
	if f.Header.Command != cmd {
		return f, fmt.Errorf("got %s, want %s", f.Header.Command, cmd)
	}
	return f, nil
}

// Send delivers p to the client.
func (s *TestServer) Send(p packet.Packet) error {
	h := message.Header{
		ProtocolVersion: message.DefaultProtocolVersion,
		RecipientID:     message.DefaultSenderID,
		SenderID:        TestServerID,
	}
	data, err := packet.Encode(h, p)
	if err != nil {
		return err
	}
	return s.SendRaw(data)
}

// SendRaw delivers an arbitrary datagram to the client.
func (s *TestServer) SendRaw(data []byte) error {
	peer := s.Peer()
	if peer == nil {
		return errNoPeer
	}
	_, err := s.conn.WriteTo(data, peer)
	return err
}

// ParseErrors returns datagrams from the client that failed to parse.
func (s *TestServer) ParseErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// Handshake scripts a full login: it acknowledges the Register, issues
// challenge, acknowledges the answer, approves the second Register and
// acknowledges the directory sync request.
func (s *TestServer) Handshake(ctx context.Context, challenge *packet.Authorize, approved *packet.Approved) error {
	steps := []struct {
		want  message.Command
		reply []packet.Packet
	}{
		{message.CommandRegister, []packet.Packet{&packet.Ack{}, challenge}},
		{message.CommandAuthorize, []packet.Packet{&packet.Ack{}}},
		{message.CommandRegister, []packet.Packet{approved}},
		{message.CommandPABSyncRequest, []packet.Packet{&packet.Ack{}}},
	}
	for _, step := range steps {
		if _, err := s.Expect(ctx, step.want); err != nil {
			return err
		}
		for _, p := range step.reply {
			if err := s.Send(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close stops the server read loop.
func (s *TestServer) Close() error {
	select {
	case <-s.closeCh:
		return nil
	default:
	}
	close(s.closeCh)
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

// TestClientConfig returns a ClientConfig suitable for testing.
func TestClientConfig() ClientConfig {
	return ClientConfig{
		Username: "999000000000075087",
		Password: "12345",
	}
}

// TestPair is a client wired to a TestServer over an in-memory pipe.
type TestPair struct {
	Client *Client
	Server *TestServer
	Pipe   *transport.Pipe
}

// NewTestPair creates a client and a scripted server connected by a pipe.
// The client is not started. Server and ControlConn in config are
// overwritten; audio stays disabled.
func NewTestPair(config ClientConfig) (*TestPair, error) {
	pipe := transport.NewPipe()
	server := NewTestServer(pipe.Conn1())

	config.Server = server.Addr().String()
	config.ControlConn = pipe.Conn0()
	config.AudioEnabled = false

	client, err := NewClient(config)
	if err != nil {
		server.Close()
		pipe.Close()
		return nil, err
	}
	return &TestPair{Client: client, Server: server, Pipe: pipe}, nil
}

// Close stops the client, the server and the pipe.
func (p *TestPair) Close() {
	p.Client.Stop()
	p.Server.Close()
	p.Pipe.Close()
}
