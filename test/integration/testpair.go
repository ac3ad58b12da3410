// Package integration contains end-to-end tests that run the client
// against scripted servers on loopback UDP sockets.
package integration

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/backkem/ptt/pkg/packet"
	"github.com/backkem/ptt/pkg/ptt"
	"github.com/backkem/ptt/pkg/session"
	"github.com/pion/logging"
)

// listenLoopback opens a UDP socket on an ephemeral loopback port.
func listenLoopback(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return conn
}

// newServer starts a scripted server on a loopback socket.
func newServer(t *testing.T) *ptt.TestServer {
	t.Helper()
	s := ptt.NewTestServer(listenLoopback(t))
	t.Cleanup(func() { s.Close() })
	return s
}

// Harness is a client talking real UDP to one or two scripted servers.
type Harness struct {
	Client    *ptt.Client
	Primary   *ptt.TestServer
	Secondary *ptt.TestServer

	// AudioAddr is the client's audio endpoint, nil unless audio is enabled.
	AudioAddr net.Addr

	t *testing.T
}

// HarnessConfig configures NewHarness.
type HarnessConfig struct {
	// Secondary adds a fail-over server.
	Secondary bool

	// KeepAliveUnit scales the Approved keep-alive interval.
	// Defaults to 20ms so fail-over happens quickly.
	KeepAliveUnit time.Duration

	// Modify adjusts the client config before the client is created.
	Modify func(*ptt.ClientConfig)
}

// NewHarness creates and starts a client bound to loopback sockets.
func NewHarness(t *testing.T, config HarnessConfig) *Harness {
	t.Helper()
	if config.KeepAliveUnit == 0 {
		config.KeepAliveUnit = 20 * time.Millisecond
	}

	h := &Harness{t: t, Primary: newServer(t)}

	cc := ptt.TestClientConfig()
	cc.Server = h.Primary.Addr().String()
	cc.ControlConn = listenLoopback(t)
	cc.KeepAliveUnit = config.KeepAliveUnit
	if testing.Verbose() {
		cc.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if config.Secondary {
		h.Secondary = newServer(t)
		cc.SecondaryServer = h.Secondary.Addr().String()
	}
	if config.Modify != nil {
		config.Modify(&cc)
	}
	if cc.AudioEnabled && cc.AudioConn == nil {
		cc.AudioConn = listenLoopback(t)
	}
	if cc.AudioConn != nil {
		h.AudioAddr = cc.AudioConn.LocalAddr()
	}

	client, err := ptt.NewClient(cc)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	h.Client = client
	t.Cleanup(func() { client.Stop() })

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return h
}

// Login runs the full handshake against the primary server and waits for
// the client to become ready.
func (h *Harness) Login(ctx context.Context, approved *packet.Approved) {
	h.t.Helper()
	if err := h.Primary.Handshake(ctx, Challenge(), approved); err != nil {
		h.t.Fatalf("Handshake() error = %v", err)
	}
	h.WaitState(session.StateReady)
}

// WaitState polls the client state until it equals want.
func (h *Harness) WaitState(want session.State) {
	h.t.Helper()
	Eventually(h.t, want.String(), func() bool { return h.Client.State() == want })
}

// Challenge returns a fixed Authorize challenge.
func Challenge() *packet.Authorize {
	return &packet.Authorize{
		Algorithm:  1,
		AuthMethod: 1,
		URI:        "sip:dispatch",
		Realm:      "dispatch.realm",
		Nonce:      0x12345678,
	}
}

// Approved returns an approval with the given keep-alive interval and
// failure budget. Server addresses are left unset so the configured ones
// stay in use.
func Approved(keepAlive uint16, maxFailed uint8) *packet.Approved {
	return &packet.Approved{
		KeepAlive:        keepAlive,
		MaxFailedPackets: maxFailed,
		PrimaryServer:    netip.IPv4Unspecified(),
		SecondaryServer:  netip.IPv4Unspecified(),
	}
}

// Eventually polls cond until it holds or two seconds pass.
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestContext returns a context cancelled when the test ends or after
// five seconds.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
