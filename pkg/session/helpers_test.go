package session

import (
	"bytes"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/backkem/ptt/pkg/auth"
	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
)

const (
	testServerID  uint64 = 0x1122334455667788
	testDeviceID  uint64 = 1234
	testUsername         = "999000000000075087"
	testPassword         = "12345"
	testRealm            = "dispatch.realm"
	testURI              = "sip:server"
	testNonce     uint32 = 0x12345678
	testAckServer uint8  = 7
)

var (
	testPrimary   = netip.MustParseAddrPort("82.166.254.181:25000")
	testSecondary = netip.MustParseAddr("10.0.0.2")
)

type sent struct {
	data []byte
	to   netip.AddrPort
}

// recorder is a Sender that records datagrams. It is safe for concurrent
// use so runner tests can share it.
type recorder struct {
	mu   sync.Mutex
	sent []sent
	err  error
	ch   chan sent
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan sent, 64)}
}

func (r *recorder) Send(data []byte, to netip.AddrPort) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	s := sent{data: append([]byte(nil), data...), to: to}
	r.sent = append(r.sent, s)
	select {
	case r.ch <- s:
	default:
	}
	return nil
}

func (r *recorder) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recorder) last(t *testing.T) sent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return r.sent[len(r.sent)-1]
}

func (r *recorder) lastCommand(t *testing.T) message.Command {
	t.Helper()
	var h message.Header
	if _, err := h.Decode(r.last(t).data); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return h.Command
}

// wait returns the next datagram sent after the call, or fails.
func (r *recorder) wait(t *testing.T) sent {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
		return sent{}
	}
}

type audioEvents struct {
	started []SessionInfo
	ended   []SessionInfo
}

func (a *audioEvents) SessionStarted(info SessionInfo) { a.started = append(a.started, info) }
func (a *audioEvents) SessionEnded(info SessionInfo)   { a.ended = append(a.ended, info) }

type observerEvents struct {
	sent        []message.Command
	received    []message.Command
	parseErrors int
	states      []State
	keepAlives  int
	switches    []netip.AddrPort
}

func (o *observerEvents) PacketSent(cmd message.Command)     { o.sent = append(o.sent, cmd) }
func (o *observerEvents) PacketReceived(cmd message.Command) { o.received = append(o.received, cmd) }
func (o *observerEvents) ParseError(error)                   { o.parseErrors++ }
func (o *observerEvents) StateChanged(_, to State)           { o.states = append(o.states, to) }
func (o *observerEvents) KeepAliveSent(int)                  { o.keepAlives++ }
func (o *observerEvents) ServerSwitched(to netip.AddrPort)   { o.switches = append(o.switches, to) }

type fixture struct {
	m     *Machine
	out   *recorder
	audio *audioEvents
	obs   *observerEvents
}

func testConfig(out Sender) Config {
	return Config{
		Credentials: auth.Credentials{Username: testUsername, Password: testPassword},
		Server:      ServerConfig{Primary: testPrimary},
		Sender:      out,
		Uptime:      func() time.Duration { return time.Duration(testDeviceID) * time.Millisecond },
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{out: newRecorder(), audio: &audioEvents{}, obs: &observerEvents{}}
	cfg := testConfig(f.out)
	cfg.AudioSink = f.audio
	cfg.Observer = f.obs
	m, err := NewMachine(cfg)
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	f.m = m
	return f
}

// serverDatagram encodes p as the server would send it.
func serverDatagram(t *testing.T, p packet.Packet) []byte {
	t.Helper()
	h := message.Header{
		ProtocolVersion: message.DefaultProtocolVersion,
		RecipientID:     message.DefaultSenderID,
		SenderID:        testServerID,
	}
	data, err := packet.Encode(h, p)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", p.Command(), err)
	}
	return data
}

// clientDatagram is the exact datagram the client is expected to send.
func clientDatagram(t *testing.T, major, minor uint8, p packet.Packet) []byte {
	t.Helper()
	h := message.Header{
		ProtocolVersion: message.DefaultProtocolVersion,
		SenderID:        message.DefaultSenderID,
		SeqMajor:        major,
		SeqMinor:        minor,
	}
	data, err := packet.Encode(h, p)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", p.Command(), err)
	}
	return data
}

func (f *fixture) deliver(t *testing.T, p packet.Packet) {
	t.Helper()
	if err := f.m.HandleDatagram(serverDatagram(t, p)); err != nil {
		t.Fatalf("HandleDatagram(%s) error = %v", p.Command(), err)
	}
}

func (f *fixture) expectSent(t *testing.T, index int, want []byte) {
	t.Helper()
	f.out.mu.Lock()
	defer f.out.mu.Unlock()
	if len(f.out.sent) <= index {
		t.Fatalf("sent %d datagrams, want more than %d", len(f.out.sent), index)
	}
	if got := f.out.sent[index].data; !bytes.Equal(got, want) {
		t.Errorf("datagram %d =\n%x\nwant\n%x", index, got, want)
	}
}

func (f *fixture) expectState(t *testing.T, want State) {
	t.Helper()
	if got := f.m.State(); got != want {
		t.Fatalf("State() = %s, want %s", got, want)
	}
}

func testChallenge() *packet.Authorize {
	return &packet.Authorize{
		Algorithm:  1,
		AuthMethod: 1,
		URI:        testURI,
		Realm:      testRealm,
		Nonce:      testNonce,
		Opaque:     0xCAFEBABE,
		DeviceID:   testDeviceID,
	}
}

func testApproved() *packet.Approved {
	return &packet.Approved{
		KeepAlive:         30,
		FrequentKeepAlive: 5,
		NumRetries:        3,
		MaxFailedPackets:  2,
		PrimaryServer:     testPrimary.Addr(),
		SecondaryServer:   testSecondary,
	}
}

// handshake drives a fresh fixture to StateReady.
func (f *fixture) handshake(t *testing.T) {
	t.Helper()
	if err := f.m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.deliver(t, &packet.Ack{ServerID: testAckServer})
	f.deliver(t, testChallenge())
	f.deliver(t, &packet.Ack{ServerID: testAckServer})
	f.deliver(t, testApproved())
	f.deliver(t, &packet.Ack{ServerID: testAckServer})
	f.expectState(t, StateReady)
}

func testNewSession() *packet.NewSession {
	return &packet.NewSession{
		SessionID:       0xABCDEF01,
		ControlEndpoint: netip.MustParseAddrPort("10.1.1.1:6000"),
		AudioEndpoint:   netip.MustParseAddrPort("10.1.1.1:6002"),
		PTTEnabled:      true,
		Public:          true,
		Vocoder:         packet.CodecEVRC,
		InitiatorID:     42,
		Priority:        packet.PriorityNormal,
	}
}

// activate drives a Ready fixture into StateSessionActive.
func (f *fixture) activate(t *testing.T) {
	t.Helper()
	f.deliver(t, testNewSession())
	f.deliver(t, &packet.Ack{ServerID: testAckServer})
	f.expectState(t, StateSessionActive)
}
