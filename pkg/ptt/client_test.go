package ptt

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/metrics"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/backkem/ptt/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func testChallenge() *packet.Authorize {
	return &packet.Authorize{
		Algorithm:  1,
		AuthMethod: 1,
		URI:        "sip:server",
		Realm:      "dispatch.realm",
		Nonce:      0x12345678,
	}
}

func testApproved() *packet.Approved {
	return &packet.Approved{
		KeepAlive:        30,
		MaxFailedPackets: 2,
		PrimaryServer:    netip.MustParseAddr("127.0.0.1"),
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// eventually polls cond until it holds or the timeout expires.
func eventually(t *testing.T, what string, cond func() bool) {
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

func newStartedPair(t *testing.T, config ClientConfig) *TestPair {
	t.Helper()
	pair, err := NewTestPair(config)
	if err != nil {
		t.Fatalf("NewTestPair() error = %v", err)
	}
	t.Cleanup(pair.Close)
	if err := pair.Client.Start(testContext(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return pair
}

func loggedIn(t *testing.T, config ClientConfig) *TestPair {
	t.Helper()
	pair := newStartedPair(t, config)
	if err := pair.Server.Handshake(testContext(t), testChallenge(), testApproved()); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	eventually(t, "StateReady", func() bool { return pair.Client.State() == session.StateReady })
	return pair
}

func TestClientHandshake(t *testing.T) {
	reg := prometheus.NewRegistry()
	var transitions []session.State
	stateCh := make(chan session.State, 16)

	config := TestClientConfig()
	config.Metrics = metrics.New(metrics.WithRegistry(reg))
	config.OnStateChanged = func(from, to session.State) { stateCh <- to }

	loggedIn(t, config)

	ctx := testContext(t)
	for len(transitions) == 0 || transitions[len(transitions)-1] != session.StateReady {
		select {
		case s := <-stateCh:
			transitions = append(transitions, s)
		case <-ctx.Done():
			t.Fatalf("transitions = %v, never reached Ready", transitions)
		}
	}
	want := []session.State{
		session.StateAwaitingRegisterAck,
		session.StateUnauthorized,
		session.StateAwaitingAuthorizeAck,
		session.StateAuthorized,
		session.StateAwaitingApproval,
		session.StateApproved,
		session.StateSyncingDirectory,
		session.StateReady,
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	sent := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "ptt_client_packets_sent_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			sent[labelValue(m, "command")] = m.GetCounter().GetValue()
		}
	}
	if sent["Register"] != 2 || sent["Authorize"] != 1 || sent["PABSyncRequest"] != 1 {
		t.Errorf("packets_sent_total = %v, want Register=2 Authorize=1 PABSyncRequest=1", sent)
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestClientAuthorizeDigest(t *testing.T) {
	pair := newStartedPair(t, TestClientConfig())
	ctx := testContext(t)
	s := pair.Server

	if _, err := s.Expect(ctx, message.CommandRegister); err != nil {
		t.Fatal(err)
	}
	s.Send(&packet.Ack{})
	s.Send(testChallenge())

	f, err := s.Expect(ctx, message.CommandAuthorize)
	if err != nil {
		t.Fatal(err)
	}
	a := f.Packet.(*packet.Authorize)
	if a.Method != "REGISTER" {
		t.Errorf("Method = %q, want REGISTER", a.Method)
	}
	if a.Username != "999000000000075087" {
		t.Errorf("Username = %q", a.Username)
	}
	if a.Nonce != 0x12345678 || a.Realm != "dispatch.realm" || a.URI != "sip:server" {
		t.Errorf("challenge not echoed: %+v", a)
	}
	if a.Response == ([16]byte{}) {
		t.Error("Response is empty")
	}
}

func TestClientSessionAndFloor(t *testing.T) {
	pair := loggedIn(t, TestClientConfig())
	ctx := testContext(t)
	s, c := pair.Server, pair.Client

	s.Send(&packet.NewSession{
		SessionID:   0xABCDEF01,
		PTTEnabled:  true,
		Public:      true,
		Vocoder:     packet.CodecEVRC,
		InitiatorID: 42,
		Priority:    packet.PriorityNormal,
	})
	if _, err := s.Expect(ctx, message.CommandPending); err != nil {
		t.Fatal(err)
	}
	s.Send(&packet.Ack{})
	if _, err := s.Expect(ctx, message.CommandAccept); err != nil {
		t.Fatal(err)
	}
	eventually(t, "StateSessionActive", func() bool { return c.State() == session.StateSessionActive })

	info, ok, err := c.Session(ctx)
	if err != nil || !ok {
		t.Fatalf("Session() = %v, %v, %v", info, ok, err)
	}
	if info.SessionID != 0xABCDEF01 {
		t.Errorf("SessionID = %#x, want 0xABCDEF01", info.SessionID)
	}

	if err := c.RequestFloor(ctx); err != nil {
		t.Fatalf("RequestFloor() error = %v", err)
	}
	if _, err := s.Expect(ctx, message.CommandEnablePTT); err != nil {
		t.Fatal(err)
	}
	s.Send(&packet.Ack{})
	eventually(t, "local floor", func() bool {
		f, err := c.Floor(ctx)
		return err == nil && f.Local
	})

	if err := c.ReleaseFloor(ctx); err != nil {
		t.Fatalf("ReleaseFloor() error = %v", err)
	}
	if _, err := s.Expect(ctx, message.CommandDisablePTT); err != nil {
		t.Fatal(err)
	}
}

func TestClientRequestFloorWithoutSession(t *testing.T) {
	pair := loggedIn(t, TestClientConfig())
	if err := pair.Client.RequestFloor(testContext(t)); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("RequestFloor() error = %v, want %v", err, session.ErrNoSession)
	}
}

func TestClientCreateAdHoc(t *testing.T) {
	pair := loggedIn(t, TestClientConfig())
	ctx := testContext(t)

	if err := pair.Client.CreateAdHoc(ctx, 1, 2, 3); err != nil {
		t.Fatalf("CreateAdHoc() error = %v", err)
	}
	f, err := pair.Server.Expect(ctx, message.CommandCreateAdHoc)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Packet.(*packet.CreateAdHoc).IDs; len(got) != 3 {
		t.Errorf("IDs = %v, want 3 ids", got)
	}
}

func TestClientDirectory(t *testing.T) {
	pair := loggedIn(t, TestClientConfig())
	ctx := testContext(t)

	pair.Server.Send(&packet.GroupList{Groups: []packet.GroupRecord{
		{ID: 7, Name: "Fire", Type: packet.GroupConference, Action: packet.ActionAdd},
		{ID: 3, Name: "Police", Type: packet.GroupConference, Action: packet.ActionAdd},
	}})
	if _, err := pair.Server.Expect(ctx, message.CommandAck); err != nil {
		t.Fatal(err)
	}

	groups, err := pair.Client.Groups(ctx)
	if err != nil {
		t.Fatalf("Groups() error = %v", err)
	}
	if len(groups) != 2 || groups[0].ID != 3 || groups[1].Name != "Fire" {
		t.Errorf("Groups() = %+v, want Police(3), Fire(7)", groups)
	}
}

func TestClientKeepAliveAck(t *testing.T) {
	pair := loggedIn(t, TestClientConfig())
	ctx := testContext(t)

	pair.Server.Send(&packet.KeepAlive{})
	if _, err := pair.Server.Expect(ctx, message.CommandAck); err != nil {
		t.Fatal(err)
	}
}

func TestClientNotStarted(t *testing.T) {
	pair, err := NewTestPair(TestClientConfig())
	if err != nil {
		t.Fatalf("NewTestPair() error = %v", err)
	}
	defer pair.Close()

	ctx := testContext(t)
	if err := pair.Client.RequestFloor(ctx); err != ErrNotStarted {
		t.Errorf("RequestFloor() error = %v, want %v", err, ErrNotStarted)
	}
	if got := pair.Client.State(); got != session.StateUnregistered {
		t.Errorf("State() = %s, want %s", got, session.StateUnregistered)
	}
}

func TestClientLifecycle(t *testing.T) {
	pair, err := NewTestPair(TestClientConfig())
	if err != nil {
		t.Fatalf("NewTestPair() error = %v", err)
	}
	defer pair.Close()
	c := pair.Client

	if err := c.Start(testContext(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(testContext(t)); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := c.Stop(); err != ErrAlreadyStopped {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrAlreadyStopped)
	}
	if err := c.Start(testContext(t)); err != ErrAlreadyStopped {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrAlreadyStopped)
	}
}

func TestClientStopsOnContextCancel(t *testing.T) {
	pair, err := NewTestPair(TestClientConfig())
	if err != nil {
		t.Fatalf("NewTestPair() error = %v", err)
	}
	defer pair.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := pair.Client.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	eventually(t, "client stop", func() bool {
		return pair.Client.RequestFloor(context.Background()) == ErrNotStarted
	})
}

func TestClientParseErrorMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	config := TestClientConfig()
	config.Metrics = metrics.New(metrics.WithRegistry(reg))
	pair := newStartedPair(t, config)

	if _, err := pair.Server.Expect(testContext(t), message.CommandRegister); err != nil {
		t.Fatal(err)
	}
	pair.Server.SendRaw([]byte{0x01, 0x02})

	eventually(t, "parse error metric", func() bool {
		families, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, f := range families {
			if f.GetName() != "ptt_client_parse_errors_total" {
				continue
			}
			for _, m := range f.GetMetric() {
				if labelValue(m, "reason") == "truncated_header" && m.GetCounter().GetValue() == 1 {
					return true
				}
			}
		}
		return false
	})
}
