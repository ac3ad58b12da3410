package integration

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/backkem/ptt/pkg/ptt"
	"github.com/backkem/ptt/pkg/session"
	"github.com/backkem/ptt/pkg/transport"
)

// TestE2E_LoginOverUDP runs the full login over loopback sockets and checks
// the identity stamped on every datagram.
func TestE2E_LoginOverUDP(t *testing.T) {
	h := NewHarness(t, HarnessConfig{})
	ctx := TestContext(t)
	s := h.Primary

	steps := []struct {
		want  message.Command
		reply []packet.Packet
	}{
		{message.CommandRegister, []packet.Packet{&packet.Ack{}, Challenge()}},
		{message.CommandAuthorize, []packet.Packet{&packet.Ack{}}},
		{message.CommandRegister, []packet.Packet{Approved(250, 2)}},
		{message.CommandPABSyncRequest, []packet.Packet{&packet.Ack{}}},
	}
	for _, step := range steps {
		f, err := s.Expect(ctx, step.want)
		if err != nil {
			t.Fatal(err)
		}
		if f.Header.SenderID != message.DefaultSenderID {
			t.Errorf("%s: SenderID = %#x, want %#x", step.want, f.Header.SenderID, message.DefaultSenderID)
		}
		if f.Header.ProtocolVersion != message.DefaultProtocolVersion {
			t.Errorf("%s: ProtocolVersion = %#x, want %#x", step.want, f.Header.ProtocolVersion, message.DefaultProtocolVersion)
		}
		for _, p := range step.reply {
			if err := s.Send(p); err != nil {
				t.Fatal(err)
			}
		}
	}
	h.WaitState(session.StateReady)

	// Server-initiated keep-alive and directory sync are acknowledged.
	for _, p := range []packet.Packet{&packet.KeepAlive{}, &packet.PABSyncRequest{}} {
		if err := s.Send(p); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Expect(ctx, message.CommandAck); err != nil {
			t.Fatalf("after %s: %v", p.Command(), err)
		}
	}
	if errs := s.ParseErrors(); len(errs) != 0 {
		t.Errorf("server parse errors: %v", errs)
	}
}

// TestE2E_KeepAliveFailover silences the primary and expects the client to
// re-register with the secondary.
func TestE2E_KeepAliveFailover(t *testing.T) {
	h := NewHarness(t, HarnessConfig{Secondary: true})
	ctx := TestContext(t)
	h.Login(ctx, Approved(1, 1))

	for i := 0; i < 2; i++ {
		if _, err := h.Primary.Expect(ctx, message.CommandKeepAlive); err != nil {
			t.Fatalf("keep-alive %d: %v", i+1, err)
		}
	}

	f, err := h.Secondary.Expect(ctx, message.CommandRegister)
	if err != nil {
		t.Fatalf("secondary: %v", err)
	}
	if f.Header.SenderID != message.DefaultSenderID {
		t.Errorf("SenderID = %#x, want %#x", f.Header.SenderID, message.DefaultSenderID)
	}
	h.WaitState(session.StateAwaitingRegisterAck)
}

// TestE2E_ReauthOnError expects a fresh Register after an Unauthorized error.
func TestE2E_ReauthOnError(t *testing.T) {
	h := NewHarness(t, HarnessConfig{})
	ctx := TestContext(t)
	h.Login(ctx, Approved(250, 2))

	if err := h.Primary.Send(&packet.Error{Reason: packet.ReasonUnauthorized}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Primary.Expect(ctx, message.CommandRegister); err != nil {
		t.Fatal(err)
	}
	h.WaitState(session.StateAwaitingRegisterAck)
}

// TestE2E_AudioSessionClip accepts a session, streams two voice frames to
// the audio port and expects one decoded clip when the session is torn
// down.
func TestE2E_AudioSessionClip(t *testing.T) {
	clips := make(chan audio.Clip, 1)
	decoder := audio.DecoderFunc(func(_ context.Context, frames []byte, v audio.Vocoder) ([]byte, error) {
		return append(v.Magic(), frames...), nil
	})

	h := NewHarness(t, HarnessConfig{Modify: func(c *ptt.ClientConfig) {
		c.AudioEnabled = true
		c.Decoder = decoder
		c.OnClip = func(clip audio.Clip) { clips <- clip }
	}})
	ctx := TestContext(t)
	h.Login(ctx, Approved(250, 2))
	s := h.Primary

	const sessionID = 0x5150
	if err := s.Send(&packet.NewSession{SessionID: sessionID, PTTEnabled: true, Vocoder: packet.CodecEVRC}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Expect(ctx, message.CommandPending); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(&packet.Ack{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Expect(ctx, message.CommandAccept); err != nil {
		t.Fatal(err)
	}

	voice := listenLoopback(t)
	defer voice.Close()
	receiver := h.Client.Receiver()
	for serial, payload := range [][]byte{{0x3c, 0x01}, {0x3c, 0x02}} {
		p := &audio.Packet{
			Header: audio.Header{
				ProtocolVersion: message.DefaultProtocolVersion,
				RecipientID:     message.DefaultSenderID,
				SenderID:        77,
				SessionID:       sessionID,
				Vocoder:         audio.VocoderAMR515,
				Serial:          uint16(serial + 1),
				OriginalSize:    uint16(len(payload)),
			},
			Payload: payload,
		}
		data := p.Encode()
		want := serial + 1
		// Resend until buffered: the session may not be open yet and
		// repeated serials are dropped.
		Eventually(t, "buffered audio", func() bool {
			if receiver.Buffered() >= want {
				return true
			}
			voice.WriteTo(data, h.AudioAddr)
			time.Sleep(5 * time.Millisecond)
			return receiver.Buffered() >= want
		})
	}

	if err := s.Send(&packet.Error{SessionID: sessionID, Reason: packet.ReasonNoSession}); err != nil {
		t.Fatal(err)
	}

	select {
	case clip := <-clips:
		if clip.Session.SessionID != sessionID {
			t.Errorf("SessionID = %#x, want %#x", clip.Session.SessionID, sessionID)
		}
		if clip.Frames != 2 || clip.SenderID != 77 {
			t.Errorf("Frames = %d, SenderID = %d, want 2, 77", clip.Frames, clip.SenderID)
		}
		want := append([]byte("#!AMR\n"), 0x3c, 0x01, 0x3c, 0x02)
		if !bytes.Equal(clip.Audio, want) {
			t.Errorf("Audio = %x, want %x", clip.Audio, want)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for clip")
	}
	h.WaitState(session.StateReady)
}

// TestE2E_LoginOverSlowPipe runs the login over an in-memory pipe that
// delays every datagram.
func TestE2E_LoginOverSlowPipe(t *testing.T) {
	pair, err := ptt.NewTestPair(ptt.TestClientConfig())
	if err != nil {
		t.Fatalf("NewTestPair() error = %v", err)
	}
	defer pair.Close()
	pair.Pipe.SetCondition(transport.NetworkCondition{
		DelayMin: 2 * time.Millisecond,
		DelayMax: 10 * time.Millisecond,
	})

	ctx := TestContext(t)
	if err := pair.Client.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := pair.Server.Handshake(ctx, Challenge(), Approved(30, 2)); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	Eventually(t, "StateReady", func() bool { return pair.Client.State() == session.StateReady })
}
