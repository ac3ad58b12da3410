package message

import "testing"

func TestSequenceFirstSend(t *testing.T) {
	s := SequenceState{}.Next(CommandRegister)
	if s.Major != 0 || s.Minor != 0 {
		t.Errorf("first Next() = %d.%d, want 0.0", s.Major, s.Minor)
	}
	if !s.Started() {
		t.Error("Started() = false after first send")
	}
}

func TestSequenceFullCycle(t *testing.T) {
	var s SequenceState
	for i := 0; i < 256; i++ {
		s = s.Next(CommandKeepAlive)
		if int(s.Minor) != i {
			t.Fatalf("send %d: Minor = %d, want %d", i, s.Minor, i)
		}
		if s.Major != 0 {
			t.Fatalf("send %d: Major = %d, want 0", i, s.Major)
		}
	}
	s = s.Next(CommandKeepAlive)
	if s.Major != 1 || s.Minor != 0 {
		t.Errorf("after wrap = %d.%d, want 1.0", s.Major, s.Minor)
	}
}

func TestSequenceMajorWraps(t *testing.T) {
	s := SequenceState{Major: 255, Minor: 255, started: true}
	s = s.Next(CommandKeepAlive)
	if s.Major != 0 || s.Minor != 0 {
		t.Errorf("Next() = %d.%d, want 0.0", s.Major, s.Minor)
	}
}

func TestSequenceResetAfterSentAck(t *testing.T) {
	var s SequenceState
	for i := 0; i < 7; i++ {
		s = s.Next(CommandKeepAlive)
	}
	s = s.Next(CommandAck)
	if s.Major != 0 || s.Minor != 7 {
		t.Fatalf("Ack send = %d.%d, want 0.7", s.Major, s.Minor)
	}
	if !s.ResetPending() {
		t.Fatal("ResetPending() = false after sending Ack")
	}
	s = s.Next(CommandKeepAlive)
	if s.Major != 1 || s.Minor != 0 {
		t.Errorf("after Ack = %d.%d, want 1.0", s.Major, s.Minor)
	}
	s = s.Next(CommandKeepAlive)
	if s.Major != 1 || s.Minor != 1 {
		t.Errorf("second after Ack = %d.%d, want 1.1", s.Major, s.Minor)
	}
}

func TestSequenceResetAfterReceivedAck(t *testing.T) {
	s := SequenceState{}.Next(CommandRegister).Next(CommandKeepAlive)
	s = s.Observe(CommandAck)
	s = s.Next(CommandAuthorize)
	if s.Major != 1 || s.Minor != 0 {
		t.Errorf("after received Ack = %d.%d, want 1.0", s.Major, s.Minor)
	}
}

func TestSequenceObserveIgnoresOtherCommands(t *testing.T) {
	s := SequenceState{}.Next(CommandRegister)
	for _, cmd := range []Command{CommandApproved, CommandKeepAlive, CommandNewSession, Command(200)} {
		s = s.Observe(cmd)
	}
	s = s.Next(CommandKeepAlive)
	if s.Major != 0 || s.Minor != 1 {
		t.Errorf("Next() = %d.%d, want 0.1", s.Major, s.Minor)
	}
}

func TestSequenceObserveBeforeFirstSend(t *testing.T) {
	s := SequenceState{}.Observe(CommandAck).Next(CommandRegister)
	if s.Major != 0 || s.Minor != 0 {
		t.Errorf("Next() = %d.%d, want 0.0", s.Major, s.Minor)
	}
}

func TestSequenceIsValueType(t *testing.T) {
	a := SequenceState{}.Next(CommandRegister)
	b := a.Next(CommandKeepAlive)
	if a.Minor != 0 {
		t.Errorf("Next() modified receiver: Minor = %d", a.Minor)
	}
	if b.Minor != 1 {
		t.Errorf("b.Minor = %d, want 1", b.Minor)
	}
}
