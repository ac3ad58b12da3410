package message

// SequenceState is the sequence number of the last sent header together with
// the pending reset flag. It is a value type: Next and Observe return the
// updated state and never modify the receiver, so a session owns exactly one
// SequenceState and there is no shared counter.
//
// Rules:
//   - The first send of a session uses (0, 0).
//   - Each further send increments Minor; Minor wraps 255 -> 0 and bumps Major
//     (mod 256).
//   - A send that follows a sent Ack, or a received Ack, uses
//     (Major+1, 0) regardless of Minor.
type SequenceState struct {
	Major uint8
	Minor uint8

	started bool
	reset   bool
}

// Started returns true once a header has been sent in this session.
func (s SequenceState) Started() bool {
	return s.started
}

// ResetPending returns true if the next send starts a new major cycle.
func (s SequenceState) ResetPending() bool {
	return s.reset
}

// Next returns the state after sending cmd. The returned Major/Minor are the
// values to stamp on the outbound header.
func (s SequenceState) Next(cmd Command) SequenceState {
	next := s
	switch {
	case !s.started:
		next.Major, next.Minor = 0, 0
	case s.reset:
		next.Major, next.Minor = s.Major+1, 0
	case s.Minor == 255:
		next.Major, next.Minor = s.Major+1, 0
	default:
		next.Minor = s.Minor + 1
	}
	next.started = true
	next.reset = cmd == CommandAck
	return next
}

// Observe returns the state after receiving a datagram carrying cmd.
// Only a received Ack affects the sequence.
func (s SequenceState) Observe(cmd Command) SequenceState {
	if cmd == CommandAck && s.started {
		s.reset = true
	}
	return s
}
