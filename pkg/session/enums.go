// Package session drives the client side of the dispatch signaling protocol.
//
// A Machine owns everything a single login needs: the registration state,
// the sequence counters, the command sent last (which selects the digest
// method of the next Authorize answer), the captured session and the
// directory copy. It is not safe for concurrent use; a Runner owns one
// Machine and serializes inbound datagrams, user operations and the
// keep-alive timer through a single goroutine.
//
// The handshake proceeds as
//
//	Unregistered -> AwaitingRegisterAck -> Unauthorized -> AwaitingAuthorizeAck
//	  -> Authorized -> AwaitingApproval -> Approved -> SyncingDirectory -> Ready
//
// after which inbound NewSession requests move the machine through
// SessionPending into SessionActive and back to Ready.
package session

import "fmt"

// State is the registration/session state of a Machine.
type State int

const (
	StateUnregistered State = iota
	StateAwaitingRegisterAck
	StateUnauthorized
	StateAwaitingAuthorizeAck
	StateAuthorized
	StateAwaitingApproval
	StateApproved
	StateSyncingDirectory
	StateReady
	StateSessionPending
	StateSessionActive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "Unregistered"
	case StateAwaitingRegisterAck:
		return "AwaitingRegisterAck"
	case StateUnauthorized:
		return "Unauthorized"
	case StateAwaitingAuthorizeAck:
		return "AwaitingAuthorizeAck"
	case StateAuthorized:
		return "Authorized"
	case StateAwaitingApproval:
		return "AwaitingApproval"
	case StateApproved:
		return "Approved"
	case StateSyncingDirectory:
		return "SyncingDirectory"
	case StateReady:
		return "Ready"
	case StateSessionPending:
		return "SessionPending"
	case StateSessionActive:
		return "SessionActive"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsApproved returns true once the server has accepted the login.
func (s State) IsApproved() bool {
	return s >= StateApproved
}

// InSession returns true while a session is pending or active.
func (s State) InSession() bool {
	return s == StateSessionPending || s == StateSessionActive
}
