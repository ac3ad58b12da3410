package session

import (
	"errors"

	"github.com/backkem/ptt/pkg/auth"
)

// Session package errors.
var (
	// ErrAuthChallengeMissing is returned when an Authorize answer is
	// attempted without a captured challenge.
	ErrAuthChallengeMissing = auth.ErrChallengeMissing

	// ErrNoSession is returned by session-scoped operations when no session
	// is pending or active.
	ErrNoSession = errors.New("session: no active session")

	// ErrNotApproved is returned by operations that need a completed login.
	ErrNotApproved = errors.New("session: not approved")

	// ErrTransportFailure wraps errors returned by the Sender.
	ErrTransportFailure = errors.New("session: transport failure")

	// ErrNoSender is returned when the configuration lacks a Sender.
	ErrNoSender = errors.New("session: no sender configured")

	// ErrNoServer is returned when the configuration lacks a server address.
	ErrNoServer = errors.New("session: no server address configured")

	// ErrNoMachine is returned by NewRunner without a Machine.
	ErrNoMachine = errors.New("session: runner requires a machine")

	// ErrRunnerClosed is returned when work is submitted to a stopped Runner.
	ErrRunnerClosed = errors.New("session: runner closed")
)
