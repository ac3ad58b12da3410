package ptt

import "errors"

// Package-level errors.
var (
	// ErrAlreadyStarted is returned when Start is called on a running client.
	ErrAlreadyStarted = errors.New("ptt: client already started")

	// ErrNotStarted is returned when an operation requires a running client.
	ErrNotStarted = errors.New("ptt: client not started")

	// ErrAlreadyStopped is returned when Stop is called twice.
	ErrAlreadyStopped = errors.New("ptt: client already stopped")

	// ErrInvalidServer is returned when a server address cannot be resolved.
	ErrInvalidServer = errors.New("ptt: invalid server address")

	// ErrInvalidPort is returned for local ports outside 0-65535.
	ErrInvalidPort = errors.New("ptt: invalid port")

	// ErrInvalidConfig wraps errors found while loading a config file.
	ErrInvalidConfig = errors.New("ptt: invalid configuration")
)
