package auth

import "errors"

var (
	// ErrChallengeMissing is returned when an Authorize answer is requested
	// before any challenge was received.
	ErrChallengeMissing = errors.New("auth: no challenge captured")

	// ErrMissingCredentials is returned by Credentials.Validate.
	ErrMissingCredentials = errors.New("auth: username and password are required")
)
