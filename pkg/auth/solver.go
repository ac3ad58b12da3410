package auth

import (
	"encoding/hex"

	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/pion/logging"
)

// Credentials identify the user and the registering device.
type Credentials struct {
	Username string
	Password string

	// DeviceID is refreshed on every registration attempt and reused in
	// the Authorize answer that follows.
	DeviceID uint64
}

// Validate checks that the login fields are present.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Challenge is the server-provided part of an Authorize exchange.
// It is consumed by the answer that immediately follows it.
type Challenge struct {
	Algorithm  uint8
	AuthMethod uint8
	Realm      string
	URI        string
	Nonce      uint32
	Opaque     uint32
	Layout     packet.AuthorizeLayout
}

// ChallengeFrom extracts the challenge of a received Authorize.
func ChallengeFrom(p *packet.Authorize) *Challenge {
	return &Challenge{
		Algorithm:  p.Algorithm,
		AuthMethod: p.AuthMethod,
		Realm:      p.Realm,
		URI:        p.URI,
		Nonce:      p.Nonce,
		Opaque:     p.Opaque,
		Layout:     p.Layout,
	}
}

// Answer is a solved challenge.
type Answer struct {
	Method   string
	Nonce    string // encoded nonce
	Response string // lowercase hex
}

// Digest returns the 16 raw response bytes carried on the wire.
func (a *Answer) Digest() [16]byte {
	var out [16]byte
	// Response is always produced by ComputeResponse, so it is valid hex.
	b, _ := hex.DecodeString(a.Response)
	copy(out[:], b)
	return out
}

// Solver answers Authorize challenges for one set of credentials.
type Solver struct {
	Credentials Credentials
	log         logging.LeveledLogger
}

// NewSolver creates a solver. A nil factory disables logging.
func NewSolver(creds Credentials, loggerFactory logging.LoggerFactory) *Solver {
	s := &Solver{Credentials: creds}
	if loggerFactory != nil {
		s.log = loggerFactory.NewLogger("auth")
	}
	return s
}

// Solve computes the answer to ch. prev is the command that preceded the
// challenge and selects the digest method.
func (s *Solver) Solve(ch *Challenge, prev message.Command) (*Answer, error) {
	if ch == nil {
		return nil, ErrChallengeMissing
	}
	a := &Answer{
		Method: MethodForCommand(prev),
		Nonce:  NonceString(ch.Nonce),
	}
	a.Response = ComputeResponse(s.Credentials.Username, ch.Realm, s.Credentials.Password, a.Method, ch.URI, a.Nonce)
	if s.log != nil {
		s.log.Debugf("solved challenge realm=%q uri=%q nonce=%s method=%s", ch.Realm, ch.URI, a.Nonce, a.Method)
	}
	return a, nil
}

// Reply builds the Authorize datagram body answering ch. The challenge
// fields are echoed back with the method, response, username and device id
// filled in.
func (s *Solver) Reply(ch *Challenge, prev message.Command) (*packet.Authorize, error) {
	a, err := s.Solve(ch, prev)
	if err != nil {
		return nil, err
	}
	return &packet.Authorize{
		Algorithm:  ch.Algorithm,
		AuthMethod: ch.AuthMethod,
		URI:        ch.URI,
		Realm:      ch.Realm,
		Nonce:      ch.Nonce,
		Opaque:     ch.Opaque,
		Method:     a.Method,
		Response:   a.Digest(),
		Username:   s.Credentials.Username,
		DeviceID:   s.Credentials.DeviceID,
		Layout:     ch.Layout,
	}, nil
}
