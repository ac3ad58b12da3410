package ptt

import (
	"fmt"
	"net"
	"time"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/auth"
	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/metrics"
	"github.com/backkem/ptt/pkg/session"
	"github.com/backkem/ptt/pkg/transport"
	"github.com/pion/logging"
)

// DefaultServer is the dispatch server used when none is configured.
const DefaultServer = "82.166.254.181:25000"

// ClientConfig holds all configuration for a Client.
type ClientConfig struct {
	// Server - Required
	Server          string // "host:port" of the primary server (default: DefaultServer)
	SecondaryServer string // fail-over server, optional; Approved may replace it

	// Credentials - Required
	Username string
	Password string

	// Identity stamps outbound headers (default: message.DefaultIdentity()).
	Identity message.Identity

	// Network
	ControlPort  int  // local control port (default: transport.DefaultControlPort)
	AudioPort    int  // local audio port (default: transport.DefaultAudioPort)
	AudioEnabled bool // open the audio endpoint and decode received voice

	// Timing
	KeepAliveUnit time.Duration // unit of Approved keep-alive intervals (default: 1s)
	InboxSize     int           // datagrams buffered ahead of the state machine (default: 64)

	// Audio - used when AudioEnabled is set
	Decoder audio.Decoder // default: ffmpeg from PATH

	// Metrics - Optional
	Metrics *metrics.Collector

	// Callbacks - Optional
	OnStateChanged func(from, to session.State)
	OnClip         func(audio.Clip)
	OnError        func(err error)

	// Advanced - Testing
	ControlConn net.PacketConn
	AudioConn   net.PacketConn
	Uptime      func() time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *ClientConfig) Validate() error {
	if err := (auth.Credentials{Username: c.Username, Password: c.Password}).Validate(); err != nil {
		return err
	}
	if !validPort(c.ControlPort) || !validPort(c.AudioPort) {
		return ErrInvalidPort
	}
	if c.Server != "" {
		if _, err := transport.ResolveAddrPort(c.Server); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidServer, c.Server, err)
		}
	}
	if c.SecondaryServer != "" {
		if _, err := transport.ResolveAddrPort(c.SecondaryServer); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidServer, c.SecondaryServer, err)
		}
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *ClientConfig) applyDefaults() {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.Identity == (message.Identity{}) {
		c.Identity = message.DefaultIdentity()
	}
	if c.ControlPort == 0 && c.ControlConn == nil {
		c.ControlPort = transport.DefaultControlPort
	}
	if c.AudioPort == 0 && c.AudioConn == nil {
		c.AudioPort = transport.DefaultAudioPort
	}
	if c.KeepAliveUnit == 0 {
		c.KeepAliveUnit = session.DefaultKeepAliveUnit
	}
	if c.InboxSize == 0 {
		c.InboxSize = session.DefaultInboxSize
	}
	if c.AudioEnabled && c.Decoder == nil {
		c.Decoder = audio.NewFFmpegDecoder(audio.FFmpegConfig{LoggerFactory: c.LoggerFactory})
	}
}

// serverConfig resolves the configured server addresses.
func (c *ClientConfig) serverConfig() (session.ServerConfig, error) {
	var sc session.ServerConfig
	primary, err := transport.ResolveAddrPort(c.Server)
	if err != nil {
		return sc, fmt.Errorf("%w: %s: %w", ErrInvalidServer, c.Server, err)
	}
	sc.Primary = primary
	if c.SecondaryServer != "" {
		secondary, err := transport.ResolveAddrPort(c.SecondaryServer)
		if err != nil {
			return sc, fmt.Errorf("%w: %s: %w", ErrInvalidServer, c.SecondaryServer, err)
		}
		sc.Secondary = secondary
	}
	return sc, nil
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
