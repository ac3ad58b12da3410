package ptt

import (
	"cmp"
	"context"
	"errors"
	"net/netip"
	"slices"
	"sync"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/auth"
	"github.com/backkem/ptt/pkg/session"
	"github.com/backkem/ptt/pkg/transport"
	"github.com/pion/logging"
)

// Client is a running dispatch client. It owns the transport endpoints,
// the protocol runner and the audio receiver.
type Client struct {
	config ClientConfig
	log    logging.LeveledLogger

	transportMgr *transport.Manager
	machine      *session.Machine
	runner       *session.Runner
	receiver     *audio.Receiver
	observer     *clientObserver

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
}

// NewClient creates a client. Nothing is sent until Start is called.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	servers, err := config.serverConfig()
	if err != nil {
		return nil, err
	}

	c := &Client{
		config: config,
		stopCh: make(chan struct{}),
		observer: &clientObserver{
			metrics:        config.Metrics,
			onStateChanged: config.OnStateChanged,
		},
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("ptt")
	}

	var sink session.AudioSink
	if config.AudioEnabled {
		c.receiver, err = audio.NewReceiver(audio.ReceiverConfig{
			Decoder:       config.Decoder,
			OnClip:        config.OnClip,
			OnError:       c.reportError,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
		sink = c.receiver
	}

	c.machine, err = session.NewMachine(session.Config{
		Identity:      config.Identity,
		Credentials:   auth.Credentials{Username: config.Username, Password: config.Password},
		Server:        servers,
		Sender:        session.SenderFunc(c.send),
		AudioSink:     sink,
		Observer:      c.observer,
		Uptime:        config.Uptime,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	c.runner, err = session.NewRunner(session.RunnerConfig{
		Machine:       c.machine,
		KeepAliveUnit: config.KeepAliveUnit,
		InboxSize:     config.InboxSize,
		OnError:       c.reportError,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	mgrConfig := transport.ManagerConfig{
		ControlPort:    config.ControlPort,
		AudioPort:      config.AudioPort,
		AudioEnabled:   config.AudioEnabled,
		ControlHandler: c.onControl,
		ControlConn:    config.ControlConn,
		AudioConn:      config.AudioConn,
		LoggerFactory:  config.LoggerFactory,
	}
	if config.AudioEnabled {
		mgrConfig.AudioHandler = c.onAudio
	}
	c.transportMgr, err = transport.NewManager(mgrConfig)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Start opens the endpoints and sends the initial Register. The client
// stops when ctx is cancelled or Stop is called.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrAlreadyStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}

	if err := c.transportMgr.Start(); err != nil {
		return err
	}
	if err := c.runner.Start(); err != nil {
		c.transportMgr.Stop()
		return err
	}
	c.started = true

	if c.log != nil {
		c.log.Infof("client started, registering with %s", c.config.Server)
	}

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.stopCh:
		}
	}()
	return nil
}

// Stop shuts the client down. The server is not notified.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrAlreadyStopped
	}
	c.stopped = true
	started := c.started
	close(c.stopCh)
	c.mu.Unlock()

	var errs []error
	if started {
		if err := c.runner.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.transportMgr.Stop(); err != nil && !errors.Is(err, transport.ErrClosed) {
		errs = append(errs, err)
	}
	if c.receiver != nil {
		if err := c.receiver.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.log != nil {
		c.log.Info("client stopped")
	}
	return errors.Join(errs...)
}

// State returns the current protocol state.
func (c *Client) State() session.State {
	return c.observer.current()
}

// RequestFloor asks for the talk permission of the active session.
func (c *Client) RequestFloor(ctx context.Context) error {
	return c.do(ctx, (*session.Machine).RequestFloor)
}

// ReleaseFloor gives the talk permission back.
func (c *Client) ReleaseFloor(ctx context.Context) error {
	return c.do(ctx, (*session.Machine).ReleaseFloor)
}

// CreateAdHoc asks the server for an ad-hoc group with the given contacts.
func (c *Client) CreateAdHoc(ctx context.Context, ids ...uint64) error {
	return c.do(ctx, func(m *session.Machine) error {
		return m.CreateAdHoc(ids...)
	})
}

// Register restarts the login.
func (c *Client) Register(ctx context.Context) error {
	return c.do(ctx, (*session.Machine).Register)
}

// Session returns the current session, if any.
func (c *Client) Session(ctx context.Context) (session.SessionInfo, bool, error) {
	var (
		info session.SessionInfo
		ok   bool
	)
	err := c.do(ctx, func(m *session.Machine) error {
		info, ok = m.Session()
		return nil
	})
	return info, ok, err
}

// Floor returns the floor status of the current session.
func (c *Client) Floor(ctx context.Context) (session.Floor, error) {
	var f session.Floor
	err := c.do(ctx, func(m *session.Machine) error {
		f = m.Floor()
		return nil
	})
	return f, err
}

// Groups returns a snapshot of the synchronized group directory.
func (c *Client) Groups(ctx context.Context) ([]session.Group, error) {
	var groups []session.Group
	err := c.do(ctx, func(m *session.Machine) error {
		for _, g := range m.Directory().Groups {
			groups = append(groups, g)
		}
		slices.SortFunc(groups, func(a, b session.Group) int { return cmp.Compare(a.ID, b.ID) })
		return nil
	})
	return groups, err
}

// Dropped returns the number of inbound datagrams dropped because the
// runner was busy.
func (c *Client) Dropped() uint64 {
	return c.runner.Dropped()
}

// Receiver returns the audio receiver, or nil when audio is disabled.
func (c *Client) Receiver() *audio.Receiver {
	return c.receiver
}

// Transport returns the transport manager.
func (c *Client) Transport() *transport.Manager {
	return c.transportMgr
}

func (c *Client) do(ctx context.Context, fn func(*session.Machine) error) error {
	c.mu.Lock()
	running := c.started && !c.stopped
	c.mu.Unlock()
	if !running {
		return ErrNotStarted
	}
	return c.runner.Do(ctx, fn)
}

func (c *Client) send(data []byte, to netip.AddrPort) error {
	return c.transportMgr.SendControl(data, to)
}

func (c *Client) onControl(msg *transport.ReceivedMessage) {
	if c.runner.Deliver(msg.Data) {
		return
	}
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}
	if c.config.Metrics != nil {
		c.config.Metrics.DatagramDropped()
	}
	if c.log != nil {
		c.log.Warnf("inbox full, dropped datagram from %s", msg.PeerAddr)
	}
}

func (c *Client) onAudio(msg *transport.ReceivedMessage) {
	if err := c.receiver.HandleDatagram(msg.Data); err != nil && c.log != nil {
		c.log.Debugf("audio datagram from %s: %v", msg.PeerAddr, err)
	}
}

func (c *Client) reportError(err error) {
	if c.log != nil {
		c.log.Warnf("%v", err)
	}
	if c.config.OnError != nil {
		c.config.OnError(err)
	}
}
