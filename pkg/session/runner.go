package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
)

const (
	// DefaultKeepAliveUnit is the unit of the keep-alive intervals carried
	// in Approved.
	DefaultKeepAliveUnit = time.Second

	// DefaultInboxSize is the number of datagrams buffered between the
	// transport and the runner.
	DefaultInboxSize = 64
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Machine is the state machine to drive. Required.
	Machine *Machine

	// KeepAliveUnit converts keep-alive intervals to durations.
	// Default: DefaultKeepAliveUnit.
	KeepAliveUnit time.Duration

	// InboxSize is the capacity of the datagram buffer.
	// Default: DefaultInboxSize.
	InboxSize int

	// OnError is called from the runner goroutine for errors raised while
	// handling datagrams or timer ticks. Optional.
	OnError func(error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type op struct {
	fn  func(*Machine) error
	res chan error
}

// Runner owns a Machine and serializes everything that touches it:
// inbound datagrams, user operations and keep-alive ticks.
type Runner struct {
	m       *Machine
	unit    time.Duration
	inbox   chan []byte
	ops     chan op
	onError func(error)
	log     logging.LeveledLogger

	closeCh chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewRunner creates a runner. Call Start to send the initial Register and
// begin processing.
func NewRunner(config RunnerConfig) (*Runner, error) {
	if config.Machine == nil {
		return nil, ErrNoMachine
	}
	if config.KeepAliveUnit <= 0 {
		config.KeepAliveUnit = DefaultKeepAliveUnit
	}
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultInboxSize
	}

	r := &Runner{
		m:       config.Machine,
		unit:    config.KeepAliveUnit,
		inbox:   make(chan []byte, config.InboxSize),
		ops:     make(chan op),
		onError: config.OnError,
		closeCh: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("session-runner")
	}
	return r, nil
}

// Start launches the runner goroutine, which first starts the machine.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	if r.started {
		return nil
	}
	r.started = true

	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop cancels the keep-alive timer, closes the machine and waits for the
// runner goroutine to exit.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	close(r.closeCh)
	if started {
		r.wg.Wait()
	} else {
		r.m.Close()
	}
	return nil
}

// Deliver queues an inbound datagram. It never blocks: when the buffer is
// full the datagram is dropped and false is returned.
func (r *Runner) Deliver(data []byte) bool {
	select {
	case <-r.closeCh:
		return false
	default:
	}

	select {
	case r.inbox <- data:
		return true
	default:
		r.dropped.Add(1)
		if r.log != nil {
			r.log.Warnf("inbox full, dropping %d byte datagram", len(data))
		}
		return false
	}
}

// Dropped returns the number of datagrams dropped by Deliver.
func (r *Runner) Dropped() uint64 {
	return r.dropped.Load()
}

// Do runs fn on the runner goroutine and returns its error. It is the only
// way to access the Machine once the runner is started.
func (r *Runner) Do(ctx context.Context, fn func(*Machine) error) error {
	o := op{fn: fn, res: make(chan error, 1)}
	select {
	case r.ops <- o:
	case <-r.closeCh:
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()

	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
		period time.Duration
	)
	resetTicker := func() {
		p := time.Duration(0)
		if ka := r.m.KeepAlive(); ka.Enabled() {
			p = ka.Period(r.unit)
		}
		if p == period {
			return
		}
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
		period = p
		if p > 0 {
			ticker = time.NewTicker(p)
			tickC = ticker.C
			if r.log != nil {
				r.log.Debugf("keep-alive every %s", p)
			}
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	r.report(r.m.Start())
	resetTicker()

	for {
		select {
		case <-r.closeCh:
			r.m.Close()
			return
		case data := <-r.inbox:
			r.report(r.m.HandleDatagram(data))
		case o := <-r.ops:
			o.res <- o.fn(r.m)
		case <-tickC:
			r.report(r.m.Tick())
		}
		resetTicker()
	}
}

func (r *Runner) report(err error) {
	if err == nil {
		return
	}
	if r.log != nil {
		r.log.Warnf("%v", err)
	}
	if r.onError != nil {
		r.onError(err)
	}
}
