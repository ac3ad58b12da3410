package transport

import (
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// Default pipe endpoint addresses.
var (
	DefaultPipeAddr0 = netip.MustParseAddrPort("127.0.0.1:57457")
	DefaultPipeAddr1 = netip.MustParseAddrPort("127.0.0.1:25000")
)

// NetworkCondition configures network behavior simulation.
type NetworkCondition struct {
	// DropRate is the probability of dropping a datagram (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each datagram.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each datagram.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of duplicating a datagram (0.0 - 1.0).
	DuplicateRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers datagrams.
	// Default: 1ms
	ProcessInterval time.Duration

	// Addr0 and Addr1 are the UDP addresses reported for each endpoint.
	// Defaults: DefaultPipeAddr0, DefaultPipeAddr1.
	Addr0 netip.AddrPort
	Addr1 netip.AddrPort
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: time.Millisecond,
		Addr0:           DefaultPipeAddr0,
		Addr1:           DefaultPipeAddr1,
	}
}

// Pipe connects two in-memory datagram endpoints. It wraps pion's
// test.Bridge and adds network condition simulation, so a client and a
// scripted server can talk without real sockets.
type Pipe struct {
	bridge *test.Bridge
	conn0  *PipePacketConn
	conn1  *PipePacketConn

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	if config.ProcessInterval == 0 {
		config.ProcessInterval = time.Millisecond
	}
	if !config.Addr0.IsValid() {
		config.Addr0 = DefaultPipeAddr0
	}
	if !config.Addr1.IsValid() {
		config.Addr1 = DefaultPipeAddr1
	}

	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	p.conn0 = &PipePacketConn{
		conn:  p.bridge.GetConn0(),
		local: net.UDPAddrFromAddrPort(config.Addr0),
		peer:  net.UDPAddrFromAddrPort(config.Addr1),
		pipe:  p,
	}
	p.conn1 = &PipePacketConn{
		conn:  p.bridge.GetConn1(),
		local: net.UDPAddrFromAddrPort(config.Addr1),
		peer:  net.UDPAddrFromAddrPort(config.Addr0),
		pipe:  p,
	}

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic delivery.
// When disabled, call Tick or Process manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled
	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess reports whether automatic delivery is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures network condition simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Conn0 returns endpoint 0.
func (p *Pipe) Conn0() *PipePacketConn { return p.conn0 }

// Conn1 returns endpoint 1.
func (p *Pipe) Conn1() *PipePacketConn { return p.conn1 }

// Tick delivers one datagram in each direction, if available.
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued datagrams.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// PipePacketConn is one pipe endpoint seen as a net.PacketConn with UDP
// addresses, so it can back a UDP transport.
type PipePacketConn struct {
	conn  net.Conn
	local *net.UDPAddr
	peer  *net.UDPAddr
	pipe  *Pipe
}

// ReadFrom reads a datagram. The returned address is always the peer.
func (c *PipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peer, err
}

// WriteTo writes a datagram to the peer. addr is ignored since the pipe
// has a single peer.
func (c *PipePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.pipe.mu.RLock()
	cond := c.pipe.condition
	rng := c.pipe.rng
	c.pipe.mu.RUnlock()

	if cond.DropRate > 0 && rng.Float64() < cond.DropRate {
		return len(b), nil
	}
	if cond.DelayMax > 0 {
		delay := cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
		time.Sleep(delay)
	}
	if cond.DuplicateRate > 0 && rng.Float64() < cond.DuplicateRate {
		if _, err := c.conn.Write(b); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(b)
}

// Close closes this endpoint.
func (c *PipePacketConn) Close() error { return c.conn.Close() }

// LocalAddr returns the endpoint's UDP address.
func (c *PipePacketConn) LocalAddr() net.Addr { return c.local }

// PeerAddrPort returns the address of the other endpoint.
func (c *PipePacketConn) PeerAddrPort() netip.AddrPort { return c.peer.AddrPort() }

// SetDeadline sets the read and write deadlines.
func (c *PipePacketConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetReadDeadline sets the read deadline.
func (c *PipePacketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline.
func (c *PipePacketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*PipePacketConn)(nil)
