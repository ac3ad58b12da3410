package ptt

import (
	"net/netip"
	"sync/atomic"

	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/metrics"
	"github.com/backkem/ptt/pkg/session"
)

// clientObserver tracks the machine state for lock-free reads and forwards
// events to the metrics collector and the user callback.
type clientObserver struct {
	state          atomic.Int32
	metrics        *metrics.Collector
	onStateChanged func(from, to session.State)
}

var _ session.Observer = (*clientObserver)(nil)

func (o *clientObserver) current() session.State {
	return session.State(o.state.Load())
}

func (o *clientObserver) PacketSent(cmd message.Command) {
	if o.metrics != nil {
		o.metrics.PacketSent(cmd)
	}
}

func (o *clientObserver) PacketReceived(cmd message.Command) {
	if o.metrics != nil {
		o.metrics.PacketReceived(cmd)
	}
}

func (o *clientObserver) ParseError(err error) {
	if o.metrics != nil {
		o.metrics.ParseError(err)
	}
}

func (o *clientObserver) StateChanged(from, to session.State) {
	o.state.Store(int32(to))
	if o.metrics != nil {
		o.metrics.StateChanged(from, to)
	}
	if o.onStateChanged != nil {
		o.onStateChanged(from, to)
	}
}

func (o *clientObserver) KeepAliveSent(missed int) {
	if o.metrics != nil {
		o.metrics.KeepAliveSent(missed)
	}
}

func (o *clientObserver) ServerSwitched(to netip.AddrPort) {
	if o.metrics != nil {
		o.metrics.ServerSwitched(to)
	}
}
