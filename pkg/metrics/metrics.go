// Package metrics exports protocol activity of a dispatch client as
// Prometheus metrics. Collector implements session.Observer.
package metrics

import (
	"errors"
	"net/netip"

	"github.com/backkem/ptt/pkg/message"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/backkem/ptt/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "ptt").
	Namespace string

	// Subsystem is the metrics subsystem (default: "client").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "ptt",
		Subsystem: "client",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records session events.
type Collector struct {
	packetsSent      *prometheus.CounterVec
	packetsReceived  *prometheus.CounterVec
	parseErrors      *prometheus.CounterVec
	state            *prometheus.GaugeVec
	transitions      prometheus.Counter
	keepAlivesSent   prometheus.Counter
	missedKeepAlive  prometheus.Gauge
	serverSwitches   prometheus.Counter
	datagramsDropped prometheus.Counter
}

var _ session.Observer = (*Collector)(nil)

// New creates and registers the collector's metrics.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	c := &Collector{
		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packets_sent_total",
			Help:        "Signaling datagrams sent, by command",
			ConstLabels: config.ConstLabels,
		}, []string{"command"}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packets_received_total",
			Help:        "Signaling datagrams received, by command",
			ConstLabels: config.ConstLabels,
		}, []string{"command"}),

		parseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "parse_errors_total",
			Help:        "Datagrams discarded because they could not be decoded",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state",
			Help:        "1 for the current session state, 0 otherwise",
			ConstLabels: config.ConstLabels,
		}, []string{"state"}),

		transitions:      counter("state_transitions_total", "Session state transitions"),
		keepAlivesSent:   counter("keepalives_sent_total", "Keep-alive datagrams sent"),
		serverSwitches:   counter("server_switches_total", "Fail-overs to another server"),
		datagramsDropped: counter("datagrams_dropped_total", "Inbound datagrams dropped before processing"),

		missedKeepAlive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "keepalives_unanswered",
			Help:        "Keep-alive periods without any inbound datagram",
			ConstLabels: config.ConstLabels,
		}),
	}
	c.state.WithLabelValues(session.StateUnregistered.String()).Set(1)
	return c
}

// PacketSent counts an outbound datagram.
func (c *Collector) PacketSent(cmd message.Command) {
	c.packetsSent.WithLabelValues(cmd.String()).Inc()
}

// PacketReceived counts an inbound datagram.
func (c *Collector) PacketReceived(cmd message.Command) {
	c.packetsReceived.WithLabelValues(cmd.String()).Inc()
	c.missedKeepAlive.Set(0)
}

// ParseError counts a discarded datagram.
func (c *Collector) ParseError(err error) {
	c.parseErrors.WithLabelValues(parseErrorReason(err)).Inc()
}

// StateChanged moves the state gauge.
func (c *Collector) StateChanged(from, to session.State) {
	c.state.WithLabelValues(from.String()).Set(0)
	c.state.WithLabelValues(to.String()).Set(1)
	c.transitions.Inc()
}

// KeepAliveSent counts a keep-alive.
func (c *Collector) KeepAliveSent(missed int) {
	c.keepAlivesSent.Inc()
	c.missedKeepAlive.Set(float64(missed))
}

// ServerSwitched counts a fail-over.
func (c *Collector) ServerSwitched(to netip.AddrPort) {
	c.serverSwitches.Inc()
}

// DatagramDropped counts a datagram the runner could not queue.
func (c *Collector) DatagramDropped() {
	c.datagramsDropped.Inc()
}

func parseErrorReason(err error) string {
	switch {
	case errors.Is(err, message.ErrTruncatedHeader):
		return "truncated_header"
	case errors.Is(err, packet.ErrTruncatedBody):
		return "truncated_body"
	case errors.Is(err, packet.ErrUnrecognizedCommand):
		return "unrecognized_command"
	case errors.Is(err, packet.ErrInvalidFieldValue):
		return "invalid_field"
	default:
		return "other"
	}
}
