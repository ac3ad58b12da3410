package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig configures the metrics endpoint.
type ServerConfig struct {
	// Address to listen on, e.g. ":9090".
	Address string

	// Gatherer is exposed on /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Server exposes /metrics and /health over HTTP.
type Server struct {
	server *http.Server
	log    logging.LeveledLogger
}

// NewServer creates a metrics endpoint. Call Start to begin serving.
func NewServer(config ServerConfig) *Server {
	gatherer := config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	s := &Server{
		server: &http.Server{
			Addr:              config.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("metrics")
	}
	return s
}

// Handler returns the HTTP handler serving the endpoints.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("serving metrics on %s", ln.Addr())
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && s.log != nil {
			s.log.Errorf("metrics server: %v", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
