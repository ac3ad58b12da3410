package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/metrics"
	"github.com/backkem/ptt/pkg/ptt"
	"github.com/backkem/ptt/pkg/session"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath string
	logLevel   string
	server     string
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register and stay online until interrupted",
		Long: `Load the YAML configuration, register with the dispatch server and
answer server traffic until SIGINT or SIGTERM.

Flags override the corresponding config file settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadRunConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runClient(ctx, fc)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "ptt.yaml", "Path to the YAML config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: disabled, error, warn, info, debug, trace")
	cmd.Flags().StringVar(&opts.server, "server", "", "Primary server host:port")

	return cmd
}

func loadRunConfig(opts runOptions) (*ptt.FileConfig, error) {
	fc, err := ptt.LoadConfigFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel == "" && opts.server == "" {
		return fc, nil
	}
	if opts.logLevel != "" {
		fc.Logging.Level = opts.logLevel
	}
	if opts.server != "" {
		fc.Server.Primary = opts.server
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return fc, nil
}

func runClient(ctx context.Context, fc *ptt.FileConfig) error {
	loggerFactory := fc.LoggerFactory()
	log := loggerFactory.NewLogger("main")

	config := fc.ClientConfig()
	config.LoggerFactory = loggerFactory
	if config.AudioEnabled {
		config.Decoder = audio.NewFFmpegDecoder(audio.FFmpegConfig{
			Path:          fc.Audio.FFmpegPath,
			Format:        fc.Audio.Format,
			LoggerFactory: loggerFactory,
		})
	}
	config.OnStateChanged = func(from, to session.State) {
		log.Infof("state %s -> %s", from, to)
	}
	config.OnError = func(err error) {
		log.Warnf("%v", err)
	}
	if fc.Audio.OutputDir != "" {
		writer := &audio.ClipWriter{Dir: fc.Audio.OutputDir, Ext: fc.Audio.Format}
		config.OnClip = clipHandler(writer, log)
	}

	if fc.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		config.Metrics = metrics.New(
			metrics.WithRegistry(reg),
			metrics.WithNamespace(fc.Metrics.Namespace),
		)
		metricsServer := metrics.NewServer(metrics.ServerConfig{
			Address:       fc.Metrics.Address,
			Gatherer:      reg,
			LoggerFactory: loggerFactory,
		})
		if _, err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer shutdownMetrics(metricsServer, log)
	}

	client, err := ptt.NewClient(config)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	log.Infof("registering %s with %s", fc.Credentials.Username, config.Server)

	<-ctx.Done()

	log.Info("shutting down")
	if err := client.Stop(); err != nil && !errors.Is(err, ptt.ErrAlreadyStopped) {
		return fmt.Errorf("stop client: %w", err)
	}
	return nil
}

func shutdownMetrics(s *metrics.Server, log logging.LeveledLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Warnf("metrics server shutdown: %v", err)
	}
}

func clipHandler(w *audio.ClipWriter, log logging.LeveledLogger) func(audio.Clip) {
	return func(clip audio.Clip) {
		path, err := w.Write(clip)
		if err != nil {
			log.Errorf("storing clip of session %d: %v", clip.Session.SessionID, err)
			return
		}
		log.Infof("stored %d %s frames from %d as %s", clip.Frames, clip.Vocoder, clip.SenderID, path)
	}
}
