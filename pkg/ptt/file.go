package ptt

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration of the client.
type FileConfig struct {
	Server      ServerSection      `yaml:"server"`
	Credentials CredentialsSection `yaml:"credentials"`
	Network     NetworkSection     `yaml:"network"`
	Audio       AudioSection       `yaml:"audio"`
	Metrics     MetricsSection     `yaml:"metrics"`
	Logging     LoggingSection     `yaml:"logging"`
}

// ServerSection lists the dispatch servers.
type ServerSection struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

// CredentialsSection holds the login.
type CredentialsSection struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NetworkSection configures local endpoints and timing.
type NetworkSection struct {
	ControlPort   int           `yaml:"control_port"`
	AudioPort     int           `yaml:"audio_port"`
	KeepAliveUnit time.Duration `yaml:"keepalive_unit"`
	InboxSize     int           `yaml:"inbox_size"`
}

// AudioSection configures voice reception.
type AudioSection struct {
	Enabled    bool   `yaml:"enabled"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	Format     string `yaml:"format"`
	OutputDir  string `yaml:"output_dir"` // decoded clips are written here
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// LoggingSection configures log verbosity.
type LoggingSection struct {
	Level string `yaml:"level"`
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

// LoadConfigFile reads and validates a YAML config file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML config data.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	fc.applyDefaults()
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (f *FileConfig) applyDefaults() {
	if f.Server.Primary == "" {
		f.Server.Primary = DefaultServer
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
	if f.Metrics.Enabled && f.Metrics.Address == "" {
		f.Metrics.Address = ":9090"
	}
	if f.Metrics.Namespace == "" {
		f.Metrics.Namespace = "ptt"
	}
}

// Validate checks the file-only settings; client settings are checked by
// ClientConfig.Validate.
func (f *FileConfig) Validate() error {
	if _, ok := logLevels[strings.ToLower(f.Logging.Level)]; !ok {
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, f.Logging.Level)
	}
	if f.Network.KeepAliveUnit < 0 {
		return fmt.Errorf("%w: network.keepalive_unit must not be negative", ErrInvalidConfig)
	}
	if f.Network.InboxSize < 0 {
		return fmt.Errorf("%w: network.inbox_size must not be negative", ErrInvalidConfig)
	}
	if f.Audio.OutputDir != "" && !f.Audio.Enabled {
		return fmt.Errorf("%w: audio.output_dir set but audio is disabled", ErrInvalidConfig)
	}

	cc := f.ClientConfig()
	if err := cc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LogLevel returns the configured level. Unknown names map to Info.
func (f *FileConfig) LogLevel() logging.LogLevel {
	if l, ok := logLevels[strings.ToLower(f.Logging.Level)]; ok {
		return l
	}
	return logging.LogLevelInfo
}

// LoggerFactory returns a pion logger factory at the configured level.
// PION_LOG_* environment variables still override per scope.
func (f *FileConfig) LoggerFactory() *logging.DefaultLoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = f.LogLevel()
	return lf
}

// ClientConfig converts the file into a ClientConfig. Logging, metrics and
// callbacks are left for the caller to wire.
func (f *FileConfig) ClientConfig() ClientConfig {
	cc := ClientConfig{
		Server:          f.Server.Primary,
		SecondaryServer: f.Server.Secondary,
		Username:        f.Credentials.Username,
		Password:        f.Credentials.Password,
		ControlPort:     f.Network.ControlPort,
		AudioPort:       f.Network.AudioPort,
		KeepAliveUnit:   f.Network.KeepAliveUnit,
		InboxSize:       f.Network.InboxSize,
		AudioEnabled:    f.Audio.Enabled,
	}
	if f.Audio.Enabled {
		cc.Decoder = audio.NewFFmpegDecoder(audio.FFmpegConfig{
			Path:   f.Audio.FFmpegPath,
			Format: f.Audio.Format,
		})
	}
	return cc
}
