package ptt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/ptt/pkg/auth"
	"github.com/pion/logging"
)

const sampleConfig = `
server:
  primary: 10.1.1.1:25000
  secondary: 10.1.1.2:25000
credentials:
  username: "999000000000075087"
  password: "12345"
network:
  control_port: 6000
  audio_port: 6001
  keepalive_unit: 500ms
  inbox_size: 16
audio:
  enabled: true
  ffmpeg_path: /usr/local/bin/ffmpeg
  format: mp3
  output_dir: /tmp/clips
metrics:
  enabled: true
  namespace: dispatch
logging:
  level: debug
`

func TestParseConfig(t *testing.T) {
	fc, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if fc.Server.Primary != "10.1.1.1:25000" || fc.Server.Secondary != "10.1.1.2:25000" {
		t.Errorf("Server = %+v", fc.Server)
	}
	if fc.Network.KeepAliveUnit != 500*time.Millisecond {
		t.Errorf("KeepAliveUnit = %v, want 500ms", fc.Network.KeepAliveUnit)
	}
	if fc.Audio.OutputDir != "/tmp/clips" {
		t.Errorf("OutputDir = %q", fc.Audio.OutputDir)
	}
	if fc.Metrics.Address != ":9090" {
		t.Errorf("Metrics.Address = %q, want :9090", fc.Metrics.Address)
	}
	if fc.Metrics.Namespace != "dispatch" {
		t.Errorf("Metrics.Namespace = %q, want dispatch", fc.Metrics.Namespace)
	}

	cc := fc.ClientConfig()
	if cc.Username != "999000000000075087" || cc.Password != "12345" {
		t.Errorf("credentials = %q/%q", cc.Username, cc.Password)
	}
	if cc.ControlPort != 6000 || cc.AudioPort != 6001 || cc.InboxSize != 16 {
		t.Errorf("network = %d/%d/%d", cc.ControlPort, cc.AudioPort, cc.InboxSize)
	}
	if !cc.AudioEnabled || cc.Decoder == nil {
		t.Errorf("audio enabled = %v, decoder = %v", cc.AudioEnabled, cc.Decoder)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fc, err := ParseConfig([]byte("credentials:\n  username: u\n  password: p\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if fc.Server.Primary != DefaultServer {
		t.Errorf("Server.Primary = %q, want %q", fc.Server.Primary, DefaultServer)
	}
	if fc.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", fc.Logging.Level)
	}
	if fc.Metrics.Enabled || fc.Metrics.Address != "" {
		t.Errorf("Metrics = %+v, want disabled", fc.Metrics)
	}
	if fc.Metrics.Namespace != "ptt" {
		t.Errorf("Metrics.Namespace = %q, want ptt", fc.Metrics.Namespace)
	}
	if fc.ClientConfig().Decoder != nil {
		t.Error("Decoder set with audio disabled")
	}
}

func TestParseConfigErrors(t *testing.T) {
	const creds = "credentials:\n  username: u\n  password: p\n"
	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed yaml", "server: [", ErrInvalidConfig},
		{"missing credentials", "logging:\n  level: info\n", auth.ErrMissingCredentials},
		{"unknown level", creds + "logging:\n  level: loud\n", ErrInvalidConfig},
		{"negative unit", creds + "network:\n  keepalive_unit: -1s\n", ErrInvalidConfig},
		{"negative inbox", creds + "network:\n  inbox_size: -3\n", ErrInvalidConfig},
		{"output dir without audio", creds + "audio:\n  output_dir: /tmp\n", ErrInvalidConfig},
		{"bad port", creds + "network:\n  control_port: 99999\n", ErrInvalidPort},
		{"bad server", creds + "server:\n  primary: nowhere\n", ErrInvalidServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseConfig() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptt.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if fc.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", fc.Logging.Level)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfigFile(missing) error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestFileConfigLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logging.LogLevel
	}{
		{"disabled", logging.LogLevelDisabled},
		{"error", logging.LogLevelError},
		{"WARN", logging.LogLevelWarn},
		{"info", logging.LogLevelInfo},
		{"debug", logging.LogLevelDebug},
		{"trace", logging.LogLevelTrace},
		{"bogus", logging.LogLevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			fc := FileConfig{Logging: LoggingSection{Level: tt.level}}
			if got := fc.LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %v, want %v", got, tt.want)
			}
			if got := fc.LoggerFactory().DefaultLogLevel; got != tt.want {
				t.Errorf("LoggerFactory().DefaultLogLevel = %v, want %v", got, tt.want)
			}
		})
	}
}
