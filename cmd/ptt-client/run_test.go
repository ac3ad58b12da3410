package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/auth"
	"github.com/backkem/ptt/pkg/ptt"
	"github.com/backkem/ptt/pkg/session"
	"github.com/pion/logging"
)

const testConfig = `
server:
  primary: 10.1.1.1:25000
credentials:
  username: "999000000000075087"
  password: "12345"
`

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ptt.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeConfig(t, testConfig)

	tests := []struct {
		name       string
		opts       runOptions
		wantServer string
		wantLevel  string
		wantErr    error
	}{
		{"file only", runOptions{configPath: path}, "10.1.1.1:25000", "info", nil},
		{"overrides", runOptions{configPath: path, logLevel: "trace", server: "10.2.2.2:25000"}, "10.2.2.2:25000", "trace", nil},
		{"bad level", runOptions{configPath: path, logLevel: "chatty"}, "", "", ptt.ErrInvalidConfig},
		{"bad server", runOptions{configPath: path, server: "nowhere"}, "", "", ptt.ErrInvalidServer},
		{"missing file", runOptions{configPath: filepath.Join(t.TempDir(), "none.yaml")}, "", "", os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := loadRunConfig(tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("loadRunConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadRunConfig() error = %v", err)
			}
			if fc.Server.Primary != tt.wantServer {
				t.Errorf("Server.Primary = %q, want %q", fc.Server.Primary, tt.wantServer)
			}
			if fc.Logging.Level != tt.wantLevel {
				t.Errorf("Logging.Level = %q, want %q", fc.Logging.Level, tt.wantLevel)
			}
		})
	}
}

func TestClipHandler(t *testing.T) {
	dir := t.TempDir()
	log := logging.NewDefaultLoggerFactory().NewLogger("test")
	handle := clipHandler(&audio.ClipWriter{Dir: dir}, log)

	handle(audio.Clip{
		Session:  session.SessionInfo{SessionID: 1},
		SenderID: 2,
		Vocoder:  audio.VocoderAMR515,
		Frames:   1,
		Audio:    []byte("x"),
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("clip files = %d, want 1", len(entries))
	}
}

func TestRunClientReleasesMetricsOnFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	fc := &ptt.FileConfig{
		Server:  ptt.ServerSection{Primary: "127.0.0.1:25000"},
		Metrics: ptt.MetricsSection{Enabled: true, Address: addr},
		Logging: ptt.LoggingSection{Level: "disabled"},
	}
	if err := runClient(context.Background(), fc); !errors.Is(err, auth.ErrMissingCredentials) {
		t.Fatalf("runClient() error = %v, want %v", err, auth.ErrMissingCredentials)
	}

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("metrics address still bound: %v", err)
	}
	ln.Close()
}
