package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/ptt/pkg/session"
)

func TestClipWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clips")
	w := &ClipWriter{
		Dir: dir,
		Ext: "mp3",
		Now: func() time.Time { return time.UnixMilli(1700000000123) },
	}
	clip := Clip{
		Session:  session.SessionInfo{SessionID: 0xAB},
		SenderID: 0x42,
		Vocoder:  VocoderAMR515,
		Frames:   3,
		Audio:    []byte("decoded"),
	}

	path, err := w.Write(clip)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := filepath.Join(dir, "00000000000000ab-0000000000000042-1700000000123.mp3")
	if path != want {
		t.Errorf("Write() path = %q, want %q", path, want)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, clip.Audio) {
		t.Errorf("file content = %q, want %q", got, clip.Audio)
	}
}

func TestClipWriterDefaultExt(t *testing.T) {
	w := &ClipWriter{Dir: t.TempDir()}
	path, err := w.Write(Clip{Audio: []byte{1}})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Ext(path) != ".wav" {
		t.Errorf("Write() path = %q, want .wav extension", path)
	}
}

func TestClipWriterBadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	w := &ClipWriter{Dir: filepath.Join(file, "sub")}
	if _, err := w.Write(Clip{}); err == nil {
		t.Error("Write() error = nil, want error for a directory below a file")
	}
}
