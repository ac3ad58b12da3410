package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ClipWriter stores decoded clips as files in a directory.
type ClipWriter struct {
	Dir string
	// Ext is the file extension, normally the decoder output format.
	// Default: "wav".
	Ext string
	// Now stamps file names. Default: time.Now.
	Now func() time.Time
}

// Write stores clip and returns the file path. Names are
// <session>-<sender>-<unix millis>.<ext>.
func (w *ClipWriter) Write(clip Clip) (string, error) {
	ext := w.Ext
	if ext == "" {
		ext = "wav"
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating clip directory: %w", err)
	}
	name := fmt.Sprintf("%016x-%016x-%d.%s", clip.Session.SessionID, clip.SenderID, now().UnixMilli(), ext)
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, clip.Audio, 0o644); err != nil {
		return "", fmt.Errorf("writing clip: %w", err)
	}
	return path, nil
}
