package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pion/logging"
)

// ErrDecoderFailed is returned when the external decoder exits abnormally.
var ErrDecoderFailed = errors.New("audio: decoder failed")

// Decoder turns raw voice frames into playable audio.
type Decoder interface {
	Decode(ctx context.Context, frames []byte, v Vocoder) ([]byte, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, frames []byte, v Vocoder) ([]byte, error)

// Decode calls f(ctx, frames, v).
func (f DecoderFunc) Decode(ctx context.Context, frames []byte, v Vocoder) ([]byte, error) {
	return f(ctx, frames, v)
}

// FFmpegConfig configures an FFmpegDecoder.
type FFmpegConfig struct {
	// Path is the ffmpeg binary. Default: "ffmpeg" from PATH.
	Path string

	// Format is the output container. Default: "wav".
	Format string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// FFmpegDecoder decodes AMR frames by piping them through ffmpeg.
type FFmpegDecoder struct {
	path   string
	format string
	log    logging.LeveledLogger
}

// NewFFmpegDecoder creates a decoder.
func NewFFmpegDecoder(config FFmpegConfig) *FFmpegDecoder {
	d := &FFmpegDecoder{
		path:   config.Path,
		format: config.Format,
	}
	if d.path == "" {
		d.path = "ffmpeg"
	}
	if d.format == "" {
		d.format = "wav"
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("audio-ffmpeg")
	}
	return d
}

// Args returns the ffmpeg arguments used for vocoder v.
func (d *FFmpegDecoder) Args(v Vocoder) []string {
	args := []string{
		"-f", "amr",
		"-i", "-",
		"-f", d.format,
		"-ar", strconv.Itoa(v.SampleRate()),
		"-ab", v.BitRate(),
		"-",
	}
	if v == VocoderAMR122 {
		args = append([]string{"-c:a", "libopencore_amrnb"}, args...)
	}
	return args
}

// Decode prepends the AMR magic to frames and returns ffmpeg's output.
func (d *FFmpegDecoder) Decode(ctx context.Context, frames []byte, v Vocoder) ([]byte, error) {
	if !v.IsSupported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVocoder, v)
	}

	input := append(v.Magic(), frames...)
	args := d.Args(v)

	if d.log != nil {
		d.log.Debugf("running %s %s", d.path, strings.Join(args, " "))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.path, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if d.log != nil {
			d.log.Warnf("decoder failed: %v: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: %w", ErrDecoderFailed, err)
	}

	if d.log != nil {
		d.log.Debugf("decoded %d bytes of %s into %d bytes", len(frames), v, stdout.Len())
	}
	return stdout.Bytes(), nil
}
