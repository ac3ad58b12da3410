package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVocoder is returned for vocoders the decoder cannot handle.
var ErrUnsupportedVocoder = errors.New("audio: unsupported vocoder")

// Vocoder identifies the codec of a voice frame.
type Vocoder uint16

const (
	VocoderAMR515 Vocoder = 9
	VocoderAMR122 Vocoder = 47
)

// String returns the codec name.
func (v Vocoder) String() string {
	switch v {
	case VocoderAMR515:
		return "AMR-5.15"
	case VocoderAMR122:
		return "AMR-12.2"
	default:
		return fmt.Sprintf("Vocoder(%d)", uint16(v))
	}
}

// IsSupported returns true if frames of this vocoder can be decoded.
func (v Vocoder) IsSupported() bool {
	return v == VocoderAMR515 || v == VocoderAMR122
}

// SampleRate returns the output sample rate in Hz.
func (v Vocoder) SampleRate() int {
	if v == VocoderAMR122 {
		return 16000
	}
	return 8000
}

// BitRate returns the bit rate as ffmpeg expects it.
func (v Vocoder) BitRate() string {
	if v == VocoderAMR122 {
		return "12.2k"
	}
	return "5.15k"
}

// Magic returns the storage-format header that precedes raw frames.
func (v Vocoder) Magic() []byte {
	if v == VocoderAMR122 {
		return []byte("#!AMR-WB\n")
	}
	return []byte("#!AMR\n")
}
