package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/ptt/pkg/session"
	"github.com/pion/logging"
)

// Receiver errors.
var (
	ErrNoDecoder       = errors.New("audio: no decoder configured")
	ErrNoActiveSession = errors.New("audio: no active session")
	ErrSessionMismatch = errors.New("audio: datagram for another session")
	ErrReceiverClosed  = errors.New("audio: receiver closed")
)

// DefaultMaxBuffered caps the frames buffered for one session.
const DefaultMaxBuffered = 1 << 20

// Clip is the decoded audio of one session.
type Clip struct {
	Session  session.SessionInfo
	SenderID uint64
	Vocoder  Vocoder
	Frames   int
	Audio    []byte
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Decoder converts buffered frames when a session ends.
	// Required.
	Decoder Decoder

	// OnClip is called with every decoded clip.
	OnClip func(Clip)

	// OnError is called when decoding fails.
	OnError func(error)

	// MaxBuffered bounds buffered frame bytes per session.
	// Default: DefaultMaxBuffered
	MaxBuffered int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Receiver collects the voice frames of the active session and decodes
// them once the session ends. It implements session.AudioSink.
type Receiver struct {
	decoder     Decoder
	onClip      func(Clip)
	onError     func(error)
	maxBuffered int
	log         logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	active     *session.SessionInfo
	frames     []byte
	count      int
	vocoder    Vocoder
	sender     uint64
	lastSerial uint16
	dropped    int
}

var _ session.AudioSink = (*Receiver)(nil)

// NewReceiver creates a receiver.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	if config.Decoder == nil {
		return nil, ErrNoDecoder
	}
	if config.MaxBuffered <= 0 {
		config.MaxBuffered = DefaultMaxBuffered
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		decoder:     config.Decoder,
		onClip:      config.OnClip,
		onError:     config.OnError,
		maxBuffered: config.MaxBuffered,
		ctx:         ctx,
		cancel:      cancel,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("audio")
	}
	return r, nil
}

// SessionStarted opens the buffer for info's session.
func (r *Receiver) SessionStarted(info session.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.active != nil {
		r.flushLocked()
	}
	r.active = &info
	if r.log != nil {
		r.log.Infof("audio started for session %d", info.SessionID)
	}
}

// SessionEnded decodes what was buffered for info's session.
func (r *Receiver) SessionEnded(info session.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.SessionID != info.SessionID {
		return
	}
	r.flushLocked()
	if r.log != nil {
		r.log.Infof("audio ended for session %d", info.SessionID)
	}
}

// HandleDatagram buffers one audio datagram of the active session.
func (r *Receiver) HandleDatagram(data []byte) error {
	p, err := Parse(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrReceiverClosed
	case r.active == nil:
		r.dropped++
		return ErrNoActiveSession
	case p.SessionID != r.active.SessionID:
		r.dropped++
		return fmt.Errorf("%w: got %d, active %d", ErrSessionMismatch, p.SessionID, r.active.SessionID)
	case !p.Vocoder.IsSupported():
		r.dropped++
		return fmt.Errorf("%w: %s", ErrUnsupportedVocoder, p.Vocoder)
	}

	if r.count > 0 {
		if p.Serial == r.lastSerial {
			r.dropped++
			return nil
		}
		if p.Vocoder != r.vocoder {
			r.dropped++
			return fmt.Errorf("%w: %s mid-session", ErrUnsupportedVocoder, p.Vocoder)
		}
	}
	if len(r.frames)+len(p.Payload) > r.maxBuffered {
		r.dropped++
		if r.log != nil {
			r.log.Warnf("audio buffer full for session %d", p.SessionID)
		}
		return nil
	}

	r.frames = append(r.frames, p.Payload...)
	r.count++
	r.vocoder = p.Vocoder
	r.sender = p.SenderID
	r.lastSerial = p.Serial
	return nil
}

// Buffered returns the number of datagrams held for the active session.
func (r *Receiver) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped returns the number of datagrams that were not buffered.
func (r *Receiver) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close cancels pending decodes and waits for them to finish.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrReceiverClosed
	}
	r.closed = true
	r.active = nil
	r.frames = nil
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return nil
}

// flushLocked hands the buffered frames to the decoder in the background.
func (r *Receiver) flushLocked() {
	info := *r.active
	frames, count, v, sender := r.frames, r.count, r.vocoder, r.sender
	r.active = nil
	r.frames = nil
	r.count = 0

	if count == 0 {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		out, err := r.decoder.Decode(r.ctx, frames, v)
		if err != nil {
			if r.log != nil {
				r.log.Warnf("decoding session %d: %v", info.SessionID, err)
			}
			if r.onError != nil {
				r.onError(err)
			}
			return
		}
		if r.onClip != nil {
			r.onClip(Clip{
				Session:  info,
				SenderID: sender,
				Vocoder:  v,
				Frames:   count,
				Audio:    out,
			})
		}
	}()
}
