// Package capture records microphone audio into WAV blobs.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrNotPaused        = errors.New("not paused")
	ErrNoAudio          = errors.New("no audio captured")
)

// State is the recorder's lifecycle state.
type State int

const (
	Idle State = iota
	Recording
	Paused
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Format describes PCM frames produced by a Stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Stream is an open capture device. ReadChunk blocks until samples are
// available and returns io.EOF once the stream is closed.
type Stream interface {
	Format() Format
	ReadChunk() ([]int16, error)
	Close() error
}

// Source opens capture streams, typically the default microphone.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Blob is one finalized recording.
type Blob struct {
	Data     []byte
	MimeType string
	Filename string
	Duration time.Duration
}

// segment is one Start/Resume..Pause/Stop span. The reader goroutine owns
// the samples until it delivers them on result.
type segment struct {
	stream Stream
	result chan []int16
}

// Recorder turns a Source into WAV blobs. It is safe for concurrent use.
type Recorder struct {
	src Source
	log zerolog.Logger

	mu    sync.Mutex
	state State
	seg   *segment
}

// NewRecorder creates an idle recorder.
func NewRecorder(src Source, log zerolog.Logger) *Recorder {
	return &Recorder{
		src: src,
		log: log.With().Str("component", "capture").Logger(),
	}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the source and begins a new recording.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return ErrAlreadyRecording
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	r.state = Recording
	r.log.Debug().Msg("recording started")
	return nil
}

// Pause finalizes the current segment and releases the source. The
// returned blob holds everything captured since Start or Resume.
func (r *Recorder) Pause() (Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Recording {
		return Blob{}, ErrNotRecording
	}
	blob, err := r.finish()
	r.state = Paused
	r.log.Debug().Dur("duration", blob.Duration).Msg("recording paused")
	return blob, err
}

// Resume starts a new segment after Pause.
func (r *Recorder) Resume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Paused {
		return ErrNotPaused
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	r.state = Recording
	r.log.Debug().Msg("recording resumed")
	return nil
}

// Stop ends the recording. When recording, it returns the current segment;
// when paused, the audio was already handed out by Pause and ErrNoAudio is
// returned.
func (r *Recorder) Stop() (Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case Recording:
		blob, err := r.finish()
		r.state = Idle
		r.log.Debug().Dur("duration", blob.Duration).Msg("recording stopped")
		return blob, err
	case Paused:
		r.state = Idle
		return Blob{}, ErrNoAudio
	default:
		return Blob{}, ErrNotRecording
	}
}

func (r *Recorder) open(ctx context.Context) error {
	stream, err := r.src.Open(ctx)
	if err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}
	seg := &segment{stream: stream, result: make(chan []int16, 1)}
	go r.read(seg)
	r.seg = seg
	return nil
}

func (r *Recorder) read(seg *segment) {
	var samples []int16
	for {
		chunk, err := seg.stream.ReadChunk()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Warn().Err(err).Msg("audio read failed")
			}
			break
		}
		samples = append(samples, chunk...)
	}
	seg.result <- samples
}

// finish closes the segment's stream and encodes what it captured.
func (r *Recorder) finish() (Blob, error) {
	seg := r.seg
	r.seg = nil
	if seg == nil {
		return Blob{}, ErrNoAudio
	}
	if err := seg.stream.Close(); err != nil {
		r.log.Warn().Err(err).Msg("audio source close failed")
	}
	samples := <-seg.result
	if len(samples) == 0 {
		return Blob{}, ErrNoAudio
	}
	return NewWAVBlob(samples, seg.stream.Format())
}
