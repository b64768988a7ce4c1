// Package desk sequences dictation: recording segments are handed to a
// single transcription worker, and accepted text lands in the session
// store.
package desk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/capture"
	"github.com/snarg/case-register/internal/session"
)

// ErrBusy is returned when a segment is already waiting behind the one
// being transcribed.
var ErrBusy = errors.New("a transcription is already queued")

// Transcriber submits a finished recording and returns its text.
type Transcriber interface {
	Submit(ctx context.Context, blob capture.Blob) (string, error)
}

// EventKind identifies a controller event.
type EventKind int

const (
	EventRecording EventKind = iota
	EventPaused
	EventStopped
	EventTranscribing
	EventTranscribed
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRecording:
		return "recording"
	case EventPaused:
		return "paused"
	case EventStopped:
		return "stopped"
	case EventTranscribing:
		return "transcribing"
	case EventTranscribed:
		return "transcribed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports a state change or a transcription outcome. Case is set
// on EventTranscribed when a case was active.
type Event struct {
	Kind EventKind
	Text string
	Err  error
	Case *session.Case
}

type job struct {
	blob capture.Blob
	// restart asks the worker to resume recording afterwards when
	// continuous mode is on.
	restart bool
}

// Stats reports worker counters.
type Stats struct {
	Pending   int
	Completed int64
	Failed    int64
}

// Controller owns the recorder and the transcription worker.
type Controller struct {
	rec      *capture.Recorder
	client   Transcriber
	sessions *session.Store
	log      zerolog.Logger

	jobs   chan job
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes operator actions against each other and against the
	// worker's continuous-mode restart.
	mu         sync.Mutex
	continuous atomic.Bool
	closed     bool

	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a controller and starts its worker.
func New(rec *capture.Recorder, client Transcriber, sessions *session.Store, log zerolog.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		rec:      rec,
		client:   client,
		sessions: sessions,
		log:      log.With().Str("component", "desk").Logger(),
		jobs:     make(chan job, 1),
		events:   make(chan Event, 32),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.wg.Add(1)
	go c.worker()
	return c
}

// Events delivers controller events. It is closed by Close.
func (c *Controller) Events() <-chan Event { return c.events }

// State returns the recorder state.
func (c *Controller) State() capture.State { return c.rec.State() }

// Continuous reports whether recording restarts after each transcription.
func (c *Controller) Continuous() bool { return c.continuous.Load() }

// SetContinuous turns continuous mode on or off.
func (c *Controller) SetContinuous(on bool) { c.continuous.Store(on) }

// Stats returns queue counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Pending:   len(c.jobs),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
	}
}

// Toggle starts recording when idle, resumes when paused, and when
// recording, pauses and queues the captured segment for transcription.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.rec.State() {
	case capture.Idle:
		if err := c.rec.Start(ctx); err != nil {
			return err
		}
		c.publish(Event{Kind: EventRecording})
		return nil
	case capture.Paused:
		if err := c.rec.Resume(ctx); err != nil {
			return err
		}
		c.publish(Event{Kind: EventRecording})
		return nil
	}

	if len(c.jobs) == cap(c.jobs) {
		return ErrBusy
	}
	blob, err := c.rec.Pause()
	c.publish(Event{Kind: EventPaused})
	if err != nil {
		return err
	}
	c.enqueue(job{blob: blob, restart: true})
	return nil
}

// Stop ends the recording. A segment still being captured is queued for
// transcription, but recording does not restart afterwards.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec.State() == capture.Recording && len(c.jobs) == cap(c.jobs) {
		return ErrBusy
	}
	blob, err := c.rec.Stop()
	if errors.Is(err, capture.ErrNotRecording) {
		return err
	}
	c.publish(Event{Kind: EventStopped})
	if errors.Is(err, capture.ErrNoAudio) {
		return nil
	}
	if err != nil {
		return err
	}
	c.enqueue(job{blob: blob})
	return nil
}

// Submit queues an externally produced blob, such as a loaded file.
// It returns false when the queue is full.
func (c *Controller) Submit(blob capture.Blob) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueue(job{blob: blob})
}

// Close stops any recording, drains the queue and closes Events.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.rec.State() != capture.Idle {
		c.rec.Stop()
	}
	close(c.jobs)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	close(c.events)
	c.log.Info().
		Int64("completed", c.completed.Load()).
		Int64("failed", c.failed.Load()).
		Msg("dictation controller stopped")
}

// enqueue must be called with c.mu held.
func (c *Controller) enqueue(j job) bool {
	if c.closed {
		return false
	}
	select {
	case c.jobs <- j:
		return true
	default:
		return false
	}
}

func (c *Controller) publish(e Event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn().Stringer("kind", e.Kind).Msg("event dropped, listener not keeping up")
	}
}

func (c *Controller) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		c.process(j)
	}
}

func (c *Controller) process(j job) {
	c.publish(Event{Kind: EventTranscribing})

	text, err := c.client.Submit(c.ctx, j.blob)
	if err != nil {
		c.fail(err)
		return
	}
	updated, err := c.sessions.AppendTranscript(text)
	if err != nil {
		c.fail(err)
		return
	}

	c.completed.Add(1)
	c.log.Info().Int("chars", len(text)).Msg("transcription accepted")
	c.publish(Event{Kind: EventTranscribed, Text: text, Case: updated})
	c.restart(j)
}

func (c *Controller) fail(err error) {
	c.failed.Add(1)
	c.log.Warn().Err(err).Msg("transcription failed")
	c.publish(Event{Kind: EventFailed, Err: err})
}

// restart resumes recording after a paused segment was transcribed in
// continuous mode. Nothing happens if the operator moved on meanwhile.
func (c *Controller) restart(j job) {
	if !j.restart || !c.continuous.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.rec.State() != capture.Paused {
		return
	}
	if err := c.rec.Resume(c.ctx); err != nil {
		c.publish(Event{Kind: EventFailed, Err: err})
		return
	}
	c.publish(Event{Kind: EventRecording})
}
