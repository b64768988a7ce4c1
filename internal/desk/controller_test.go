package desk

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/capture"
	"github.com/snarg/case-register/internal/localstore"
	"github.com/snarg/case-register/internal/session"
)

// fakeStream yields one chunk, then blocks until closed.
type fakeStream struct {
	sent   bool
	closed chan struct{}
	once   sync.Once
}

func (s *fakeStream) Format() capture.Format { return capture.Format{SampleRate: 16000, Channels: 1} }

func (s *fakeStream) ReadChunk() ([]int16, error) {
	if !s.sent {
		s.sent = true
		return make([]int16, 1600), nil
	}
	<-s.closed
	return nil, io.EOF
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeSource struct{}

func (fakeSource) Open(context.Context) (capture.Stream, error) {
	return &fakeStream{closed: make(chan struct{})}, nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeTranscriber) Submit(ctx context.Context, blob capture.Blob) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(blob.Data) == 0 {
		return "", errors.New("empty blob")
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}

func newTestController(t *testing.T, tr Transcriber) (*Controller, *session.Store) {
	t.Helper()
	sessions, err := session.Open(localstore.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	rec := capture.NewRecorder(fakeSource{}, zerolog.Nop())
	c := New(rec, tr, sessions, zerolog.Nop())
	t.Cleanup(c.Close)
	return c, sessions
}

func waitFor(t *testing.T, c *Controller, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.Events():
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestToggle_PauseTranscribes(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"first words"}}
	c, sessions := newTestController(t, tr)
	active, _ := sessions.CreateCase()

	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.State() != capture.Recording {
		t.Fatalf("State = %v, want recording", c.State())
	}
	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}

	e := waitFor(t, c, EventTranscribed)
	if e.Text != "first words" {
		t.Errorf("Text = %q", e.Text)
	}
	if e.Case == nil || e.Case.ID != active.ID || e.Case.Transcript != "first words" {
		t.Errorf("Case = %+v", e.Case)
	}
	if sessions.Buffer() != "first words" {
		t.Errorf("Buffer = %q", sessions.Buffer())
	}
	if c.State() != capture.Paused {
		t.Errorf("State = %v, want paused without continuous mode", c.State())
	}
	if s := c.Stats(); s.Completed != 1 || s.Failed != 0 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestContinuousRestartsAfterTranscription(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"one", "two"}}
	c, sessions := newTestController(t, tr)
	c.SetContinuous(true)

	c.Toggle(context.Background())
	waitFor(t, c, EventRecording)
	c.Toggle(context.Background())
	waitFor(t, c, EventTranscribed)
	waitFor(t, c, EventRecording)
	if c.State() != capture.Recording {
		t.Fatalf("State = %v, want recording after restart", c.State())
	}

	c.Toggle(context.Background())
	waitFor(t, c, EventTranscribed)
	waitFor(t, c, EventRecording)
	if sessions.Buffer() != "one\n\ntwo" {
		t.Errorf("Buffer = %q", sessions.Buffer())
	}
}

func TestStopDoesNotRestart(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"closing"}}
	c, _ := newTestController(t, tr)
	c.SetContinuous(true)

	c.Toggle(context.Background())
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitFor(t, c, EventTranscribed)
	if c.State() != capture.Idle {
		t.Errorf("State = %v, want idle", c.State())
	}
	if err := c.Stop(); !errors.Is(err, capture.ErrNotRecording) {
		t.Errorf("second Stop err = %v, want ErrNotRecording", err)
	}
}

func TestStopWhilePaused(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"paused segment"}}
	c, _ := newTestController(t, tr)

	c.Toggle(context.Background())
	c.Toggle(context.Background())
	waitFor(t, c, EventTranscribed)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != capture.Idle {
		t.Errorf("State = %v, want idle", c.State())
	}
	if s := c.Stats(); s.Completed != 1 {
		t.Errorf("Completed = %d, want 1", s.Completed)
	}
}

func TestFailureSurfacedOnce(t *testing.T) {
	boom := errors.New("server down")
	tr := &fakeTranscriber{err: boom}
	c, sessions := newTestController(t, tr)
	c.SetContinuous(true)

	c.Toggle(context.Background())
	c.Toggle(context.Background())
	e := waitFor(t, c, EventFailed)
	if !errors.Is(e.Err, boom) {
		t.Errorf("Err = %v, want %v", e.Err, boom)
	}
	if c.State() != capture.Paused {
		t.Errorf("State = %v, want paused after failure", c.State())
	}
	if tr.calls != 1 {
		t.Errorf("calls = %d, want 1", tr.calls)
	}
	if sessions.Buffer() != "" || len(sessions.History()) != 0 {
		t.Error("failed transcription must not reach the session")
	}
}

func TestToggleBusy(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"a", "b"}, gate: make(chan struct{})}
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	c.Toggle(ctx)
	c.Toggle(ctx)
	waitFor(t, c, EventTranscribing)

	c.Toggle(ctx)
	if err := c.Toggle(ctx); err != nil {
		t.Fatalf("second pause: %v", err)
	}
	c.Toggle(ctx)
	if err := c.Toggle(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("third pause err = %v, want ErrBusy", err)
	}
	if c.State() != capture.Recording {
		t.Errorf("State = %v, want still recording", c.State())
	}

	close(tr.gate)
	waitFor(t, c, EventTranscribed)
	waitFor(t, c, EventTranscribed)
}

func TestSubmit(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"from file"}}
	c, sessions := newTestController(t, tr)

	blob, err := capture.NewWAVBlob(make([]int16, 1600), capture.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Submit(blob) {
		t.Fatal("Submit returned false on empty queue")
	}
	waitFor(t, c, EventTranscribed)
	if sessions.Buffer() != "from file" {
		t.Errorf("Buffer = %q", sessions.Buffer())
	}
}
