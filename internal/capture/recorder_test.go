package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// fakeStream yields whatever is sent on chunks until closed.
type fakeStream struct {
	chunks    chan []int16
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Format() Format { return Format{SampleRate: 16000, Channels: 1} }

func (s *fakeStream) ReadChunk() ([]int16, error) {
	select {
	case c := <-s.chunks:
		return c, nil
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

type fakeSource struct {
	mu      sync.Mutex
	opened  int
	current *fakeStream
	err     error
}

func (f *fakeSource) Open(ctx context.Context) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.opened++
	f.current = &fakeStream{chunks: make(chan []int16), closed: make(chan struct{})}
	return f.current, nil
}

// feed blocks until the recorder has received the chunk.
func (f *fakeSource) feed(samples ...int16) {
	f.mu.Lock()
	s := f.current
	f.mu.Unlock()
	s.chunks <- samples
}

func newTestRecorder() (*Recorder, *fakeSource) {
	src := &fakeSource{}
	return NewRecorder(src, zerolog.Nop()), src
}

func decodeSamples(t *testing.T, b Blob) []int {
	t.Helper()
	d := wav.NewDecoder(bytes.NewReader(b.Data))
	if !d.IsValidFile() {
		t.Fatal("blob is not a valid WAV file")
	}
	if d.SampleRate != 16000 || d.NumChans != 1 {
		t.Errorf("format = %d Hz / %d ch, want 16000 / 1", d.SampleRate, d.NumChans)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	return buf.Data
}

func TestRecorder_StartStop(t *testing.T) {
	r, src := newTestRecorder()
	if r.State() != Idle {
		t.Fatalf("initial state = %s, want idle", r.State())
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.State() != Recording {
		t.Errorf("state = %s, want recording", r.State())
	}
	src.feed(1, 2, 3)
	src.feed(4, 5)

	blob, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.State() != Idle {
		t.Errorf("state = %s, want idle", r.State())
	}
	if blob.MimeType != "audio/wav" || blob.Filename != "recording.wav" {
		t.Errorf("blob = %s %s", blob.MimeType, blob.Filename)
	}
	got := decodeSamples(t, blob)
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRecorder_StartTwice(t *testing.T) {
	r, _ := newTestRecorder()
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start err = %v, want ErrAlreadyRecording", err)
	}
	r.Pause()
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Start while paused err = %v, want ErrAlreadyRecording", err)
	}
}

func TestRecorder_PauseResume(t *testing.T) {
	r, src := newTestRecorder()
	r.Start(context.Background())
	src.feed(10, 20)

	first, err := r.Pause()
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if r.State() != Paused {
		t.Errorf("state = %s, want paused", r.State())
	}
	if got := decodeSamples(t, first); len(got) != 2 {
		t.Errorf("first segment samples = %v", got)
	}

	if err := r.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if src.opened != 2 {
		t.Errorf("source opened %d times, want 2", src.opened)
	}
	src.feed(30)

	second, err := r.Pause()
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	got := decodeSamples(t, second)
	if len(got) != 1 || got[0] != 30 {
		t.Errorf("second segment samples = %v, want [30]", got)
	}

	if _, err := r.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Stop while paused err = %v, want ErrNoAudio", err)
	}
	if r.State() != Idle {
		t.Errorf("state = %s, want idle", r.State())
	}
}

func TestRecorder_InvalidTransitions(t *testing.T) {
	r, _ := newTestRecorder()
	if _, err := r.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Pause idle err = %v", err)
	}
	if err := r.Resume(context.Background()); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume idle err = %v", err)
	}
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop idle err = %v", err)
	}
}

func TestRecorder_NothingCaptured(t *testing.T) {
	r, _ := newTestRecorder()
	r.Start(context.Background())
	if _, err := r.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
	if r.State() != Idle {
		t.Errorf("state = %s, want idle", r.State())
	}
}

func TestRecorder_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("no input device")}
	r := NewRecorder(src, zerolog.Nop())
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if r.State() != Idle {
		t.Errorf("state = %s, want idle after failed start", r.State())
	}
}

func TestNewWAVBlob_Duration(t *testing.T) {
	blob, err := NewWAVBlob(make([]int16, 8000), Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if blob.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", blob.Duration)
	}
	if _, err := NewWAVBlob([]int16{1}, Format{}); err == nil {
		t.Error("expected error for zero sample rate")
	}
}
