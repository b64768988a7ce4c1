// Package mic reads the default input device through PortAudio. It is the
// only package that links the cgo audio library.
package mic

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/snarg/case-register/internal/capture"
)

var _ capture.Source = (*Source)(nil)

// Source captures mono 16-bit audio from the default input device.
type Source struct {
	SampleRate      int
	FramesPerBuffer int
}

// NewSource returns a microphone source at sampleRate Hz.
func NewSource(sampleRate int) *Source {
	return &Source{SampleRate: sampleRate, FramesPerBuffer: 1024}
}

func (s *Source) Open(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	in := make([]int16, s.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.SampleRate), len(in), in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return &paStream{
		stream: stream,
		in:     in,
		format: capture.Format{SampleRate: s.SampleRate, Channels: 1},
	}, nil
}

type paStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	in     []int16
	format capture.Format
	closed bool
}

func (p *paStream) Format() capture.Format { return p.format }

// ReadChunk blocks for one buffer of frames.
func (p *paStream) ReadChunk() ([]int16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, io.EOF
	}
	if err := p.stream.Read(); err != nil {
		// Overflow drops frames but the stream is still usable.
		if err == portaudio.InputOverflowed {
			return []int16{}, nil
		}
		return nil, err
	}
	return append([]int16(nil), p.in...), nil
}

func (p *paStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	portaudio.Terminate()
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}
