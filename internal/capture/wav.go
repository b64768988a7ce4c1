package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// NewWAVBlob encodes 16-bit samples as a WAV blob.
func NewWAVBlob(samples []int16, f Format) (Blob, error) {
	if f.Channels <= 0 {
		f.Channels = 1
	}
	if f.SampleRate <= 0 {
		return Blob{}, fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	data, err := EncodeWAV(samples, f)
	if err != nil {
		return Blob{}, err
	}
	frames := len(samples) / f.Channels
	return Blob{
		Data:     data,
		MimeType: "audio/wav",
		Filename: "recording.wav",
		Duration: time.Duration(frames) * time.Second / time.Duration(f.SampleRate),
	}, nil
}

// EncodeWAV writes interleaved 16-bit PCM samples into a WAV container.
func EncodeWAV(samples []int16, f Format) ([]byte, error) {
	var out seekBuffer
	enc := wav.NewEncoder(&out, f.SampleRate, 16, f.Channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: f.Channels,
			SampleRate:  f.SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.buf, nil
}

// LoadFile reads an audio file from disk as a Blob. The declared type is
// derived from the content so containers sniffed as video/* (webm, mp4)
// are still sent as audio.
func LoadFile(path string) (Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, err
	}
	if len(data) == 0 {
		return Blob{}, ErrNoAudio
	}
	return Blob{
		Data:     data,
		MimeType: audioMIME(mimetype.Detect(data)),
		Filename: filepath.Base(path),
	}, nil
}

func audioMIME(mt *mimetype.MIME) string {
	s, _, _ := strings.Cut(mt.String(), ";")
	switch {
	case strings.HasPrefix(s, "audio/"):
		return s
	case strings.HasPrefix(s, "video/"):
		return "audio/" + strings.TrimPrefix(s, "video/")
	case s == "application/ogg":
		return "audio/ogg"
	default:
		return s
	}
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
