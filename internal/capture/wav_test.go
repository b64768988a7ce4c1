package capture

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data, err := EncodeWAV([]int16{1, 2, 3, 4}, Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "hearing.wav")
	os.WriteFile(path, data, 0o644)

	blob, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if blob.MimeType != "audio/wav" {
		t.Errorf("MimeType = %q, want audio/wav", blob.MimeType)
	}
	if blob.Filename != "hearing.wav" {
		t.Errorf("Filename = %q", blob.Filename)
	}

	empty := filepath.Join(dir, "empty.wav")
	os.WriteFile(empty, nil, 0o644)
	if _, err := LoadFile(empty); !errors.Is(err, ErrNoAudio) {
		t.Errorf("empty file err = %v, want ErrNoAudio", err)
	}
}

func TestSeekBuffer(t *testing.T) {
	var b seekBuffer
	b.Write([]byte("hello world"))
	if _, err := b.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	b.Write([]byte("J"))
	b.Seek(0, io.SeekEnd)
	b.Write([]byte("!"))
	if got := string(b.buf); got != "Jello world!" {
		t.Errorf("buf = %q", got)
	}
	if _, err := b.Seek(-100, io.SeekCurrent); err == nil {
		t.Error("expected error for negative position")
	}
}
