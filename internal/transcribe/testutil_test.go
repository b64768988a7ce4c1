package transcribe

import (
	"testing"

	"github.com/snarg/case-register/internal/capture"
)

// wavBytes encodes samples as a mono 16 kHz 16-bit PCM WAV.
func wavBytes(t testing.TB, samples []int16) []byte {
	t.Helper()
	data, err := capture.EncodeWAV(samples, capture.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func tone(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		if i%20 < 10 {
			s[i] = 8000
		} else {
			s[i] = -8000
		}
	}
	return s
}
