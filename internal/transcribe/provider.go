package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Recognizer is the interface for speech-to-text backends.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, cfg RecognitionConfig) ([]Segment, error)
	Name() string  // "google", "whisper", "openai", "elevenlabs"
	Model() string // model identifier for logs
}

// Encoding of the audio handed to a Recognizer.
type Encoding string

const EncodingLinear16 Encoding = "LINEAR16"

// RecognitionConfig is the fixed per-request recognition configuration.
type RecognitionConfig struct {
	Encoding          Encoding
	SampleRateHertz   int
	LanguageCode      string // BCP-47, e.g. "te-IN"
	EnablePunctuation bool
	Model             string
	UseEnhanced       bool
}

// Segment is one recognized stretch of audio with its ranked alternatives.
type Segment struct {
	Alternatives []Alternative
}

// Alternative is one candidate transcription of a Segment.
type Alternative struct {
	Transcript string
	Confidence float32
}

// Text returns the top alternative's transcript, or "" if there is none.
func (s Segment) Text() string {
	if len(s.Alternatives) == 0 {
		return ""
	}
	return s.Alternatives[0].Transcript
}

// JoinSegments joins the top alternative of each segment with newlines,
// in the order returned. Segments without text are skipped.
func JoinSegments(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text()); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// baseLanguage reduces a BCP-47 tag to its ISO-639 language ("te-IN" -> "te").
func baseLanguage(code string) string {
	if code == "" {
		return "en"
	}
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return strings.ToLower(code[:i])
	}
	return strings.ToLower(code)
}

// RecognizerOptions selects and configures a recognizer backend.
type RecognizerOptions struct {
	Name    string // "google" (default), "whisper", "openai", "elevenlabs"
	Model   string
	Timeout time.Duration

	GoogleCredentialsFile string
	WhisperURL            string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	ElevenLabsAPIKey      string
}

// NewRecognizer builds the recognizer named by opts.Name.
func NewRecognizer(opts RecognizerOptions) (Recognizer, error) {
	switch opts.Name {
	case "", "google":
		return NewGoogleRecognizer(opts.GoogleCredentialsFile, opts.Model, opts.Timeout), nil
	case "whisper":
		return NewWhisperRecognizer(opts.WhisperURL, opts.Model, opts.Timeout), nil
	case "openai":
		return NewOpenAIRecognizer(opts.OpenAIAPIKey, opts.OpenAIBaseURL, opts.Model, opts.Timeout), nil
	case "elevenlabs":
		return NewElevenLabsRecognizer(opts.ElevenLabsAPIKey, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown recognizer %q", opts.Name)
	}
}
