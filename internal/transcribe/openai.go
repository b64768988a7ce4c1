package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRecognizer uses the OpenAI audio transcription API.
type OpenAIRecognizer struct {
	client *openai.Client
	model  string
	hasKey bool
}

// NewOpenAIRecognizer creates an OpenAI recognizer. baseURL may be empty.
func NewOpenAIRecognizer(apiKey, baseURL, model string, timeout time.Duration) *OpenAIRecognizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIRecognizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hasKey: apiKey != "",
	}
}

func (o *OpenAIRecognizer) Name() string  { return "openai" }
func (o *OpenAIRecognizer) Model() string { return o.model }

func (o *OpenAIRecognizer) Recognize(ctx context.Context, audio []byte, cfg RecognitionConfig) ([]Segment, error) {
	if !o.hasKey {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingCredentials)
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio),
		Language: baseLanguage(cfg.LanguageCode),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	if len(resp.Segments) == 0 {
		return textSegments(resp.Text), nil
	}
	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{Alternatives: []Alternative{{Transcript: s.Text}}})
	}
	return segments, nil
}
