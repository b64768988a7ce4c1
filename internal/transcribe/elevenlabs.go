package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const elevenLabsSTTEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

// ElevenLabsRecognizer calls the ElevenLabs Speech-to-Text API.
type ElevenLabsRecognizer struct {
	apiKey   string
	model    string // "scribe_v1" or "scribe_v2"
	endpoint string
	client   *http.Client
}

type elevenlabsResponse struct {
	LanguageCode        string           `json:"language_code"`
	LanguageProbability float64          `json:"language_probability"`
	Text                string           `json:"text"`
	Words               []elevenlabsWord `json:"words"`
}

type elevenlabsWord struct {
	Text string `json:"text"`
	Type string `json:"type"` // "word" or "spacing"
}

// NewElevenLabsRecognizer creates an ElevenLabs STT recognizer.
func NewElevenLabsRecognizer(apiKey, model string, timeout time.Duration) *ElevenLabsRecognizer {
	return &ElevenLabsRecognizer{
		apiKey:   apiKey,
		model:    model,
		endpoint: elevenLabsSTTEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (el *ElevenLabsRecognizer) Name() string  { return "elevenlabs" }
func (el *ElevenLabsRecognizer) Model() string { return el.model }

// Recognize returns the whole transcript as one Segment.
func (el *ElevenLabsRecognizer) Recognize(ctx context.Context, audio []byte, cfg RecognitionConfig) ([]Segment, error) {
	if el.apiKey == "" {
		return nil, fmt.Errorf("%w: ELEVENLABS_API_KEY is not set", ErrMissingCredentials)
	}

	header := http.Header{}
	header.Set("xi-api-key", el.apiKey)
	fields := map[string]string{
		"model_id":      el.model,
		"language_code": baseLanguage(cfg.LanguageCode),
	}

	body, err := postMultipart(ctx, el.client, el.endpoint, header, "file", audio, fields)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}

	var result elevenlabsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return textSegments(result.Text), nil
}
