package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// WhisperRecognizer calls an OpenAI-compatible /v1/audio/transcriptions
// endpoint such as speaches or a self-hosted whisper-server.
type WhisperRecognizer struct {
	url    string
	model  string
	client *http.Client
}

// whisperResponse is the verbose_json response body.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogprob float64 `json:"avg_logprob"`
}

// NewWhisperRecognizer creates a Whisper HTTP recognizer.
func NewWhisperRecognizer(url, model string, timeout time.Duration) *WhisperRecognizer {
	return &WhisperRecognizer{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

func (wr *WhisperRecognizer) Name() string  { return "whisper" }
func (wr *WhisperRecognizer) Model() string { return wr.model }

// Recognize uploads the normalized WAV and returns one Segment per
// Whisper segment, or a single Segment holding the full text when the
// server does not return segments.
func (wr *WhisperRecognizer) Recognize(ctx context.Context, audio []byte, cfg RecognitionConfig) ([]Segment, error) {
	if wr.url == "" {
		return nil, fmt.Errorf("%w: WHISPER_URL is not set", ErrMissingCredentials)
	}

	fields := map[string]string{
		"language":        baseLanguage(cfg.LanguageCode),
		"temperature":     "0.00",
		"response_format": "verbose_json",
	}
	if wr.model != "" {
		fields["model"] = wr.model
	}

	body, err := postMultipart(ctx, wr.client, wr.url, nil, "file", audio, fields)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Segments) == 0 {
		return textSegments(result.Text), nil
	}
	segments := make([]Segment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segments = append(segments, Segment{Alternatives: []Alternative{{Transcript: s.Text}}})
	}
	return segments, nil
}

// textSegments wraps a single transcript, returning nil for empty text.
func textSegments(text string) []Segment {
	if text == "" {
		return nil
	}
	return []Segment{{Alternatives: []Alternative{{Transcript: text}}}}
}

// postMultipart sends audio as "audio.wav" in fileField alongside fields and
// returns the response body. Non-200 responses are errors.
func postMultipart(ctx context.Context, client *http.Client, url string, header http.Header, fileField string, audio []byte, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(fileField, "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, tail(string(body), 300))
	}
	return body, nil
}
