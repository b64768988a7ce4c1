// Package client submits recordings to a case-register server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/capture"
)

// DefaultTimeout bounds a whole transcription round trip.
const DefaultTimeout = 30 * time.Second

// ErrEmptyTranscription is returned when the server reports success but
// sends no text.
var ErrEmptyTranscription = errors.New("No transcription received from server")

// ServerError means the server answered with a non-2xx status.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// NoResponseError means the request was sent but no response arrived.
type NoResponseError struct {
	Err error
}

func (e *NoResponseError) Error() string { return "no response: " + e.Err.Error() }
func (e *NoResponseError) Unwrap() error { return e.Err }

// RequestError means the request could not be built.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

// Client talks to the transcription service.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "client").Logger(),
	}
}

type transcribeResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Transcription string `json:"transcription"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Submit uploads blob and returns the transcription. It never retries.
func (c *Client) Submit(ctx context.Context, blob capture.Blob) (string, error) {
	body, contentType, err := encodeUpload(blob)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe", body)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	c.log.Debug().
		Str("filename", filename(blob)).
		Str("mime", blob.MimeType).
		Int("bytes", len(blob.Data)).
		Msg("submitting recording")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NoResponseError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NoResponseError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		json.Unmarshal(data, &er)
		msg := er.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("code", er.Code).Msg("server rejected recording")
		return "", &ServerError{StatusCode: resp.StatusCode, Code: er.Code, Message: msg}
	}

	var tr transcribeResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if tr.Transcription == "" {
		return "", ErrEmptyTranscription
	}
	c.log.Debug().Int("chars", len(tr.Transcription)).Msg("transcription received")
	return tr.Transcription, nil
}

// Health checks that the server is reachable and reports ok.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &RequestError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &NoResponseError{Err: err}
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || resp.StatusCode != http.StatusOK {
		return &ServerError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if body.Status != "ok" {
		return &ServerError{StatusCode: resp.StatusCode, Message: "status " + body.Status}
	}
	return nil
}

func encodeUpload(blob capture.Blob) (io.Reader, string, error) {
	if len(blob.Data) == 0 {
		return nil, "", capture.ErrNoAudio
	}
	mimeType := blob.MimeType
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename(blob)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// filename falls back to "recording" plus an extension for the blob's type.
func filename(blob capture.Blob) string {
	if blob.Filename != "" {
		return blob.Filename
	}
	base, _, _ := strings.Cut(blob.MimeType, ";")
	if mt := mimetype.Lookup(strings.TrimSpace(base)); mt != nil && mt.Extension() != "" {
		return "recording" + mt.Extension()
	}
	return "recording.wav"
}
