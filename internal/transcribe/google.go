package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GoogleRecognizer uses Google Cloud Speech-to-Text synchronous recognition.
// The client is created on first use so the server can start (and report
// health) without credentials present.
type GoogleRecognizer struct {
	credentialsFile string
	model           string
	timeout         time.Duration

	mu     sync.Mutex
	client *speech.Client
}

// NewGoogleRecognizer creates a recognizer that authenticates with the
// service-account file at credentialsFile, or application default
// credentials when credentialsFile is empty.
func NewGoogleRecognizer(credentialsFile, model string, timeout time.Duration) *GoogleRecognizer {
	return &GoogleRecognizer{
		credentialsFile: credentialsFile,
		model:           model,
		timeout:         timeout,
	}
}

func (g *GoogleRecognizer) Name() string  { return "google" }
func (g *GoogleRecognizer) Model() string { return g.model }

func (g *GoogleRecognizer) getClient() (*speech.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}

	var opts []option.ClientOption
	if g.credentialsFile != "" {
		if _, err := os.Stat(g.credentialsFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s not found", ErrMissingCredentials, g.credentialsFile)
			}
			return nil, fmt.Errorf("stat credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(g.credentialsFile))
	}

	c, err := speech.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}
	g.client = c
	return c, nil
}

func (g *GoogleRecognizer) Recognize(ctx context.Context, audio []byte, cfg RecognitionConfig) ([]Segment, error) {
	client, err := g.getClient()
	if err != nil {
		return nil, err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := cfg.Model
	if model == "" {
		model = g.model
	}
	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(cfg.SampleRateHertz),
			AudioChannelCount:          1,
			LanguageCode:               cfg.LanguageCode,
			EnableAutomaticPunctuation: cfg.EnablePunctuation,
			Model:                      model,
			UseEnhanced:                cfg.UseEnhanced,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google speech: %w", err)
	}

	segments := make([]Segment, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		var seg Segment
		for _, a := range r.GetAlternatives() {
			seg.Alternatives = append(seg.Alternatives, Alternative{
				Transcript: a.GetTranscript(),
				Confidence: a.GetConfidence(),
			})
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Close releases the underlying gRPC connection, if one was opened.
func (g *GoogleRecognizer) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
