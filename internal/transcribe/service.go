package transcribe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/metrics"
)

// DefaultMaxUploadBytes is the upload ceiling when none is configured.
const DefaultMaxUploadBytes = 10 << 20

// Upload is one audio file received over HTTP.
type Upload struct {
	Filename string
	MimeType string // declared by the client
	Size     int64  // declared size, -1 if unknown
	Body     io.Reader
}

// ServiceOptions configures the transcription pipeline.
type ServiceOptions struct {
	TempDir        string
	MaxUploadBytes int64
	Recognition    RecognitionConfig
	Log            zerolog.Logger
}

// Service runs the upload -> convert -> recognize pipeline for one request
// at a time per call; it holds no per-request state, so concurrent calls are safe.
type Service struct {
	conv Converter
	rec  Recognizer
	opts ServiceOptions
	log  zerolog.Logger

	inFlight atomic.Int64
}

// NewService creates a transcription service.
func NewService(conv Converter, rec Recognizer, opts ServiceOptions) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "case-register")
	}
	if opts.Recognition.Encoding == "" {
		opts.Recognition.Encoding = EncodingLinear16
	}
	if opts.Recognition.SampleRateHertz == 0 {
		opts.Recognition.SampleRateHertz = 16000
	}
	return &Service{
		conv: conv,
		rec:  rec,
		opts: opts,
		log:  opts.Log,
	}
}

// MaxUploadBytes returns the configured upload ceiling.
func (s *Service) MaxUploadBytes() int64 { return s.opts.MaxUploadBytes }

// TempDir returns the upload temp directory.
func (s *Service) TempDir() string { return s.opts.TempDir }

// Recognizer returns the configured recognizer.
func (s *Service) Recognizer() Recognizer { return s.rec }

// Converter returns the configured converter.
func (s *Service) Converter() Converter { return s.conv }

// InFlight returns the number of Transcribe calls in progress.
func (s *Service) InFlight() int { return int(s.inFlight.Load()) }

// TempFiles counts files currently in the temp directory.
func (s *Service) TempFiles() int {
	entries, err := os.ReadDir(s.opts.TempDir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// ConverterAvailable reports whether the converter's tool can be run.
// Converters that cannot tell are assumed available.
func (s *Service) ConverterAvailable() bool {
	if a, ok := s.conv.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// Transcribe validates the upload, converts it, and returns the joined
// transcript. Errors are always *Error. Temporary files are removed before
// it returns, whatever the outcome.
func (s *Service) Transcribe(ctx context.Context, up Upload) (text string, err error) {
	start := time.Now()
	s.inFlight.Add(1)
	defer func() {
		s.inFlight.Add(-1)
		outcome := "ok"
		if err != nil {
			outcome = AsError(err).Code
		}
		metrics.TranscriptionsTotal.WithLabelValues(outcome).Inc()
		metrics.TranscriptionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if up.Body == nil {
		return "", errMissingFile()
	}
	if !isAudioMediaType(up.MimeType) {
		return "", errUnsupportedType(up.MimeType)
	}
	if up.Size > s.opts.MaxUploadBytes {
		return "", errTooLarge(s.opts.MaxUploadBytes)
	}

	body, detected, err := sniff(up.Body)
	if err != nil {
		return "", errInternal(err)
	}
	if !isAudioContent(detected) {
		return "", errInvalidAudio(detected.String())
	}

	ws, err := NewWorkspace(s.opts.TempDir)
	if err != nil {
		return "", errInternal(err)
	}
	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("temp file cleanup failed")
		}
	}()

	// 1. Persist upload
	inPath, n, err := ws.Save(uploadPrefix, uploadExt(up.Filename, detected), io.LimitReader(body, s.opts.MaxUploadBytes+1))
	if err != nil {
		return "", errInternal(err)
	}
	if n > s.opts.MaxUploadBytes {
		return "", errTooLarge(s.opts.MaxUploadBytes)
	}
	metrics.UploadBytes.Observe(float64(n))

	log := s.log.With().Str("filename", up.Filename).Str("detected", detected.String()).Logger()
	log.Info().Int64("bytes", n).Msg("processing upload")

	// 2. Normalize to mono 16kHz 16-bit PCM
	outPath, err := ws.Reserve(convertedPrefix, ".wav")
	if err != nil {
		return "", errInternal(err)
	}
	if err := s.conv.Convert(ctx, inPath, outPath); err != nil {
		log.Warn().Err(err).Str("converter", s.conv.Name()).Msg("conversion failed")
		return "", errConversion(err)
	}
	pcm, err := os.ReadFile(outPath)
	if err != nil {
		return "", errInternal(err)
	}

	// 3. Recognize
	log.Debug().Str("recognizer", s.rec.Name()).Int("pcm_bytes", len(pcm)).Msg("sending audio to recognizer")
	segments, err := s.rec.Recognize(ctx, pcm, s.opts.Recognition)
	if err != nil {
		if errors.Is(err, ErrMissingCredentials) {
			log.Error().Err(err).Msg("recognizer credentials missing")
			return "", errCredentials(err)
		}
		log.Warn().Err(err).Str("recognizer", s.rec.Name()).Msg("recognition failed")
		return "", errRecognition(err)
	}

	// 4. Join results
	text = JoinSegments(segments)
	if text == "" {
		log.Info().Int("segments", len(segments)).Msg("no transcription results")
		return "", errNoTranscription()
	}

	log.Info().
		Int("segments", len(segments)).
		Dur("duration", time.Since(start)).
		Msg("transcription completed")
	return text, nil
}
