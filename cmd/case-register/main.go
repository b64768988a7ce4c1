package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/api"
	"github.com/snarg/case-register/internal/config"
	"github.com/snarg/case-register/internal/metrics"
	"github.com/snarg/case-register/internal/transcribe"
)

var version = "dev"

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", ".env", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.Recognizer, "recognizer", "", "google, whisper, openai or elevenlabs (overrides RECOGNIZER)")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "directory for upload temp files (overrides TEMP_DIR)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("case-register starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Converter
	conv, err := transcribe.NewConverter(cfg.Converter, cfg.ConvertTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid converter")
	}
	if conv.Available() {
		log.Info().Str("converter", conv.Name()).Msg("audio converter found")
	} else {
		log.Warn().Str("converter", conv.Name()).Msg("audio converter not found in PATH; transcription requests will fail")
	}

	// Recognizer
	rec, err := transcribe.NewRecognizer(recognizerOptions(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid recognizer")
	}
	if closer, ok := rec.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	log.Info().
		Str("recognizer", rec.Name()).
		Str("model", rec.Model()).
		Str("language", cfg.LanguageCode).
		Msg("speech recognizer configured")

	svc := transcribe.NewService(conv, rec, transcribe.ServiceOptions{
		TempDir:        cfg.TempDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Recognition: transcribe.RecognitionConfig{
			Encoding:          transcribe.EncodingLinear16,
			SampleRateHertz:   16000,
			LanguageCode:      cfg.LanguageCode,
			EnablePunctuation: cfg.EnablePunctuation,
			Model:             cfg.RecognitionModel,
			UseEnhanced:       cfg.UseEnhanced,
		},
		Log: log.With().Str("component", "transcribe").Logger(),
	})
	prometheus.MustRegister(metrics.NewCollector(svc))

	sweeper := transcribe.NewSweeper(svc.TempDir(), cfg.TempMaxAge, log)
	sweeper.Start()
	defer sweeper.Stop()

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, svc, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown; in-flight recognitions may take a while
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("case-register stopped")
}

func recognizerOptions(cfg *config.Config) transcribe.RecognizerOptions {
	opts := transcribe.RecognizerOptions{
		Name:                  cfg.Recognizer,
		Timeout:               cfg.RecognizerTimeout,
		GoogleCredentialsFile: cfg.GoogleCredentialsFile,
		WhisperURL:            cfg.WhisperURL,
		OpenAIAPIKey:          cfg.OpenAIAPIKey,
		OpenAIBaseURL:         cfg.OpenAIBaseURL,
		ElevenLabsAPIKey:      cfg.ElevenLabsAPIKey,
	}
	switch cfg.Recognizer {
	case "whisper":
		opts.Model = cfg.WhisperModel
	case "openai":
		opts.Model = cfg.OpenAIModel
	case "elevenlabs":
		opts.Model = cfg.ElevenLabsModel
	default:
		opts.Model = cfg.RecognitionModel
	}
	return opts
}
