package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":3001"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"150s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  string        `env:"CORS_ORIGINS"`

	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	TempDir        string        `env:"TEMP_DIR"`
	TempMaxAge     time.Duration `env:"TEMP_MAX_AGE" envDefault:"1h"`

	Converter      string        `env:"CONVERTER" envDefault:"ffmpeg"`
	ConvertTimeout time.Duration `env:"CONVERT_TIMEOUT" envDefault:"60s"`

	Recognizer        string        `env:"RECOGNIZER" envDefault:"google"`
	RecognizerTimeout time.Duration `env:"RECOGNIZER_TIMEOUT" envDefault:"60s"`
	LanguageCode      string        `env:"LANGUAGE_CODE" envDefault:"te-IN"`
	RecognitionModel  string        `env:"RECOGNITION_MODEL" envDefault:"default"`
	EnablePunctuation bool          `env:"ENABLE_PUNCTUATION" envDefault:"true"`
	UseEnhanced       bool          `env:"USE_ENHANCED" envDefault:"true"`

	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"./google-credentials.json"`

	WhisperURL   string `env:"WHISPER_URL"`
	WhisperModel string `env:"WHISPER_MODEL"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"whisper-1"`

	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel  string `env:"ELEVENLABS_MODEL" envDefault:"scribe_v1"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile    string
	HTTPAddr   string
	LogLevel   string
	Recognizer string
	TempDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	loadEnvFile(overrides.EnvFile)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.Recognizer != "" {
		cfg.Recognizer = overrides.Recognizer
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	// A transcription may spend both timeouts before it writes its response.
	if floor := cfg.MinWriteTimeout(); cfg.WriteTimeout < floor {
		cfg.WriteTimeout = floor
	}

	return cfg, nil
}

// MinWriteTimeout is the shortest write timeout that still lets a request
// which runs into both the conversion and recognition limits send its error.
func (c *Config) MinWriteTimeout() time.Duration {
	return c.ConvertTimeout + c.RecognizerTimeout + 10*time.Second
}

// AllowedOrigins splits CORS_ORIGINS into a list. Empty means any origin.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// loadEnvFile loads a .env file into the process environment (silent if missing).
func loadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}
