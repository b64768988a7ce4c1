package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"HTTP_ADDR":     "",
		"LOG_LEVEL":     "",
		"RECOGNIZER":    "",
		"LANGUAGE_CODE": "",
	})
	defer cleanup()
	for _, k := range []string{"HTTP_ADDR", "LOG_LEVEL", "RECOGNIZER", "LANGUAGE_CODE", "MAX_UPLOAD_BYTES"} {
		os.Unsetenv(k)
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":3001" {
			t.Errorf("HTTPAddr = %q, want :3001", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.MaxUploadBytes != 10<<20 {
			t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 10<<20)
		}
		if cfg.Recognizer != "google" {
			t.Errorf("Recognizer = %q, want google", cfg.Recognizer)
		}
		if cfg.LanguageCode != "te-IN" {
			t.Errorf("LanguageCode = %q, want te-IN", cfg.LanguageCode)
		}
		if !cfg.EnablePunctuation {
			t.Error("EnablePunctuation = false, want true")
		}
		if cfg.ConvertTimeout != 60*time.Second {
			t.Errorf("ConvertTimeout = %v, want 60s", cfg.ConvertTimeout)
		}
		if cfg.WriteTimeout <= cfg.ConvertTimeout+cfg.RecognizerTimeout {
			t.Errorf("WriteTimeout = %v, want more than %v", cfg.WriteTimeout, cfg.ConvertTimeout+cfg.RecognizerTimeout)
		}
		if cfg.TempMaxAge != time.Hour {
			t.Errorf("TempMaxAge = %v, want 1h", cfg.TempMaxAge)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		t.Setenv("RECOGNIZER", "whisper")
		cfg, err := Load(Overrides{
			EnvFile:    "nonexistent.env",
			HTTPAddr:   ":9090",
			LogLevel:   "debug",
			Recognizer: "openai",
			TempDir:    "/tmp/uploads",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.Recognizer != "openai" {
			t.Errorf("Recognizer = %q, want openai", cfg.Recognizer)
		}
		if cfg.TempDir != "/tmp/uploads" {
			t.Errorf("TempDir = %q, want /tmp/uploads", cfg.TempDir)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		t.Setenv("RECOGNIZER", "whisper")
		t.Setenv("MAX_UPLOAD_BYTES", "2048")
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Recognizer != "whisper" {
			t.Errorf("Recognizer = %q, want whisper", cfg.Recognizer)
		}
		if cfg.MaxUploadBytes != 2048 {
			t.Errorf("MaxUploadBytes = %d, want 2048", cfg.MaxUploadBytes)
		}
	})

	t.Run("env_file_loaded", func(t *testing.T) {
		os.Unsetenv("WHISPER_URL")
		path := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(path, []byte("WHISPER_URL=http://whisper:8000/v1/audio/transcriptions\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		defer os.Unsetenv("WHISPER_URL")

		cfg, err := Load(Overrides{EnvFile: path})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.WhisperURL != "http://whisper:8000/v1/audio/transcriptions" {
			t.Errorf("WhisperURL = %q, want value from env file", cfg.WhisperURL)
		}
	})

	t.Run("write_timeout_covers_pipeline", func(t *testing.T) {
		t.Setenv("HTTP_WRITE_TIMEOUT", "30s")
		t.Setenv("CONVERT_TIMEOUT", "45s")
		t.Setenv("RECOGNIZER_TIMEOUT", "90s")
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if want := 145 * time.Second; cfg.WriteTimeout != want {
			t.Errorf("WriteTimeout = %v, want %v", cfg.WriteTimeout, want)
		}
	})

	t.Run("long_write_timeout_kept", func(t *testing.T) {
		t.Setenv("HTTP_WRITE_TIMEOUT", "10m")
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.WriteTimeout != 10*time.Minute {
			t.Errorf("WriteTimeout = %v, want 10m", cfg.WriteTimeout)
		}
	})

	t.Run("invalid_duration", func(t *testing.T) {
		t.Setenv("CONVERT_TIMEOUT", "soon")
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("expected error for invalid duration")
		}
	})
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"https://a.example", 1},
		{"https://a.example, https://b.example,", 2},
	}
	for _, tt := range tests {
		cfg := &Config{CORSOrigins: tt.raw}
		if got := cfg.AllowedOrigins(); len(got) != tt.want {
			t.Errorf("AllowedOrigins(%q) = %v, want %d entries", tt.raw, got, tt.want)
		}
	}
}

func TestLoadDesk(t *testing.T) {
	for _, k := range []string{"CASE_REGISTER_URL", "DESK_STORE_DRIVER", "DESK_STORE_PATH", "REQUEST_TIMEOUT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadDesk(DeskOverrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("LoadDesk: %v", err)
		}
		if cfg.ServerURL != "http://localhost:3001" {
			t.Errorf("ServerURL = %q, want http://localhost:3001", cfg.ServerURL)
		}
		if cfg.RequestTimeout != 30*time.Second {
			t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
		}
		if cfg.StoreDriver != "sqlite" {
			t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
		}
		if filepath.Base(cfg.StorePath) != "desk.sqlite" {
			t.Errorf("StorePath = %q, want default desk.sqlite", cfg.StorePath)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := LoadDesk(DeskOverrides{
			EnvFile:     "nonexistent.env",
			ServerURL:   "http://10.0.0.5:3001",
			StoreDriver: "dir",
			ExportDir:   "/tmp/exports",
		})
		if err != nil {
			t.Fatalf("LoadDesk: %v", err)
		}
		if cfg.ServerURL != "http://10.0.0.5:3001" {
			t.Errorf("ServerURL = %q", cfg.ServerURL)
		}
		if filepath.Base(cfg.StorePath) != "state" {
			t.Errorf("StorePath = %q, want default dir store", cfg.StorePath)
		}
		if cfg.ExportDir != "/tmp/exports" {
			t.Errorf("ExportDir = %q", cfg.ExportDir)
		}
	})
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
