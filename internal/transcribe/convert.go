package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Converter normalizes arbitrary input audio to mono, 16 kHz, 16-bit
// signed little-endian PCM in a WAV container.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
	Name() string
}

// ExecConverter runs an external tool (ffmpeg or sox) to convert audio.
type ExecConverter struct {
	tool    string
	timeout time.Duration

	once  sync.Once
	avail bool
}

// NewConverter returns the converter named by CONVERTER ("ffmpeg" or "sox").
func NewConverter(name string, timeout time.Duration) (*ExecConverter, error) {
	switch name {
	case "", "ffmpeg":
		return &ExecConverter{tool: "ffmpeg", timeout: timeout}, nil
	case "sox":
		return &ExecConverter{tool: "sox", timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown converter %q (want ffmpeg or sox)", name)
	}
}

func (c *ExecConverter) Name() string { return c.tool }

// Available reports whether the tool is in PATH. The lookup happens once.
func (c *ExecConverter) Available() bool {
	c.once.Do(func() {
		_, err := exec.LookPath(c.tool)
		c.avail = err == nil
	})
	return c.avail
}

// Convert writes the normalized audio to outputPath, overwriting it.
func (c *ExecConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if !c.Available() {
		return fmt.Errorf("%s not found in PATH", c.tool)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.tool, c.args(inputPath, outputPath)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Leave an empty file behind rather than a partial one.
		os.Truncate(outputPath, 0)
		return fmt.Errorf("%s: %w: %s", c.tool, err, tail(stderr.String(), 300))
	}

	fi, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%s produced no output", c.tool)
	}
	return nil
}

func (c *ExecConverter) args(in, out string) []string {
	if c.tool == "sox" {
		// sox: 16-bit signed output, resample to 16kHz mono
		return []string{
			in,
			"-b", "16", "-e", "signed-integer",
			out,
			"rate", "16000",
			"channels", "1",
		}
	}
	// ffmpeg -y -i input -vn -ac 1 -ar 16000 -acodec pcm_s16le -f wav output
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-y", "-i", in,
		"-vn",
		"-ac", "1", "-ar", "16000",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		out,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
