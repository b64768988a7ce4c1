package transcribe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Name prefixes of the files a request creates. The sweeper removes only
// files carrying one of them.
const (
	uploadPrefix    = "upload"
	convertedPrefix = "converted"
)

var workspacePrefixes = []string{uploadPrefix, convertedPrefix}

// ownedName reports whether name was created by a Workspace.
func ownedName(name string) bool {
	for _, p := range workspacePrefixes {
		if strings.HasPrefix(name, p+"-") {
			return true
		}
	}
	return false
}

// Workspace owns the temporary files created while serving one request.
// Every file is named <prefix>-<unixnano>-<random><ext>, so concurrent
// requests sharing a base directory never collide.
type Workspace struct {
	dir   string
	files []string
}

// NewWorkspace prepares baseDir (os.TempDir()/case-register when empty).
func NewWorkspace(baseDir string) (*Workspace, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "case-register")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", baseDir, err)
	}
	return &Workspace{dir: baseDir}, nil
}

// Dir returns the base directory.
func (w *Workspace) Dir() string { return w.dir }

// Files returns the paths created so far.
func (w *Workspace) Files() []string {
	return append([]string(nil), w.files...)
}

func (w *Workspace) create(prefix, ext string) (*os.File, error) {
	pattern := fmt.Sprintf("%s-%d-*%s", prefix, time.Now().UnixNano(), ext)
	f, err := os.CreateTemp(w.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	w.files = append(w.files, f.Name())
	return f, nil
}

// Save copies r into a new temp file and returns its path and size.
func (w *Workspace) Save(prefix, ext string, r io.Reader) (string, int64, error) {
	f, err := w.create(prefix, ext)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return "", 0, fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close: %w", err)
	}
	return f.Name(), n, nil
}

// Reserve creates an empty temp file for a tool to overwrite and returns its path.
func (w *Workspace) Reserve(prefix, ext string) (string, error) {
	f, err := w.create(prefix, ext)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	return f.Name(), nil
}

// Cleanup removes every file created by this workspace. Missing files are
// not an error.
func (w *Workspace) Cleanup() error {
	var errs []error
	for _, p := range w.files {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	w.files = nil
	return errors.Join(errs...)
}
