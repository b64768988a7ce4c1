// Package export renders a transcript as a Word document.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	docx "github.com/fumiama/go-docx"
	"github.com/snarg/case-register/internal/localstore"
)

// ErrExportFailed wraps any failure to produce or store a document.
var ErrExportFailed = errors.New("export failed")

const (
	bodySize  = "24" // half-points, 12pt
	titleSize = "32"
)

// File is a rendered document ready to be saved.
type File struct {
	Name       string
	Data       []byte
	Paragraphs int
}

// Paragraphs splits text on blank lines. Lines holding only whitespace
// count as blank. Each block is trimmed and empty blocks are dropped.
func Paragraphs(text string) []string {
	var (
		out   []string
		block []string
	)
	flush := func() {
		if p := strings.TrimSpace(strings.Join(block, "\n")); p != "" {
			out = append(out, p)
		}
		block = block[:0]
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	return out
}

// Export builds a document with a "Transcript" title, a generation
// timestamp and one body paragraph per block of text. Empty text still
// yields a valid document holding only the header.
func Export(text string, now time.Time) (*File, error) {
	paras := Paragraphs(text)

	doc := docx.New().WithDefaultTheme().WithA4Page()
	doc.AddParagraph().Justification("center").AddText("Transcript").Size(titleSize).Bold()
	doc.AddParagraph().Justification("center").AddText("Generated " + now.Format(time.RFC1123)).Size("20").Italic()

	for _, p := range paras {
		doc.AddParagraph().AddText(p).Size(bodySize)
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	return &File{
		Name:       Filename(now),
		Data:       buf.Bytes(),
		Paragraphs: len(paras),
	}, nil
}

// Filename returns the download name for a document generated at now.
func Filename(now time.Time) string {
	return "transcript-" + now.Format("20060102-150405") + ".docx"
}

// Save writes f into dir and returns the written path.
func Save(dir string, f *File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	path := filepath.Join(dir, f.Name)
	if err := localstore.WriteFileAtomic(path, f.Data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return path, nil
}
