package transcribe

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

// isAudioMediaType reports whether a declared Content-Type is audio/*.
// Parameters such as ";codecs=opus" are ignored.
func isAudioMediaType(declared string) bool {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	}
	return strings.HasPrefix(mt, "audio/")
}

// sniff reads the head of r, detects its content type, and returns a reader
// that replays the head followed by the rest of r.
func sniff(r io.Reader) (io.Reader, *mimetype.MIME, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), mimetype.Detect(head), nil
}

// isAudioContent accepts audio formats and containers that commonly carry
// audio (browser recordings are often reported as video/webm or video/mp4).
func isAudioContent(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") || s == "application/ogg" {
			return true
		}
	}
	return false
}

// uploadExt picks a file extension for the stored upload: the client's
// extension when it looks sane, otherwise the sniffed one.
func uploadExt(filename string, mt *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 1 && len(ext) <= 6 && isAlnum(ext[1:]) {
		return ext
	}
	if mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
