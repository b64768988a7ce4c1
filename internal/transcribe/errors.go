package transcribe

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure so the HTTP layer can report it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConversion
	KindRecognition
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConversion:
		return "conversion"
	case KindRecognition:
		return "recognition"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Machine-readable error codes returned to clients.
const (
	CodeMissingFile          = "missing_file"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodePayloadTooLarge      = "payload_too_large"
	CodeInvalidAudio         = "invalid_audio"
	CodeConversionFailed     = "conversion_failed"
	CodeNoTranscription      = "no_transcription"
	CodeMissingCredentials   = "missing_credentials"
	CodeRecognitionFailed    = "recognition_failed"
	CodeInternal             = "internal_error"
)

// Error is a categorized pipeline failure. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrMissingCredentials is returned by recognizers whose credentials are not configured.
var ErrMissingCredentials = errors.New("speech recognition credentials not configured")

// ErrNoResults is returned when the recognizer produced no usable text.
var ErrNoResults = errors.New("recognizer returned no results")

func errMissingFile() *Error {
	return &Error{Kind: KindValidation, Code: CodeMissingFile, Message: "No audio file provided"}
}

func errUnsupportedType(mimeType string) *Error {
	return &Error{Kind: KindValidation, Code: CodeUnsupportedMediaType, Message: "Only audio files are allowed",
		Err: fmt.Errorf("declared type %q", mimeType)}
}

func errTooLarge(limit int64) *Error {
	return &Error{Kind: KindValidation, Code: CodePayloadTooLarge,
		Message: fmt.Sprintf("File size too large. Maximum size is %s", humanBytes(limit))}
}

func errInvalidAudio(detected string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidAudio, Message: "Uploaded file does not contain audio",
		Err: fmt.Errorf("detected content type %q", detected)}
}

func errConversion(err error) *Error {
	return &Error{Kind: KindConversion, Code: CodeConversionFailed, Message: "Could not convert audio", Err: err}
}

func errNoTranscription() *Error {
	return &Error{Kind: KindRecognition, Code: CodeNoTranscription, Message: "Could not transcribe audio", Err: ErrNoResults}
}

func errCredentials(err error) *Error {
	return &Error{Kind: KindConfiguration, Code: CodeMissingCredentials,
		Message: "Speech recognition credentials not found. Please check your configuration.", Err: err}
}

func errRecognition(err error) *Error {
	return &Error{Kind: KindRecognition, Code: CodeRecognitionFailed,
		Message: "Error processing audio file: " + err.Error(), Err: err}
}

func errInternal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "Internal server error", Err: err}
}

// NewTooLarge reports an upload that exceeded limit before it reached the service.
func NewTooLarge(limit int64) *Error { return errTooLarge(limit) }

// NewMissingFile reports a request without an audio file part.
func NewMissingFile() *Error { return errMissingFile() }

// AsError returns err as a categorized *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return errInternal(err)
}

func humanBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
