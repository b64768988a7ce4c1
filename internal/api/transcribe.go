package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/transcribe"
)

// multipartOverhead is allowed on top of the upload limit for boundaries and headers.
const multipartOverhead = 1 << 20

// Transcriber runs the transcription pipeline for one upload.
type Transcriber interface {
	Transcribe(ctx context.Context, up transcribe.Upload) (string, error)
	MaxUploadBytes() int64
}

// TranscribeResponse is the success body of POST /api/transcribe.
type TranscribeResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Transcription string `json:"transcription"`
}

// TranscribeHandler serves audio uploads.
type TranscribeHandler struct {
	svc Transcriber
	log zerolog.Logger
}

func NewTranscribeHandler(svc Transcriber, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		svc: svc,
		log: log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the transcription endpoint.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcribe", h.Transcribe)
}

// Transcribe handles POST /api/transcribe with the audio in multipart field "audio".
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.writeError(w, transcribe.NewTooLarge(limit))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			h.writeError(w, transcribe.NewMissingFile())
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, transcribe.CodeMissingFile, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		h.writeError(w, transcribe.NewMissingFile())
		return
	}
	defer file.Close()

	text, err := h.svc.Transcribe(r.Context(), transcribe.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, TranscribeResponse{
		Success:       true,
		Message:       "Transcription completed",
		Transcription: text,
	})
}

func (h *TranscribeHandler) writeError(w http.ResponseWriter, err error) {
	te := transcribe.AsError(err)
	status := StatusFor(te)
	ev := h.log.Warn()
	if status >= 500 {
		ev = h.log.Error()
	}
	ev.Err(err).Str("code", te.Code).Int("status", status).Msg("transcription request failed")
	WriteErrorWithCode(w, status, te.Code, te.Message)
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(e *transcribe.Error) int {
	switch e.Code {
	case transcribe.CodeMissingFile:
		return http.StatusBadRequest
	case transcribe.CodeUnsupportedMediaType, transcribe.CodeInvalidAudio:
		return http.StatusUnsupportedMediaType
	case transcribe.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case transcribe.CodeConversionFailed, transcribe.CodeNoTranscription:
		return http.StatusUnprocessableEntity
	case transcribe.CodeRecognitionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
