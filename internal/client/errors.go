package client

import "errors"

// Category groups client failures for display.
type Category int

const (
	CategoryLocal Category = iota
	CategoryServer
	CategoryNoResponse
)

// CategoryOf reports which kind of failure err is.
func CategoryOf(err error) Category {
	var se *ServerError
	if errors.As(err, &se) {
		return CategoryServer
	}
	var nr *NoResponseError
	if errors.As(err, &nr) {
		return CategoryNoResponse
	}
	return CategoryLocal
}

// Describe renders err as the one-line message shown to the operator.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var se *ServerError
	switch CategoryOf(err) {
	case CategoryServer:
		errors.As(err, &se)
		return "Server error: " + se.Message
	case CategoryNoResponse:
		return "No response from server. Is the backend running?"
	default:
		return "Error: " + err.Error()
	}
}
