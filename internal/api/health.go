package api

import (
	"net/http"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// Health answers liveness probes. It never touches the recognizer.
func Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
