package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vicradon/media-fetcher/models"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeMediaError maps a classified failure to a status code. Only input
// errors are the caller's fault.
func writeMediaError(w http.ResponseWriter, err error) {
	var me *models.MediaError
	if errors.As(err, &me) && me.Kind == models.KindInvalidInput {
		writeError(w, http.StatusBadRequest, me.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
