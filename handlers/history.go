package handlers

import (
	"net/http"

	"github.com/vicradon/media-fetcher/services"
)

type HistoryHandler struct {
	history *services.History
}

func NewHistoryHandler(history *services.History) *HistoryHandler {
	return &HistoryHandler{
		history: history,
	}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.history.List(services.HistoryReadLimit))
	case http.MethodDelete:
		h.history.Clear()
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
