package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/vicradon/media-fetcher/models"
)

// InfoProvider looks up metadata for a URL. services.Fetcher implements it.
type InfoProvider interface {
	GetInfo(ctx context.Context, url string) (*models.MediaInfo, error)
}

type InfoHandler struct {
	provider InfoProvider
}

func NewInfoHandler(provider InfoProvider) *InfoHandler {
	return &InfoHandler{
		provider: provider,
	}
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.InfoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := models.ValidateURL(req.URL); err != nil {
		writeMediaError(w, err)
		return
	}

	info, err := h.provider.GetInfo(r.Context(), req.URL)
	if err != nil {
		log.Printf("Info lookup failed for %s: %v", req.URL, err)
		writeMediaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
