package handlers

import (
	"net/http"

	"github.com/vicradon/media-fetcher/models"
	"github.com/vicradon/media-fetcher/services"
)

type DownloadHandler struct {
	downloadService *services.DownloadService
}

func NewDownloadHandler(downloadService *services.DownloadService) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
	}
}

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts, err := req.Options()
	if err != nil {
		writeMediaError(w, err)
		return
	}

	job := h.downloadService.Submit(opts)
	writeJSON(w, http.StatusOK, job)
}

type DownloadStatusHandler struct {
	downloadService *services.DownloadService
}

func NewDownloadStatusHandler(downloadService *services.DownloadService) *DownloadStatusHandler {
	return &DownloadStatusHandler{
		downloadService: downloadService,
	}
}

func (h *DownloadStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	job, ok := h.downloadService.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Download not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
