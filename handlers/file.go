package handlers

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vicradon/media-fetcher/services"
)

type FileHandler struct {
	storageService *services.StorageService
}

func NewFileHandler(storageService *services.StorageService) *FileHandler {
	return &FileHandler{
		storageService: storageService,
	}
}

func (h *FileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "Filename required")
		return
	}

	filePath, info, err := h.storageService.ResolveFile(filename)
	switch {
	case errors.Is(err, services.ErrInvalidPath):
		writeError(w, http.StatusForbidden, "Access denied")
		return
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		log.Printf("Error accessing %s: %v", filename, err)
		writeError(w, http.StatusInternalServerError, "Error accessing file")
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	name := filepath.Base(filePath)
	w.Header().Set("Content-Type", services.ContentType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "private, max-age=3600")

	// ServeContent fills in Content-Length and honors range requests.
	http.ServeContent(w, r, name, info.ModTime(), f)
}
