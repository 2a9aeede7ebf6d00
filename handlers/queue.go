package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vicradon/media-fetcher/models"
	"github.com/vicradon/media-fetcher/services"
)

// QueueHandler lists or clears the whole queue.
type QueueHandler struct {
	queue *services.JobTable
}

func NewQueueHandler(queue *services.JobTable) *QueueHandler {
	return &QueueHandler{
		queue: queue,
	}
}

func (h *QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.queue.List())
	case http.MethodDelete:
		h.queue.Clear()
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

type QueueAddHandler struct {
	queueService *services.QueueService
}

func NewQueueAddHandler(queueService *services.QueueService) *QueueAddHandler {
	return &QueueAddHandler{
		queueService: queueService,
	}
}

func (h *QueueAddHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.BatchDownloadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts, err := req.Options()
	if err != nil {
		writeMediaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.queueService.Add(r.Context(), opts))
}

// QueueItemHandler reads or removes a single queue item.
type QueueItemHandler struct {
	queue *services.JobTable
}

func NewQueueItemHandler(queue *services.JobTable) *QueueItemHandler {
	return &QueueItemHandler{
		queue: queue,
	}
}

func (h *QueueItemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		job, ok := h.queue.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "Queue item not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		err := h.queue.Remove(id)
		switch {
		case errors.Is(err, services.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "Queue item not found")
		case errors.Is(err, services.ErrJobActive):
			writeError(w, http.StatusConflict, "Cannot remove an item that is being processed")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, successResponse{Success: true})
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

type startResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type QueueStartHandler struct {
	queueService *services.QueueService
}

func NewQueueStartHandler(queueService *services.QueueService) *QueueStartHandler {
	return &QueueStartHandler{
		queueService: queueService,
	}
}

func (h *QueueStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	count := h.queueService.Start()
	message := "No pending items in queue"
	if count > 0 {
		message = fmt.Sprintf("Started processing %d items", count)
	}
	writeJSON(w, http.StatusOK, startResponse{Message: message, Count: count})
}
