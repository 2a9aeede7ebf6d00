package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vicradon/media-fetcher/models"
	"github.com/vicradon/media-fetcher/services"
	"golang.org/x/time/rate"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type stubFetcher struct {
	result *models.FetchResult
	err    error
}

func (f *stubFetcher) FetchMedia(context.Context, models.MediaOptions, models.ProgressFunc) (*models.FetchResult, error) {
	return f.result, f.err
}

type stubInfo struct {
	info *models.MediaInfo
	err  error
}

func (s *stubInfo) GetInfo(context.Context, string) (*models.MediaInfo, error) {
	return s.info, s.err
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestInfoHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		provider   *stubInfo
		wantStatus int
	}{
		{"ok", `{"url":"https://youtu.be/abc"}`, &stubInfo{info: &models.MediaInfo{ID: "abc", Title: "Demo"}}, http.StatusOK},
		{"bad json", `{`, &stubInfo{}, http.StatusBadRequest},
		{"bad url", `{"url":"not a url"}`, &stubInfo{}, http.StatusBadRequest},
		{"provider failure", `{"url":"https://youtu.be/abc"}`, &stubInfo{err: models.NewError(models.KindRateLimited, models.MsgRateLimited)}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/video/info", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			NewInfoHandler(tt.provider).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body)
			}
			if rec.Code != http.StatusOK {
				if resp := decode[errorResponse](t, rec); resp.Error == "" {
					t.Error("Expected an error message")
				}
			}
		})
	}
}

func TestDownloadLifecycle(t *testing.T) {
	store := services.NewStore()
	engine := services.NewEngine(store.History, &stubFetcher{result: &models.FetchResult{
		FilePath: "/downloads/demo_1a2b3c4d.mp4", FileSize: 10, Title: "Demo",
	}}, nil, quietLogger())
	downloads := services.NewDownloadService(context.Background(), store.Downloads, engine, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":"https://vimeo.com/1","outputType":"video","format":"mp4","quality":"720p"}`))
	rec := httptest.NewRecorder()
	NewDownloadHandler(downloads).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, rec.Body)
	}
	job := decode[models.Job](t, rec)
	if job.ID == "" || job.Status != models.StatusFetching || job.Platform != models.PlatformVimeo {
		t.Fatalf("Unexpected job %+v", job)
	}
	downloads.Wait()

	req = httptest.NewRequest(http.MethodGet, "/api/download/"+job.ID+"/status", nil)
	req.SetPathValue("id", job.ID)
	rec = httptest.NewRecorder()
	NewDownloadStatusHandler(downloads).ServeHTTP(rec, req)
	got := decode[models.Job](t, rec)
	if got.Status != models.StatusCompleted || got.Progress != 100 || got.DownloadURL != "/api/files/demo_1a2b3c4d.mp4" {
		t.Errorf("Unexpected final job %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/download/missing/status", nil)
	req.SetPathValue("id", "missing")
	rec = httptest.NewRecorder()
	NewDownloadStatusHandler(downloads).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestDownloadHandlerValidation(t *testing.T) {
	store := services.NewStore()
	downloads := services.NewDownloadService(context.Background(), store.Downloads, nil, quietLogger())

	bodies := []string{
		`{"url":"","outputType":"video"}`,
		`{"url":"ftp://example.com/a","outputType":"video"}`,
		`{"url":"https://vimeo.com/1","outputType":"hologram"}`,
		`{"url":"https://vimeo.com/1","outputType":"audio","format":"flac"}`,
		`{"url":"https://vimeo.com/1","outputType":"image","quality":"ultra"}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(body))
		rec := httptest.NewRecorder()
		NewDownloadHandler(downloads).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	if len(store.Downloads.List()) != 0 {
		t.Error("Invalid requests must not create jobs")
	}
}

func TestHistoryHandler(t *testing.T) {
	history := services.NewHistory()
	for i := range 25 {
		history.Append(models.HistoryEntry{Title: strings.Repeat("x", i+1), DownloadURL: "/api/files/x"})
	}
	h := NewHistoryHandler(history)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/downloads/history", nil))
	entries := decode[[]models.HistoryEntry](t, rec)
	if len(entries) != services.HistoryReadLimit || len(entries[0].Title) != 25 {
		t.Errorf("Expected the 20 most recent entries, got %d starting with %q", len(entries), entries[0].Title)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/downloads/history", nil))
	if resp := decode[successResponse](t, rec); !resp.Success {
		t.Error("Expected success response")
	}
	if len(history.List(0)) != 0 {
		t.Error("Expected history to be cleared")
	}
}

func TestFileHandler(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "demo_1a2b3c4d.mp3"), []byte("id3data"), 0644)
	h := NewFileHandler(services.NewStorageService(dir, quietLogger()))

	tests := []struct {
		name       string
		filename   string
		wantStatus int
	}{
		{"ok", "demo_1a2b3c4d.mp3", http.StatusOK},
		{"traversal", "../../etc/passwd", http.StatusForbidden},
		{"missing", "nope.mp4", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/files/x", nil)
			req.SetPathValue("filename", tt.filename)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if rec.Code != http.StatusOK {
				return
			}
			headers := map[string]string{
				"Content-Type":        "audio/mpeg",
				"Content-Length":      "7",
				"Content-Disposition": `attachment; filename=demo_1a2b3c4d.mp3`,
				"Cache-Control":       "private, max-age=3600",
			}
			for k, want := range headers {
				if got := rec.Header().Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
			if rec.Body.String() != "id3data" {
				t.Errorf("Unexpected body %q", rec.Body)
			}
		})
	}
}

func TestQueueHandlers(t *testing.T) {
	store := services.NewStore()
	engine := services.NewEngine(store.History, &stubFetcher{err: models.NewError(models.KindContentNotFound, models.MsgContentNotFound)}, nil, quietLogger())
	queueService := services.NewQueueService(context.Background(), store.Queue, engine, services.DefaultBatchSize, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/queue/add", strings.NewReader(`{"urls":["https://vimeo.com/1","https://vimeo.com/2","https://vimeo.com/3"],"outputType":"audio"}`))
	rec := httptest.NewRecorder()
	NewQueueAddHandler(queueService).ServeHTTP(rec, req)
	added := decode[[]models.Job](t, rec)
	if len(added) != 3 || added[0].Format != "mp3" || added[0].Quality != "192kbps" {
		t.Fatalf("Unexpected queued jobs %+v", added)
	}

	rec = httptest.NewRecorder()
	NewQueueAddHandler(queueService).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/queue/add", strings.NewReader(`{"urls":[],"outputType":"audio"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an empty batch, got %d", rec.Code)
	}

	item := NewQueueItemHandler(store.Queue)
	req = httptest.NewRequest(http.MethodDelete, "/api/queue/x", nil)
	req.SetPathValue("id", added[2].ID)
	rec = httptest.NewRecorder()
	item.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected pending item removal to succeed, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	item.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a removed item, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewQueueStartHandler(queueService).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/queue/start", nil))
	start := decode[startResponse](t, rec)
	if start.Count != 2 || start.Message == "" {
		t.Errorf("Unexpected start response %+v", start)
	}
	queueService.Wait()

	rec = httptest.NewRecorder()
	NewQueueHandler(store.Queue).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	listed := decode[[]models.Job](t, rec)
	if len(listed) != 2 {
		t.Fatalf("Unexpected queue listing %+v", listed)
	}
	for _, job := range listed {
		if job.Status != models.StatusError || job.Error != models.MsgContentNotFound {
			t.Errorf("Expected classified error state, got %s %q", job.Status, job.Error)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue/x", nil)
	req.SetPathValue("id", added[0].ID)
	rec = httptest.NewRecorder()
	item.ServeHTTP(rec, req)
	if got := decode[models.Job](t, rec); got.ID != added[0].ID {
		t.Errorf("Unexpected item %+v", got)
	}

	rec = httptest.NewRecorder()
	NewQueueHandler(store.Queue).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/queue", nil))
	if len(store.Queue.List()) != 0 {
		t.Error("Expected queue to be cleared")
	}
}

func TestQueueItemActiveConflict(t *testing.T) {
	queue := services.NewJobTable()
	job := queue.Create(models.MediaOptions{URL: "https://vimeo.com/1", OutputType: models.OutputVideo, Format: "mp4", Quality: "best"}, models.StatusPending)
	queue.Update(job.ID, models.JobPatch{Status: ptr(models.StatusDownloading)})

	req := httptest.NewRequest(http.MethodDelete, "/api/queue/x", nil)
	req.SetPathValue("id", job.ID)
	rec := httptest.NewRecorder()
	NewQueueItemHandler(queue).ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for an active item, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	h := RateLimit(limiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Unexpected status codes %v", codes)
	}
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/download", nil))
	if rec.Code != http.StatusNoContent || called {
		t.Errorf("Expected preflight to be answered directly, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS origin header")
	}
}

func ptr[T any](v T) *T {
	return &v
}
