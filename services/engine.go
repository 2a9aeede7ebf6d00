package services

import (
	"context"
	"errors"
	"log"
	"net/url"
	"path/filepath"

	"github.com/vicradon/media-fetcher/models"
)

// FilesRoute is the URL prefix completed files are served under.
const FilesRoute = "/api/files/"

// maxRunningProgress caps progress forwarded from the fetch pipeline until
// the job is finalized.
const maxRunningProgress = 95

// MediaFetcher produces a file for a set of media options.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, opts models.MediaOptions, onProgress models.ProgressFunc) (*models.FetchResult, error)
}

// Archiver persists completed history entries outside the process.
type Archiver interface {
	Archive(entry models.HistoryEntry) error
}

// Engine drives one job from its first active state to completed or error.
type Engine struct {
	history *History
	fetcher MediaFetcher
	archive Archiver
	logger  *log.Logger
}

// NewEngine creates an engine. archive may be nil.
func NewEngine(history *History, fetcher MediaFetcher, archive Archiver, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		history: history,
		fetcher: fetcher,
		archive: archive,
		logger:  logger,
	}
}

// Execute runs job id of table. start is the first active status written
// (fetching for queue items, downloading for single downloads). The returned
// error is the fetch failure already recorded on the job, or a store error
// when the job cannot be driven at all.
func (e *Engine) Execute(ctx context.Context, table *JobTable, id string, start models.Status) error {
	job, err := table.Update(id, models.JobPatch{Status: &start, Progress: ptr(5)})
	if err != nil {
		return err
	}

	e.logger.Printf("Job %s: Starting %s download of %s", id, job.OutputType, job.URL)

	result, err := e.fetcher.FetchMedia(ctx, job.Options(), func(p models.Progress) {
		status := models.StatusDownloading
		if p.Stage == models.StageCompleted || p.Stage == models.StageConverting {
			status = models.StatusConverting
		}
		patch := models.JobPatch{
			Status:   &status,
			Progress: ptr(min(int(p.Percent), maxRunningProgress)),
		}
		if p.Speed != "" {
			patch.Speed = &p.Speed
		}
		if p.ETA != "" {
			patch.ETA = &p.ETA
		}
		if _, err := table.Update(id, patch); err != nil && !errors.Is(err, ErrJobFinalized) {
			e.logger.Printf("Job %s: Failed to record progress: %v", id, err)
		}
	})
	if err != nil {
		msg := errorMessage(err)
		if _, uerr := table.Update(id, models.JobPatch{Status: ptr(models.StatusError), Error: &msg}); uerr != nil {
			e.logger.Printf("Job %s: Failed to record error: %v", id, uerr)
		}
		e.logger.Printf("Job %s: Failed: %s", id, msg)
		return err
	}

	downloadURL := DownloadURL(result.FilePath)
	patch := models.JobPatch{
		Status:      ptr(models.StatusCompleted),
		Progress:    ptr(100),
		Title:       &result.Title,
		Thumbnail:   &result.Thumbnail,
		FileSize:    &result.FileSize,
		DownloadURL: &downloadURL,
	}
	if result.Format != "" {
		patch.Format = &result.Format
	}
	job, err = table.Update(id, patch)
	if err != nil {
		return err
	}

	entry := e.history.Append(models.NewHistoryEntry(job))
	if e.archive != nil {
		if err := e.archive.Archive(entry); err != nil {
			e.logger.Printf("Job %s: Failed to archive history entry: %v", id, err)
		}
	}

	e.logger.Printf("Job %s: Completed (%s)", id, filepath.Base(result.FilePath))
	return nil
}

// DownloadURL is the API path a stored file is served from.
func DownloadURL(filePath string) string {
	return FilesRoute + url.PathEscape(filepath.Base(filePath))
}

func ptr[T any](v T) *T {
	return &v
}
