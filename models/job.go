package models

import (
	"time"
)

// Status is the lifecycle state of a download job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusFetching    Status = "fetching"
	StatusDownloading Status = "downloading"
	StatusConverting  Status = "converting"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// rank orders the non-error states so that updates can only move forward.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusFetching:
		return 1
	case StatusDownloading:
		return 2
	case StatusConverting:
		return 3
	case StatusCompleted:
		return 4
	}
	return -1
}

// IsTerminal reports whether the job can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// IsActive reports whether an execution engine currently owns the job.
func (s Status) IsActive() bool {
	return s == StatusFetching || s == StatusDownloading || s == StatusConverting
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	return next.rank() >= s.rank()
}

// Job is one single-download or queue item and its tracked state.
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Platform    Platform   `json:"platform"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	OutputType  OutputType `json:"outputType"`
	Format      string     `json:"format"`
	Quality     string     `json:"quality"`
	Title       string     `json:"title,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	FileSize    int64      `json:"fileSize,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	Error       string     `json:"error,omitempty"`
	Speed       string     `json:"speed,omitempty"`
	ETA         string     `json:"eta,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Options returns the target parameters the job was submitted with.
func (j *Job) Options() MediaOptions {
	return MediaOptions{
		URL:        j.URL,
		OutputType: j.OutputType,
		Format:     j.Format,
		Quality:    j.Quality,
	}
}

// JobPatch carries a partial update. Nil fields are left untouched.
type JobPatch struct {
	Status      *Status
	Progress    *int
	Title       *string
	Thumbnail   *string
	FileSize    *int64
	Format      *string
	DownloadURL *string
	Error       *string
	Speed       *string
	ETA         *string
}

// HistoryEntry is an immutable snapshot of a successfully completed job.
type HistoryEntry struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Platform    Platform   `json:"platform"`
	OutputType  OutputType `json:"outputType"`
	Format      string     `json:"format"`
	Quality     string     `json:"quality"`
	FileSize    int64      `json:"fileSize,omitempty"`
	DownloadURL string     `json:"downloadUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewHistoryEntry derives the history snapshot fields from a completed job.
// ID and CreatedAt are assigned by the history store.
func NewHistoryEntry(job Job) HistoryEntry {
	return HistoryEntry{
		URL:         job.URL,
		Title:       job.Title,
		Thumbnail:   job.Thumbnail,
		Platform:    job.Platform,
		OutputType:  job.OutputType,
		Format:      job.Format,
		Quality:     job.Quality,
		FileSize:    job.FileSize,
		DownloadURL: job.DownloadURL,
	}
}
