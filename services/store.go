package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vicradon/media-fetcher/models"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobActive    = errors.New("job is being processed")
	ErrJobFinalized = errors.New("job already finished")
)

const (
	historyCapacity  = 50
	HistoryReadLimit = 20
)

// JobTable holds one collection of jobs (single downloads or queue items).
// Callers always receive copies, never the stored records.
type JobTable struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	// seq records insertion order; List sorts on it.
	seq  map[string]uint64
	next uint64
	now  func() time.Time
}

func NewJobTable() *JobTable {
	return &JobTable{
		jobs: make(map[string]*models.Job),
		seq:  make(map[string]uint64),
		now:  time.Now,
	}
}

// Create registers a job for opts in the given initial status.
func (t *JobTable) Create(opts models.MediaOptions, status models.Status) models.Job {
	job := &models.Job{
		ID:         uuid.NewString(),
		URL:        opts.URL,
		Platform:   platformForJob(opts.URL),
		Status:     status,
		OutputType: opts.OutputType,
		Format:     opts.Format,
		Quality:    opts.Quality,
		CreatedAt:  t.now(),
	}

	t.mu.Lock()
	t.jobs[job.ID] = job
	t.next++
	t.seq[job.ID] = t.next
	t.mu.Unlock()

	return *job
}

func (t *JobTable) Get(id string) (models.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Update merges patch into the job. Finished jobs are never modified. A
// status that would move the lifecycle backwards is ignored, and progress
// never decreases. Progress 100 is reserved for completed jobs.
func (t *JobTable) Update(id string, patch models.JobPatch) (models.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return *job, ErrJobFinalized
	}

	if patch.Status != nil && job.Status.CanAdvanceTo(*patch.Status) {
		job.Status = *patch.Status
	}
	if patch.Progress != nil && *patch.Progress > job.Progress {
		job.Progress = min(*patch.Progress, 100)
	}
	switch job.Status {
	case models.StatusCompleted:
		job.Progress = 100
		job.Speed, job.ETA = "", ""
	default:
		job.Progress = min(job.Progress, 99)
	}

	setString(&job.Title, patch.Title)
	setString(&job.Thumbnail, patch.Thumbnail)
	setString(&job.DownloadURL, patch.DownloadURL)
	setString(&job.Format, patch.Format)
	setString(&job.Speed, patch.Speed)
	setString(&job.ETA, patch.ETA)
	if patch.FileSize != nil {
		job.FileSize = *patch.FileSize
	}
	if job.Status == models.StatusError {
		setString(&job.Error, patch.Error)
		if job.Error == "" {
			job.Error = "Download failed"
		}
		job.Speed, job.ETA = "", ""
	}

	return *job, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// List returns all jobs in the order they were created, oldest first.
func (t *JobTable) List() []models.Job {
	t.mu.RLock()
	jobs := make([]models.Job, 0, len(t.jobs))
	order := make(map[string]uint64, len(t.jobs))
	for id, job := range t.jobs {
		jobs = append(jobs, *job)
		order[id] = t.seq[id]
	}
	t.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return order[jobs[i].ID] < order[jobs[j].ID]
	})
	return jobs
}

// Remove deletes a job unless it is currently being processed.
func (t *JobTable) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.IsActive() {
		return ErrJobActive
	}
	delete(t.jobs, id)
	delete(t.seq, id)
	return nil
}

// Clear removes every job that is not currently being processed and returns
// how many were removed.
func (t *JobTable) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, job := range t.jobs {
		if job.Status.IsActive() {
			continue
		}
		delete(t.jobs, id)
		delete(t.seq, id)
		removed++
	}
	return removed
}

// History is the bounded most-recent-first log of completed downloads.
type History struct {
	mu      sync.RWMutex
	entries []models.HistoryEntry
}

func NewHistory() *History {
	return &History{}
}

// Append stamps entry with a fresh ID and time and stores it first.
func (h *History) Append(entry models.HistoryEntry) models.HistoryEntry {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]models.HistoryEntry{entry}, h.entries...)
	if len(h.entries) > historyCapacity {
		h.entries = h.entries[:historyCapacity]
	}
	return entry
}

// List returns up to limit entries, most recent first. A limit <= 0 returns
// HistoryReadLimit entries.
func (h *History) List(limit int) []models.HistoryEntry {
	if limit <= 0 {
		limit = HistoryReadLimit
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := min(limit, len(h.entries))
	out := make([]models.HistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

func (h *History) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}

// Store is the process-wide in-memory state shared by the engine, the queue
// scheduler and the HTTP layer.
type Store struct {
	Downloads *JobTable
	Queue     *JobTable
	History   *History
}

func NewStore() *Store {
	return &Store{
		Downloads: NewJobTable(),
		Queue:     NewJobTable(),
		History:   NewHistory(),
	}
}
