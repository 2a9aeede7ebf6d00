package services

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/vicradon/media-fetcher/models"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is how many queue items are processed at once.
const DefaultBatchSize = 2

// JobRunner executes a single job. Engine implements it.
type JobRunner interface {
	Execute(ctx context.Context, table *JobTable, id string, start models.Status) error
}

// QueueService owns the batch queue and processes pending items in fixed
// size batches.
type QueueService struct {
	ctx       context.Context
	queue     *JobTable
	runner    JobRunner
	batchSize int
	playlists PlaylistLister
	logger    *log.Logger

	mu      sync.Mutex
	claimed map[string]bool
	wg      sync.WaitGroup
}

// NewQueueService creates a queue processor. ctx bounds every background
// run started with Start.
func NewQueueService(ctx context.Context, queue *JobTable, runner JobRunner, batchSize int, logger *log.Logger) *QueueService {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QueueService{
		ctx:       ctx,
		queue:     queue,
		runner:    runner,
		batchSize: batchSize,
		logger:    logger,
		claimed:   make(map[string]bool),
	}
}

// SetPlaylistLister enables expanding playlist URLs into one item per video.
func (s *QueueService) SetPlaylistLister(lister PlaylistLister) {
	s.playlists = lister
}

// Add enqueues one pending job per option set. Playlist URLs are expanded
// when a lister is configured; a failed expansion enqueues the URL as is.
func (s *QueueService) Add(ctx context.Context, opts []models.MediaOptions) []models.Job {
	jobs := make([]models.Job, 0, len(opts))
	for _, o := range s.expand(ctx, opts) {
		jobs = append(jobs, s.queue.Create(o, models.StatusPending))
	}
	return jobs
}

func (s *QueueService) expand(ctx context.Context, opts []models.MediaOptions) []models.MediaOptions {
	if s.playlists == nil {
		return opts
	}
	expanded := make([]models.MediaOptions, 0, len(opts))
	for _, o := range opts {
		if ResolvePlatform(o.URL) != models.PlatformYouTube || ExtractPlaylistID(o.URL) == "" {
			expanded = append(expanded, o)
			continue
		}
		urls, err := s.playlists.ListVideos(ctx, o.URL)
		if err != nil || len(urls) == 0 {
			s.logger.Printf("Playlist expansion failed for %s, queueing as single item: %v", o.URL, err)
			expanded = append(expanded, o)
			continue
		}
		for _, u := range urls {
			item := o
			item.URL = u
			expanded = append(expanded, item)
		}
	}
	return expanded
}

// Start snapshots the pending items that no running pass has claimed and
// processes them in the background, batch by batch. It returns how many
// items were accepted. Items added afterwards wait for the next Start.
func (s *QueueService) Start() int {
	s.mu.Lock()
	var ids []string
	for _, job := range s.queue.List() {
		if job.Status != models.StatusPending || s.claimed[job.ID] {
			continue
		}
		s.claimed[job.ID] = true
		ids = append(ids, job.ID)
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return 0
	}

	s.logger.Printf("Queue: Processing %d items in batches of %d", len(ids), s.batchSize)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ids)
	}()
	return len(ids)
}

func (s *QueueService) run(ids []string) {
	for start := 0; start < len(ids); start += s.batchSize {
		batch := ids[start:min(start+s.batchSize, len(ids))]

		var g errgroup.Group
		for _, id := range batch {
			g.Go(func() error {
				defer s.release(id)
				err := s.runner.Execute(s.ctx, s.queue, id, models.StatusFetching)
				if errors.Is(err, ErrJobNotFound) {
					s.logger.Printf("Queue: Item %s was removed before processing", id)
				}
				// Failures are recorded on the job; siblings keep running.
				return nil
			})
		}
		g.Wait()
	}
	s.logger.Printf("Queue: Finished processing %d items", len(ids))
}

func (s *QueueService) release(id string) {
	s.mu.Lock()
	delete(s.claimed, id)
	s.mu.Unlock()
}

// Wait blocks until every background pass has finished.
func (s *QueueService) Wait() {
	s.wg.Wait()
}
