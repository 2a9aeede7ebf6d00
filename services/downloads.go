package services

import (
	"context"
	"log"
	"sync"

	"github.com/vicradon/media-fetcher/models"
)

// DownloadService runs single downloads outside the batch queue.
type DownloadService struct {
	ctx       context.Context
	downloads *JobTable
	runner    JobRunner
	logger    *log.Logger
	wg        sync.WaitGroup
}

func NewDownloadService(ctx context.Context, downloads *JobTable, runner JobRunner, logger *log.Logger) *DownloadService {
	if logger == nil {
		logger = log.Default()
	}
	return &DownloadService{
		ctx:       ctx,
		downloads: downloads,
		runner:    runner,
		logger:    logger,
	}
}

// Submit creates the job in the fetching state and processes it in the
// background. The returned job is the state at creation.
func (s *DownloadService) Submit(opts models.MediaOptions) models.Job {
	job := s.downloads.Create(opts, models.StatusFetching)
	s.logger.Printf("Job %s: Queued %s from %s", job.ID, opts.OutputType, job.Platform.DisplayName())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.Execute(s.ctx, s.downloads, job.ID, models.StatusDownloading)
	}()
	return job
}

func (s *DownloadService) Get(id string) (models.Job, bool) {
	return s.downloads.Get(id)
}

// Wait blocks until every submitted download has finished.
func (s *DownloadService) Wait() {
	s.wg.Wait()
}
