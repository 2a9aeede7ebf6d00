// Package app wires configuration, external tools and services into the
// object graph shared by the HTTP server and the CLI.
package app

import (
	"context"
	"log"
	"time"

	"github.com/vicradon/media-fetcher/config"
	"github.com/vicradon/media-fetcher/database"
	"github.com/vicradon/media-fetcher/services"
	"github.com/vicradon/media-fetcher/tools"
	"github.com/vicradon/media-fetcher/transfer"
)

const youtubeResolveTimeout = 30 * time.Second

type App struct {
	Config    *config.Config
	Store     *services.Store
	Fetcher   *services.Fetcher
	Engine    *services.Engine
	Downloads *services.DownloadService
	Queue     *services.QueueService
	Storage   *services.StorageService
}

// New builds the services. ctx bounds every background job they start.
// A failing archive database is logged and the archive disabled.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) *App {
	ytdlp := tools.NewYtDlp(cfg.YtDlpPath)

	var resolver services.DirectURLResolver = ytdlp
	if cfg.NativeYouTubeResolver {
		resolver = &services.FallbackResolver{
			Primary:  services.NewYouTubeResolver(youtubeResolveTimeout),
			Fallback: ytdlp,
			Logger:   logger,
		}
	}

	var transferer services.Transferer
	switch cfg.TransferBackend {
	case config.TransferAria2c:
		transferer = tools.NewAria2c(cfg.Aria2cPath)
	default:
		transferer = transfer.NewClient(transfer.Options{
			Connections: cfg.TransferConnections,
			ChunkSize:   cfg.TransferChunkSize,
		}, logger)
	}

	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.BaseDelay = cfg.RetryBaseDelay

	fetcher := services.NewFetcher(cfg.DownloadDir, services.FetcherDeps{
		Metadata:   ytdlp,
		Resolver:   resolver,
		Transfer:   transferer,
		Extractor:  ytdlp,
		Gallery:    tools.NewGalleryDl(cfg.GalleryDlPath),
		Transcoder: tools.NewFFmpeg(cfg.FFmpegPath),
		Images:     services.NewImageService(),
		Tagger:     services.NewTagger(),
	}, retry, logger)

	var archive services.Archiver
	if cfg.DatabaseURL != "" {
		db, err := database.Init(cfg.DatabaseURL)
		if err != nil {
			logger.Printf("Warning: history archive disabled: %v", err)
		} else {
			archive = services.NewHistoryArchive(db)
		}
	}

	store := services.NewStore()
	engine := services.NewEngine(store.History, fetcher, archive, logger)

	queue := services.NewQueueService(ctx, store.Queue, engine, cfg.QueueBatchSize, logger)
	if cfg.ExpandPlaylists {
		queue.SetPlaylistLister(services.NewPlaylistExpander())
	}

	return &App{
		Config:    cfg,
		Store:     store,
		Fetcher:   fetcher,
		Engine:    engine,
		Downloads: services.NewDownloadService(ctx, store.Downloads, engine, logger),
		Queue:     queue,
		Storage:   services.NewStorageService(cfg.DownloadDir, logger),
	}
}

// Wait blocks until every background download and queue run has finished.
func (a *App) Wait() {
	a.Downloads.Wait()
	a.Queue.Wait()
}
