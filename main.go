package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vicradon/media-fetcher/app"
	"github.com/vicradon/media-fetcher/config"
	"github.com/vicradon/media-fetcher/handlers"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	a := app.New(ctx, cfg, logger)

	go a.Storage.RunCleanup(ctx, cfg.CleanupInterval, cfg.FileMaxAge)

	limiter := rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handlers.CORS(newRouter(a, limiter)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("Server starting on http://%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Shutdown error: %v", err)
	}
	a.Wait()
}

// newRouter registers the API routes. Routes that start work share the
// rate limiter.
func newRouter(a *app.App, limiter *rate.Limiter) *http.ServeMux {
	limited := func(h http.Handler) http.Handler {
		return handlers.RateLimit(limiter, h)
	}

	historyHandler := handlers.NewHistoryHandler(a.Store.History)
	queueHandler := handlers.NewQueueHandler(a.Store.Queue)
	queueItemHandler := handlers.NewQueueItemHandler(a.Store.Queue)

	mux := http.NewServeMux()
	mux.Handle("POST /api/video/info", limited(handlers.NewInfoHandler(a.Fetcher)))
	mux.Handle("POST /api/download", limited(handlers.NewDownloadHandler(a.Downloads)))
	mux.Handle("GET /api/download/{id}/status", handlers.NewDownloadStatusHandler(a.Downloads))
	mux.Handle("GET /api/downloads/history", historyHandler)
	mux.Handle("DELETE /api/downloads/history", historyHandler)
	mux.Handle("GET /api/files/{filename}", handlers.NewFileHandler(a.Storage))
	mux.Handle("GET /api/queue", queueHandler)
	mux.Handle("DELETE /api/queue", queueHandler)
	mux.Handle("POST /api/queue/add", limited(handlers.NewQueueAddHandler(a.Queue)))
	mux.Handle("POST /api/queue/start", limited(handlers.NewQueueStartHandler(a.Queue)))
	mux.Handle("GET /api/queue/{id}", queueItemHandler)
	mux.Handle("DELETE /api/queue/{id}", queueItemHandler)
	return mux
}
