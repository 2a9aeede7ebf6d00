// Package transfer downloads direct media URLs over parallel HTTP range
// requests, falling back to a single stream when the origin does not
// support ranges.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/vicradon/media-fetcher/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConnections = 16
	DefaultChunkSize   = 1 << 20

	defaultProgressInterval = 500 * time.Millisecond
	userAgent               = "media-fetcher/1.0"
)

type Options struct {
	Connections      int
	ChunkSize        int64
	ProgressInterval time.Duration
	HTTPClient       *http.Client
}

// Client implements the direct transfer used by the fetch pipeline.
type Client struct {
	http        *http.Client
	grab        *grab.Client
	connections int
	chunkSize   int64
	interval    time.Duration
	logger      *log.Logger
}

func NewClient(opts Options, logger *log.Logger) *Client {
	if opts.Connections < 1 {
		opts.Connections = DefaultConnections
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = log.Default()
	}

	gc := grab.NewClient()
	gc.UserAgent = userAgent
	gc.HTTPClient = opts.HTTPClient

	return &Client{
		http:        opts.HTTPClient,
		grab:        gc,
		connections: opts.Connections,
		chunkSize:   opts.ChunkSize,
		interval:    opts.ProgressInterval,
		logger:      logger,
	}
}

// Transfer downloads url to destPath. Progress percentages are 0-100.
func (c *Client) Transfer(ctx context.Context, url, destPath string, onProgress models.ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(models.Progress) {}
	}

	size, ranged, err := c.probe(ctx, url)
	if err != nil || !ranged || size <= 0 {
		if err != nil {
			c.logger.Printf("Transfer: probe failed for %s, using single stream: %v", filepath.Base(destPath), err)
		}
		return c.single(ctx, url, destPath, onProgress)
	}
	return c.segmented(ctx, url, destPath, size, onProgress)
}

// probe reports the content length and whether byte ranges are accepted.
func (c *Client) probe(ctx context.Context, url string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, false, err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, false, fmt.Errorf("HEAD returned status %d", resp.StatusCode)
	}
	return resp.ContentLength, resp.Header.Get("Accept-Ranges") == "bytes", nil
}

func (c *Client) segmented(ctx context.Context, url, destPath string, size int64, onProgress models.ProgressFunc) error {
	partPath := destPath + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return models.WrapError(models.KindTransferFailed, err, "failed to create output file")
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(partPath)
		return models.WrapError(models.KindTransferFailed, err, "failed to allocate output file")
	}

	var done atomic.Int64
	stop := c.report(size, &done, onProgress)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.connections)
	for start := int64(0); start < size; start += c.chunkSize {
		end := min(start+c.chunkSize, size) - 1
		g.Go(func() error {
			return c.fetchRange(gctx, url, f, start, end, &done)
		})
	}
	err = g.Wait()
	stop()

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partPath)
		return models.WrapError(models.KindTransferFailed, err, fmt.Sprintf("transfer failed: %v", err))
	}
	if err := os.Rename(partPath, destPath); err != nil {
		os.Remove(partPath)
		return models.WrapError(models.KindTransferFailed, err, "failed to move file into place")
	}

	onProgress(models.Progress{Percent: 100, Stage: models.StageDownloading})
	return nil
}

func (c *Client) fetchRange(ctx context.Context, url string, w io.WriterAt, start, end int64, done *atomic.Int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("range %d-%d returned status %d", start, end, resp.StatusCode)
	}

	want := end - start + 1
	n, err := io.Copy(&countingWriter{w: io.NewOffsetWriter(w, start), n: done}, io.LimitReader(resp.Body, want))
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("range %d-%d: got %d of %d bytes", start, end, n, want)
	}
	return nil
}

// report emits progress every interval until the returned stop func is
// called.
func (c *Client) report(size int64, done *atomic.Int64, onProgress models.ProgressFunc) func() {
	ticker := time.NewTicker(c.interval)
	quit := make(chan struct{})
	finished := make(chan struct{})
	started := time.Now()

	go func() {
		defer close(finished)
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				n := done.Load()
				elapsed := time.Since(started).Seconds()
				rate := 0.0
				if elapsed > 0 {
					rate = float64(n) / elapsed
				}
				p := models.Progress{
					Percent: float64(n) * 100 / float64(size),
					Stage:   models.StageDownloading,
					Speed:   FormatRate(rate),
				}
				if rate > 0 {
					p.ETA = formatETA(time.Duration(float64(size-n) / rate * float64(time.Second)))
				}
				onProgress(p)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(quit)
		<-finished
	}
}

// single downloads url in one stream with grab.
func (c *Client) single(ctx context.Context, url, destPath string, onProgress models.ProgressFunc) error {
	req, err := grab.NewRequest(destPath, url)
	if err != nil {
		return models.WrapError(models.KindTransferFailed, err, "invalid transfer request")
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	resp := c.grab.Do(req)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

Loop:
	for {
		select {
		case <-ticker.C:
			p := models.Progress{
				Percent: resp.Progress() * 100,
				Stage:   models.StageDownloading,
				Speed:   FormatRate(resp.BytesPerSecond()),
			}
			if eta := time.Until(resp.ETA()); eta > 0 {
				p.ETA = formatETA(eta)
			}
			onProgress(p)
		case <-resp.Done:
			break Loop
		}
	}

	if err := resp.Err(); err != nil {
		os.Remove(destPath)
		return models.WrapError(models.KindTransferFailed, err, fmt.Sprintf("transfer failed: %v", err))
	}
	onProgress(models.Progress{Percent: 100, Stage: models.StageDownloading})
	return nil
}

// FormatRate renders bytes per second the way aria2c and yt-dlp do,
// e.g. "2.1MiB/s".
func FormatRate(bytesPerSecond float64) string {
	units := []string{"B", "KiB", "MiB", "GiB"}
	i := 0
	for bytesPerSecond >= 1024 && i < len(units)-1 {
		bytesPerSecond /= 1024
		i++
	}
	return fmt.Sprintf("%.1f%s/s", bytesPerSecond, units[i])
}

func formatETA(d time.Duration) string {
	return d.Round(time.Second).String()
}

type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n.Add(int64(n))
	return n, err
}
