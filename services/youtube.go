package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/vicradon/media-fetcher/models"
)

// YouTubeResolver resolves progressive YouTube streams in-process, without
// calling out to an extractor binary. Only video targets are handled.
type YouTubeResolver struct {
	client *youtube.Client
}

func NewYouTubeResolver(timeout time.Duration) *YouTubeResolver {
	return &YouTubeResolver{
		client: &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

func (r *YouTubeResolver) ResolveDirectURL(ctx context.Context, opts models.MediaOptions) (string, error) {
	if opts.OutputType != models.OutputVideo || ResolvePlatform(opts.URL) != models.PlatformYouTube {
		return "", nil
	}

	video, err := r.client.GetVideoContext(ctx, opts.URL)
	if err != nil {
		return "", classifyYouTubeError(err)
	}

	format := pickProgressiveFormat(video.Formats.WithAudioChannels(), opts.Format, opts.Quality)
	if format == nil {
		return "", models.NewError(models.KindResolutionFailed, "no progressive %s format available", opts.Format)
	}

	streamURL, err := r.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return "", classifyYouTubeError(err)
	}
	return streamURL, nil
}

// pickProgressiveFormat picks the tallest audio+video format within the
// quality ceiling, preferring the requested container. "worst" picks the
// shortest.
func pickProgressiveFormat(formats youtube.FormatList, container, quality string) *youtube.Format {
	ceiling := qualityHeight(quality)
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.Height == 0 || (ceiling > 0 && f.Height > ceiling) {
			continue
		}
		if best == nil || betterFormat(f, best, container, quality == "worst") {
			best = f
		}
	}
	return best
}

func betterFormat(f, current *youtube.Format, container string, lowest bool) bool {
	fMatch := strings.Contains(f.MimeType, container)
	cMatch := strings.Contains(current.MimeType, container)
	if fMatch != cMatch {
		return fMatch
	}
	if f.Height != current.Height {
		return (f.Height < current.Height) == lowest
	}
	return f.Bitrate > current.Bitrate
}

// qualityHeight returns the pixel height of "720p" style qualities, or 0.
func qualityHeight(quality string) int {
	h, err := strconv.Atoi(strings.TrimSuffix(quality, "p"))
	if err != nil || !strings.HasSuffix(quality, "p") {
		return 0
	}
	return h
}

func classifyYouTubeError(err error) error {
	switch {
	case errors.Is(err, youtube.ErrLoginRequired), errors.Is(err, youtube.ErrVideoPrivate):
		return models.WrapError(models.KindAuthRequired, err, models.MsgAuthRequired)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID), errors.Is(err, youtube.ErrVideoIDMinLength):
		return models.WrapError(models.KindContentNotFound, err, models.MsgContentNotFound)
	}
	return models.WrapError(models.KindResolutionFailed, err, fmt.Sprintf("youtube: %v", err))
}

// FallbackResolver asks Primary first and consults Fallback when Primary
// fails or has no URL.
type FallbackResolver struct {
	Primary  DirectURLResolver
	Fallback DirectURLResolver
	Logger   *log.Logger
}

func (r *FallbackResolver) ResolveDirectURL(ctx context.Context, opts models.MediaOptions) (string, error) {
	directURL, err := r.Primary.ResolveDirectURL(ctx, opts)
	if err == nil && directURL != "" {
		return directURL, nil
	}
	if err != nil && r.Logger != nil {
		r.Logger.Printf("Native resolver failed for %s: %v", opts.URL, err)
	}
	return r.Fallback.ResolveDirectURL(ctx, opts)
}
