package services

import (
	"context"

	"github.com/vicradon/media-fetcher/models"
)

// MetadataProvider looks up title, thumbnail and formats for a URL.
type MetadataProvider interface {
	GetInfo(ctx context.Context, url string) (*models.MediaInfo, error)
}

// DirectURLResolver resolves a single raw media URL for opts. An empty URL
// with a nil error means no direct URL is available.
type DirectURLResolver interface {
	ResolveDirectURL(ctx context.Context, opts models.MediaOptions) (string, error)
}

// Transferer copies a raw media URL to destPath.
type Transferer interface {
	Transfer(ctx context.Context, url, destPath string, onProgress models.ProgressFunc) error
}

// Extractor runs the full extraction pipeline, writing to outputPath (the
// tool may pick a different extension).
type Extractor interface {
	Extract(ctx context.Context, opts models.MediaOptions, outputPath string, onProgress models.ProgressFunc) error
}

// GalleryExtractor downloads image galleries into a scratch directory.
type GalleryExtractor interface {
	ExtractGallery(ctx context.Context, url, scratchDir string) error
	GalleryInfo(ctx context.Context, url string) (*models.MediaInfo, error)
}

// Transcoder converts a downloaded audio stream into the requested container.
type Transcoder interface {
	ConvertAudio(ctx context.Context, inputPath, outputPath, quality string) error
}

// PlaylistLister lists the video URLs of a playlist.
type PlaylistLister interface {
	ListVideos(ctx context.Context, playlistURL string) ([]string, error)
}
