package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ytget/ytdlp/v2"
)

const (
	playlistTimeout      = 60 * time.Second
	youtubeWatchTemplate = "https://www.youtube.com/watch?v=%s"
)

// PlaylistExpander lists YouTube playlist entries as watch URLs.
type PlaylistExpander struct {
	timeout time.Duration
}

func NewPlaylistExpander() *PlaylistExpander {
	return &PlaylistExpander{timeout: playlistTimeout}
}

func (p *PlaylistExpander) ListVideos(ctx context.Context, playlistURL string) ([]string, error) {
	playlistID := ExtractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", playlistURL)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	urls := make([]string, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf(youtubeWatchTemplate, it.VideoID))
	}
	return urls, nil
}
