package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/vicradon/media-fetcher/models"
)

const maxGalleryTitleLength = 100

// GalleryDl drives the gallery-dl binary for image-only platforms.
type GalleryDl struct {
	binaryPath string
}

func NewGalleryDl(binaryPath string) *GalleryDl {
	if binaryPath == "" {
		binaryPath = "gallery-dl"
	}
	return &GalleryDl{binaryPath: binaryPath}
}

// ExtractGallery downloads every image of url below scratchDir.
func (g *GalleryDl) ExtractGallery(ctx context.Context, url, scratchDir string) error {
	_, err := runOutput(ctx, g.binaryPath, []string{"-d", scratchDir, url}, models.KindExtractionFailed)
	return err
}

type galleryMeta struct {
	Description string `json:"description"`
	Title       string `json:"title"`
	URL         string `json:"url"`
}

// GalleryInfo reads gallery-dl's JSON dump of url. The title is the first
// description found; the platform name is left to the caller.
func (g *GalleryDl) GalleryInfo(ctx context.Context, url string) (*models.MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	out, err := runOutput(ctx, g.binaryPath, []string{"--dump-json", "--no-download", url}, models.KindExtractionFailed)
	if err != nil {
		return nil, err
	}

	info := &models.MediaInfo{MediaType: "image"}
	for _, entry := range galleryEntries(out) {
		var meta galleryMeta
		var fileURL string
		for _, field := range entry[1:] {
			if fileURL == "" && json.Unmarshal(field, &fileURL) == nil {
				continue
			}
			json.Unmarshal(field, &meta)
		}
		if fileURL == "" {
			fileURL = meta.URL
		}
		if fileURL != "" {
			info.ImageCount++
			if info.Thumbnail == "" {
				info.Thumbnail = fileURL
			}
		}
		if info.Title == "" {
			info.Title = truncateTitle(firstNonEmpty(meta.Description, meta.Title))
		}
	}
	return info, nil
}

// galleryEntries accepts both a single JSON array of messages and one
// message per line. Each message is an array whose first element is the
// message type.
func galleryEntries(out []byte) [][]json.RawMessage {
	var entries [][]json.RawMessage
	if err := json.Unmarshal(out, &entries); err == nil {
		return keepPayloads(entries)
	}
	for _, line := range bytes.Split(out, []byte("\n")) {
		var entry []json.RawMessage
		if json.Unmarshal(bytes.TrimSpace(line), &entry) == nil {
			entries = append(entries, entry)
		}
	}
	return keepPayloads(entries)
}

func keepPayloads(entries [][]json.RawMessage) [][]json.RawMessage {
	out := entries[:0]
	for _, e := range entries {
		if len(e) >= 2 {
			out = append(out, e)
		}
	}
	return out
}

func truncateTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxGalleryTitleLength {
		return s[:maxGalleryTitleLength]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
