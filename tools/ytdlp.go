package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vicradon/media-fetcher/models"
)

// YtDlp drives the yt-dlp binary for metadata, direct URL resolution and
// full extraction.
type YtDlp struct {
	binaryPath string
}

func NewYtDlp(binaryPath string) *YtDlp {
	if binaryPath == "" {
		binaryPath = "yt-dlp"
	}
	return &YtDlp{binaryPath: binaryPath}
}

type ytdlpFormat struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	FormatNote string `json:"format_note"`
	Resolution string `json:"resolution"`
	FileSize   int64  `json:"filesize"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
}

type ytdlpInfo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	Duration  float64       `json:"duration"`
	Uploader  string        `json:"uploader"`
	ViewCount int64         `json:"view_count"`
	Type      string        `json:"_type"`
	Formats   []ytdlpFormat `json:"formats"`
}

// GetInfo dumps the metadata of url without downloading.
func (y *YtDlp) GetInfo(ctx context.Context, url string) (*models.MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	args := []string{"--dump-json", "--no-download", "--no-warnings", "-R", "5", "--socket-timeout", "30", "--no-check-certificates"}
	if strings.Contains(strings.ToLower(url), "instagram.com") {
		args = append(args, "--extractor-args", "instagram:api_key=")
	}
	args = append(args, url)

	out, err := runOutput(ctx, y.binaryPath, args, models.KindExtractionFailed)
	if err != nil {
		return nil, err
	}

	// Playlists print one object per line; the first entry describes the URL.
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	var raw ytdlpInfo
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, models.WrapError(models.KindExtractionFailed, err, "Failed to parse media info")
	}
	return raw.toMediaInfo(), nil
}

func (r *ytdlpInfo) toMediaInfo() *models.MediaInfo {
	info := &models.MediaInfo{
		ID:        r.ID,
		Title:     r.Title,
		Thumbnail: r.Thumbnail,
		Duration:  r.Duration,
		Uploader:  r.Uploader,
		ViewCount: r.ViewCount,
		MediaType: "video",
	}
	if r.Type == "playlist" {
		info.MediaType = "playlist"
	}

	hasVideo := false
	for _, f := range r.Formats {
		format := models.Format{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Quality:  f.FormatNote,
			FileSize: f.FileSize,
			HasVideo: f.VCodec != "" && f.VCodec != "none",
			HasAudio: f.ACodec != "" && f.ACodec != "none",
		}
		if format.Quality == "" {
			format.Quality = f.Resolution
		}
		hasVideo = hasVideo || format.HasVideo
		info.Formats = append(info.Formats, format)
	}
	if len(r.Formats) > 0 && !hasVideo {
		info.MediaType = "audio"
	}
	return info
}

// ResolveDirectURL asks yt-dlp for the raw URL of the selected format. Only
// the first URL is used when the selection needs separate streams.
func (y *YtDlp) ResolveDirectURL(ctx context.Context, opts models.MediaOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	args := []string{"-g", "--no-warnings"}
	if opts.OutputType == models.OutputAudio {
		args = append(args, "-f", "bestaudio/best")
	} else {
		args = append(args, "-f", BuildFormatString(opts.Quality, opts.Format))
	}
	args = append(args, opts.URL)

	out, err := runOutput(ctx, y.binaryPath, args, models.KindResolutionFailed)
	if err != nil {
		return "", err
	}

	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(first), nil
}

// Extract downloads and, for audio, transcodes opts.URL to outputPath.
func (y *YtDlp) Extract(ctx context.Context, opts models.MediaOptions, outputPath string, onProgress models.ProgressFunc) error {
	args := []string{
		"-R", "10",
		"--socket-timeout", "60",
		"--fragment-retries", "10",
		"--http-chunk-size", "10485760",
		"--concurrent-fragments", "8",
		"--no-warnings",
		"--progress",
		"--newline",
		"--no-check-certificates",
	}
	if opts.OutputType == models.OutputAudio {
		args = append(args, "-x", "--audio-format", opts.Format, "--audio-quality", AudioQualityTier(opts.Quality))
	} else {
		args = append(args, "-f", BuildFormatString(opts.Quality, opts.Format), "--merge-output-format", opts.Format)
	}
	args = append(args, "-o", outputPath, opts.URL)

	last := 0.0
	return runStreaming(ctx, y.binaryPath, args, models.KindExtractionFailed, func(line string) {
		p, ok := parseYtdlpLine(line)
		if !ok {
			return
		}
		if p.Stage == models.StageConverting {
			p.Percent = last
		}
		last = p.Percent
		onProgress(p)
	})
}

// BuildFormatString returns the yt-dlp -f selector for a video quality and
// container.
func BuildFormatString(quality, ext string) string {
	switch quality {
	case "best":
		return fmt.Sprintf("(bestvideo+bestaudio/best)[ext=%s]/bestvideo+bestaudio/best", ext)
	case "worst":
		return "worst"
	}
	if h := strings.TrimSuffix(quality, "p"); h != quality && h != "" {
		return fmt.Sprintf("(bestvideo[height<=%[1]s]+bestaudio/best)[ext=%[2]s]/bestvideo[height<=%[1]s]+bestaudio/best", h, ext)
	}
	return "best"
}

// AudioQualityTier maps a bitrate such as "192kbps" to yt-dlp's VBR scale
// (0 best, 9 worst).
func AudioQualityTier(quality string) string {
	switch strings.TrimSuffix(quality, "kbps") {
	case "320":
		return "0"
	case "256":
		return "1"
	case "192":
		return "2"
	case "128":
		return "4"
	}
	return "6"
}
