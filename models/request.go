package models

import (
	"net/url"
	"slices"
	"strings"
)

var (
	VideoFormats   = []string{"mp4", "webm", "mkv"}
	AudioFormats   = []string{"mp3", "m4a", "wav", "ogg"}
	ImageFormats   = []string{"jpg", "png", "webp"}
	VideoQualities = []string{"2160p", "1080p", "720p", "480p", "360p", "best", "worst"}
	AudioQualities = []string{"320kbps", "256kbps", "192kbps", "128kbps", "64kbps"}
	ImageQualities = []string{"original", "high", "medium"}
)

var defaultQualities = map[OutputType]string{
	OutputVideo: "best",
	OutputAudio: "192kbps",
	OutputImage: "original",
}

// DownloadRequest is the body of a single download submission.
type DownloadRequest struct {
	URL        string     `json:"url"`
	OutputType OutputType `json:"outputType"`
	Format     string     `json:"format"`
	Quality    string     `json:"quality"`
}

// BatchDownloadRequest is the body of a queue submission.
type BatchDownloadRequest struct {
	URLs       []string   `json:"urls"`
	OutputType OutputType `json:"outputType"`
	Format     string     `json:"format"`
	Quality    string     `json:"quality"`
}

// InfoRequest is the body of a metadata lookup.
type InfoRequest struct {
	URL string `json:"url"`
}

// Options validates the request and returns normalized media options.
func (r DownloadRequest) Options() (MediaOptions, error) {
	if err := ValidateURL(r.URL); err != nil {
		return MediaOptions{}, err
	}
	format, quality, err := validateTarget(r.OutputType, r.Format, r.Quality)
	if err != nil {
		return MediaOptions{}, err
	}
	return MediaOptions{
		URL:        strings.TrimSpace(r.URL),
		OutputType: r.OutputType,
		Format:     format,
		Quality:    quality,
	}, nil
}

// Options validates every URL of the batch and returns one option set per URL.
func (r BatchDownloadRequest) Options() ([]MediaOptions, error) {
	if len(r.URLs) == 0 {
		return nil, NewError(KindInvalidInput, "at least one URL is required")
	}
	format, quality, err := validateTarget(r.OutputType, r.Format, r.Quality)
	if err != nil {
		return nil, err
	}
	opts := make([]MediaOptions, 0, len(r.URLs))
	for _, u := range r.URLs {
		if err := ValidateURL(u); err != nil {
			return nil, err
		}
		opts = append(opts, MediaOptions{
			URL:        strings.TrimSpace(u),
			OutputType: r.OutputType,
			Format:     format,
			Quality:    quality,
		})
	}
	return opts, nil
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewError(KindInvalidInput, "URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewError(KindInvalidInput, "Please enter a valid URL: %s", raw)
	}
	return nil
}

func validateTarget(outputType OutputType, format, quality string) (string, string, error) {
	var formats, qualities []string
	switch outputType {
	case OutputVideo:
		formats, qualities = VideoFormats, VideoQualities
	case OutputAudio:
		formats, qualities = AudioFormats, AudioQualities
	case OutputImage:
		formats, qualities = ImageFormats, ImageQualities
	default:
		return "", "", NewError(KindInvalidInput, "outputType must be one of video, audio, image")
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = formats[0]
	}
	if !slices.Contains(formats, format) {
		return "", "", NewError(KindInvalidInput, "unsupported %s format: %s", outputType, format)
	}

	quality = strings.ToLower(strings.TrimSpace(quality))
	if quality == "" {
		quality = defaultQualities[outputType]
	}
	if !slices.Contains(qualities, quality) {
		return "", "", NewError(KindInvalidInput, "unsupported %s quality: %s", outputType, quality)
	}
	return format, quality, nil
}
