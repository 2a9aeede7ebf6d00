package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/vicradon/media-fetcher/models"
)

const maxFilenameLength = 80

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9\s_-]`)
	filenameWhitespace  = regexp.MustCompile(`\s+`)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

// alternateExtensions are probed when the extractor picked a different
// container than the one requested.
var alternateExtensions = []string{"mp4", "webm", "mkv", "m4a", "mp3", "opus", "ogg", "wav"}

// FetcherDeps are the collaborators a Fetcher drives. Resolver, Transfer,
// Transcoder, Images and Tagger are optional.
type FetcherDeps struct {
	Metadata   MetadataProvider
	Resolver   DirectURLResolver
	Transfer   Transferer
	Extractor  Extractor
	Gallery    GalleryExtractor
	Transcoder Transcoder
	Images     *ImageService
	Tagger     *Tagger
}

// Fetcher picks a download strategy for a URL and produces a file in the
// download directory.
type Fetcher struct {
	downloadDir string
	deps        FetcherDeps
	retry       RetryPolicy
	logger      *log.Logger
}

func NewFetcher(downloadDir string, deps FetcherDeps, retry RetryPolicy, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{
		downloadDir: downloadDir,
		deps:        deps,
		retry:       retry,
		logger:      logger,
	}
}

// GetInfo returns metadata for url, retrying rate-limited lookups.
func (f *Fetcher) GetInfo(ctx context.Context, url string) (*models.MediaInfo, error) {
	platform := ResolvePlatform(url)
	var info *models.MediaInfo
	var err error
	if platform.IsImageOnly() {
		info, err = f.deps.Gallery.GalleryInfo(ctx, url)
	} else {
		info, err = WithRetry(ctx, f.retry, func(ctx context.Context) (*models.MediaInfo, error) {
			return f.deps.Metadata.GetInfo(ctx, url)
		})
	}
	if err != nil {
		return nil, err
	}
	info.Platform = platform
	if info.Title == "" && platform.IsImageOnly() {
		info.Title = platform.DisplayName() + " Image"
	}
	return info, nil
}

// FetchMedia downloads opts.URL and reports progress through onProgress.
func (f *Fetcher) FetchMedia(ctx context.Context, opts models.MediaOptions, onProgress models.ProgressFunc) (*models.FetchResult, error) {
	if onProgress == nil {
		onProgress = func(models.Progress) {}
	}
	platform := ResolvePlatform(opts.URL)
	if opts.OutputType == models.OutputImage || platform.IsImageOnly() {
		return f.fetchGallery(ctx, opts, platform, onProgress)
	}
	return f.fetchStream(ctx, opts, onProgress)
}

func (f *Fetcher) fetchStream(ctx context.Context, opts models.MediaOptions, onProgress models.ProgressFunc) (*models.FetchResult, error) {
	info, err := WithRetry(ctx, f.retry, func(ctx context.Context) (*models.MediaInfo, error) {
		return f.deps.Metadata.GetInfo(ctx, opts.URL)
	})
	if err != nil {
		return nil, err
	}

	outputPath := filepath.Join(f.downloadDir, OutputFilename(info.Title, opts.Format))

	filePath, err := f.fetchDirect(ctx, opts, outputPath, onProgress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		f.logger.Printf("Direct transfer unavailable for %s, using full extraction: %v", opts.URL, err)
		filePath, err = f.fetchExtracted(ctx, opts, outputPath, onProgress)
		if err != nil {
			return nil, err
		}
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, models.WrapError(models.KindFileNotProduced, err, "Download completed but file not found")
	}

	if opts.Format == "mp3" && f.deps.Tagger != nil {
		if err := f.deps.Tagger.TagMP3(filePath, info.Title, info.Uploader); err != nil {
			f.logger.Printf("Warning: failed to tag %s: %v", filepath.Base(filePath), err)
		}
	}

	onProgress(models.Progress{Percent: 100, Stage: models.StageCompleted})
	return &models.FetchResult{
		FilePath:  filePath,
		FileSize:  stat.Size(),
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Format:    fileFormat(filePath),
	}, nil
}

// fetchDirect resolves a single media URL and transfers it. Any error means
// the caller should fall back to full extraction.
func (f *Fetcher) fetchDirect(ctx context.Context, opts models.MediaOptions, outputPath string, onProgress models.ProgressFunc) (string, error) {
	if f.deps.Resolver == nil || f.deps.Transfer == nil {
		return "", models.NewError(models.KindResolutionFailed, "direct transfer not configured")
	}
	if opts.OutputType == models.OutputAudio && f.deps.Transcoder == nil {
		return "", models.NewError(models.KindResolutionFailed, "audio conversion not configured")
	}

	directURL, err := f.deps.Resolver.ResolveDirectURL(ctx, opts)
	if err != nil {
		return "", err
	}
	if directURL == "" {
		return "", models.NewError(models.KindResolutionFailed, "no direct URL")
	}
	if IsStreamingManifest(directURL) {
		return "", models.NewError(models.KindResolutionFailed, "direct URL is a streaming manifest")
	}

	target := outputPath
	if opts.OutputType == models.OutputAudio {
		target = outputPath + ".src"
	}

	err = f.deps.Transfer.Transfer(ctx, directURL, target, func(p models.Progress) {
		p.Percent = 5 + p.Percent*0.9
		p.Stage = models.StageDownloading
		onProgress(p)
	})
	if err != nil {
		os.Remove(target)
		return "", err
	}

	if opts.OutputType == models.OutputAudio {
		defer os.Remove(target)
		onProgress(models.Progress{Percent: 96, Stage: models.StageConverting})
		if err := f.deps.Transcoder.ConvertAudio(ctx, target, outputPath, opts.Quality); err != nil {
			os.Remove(outputPath)
			return "", err
		}
	}
	return outputPath, nil
}

func (f *Fetcher) fetchExtracted(ctx context.Context, opts models.MediaOptions, outputPath string, onProgress models.ProgressFunc) (string, error) {
	_, err := WithRetry(ctx, f.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.deps.Extractor.Extract(ctx, opts, outputPath, func(p models.Progress) {
			p.Percent = min(max(p.Percent, 5), 99)
			if p.Stage == "" {
				p.Stage = models.StageDownloading
			}
			onProgress(p)
		})
	})
	if err != nil {
		return "", err
	}

	filePath, ok := findDownloadedFile(outputPath)
	if !ok {
		return "", models.NewError(models.KindFileNotProduced, "Download completed but file not found")
	}
	return filePath, nil
}

func (f *Fetcher) fetchGallery(ctx context.Context, opts models.MediaOptions, platform models.Platform, onProgress models.ProgressFunc) (*models.FetchResult, error) {
	baseName := fmt.Sprintf("%s_%s", platform, shortID())
	scratchDir := filepath.Join(f.downloadDir, "tmp_"+baseName)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratchDir)

	onProgress(models.Progress{Percent: 10, Stage: models.StageDownloading})
	if err := f.deps.Gallery.ExtractGallery(ctx, opts.URL, scratchDir); err != nil {
		return nil, err
	}

	onProgress(models.Progress{Percent: 80, Stage: models.StageProcessing})
	src, err := findFirstImage(scratchDir)
	if err != nil {
		return nil, err
	}
	if src == "" {
		return nil, models.NewError(models.KindFileNotProduced, "No image found in download")
	}

	images := f.deps.Images
	if images == nil {
		images = NewImageService()
	}
	format, quality := opts.Format, opts.Quality
	if opts.OutputType != models.OutputImage {
		format, quality = "", "original"
	}
	filePath, err := images.Process(src, f.downloadDir, baseName, format, quality)
	if err != nil {
		return nil, models.WrapError(models.KindExtractionFailed, err, "Failed to process image")
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, models.WrapError(models.KindFileNotProduced, err, "Download completed but file not found")
	}

	onProgress(models.Progress{Percent: 100, Stage: models.StageCompleted})
	return &models.FetchResult{
		FilePath: filePath,
		FileSize: stat.Size(),
		Title:    platform.DisplayName() + " Image",
		Format:   fileFormat(filePath),
	}, nil
}

// IsStreamingManifest reports whether a resolved URL points at a segment
// playlist rather than a single file.
func IsStreamingManifest(directURL string) bool {
	lower := strings.ToLower(directURL)
	return containsAny(lower, "manifest", "m3u8")
}

// SanitizeFilename reduces title to lowercase letters, digits, dashes and
// single underscores.
func SanitizeFilename(title string) string {
	s := unsafeFilenameChars.ReplaceAllString(strings.ToLower(title), "")
	s = filenameWhitespace.ReplaceAllString(s, "_")
	s = repeatedUnderscores.ReplaceAllString(s, "_")
	if len(s) > maxFilenameLength {
		s = repeatedUnderscores.ReplaceAllString(s[:maxFilenameLength], "_")
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "download"
	}
	return s
}

// OutputFilename returns a collision-resistant file name for a title.
func OutputFilename(title, format string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(title), shortID(), format)
}

func shortID() string {
	return uuid.NewString()[:8]
}

// findDownloadedFile looks for the file an extractor produced for
// outputPath: the exact path, the same name with a common extension, then
// any file in the directory carrying the same unique suffix.
func findDownloadedFile(outputPath string) (string, bool) {
	if fileExists(outputPath) {
		return outputPath, true
	}

	ext := filepath.Ext(outputPath)
	stem := strings.TrimSuffix(outputPath, ext)
	for _, alt := range alternateExtensions {
		candidate := stem + "." + alt
		if fileExists(candidate) {
			return candidate, true
		}
	}

	base := filepath.Base(stem)
	idx := strings.LastIndex(base, "_")
	if idx < 0 || idx == len(base)-1 {
		return "", false
	}
	suffix := base[idx+1:]
	dir := filepath.Dir(outputPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		if strings.Contains(entry.Name(), suffix) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

func fileFormat(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// errorMessage is the user-facing text stored on a failed job.
func errorMessage(err error) string {
	var me *models.MediaError
	if errors.As(err, &me) && me.Message != "" {
		return me.Message
	}
	if errors.Is(err, context.Canceled) {
		return "Download cancelled"
	}
	msg := err.Error()
	if msg == "" {
		return "Download failed"
	}
	return msg
}
