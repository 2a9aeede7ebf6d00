package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bogem/id3v2"
	"github.com/vicradon/media-fetcher/models"
)

type fakeMetadata struct {
	info  *models.MediaInfo
	err   error
	calls int
}

func (f *fakeMetadata) GetInfo(context.Context, string) (*models.MediaInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	return &info, nil
}

type fakeResolver struct {
	url string
	err error
}

func (f *fakeResolver) ResolveDirectURL(context.Context, models.MediaOptions) (string, error) {
	return f.url, f.err
}

type fakeTransfer struct {
	err   error
	calls int
}

func (f *fakeTransfer) Transfer(_ context.Context, _, destPath string, onProgress models.ProgressFunc) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	onProgress(models.Progress{Percent: 50, Speed: "1.0MiB/s", ETA: "2s"})
	onProgress(models.Progress{Percent: 100})
	return os.WriteFile(destPath, []byte("direct"), 0644)
}

// fakeExtractor writes its output with a different extension than asked
// for, the way yt-dlp does when it picks another container.
type fakeExtractor struct {
	ext      string
	err      error
	errTimes int
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, _ models.MediaOptions, outputPath string, onProgress models.ProgressFunc) error {
	f.calls++
	if f.calls <= f.errTimes {
		return f.err
	}
	onProgress(models.Progress{Percent: 0})
	onProgress(models.Progress{Percent: 100})
	path := outputPath
	if f.ext != "" {
		path = strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "." + f.ext
	}
	return os.WriteFile(path, []byte("extracted"), 0644)
}

type fakeGallery struct {
	files map[string][]byte
	err   error
	dir   string
}

func (f *fakeGallery) ExtractGallery(_ context.Context, _ string, scratchDir string) error {
	f.dir = scratchDir
	if f.err != nil {
		return f.err
	}
	for name, data := range f.files {
		path := filepath.Join(scratchDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeGallery) GalleryInfo(context.Context, string) (*models.MediaInfo, error) {
	return &models.MediaInfo{MediaType: "image", ImageCount: len(f.files)}, nil
}

type fakeTranscoder struct {
	calls int
}

func (f *fakeTranscoder) ConvertAudio(_ context.Context, in, out, _ string) error {
	f.calls++
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte("converted:"), data...), 0644)
}

type progressLog struct {
	mu      sync.Mutex
	reports []models.Progress
}

func (p *progressLog) record(pr models.Progress) {
	p.mu.Lock()
	p.reports = append(p.reports, pr)
	p.mu.Unlock()
}

func (p *progressLog) percents() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.reports))
	for i, r := range p.reports {
		out[i] = r.Percent
	}
	return out
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func noSleepRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestFetchMediaDirectTransfer(t *testing.T) {
	dir := t.TempDir()
	transfer := &fakeTransfer{}
	extractor := &fakeExtractor{}
	f := NewFetcher(dir, FetcherDeps{
		Metadata:  &fakeMetadata{info: &models.MediaInfo{Title: "Hello, World!! /// Test", Thumbnail: "https://img/t.jpg"}},
		Resolver:  &fakeResolver{url: "https://cdn.example.com/video.mp4"},
		Transfer:  transfer,
		Extractor: extractor,
	}, noSleepRetry(), quietLogger())

	progress := &progressLog{}
	result, err := f.FetchMedia(context.Background(), testOptions("https://vimeo.com/1"), progress.record)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}

	if transfer.calls != 1 || extractor.calls != 0 {
		t.Errorf("Expected direct transfer only, got %d transfers, %d extractions", transfer.calls, extractor.calls)
	}
	if !regexp.MustCompile(`^hello_world_test_[0-9a-f]{8}\.mp4$`).MatchString(filepath.Base(result.FilePath)) {
		t.Errorf("Unexpected file name %s", filepath.Base(result.FilePath))
	}
	if result.FileSize != int64(len("direct")) || result.Title != "Hello, World!! /// Test" || result.Thumbnail == "" {
		t.Errorf("Unexpected result %+v", result)
	}

	want := []float64{50, 95, 100}
	got := progress.percents()
	if len(got) != len(want) {
		t.Fatalf("Expected progress %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Progress %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFetchMediaFallsBackToExtraction(t *testing.T) {
	tests := []struct {
		name     string
		resolver *fakeResolver
		transfer *fakeTransfer
	}{
		{"resolution failed", &fakeResolver{err: models.NewError(models.KindResolutionFailed, "no url")}, &fakeTransfer{}},
		{"no url", &fakeResolver{}, &fakeTransfer{}},
		{"manifest", &fakeResolver{url: "https://cdn.example.com/master.m3u8"}, &fakeTransfer{}},
		{"transfer failed", &fakeResolver{url: "https://cdn.example.com/v.mp4"}, &fakeTransfer{err: errors.New("connection reset")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			extractor := &fakeExtractor{ext: "webm"}
			f := NewFetcher(dir, FetcherDeps{
				Metadata:  &fakeMetadata{info: &models.MediaInfo{Title: "clip"}},
				Resolver:  tt.resolver,
				Transfer:  tt.transfer,
				Extractor: extractor,
			}, noSleepRetry(), quietLogger())

			progress := &progressLog{}
			result, err := f.FetchMedia(context.Background(), testOptions("https://vimeo.com/1"), progress.record)
			if err != nil {
				t.Fatalf("FetchMedia() error = %v", err)
			}
			if extractor.calls != 1 {
				t.Errorf("Expected one extraction, got %d", extractor.calls)
			}
			if filepath.Ext(result.FilePath) != ".webm" {
				t.Errorf("Expected the produced .webm file, got %s", result.FilePath)
			}

			got := progress.percents()
			if len(got) < 3 || got[0] != 5 || got[1] != 99 || got[len(got)-1] != 100 {
				t.Errorf("Expected extraction progress clamped to 5-99 then 100, got %v", got)
			}
			if _, err := os.Stat(result.FilePath + ".part"); err == nil {
				t.Error("Unexpected leftover partial file")
			}
		})
	}
}

func TestFetchMediaRetriesRateLimitedExtraction(t *testing.T) {
	extractor := &fakeExtractor{err: models.NewError(models.KindRateLimited, models.MsgRateLimited), errTimes: 2}
	f := NewFetcher(t.TempDir(), FetcherDeps{
		Metadata:  &fakeMetadata{info: &models.MediaInfo{Title: "clip"}},
		Extractor: extractor,
	}, noSleepRetry(), quietLogger())

	if _, err := f.FetchMedia(context.Background(), testOptions("https://vimeo.com/1"), nil); err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if extractor.calls != 3 {
		t.Errorf("Expected 3 extraction attempts, got %d", extractor.calls)
	}
}

func TestFetchMediaErrors(t *testing.T) {
	t.Run("metadata auth", func(t *testing.T) {
		meta := &fakeMetadata{err: models.NewError(models.KindAuthRequired, models.MsgAuthRequired)}
		f := NewFetcher(t.TempDir(), FetcherDeps{Metadata: meta, Extractor: &fakeExtractor{}}, noSleepRetry(), quietLogger())
		_, err := f.FetchMedia(context.Background(), testOptions("https://vimeo.com/1"), nil)
		if !models.IsKind(err, models.KindAuthRequired) || meta.calls != 1 {
			t.Errorf("Expected auth error without retry, got %v after %d calls", err, meta.calls)
		}
	})

	t.Run("no file produced", func(t *testing.T) {
		f := NewFetcher(t.TempDir(), FetcherDeps{
			Metadata:  &fakeMetadata{info: &models.MediaInfo{Title: "clip"}},
			Extractor: extractorFunc(func(string) error { return nil }),
		}, noSleepRetry(), quietLogger())
		_, err := f.FetchMedia(context.Background(), testOptions("https://vimeo.com/1"), nil)
		if !models.IsKind(err, models.KindFileNotProduced) {
			t.Errorf("Expected file-not-produced, got %v", err)
		}
	})
}

type extractorFunc func(outputPath string) error

func (fn extractorFunc) Extract(_ context.Context, _ models.MediaOptions, outputPath string, _ models.ProgressFunc) error {
	return fn(outputPath)
}

func TestFetchMediaAudioDirectTranscodes(t *testing.T) {
	dir := t.TempDir()
	transcoder := &fakeTranscoder{}
	f := NewFetcher(dir, FetcherDeps{
		Metadata:   &fakeMetadata{info: &models.MediaInfo{Title: "song"}},
		Resolver:   &fakeResolver{url: "https://cdn.example.com/audio.webm"},
		Transfer:   &fakeTransfer{},
		Extractor:  &fakeExtractor{},
		Transcoder: transcoder,
	}, noSleepRetry(), quietLogger())

	opts := models.MediaOptions{URL: "https://soundcloud.com/a/b", OutputType: models.OutputAudio, Format: "ogg", Quality: "192kbps"}
	progress := &progressLog{}
	result, err := f.FetchMedia(context.Background(), opts, progress.record)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if transcoder.calls != 1 || filepath.Ext(result.FilePath) != ".ogg" {
		t.Errorf("Expected one conversion to .ogg, got %d calls, %s", transcoder.calls, result.FilePath)
	}
	if _, err := os.Stat(result.FilePath + ".src"); !os.IsNotExist(err) {
		t.Error("Expected the transferred source stream to be removed")
	}

	var sawConverting bool
	for _, r := range progress.reports {
		if r.Stage == models.StageConverting {
			sawConverting = true
		}
	}
	if !sawConverting {
		t.Error("Expected a converting progress report")
	}
}

type cancellingTransfer struct {
	cancel context.CancelFunc
}

func (c *cancellingTransfer) Transfer(ctx context.Context, _, _ string, _ models.ProgressFunc) error {
	c.cancel()
	return models.WrapError(models.KindTransferFailed, ctx.Err(), "transfer cancelled")
}

func TestFetchMediaCancelledSkipsExtraction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extractor := &fakeExtractor{}
	f := NewFetcher(t.TempDir(), FetcherDeps{
		Metadata:  &fakeMetadata{info: &models.MediaInfo{Title: "Clip"}},
		Resolver:  &fakeResolver{url: "https://cdn.example.com/clip.mp4"},
		Transfer:  &cancellingTransfer{cancel: cancel},
		Extractor: extractor,
	}, noSleepRetry(), quietLogger())

	_, err := f.FetchMedia(ctx, testOptions("https://vimeo.com/1"), nil)
	if err == nil {
		t.Fatal("Expected an error after cancellation")
	}
	if extractor.calls != 0 {
		t.Errorf("Expected no extraction after cancellation, got %d calls", extractor.calls)
	}
}

func TestFetchMediaTagsMP3(t *testing.T) {
	f := NewFetcher(t.TempDir(), FetcherDeps{
		Metadata:   &fakeMetadata{info: &models.MediaInfo{Title: "Night Drive", Uploader: "Synth Band"}},
		Resolver:   &fakeResolver{url: "https://cdn.example.com/audio.webm"},
		Transfer:   &fakeTransfer{},
		Extractor:  &fakeExtractor{},
		Transcoder: &fakeTranscoder{},
		Tagger:     NewTagger(),
	}, noSleepRetry(), quietLogger())

	opts := models.MediaOptions{URL: "https://vimeo.com/1", OutputType: models.OutputAudio, Format: "mp3", Quality: "192kbps"}
	result, err := f.FetchMedia(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}

	tag, err := id3v2.Open(result.FilePath, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to read tag: %v", err)
	}
	defer tag.Close()
	if tag.Title() != "Night Drive" || tag.Artist() != "Synth Band" {
		t.Errorf("Expected title/artist to be tagged, got %q/%q", tag.Title(), tag.Artist())
	}
}

func TestFetchMediaGallery(t *testing.T) {
	dir := t.TempDir()
	gallery := &fakeGallery{files: map[string][]byte{
		"pinterest/board/notes.txt": []byte("x"),
		"pinterest/board/pin.png":   pngBytes(t, 40, 20),
	}}
	extractor := &fakeExtractor{}
	f := NewFetcher(dir, FetcherDeps{
		Metadata:  &fakeMetadata{info: &models.MediaInfo{Title: "unused"}},
		Extractor: extractor,
		Gallery:   gallery,
	}, noSleepRetry(), quietLogger())

	opts := models.MediaOptions{URL: "https://pin.it/abc", OutputType: models.OutputImage, Format: "jpg", Quality: "original"}
	progress := &progressLog{}
	result, err := f.FetchMedia(context.Background(), opts, progress.record)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}

	if !regexp.MustCompile(`^pinterest_[0-9a-f]{8}\.jpg$`).MatchString(filepath.Base(result.FilePath)) {
		t.Errorf("Unexpected file name %s", filepath.Base(result.FilePath))
	}
	if result.Title != "Pinterest Image" {
		t.Errorf("Expected placeholder title, got %q", result.Title)
	}
	if _, err := os.Stat(gallery.dir); !os.IsNotExist(err) {
		t.Error("Expected scratch directory to be removed")
	}

	want := []float64{10, 80, 100}
	got := progress.percents()
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("Expected checkpoints %v, got %v", want, got)
	}
	if extractor.calls != 0 {
		t.Error("Gallery downloads must not use the extractor")
	}
}

func TestFetchMediaGalleryWebpKeepsSource(t *testing.T) {
	gallery := &fakeGallery{files: map[string][]byte{"pinterest/pin.png": pngBytes(t, 40, 20)}}
	f := NewFetcher(t.TempDir(), FetcherDeps{Gallery: gallery}, noSleepRetry(), quietLogger())

	opts := models.MediaOptions{URL: "https://pin.it/abc", OutputType: models.OutputImage, Format: "webp", Quality: "medium"}
	result, err := f.FetchMedia(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("FetchMedia() error = %v", err)
	}
	if filepath.Ext(result.FilePath) != ".png" || result.Format != "png" {
		t.Errorf("Expected the png source to be kept and reported, got %s (%q)", result.FilePath, result.Format)
	}
}

func TestFetchMediaGalleryCleansUpOnFailure(t *testing.T) {
	gallery := &fakeGallery{err: models.NewError(models.KindContentNotFound, models.MsgContentNotFound)}
	f := NewFetcher(t.TempDir(), FetcherDeps{Gallery: gallery}, noSleepRetry(), quietLogger())

	opts := models.MediaOptions{URL: "https://www.pinterest.com/pin/1/", OutputType: models.OutputImage, Format: "png", Quality: "original"}
	_, err := f.FetchMedia(context.Background(), opts, nil)
	if !models.IsKind(err, models.KindContentNotFound) {
		t.Errorf("Expected not-found error, got %v", err)
	}
	if _, err := os.Stat(gallery.dir); !os.IsNotExist(err) {
		t.Error("Expected scratch directory to be removed after failure")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello, World!! /// Test", "hello_world_test"},
		{"  spaced   out  ", "spaced_out"},
		{"a__b", "a_b"},
		{"日本語", "download"},
		{"", "download"},
		{strings.Repeat("ab ", 50), strings.TrimSuffix(strings.Repeat("ab_", 27), "_")},
	}

	valid := regexp.MustCompile(`^[a-z0-9_-]+$`)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := SanitizeFilename(tt.title)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.title, got, tt.want)
			}
			if !valid.MatchString(got) || strings.Contains(got, "__") || len(got) > maxFilenameLength {
				t.Errorf("SanitizeFilename(%q) = %q is not a safe name", tt.title, got)
			}
		})
	}
}

func TestIsStreamingManifest(t *testing.T) {
	tests := map[string]bool{
		"https://cdn.example.com/hls/master.m3u8":       true,
		"https://manifest.googlevideo.com/api/manifest": true,
		"https://cdn.example.com/video.mp4":             false,
	}
	for url, want := range tests {
		if got := IsStreamingManifest(url); got != want {
			t.Errorf("IsStreamingManifest(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestFindDownloadedFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "clip_1a2b3c4d.f137.mp4"), []byte("x"), 0644)

	got, ok := findDownloadedFile(filepath.Join(dir, "clip_1a2b3c4d.mkv"))
	if !ok || filepath.Base(got) != "clip_1a2b3c4d.f137.mp4" {
		t.Errorf("Expected match by unique suffix, got %q, %v", got, ok)
	}

	if _, ok := findDownloadedFile(filepath.Join(dir, "other_99999999.mp4")); ok {
		t.Error("Expected no match for an unknown suffix")
	}
}
