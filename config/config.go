package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DownloadDir = "downloads"

	TransferNative = "native"
	TransferAria2c = "aria2c"
)

type Config struct {
	ExecDir     string
	DownloadDir string
	Port        string
	DatabaseURL string

	YtDlpPath     string
	GalleryDlPath string
	Aria2cPath    string
	FFmpegPath    string

	TransferBackend     string
	TransferConnections int
	TransferChunkSize   int64

	QueueBatchSize   int
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	FileMaxAge      time.Duration
	CleanupInterval time.Duration

	NativeYouTubeResolver bool
	ExpandPlaylists       bool

	APIRateLimit float64
	APIRateBurst int
}

// Load reads .env (if present) and the process environment, and creates the
// download directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	execDir := getExecutableDir()
	cfg := &Config{
		ExecDir:       execDir,
		DownloadDir:   getString("DOWNLOAD_DIR", filepath.Join(execDir, DownloadDir)),
		Port:          getString("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		YtDlpPath:     getString("YTDLP_PATH", "yt-dlp"),
		GalleryDlPath: getString("GALLERYDL_PATH", "gallery-dl"),
		Aria2cPath:    getString("ARIA2C_PATH", "aria2c"),
		FFmpegPath:    getString("FFMPEG_PATH", "ffmpeg"),

		TransferBackend: getString("TRANSFER_BACKEND", TransferNative),
	}

	var err error
	p := parser{}
	cfg.TransferConnections = p.int("TRANSFER_CONNECTIONS", 16)
	cfg.TransferChunkSize = int64(p.int("TRANSFER_CHUNK_SIZE", 1<<20))
	cfg.QueueBatchSize = p.int("QUEUE_BATCH_SIZE", 2)
	cfg.RetryMaxAttempts = p.int("RETRY_MAX_ATTEMPTS", 3)
	cfg.RetryBaseDelay = p.duration("RETRY_BASE_DELAY", 2*time.Second)
	cfg.FileMaxAge = p.duration("FILE_MAX_AGE", 24*time.Hour)
	cfg.CleanupInterval = p.duration("CLEANUP_INTERVAL", time.Hour)
	cfg.NativeYouTubeResolver = p.bool("NATIVE_YOUTUBE_RESOLVER", false)
	cfg.ExpandPlaylists = p.bool("EXPAND_PLAYLISTS", false)
	cfg.APIRateLimit = p.float("API_RATE_LIMIT", 5)
	cfg.APIRateBurst = p.int("API_RATE_BURST", 10)
	if p.err != nil {
		return nil, p.err
	}

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.DownloadDir, err = filepath.Abs(cfg.DownloadDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TransferBackend != TransferNative && c.TransferBackend != TransferAria2c {
		return fmt.Errorf("TRANSFER_BACKEND must be %q or %q, got %q", TransferNative, TransferAria2c, c.TransferBackend)
	}
	if c.QueueBatchSize < 1 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.TransferConnections < 1 || c.TransferChunkSize < 1 {
		return fmt.Errorf("TRANSFER_CONNECTIONS and TRANSFER_CHUNK_SIZE must be positive")
	}
	return nil
}

func getExecutableDir() string {
	if dir := os.Getenv("EXEC_DIR"); dir != "" {
		return dir
	}
	return "."
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != "" && p.err == nil
}

func (p *parser) fail(key, value string, err error) {
	p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
}

func (p *parser) int(key string, fallback int) int {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) bool(key string, fallback bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
