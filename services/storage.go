package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidPath = errors.New("invalid file path")

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// StorageService manages files under the download directory.
type StorageService struct {
	DownloadDir string
	logger      *log.Logger
}

func NewStorageService(downloadDir string, logger *log.Logger) *StorageService {
	if logger == nil {
		logger = log.Default()
	}
	return &StorageService{
		DownloadDir: downloadDir,
		logger:      logger,
	}
}

func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	const k = 1024
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := min(int(math.Log(float64(bytes))/math.Log(k)), len(sizes)-1)
	return fmt.Sprintf("%.1f %s", float64(bytes)/math.Pow(k, float64(i)), sizes[i])
}

// ContentType returns the MIME type for a file name's extension.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateFilePath resolves filename inside the download directory and
// returns ErrInvalidPath if the result would escape it.
func (s *StorageService) ValidateFilePath(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" || strings.ContainsRune(filename, 0) {
		return "", ErrInvalidPath
	}

	absDownloadDir, err := filepath.Abs(s.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("error processing directory path: %w", err)
	}
	absFilePath, err := filepath.Abs(filepath.Join(absDownloadDir, filepath.Clean(filename)))
	if err != nil {
		return "", fmt.Errorf("error processing file path: %w", err)
	}

	root := strings.TrimSuffix(absDownloadDir, string(filepath.Separator)) + string(filepath.Separator)
	if !strings.HasPrefix(absFilePath, root) {
		return "", ErrInvalidPath
	}
	return absFilePath, nil
}

// ResolveFile returns the validated path and info of a regular file in the
// download directory.
func (s *StorageService) ResolveFile(filename string) (string, os.FileInfo, error) {
	path, err := s.ValidateFilePath(filename)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if !info.Mode().IsRegular() {
		return "", nil, os.ErrNotExist
	}
	return path, info, nil
}

// DeleteOldFiles removes regular files not modified within maxAge.
func (s *StorageService) DeleteOldFiles(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.DownloadDir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.DownloadDir, entry.Name())); err != nil {
			s.logger.Printf("Cleanup: failed to delete %s: %v", entry.Name(), err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// RunCleanup deletes old files every interval until ctx is done.
func (s *StorageService) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteOldFiles(maxAge)
			if err != nil {
				s.logger.Printf("Cleanup: %v", err)
			} else if n > 0 {
				s.logger.Printf("Cleanup: deleted %d old files", n)
			}
		}
	}
}
