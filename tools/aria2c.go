package tools

import (
	"context"
	"path/filepath"

	"github.com/vicradon/media-fetcher/models"
)

// Aria2c transfers direct media URLs over many parallel connections.
type Aria2c struct {
	binaryPath string
}

func NewAria2c(binaryPath string) *Aria2c {
	if binaryPath == "" {
		binaryPath = "aria2c"
	}
	return &Aria2c{binaryPath: binaryPath}
}

func (a *Aria2c) Transfer(ctx context.Context, url, destPath string, onProgress models.ProgressFunc) error {
	args := []string{
		"-x16",
		"-s16",
		"-k1M",
		"--max-connection-per-server=16",
		"--min-split-size=1M",
		"--file-allocation=none",
		"--console-log-level=notice",
		"--summary-interval=1",
		"--download-result=hide",
		"--allow-overwrite=true",
		"--auto-file-renaming=false",
		"--check-certificate=false",
		"-d", filepath.Dir(destPath),
		"-o", filepath.Base(destPath),
		url,
	}

	return runStreaming(ctx, a.binaryPath, args, models.KindTransferFailed, func(line string) {
		if p, ok := parseAria2Line(line); ok {
			onProgress(p)
		}
	})
}
