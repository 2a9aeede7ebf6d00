// Package tools wraps the external media binaries (yt-dlp, gallery-dl,
// aria2c, ffmpeg). Failures leave this package as *models.MediaError.
package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vicradon/media-fetcher/models"
)

const (
	maxDiagnosticLength = 300
	stderrLimit         = 64 << 10
	metadataTimeout     = 2 * time.Minute
)

// runOutput runs a command to completion and returns its stdout.
func runOutput(ctx context.Context, path string, args []string, kind models.ErrorKind) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, failure(ctx, path, stderr.String(), kind, err)
	}
	return out.Bytes(), nil
}

// runStreaming runs a command and hands every stdout line (split on \n or
// \r) to onLine as it arrives.
func runStreaming(ctx context.Context, path string, args []string, kind models.ErrorKind, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return models.WrapError(kind, err, fmt.Sprintf("failed to start %s", path))
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return failure(ctx, path, "", kind, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesOrReturns)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			onLine(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return failure(ctx, path, stderr.String(), kind, err)
	}
	return nil
}

func failure(ctx context.Context, path, stderr string, kind models.ErrorKind, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.WrapError(kind, ctxErr, fmt.Sprintf("%s cancelled", path))
	}
	return Classify(stderr, kind, err)
}

// Classify maps a tool diagnostic onto the error taxonomy. Unrecognized
// diagnostics keep fallback as their kind and the truncated text as message.
func Classify(diagnostic string, fallback models.ErrorKind, err error) error {
	lower := strings.ToLower(diagnostic)
	switch {
	case containsAny(lower, "rate-limit", "rate limit", "429", "too many requests"):
		return models.WrapError(models.KindRateLimited, err, models.MsgRateLimited)
	case containsAny(lower, "login", "401", "403", "sign in", "authentication", "private"):
		return models.WrapError(models.KindAuthRequired, err, models.MsgAuthRequired)
	case containsAny(lower, "404", "not found", "unavailable", "does not exist"):
		return models.WrapError(models.KindContentNotFound, err, models.MsgContentNotFound)
	}

	msg := strings.TrimSpace(diagnostic)
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return models.WrapError(fallback, err, truncate(msg, maxDiagnosticLength))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func scanLinesOrReturns(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
