package tools

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vicradon/media-fetcher/models"
)

// FFmpeg converts transferred audio streams into the requested container.
type FFmpeg struct {
	binaryPath string
}

func NewFFmpeg(binaryPath string) *FFmpeg {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpeg{binaryPath: binaryPath}
}

// BuildFFmpegCommand returns the ffmpeg invocation that re-encodes the audio
// of inputFile into outputFile. The codec follows the output extension.
func BuildFFmpegCommand(ctx context.Context, binaryPath, inputFile, outputFile, quality string) *exec.Cmd {
	bitrate := strings.TrimSuffix(quality, "bps")
	if bitrate == quality || bitrate == "" {
		bitrate = "192k"
	}

	args := []string{"-y", "-i", inputFile, "-vn"}
	switch strings.ToLower(filepath.Ext(outputFile)) {
	case ".wav":
		args = append(args, "-c:a", "pcm_s16le")
	case ".ogg":
		args = append(args, "-c:a", "libvorbis", "-b:a", bitrate)
	case ".m4a":
		args = append(args, "-c:a", "aac", "-b:a", bitrate)
	default:
		args = append(args, "-c:a", "libmp3lame", "-b:a", bitrate)
	}
	args = append(args, outputFile)

	return exec.CommandContext(ctx, binaryPath, args...)
}

func (f *FFmpeg) ConvertAudio(ctx context.Context, inputPath, outputPath, quality string) error {
	cmd := BuildFFmpegCommand(ctx, f.binaryPath, inputPath, outputPath, quality)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return models.WrapError(models.KindExtractionFailed, ctx.Err(), "ffmpeg cancelled")
		}
		return models.WrapError(models.KindExtractionFailed, err, "Audio conversion failed: "+lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return truncate(s, maxDiagnosticLength)
}
