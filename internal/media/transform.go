package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"linebridge/internal/logging"
	"linebridge/internal/media/ffprobe"
)

// Transformer runs the ffmpeg/ffprobe transforms attachments need before they
// can enter an envelope.
type Transformer struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *slog.Logger
}

// NewTransformer builds a transformer around the configured binaries. Empty
// binary names fall back to PATH lookup.
func NewTransformer(ffmpegBin, ffprobeBin string, logger *slog.Logger) *Transformer {
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transformer{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

// Thumbnail extracts a representative frame from the video as a jpg next to
// the source file. The frame still has to be re-hosted before it is useful:
// the LINE push API takes preview URLs, not files.
func (t *Transformer) Thumbnail(ctx context.Context, videoPath string) (string, error) {
	out := replaceExt(videoPath, "_thumb.jpg")

	args := []string{"-v", "error", "-y", "-i", videoPath, "-vf", "thumbnail", "-frames:v", "1", out}
	if err := t.runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("%w: thumbnail %s: %v", ErrTranscode, videoPath, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: thumbnail %s produced no frame", ErrTranscode, videoPath)
	}

	t.logger.Debug("thumbnail extracted", logging.String("path", out))
	return out, nil
}

// TranscodeAudio converts the file to m4a (AAC) unless it already is one, then
// probes the duration. It returns the playable path and the duration in
// milliseconds. Input without an audio stream, corrupt input, and unsupported
// codecs all wrap ErrTranscode.
func (t *Transformer) TranscodeAudio(ctx context.Context, path string) (string, int64, error) {
	src, err := ffprobe.Inspect(ctx, t.ffprobeBin, path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: probe %s: %v", ErrTranscode, path, err)
	}
	if !src.HasAudio() {
		return "", 0, fmt.Errorf("%w: %s has no audio stream", ErrTranscode, path)
	}

	out := path
	if !strings.EqualFold(filepath.Ext(path), ".m4a") {
		out = replaceExt(path, ".m4a")
		args := []string{"-v", "error", "-y", "-i", path, "-vn", "-c:a", "aac", out}
		if err := t.runFFmpeg(ctx, args); err != nil {
			return "", 0, fmt.Errorf("%w: transcode %s: %v", ErrTranscode, path, err)
		}
	}

	result, err := ffprobe.Inspect(ctx, t.ffprobeBin, out)
	if err != nil {
		return "", 0, fmt.Errorf("%w: probe %s: %v", ErrTranscode, out, err)
	}
	durationMs := result.DurationMillis()
	if durationMs <= 0 {
		return "", 0, fmt.Errorf("%w: probe %s reported no duration", ErrTranscode, out)
	}

	t.logger.Debug("audio ready",
		logging.String("path", out),
		logging.Int64("duration_ms", durationMs))
	return out, durationMs, nil
}

func (t *Transformer) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func replaceExt(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}
