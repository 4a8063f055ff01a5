package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linebridge/internal/media"
	"linebridge/internal/testsupport"
)

const probeDuration = `{"streams":[{"codec_type":"audio","duration":"12.500"}],"format":{"duration":"12.500"}}`

// stubFFmpeg writes its last argument as the output file.
const stubFFmpeg = `for out; do :; done
printf 'stub-output' > "$out"`

func TestThumbnailExtractsFrame(t *testing.T) {
	testsupport.StubBinary(t, "ffmpeg", stubFFmpeg)

	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	thumb, err := tr.Thumbnail(context.Background(), video)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if !strings.HasSuffix(thumb, "clip_thumb.jpg") {
		t.Fatalf("unexpected thumbnail path: %s", thumb)
	}
	if _, err := os.Stat(thumb); err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}
}

func TestThumbnailWrapsFFmpegFailure(t *testing.T) {
	testsupport.StubBinary(t, "ffmpeg", "echo 'boom' >&2\nexit 1")

	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	if _, err := tr.Thumbnail(context.Background(), video); !errors.Is(err, media.ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
}

func TestTranscodeAudioConvertsAndProbes(t *testing.T) {
	testsupport.StubBinary(t, "ffmpeg", stubFFmpeg)
	testsupport.StubBinary(t, "ffprobe", "printf '"+probeDuration+"'")

	source := filepath.Join(t.TempDir(), "voice.wav")
	testsupport.WriteFile(t, source, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	out, durationMs, err := tr.TranscodeAudio(context.Background(), source)
	if err != nil {
		t.Fatalf("TranscodeAudio failed: %v", err)
	}
	if !strings.HasSuffix(out, "voice.m4a") {
		t.Fatalf("unexpected output path: %s", out)
	}
	if durationMs != 12500 {
		t.Fatalf("unexpected duration: %d", durationMs)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("transcoded file not written: %v", err)
	}
}

func TestTranscodeAudioSkipsFFmpegForM4A(t *testing.T) {
	// An ffmpeg stub that always fails proves the transcode step is skipped.
	testsupport.StubBinary(t, "ffmpeg", "exit 1")
	testsupport.StubBinary(t, "ffprobe", "printf '"+probeDuration+"'")

	source := filepath.Join(t.TempDir(), "voice.m4a")
	testsupport.WriteFile(t, source, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	out, durationMs, err := tr.TranscodeAudio(context.Background(), source)
	if err != nil {
		t.Fatalf("TranscodeAudio failed: %v", err)
	}
	if out != source {
		t.Fatalf("expected source path back, got %s", out)
	}
	if durationMs != 12500 {
		t.Fatalf("unexpected duration: %d", durationMs)
	}
}

func TestTranscodeAudioWrapsCorruptInput(t *testing.T) {
	testsupport.StubBinary(t, "ffmpeg", "echo 'invalid data' >&2\nexit 1")
	testsupport.StubBinary(t, "ffprobe", "printf '"+probeDuration+"'")

	source := filepath.Join(t.TempDir(), "voice.wav")
	testsupport.WriteFile(t, source, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	if _, _, err := tr.TranscodeAudio(context.Background(), source); !errors.Is(err, media.ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
}

func TestTranscodeAudioRequiresDuration(t *testing.T) {
	testsupport.StubBinary(t, "ffmpeg", stubFFmpeg)
	testsupport.StubBinary(t, "ffprobe", `printf '{"streams":[{"codec_type":"audio"}],"format":{}}'`)

	source := filepath.Join(t.TempDir(), "voice.wav")
	testsupport.WriteFile(t, source, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	if _, _, err := tr.TranscodeAudio(context.Background(), source); !errors.Is(err, media.ErrTranscode) {
		t.Fatalf("expected ErrTranscode for missing duration, got %v", err)
	}
}

func TestTranscodeAudioRejectsVideoOnlyInput(t *testing.T) {
	// The failing ffmpeg stub proves the input is rejected before any
	// transcode attempt.
	testsupport.StubBinary(t, "ffmpeg", "exit 1")
	testsupport.StubBinary(t, "ffprobe", `printf '{"streams":[{"codec_type":"video","duration":"3.000"}],"format":{"duration":"3.000"}}'`)

	source := filepath.Join(t.TempDir(), "silent.mp4")
	testsupport.WriteFile(t, source, 64)

	tr := media.NewTransformer("ffmpeg", "ffprobe", nil)
	_, _, err := tr.TranscodeAudio(context.Background(), source)
	if !errors.Is(err, media.ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
	if !strings.Contains(err.Error(), "no audio stream") {
		t.Fatalf("expected no-audio-stream rejection, got %v", err)
	}
}

func TestPipelineCapsWorkers(t *testing.T) {
	p := media.NewPipeline(0, 2, "", "", nil)

	ctx := context.Background()
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	full, cancel := context.WithCancel(ctx)
	cancel()
	if err := p.Acquire(full); err == nil {
		t.Fatal("expected acquire to fail when slots are full and ctx canceled")
	}

	p.Release()
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	p.Release()
	p.Release()
}
