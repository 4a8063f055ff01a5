package ffprobe

import "testing"

func TestResultDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", Duration: "12.000"},
		},
		Format: Format{
			Duration: "12.345",
		},
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
	if result.DurationSeconds() != 12.345 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.DurationMillis() != 12345 {
		t.Fatalf("unexpected millis: %d", result.DurationMillis())
	}
}

func TestResultDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", Duration: "3.5"},
		},
	}
	if result.DurationMillis() != 3500 {
		t.Fatalf("expected stream fallback, got %d", result.DurationMillis())
	}
}

func TestResultDurationHandlesInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{Duration: "bad"},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected 0 duration, got %v", result.DurationSeconds())
	}
	if result.DurationMillis() != 0 {
		t.Fatalf("expected 0 millis, got %d", result.DurationMillis())
	}
	if result.HasAudio() {
		t.Fatal("expected no audio streams")
	}
}
