package media_test

import (
	"testing"

	"linebridge/internal/media"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		filename string
		want     media.Kind
	}{
		{"a.JPG", media.KindImage},
		{"photo.jpeg", media.KindImage},
		{"shot.png", media.KindImage},
		{"b.mp4", media.KindVideo},
		{"c.wav", media.KindAudio},
		{"voice.m4a", media.KindAudio},
		{"track.MP3", media.KindAudio},
		{"clip.ogg", media.KindAudio},
		{"clip.opus", media.KindAudio},
		{"song.flac", media.KindAudio},
		{"d.exe", media.KindUnsupported},
		{"archive.tar.gz", media.KindUnsupported},
		{"noextension", media.KindUnsupported},
		{"", media.KindUnsupported},
	}
	for _, tc := range cases {
		if got := media.Classify(tc.filename); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.filename, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if media.KindImage.String() != "image" {
		t.Fatalf("unexpected label: %s", media.KindImage)
	}
	if media.Kind(99).String() != "unsupported" {
		t.Fatalf("unexpected label for unknown kind: %s", media.Kind(99))
	}
}
