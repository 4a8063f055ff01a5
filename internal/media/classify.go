package media

import (
	"path/filepath"
	"strings"
)

// Kind classifies an attachment by filename extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unsupported"
	}
}

var kindByExtension = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".mp4":  KindVideo,
	".m4a":  KindAudio,
	".wav":  KindAudio,
	".mp3":  KindAudio,
	".aac":  KindAudio,
	".flac": KindAudio,
	".ogg":  KindAudio,
	".opus": KindAudio,
}

// Classify maps a filename to its attachment kind. The match is
// case-insensitive; unknown extensions come back KindUnsupported, which
// callers log and skip.
func Classify(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if kind, ok := kindByExtension[ext]; ok {
		return kind
	}
	return KindUnsupported
}
