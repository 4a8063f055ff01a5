package media

import "errors"

var (
	// ErrFetch marks attachment download failures.
	ErrFetch = errors.New("attachment fetch failed")
	// ErrTranscode marks ffmpeg/ffprobe transform failures.
	ErrTranscode = errors.New("attachment transcode failed")
)
