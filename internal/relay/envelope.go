package relay

import (
	"errors"
	"fmt"
	"strings"
)

// Envelope types. The closed set doubles as the wire schema version: an
// unknown type is rejected at both ends.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
)

// ErrTransport marks relay delivery failures (dial, call, queue-full). The
// enclosing event treats it as non-fatal: by the time media is relayed the
// text portion has already been pushed.
var ErrTransport = errors.New("relay transport failed")

// Envelope is the unit relayed between adapters. Envelopes are immutable once
// published.
type Envelope struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Subscription int64  `json:"subscription"`
	Author       string `json:"author"`
	Text         string `json:"text,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
}

// Validate checks the fields the envelope's type requires. Text may be empty
// for every type; media URLs may not.
func (e Envelope) Validate() error {
	if e.Subscription <= 0 {
		return fmt.Errorf("envelope requires a subscription number, got %d", e.Subscription)
	}
	switch e.Type {
	case TypeText:
		if strings.TrimSpace(e.Text) == "" {
			return errors.New("text envelope requires text")
		}
	case TypeImage:
		if e.ImageURL == "" {
			return errors.New("image envelope requires image_url")
		}
	case TypeVideo:
		if e.VideoURL == "" {
			return errors.New("video envelope requires video_url")
		}
		if e.ThumbnailURL == "" {
			return errors.New("video envelope requires thumbnail_url")
		}
	case TypeAudio:
		if e.AudioURL == "" {
			return errors.New("audio envelope requires audio_url")
		}
		if e.DurationMs <= 0 {
			return fmt.Errorf("audio envelope requires a positive duration, got %d", e.DurationMs)
		}
	default:
		return fmt.Errorf("unknown envelope type %q", e.Type)
	}
	return nil
}

// DeliverRequest wraps an envelope for the RPC call.
type DeliverRequest struct {
	Envelope Envelope `json:"envelope"`
}

// DeliverResponse acknowledges queue acceptance. Acceptance means the
// envelope is queued for the consumer, not that the downstream push happened.
type DeliverResponse struct {
	Accepted bool `json:"accepted"`
}
