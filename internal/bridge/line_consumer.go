package bridge

import (
	"context"
	"fmt"

	"linebridge/internal/logging"
	"linebridge/internal/relay"
)

// handleEnvelope is the relay consumer: it maps each envelope to LINE pushes
// for the subscription it names. Called serially in publish order.
func (l *Line) handleEnvelope(ctx context.Context, env relay.Envelope) error {
	sub, err := l.store.GetByNumber(ctx, env.Subscription)
	if err != nil {
		return fmt.Errorf("subscription lookup: %w", err)
	}
	if sub == nil {
		// Unbound between publish and consume; nothing left to deliver to.
		l.logger.Info("envelope for removed subscription dropped",
			logging.Int64(logging.FieldSubscription, env.Subscription))
		return nil
	}

	switch env.Type {
	case relay.TypeText:
		if sub.NotifyToken == "" {
			return nil
		}
		return l.notify.SendText(ctx, sub.NotifyToken, fmt.Sprintf("%s: %s", env.Author, env.Text))
	case relay.TypeImage:
		if sub.NotifyToken == "" {
			return nil
		}
		return l.notify.SendImage(ctx, sub.NotifyToken, fmt.Sprintf("%s sent an image", env.Author), env.ImageURL, env.ImageURL)
	case relay.TypeVideo:
		if err := l.client.PushVideo(ctx, sub.GroupID, env.VideoURL, env.ThumbnailURL); err != nil {
			return err
		}
		return l.sendNotifyLine(ctx, sub.NotifyToken, fmt.Sprintf("%s sent a video", env.Author))
	case relay.TypeAudio:
		if err := l.client.PushAudio(ctx, sub.GroupID, env.AudioURL, env.DurationMs); err != nil {
			return err
		}
		return l.sendNotifyLine(ctx, sub.NotifyToken, fmt.Sprintf("%s sent a voice message", env.Author))
	default:
		return fmt.Errorf("unknown envelope type %q", env.Type)
	}
}

// sendNotifyLine is best-effort: the push message already landed, so a failed
// Notify line is logged rather than propagated.
func (l *Line) sendNotifyLine(ctx context.Context, token, message string) error {
	if token == "" {
		return nil
	}
	if err := l.notify.SendText(ctx, token, message); err != nil {
		l.logger.Warn("notify line failed", logging.Error(err))
	}
	return nil
}
