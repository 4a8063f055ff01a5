package bridge

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"linebridge/internal/logging"
	"linebridge/internal/media"
	"linebridge/internal/relay"
	"linebridge/internal/subscription"
)

func (d *Discord) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	// Webhook executes are our own LINE-side pushes echoing back.
	if m.Author == nil || m.Author.Bot || m.WebhookID != "" {
		return
	}
	if !d.bound.contains(m.ChannelID) {
		return
	}

	ctx := d.ctx
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.pipeline.Acquire(ctx); err != nil {
			return
		}
		defer d.pipeline.Release()
		d.relayMessage(ctx, m)
	}()
}

// relayMessage pushes one Discord message to its paired LINE group. Text goes
// out first so attachment failures can still annotate a delivered line.
func (d *Discord) relayMessage(ctx context.Context, m *discordgo.MessageCreate) {
	sub, err := d.store.GetByChannel(ctx, m.ChannelID)
	if err != nil {
		d.logger.Error("binding lookup failed", logging.Error(err))
		return
	}
	if sub == nil {
		return
	}

	author := m.Author.Username
	if m.Author.GlobalName != "" {
		author = m.Author.GlobalName
	}

	if m.Content != "" && sub.NotifyToken != "" {
		line := fmt.Sprintf("%s: %s", author, m.Content)
		if err := d.notify.SendText(ctx, sub.NotifyToken, line); err != nil {
			d.logger.Error("text relay failed",
				logging.Error(err),
				logging.Int64(logging.FieldSubscription, sub.Number))
		}
	}

	for _, att := range m.Attachments {
		d.relayAttachment(ctx, sub, author, att)
	}
}

func (d *Discord) relayAttachment(ctx context.Context, sub *subscription.Subscription, author string, att *discordgo.MessageAttachment) {
	kind := media.Classify(att.Filename)
	log := d.logger.With(
		logging.Int64(logging.FieldSubscription, sub.Number),
		logging.String("filename", att.Filename),
		logging.String("kind", kind.String()))

	var err error
	switch kind {
	case media.KindImage:
		err = d.relayImage(ctx, sub, author, att)
	case media.KindVideo:
		err = d.relayVideo(ctx, sub, author, att)
	case media.KindAudio:
		err = d.relayAudio(ctx, sub, author, att)
	default:
		log.Info("unsupported attachment skipped")
		return
	}
	if err != nil {
		log.Error("attachment relay failed", logging.Error(err))
		if sub.NotifyToken == "" {
			return
		}
		if notifyErr := d.notify.SendText(ctx, sub.NotifyToken, annotateFailure("", att.Filename)); notifyErr != nil {
			log.Error("failure annotation not delivered", logging.Error(notifyErr))
		}
	}
}

// relayImage archives the image locally and pushes the CDN URL through
// Notify, which accepts image URLs directly.
func (d *Discord) relayImage(ctx context.Context, sub *subscription.Subscription, author string, att *discordgo.MessageAttachment) error {
	if _, err := d.pipeline.Download(ctx, att.URL, mediaFolder(d.cfg, sub), att.Filename); err != nil {
		return err
	}
	if sub.NotifyToken == "" {
		return nil
	}
	return d.notify.SendImage(ctx, sub.NotifyToken, fmt.Sprintf("%s sent an image", author), att.URL, att.URL)
}

// relayVideo extracts a preview frame, re-hosts it on Discord to obtain a
// URL, and publishes a video envelope for the LINE adapter to push.
func (d *Discord) relayVideo(ctx context.Context, sub *subscription.Subscription, author string, att *discordgo.MessageAttachment) error {
	local, err := d.pipeline.Download(ctx, att.URL, mediaFolder(d.cfg, sub), att.Filename)
	if err != nil {
		return err
	}
	thumb, err := d.pipeline.Thumbnail(ctx, local)
	if err != nil {
		return err
	}
	thumbURL, err := d.rehost(sub.ChannelID, thumb)
	if err != nil {
		return err
	}
	return d.publisher.Publish(ctx, relay.Envelope{
		ID:           uuid.NewString(),
		Type:         relay.TypeVideo,
		Subscription: sub.Number,
		Author:       author,
		VideoURL:     att.URL,
		ThumbnailURL: thumbURL,
	})
}

// relayAudio transcodes to m4a, re-hosts the playable file on Discord, and
// publishes an audio envelope carrying the probed duration.
func (d *Discord) relayAudio(ctx context.Context, sub *subscription.Subscription, author string, att *discordgo.MessageAttachment) error {
	local, err := d.pipeline.Download(ctx, att.URL, mediaFolder(d.cfg, sub), att.Filename)
	if err != nil {
		return err
	}
	playable, durationMs, err := d.pipeline.TranscodeAudio(ctx, local)
	if err != nil {
		return err
	}
	audioURL, err := d.rehost(sub.ChannelID, playable)
	if err != nil {
		return err
	}
	return d.publisher.Publish(ctx, relay.Envelope{
		ID:           uuid.NewString(),
		Type:         relay.TypeAudio,
		Subscription: sub.Number,
		Author:       author,
		AudioURL:     audioURL,
		DurationMs:   durationMs,
	})
}
