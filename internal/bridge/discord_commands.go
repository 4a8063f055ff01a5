package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"linebridge/internal/logging"
	"linebridge/internal/subscription"
)

var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:        "about",
		Description: "What this bot does and how to invite it",
	},
	{
		Name:        "help",
		Description: "How to bind this channel to a LINE group",
	},
	{
		Name:        "link",
		Description: "Bind this channel to a LINE group using a binding code",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "code",
				Description: "Binding code issued in the LINE group via !binding",
				Required:    true,
			},
		},
	},
	{
		Name:        "unlink",
		Description: "Remove this channel's LINE group binding",
	},
}

const (
	componentUnlinkConfirm = "unlink_confirm"
	componentUnlinkCancel  = "unlink_cancel"
)

func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		d.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		d.handleComponent(s, i)
	}
}

func (d *Discord) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "about":
		d.respondEphemeral(s, i, d.aboutText())
	case "help":
		d.respondEphemeral(s, i, helpText)
	case "link":
		d.handleLink(s, i, strings.TrimSpace(data.Options[0].StringValue()))
	case "unlink":
		d.handleUnlinkRequest(s, i)
	}
}

func (d *Discord) aboutText() string {
	var b strings.Builder
	b.WriteString("I mirror messages between this Discord channel and a LINE group: text, images, video, and audio travel both ways.\n")
	if link := d.cfg.Discord.BotInviteLink; link != "" {
		b.WriteString("Invite me to another server: " + link + "\n")
	}
	if link := d.cfg.Line.BotInviteLink; link != "" {
		b.WriteString("Add the LINE bot to a group: " + link + "\n")
	}
	if owner := d.cfg.Discord.Owner; owner != "" {
		b.WriteString("Operated by " + owner)
	}
	return strings.TrimRight(b.String(), "\n")
}

const helpText = "Binding a channel takes three steps:\n" +
	"1. Add the LINE bot to your LINE group and send `!binding` there.\n" +
	"2. The bot posts a one-time code to the group. It expires in 5 minutes.\n" +
	"3. Run `/link <code>` in the Discord channel you want paired.\n" +
	"Use `/unlink` in a bound channel to remove the pairing."

func (d *Discord) handleLink(s *discordgo.Session, i *discordgo.InteractionCreate, code string) {
	ctx := d.ctx
	channelID := i.ChannelID

	if d.bound.contains(channelID) {
		d.respondEphemeral(s, i, "This channel is already bound to a LINE group. Run /unlink first.")
		return
	}
	if code == "" {
		d.respondEphemeral(s, i, "A binding code is required. Send !binding in the LINE group to get one.")
		return
	}

	channelName := channelID
	if ch, err := s.Channel(channelID); err == nil && ch.Name != "" {
		channelName = ch.Name
	}

	webhook, err := s.WebhookCreate(channelID, "linebridge", "")
	if err != nil {
		d.logger.Error("webhook creation failed",
			logging.Error(err),
			logging.String("channel_id", channelID))
		d.respondEphemeral(s, i, "I could not create a webhook here. I need the Manage Webhooks permission in this channel.")
		return
	}
	webhookURL := fmt.Sprintf("https://discord.com/api/webhooks/%s/%s", webhook.ID, webhook.Token)

	sub, err := d.store.RedeemCode(ctx, code, channelID, channelName, webhookURL)
	if err != nil {
		_ = s.WebhookDelete(webhook.ID)
		switch {
		case errors.Is(err, subscription.ErrExpired):
			d.respondEphemeral(s, i, "That binding code has expired. Send !binding in the LINE group for a fresh one.")
		case errors.Is(err, subscription.ErrNotFound):
			d.respondEphemeral(s, i, "Unknown binding code. Check for typos or request a new one with !binding.")
		case errors.Is(err, subscription.ErrConflict):
			d.respondEphemeral(s, i, "That LINE group or this channel is already bound.")
		default:
			d.logger.Error("code redemption failed", logging.Error(err))
			d.respondEphemeral(s, i, "Binding failed, see the adapter logs.")
		}
		return
	}

	if err := d.refreshBound(ctx); err != nil {
		d.logger.Error("bound cache refresh failed", logging.Error(err))
	}
	d.logger.Info("channel bound",
		logging.String(logging.FieldEventType, "binding_created"),
		logging.Int64(logging.FieldSubscription, sub.Number),
		logging.String("channel_id", channelID),
		logging.String("group_id", sub.GroupID))

	d.respondEphemeral(s, i, fmt.Sprintf("Bound to LINE group %q. Messages now flow both ways.", sub.GroupName))
	if sub.NotifyToken != "" {
		if err := d.notify.SendText(ctx, sub.NotifyToken, fmt.Sprintf("This group is now bridged to Discord channel #%s.", channelName)); err != nil {
			d.logger.Warn("binding announcement failed", logging.Error(err))
		}
	}
}

func (d *Discord) handleUnlinkRequest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !d.bound.contains(i.ChannelID) {
		d.respondEphemeral(s, i, "This channel has no LINE group binding.")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Remove this channel's LINE group binding? Relayed history stays, new messages stop.",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Unlink",
							Style:    discordgo.DangerButton,
							CustomID: componentUnlinkConfirm,
						},
						discordgo.Button{
							Label:    "Cancel",
							Style:    discordgo.SecondaryButton,
							CustomID: componentUnlinkCancel,
						},
					},
				},
			},
		},
	})
	if err != nil {
		d.logger.Error("unlink prompt failed", logging.Error(err))
	}
}

func (d *Discord) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.MessageComponentData().CustomID {
	case componentUnlinkCancel:
		d.updateEphemeral(s, i, "Unlink canceled.")
	case componentUnlinkConfirm:
		d.handleUnlinkConfirm(s, i)
	}
}

func (d *Discord) handleUnlinkConfirm(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := d.ctx
	sub, err := d.store.GetByChannel(ctx, i.ChannelID)
	if err != nil {
		d.logger.Error("binding lookup failed", logging.Error(err))
		d.updateEphemeral(s, i, "Unlink failed, see the adapter logs.")
		return
	}
	if sub == nil {
		d.updateEphemeral(s, i, "This channel has no LINE group binding.")
		return
	}

	if id, _, err := parseWebhookURL(sub.WebhookURL); err == nil {
		if err := s.WebhookDelete(id); err != nil {
			d.logger.Warn("webhook deletion failed", logging.Error(err))
		}
	}
	if err := d.store.Delete(ctx, sub.Number); err != nil {
		d.logger.Error("binding deletion failed", logging.Error(err))
		d.updateEphemeral(s, i, "Unlink failed, see the adapter logs.")
		return
	}
	if err := d.refreshBound(ctx); err != nil {
		d.logger.Error("bound cache refresh failed", logging.Error(err))
	}

	d.logger.Info("channel unbound",
		logging.String(logging.FieldEventType, "binding_removed"),
		logging.Int64(logging.FieldSubscription, sub.Number),
		logging.String("channel_id", sub.ChannelID))

	d.updateEphemeral(s, i, fmt.Sprintf("Unbound from LINE group %q.", sub.GroupName))
	if sub.NotifyToken != "" {
		if err := d.notify.SendText(ctx, sub.NotifyToken, "The Discord bridge for this group has been removed."); err != nil {
			d.logger.Warn("unbind announcement failed", logging.Error(err))
		}
	}
}

func (d *Discord) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		d.logger.Error("interaction response failed", logging.Error(err))
	}
}

func (d *Discord) updateEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		d.logger.Error("interaction update failed", logging.Error(err))
	}
}

// parseWebhookURL extracts the webhook id and token from a stored execute
// URL.
func parseWebhookURL(url string) (id, token string, err error) {
	const marker = "/api/webhooks/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", "", fmt.Errorf("not a webhook url: %s", url)
	}
	rest := url[idx+len(marker):]
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed webhook url: %s", url)
	}
	return parts[0], parts[1], nil
}
