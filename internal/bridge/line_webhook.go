package bridge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"linebridge/internal/logging"
	"linebridge/internal/media"
	"linebridge/internal/subscription"
)

const maxWebhookBody = 8 << 20

// VerifyLineSignature checks the X-Line-Signature header against the raw
// request body. The signature is base64(HMAC-SHA256(channel secret, body));
// comparison is constant time.
func VerifyLineSignature(channelSecret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type webhookPayload struct {
	Events []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string         `json:"type"`
	ReplyToken string         `json:"replyToken"`
	Source     webhookSource  `json:"source"`
	Message    webhookMessage `json:"message"`
}

type webhookSource struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type webhookMessage struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	FileName string `json:"fileName"`
}

// handleWebhook verifies the signature and acknowledges immediately; event
// processing happens on supervised goroutines so the platform never sees a
// slow response.
func (l *Line) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	if !VerifyLineSignature(l.cfg.Line.ChannelSecret, body, r.Header.Get("X-Line-Signature")) {
		l.logger.Warn("webhook signature rejected",
			logging.String(logging.FieldEventType, "webhook_signature_rejected"))
		http.Error(w, "bad signature", http.StatusForbidden)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	for _, event := range payload.Events {
		event := event
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			if err := l.pipeline.Acquire(l.ctx); err != nil {
				return
			}
			defer l.pipeline.Release()
			l.handleEvent(l.ctx, event)
		}()
	}
}

func (l *Line) handleEvent(ctx context.Context, event webhookEvent) {
	if event.Type != "message" || event.Source.Type != "group" {
		return
	}

	if event.Message.Type == "text" {
		text := strings.TrimSpace(event.Message.Text)
		switch {
		case text == "!ID":
			l.replyGroupID(ctx, event)
			return
		case text == "!binding" || strings.HasPrefix(text, "!binding "):
			l.issueBinding(ctx, event, text)
			return
		}
	}

	if !l.bound.contains(event.Source.GroupID) {
		return
	}
	l.relayToDiscord(ctx, event)
}

func (l *Line) replyGroupID(ctx context.Context, event webhookEvent) {
	reply := fmt.Sprintf("Group ID: %s", event.Source.GroupID)
	if err := l.client.ReplyText(ctx, event.ReplyToken, reply); err != nil {
		l.logger.Error("group id reply failed", logging.Error(err))
	}
}

// issueBinding starts binding this group to a Discord channel. With the
// Notify OAuth service configured, the reply carries an authorization link and
// the code is issued by the callback once the token comes back; a token pasted
// after the command skips the OAuth round trip and issues the code directly.
func (l *Line) issueBinding(ctx context.Context, event webhookEvent, text string) {
	groupID := event.Source.GroupID

	notifyToken := ""
	if fields := strings.Fields(text); len(fields) > 1 {
		notifyToken = fields[1]
	}

	groupName := groupID
	if summary, err := l.client.GroupSummary(ctx, groupID); err == nil && summary.GroupName != "" {
		groupName = summary.GroupName
	}

	if notifyToken == "" && l.notifyOAuth != nil {
		l.replyAuthLink(ctx, event, groupID, groupName)
		return
	}

	code, err := l.store.IssueCode(ctx, groupID, groupName, notifyToken)
	if err != nil {
		if errors.Is(err, subscription.ErrConflict) {
			if replyErr := l.client.ReplyText(ctx, event.ReplyToken, "This group is already bound to a Discord channel."); replyErr != nil {
				l.logger.Error("binding reply failed", logging.Error(replyErr))
			}
			return
		}
		l.logger.Error("binding code issue failed", logging.Error(err))
		return
	}

	l.logger.Info("binding code issued",
		logging.String(logging.FieldEventType, "binding_code_issued"),
		logging.String("group_id", groupID))

	if err := l.client.ReplyText(ctx, event.ReplyToken, bindingCodeMessage(code.Code)); err != nil {
		l.logger.Error("binding reply failed", logging.Error(err))
	}
}

// replyAuthLink answers !binding with the Notify consent link. The group id
// and name travel in the OAuth state so the callback knows which group the
// returned token belongs to.
func (l *Line) replyAuthLink(ctx context.Context, event webhookEvent, groupID, groupName string) {
	bound, err := l.store.GetByGroup(ctx, groupID)
	if err != nil {
		l.logger.Error("binding lookup failed", logging.Error(err))
		return
	}
	if bound != nil {
		if err := l.client.ReplyText(ctx, event.ReplyToken, "This group is already bound to a Discord channel."); err != nil {
			l.logger.Error("binding reply failed", logging.Error(err))
		}
		return
	}

	link := l.notifyOAuth.AuthorizeURL(groupID + "_" + groupName)
	reply := fmt.Sprintf("Connect this group to LINE Notify to finish binding:\n%s\nThe binding code will be posted here afterwards.", link)
	if err := l.client.ReplyText(ctx, event.ReplyToken, reply); err != nil {
		l.logger.Error("binding reply failed", logging.Error(err))
	}
}

// handleNotifyCallback receives the OAuth form post after the group admin
// grants access: it exchanges the code for a notify token, issues the binding
// code, and pushes it into the group through the freshly captured token.
func (l *Line) handleNotifyCallback(w http.ResponseWriter, r *http.Request) {
	if l.notifyOAuth == nil {
		http.NotFound(w, r)
		return
	}

	authCode := r.FormValue("code")
	state := r.FormValue("state")
	if authCode == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	// State was built as groupID_groupName; group names may themselves
	// contain underscores.
	parts := strings.SplitN(state, "_", 2)
	groupID := parts[0]
	groupName := groupID
	if len(parts) == 2 && parts[1] != "" {
		groupName = parts[1]
	}

	ctx := r.Context()
	token, err := l.notifyOAuth.ExchangeCode(ctx, authCode)
	if err != nil {
		l.logger.Error("notify token exchange failed",
			logging.Error(err),
			logging.String("group_id", groupID))
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	code, err := l.store.IssueCode(ctx, groupID, groupName, token)
	if err != nil {
		if errors.Is(err, subscription.ErrConflict) {
			http.Error(w, "This group is already bound to a Discord channel.", http.StatusConflict)
			return
		}
		l.logger.Error("binding code issue failed", logging.Error(err))
		http.Error(w, "binding failed", http.StatusInternalServerError)
		return
	}

	l.logger.Info("binding code issued",
		logging.String(logging.FieldEventType, "binding_code_issued"),
		logging.String("group_id", groupID))

	if err := l.notify.SendText(ctx, token, bindingCodeMessage(code.Code)); err != nil {
		// The code is already issued; losing the push only costs the
		// in-group announcement, and !binding can be retried after expiry.
		l.logger.Error("binding code push failed",
			logging.Error(err),
			logging.String("group_id", groupID))
	}

	fmt.Fprint(w, "Successfully connected to LINE Notify!\nYou may now close this page.")
}

// bindingCodeMessage is shared by the direct reply and the post-OAuth push so
// both paths hand the admin identical instructions.
func bindingCodeMessage(code string) string {
	return fmt.Sprintf("Binding code: %s\nRun /link %s in the Discord channel within 5 minutes.", code, code)
}

// relayToDiscord pushes a group message to the bound channel through its
// stored webhook, impersonating the sender with their display name and
// avatar.
func (l *Line) relayToDiscord(ctx context.Context, event webhookEvent) {
	sub, err := l.store.GetByGroup(ctx, event.Source.GroupID)
	if err != nil {
		l.logger.Error("binding lookup failed", logging.Error(err))
		return
	}
	if sub == nil {
		return
	}

	author := "LINE user"
	avatarURL := ""
	if profile, err := l.client.MemberProfile(ctx, event.Source.GroupID, event.Source.UserID); err == nil {
		if profile.DisplayName != "" {
			author = profile.DisplayName
		}
		avatarURL = profile.PictureURL
	}

	log := l.logger.With(
		logging.Int64(logging.FieldSubscription, sub.Number),
		logging.String("message_type", event.Message.Type))

	switch event.Message.Type {
	case "text":
		if err := l.executeWebhook(sub, author, avatarURL, event.Message.Text, nil); err != nil {
			log.Error("text relay failed", logging.Error(err))
		}
	case "image", "video", "audio":
		local, err := l.fetchContent(ctx, sub, event.Message)
		if err != nil {
			log.Error("content fetch failed", logging.Error(err))
			if whErr := l.executeWebhook(sub, author, avatarURL, annotateFailure("", contentFilename(event.Message)), nil); whErr != nil {
				log.Error("failure annotation not delivered", logging.Error(whErr))
			}
			return
		}
		if err := l.executeWebhookFile(sub, author, avatarURL, local); err != nil {
			log.Error("media relay failed", logging.Error(err))
		}
	default:
		log.Info("unsupported message type skipped")
	}
}

// fetchContent downloads the message binary via the content API into the
// subscription's media folder.
func (l *Line) fetchContent(ctx context.Context, sub *subscription.Subscription, msg webhookMessage) (string, error) {
	body, err := l.client.Content(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dir := mediaFolder(l.cfg, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	target := filepath.Join(dir, contentFilename(msg))
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	return target, nil
}

// contentFilename names a downloaded message payload. LINE only supplies a
// filename for file messages, so media falls back to the message id with a
// type-appropriate extension.
func contentFilename(msg webhookMessage) string {
	if name := media.SafeFilename(msg.FileName); name != "" {
		return name
	}
	switch msg.Type {
	case "image":
		return msg.ID + ".jpg"
	case "video":
		return msg.ID + ".mp4"
	case "audio":
		return msg.ID + ".m4a"
	default:
		return msg.ID + ".bin"
	}
}

func (l *Line) executeWebhook(sub *subscription.Subscription, author, avatarURL, content string, files []*discordgo.File) error {
	id, token, err := parseWebhookURL(sub.WebhookURL)
	if err != nil {
		return err
	}
	_, err = l.webhooks.WebhookExecute(id, token, false, &discordgo.WebhookParams{
		Username:  author,
		AvatarURL: avatarURL,
		Content:   content,
		Files:     files,
	})
	if err != nil {
		return fmt.Errorf("execute webhook: %w", err)
	}
	return nil
}

func (l *Line) executeWebhookFile(sub *subscription.Subscription, author, avatarURL, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.executeWebhook(sub, author, avatarURL, "", []*discordgo.File{{
		Name:   filepath.Base(path),
		Reader: f,
	}})
}
