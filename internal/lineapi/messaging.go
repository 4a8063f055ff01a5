package lineapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const userAgent = "linebridge/0.1.0"

// GroupSummary describes a LINE group chat.
type GroupSummary struct {
	GroupID    string `json:"groupId"`
	GroupName  string `json:"groupName"`
	PictureURL string `json:"pictureUrl"`
}

// Profile describes a group member.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

// Message is one entry of a reply or push payload.
type Message struct {
	Type               string `json:"type"`
	Text               string `json:"text,omitempty"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
	Duration           int64  `json:"duration,omitempty"`
}

// Client wraps the LINE Messaging API.
type Client struct {
	baseURL        string
	contentBaseURL string
	token          string
	client         *http.Client
}

// NewClient builds a Messaging API client. Base URLs come from configuration
// so tests can point the client at a local server.
func NewClient(baseURL, contentBaseURL, channelAccessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		contentBaseURL: strings.TrimRight(contentBaseURL, "/"),
		token:          channelAccessToken,
		client:         &http.Client{Timeout: timeout},
	}
}

// ReplyText answers a webhook event using its reply token.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	body := map[string]any{
		"replyToken": replyToken,
		"messages":   []Message{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/v2/bot/message/reply", body)
}

// PushText sends a text message to a user or group id.
func (c *Client) PushText(ctx context.Context, to, text string) error {
	return c.push(ctx, to, Message{Type: "text", Text: text})
}

// PushVideo sends a video message. Both URLs must be HTTPS and publicly
// reachable; the preview image is what group members see before tapping.
func (c *Client) PushVideo(ctx context.Context, to, videoURL, previewURL string) error {
	return c.push(ctx, to, Message{
		Type:               "video",
		OriginalContentURL: videoURL,
		PreviewImageURL:    previewURL,
	})
}

// PushAudio sends an audio message with its playback duration in
// milliseconds.
func (c *Client) PushAudio(ctx context.Context, to, audioURL string, durationMs int64) error {
	return c.push(ctx, to, Message{
		Type:               "audio",
		OriginalContentURL: audioURL,
		Duration:           durationMs,
	})
}

func (c *Client) push(ctx context.Context, to string, messages ...Message) error {
	body := map[string]any{
		"to":       to,
		"messages": messages,
	}
	return c.post(ctx, "/v2/bot/message/push", body)
}

// GroupSummary fetches the group's name and icon. The name is
// NFC-normalized.
func (c *Client) GroupSummary(ctx context.Context, groupID string) (*GroupSummary, error) {
	var summary GroupSummary
	if err := c.getJSON(ctx, fmt.Sprintf("/v2/bot/group/%s/summary", groupID), &summary); err != nil {
		return nil, err
	}
	summary.GroupName = NormalizeName(summary.GroupName)
	return &summary, nil
}

// MemberProfile fetches a group member's display name and avatar. The display
// name is NFC-normalized.
func (c *Client) MemberProfile(ctx context.Context, groupID, userID string) (*Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, fmt.Sprintf("/v2/bot/group/%s/member/%s", groupID, userID), &profile); err != nil {
		return nil, err
	}
	profile.DisplayName = NormalizeName(profile.DisplayName)
	return &profile, nil
}

// Content streams the binary payload of a received message (image, video or
// audio). The caller owns closing the reader.
func (c *Client) Content(ctx context.Context, messageID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.contentBaseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build content request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch message content: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError("message content", resp)
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apiError(path, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)
}

func apiError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("line api %s returned %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(body)))
}

// NormalizeName canonicalizes a display or group name to NFC so the same
// glyphs always compare and render identically downstream.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
