package lineapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NotifyClient wraps the LINE Notify API. Tokens are per subscription, so
// every call takes one rather than the client owning it.
type NotifyClient struct {
	baseURL string
	client  *http.Client
}

// NewNotifyClient builds a Notify client against the configured base URL.
func NewNotifyClient(baseURL string, timeout time.Duration) *NotifyClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotifyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SendText posts a plain text notification to the token's group.
func (n *NotifyClient) SendText(ctx context.Context, token, message string) error {
	form := url.Values{}
	form.Set("message", message)
	return n.send(ctx, token, form)
}

// SendImage posts a notification carrying an image. Notify wants separate
// thumbnail and full-size URLs; passing the same URL for both is fine for
// chat-sized images.
func (n *NotifyClient) SendImage(ctx context.Context, token, message, thumbnailURL, fullURL string) error {
	form := url.Values{}
	form.Set("message", message)
	form.Set("imageThumbnail", thumbnailURL)
	form.Set("imageFullsize", fullURL)
	return n.send(ctx, token, form)
}

func (n *NotifyClient) send(ctx context.Context, token string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/api/notify", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notify message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apiError("notify", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
