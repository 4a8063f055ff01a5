package lineapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NotifyOAuth drives the LINE Notify authorization code flow: AuthorizeURL
// sends a group admin to the consent page, and ExchangeCode turns the code
// posted back to the callback into a per-group notify token.
type NotifyOAuth struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client
}

// NewNotifyOAuth builds an OAuth client for the Notify service registered
// under the given client credentials.
func NewNotifyOAuth(baseURL, clientID, clientSecret, redirectURI string, timeout time.Duration) *NotifyOAuth {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotifyOAuth{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		client:       &http.Client{Timeout: timeout},
	}
}

// AuthorizeURL returns the consent page URL for one binding attempt. The
// state round-trips through LINE unchanged and comes back on the callback.
// form_post makes the browser POST the code instead of leaking it in a query
// string.
func (o *NotifyOAuth) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", o.clientID)
	q.Set("redirect_uri", o.redirectURI)
	q.Set("scope", "notify")
	q.Set("response_mode", "form_post")
	q.Set("state", state)
	return o.baseURL + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a notify access token.
func (o *NotifyOAuth) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", o.redirectURI)
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", apiError("notify token exchange", resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("token exchange returned no access token")
	}
	return body.AccessToken, nil
}
