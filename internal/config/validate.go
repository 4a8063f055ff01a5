package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate ensures the shared portions of the configuration are usable.
// Credential checks are deferred to ValidateDiscord / ValidateLine so that
// each adapter process only demands the secrets it actually uses.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateRelay(); err != nil {
		return err
	}
	return c.validateWebhookBind()
}

// ValidateDiscord ensures the Discord adapter credentials are present.
func (c *Config) ValidateDiscord() error {
	missing := make([]string, 0, 2)
	if c.Discord.BotToken == "" {
		missing = append(missing, "discord.bot_token (or DISCORD_BOT_TOKEN)")
	}
	if c.Discord.AppID == "" {
		missing = append(missing, "discord.app_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateLine ensures the LINE adapter credentials are present.
func (c *Config) ValidateLine() error {
	missing := make([]string, 0, 2)
	if c.Line.ChannelAccessToken == "" {
		missing = append(missing, "line.channel_access_token (or LINE_CHANNEL_ACCESS_TOKEN)")
	}
	if c.Line.ChannelSecret == "" {
		missing = append(missing, "line.channel_secret (or LINE_CHANNEL_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	// Notify OAuth is optional, but half a credential set would silently
	// degrade binding to manual tokens.
	oauthSet := 0
	for _, v := range []string{c.Line.NotifyClientID, c.Line.NotifyClientSecret, c.Line.NotifyRedirectURI} {
		if v != "" {
			oauthSet++
		}
	}
	if oauthSet > 0 && oauthSet < 3 {
		return fmt.Errorf("notify oauth requires all of line.notify_client_id, line.notify_client_secret (or LINE_NOTIFY_CLIENT_SECRET), and line.notify_redirect_uri")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateRelay() error {
	if strings.TrimSpace(c.Relay.SocketPath) == "" {
		return fmt.Errorf("relay socket_path must not be empty")
	}
	if c.Relay.PublishTimeout <= 0 {
		return fmt.Errorf("relay publish_timeout must be positive, got %d", c.Relay.PublishTimeout)
	}
	if c.Relay.QueueSize <= 0 {
		return fmt.Errorf("relay queue_size must be positive, got %d", c.Relay.QueueSize)
	}
	return nil
}

func (c *Config) validateWebhookBind() error {
	if c.Line.WebhookBind == "" {
		return fmt.Errorf("line webhook_bind must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.Line.WebhookBind); err != nil {
		return fmt.Errorf("line webhook_bind %q: %w", c.Line.WebhookBind, err)
	}
	return nil
}
