package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	if c.Relay.SocketPath, err = expandPath(c.Relay.SocketPath); err != nil {
		return fmt.Errorf("relay socket_path: %w", err)
	}

	c.Discord.BotToken = fallbackEnv(c.Discord.BotToken, "DISCORD_BOT_TOKEN")
	c.Discord.AppID = strings.TrimSpace(c.Discord.AppID)
	c.Discord.Owner = strings.TrimSpace(c.Discord.Owner)
	c.Discord.BotInviteLink = strings.TrimSpace(c.Discord.BotInviteLink)

	c.Line.ChannelAccessToken = fallbackEnv(c.Line.ChannelAccessToken, "LINE_CHANNEL_ACCESS_TOKEN")
	c.Line.ChannelSecret = fallbackEnv(c.Line.ChannelSecret, "LINE_CHANNEL_SECRET")
	c.Line.BotInviteLink = strings.TrimSpace(c.Line.BotInviteLink)
	c.Line.WebhookBind = strings.TrimSpace(c.Line.WebhookBind)
	c.Line.APIBaseURL = normalizeBaseURL(c.Line.APIBaseURL, defaultLineAPIBase)
	c.Line.ContentBaseURL = normalizeBaseURL(c.Line.ContentBaseURL, defaultLineContentBase)
	c.Line.NotifyBaseURL = normalizeBaseURL(c.Line.NotifyBaseURL, defaultLineNotifyBase)
	c.Line.NotifyClientID = strings.TrimSpace(c.Line.NotifyClientID)
	c.Line.NotifyClientSecret = fallbackEnv(c.Line.NotifyClientSecret, "LINE_NOTIFY_CLIENT_SECRET")
	c.Line.NotifyRedirectURI = strings.TrimSpace(c.Line.NotifyRedirectURI)
	c.Line.NotifyOAuthBaseURL = normalizeBaseURL(c.Line.NotifyOAuthBaseURL, defaultNotifyOAuthBase)

	if c.Relay.PublishTimeout <= 0 {
		c.Relay.PublishTimeout = defaultPublishTimeout
	}
	if c.Relay.QueueSize <= 0 {
		c.Relay.QueueSize = defaultQueueSize
	}

	if c.Media.DownloadTimeout <= 0 {
		c.Media.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Media.Workers <= 0 {
		c.Media.Workers = defaultMediaWorkers
	}
	if strings.TrimSpace(c.Media.FFmpeg) == "" {
		c.Media.FFmpeg = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Media.FFprobe) == "" {
		c.Media.FFprobe = defaultFFprobeBinary
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

func fallbackEnv(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(key))
}

func normalizeBaseURL(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	return strings.TrimRight(value, "/")
}
