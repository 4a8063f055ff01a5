package config

const (
	defaultDataDir         = "~/.local/share/linebridge"
	defaultMediaDir        = "~/.local/share/linebridge/media"
	defaultLogDir          = "~/.local/share/linebridge/logs"
	defaultWebhookBind     = "127.0.0.1:8484"
	defaultLineAPIBase     = "https://api.line.me"
	defaultLineContentBase = "https://api-data.line.me"
	defaultLineNotifyBase  = "https://notify-api.line.me"
	defaultNotifyOAuthBase = "https://notify-bot.line.me"
	defaultSocketPath      = "~/.local/share/linebridge/relay.sock"
	defaultPublishTimeout  = 10
	defaultQueueSize       = 64
	defaultDownloadTimeout = 30
	defaultMediaWorkers    = 4
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultLogFormat       = ""
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
		},
		Line: Line{
			WebhookBind:        defaultWebhookBind,
			APIBaseURL:         defaultLineAPIBase,
			ContentBaseURL:     defaultLineContentBase,
			NotifyBaseURL:      defaultLineNotifyBase,
			NotifyOAuthBaseURL: defaultNotifyOAuthBase,
		},
		Relay: Relay{
			SocketPath:     defaultSocketPath,
			PublishTimeout: defaultPublishTimeout,
			QueueSize:      defaultQueueSize,
		},
		Media: Media{
			DownloadTimeout: defaultDownloadTimeout,
			Workers:         defaultMediaWorkers,
			FFmpeg:          defaultFFmpegBinary,
			FFprobe:         defaultFFprobeBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
