package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration shared by both adapters.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
}

// Discord contains credentials and identity for the Discord adapter.
type Discord struct {
	BotToken      string `toml:"bot_token"`
	AppID         string `toml:"app_id"`
	Owner         string `toml:"owner"`
	BotInviteLink string `toml:"bot_invite_link"`
}

// Line contains credentials and endpoints for the LINE adapter.
type Line struct {
	ChannelAccessToken string `toml:"channel_access_token"`
	ChannelSecret      string `toml:"channel_secret"`
	BotInviteLink      string `toml:"bot_invite_link"`
	WebhookBind        string `toml:"webhook_bind"`
	APIBaseURL         string `toml:"api_base_url"`
	ContentBaseURL     string `toml:"content_base_url"`
	NotifyBaseURL      string `toml:"notify_base_url"`
	NotifyClientID     string `toml:"notify_client_id"`
	NotifyClientSecret string `toml:"notify_client_secret"`
	NotifyRedirectURI  string `toml:"notify_redirect_uri"`
	NotifyOAuthBaseURL string `toml:"notify_oauth_base_url"`
}

// NotifyOAuthConfigured reports whether the Notify OAuth service credentials
// are present. Without them binding falls back to manually supplied tokens.
func (l Line) NotifyOAuthConfigured() bool {
	return l.NotifyClientID != "" && l.NotifyClientSecret != "" && l.NotifyRedirectURI != ""
}

// Relay contains configuration for the inter-adapter transport.
type Relay struct {
	SocketPath     string `toml:"socket_path"`
	PublishTimeout int    `toml:"publish_timeout"`
	QueueSize      int    `toml:"queue_size"`
}

// Media contains configuration for the attachment pipeline.
type Media struct {
	DownloadTimeout int    `toml:"download_timeout"`
	Workers         int    `toml:"workers"`
	FFmpeg          string `toml:"ffmpeg"`
	FFprobe         string `toml:"ffprobe"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for linebridge.
//
// Configuration sections by subsystem:
//   - Paths: data, media, and log directories
//   - Discord: bot credentials and invite metadata
//   - Line: channel credentials, webhook bind, API endpoints
//   - Relay: socket path and delivery tuning for the adapter transport
//   - Media: pipeline timeouts, worker cap, external binaries
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Discord Discord `toml:"discord"`
	Line    Line    `toml:"line"`
	Relay   Relay   `toml:"relay"`
	Media   Media   `toml:"media"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/linebridge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("linebridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for adapter operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.MediaDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "linebridge.db")
}

// LockPath returns the single-instance lock file for the named adapter.
func (c *Config) LockPath(adapter string) string {
	return filepath.Join(c.Paths.DataDir, adapter+".lock")
}

// FFmpegBinary returns the ffmpeg executable used for media transforms.
func (c *Config) FFmpegBinary() string {
	return c.Media.FFmpeg
}

// FFprobeBinary returns the ffprobe executable used for duration probes.
func (c *Config) FFprobeBinary() string {
	return c.Media.FFprobe
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
