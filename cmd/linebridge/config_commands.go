package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"linebridge/internal/config"
	"linebridge/internal/deps"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(cmdCtx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set the Discord bot token and LINE channel credentials before running the adapters.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:      %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "media_dir:     %s\n", cfg.Paths.MediaDir)
			fmt.Fprintf(out, "log_dir:       %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "database:      %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "relay_socket:  %s\n", cfg.Relay.SocketPath)
			fmt.Fprintf(out, "webhook_bind:  %s\n", cfg.Line.WebhookBind)
			fmt.Fprintf(out, "log_format:    %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "log_level:     %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "discord_token: %s\n", redact(cfg.Discord.BotToken))
			fmt.Fprintf(out, "line_token:    %s\n", redact(cfg.Line.ChannelAccessToken))
			if cfg.Line.NotifyOAuthConfigured() {
				fmt.Fprintf(out, "notify_oauth:  %s\n", cfg.Line.NotifyRedirectURI)
			} else {
				fmt.Fprintln(out, "notify_oauth:  manual tokens")
			}

			for _, status := range deps.CheckBinaries(deps.MediaRequirements(cfg)) {
				if status.Available {
					fmt.Fprintf(out, "%s: %s\n", strings.ToLower(status.Name), status.Command)
				} else {
					fmt.Fprintf(out, "%s: missing (%s)\n", strings.ToLower(status.Name), status.Detail)
				}
			}

			if err := cfg.ValidateDiscord(); err != nil {
				fmt.Fprintf(out, "discord adapter: %v\n", err)
			} else {
				fmt.Fprintln(out, "discord adapter: ready")
			}
			if err := cfg.ValidateLine(); err != nil {
				fmt.Fprintf(out, "line adapter:    %v\n", err)
			} else {
				fmt.Fprintln(out, "line adapter:    ready")
			}
			return nil
		},
	}
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
