package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"linebridge/internal/bridge"
	"linebridge/internal/config"
	"linebridge/internal/deps"
	"linebridge/internal/logging"
	"linebridge/internal/subscription"
)

func newDiscordCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Run the Discord adapter process",
		Long:  "Runs the Discord bot: binding slash commands and the channel-to-group relay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapter(cmd.Context(), cmdCtx, "discord", func(d adapterDeps) (runnable, error) {
				return bridge.NewDiscord(d.cfg, d.store, d.logger)
			})
		},
	}
}

func newLineCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "line",
		Short: "Run the LINE adapter process",
		Long:  "Runs the LINE webhook server, group commands, and the relay consumer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapter(cmd.Context(), cmdCtx, "line", func(d adapterDeps) (runnable, error) {
				return bridge.NewLine(d.cfg, d.store, d.logger)
			})
		},
	}
}

type runnable interface {
	Run(ctx context.Context) error
}

type adapterDeps struct {
	cfg    *config.Config
	store  *subscription.Store
	logger *slog.Logger
}

func runAdapter(parent context.Context, cmdCtx *commandContext, adapter string, build func(adapterDeps) (runnable, error)) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg, adapter)
	if err != nil {
		return err
	}

	if adapter == "discord" {
		for _, status := range deps.CheckBinaries(deps.MediaRequirements(cfg)) {
			if !status.Available {
				logger.Warn("external binary unavailable",
					logging.String("binary", status.Name),
					logging.String("detail", status.Detail))
			}
		}
	}

	store, err := subscription.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	instance, err := build(adapterDeps{cfg: cfg, store: store, logger: logger})
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return instance.Run(signalCtx)
}
