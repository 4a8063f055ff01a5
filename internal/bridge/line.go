package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"linebridge/internal/config"
	"linebridge/internal/lineapi"
	"linebridge/internal/logging"
	"linebridge/internal/media"
	"linebridge/internal/relay"
	"linebridge/internal/subscription"
)

// Line runs the LINE side of the bridge: the webhook server receiving group
// events, the group commands, and the relay consumer turning envelopes into
// push messages.
type Line struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *subscription.Store
	pipeline    *media.Pipeline
	client      *lineapi.Client
	notify      *lineapi.NotifyClient
	notifyOAuth *lineapi.NotifyOAuth
	webhooks    *discordgo.Session
	bound       *boundCache

	ctx context.Context
	wg  sync.WaitGroup
}

// NewLine wires the LINE adapter. The discordgo session here never opens a
// gateway connection; it only executes stored channel webhooks, which carry
// their own tokens.
func NewLine(cfg *config.Config, store *subscription.Store, logger *slog.Logger) (*Line, error) {
	if err := cfg.ValidateLine(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	webhooks, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create webhook session: %w", err)
	}

	l := &Line{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "line"),
		store:    store,
		pipeline: media.NewPipeline(time.Duration(cfg.Media.DownloadTimeout)*time.Second, cfg.Media.Workers, cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger),
		client:   lineapi.NewClient(cfg.Line.APIBaseURL, cfg.Line.ContentBaseURL, cfg.Line.ChannelAccessToken, 10*time.Second),
		notify:   lineapi.NewNotifyClient(cfg.Line.NotifyBaseURL, 10*time.Second),
		webhooks: webhooks,
		bound:    newBoundCache(),
	}
	if cfg.Line.NotifyOAuthConfigured() {
		l.notifyOAuth = lineapi.NewNotifyOAuth(cfg.Line.NotifyOAuthBaseURL, cfg.Line.NotifyClientID, cfg.Line.NotifyClientSecret, cfg.Line.NotifyRedirectURI, 10*time.Second)
	}
	return l, nil
}

// Run hosts the webhook server and the relay listener until the context is
// canceled.
func (l *Line) Run(ctx context.Context) error {
	lock, err := acquireLock(l.cfg, "line")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	l.ctx = ctx
	if err := l.refreshBound(ctx); err != nil {
		return err
	}

	relayServer, err := relay.NewServer(ctx, l.cfg.Relay.SocketPath, l.cfg.Relay.QueueSize, l.handleEnvelope, l.logger)
	if err != nil {
		return err
	}
	relayServer.Serve()
	defer relayServer.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", l.handleWebhook)
	mux.HandleFunc("POST /notify", l.handleNotifyCallback)
	httpServer := &http.Server{
		Addr:              l.cfg.Line.WebhookBind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	l.logger.Info("line adapter running",
		logging.String(logging.FieldEventType, "adapter_started"),
		logging.String("webhook_bind", l.cfg.Line.WebhookBind))

	select {
	case err := <-serveErr:
		return fmt.Errorf("webhook server: %w", err)
	case <-ctx.Done():
	}

	l.logger.Info("line adapter stopping",
		logging.String(logging.FieldEventType, "adapter_stopping"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.logger.Warn("webhook server shutdown failed", logging.Error(err))
	}
	l.wg.Wait()
	return nil
}

func (l *Line) refreshBound(ctx context.Context) error {
	ids, err := l.store.GroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("load bound groups: %w", err)
	}
	l.bound.replace(ids)
	return nil
}
