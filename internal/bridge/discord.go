package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
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

// Discord runs the Discord side of the bridge: the bot session, the binding
// slash commands, and the channel-to-group relay.
type Discord struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *subscription.Store
	pipeline  *media.Pipeline
	notify    *lineapi.NotifyClient
	publisher *relay.Publisher
	session   *discordgo.Session
	bound     *boundCache

	ctx context.Context
	wg  sync.WaitGroup
}

// NewDiscord wires the Discord adapter. The session is created but not opened
// until Run.
func NewDiscord(cfg *config.Config, store *subscription.Store, logger *slog.Logger) (*Discord, error) {
	if err := cfg.ValidateDiscord(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Discord{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "discord"),
		store:     store,
		pipeline:  media.NewPipeline(time.Duration(cfg.Media.DownloadTimeout)*time.Second, cfg.Media.Workers, cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger),
		notify:    lineapi.NewNotifyClient(cfg.Line.NotifyBaseURL, 10*time.Second),
		publisher: relay.NewPublisher(cfg.Relay.SocketPath, time.Duration(cfg.Relay.PublishTimeout)*time.Second, logger),
		session:   session,
		bound:     newBoundCache(),
	}, nil
}

// Run opens the gateway session and blocks until the context is canceled.
func (d *Discord) Run(ctx context.Context) error {
	lock, err := acquireLock(d.cfg, "discord")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	d.ctx = ctx
	d.session.AddHandler(d.onReady)
	d.session.AddHandler(d.onMessageCreate)
	d.session.AddHandler(d.onInteractionCreate)

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer d.session.Close()

	if _, err := d.session.ApplicationCommandBulkOverwrite(d.cfg.Discord.AppID, "", commandDefinitions); err != nil {
		return fmt.Errorf("register slash commands: %w", err)
	}
	if err := d.refreshBound(ctx); err != nil {
		return err
	}

	d.logger.Info("discord adapter running",
		logging.String(logging.FieldEventType, "adapter_started"))
	<-ctx.Done()

	d.logger.Info("discord adapter stopping",
		logging.String(logging.FieldEventType, "adapter_stopping"))
	d.wg.Wait()
	return nil
}

func (d *Discord) onReady(_ *discordgo.Session, ready *discordgo.Ready) {
	d.logger.Info("gateway session ready",
		logging.String("username", ready.User.Username),
		logging.Int("guilds", len(ready.Guilds)))
}

// refreshBound reloads the bound-channel cache from the store. Called at
// startup and after every bind/unbind.
func (d *Discord) refreshBound(ctx context.Context) error {
	ids, err := d.store.ChannelIDs(ctx)
	if err != nil {
		return fmt.Errorf("load bound channels: %w", err)
	}
	d.bound.replace(ids)
	return nil
}

// rehost uploads a local file to the Discord channel and returns the CDN URL
// of the resulting attachment. The LINE push API takes URLs only, so frames
// and transcoded audio must live somewhere public first.
func (d *Discord) rehost(channelID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	msg, err := d.session.ChannelFileSend(channelID, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if len(msg.Attachments) == 0 {
		return "", fmt.Errorf("upload %s: no attachment in response", path)
	}
	return msg.Attachments[0].URL, nil
}
