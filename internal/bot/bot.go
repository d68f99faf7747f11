// Package bot runs the Discord front end of the club.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/clubhub/internal/bot/commands"
	"github.com/jensholdgaard/clubhub/internal/config"
)

var ErrNotConnected = errors.New("discord session is not connected")

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session   *discordgo.Session
	cfg       config.DiscordConfig
	logger    *slog.Logger
	handlers  *commands.Handlers
	cmds      []*discordgo.ApplicationCommand
	connected atomic.Bool
}

// NewSession creates the Discord session shared by the bot and the DM
// notification sink. It is not opened until Start.
func NewSession(cfg config.DiscordConfig) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages
	return session, nil
}

// New creates a Bot on session and attaches the command handlers.
func New(session *discordgo.Session, cfg config.DiscordConfig, handlers *commands.Handlers, logger *slog.Logger) *Bot {
	b := &Bot{
		session:  session,
		cfg:      cfg,
		logger:   logger,
		handlers: handlers,
	}
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("bot is ready", slog.String("user", s.State.User.Username))
	})
	session.AddHandler(handlers.InteractionCreate)
	return b
}

// Start opens the Discord connection and registers slash commands. It may
// be called again after Stop.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	b.connected.Store(true)

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Run starts the bot and keeps it connected until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return b.Stop()
}

// Stop removes the registered commands and closes the connection.
func (b *Bot) Stop() error {
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	b.cmds = nil
	b.connected.Store(false)
	return b.session.Close()
}

// Check reports whether the session is open. It backs the readiness probe
// on the leader replica.
func (b *Bot) Check(context.Context) error {
	if !b.connected.Load() {
		return ErrNotConnected
	}
	return nil
}
