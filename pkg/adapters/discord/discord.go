// Package discord relays Discord messages to formbot: prefix commands, DM form answers and free chat.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/runner"
	"github.com/bwmarrin/discordgo"
)

// DefaultPrefix starts every command.
const DefaultPrefix = "!"

// ErrNotConnected is reported by Check while the gateway is down.
var ErrNotConnected = errors.New("discord: not connected")

// Session is the part of *discordgo.Session the relay writes through.
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

var _ Session = (*discordgo.Session)(nil)

// Bot is the subset of *formbot.Bot the relay drives.
type Bot interface {
	Handle(ctx context.Context, userID, text string, sink domain.MessageSink) error
	Chat(ctx context.Context, userID, message string) (string, error)
	StartSession(ctx context.Context, userID, formID string) (*domain.StartResult, error)
	CancelSession(ctx context.Context, userID string) (string, error)
	Forms() ([]*domain.Form, error)
	Register(ctx context.Context, userID, name, secret string) error
	Authenticate(ctx context.Context, userID, secret string) (bool, error)
}

var _ Bot = (*formbot.Bot)(nil)

// Relay routes Discord messages to the bot.
type Relay struct {
	bot       Bot
	prefix    string
	logger    *slog.Logger
	guildChat bool
	mirror    func(userID, text string)
	sanitizer runner.Sanitizer

	connected atomic.Bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithPrefix sets the command prefix (default "!").
func WithPrefix(p string) Option {
	return func(r *Relay) {
		if p != "" {
			r.prefix = p
		}
	}
}

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithGuildChat toggles free chat in guild channels. DMs always relay.
func WithGuildChat(enabled bool) Option {
	return func(r *Relay) {
		r.guildChat = enabled
	}
}

// WithMirror receives a copy of every DM sent to a user, e.g. to feed an SSE stream.
func WithMirror(fn func(userID, text string)) Option {
	return func(r *Relay) {
		r.mirror = fn
	}
}

// WithSanitizer sets the limits applied to inbound messages.
func WithSanitizer(s runner.Sanitizer) Option {
	return func(r *Relay) {
		r.sanitizer = s
	}
}

// New creates a Relay.
func New(bot Bot, opts ...Option) *Relay {
	r := &Relay{
		bot:       bot,
		prefix:    DefaultPrefix,
		logger:    logging.NewNop(),
		guildChat: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run connects to the gateway with token and relays messages until ctx is done.
func (r *Relay) Run(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("discord: token is required")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	dg.AddHandler(func(s *discordgo.Session, ev *discordgo.Ready) {
		r.connected.Store(true)
		r.logger.Info("Discord connected", "user", ev.User.Username)
	})
	dg.AddHandler(func(s *discordgo.Session, _ *discordgo.Resumed) {
		r.connected.Store(true)
	})
	dg.AddHandler(func(s *discordgo.Session, _ *discordgo.Disconnect) {
		r.connected.Store(false)
		r.logger.Warn("Discord disconnected")
	})
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author != nil && s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}
		r.HandleMessage(ctx, s, m)
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	<-ctx.Done()
	r.connected.Store(false)
	if err := dg.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	return nil
}

// Check reports whether the gateway connection is up.
func (r *Relay) Check(context.Context) error {
	if !r.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

// HandleMessage routes one incoming message. Messages from bots are ignored.
func (r *Relay) HandleMessage(ctx context.Context, s Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}
	reply := &channelSink{session: s, channelID: m.ChannelID}

	if name, arg, ok := r.parseCommand(content); ok {
		r.runCommand(ctx, s, m, reply, name, arg)
		return
	}

	text, err := r.sanitizer.Sanitize(content)
	if err != nil {
		r.send(ctx, reply, "Your message could not be processed: "+err.Error())
		return
	}

	log := r.logger.With("user_id", m.Author.ID, "channel_id", m.ChannelID)
	if isDM(m) {
		log.Info("Processing direct message")
		if err := r.bot.Handle(ctx, m.Author.ID, text, r.userSink(m.Author.ID, reply)); err != nil {
			log.Warn("Direct message failed", "err", err)
		}
		return
	}

	if !r.guildChat {
		return
	}
	log.Info("Processing message")
	answer, err := r.bot.Chat(ctx, m.Author.ID, text)
	if err != nil {
		log.Warn("Chat failed", "err", err)
		answer = domain.UserMessage(err)
	}
	r.send(ctx, reply, answer)
}

// parseCommand splits "!name rest" into its lowercased name and trimmed argument.
func (r *Relay) parseCommand(content string) (name, arg string, ok bool) {
	rest, found := strings.CutPrefix(content, r.prefix)
	if !found || rest == "" {
		return "", "", false
	}
	name, arg, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

// dm opens (or reuses) the direct-message channel with userID.
func (r *Relay) dm(s Session, userID string) (*channelSink, error) {
	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return nil, fmt.Errorf("discord: open DM: %w", err)
	}
	return &channelSink{session: s, channelID: ch.ID}, nil
}

// userSink wraps a DM sink so the mirror sees what the user is sent.
func (r *Relay) userSink(userID string, sink domain.MessageSink) domain.MessageSink {
	if r.mirror == nil {
		return sink
	}
	return domain.MessageSinkFunc(func(ctx context.Context, text string) error {
		r.mirror(userID, text)
		return sink.Send(ctx, text)
	})
}

func (r *Relay) send(ctx context.Context, sink domain.MessageSink, text string) {
	if err := sink.Send(ctx, text); err != nil {
		r.logger.Warn("Discord send failed", "err", err)
	}
}

func isDM(m *discordgo.MessageCreate) bool {
	return m.GuildID == ""
}
