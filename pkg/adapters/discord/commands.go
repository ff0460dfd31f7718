package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/formbot/pkg/credentials"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/bwmarrin/discordgo"
)

const (
	cmdPing      = "ping"
	cmdRegister  = "register"
	cmdSignin    = "signin"
	cmdStartForm = "startform"
	cmdForms     = "forms"
	cmdCancel    = "cancel"
	cmdHelp      = "help"
)

func (r *Relay) runCommand(ctx context.Context, s Session, m *discordgo.MessageCreate, reply *channelSink, name, arg string) {
	log := r.logger.With("command", name, "user_id", m.Author.ID)
	switch name {
	case cmdPing:
		if arg == "" {
			r.send(ctx, reply, "Pong!")
			return
		}
		r.send(ctx, reply, "Pong! Your argument was "+arg)

	case cmdRegister, cmdSignin:
		if !isDM(m) {
			// Secrets never stay in a guild channel.
			if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
				log.Warn("Failed to delete credential message", "err", err)
			}
			r.dmOrReply(ctx, s, m, reply, fmt.Sprintf("For your privacy, send `%s%s <secret>` to me in a direct message.", r.prefix, name))
			return
		}
		if name == cmdRegister {
			r.send(ctx, reply, r.register(ctx, m, arg))
			return
		}
		r.send(ctx, reply, r.signin(ctx, m, arg))

	case cmdStartForm:
		res, err := r.bot.StartSession(ctx, m.Author.ID, arg)
		if err != nil {
			log.Info("Form not started", "err", err)
			r.send(ctx, reply, domain.UserMessage(err))
			return
		}
		if isDM(m) {
			r.send(ctx, r.userSink(m.Author.ID, reply), res.Message)
			return
		}
		dm, err := r.dm(s, m.Author.ID)
		if err != nil {
			log.Warn("Failed to open DM", "err", err)
			r.send(ctx, reply, "I couldn't send you a direct message. Please check your privacy settings.")
			return
		}
		r.send(ctx, r.userSink(m.Author.ID, dm), res.Message)
		r.send(ctx, reply, "I've sent you a direct message to get started.")

	case cmdForms:
		list, err := r.bot.Forms()
		if err != nil {
			log.Error("Failed to list forms", "err", err)
			r.send(ctx, reply, domain.UserMessage(err))
			return
		}
		var b strings.Builder
		b.WriteString("Available forms:")
		for _, f := range list {
			fmt.Fprintf(&b, "\n- `%s`: %s", f.ID, f.Name)
		}
		r.send(ctx, reply, b.String())

	case cmdCancel:
		if _, err := r.bot.CancelSession(ctx, m.Author.ID); err != nil {
			r.send(ctx, reply, domain.UserMessage(err))
			return
		}
		r.send(ctx, reply, "Your form has been cancelled.")

	case cmdHelp:
		r.send(ctx, reply, r.help())

	default:
		log.Debug("Unknown command")
	}
}

func (r *Relay) register(ctx context.Context, m *discordgo.MessageCreate, secret string) string {
	if secret == "" {
		return fmt.Sprintf("Usage: `%sregister <secret>`", r.prefix)
	}
	err := r.bot.Register(ctx, m.Author.ID, m.Author.Username, secret)
	switch {
	case err == nil:
		return "Registration successful! You can now use the bot's features."
	case errors.Is(err, domain.ErrUserExists):
		return "Registration failed. You might already have an account."
	case errors.Is(err, credentials.ErrEmptySecret):
		return fmt.Sprintf("Usage: `%sregister <secret>`", r.prefix)
	default:
		r.logger.Error("Registration error", "user_id", m.Author.ID, "err", err)
		return "An error occurred during registration. Please try again later."
	}
}

func (r *Relay) signin(ctx context.Context, m *discordgo.MessageCreate, secret string) string {
	if secret == "" {
		return fmt.Sprintf("Usage: `%ssignin <secret>`", r.prefix)
	}
	ok, err := r.bot.Authenticate(ctx, m.Author.ID, secret)
	if err != nil {
		r.logger.Error("Sign in error", "user_id", m.Author.ID, "err", err)
		return "An error occurred during sign in. Please try again later."
	}
	if !ok {
		return "Sign in failed. Please check your password and try again."
	}
	return "Sign in successful! You can now use all bot features."
}

// dmOrReply sends text privately, falling back to the originating channel.
func (r *Relay) dmOrReply(ctx context.Context, s Session, m *discordgo.MessageCreate, reply *channelSink, text string) {
	dm, err := r.dm(s, m.Author.ID)
	if err != nil {
		r.logger.Warn("Failed to open DM", "user_id", m.Author.ID, "err", err)
		r.send(ctx, reply, text)
		return
	}
	r.send(ctx, dm, text)
}

func (r *Relay) help() string {
	p := r.prefix
	return strings.Join([]string{
		"Commands:",
		"`" + p + "ping [text]` checks that I'm listening",
		"`" + p + "forms` lists the forms you can fill in",
		"`" + p + "startform [form]` starts a form in a direct message",
		"`" + p + "cancel` abandons the form in progress",
		"`" + p + "register <secret>` and `" + p + "signin <secret>` (direct message only)",
	}, "\n")
}
