package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/pkg/domain"
)

// DefaultUserID is the user a console run speaks as.
const DefaultUserID = "console"

// Bot is the subset of *formbot.Bot the console drives.
type Bot interface {
	StartSession(ctx context.Context, userID, formID string) (*domain.StartResult, error)
	CancelSession(ctx context.Context, userID string) (string, error)
	ActiveSession(ctx context.Context, userID string) (*domain.Session, error)
	Forms() ([]*domain.Form, error)
	Handle(ctx context.Context, userID, text string, sink domain.MessageSink) error
}

// Runner handles the console conversation loop using the provided IOHandler.
type Runner struct {
	bot     Bot
	handler IOHandler
	logger  *slog.Logger

	userID         string
	formID         string
	startForm      bool
	exitOnComplete bool
}

// NewRunner creates a Runner reading Stdin and writing Stdout unless WithInputHandler is given.
func NewRunner(bot Bot, opts ...Option) *Runner {
	r := &Runner{
		bot:    bot,
		logger: logging.NewNop(),
		userID: DefaultUserID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run executes the loop until the input ends, the user quits, ctx is done, or
// (with WithExitOnComplete) the started form closes.
func (r *Runner) Run(ctx context.Context) error {
	signals := NewSignalManager(ctx)
	defer signals.Stop()

	sink := Sink(r.handler)
	inForm := false
	if r.startForm {
		if err := r.start(signals.Context(), r.formID, sink); err != nil {
			return err
		}
		inForm = true
	}

	for {
		current := signals.Context()
		text, err := r.handler.Input(current)
		if err != nil {
			signals.CheckRace()
			if errors.Is(err, io.EOF) || current.Err() != nil {
				r.logger.Debug("Runner input ended", "err", err)
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if text == "" {
			continue
		}

		quit, err := r.dispatch(current, text, sink)
		if quit {
			return nil
		}
		if current.Err() != nil && ctx.Err() == nil {
			// Interrupted mid-turn: drop this turn and keep the conversation going.
			_ = r.handler.SystemOutput(ctx, "Interrupted.")
			signals.Reset()
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.logger.Debug("Turn failed", "user_id", r.userID, "err", err)
		}

		if r.exitOnComplete && inForm {
			if _, err := r.bot.ActiveSession(ctx, r.userID); errors.Is(err, domain.ErrNoActiveSession) {
				return nil
			}
		}
	}
}

// dispatch runs one line. Slash commands are handled here; everything else goes to the bot.
func (r *Runner) dispatch(ctx context.Context, text string, sink domain.MessageSink) (quit bool, err error) {
	cmd, arg, isCommand := parseCommand(text)
	if !isCommand {
		return false, r.bot.Handle(ctx, r.userID, text, sink)
	}

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "start":
		err := r.start(ctx, arg, sink)
		if err != nil && !errors.Is(err, domain.ErrPersistence) {
			return false, r.system(ctx, domain.UserMessage(err))
		}
		return false, err
	case "cancel":
		if _, err := r.bot.CancelSession(ctx, r.userID); err != nil {
			return false, errors.Join(err, r.system(ctx, domain.UserMessage(err)))
		}
		return false, r.system(ctx, "Form cancelled.")
	case "forms":
		forms, err := r.bot.Forms()
		if err != nil {
			return false, err
		}
		var b strings.Builder
		b.WriteString("Available forms:")
		for _, f := range forms {
			fmt.Fprintf(&b, "\n  %s  %s", f.ID, f.Name)
		}
		return false, r.system(ctx, b.String())
	case "help":
		return false, r.system(ctx, "Commands: /start [form], /cancel, /forms, /help, /quit")
	default:
		return false, r.system(ctx, fmt.Sprintf("Unknown command /%s. Type /help for a list.", cmd))
	}
}

func (r *Runner) start(ctx context.Context, formID string, sink domain.MessageSink) error {
	res, err := r.bot.StartSession(ctx, r.userID, formID)
	if err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			r.logger.Debug("Form not started", "form_id", formID, "err", err)
		}
		return err
	}
	r.logger.Debug("Form started", "form_id", res.FormID, "session_id", res.SessionID)
	return sink.Send(ctx, res.Message)
}

func (r *Runner) system(ctx context.Context, msg string) error {
	return r.handler.SystemOutput(ctx, msg)
}

// parseCommand recognises "/name arg" and the bare words exit and quit.
func parseCommand(text string) (cmd, arg string, ok bool) {
	if text == "exit" || text == "quit" {
		return text, "", true
	}
	rest, found := strings.CutPrefix(text, "/")
	if !found || rest == "" {
		return "", "", false
	}
	cmd, arg, _ = strings.Cut(rest, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg), true
}
