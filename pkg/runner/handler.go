package runner

import (
	"context"

	"github.com/aretw0/formbot/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents one bot message.
	Output(ctx context.Context, text string) error

	// Input reads the next line from the user. It returns io.EOF when the source is exhausted
	// and ctx.Err() when ctx is done first.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (status, help) distinct from bot content.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms a message before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// Sink adapts h to a domain.MessageSink.
func Sink(h IOHandler) domain.MessageSink {
	return domain.MessageSinkFunc(h.Output)
}
