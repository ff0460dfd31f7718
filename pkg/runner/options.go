package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.handler = handler
	}
}

// WithUserID sets the user the console speaks as (default "console").
func WithUserID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.userID = id
		}
	}
}

// WithForm starts formID when the run begins. An empty id starts the bot's default form.
func WithForm(formID string) Option {
	return func(r *Runner) {
		r.formID = formID
		r.startForm = true
	}
}

// WithExitOnComplete ends the run once the started form is completed or cancelled.
func WithExitOnComplete(exit bool) Option {
	return func(r *Runner) {
		r.exitOnComplete = exit
	}
}
