package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/formbot/internal/config"
	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/internal/presentation/tui"
	"github.com/aretw0/formbot/pkg/runner"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.NewWithFormat(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
}

// InputSanitizer returns the input limits every transport applies.
func InputSanitizer(cfg *config.Config) runner.Sanitizer {
	return runner.NewSanitizer(cfg.MaxInput)
}

// PrintSystemMessage prints a standardized system message to w.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// ConsoleOptions selects how the console conversation is rendered.
type ConsoleOptions struct {
	JSON      bool
	Plain     bool
	Stdin     io.Reader
	Stdout    *os.File
	Sanitizer runner.Sanitizer
}

// NewConsoleHandler picks the runner IOHandler: JSON Lines, markdown when stdout is a terminal, or plain text.
func NewConsoleHandler(opts ConsoleOptions) runner.IOHandler {
	in := opts.Stdin
	if in == nil {
		in = os.Stdin
	}
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	if opts.JSON {
		return runner.NewJSONHandler(in, out, runner.WithJSONHandlerSanitizer(opts.Sanitizer))
	}
	handlerOpts := []runner.TextHandlerOption{runner.WithTextHandlerSanitizer(opts.Sanitizer)}
	if !opts.Plain && tui.IsTerminal(out) {
		handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
	}
	return runner.NewTextHandler(in, out, handlerOpts...)
}

// IsInterrupted reports errors that end a run normally: cancellation or end of input.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// HandleExecutionError maps interruptions to a clean exit.
func HandleExecutionError(err error) error {
	if err == nil || IsInterrupted(err) {
		return nil
	}
	return err
}
