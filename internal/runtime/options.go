package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithGenerator enables LLM-backed validation and composition.
func WithGenerator(gen ports.Generator) EngineOption {
	return func(e *Engine) {
		e.llm.gen = gen
	}
}

// WithGenerationTimeout bounds each generation call (default DefaultGenerationTimeout).
func WithGenerationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.llm.timeout = d
		}
	}
}

// WithChatModel selects the model used by Chat; empty keeps the generator's default.
func WithChatModel(model string) EngineOption {
	return func(e *Engine) {
		e.chatModel = model
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistrationRequired makes StartSession demand a registered credential.
func WithRegistrationRequired(required bool) EngineOption {
	return func(e *Engine) {
		e.requireRegistration = required
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}
