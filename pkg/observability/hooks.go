package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/formbot/pkg/domain"
)

// LogHooks logs every lifecycle event. Answer values are never logged.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			logger.InfoContext(ctx, "session_start", "user_id", e.UserID, "session_id", e.SessionID, "form", e.FormID)
		},
		OnSessionComplete: func(ctx context.Context, e *domain.SessionEvent) {
			logger.InfoContext(ctx, "session_complete", "user_id", e.UserID, "session_id", e.SessionID, "form", e.FormID)
		},
		OnSessionCancel: func(ctx context.Context, e *domain.SessionEvent) {
			logger.InfoContext(ctx, "session_cancel", "user_id", e.UserID, "session_id", e.SessionID, "form", e.FormID)
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.DebugContext(ctx, "answer",
				"user_id", e.UserID,
				"session_id", e.SessionID,
				"field", e.Field,
				"accepted", e.Accepted,
			)
		},
		OnGeneration: func(ctx context.Context, e *domain.GenerationEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "generation_failed", "phase", e.Phase, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "generation", "phase", e.Phase, "duration", e.Duration)
		},
	}
}

// Combine returns hooks that invoke each set in order, skipping nil callbacks.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			for _, s := range sets {
				if s.OnSessionStart != nil {
					s.OnSessionStart(ctx, e)
				}
			}
		},
		OnSessionComplete: func(ctx context.Context, e *domain.SessionEvent) {
			for _, s := range sets {
				if s.OnSessionComplete != nil {
					s.OnSessionComplete(ctx, e)
				}
			}
		},
		OnSessionCancel: func(ctx context.Context, e *domain.SessionEvent) {
			for _, s := range sets {
				if s.OnSessionCancel != nil {
					s.OnSessionCancel(ctx, e)
				}
			}
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			for _, s := range sets {
				if s.OnAnswer != nil {
					s.OnAnswer(ctx, e)
				}
			}
		},
		OnGeneration: func(ctx context.Context, e *domain.GenerationEvent) {
			for _, s := range sets {
				if s.OnGeneration != nil {
					s.OnGeneration(ctx, e)
				}
			}
		},
	}
}
