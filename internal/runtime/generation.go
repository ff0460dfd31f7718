package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
)

// DefaultGenerationTimeout bounds a single text-generation call.
const DefaultGenerationTimeout = 10 * time.Second

// generation wraps the optional Generator with a deadline, trimming and hooks.
// A single failed call is reported, never retried.
type generation struct {
	gen     ports.Generator
	timeout time.Duration
	hooks   *domain.LifecycleHooks
	logger  *slog.Logger
}

func (g *generation) available() bool {
	return g != nil && g.gen != nil
}

func (g *generation) call(ctx context.Context, userID string, phase domain.Phase, req ports.GenerateRequest) (string, error) {
	if !g.available() {
		return "", domain.ErrGenerationUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.gen.Generate(callCtx, req)
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = fmt.Errorf("%w: empty reply", domain.ErrGenerationUnavailable)
		}
	} else {
		err = fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	elapsed := time.Since(start)

	if g.hooks.OnGeneration != nil {
		g.hooks.OnGeneration(ctx, &domain.GenerationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventGeneration, UserID: userID},
			Phase:     phase,
			Duration:  elapsed,
			Err:       err,
		})
	}
	if err != nil {
		g.logger.Warn("Generation failed, using fallback", "phase", phase, "user_id", userID, "err", err)
		return "", err
	}
	g.logger.Debug("Generation succeeded", "phase", phase, "user_id", userID, "duration", elapsed)
	return text, nil
}
