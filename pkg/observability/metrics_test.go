package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnSessionStart(ctx, &domain.SessionEvent{FormID: "onboarding"})
	hooks.OnSessionStart(ctx, &domain.SessionEvent{FormID: "onboarding"})
	hooks.OnSessionComplete(ctx, &domain.SessionEvent{FormID: "onboarding"})
	hooks.OnSessionCancel(ctx, &domain.SessionEvent{FormID: "onboarding"})
	hooks.OnAnswer(ctx, &domain.AnswerEvent{FormID: "onboarding", Field: "email", Accepted: false})
	hooks.OnAnswer(ctx, &domain.AnswerEvent{FormID: "onboarding", Field: "email", Accepted: true})
	hooks.OnGeneration(ctx, &domain.GenerationEvent{Phase: domain.PhaseIntro, Duration: time.Millisecond})
	hooks.OnGeneration(ctx, &domain.GenerationEvent{Phase: domain.PhaseIntro, Err: errors.New("down")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStarted.WithLabelValues("onboarding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCompleted.WithLabelValues("onboarding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCancelled.WithLabelValues("onboarding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("onboarding", "email", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("onboarding", "email", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("intro", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("intro", "fallback")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GenerationDuration))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	var seen int
	custom := domain.LifecycleHooks{
		OnSessionStart: func(context.Context, *domain.SessionEvent) { seen++ },
	}
	hooks := observability.Combine(observability.LogHooks(logger), m.Hooks(), custom)

	hooks.OnSessionStart(context.Background(), &domain.SessionEvent{
		EventBase: domain.EventBase{UserID: "u1"},
		SessionID: "session_1",
		FormID:    "onboarding",
	})
	hooks.OnAnswer(context.Background(), &domain.AnswerEvent{FormID: "onboarding", Field: "email", Accepted: true})

	assert.Equal(t, 1, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStarted.WithLabelValues("onboarding")))
	assert.Contains(t, buf.String(), "session_start")
	assert.Contains(t, buf.String(), "session_id=session_1")
	assert.Contains(t, buf.String(), "field=email")
}
