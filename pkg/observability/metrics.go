package observability

import (
	"context"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the formbot collectors.
type Metrics struct {
	SessionsStarted    *prometheus.CounterVec
	SessionsCompleted  *prometheus.CounterVec
	SessionsCancelled  *prometheus.CounterVec
	Answers            *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbot_sessions_started_total",
				Help: "Total number of form sessions started",
			},
			[]string{"form"},
		),
		SessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbot_sessions_completed_total",
				Help: "Total number of form sessions completed",
			},
			[]string{"form"},
		),
		SessionsCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbot_sessions_cancelled_total",
				Help: "Total number of form sessions cancelled",
			},
			[]string{"form"},
		),
		Answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbot_answers_total",
				Help: "Answers received, by validation result",
			},
			[]string{"form", "field", "result"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbot_generation_total",
				Help: "Calls to the text-generation service, by outcome",
			},
			[]string{"phase", "outcome"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formbot_generation_duration_seconds",
				Help:    "Duration of text-generation calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.SessionsStarted, m.SessionsCompleted, m.SessionsCancelled,
		m.Answers, m.Generations, m.GenerationDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsStarted.WithLabelValues(e.FormID).Inc()
		},
		OnSessionComplete: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsCompleted.WithLabelValues(e.FormID).Inc()
		},
		OnSessionCancel: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsCancelled.WithLabelValues(e.FormID).Inc()
		},
		OnAnswer: func(_ context.Context, e *domain.AnswerEvent) {
			result := "accepted"
			if !e.Accepted {
				result = "rejected"
			}
			m.Answers.WithLabelValues(e.FormID, e.Field, result).Inc()
		},
		OnGeneration: func(_ context.Context, e *domain.GenerationEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "fallback"
			}
			m.Generations.WithLabelValues(string(e.Phase), outcome).Inc()
			m.GenerationDuration.WithLabelValues(string(e.Phase)).Observe(e.Duration.Seconds())
		},
	}
}
