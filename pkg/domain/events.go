package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStart    EventType = "session_start"
	EventSessionComplete EventType = "session_complete"
	EventSessionCancel   EventType = "session_cancel"
	EventAnswer          EventType = "answer"
	EventGeneration      EventType = "generation"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
}

// SessionEvent describes a session lifecycle transition.
type SessionEvent struct {
	EventBase
	SessionID string `json:"session_id"`
	FormID    string `json:"form_id"`
}

// AnswerEvent describes a validated (or rejected) answer.
type AnswerEvent struct {
	EventBase
	SessionID string `json:"session_id"`
	FormID    string `json:"form_id"`
	Field     string `json:"field"`
	Accepted  bool   `json:"accepted"`
	Index     int    `json:"index"`
}

// GenerationEvent describes one call to the text-generation service.
type GenerationEvent struct {
	EventBase
	Phase    Phase         `json:"phase"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
// Nil hooks are skipped.
type LifecycleHooks struct {
	OnSessionStart    func(context.Context, *SessionEvent)
	OnSessionComplete func(context.Context, *SessionEvent)
	OnSessionCancel   func(context.Context, *SessionEvent)
	OnAnswer          func(context.Context, *AnswerEvent)
	OnGeneration      func(context.Context, *GenerationEvent)
}
