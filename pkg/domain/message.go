package domain

import "context"

// Phase selects which message the composer produces.
type Phase string

const (
	PhaseIntro        Phase = "intro"
	PhaseNextQuestion Phase = "next_question"
	PhaseRetry        Phase = "retry"
	PhaseCompletion   Phase = "completion"

	// These label generation calls that do not compose form messages.
	PhaseValidate  Phase = "validate"
	PhaseChat      Phase = "chat"
	PhaseFormDraft Phase = "form_draft"
)

// MessageSink delivers outbound text through the transport a message arrived on.
type MessageSink interface {
	Send(ctx context.Context, text string) error
}

// MessageSinkFunc adapts a function to MessageSink.
type MessageSinkFunc func(ctx context.Context, text string) error

// Send calls f.
func (f MessageSinkFunc) Send(ctx context.Context, text string) error {
	return f(ctx, text)
}

// StartResult is returned by a successful StartSession.
type StartResult struct {
	SessionID string `json:"session_id"`
	FormID    string `json:"form_id"`
	Message   string `json:"message"`
}

// SubmitResult is returned by SubmitAnswer.
// Accepted is false when the answer was rejected and Message asks again.
type SubmitResult struct {
	SessionID string            `json:"session_id"`
	Done      bool              `json:"done"`
	Accepted  bool              `json:"accepted"`
	Message   string            `json:"message"`
	Answers   map[string]string `json:"answers,omitempty"`
}
