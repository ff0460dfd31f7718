package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
	"github.com/aretw0/formbot/pkg/session"
)

// Engine is the form session state machine.
// It owns no session state: every step is a locked read-modify-write through the Manager.
type Engine struct {
	forms    ports.FormLoader
	sessions *session.Manager

	llm       *generation
	validator *validator
	composer  *composer
	chatModel string

	hooks               domain.LifecycleHooks
	logger              *slog.Logger
	requireRegistration bool
	now                 func() time.Time
}

// NewEngine wires the orchestrator to its form source and session manager.
func NewEngine(forms ports.FormLoader, sessions *session.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		forms:    forms,
		sessions: sessions,
		llm:      &generation{timeout: DefaultGenerationTimeout},
		logger:   logging.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.llm.hooks = &e.hooks
	e.llm.logger = e.logger
	e.validator = &validator{llm: e.llm}
	e.composer = &composer{llm: e.llm}
	return e
}

// StartSession opens a new in_progress session of formID for the user and returns the intro.
func (e *Engine) StartSession(ctx context.Context, userID, formID string) (*domain.StartResult, error) {
	form, err := e.forms.GetForm(formID)
	if err != nil {
		return nil, err
	}

	var opened *domain.Session
	err = e.sessions.Update(ctx, userID, func(rec *domain.Record, exists bool) (bool, error) {
		if e.requireRegistration && !rec.Registered() {
			return false, domain.ErrRegistrationRequired
		}
		if active := rec.ActiveSession(); active != nil {
			return false, fmt.Errorf("%w: %s (%s)", domain.ErrSessionAlreadyActive, active.ID, active.FormID)
		}
		opened = rec.OpenSession(form.ID, e.now()).Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Session started", "user_id", userID, "session_id", opened.ID, "form_id", form.ID)
	if e.hooks.OnSessionStart != nil {
		e.hooks.OnSessionStart(ctx, e.sessionEvent(domain.EventSessionStart, userID, opened))
	}

	first, _ := form.FieldAt(0)
	msg := e.composer.compose(ctx, userID, domain.PhaseIntro, ComposeInput{Form: form, Field: first})
	return &domain.StartResult{SessionID: opened.ID, FormID: form.ID, Message: msg}, nil
}

// submitOutcome captures what happened inside the locked section.
type submitOutcome struct {
	form      *domain.Form
	session   *domain.Session
	field     domain.Field
	verdict   Verdict
	completed bool
	orphaned  bool
}

const orphanedFormMessage = "The form you were filling in is no longer available, so I closed it. Feel free to start another one."

// SubmitAnswer validates raw against the active session's current field.
// Rejected answers leave the session untouched and return a retry prompt.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, raw string) (*domain.SubmitResult, error) {
	var out submitOutcome
	err := e.sessions.Update(ctx, userID, func(rec *domain.Record, exists bool) (bool, error) {
		active := rec.ActiveSession()
		if active == nil {
			return false, domain.ErrNoActiveSession
		}
		form, err := e.forms.GetForm(active.FormID)
		if errors.Is(err, domain.ErrUnknownForm) {
			now := e.now()
			active.Status = domain.SessionCancelled
			active.UpdatedAt = now
			active.ClosedAt = &now
			out.session = active.Clone()
			out.orphaned = true
			return true, nil
		}
		if err != nil {
			return false, err
		}
		field, ok := form.FieldAt(active.CurrentField)
		if !ok {
			return false, fmt.Errorf("session %s points past the end of form %s", active.ID, form.ID)
		}

		out.form, out.field = form, field
		out.verdict = e.validator.validate(ctx, userID, field, raw)
		if !out.verdict.Accepted {
			out.session = active.Clone()
			return false, nil
		}

		now := e.now()
		active.Answers[field.Name] = out.verdict.Value
		active.CurrentField++
		active.UpdatedAt = now
		if active.CurrentField == len(form.Fields) {
			active.Status = domain.SessionCompleted
			active.ClosedAt = &now
			out.completed = true
		}
		out.session = active.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s := out.session
	if out.orphaned {
		e.logger.Warn("Session closed, form no longer registered", "user_id", userID, "session_id", s.ID, "form_id", s.FormID)
		if e.hooks.OnSessionCancel != nil {
			e.hooks.OnSessionCancel(ctx, e.sessionEvent(domain.EventSessionCancel, userID, s))
		}
		return &domain.SubmitResult{SessionID: s.ID, Done: true, Message: orphanedFormMessage}, nil
	}
	if e.hooks.OnAnswer != nil {
		e.hooks.OnAnswer(ctx, &domain.AnswerEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventAnswer, UserID: userID},
			SessionID: s.ID,
			FormID:    s.FormID,
			Field:     out.field.Name,
			Accepted:  out.verdict.Accepted,
			Index:     s.CurrentField,
		})
	}

	switch {
	case !out.verdict.Accepted:
		e.logger.Debug("Answer rejected", "user_id", userID, "session_id", s.ID, "field", out.field.Name)
		msg := e.composer.compose(ctx, userID, domain.PhaseRetry, ComposeInput{
			Form:    out.form,
			Field:   out.field,
			Invalid: raw,
			Reason:  out.verdict.Reason,
		})
		return &domain.SubmitResult{SessionID: s.ID, Message: msg}, nil

	case out.completed:
		e.logger.Info("Session completed", "user_id", userID, "session_id", s.ID, "form_id", s.FormID)
		if e.hooks.OnSessionComplete != nil {
			e.hooks.OnSessionComplete(ctx, e.sessionEvent(domain.EventSessionComplete, userID, s))
		}
		msg := e.composer.compose(ctx, userID, domain.PhaseCompletion, ComposeInput{Form: out.form, Answers: s.Answers})
		return &domain.SubmitResult{SessionID: s.ID, Done: true, Accepted: true, Message: msg, Answers: s.Answers}, nil

	default:
		next, _ := out.form.FieldAt(s.CurrentField)
		prev := out.field
		msg := e.composer.compose(ctx, userID, domain.PhaseNextQuestion, ComposeInput{
			Form:           out.form,
			Field:          next,
			Previous:       &prev,
			PreviousAnswer: out.verdict.Value,
		})
		return &domain.SubmitResult{SessionID: s.ID, Accepted: true, Message: msg}, nil
	}
}

// CancelSession abandons the user's active session and returns its id.
func (e *Engine) CancelSession(ctx context.Context, userID string) (string, error) {
	var cancelled *domain.Session
	err := e.sessions.Update(ctx, userID, func(rec *domain.Record, exists bool) (bool, error) {
		active := rec.ActiveSession()
		if active == nil {
			return false, domain.ErrNoActiveSession
		}
		now := e.now()
		active.Status = domain.SessionCancelled
		active.UpdatedAt = now
		active.ClosedAt = &now
		cancelled = active.Clone()
		return true, nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("Session cancelled", "user_id", userID, "session_id", cancelled.ID)
	if e.hooks.OnSessionCancel != nil {
		e.hooks.OnSessionCancel(ctx, e.sessionEvent(domain.EventSessionCancel, userID, cancelled))
	}
	return cancelled.ID, nil
}

// ActiveSession returns the user's in_progress session or domain.ErrNoActiveSession.
func (e *Engine) ActiveSession(ctx context.Context, userID string) (*domain.Session, error) {
	rec, err := e.sessions.Load(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	if active := rec.ActiveSession(); active != nil {
		return active, nil
	}
	return nil, domain.ErrNoActiveSession
}

// ListSessions returns every session of the user in allocation order.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	rec, err := e.sessions.Load(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return []*domain.Session{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.SortedSessions(), nil
}

// Forms returns the registered forms.
func (e *Engine) Forms() ([]*domain.Form, error) {
	return e.forms.ListForms()
}

func (e *Engine) sessionEvent(t domain.EventType, userID string, s *domain.Session) *domain.SessionEvent {
	return &domain.SessionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: t, UserID: userID},
		SessionID: s.ID,
		FormID:    s.FormID,
	}
}
