package formbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/formbot/internal/logging"
	"github.com/aretw0/formbot/internal/runtime"
	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/credentials"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/forms"
	"github.com/aretw0/formbot/pkg/ports"
	"github.com/aretw0/formbot/pkg/session"
)

// Bot is the high-level entry point for the formbot library.
// It wraps the internal runtime and provides a simplified API for transports.
type Bot struct {
	runtime     *runtime.Engine
	sessions    *session.Manager
	credentials *credentials.Store

	forms       ports.FormLoader
	store       ports.StateStore
	generator   ports.Generator
	locker      ports.DistributedLocker
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	timeout     time.Duration
	chatModel   string
	defaultForm string
	requireReg  bool
	bcryptCost  int
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithStore sets the record store (default: in-memory).
func WithStore(s ports.StateStore) Option {
	return func(b *Bot) {
		b.store = s
	}
}

// WithForms sets the form source (default: the built-in onboarding form).
func WithForms(l ports.FormLoader) Option {
	return func(b *Bot) {
		b.forms = l
	}
}

// WithGenerator enables the text-generation service.
func WithGenerator(g ports.Generator) Option {
	return func(b *Bot) {
		b.generator = g
	}
}

// WithGenerationTimeout bounds each generation call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.timeout = d
	}
}

// WithChatModel selects the model used for free chat.
func WithChatModel(model string) Option {
	return func(b *Bot) {
		b.chatModel = model
	}
}

// WithLocker adds a distributed lock around every record update.
func WithLocker(l ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = l
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithDefaultForm names the form StartSession uses when none is given.
func WithDefaultForm(formID string) Option {
	return func(b *Bot) {
		b.defaultForm = formID
	}
}

// WithRegistrationRequired makes StartSession demand a registered credential.
func WithRegistrationRequired(required bool) Option {
	return func(b *Bot) {
		b.requireReg = required
	}
}

// WithBcryptCost overrides the credential hashing cost.
func WithBcryptCost(cost int) Option {
	return func(b *Bot) {
		b.bcryptCost = cost
	}
}

// New initializes a Bot. Without options it runs the onboarding form
// on an in-memory store using template messages only.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{defaultForm: forms.OnboardingID}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.store == nil {
		b.store = memory.NewStore()
	}
	if b.forms == nil {
		loader, err := memory.NewLoader(forms.Onboarding())
		if err != nil {
			return nil, err
		}
		b.forms = loader
	}
	if _, err := b.forms.GetForm(b.defaultForm); err != nil {
		return nil, fmt.Errorf("default form: %w", err)
	}

	sessionOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
	}
	b.sessions = session.NewManager(b.store, sessionOpts...)

	var credOpts []credentials.Option
	if b.bcryptCost > 0 {
		credOpts = append(credOpts, credentials.WithCost(b.bcryptCost))
	}
	b.credentials = credentials.NewStore(b.sessions, credOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(b.hooks),
		runtime.WithLogger(b.logger),
		runtime.WithGenerationTimeout(b.timeout),
		runtime.WithChatModel(b.chatModel),
		runtime.WithRegistrationRequired(b.requireReg),
	}
	if b.generator != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithGenerator(b.generator))
	}
	b.runtime = runtime.NewEngine(b.forms, b.sessions, runtimeOpts...)

	return b, nil
}

// StartSession opens formID for userID and returns the introduction.
// An empty formID selects the default form.
func (b *Bot) StartSession(ctx context.Context, userID, formID string) (*domain.StartResult, error) {
	if formID == "" {
		formID = b.defaultForm
	}
	return b.runtime.StartSession(ctx, userID, formID)
}

// SubmitAnswer feeds raw to the user's active session.
func (b *Bot) SubmitAnswer(ctx context.Context, userID, raw string) (*domain.SubmitResult, error) {
	return b.runtime.SubmitAnswer(ctx, userID, raw)
}

// CancelSession abandons the active session and returns its id.
func (b *Bot) CancelSession(ctx context.Context, userID string) (string, error) {
	return b.runtime.CancelSession(ctx, userID)
}

// ActiveSession returns the in_progress session or domain.ErrNoActiveSession.
func (b *Bot) ActiveSession(ctx context.Context, userID string) (*domain.Session, error) {
	return b.runtime.ActiveSession(ctx, userID)
}

// ListSessions returns the user's sessions in allocation order.
func (b *Bot) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return b.runtime.ListSessions(ctx, userID)
}

// Forms lists the registered forms.
func (b *Bot) Forms() ([]*domain.Form, error) {
	return b.runtime.Forms()
}

// Form returns one registered form.
func (b *Bot) Form(id string) (*domain.Form, error) {
	return b.forms.GetForm(id)
}

// DefaultForm is the form id used when StartSession gets none.
func (b *Bot) DefaultForm() string {
	return b.defaultForm
}

// GenerateForm drafts the fields of a form described in plain language, using the
// generation service when available and the keyword template otherwise.
func (b *Bot) GenerateForm(ctx context.Context, userID, description string) (*domain.FormDraft, error) {
	return b.runtime.GenerateFields(ctx, userID, description)
}

// formAdder is implemented by form sources that accept forms at runtime.
type formAdder interface {
	Add(f *domain.Form) error
}

// AddForm validates f and registers it with the form source.
// It fails with domain.ErrFormExists for a taken id and domain.ErrFormsReadOnly
// when the source is fixed.
func (b *Bot) AddForm(f *domain.Form) error {
	adder, ok := b.forms.(formAdder)
	if !ok {
		return domain.ErrFormsReadOnly
	}
	if err := adder.Add(f); err != nil {
		return err
	}
	b.logger.Info("Form added", "form_id", f.ID, "fields", len(f.Fields))
	return nil
}

// Chat relays message to the generation service.
func (b *Bot) Chat(ctx context.Context, userID, message string) (string, error) {
	return b.runtime.Chat(ctx, userID, message)
}

// Register stores a credential for userID.
func (b *Bot) Register(ctx context.Context, userID, name, secret string) error {
	return b.credentials.Register(ctx, userID, name, secret)
}

// Authenticate checks secret against the stored credential.
func (b *Bot) Authenticate(ctx context.Context, userID, secret string) (bool, error) {
	return b.credentials.Authenticate(ctx, userID, secret)
}

// Record loads the raw user record.
func (b *Bot) Record(ctx context.Context, userID string) (*domain.Record, error) {
	return b.sessions.Load(ctx, userID)
}

// DeleteUser removes the user's record and all its sessions.
func (b *Bot) DeleteUser(ctx context.Context, userID string) error {
	return b.sessions.Delete(ctx, userID)
}

// Users lists the ids of every stored record.
func (b *Bot) Users(ctx context.Context) ([]string, error) {
	return b.sessions.List(ctx)
}

// Handle routes one inbound message from userID and writes the reply to sink.
// With an active session the text is an answer; otherwise it is relayed as free chat.
// Errors are reported to the user through sink and also returned.
func (b *Bot) Handle(ctx context.Context, userID, text string, sink domain.MessageSink) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	res, err := b.runtime.SubmitAnswer(ctx, userID, text)
	switch {
	case err == nil:
		return sink.Send(ctx, res.Message)
	case !errors.Is(err, domain.ErrNoActiveSession):
		b.logger.Error("Answer failed", "user_id", userID, "err", err)
		return errors.Join(err, sink.Send(ctx, domain.UserMessage(err)))
	}

	reply, err := b.runtime.Chat(ctx, userID, text)
	if err != nil {
		b.logger.Warn("Chat relay failed", "user_id", userID, "err", err)
		return errors.Join(err, sink.Send(ctx, domain.UserMessage(err)))
	}
	return sink.Send(ctx, reply)
}
