// Package testutils holds fixtures shared by transport tests.
package testutils

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/dsl"
	"github.com/aretw0/formbot/pkg/forms"
	"github.com/aretw0/formbot/pkg/ports"
	"github.com/stretchr/testify/require"
)

// Generator is a ports.Generator that returns Reply (or Err) and records every request.
type Generator struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	requests []ports.GenerateRequest
}

// Generate implements ports.Generator. Validation prompts always fail so
// deterministic rules decide answers.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if strings.Contains(req.UserPrompt, "Respond only with JSON") {
		return "", context.DeadlineExceeded
	}
	if g.Err != nil {
		return "", g.Err
	}
	return g.Reply, nil
}

// Requests returns a copy of the recorded requests.
func (g *Generator) Requests() []ports.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.GenerateRequest(nil), g.requests...)
}

// Sink records outbound messages.
type Sink struct {
	mu       sync.Mutex
	messages []string
}

// Send implements domain.MessageSink.
func (s *Sink) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

// Messages returns what was sent so far.
func (s *Sink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Last returns the most recent message or "".
func (s *Sink) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

var _ domain.MessageSink = (*Sink)(nil)

// Survey is a two-field form used across transport tests.
func Survey() *domain.Form {
	return dsl.NewForm("survey").
		Name("Quick Survey").
		Email("email", "What's your email address?").
		YesNo("happy", "Are you happy with the service?").
		MustBuild()
}

// NewBot builds a Bot with the onboarding and survey forms on an in-memory store.
func NewBot(t *testing.T, opts ...formbot.Option) *formbot.Bot {
	t.Helper()
	loader, err := memory.NewLoader(forms.Onboarding(), Survey())
	require.NoError(t, err)

	base := []formbot.Option{
		formbot.WithForms(loader),
		formbot.WithBcryptCost(4),
	}
	bot, err := formbot.New(append(base, opts...)...)
	require.NoError(t, err)
	return bot
}
