package runtime_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/formbot/internal/runtime"
	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
	"github.com/aretw0/formbot/pkg/session"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers by phase keyword found in the prompts.
type scriptedGenerator struct {
	mu       sync.Mutex
	reply    func(req ports.GenerateRequest) (string, error)
	requests []ports.GenerateRequest
}

func (g *scriptedGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return g.reply(req)
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func isValidation(req ports.GenerateRequest) bool {
	return strings.Contains(req.UserPrompt, "Respond only with JSON")
}

var errDown = errors.New("connection refused")

func scenarioAForm() *domain.Form {
	return &domain.Form{
		ID:   "contact",
		Name: "Contact Details",
		Fields: []domain.Field{
			{Name: "fullName", Type: domain.FieldString, Prompt: "What's your full name?", Required: true},
			{Name: "email", Type: domain.FieldEmail, Prompt: "What's your email address?", Required: true},
		},
	}
}

func newEngine(t *testing.T, store ports.StateStore, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()
	loader, err := memory.NewLoader(
		scenarioAForm(),
		&domain.Form{ID: "rating", Name: "Rating", Fields: []domain.Field{
			{Name: "score", Type: domain.FieldNumber, Prompt: "Score from 1 to 10?"},
		}},
		&domain.Form{ID: "pick", Name: "Pick", Fields: []domain.Field{
			{Name: "letter", Type: domain.FieldMultiple, Prompt: "A or B?", Options: []string{"A", "B"}},
			{Name: "sure", Type: domain.FieldYesNo, Prompt: "Are you sure?"},
		}},
	)
	require.NoError(t, err)
	return runtime.NewEngine(loader, session.NewManager(store), opts...)
}
