package ports

import "context"

// GenerateRequest is a single-turn completion request.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	// Model overrides the adapter's default model when set.
	Model string
}

// Generator is the text-generation service.
// Implementations return an error wrapping domain.ErrGenerationUnavailable on any failure
// and must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
