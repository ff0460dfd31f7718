// Package gemini implements ports.Generator on the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the slice of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates text through the Gemini API.
type Client struct {
	models contentGenerator
	model  string
}

var _ ports.Generator = (*Client)(nil)

// New creates a Gemini API client. model may be empty.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", domain.ErrGenerationUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return newWithModels(client.Models, model), nil
}

func newWithModels(models contentGenerator, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: models, model: model}
}

// Generate runs a single-turn completion.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	res, err := c.models.GenerateContent(ctx, model, genai.Text(req.UserPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate content: %w", domain.ErrGenerationUnavailable, err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned empty text", domain.ErrGenerationUnavailable)
	}
	return text, nil
}
