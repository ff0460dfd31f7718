package runtime

import (
	"context"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/ports"
)

const (
	chatSystemPrompt = "You are a helpful assistant."
	chatMaxTokens    = 500
)

// Chat relays a free-form message to the generation service.
// Unlike form phases there is no template to fall back to, so failures are returned
// wrapping domain.ErrGenerationUnavailable.
func (e *Engine) Chat(ctx context.Context, userID, message string) (string, error) {
	return e.llm.call(ctx, userID, domain.PhaseChat, ports.GenerateRequest{
		SystemPrompt: chatSystemPrompt,
		UserPrompt:   message,
		MaxTokens:    chatMaxTokens,
		Model:        e.chatModel,
	})
}
