package core

import (
	"context"

	"github.com/markdave123-py/libassist/internal/models"
)

// EmbeddingProvider turns one text into a fixed-length vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatMessage is one turn handed to the completion model.
type ChatMessage struct {
	Role    models.Role
	Content string
}

type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the generated text plus the usage counters the model reported.
type Completion struct {
	Text  string
	Usage TokenUsage
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, messages []ChatMessage) (*Completion, error)
}
