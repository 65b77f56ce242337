package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/models"
)

const (
	DefaultChatModel = "gemini-1.5-flash"

	temperature     = 0.7
	maxOutputTokens = 1000
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini llm: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultChatModel
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate runs one chat turn. Every message but the last becomes chat
// history; the last one is sent as the new user turn.
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt string, messages []core.ChatMessage) (*core.Completion, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini generate: no messages")
	}
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(temperature)
	m.SetMaxOutputTokens(maxOutputTokens)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	cs := m.StartChat()
	cs.History = toHistory(messages[:len(messages)-1])

	resp, err := cs.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &core.Completion{Text: responseText(resp)}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = core.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func toHistory(msgs []core.ChatMessage) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		history = append(history, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history
}

func geminiRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
