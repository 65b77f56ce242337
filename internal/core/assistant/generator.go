package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/core/retrieval"
	"github.com/markdave123-py/libassist/internal/core/sanitize"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

// SemanticSearcher is the retrieval step used for document context.
type SemanticSearcher interface {
	Search(ctx context.Context, q retrieval.Query) ([]retrieval.ScoredChunk, error)
}

type ResourceSearcher interface {
	SearchResources(ctx context.Context, query string) ([]models.LibraryResource, error)
}

type Options struct {
	TopK         int
	Threshold    float64
	Timeout      time.Duration
	HistoryLimit int
}

func DefaultOptions() Options {
	return Options{TopK: 3, Threshold: retrieval.DefaultThreshold, Timeout: 30 * time.Second, HistoryLimit: 10}
}

// ReplyParams is one user turn. History holds earlier turns, oldest first,
// and must not include Prompt itself.
type ReplyParams struct {
	Prompt         string
	Language       models.Language
	ConversationID int64
	UserID         string
	History        []core.ChatMessage
}

type Generator struct {
	resources ResourceSearcher
	search    SemanticSearcher
	queries   core.QueryLog
	llm       core.LLMProvider
	opts      Options
	log       logger.Logger
}

// NewGenerator replaces a TopK below 1 with the default of DefaultOptions.
func NewGenerator(resources ResourceSearcher, search SemanticSearcher, queries core.QueryLog, llm core.LLMProvider, opts Options, log logger.Logger) *Generator {
	if opts.TopK < 1 {
		opts.TopK = DefaultOptions().TopK
	}
	return &Generator{resources: resources, search: search, queries: queries, llm: llm, opts: opts, log: log}
}

var (
	resourceHeadings = map[models.Language]string{
		models.LanguageUkrainian: "Доступні ресурси:",
		models.LanguageRussian:   "Доступные ресурсы:",
		models.LanguageEnglish:   "Available resources:",
	}
	contextHeadings = map[models.Language]string{
		models.LanguageUkrainian: "## Релевантна інформація з документів:",
		models.LanguageRussian:   "## Релевантная информация из документов:",
		models.LanguageEnglish:   "## Relevant information from documents:",
	}
)

// Reply grounds the prompt in matching resources and document chunks and
// asks the completion model for an answer. Every failure is a *PipelineError.
func (g *Generator) Reply(ctx context.Context, p ReplyParams) (string, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return "", &PipelineError{Op: "validate", Err: ErrEmptyPrompt}
	}
	lang := NormalizeLanguage(string(p.Language))
	log := g.log.With("conversation_id", p.ConversationID, "language", lang)

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	var (
		resources []models.LibraryResource
		chunks    []retrieval.ScoredChunk
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		resources, err = g.resources.SearchResources(egctx, p.Prompt)
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		threshold := g.opts.Threshold
		chunks, err = g.search.Search(egctx, retrieval.Query{
			Text: p.Prompt, Language: lang, TopK: g.opts.TopK, Threshold: &threshold,
		})
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", &PipelineError{Op: "retrieve", Err: err}
	}

	ragContext := g.buildDocumentContext(log, chunks, lang)
	g.logQuery(ctx, log, p, lang, resources)

	knowledge, err := KnowledgePrompt(lang)
	if err != nil {
		return "", &PipelineError{Op: "prompt", Err: err}
	}
	system := knowledge + buildResourceContext(resources, lang) + ragContext

	messages := append(tail(p.History, g.opts.HistoryLimit), core.ChatMessage{Role: models.RoleUser, Content: p.Prompt})
	completion, err := g.llm.Generate(ctx, system, messages)
	if err != nil {
		return "", &PipelineError{Op: "generate", Err: err}
	}

	log.Debug("reply generated",
		"resources", len(resources),
		"chunks", len(chunks),
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
	)
	return completion.Text, nil
}

func (g *Generator) logQuery(ctx context.Context, log logger.Logger, p ReplyParams, lang models.Language, resources []models.LibraryResource) {
	ids := make([]int64, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}
	q := &models.UserQuery{
		UserID:            p.UserID,
		Query:             p.Prompt,
		Language:          lang,
		ResourcesReturned: ids,
	}
	if p.ConversationID != 0 {
		id := p.ConversationID
		q.ConversationID = &id
	}
	if err := g.queries.LogUserQuery(ctx, q); err != nil {
		log.Warn("failed to log user query", "error", err)
	}
}

// buildDocumentContext sanitizes every retrieved chunk before it reaches the
// system prompt. Chunks left empty by sanitizing are skipped.
func (g *Generator) buildDocumentContext(log logger.Logger, chunks []retrieval.ScoredChunk, lang models.Language) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		content, dropped := sanitize.Sanitize(c.Content)
		for _, d := range dropped {
			log.Warn("dropped suspicious line from retrieved context", "document_id", c.DocumentID, "chunk_index", c.ChunkIndex, "preview", d)
		}
		if content == "" {
			continue
		}
		title := strings.TrimSpace(sanitize.StripTags(c.DocumentTitle))
		if title == "" {
			title = "Unknown"
		}
		parts = append(parts, "**"+title+":**\n"+content)
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n\n" + contextHeadings[lang] + "\n\n" + strings.Join(parts, "\n\n---\n\n")
}

func buildResourceContext(resources []models.LibraryResource, lang models.Language) string {
	if len(resources) == 0 {
		return ""
	}
	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		line := "- " + r.Name(lang) + ": " + r.Description(lang)
		if r.URL != "" {
			line += " (" + r.URL + ")"
		}
		lines = append(lines, line)
	}
	return "\n\n" + resourceHeadings[lang] + "\n" + strings.Join(lines, "\n")
}

// tail keeps the last n messages and then drops leading assistant turns,
// since a chat history must open with a user turn.
func tail(history []core.ChatMessage, n int) []core.ChatMessage {
	if n >= 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	for len(history) > 0 && history[0].Role == models.RoleAssistant {
		history = history[1:]
	}
	out := make([]core.ChatMessage, len(history), len(history)+1)
	copy(out, history)
	return out
}
