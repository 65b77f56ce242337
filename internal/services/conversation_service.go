package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/core/assistant"
	"github.com/markdave123-py/libassist/internal/core/language"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

var ErrInvalidInput = errors.New("invalid input")

// Replier produces the assistant's answer for one user turn.
type Replier interface {
	Reply(ctx context.Context, p assistant.ReplyParams) (string, error)
}

type ConversationService struct {
	store        core.ConversationStore
	replier      Replier
	detector     *language.Detector
	historyLimit int
	log          logger.Logger
}

func NewConversationService(store core.ConversationStore, replier Replier, detector *language.Detector, historyLimit int, log logger.Logger) *ConversationService {
	return &ConversationService{store: store, replier: replier, detector: detector, historyLimit: historyLimit, log: log}
}

func (s *ConversationService) CreateConversation(ctx context.Context, userID, title string, lang models.Language) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	conv := &models.Conversation{
		UserID:   userID,
		Title:    title,
		Language: assistant.NormalizeLanguage(string(lang)),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// GetConversation hides conversations of other users behind core.ErrNotFound.
func (s *ConversationService) GetConversation(ctx context.Context, userID string, id int64) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, core.ErrNotFound
	}
	return conv, nil
}

func (s *ConversationService) ListMessages(ctx context.Context, userID string, conversationID int64) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// SendMessage stores the user's message, generates a reply and stores it.
// A failed reply is logged and replaced by a localized apology, so the
// conversation always gets an assistant message for the turn.
func (s *ConversationService) SendMessage(ctx context.Context, userID string, conversationID int64, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := &models.Message{ConversationID: conversationID, Role: models.RoleUser, Content: content}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	lang, ok := s.detector.Detect(content)
	if !ok {
		lang = assistant.NormalizeLanguage(string(conv.Language))
	}

	reply, err := s.replier.Reply(ctx, assistant.ReplyParams{
		Prompt:         content,
		Language:       lang,
		ConversationID: conversationID,
		UserID:         userID,
		History:        toHistory(previous, s.historyLimit),
	})
	if err != nil {
		assistant.LogPipelineError(s.log, err, assistant.FailureContext{
			ConversationID: conversationID,
			UserID:         userID,
			Prompt:         content,
		})
		reply = assistant.LocalizedErrorMessage(lang)
	}

	assistantMsg := &models.Message{ConversationID: conversationID, Role: models.RoleAssistant, Content: reply}
	if err := s.store.CreateMessage(context.WithoutCancel(ctx), assistantMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}
	return assistantMsg, nil
}

func toHistory(msgs []models.Message, limit int) []core.ChatMessage {
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	for len(msgs) > 0 && msgs[0].Role == models.RoleAssistant {
		msgs = msgs[1:]
	}
	out := make([]core.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role != models.RoleAssistant {
			role = models.RoleUser
		}
		out = append(out, core.ChatMessage{Role: role, Content: m.Content})
	}
	return out
}
