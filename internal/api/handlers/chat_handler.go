package handlers

import (
	"net/http"

	mw "github.com/markdave123-py/libassist/internal/api/middlewares"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
	"github.com/markdave123-py/libassist/internal/services"
)

type ChatHandler struct {
	conversations *services.ConversationService
	log           logger.Logger
}

func NewChatHandler(conversations *services.ConversationService, log logger.Logger) *ChatHandler {
	return &ChatHandler{conversations: conversations, log: log}
}

type createConversationRequest struct {
	Title    string          `json:"title"`
	Language models.Language `json:"language"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := mw.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	conv, err := h.conversations.CreateConversation(r.Context(), userID, req.Title, req.Language)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := mw.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	convs, err := h.conversations.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(convs))
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := mw.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	msgs, err := h.conversations.ListMessages(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

// SendMessage answers with the stored assistant message, which holds a
// localized apology when generation failed.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := mw.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.conversations.SendMessage(r.Context(), userID, id, req.Content)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
