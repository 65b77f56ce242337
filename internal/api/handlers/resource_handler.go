package handlers

import (
	"net/http"
	"strconv"

	"github.com/markdave123-py/libassist/internal/core/retrieval"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
	"github.com/markdave123-py/libassist/internal/services"
)

type ResourceHandler struct {
	library *services.LibraryService
	log     logger.Logger
}

func NewResourceHandler(library *services.LibraryService, log logger.Logger) *ResourceHandler {
	return &ResourceHandler{library: library, log: log}
}

func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.library.Resources(r.Context(), models.ResourceType(q.Get("type")), q.Get("q"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(res))
}

type searchRequest struct {
	Query     string          `json:"query"`
	Language  models.Language `json:"language"`
	TopK      int             `json:"topK"`
	Threshold *float64        `json:"threshold"`
}

func (h *ResourceHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chunks, err := h.library.Search(r.Context(), retrieval.Query{
		Text: req.Query, Language: req.Language, TopK: req.TopK, Threshold: req.Threshold,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(chunks))
}

func (h *ResourceHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	qs, err := h.library.RecentQueries(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(qs))
}
