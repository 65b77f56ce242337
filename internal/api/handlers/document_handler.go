package handlers

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/markdave123-py/libassist/internal/core/ingestion_engine"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
	"github.com/markdave123-py/libassist/internal/services"
)

const maxUploadSize = 50 << 20

type DocumentHandler struct {
	documents *services.DocumentService
	log       logger.Logger
}

func NewDocumentHandler(documents *services.DocumentService, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, log: log}
}

// ProcessText chunks, embeds and stores a document sent as JSON text.
func (h *DocumentHandler) ProcessText(w http.ResponseWriter, r *http.Request) {
	var in ingestion_engine.DocumentInput
	if !decodeJSON(w, r, &in) {
		return
	}

	res, err := h.documents.ProcessText(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UploadDocument stores a multipart file and queues it for processing.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	in := ingestion_engine.DocumentInput{
		DocumentID: r.FormValue("documentId"),
		Title:      r.FormValue("title"),
		SourceType: models.SourceType(r.FormValue("sourceType")),
		Language:   models.Language(r.FormValue("language")),
		URL:        r.FormValue("url"),
		Author:     r.FormValue("author"),
	}
	if in.SourceType == "" {
		in.SourceType = models.SourceOther
	}
	if in.Language == "" {
		in.Language = models.LanguageUkrainian
	}
	if v := r.FormValue("publishedDate"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "publishedDate must be YYYY-MM-DD")
			return
		}
		in.PublishedDate = &t
	}
	if !in.SourceType.Valid() || !in.Language.Valid() {
		writeError(w, http.StatusBadRequest, "invalid sourceType or language")
		return
	}

	contentType := header.Header.Get("Content-Type")
	rec, err := h.documents.Upload(r.Context(), filepath.Base(header.Filename), contentType, file, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}
