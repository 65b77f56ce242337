package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/libassist/internal/core/catalog"
)

type CatalogSyncer interface {
	RunSync(ctx context.Context) catalog.SyncResult
	Status() catalog.Status
}

type SyncHandler struct {
	syncer CatalogSyncer
}

func NewSyncHandler(syncer CatalogSyncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.syncer.RunSync(r.Context()))
}

func (h *SyncHandler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.syncer.Status())
}
