package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

// Processor chunks a document, embeds every chunk and persists the result.
type Processor struct {
	store    core.DocumentStore
	embedder core.EmbeddingProvider
	cfg      *IngestConfig
	log      logger.Logger
}

func NewProcessor(store core.DocumentStore, embedder core.EmbeddingProvider, cfg *IngestConfig, log logger.Logger) *Processor {
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	return &Processor{store: store, embedder: embedder, cfg: cfg, log: log}
}

// ProcessDocument replaces any previous version of the document. Per-chunk
// embedding or write failures are collected in Result.Outcomes and never
// abort the batch. A non-nil error means processing could not start or was
// aborted, in which case Result reports zero chunks created.
func (p *Processor) ProcessDocument(ctx context.Context, in DocumentInput) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{Error: err.Error()}, err
	}
	log := p.log.With("document_id", in.DocumentID)

	if err := p.store.DeleteDocumentChunks(ctx, in.DocumentID); err != nil {
		return p.setupFailure(fmt.Errorf("delete previous chunks: %w", err))
	}
	if err := p.store.DeleteDocumentMetadata(ctx, in.DocumentID); err != nil {
		return p.setupFailure(fmt.Errorf("delete previous metadata: %w", err))
	}

	chunks := ChunkText(in.Content, p.cfg.ChunkSize, p.cfg.ChunkOverlap)

	meta := &models.DocumentMetadata{
		DocumentID:    in.DocumentID,
		Title:         in.Title,
		SourceType:    in.SourceType,
		Language:      in.Language,
		TotalChunks:   len(chunks),
		URL:           in.URL,
		Author:        in.Author,
		PublishedDate: in.PublishedDate,
	}
	if err := p.store.CreateDocumentMetadata(ctx, meta); err != nil {
		return p.setupFailure(fmt.Errorf("create metadata: %w", err))
	}

	outcomes := make([]ChunkOutcome, 0, len(chunks))
	created := 0
	for i, text := range chunks {
		if err := ctx.Err(); err != nil {
			return p.abort(ctx, in.DocumentID, fmt.Errorf("processing aborted at chunk %d: %w", i, err))
		}
		o := p.processChunk(ctx, in, i, text)
		if o.Err != nil {
			log.Warn("chunk failed", "chunk_index", i, "error", o.Err)
		} else {
			created++
		}
		outcomes = append(outcomes, o)
	}

	res := Result{Success: created == len(chunks), ChunksCreated: created, Outcomes: outcomes}
	var procErr *string
	if !res.Success {
		msg := PartialProcessingError
		procErr = &msg
		res.Error = msg
	}
	if err := p.store.UpdateDocumentOutcome(ctx, in.DocumentID, res.Success, procErr); err != nil {
		return p.abort(ctx, in.DocumentID, fmt.Errorf("record outcome: %w", err))
	}

	log.Info("document processed", "chunks_total", len(chunks), "chunks_created", created)
	return res, nil
}

func (p *Processor) processChunk(ctx context.Context, in DocumentInput, index int, text string) ChunkOutcome {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return ChunkOutcome{Index: index, Err: fmt.Errorf("embed: %w", err)}
	}
	ch := &models.DocumentChunk{
		ID:            uuid.NewString(),
		DocumentID:    in.DocumentID,
		DocumentTitle: in.Title,
		DocumentURL:   in.URL,
		ChunkIndex:    index,
		Content:       text,
		Embedding:     vec,
		SourceType:    in.SourceType,
		Language:      in.Language,
	}
	if err := p.store.CreateDocumentChunk(ctx, ch); err != nil {
		return ChunkOutcome{Index: index, Err: fmt.Errorf("store: %w", err)}
	}
	return ChunkOutcome{Index: index}
}

func (p *Processor) setupFailure(err error) (Result, error) {
	return Result{Error: err.Error()}, err
}

// abort marks the document as failed. The outcome write uses a fresh
// context because the request context may be the reason for the abort.
func (p *Processor) abort(ctx context.Context, documentID string, cause error) (Result, error) {
	msg := cause.Error()
	if err := p.store.UpdateDocumentOutcome(context.WithoutCancel(ctx), documentID, false, &msg); err != nil {
		p.log.Error("failed to record processing failure", "document_id", documentID, "error", err)
	}
	return Result{Error: msg}, cause
}

func validateInput(in DocumentInput) error {
	var errs []error
	if in.DocumentID == "" {
		errs = append(errs, errors.New("document id is required"))
	}
	if in.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if !in.SourceType.Valid() {
		errs = append(errs, fmt.Errorf("invalid source type %q", in.SourceType))
	}
	if !in.Language.Valid() {
		errs = append(errs, fmt.Errorf("invalid language %q", in.Language))
	}
	return errors.Join(errs...)
}
