package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
)

var ErrNoText = errors.New("no text extracted")

// DocumentIngestor runs uploaded files through extraction and ProcessDocument
// on a fixed pool of workers fed by a bounded in-memory queue.
type DocumentIngestor struct {
	obj       core.ObjectClient
	extractor core.DocumentExtractor
	processor *Processor
	cfg       *IngestConfig
	log       logger.Logger

	jobs chan Job
	wg   sync.WaitGroup
}

func NewDocumentIngestor(obj core.ObjectClient, extractor core.DocumentExtractor, processor *Processor, cfg *IngestConfig, log logger.Logger) *DocumentIngestor {
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	return &DocumentIngestor{
		obj: obj, extractor: extractor, processor: processor, cfg: cfg, log: log,
		jobs: make(chan Job, cfg.QueueSize),
	}
}

// Start launches numWorkers goroutines that exit when ctx is done.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		i.wg.Add(1)
		go func(w int) {
			defer i.wg.Done()
			log := i.log.With("worker", w)
			for {
				select {
				case <-ctx.Done():
					log.Debug("ingest worker shutting down")
					return
				case job := <-i.jobs:
					log.Info("processing upload", "document_id", job.Document.DocumentID, "key", job.Key)
					if _, err := i.ProcessOne(ctx, job); err != nil {
						log.Error("upload processing failed", "document_id", job.Document.DocumentID, "error", err)
					}
				}
			}
		}(w)
	}
}

// Wait blocks until every worker started by Start has returned.
func (i *DocumentIngestor) Wait() { i.wg.Wait() }

// Enqueue blocks while the queue is full, until ctx is done.
func (i *DocumentIngestor) Enqueue(ctx context.Context, job Job) error {
	select {
	case i.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", job.Document.DocumentID, ctx.Err())
	}
}

// ProcessOne fetches the stored file, extracts its text and processes it.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, job Job) (Result, error) {
	pctx, cancel := context.WithTimeout(ctx, i.cfg.JobTimeout)
	defer cancel()

	data, err := i.obj.GetFile(pctx, job.Bucket, job.Key)
	if err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("get object: %w", err)
	}

	g, gctx := errgroup.WithContext(pctx)
	lines := i.extractor.ExtractText(gctx, g, data, job.ContentType)

	var b strings.Builder
	for line := range lines {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if err := g.Wait(); err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("extract text: %w", err)
	}
	if b.Len() == 0 {
		return Result{Error: ErrNoText.Error()}, ErrNoText
	}

	in := job.Document
	in.Content = b.String()
	return i.processor.ProcessDocument(pctx, in)
}
