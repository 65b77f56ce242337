package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/core/ingestion_engine"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

var ErrUploadsDisabled = errors.New("file uploads are not configured")

// DocumentProcessor is the synchronous chunk, embed and store step.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, in ingestion_engine.DocumentInput) (ingestion_engine.Result, error)
}

type UploadQueue interface {
	Enqueue(ctx context.Context, job ingestion_engine.Job) error
}

type DocumentService struct {
	docs      core.DocumentStore
	processor DocumentProcessor
	storage   core.ObjectClient
	queue     UploadQueue
	bucket    string
	log       logger.Logger
}

// NewDocumentService builds the service. storage and queue may be nil, in
// which case Upload returns ErrUploadsDisabled.
func NewDocumentService(docs core.DocumentStore, processor DocumentProcessor, storage core.ObjectClient, queue UploadQueue, bucket string, log logger.Logger) *DocumentService {
	return &DocumentService{docs: docs, processor: processor, storage: storage, queue: queue, bucket: bucket, log: log}
}

// ProcessText runs processDocument on already extracted text.
func (s *DocumentService) ProcessText(ctx context.Context, in ingestion_engine.DocumentInput) (ingestion_engine.Result, error) {
	if strings.TrimSpace(in.Content) == "" {
		return ingestion_engine.Result{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if in.DocumentID == "" {
		in.DocumentID = uuid.NewString()
	}
	return s.processor.ProcessDocument(ctx, in)
}

type UploadReceipt struct {
	DocumentID string `json:"documentId"`
	Key        string `json:"key"`
	URL        string `json:"url"`
}

// Upload stores the file and queues it for background processing.
func (s *DocumentService) Upload(ctx context.Context, filename, contentType string, data io.Reader, in ingestion_engine.DocumentInput) (*UploadReceipt, error) {
	if s.storage == nil || s.queue == nil {
		return nil, ErrUploadsDisabled
	}
	if in.DocumentID == "" {
		in.DocumentID = uuid.NewString()
	}
	if in.Title == "" {
		in.Title = strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(in.DocumentID, filename)
	url, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType)
	if err != nil {
		return nil, err
	}

	job := ingestion_engine.Job{Bucket: s.bucket, Key: key, ContentType: contentType, Document: in}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		if derr := s.storage.DeleteFile(context.WithoutCancel(ctx), s.bucket, key); derr != nil {
			s.log.Warn("failed to remove orphaned upload", "key", key, "error", derr)
		}
		return nil, err
	}

	s.log.Info("document queued", "document_id", in.DocumentID, "key", key)
	return &UploadReceipt{DocumentID: in.DocumentID, Key: key, URL: url}, nil
}

func (s *DocumentService) List(ctx context.Context) ([]models.DocumentMetadata, error) {
	return s.docs.ListDocumentMetadata(ctx)
}

func (s *DocumentService) Get(ctx context.Context, documentID string) (*models.DocumentMetadata, error) {
	return s.docs.GetDocumentMetadata(ctx, documentID)
}

// objectKey creates a consistent S3 key layout.
func objectKey(docID, filename string) string {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	filename = strings.ReplaceAll(filename, " ", "_")
	if filename == "." || filename == "/" || filename == "" {
		filename = "document"
	}
	return path.Join("documents", docID, filename)
}
