package core

import (
	"context"
	"errors"
	"io"

	"github.com/markdave123-py/libassist/internal/models"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// DocumentStore persists chunks and per-document processing metadata.
type DocumentStore interface {
	CreateDocumentMetadata(ctx context.Context, meta *models.DocumentMetadata) error
	GetDocumentMetadata(ctx context.Context, documentID string) (*models.DocumentMetadata, error)
	ListDocumentMetadata(ctx context.Context) ([]models.DocumentMetadata, error)
	UpdateDocumentOutcome(ctx context.Context, documentID string, isProcessed bool, processingError *string) error
	DeleteDocumentMetadata(ctx context.Context, documentID string) error

	CreateDocumentChunk(ctx context.Context, chunk *models.DocumentChunk) error
	GetChunksByLanguage(ctx context.Context, lang models.Language) ([]models.DocumentChunk, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	DeleteDocumentChunks(ctx context.Context, documentID string) error
}

// ResourceStore holds the library resource directory.
type ResourceStore interface {
	CreateResource(ctx context.Context, res *models.LibraryResource) error
	GetResourceByURL(ctx context.Context, url string) (*models.LibraryResource, error)
	ListResources(ctx context.Context) ([]models.LibraryResource, error)
	ListResourcesByType(ctx context.Context, t models.ResourceType) ([]models.LibraryResource, error)
	// SearchResources matches query as a case-insensitive substring of any
	// name or description field.
	SearchResources(ctx context.Context, query string) ([]models.LibraryResource, error)
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns messages oldest first.
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
}

type QueryLog interface {
	LogUserQuery(ctx context.Context, q *models.UserQuery) error
	ListRecentQueries(ctx context.Context, limit int) ([]models.UserQuery, error)
}

// DbClient defines all persistence operations the services need.
// It is implemented by the Postgres/pgvector client and by the in-memory store.
type DbClient interface {
	DocumentStore
	ResourceStore
	ConversationStore
	QueryLog

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
