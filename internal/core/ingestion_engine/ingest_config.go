package ingestion_engine

import (
	"time"

	"github.com/markdave123-py/libassist/internal/models"
)

// IngestConfig tunes document processing and the background worker queue.
//
// ChunkSize, ChunkOverlap: chunker window in characters.
// QueueSize:               capacity of the in-memory job queue.
// JobTimeout:              upper bound for fetching, extracting and embedding one upload.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	QueueSize    int
	JobTimeout   time.Duration
}

func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		QueueSize:    64,
		JobTimeout:   5 * time.Minute,
	}
}

// PartialProcessingError is stored on the metadata when some chunks failed.
const PartialProcessingError = "Partial processing completed"

// DocumentInput is everything needed to (re)process one source document.
type DocumentInput struct {
	DocumentID    string            `json:"documentId"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	SourceType    models.SourceType `json:"sourceType"`
	Language      models.Language   `json:"language"`
	URL           string            `json:"url,omitempty"`
	Author        string            `json:"author,omitempty"`
	PublishedDate *time.Time        `json:"publishedDate,omitempty"`
}

// ChunkOutcome records what happened to one chunk. Err is nil on success.
type ChunkOutcome struct {
	Index int
	Err   error
}

type Result struct {
	Success       bool   `json:"success"`
	ChunksCreated int    `json:"chunksCreated"`
	Error         string `json:"error,omitempty"`

	Outcomes []ChunkOutcome `json:"-"`
}

// Job is one uploaded file waiting for extraction and processing.
type Job struct {
	Bucket      string
	Key         string
	ContentType string
	Document    DocumentInput
}
