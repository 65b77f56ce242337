package models

import (
	"time"
)

// Language is one of the three supported interface languages.
type Language string

const (
	LanguageUkrainian Language = "uk"
	LanguageRussian   Language = "ru"
	LanguageEnglish   Language = "en"
)

// Valid reports whether l is a supported language code.
func (l Language) Valid() bool {
	switch l {
	case LanguageUkrainian, LanguageRussian, LanguageEnglish:
		return true
	}
	return false
}

// SourceType tells where a processed document came from.
type SourceType string

const (
	SourceCatalog    SourceType = "catalog"
	SourceRepository SourceType = "repository"
	SourceDatabase   SourceType = "database"
	SourceOther      SourceType = "other"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceCatalog, SourceRepository, SourceDatabase, SourceOther:
		return true
	}
	return false
}

// ResourceType classifies a library resource.
type ResourceType string

const (
	ResourceCatalog           ResourceType = "catalog"
	ResourceRepository        ResourceType = "repository"
	ResourceDatabase          ResourceType = "database"
	ResourceElectronicLibrary ResourceType = "electronic_library"
	ResourceOther             ResourceType = "other"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DocumentChunk represents one retrievable window of a processed document.
type DocumentChunk struct {
	ID            string     `db:"id" json:"id"`
	DocumentID    string     `db:"document_id" json:"document_id"`
	DocumentTitle string     `db:"document_title" json:"document_title"`
	DocumentURL   string     `db:"document_url" json:"document_url,omitempty"`
	ChunkIndex    int        `db:"chunk_index" json:"chunk_index"`
	Content       string     `db:"content" json:"content"`
	Embedding     []float32  `db:"embedding" json:"-"` // pgvector column, nil when absent
	SourceType    SourceType `db:"source_type" json:"source_type"`
	Language      Language   `db:"language" json:"language"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// DocumentMetadata records the processing outcome of one source document.
type DocumentMetadata struct {
	DocumentID      string     `db:"document_id" json:"document_id"`
	Title           string     `db:"title" json:"title"`
	SourceType      SourceType `db:"source_type" json:"source_type"`
	Language        Language   `db:"language" json:"language"`
	TotalChunks     int        `db:"total_chunks" json:"total_chunks"`
	IsProcessed     bool       `db:"is_processed" json:"is_processed"`
	ProcessingError *string    `db:"processing_error" json:"processing_error,omitempty"`
	URL             string     `db:"url" json:"url,omitempty"`
	Author          string     `db:"author" json:"author,omitempty"`
	PublishedDate   *time.Time `db:"published_date" json:"published_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LibraryResource is a catalog entry with trilingual name and description.
// URL is the natural key used by catalog sync.
type LibraryResource struct {
	ID            int64        `db:"id" json:"id"`
	NameEn        string       `db:"name_en" json:"name_en"`
	NameUk        string       `db:"name_uk" json:"name_uk"`
	NameRu        string       `db:"name_ru" json:"name_ru"`
	DescriptionEn string       `db:"description_en" json:"description_en,omitempty"`
	DescriptionUk string       `db:"description_uk" json:"description_uk,omitempty"`
	DescriptionRu string       `db:"description_ru" json:"description_ru,omitempty"`
	Type          ResourceType `db:"type" json:"type"`
	URL           string       `db:"url" json:"url,omitempty"`
	Keywords      []string     `db:"keywords" json:"keywords,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Name returns the name in lang, falling back to English.
func (r LibraryResource) Name(lang Language) string {
	var s string
	switch lang {
	case LanguageUkrainian:
		s = r.NameUk
	case LanguageRussian:
		s = r.NameRu
	default:
		s = r.NameEn
	}
	if s == "" {
		return r.NameEn
	}
	return s
}

// Description returns the description in lang, falling back to English.
func (r LibraryResource) Description(lang Language) string {
	var s string
	switch lang {
	case LanguageUkrainian:
		s = r.DescriptionUk
	case LanguageRussian:
		s = r.DescriptionRu
	default:
		s = r.DescriptionEn
	}
	if s == "" {
		return r.DescriptionEn
	}
	return s
}

// Conversation owns an ordered sequence of messages.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Language  Language  `db:"language" json:"language"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message represents an individual chat message (user or assistant).
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	Role           Role      `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UserQuery is the analytics record of one question and the resources it surfaced.
type UserQuery struct {
	ID                int64     `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id,omitempty"`
	ConversationID    *int64    `db:"conversation_id" json:"conversation_id,omitempty"`
	Query             string    `db:"query" json:"query"`
	Language          Language  `db:"language" json:"language"`
	ResourcesReturned []int64   `db:"resources_returned" json:"resources_returned"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
