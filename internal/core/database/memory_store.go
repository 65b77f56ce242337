package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/models"
)

var _ core.DbClient = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. Each instance is isolated,
// which makes it the store for tests and for running without Postgres.
type MemoryStore struct {
	mu sync.RWMutex

	metadata map[string]models.DocumentMetadata
	chunks   []models.DocumentChunk

	resources []models.LibraryResource
	convs     map[int64]models.Conversation
	messages  []models.Message
	queries   []models.UserQuery

	nextResourceID int64
	nextConvID     int64
	nextMessageID  int64
	nextQueryID    int64

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metadata: make(map[string]models.DocumentMetadata),
		convs:    make(map[int64]models.Conversation),
		now:      time.Now,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateDocumentMetadata(_ context.Context, meta *models.DocumentMetadata) error {
	if meta == nil {
		return errors.New("nil document metadata")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metadata[meta.DocumentID]; ok {
		return fmt.Errorf("document metadata %s already exists", meta.DocumentID)
	}
	now := s.now()
	meta.CreatedAt, meta.UpdatedAt = now, now
	s.metadata[meta.DocumentID] = cloneMetadata(*meta)
	return nil
}

func (s *MemoryStore) GetDocumentMetadata(_ context.Context, documentID string) (*models.DocumentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[documentID]
	if !ok {
		return nil, core.ErrNotFound
	}
	m = cloneMetadata(m)
	return &m, nil
}

func (s *MemoryStore) ListDocumentMetadata(_ context.Context) ([]models.DocumentMetadata, error) {
	s.mu.RLock()
	out := make([]models.DocumentMetadata, 0, len(s.metadata))
	for _, m := range s.metadata {
		out = append(out, cloneMetadata(m))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateDocumentOutcome(_ context.Context, documentID string, isProcessed bool, processingError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metadata[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, core.ErrNotFound)
	}
	m.IsProcessed = isProcessed
	m.ProcessingError = cloneString(processingError)
	m.UpdatedAt = s.now()
	s.metadata[documentID] = m
	return nil
}

func (s *MemoryStore) DeleteDocumentMetadata(_ context.Context, documentID string) error {
	s.mu.Lock()
	delete(s.metadata, documentID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CreateDocumentChunk(_ context.Context, ch *models.DocumentChunk) error {
	if ch == nil {
		return errors.New("nil chunk")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.chunks {
		if existing.DocumentID == ch.DocumentID && existing.ChunkIndex == ch.ChunkIndex {
			return fmt.Errorf("chunk %s#%d already exists", ch.DocumentID, ch.ChunkIndex)
		}
	}
	ch.CreatedAt = s.now()
	s.chunks = append(s.chunks, cloneChunk(*ch))
	return nil
}

// GetChunksByLanguage returns chunks in insertion order.
func (s *MemoryStore) GetChunksByLanguage(_ context.Context, lang models.Language) ([]models.DocumentChunk, error) {
	return s.filterChunks(func(c models.DocumentChunk) bool { return c.Language == lang }), nil
}

func (s *MemoryStore) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	out := s.filterChunks(func(c models.DocumentChunk) bool { return c.DocumentID == documentID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (s *MemoryStore) DeleteDocumentChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	clear(s.chunks[len(kept):])
	s.chunks = kept
	return nil
}

func (s *MemoryStore) filterChunks(keep func(models.DocumentChunk) bool) []models.DocumentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentChunk
	for _, c := range s.chunks {
		if keep(c) {
			out = append(out, cloneChunk(c))
		}
	}
	return out
}

func (s *MemoryStore) CreateResource(_ context.Context, r *models.LibraryResource) error {
	if r == nil {
		return errors.New("nil resource")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextResourceID++
	now := s.now()
	r.ID, r.CreatedAt, r.UpdatedAt = s.nextResourceID, now, now
	s.resources = append(s.resources, cloneResource(*r))
	return nil
}

func (s *MemoryStore) GetResourceByURL(_ context.Context, url string) (*models.LibraryResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resources {
		if r.URL == url {
			r = cloneResource(r)
			return &r, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *MemoryStore) ListResources(_ context.Context) ([]models.LibraryResource, error) {
	return s.filterResources(func(models.LibraryResource) bool { return true }), nil
}

func (s *MemoryStore) ListResourcesByType(_ context.Context, t models.ResourceType) ([]models.LibraryResource, error) {
	return s.filterResources(func(r models.LibraryResource) bool { return r.Type == t }), nil
}

func (s *MemoryStore) SearchResources(_ context.Context, query string) ([]models.LibraryResource, error) {
	q := strings.ToLower(query)
	return s.filterResources(func(r models.LibraryResource) bool {
		for _, f := range []string{r.NameEn, r.NameUk, r.NameRu, r.DescriptionEn, r.DescriptionUk, r.DescriptionRu} {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) filterResources(keep func(models.LibraryResource) bool) []models.LibraryResource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LibraryResource
	for _, r := range s.resources {
		if keep(r) {
			out = append(out, cloneResource(r))
		}
	}
	return out
}

func (s *MemoryStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConvID++
	now := s.now()
	conv.ID, conv.CreatedAt, conv.UpdatedAt = s.nextConvID, now, now
	s.convs[conv.ID] = *conv
	return nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id int64) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	var out []models.Conversation
	for _, c := range s.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[msg.ConversationID]
	if !ok {
		return fmt.Errorf("conversation %d: %w", msg.ConversationID, core.ErrNotFound)
	}
	s.nextMessageID++
	now := s.now()
	msg.ID, msg.CreatedAt = s.nextMessageID, now
	s.messages = append(s.messages, *msg)
	conv.UpdatedAt = now
	s.convs[conv.ID] = conv
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) LogUserQuery(_ context.Context, q *models.UserQuery) error {
	if q == nil {
		return errors.New("nil user query")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQueryID++
	q.ID, q.CreatedAt = s.nextQueryID, s.now()
	stored := *q
	stored.ResourcesReturned = append([]int64(nil), q.ResourcesReturned...)
	s.queries = append(s.queries, stored)
	return nil
}

// ListRecentQueries returns the newest queries first.
func (s *MemoryStore) ListRecentQueries(_ context.Context, limit int) ([]models.UserQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.queries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.UserQuery, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		q := s.queries[i]
		q.ResourcesReturned = append([]int64(nil), q.ResourcesReturned...)
		out = append(out, q)
	}
	return out, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneMetadata(m models.DocumentMetadata) models.DocumentMetadata {
	m.ProcessingError = cloneString(m.ProcessingError)
	if m.PublishedDate != nil {
		t := *m.PublishedDate
		m.PublishedDate = &t
	}
	return m
}

func cloneChunk(c models.DocumentChunk) models.DocumentChunk {
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	return c
}

func cloneResource(r models.LibraryResource) models.LibraryResource {
	if r.Keywords != nil {
		r.Keywords = append([]string(nil), r.Keywords...)
	}
	return r
}
