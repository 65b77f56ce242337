package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/core/assistant"
	"github.com/markdave123-py/libassist/internal/core/retrieval"
	"github.com/markdave123-py/libassist/internal/models"
)

// LibraryService serves the resource directory, semantic search and query
// analytics reads.
type LibraryService struct {
	resources core.ResourceStore
	queries   core.QueryLog
	search    assistant.SemanticSearcher
}

func NewLibraryService(resources core.ResourceStore, queries core.QueryLog, search assistant.SemanticSearcher) *LibraryService {
	return &LibraryService{resources: resources, queries: queries, search: search}
}

// Resources lists the directory. A non-empty query wins over the type filter.
func (s *LibraryService) Resources(ctx context.Context, typ models.ResourceType, query string) ([]models.LibraryResource, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.resources.SearchResources(ctx, q)
	}
	if typ != "" {
		return s.resources.ListResourcesByType(ctx, typ)
	}
	return s.resources.ListResources(ctx)
}

func (s *LibraryService) Search(ctx context.Context, q retrieval.Query) ([]retrieval.ScoredChunk, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	q.Language = assistant.NormalizeLanguage(string(q.Language))
	return s.search.Search(ctx, q)
}

func (s *LibraryService) RecentQueries(ctx context.Context, limit int) ([]models.UserQuery, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.queries.ListRecentQueries(ctx, limit)
}
