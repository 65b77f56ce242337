package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/models"
)

const (
	DefaultTopK      = 5
	DefaultThreshold = 0.5
)

// ChunkSource is the slice of the document store search reads from.
type ChunkSource interface {
	GetChunksByLanguage(ctx context.Context, lang models.Language) ([]models.DocumentChunk, error)
}

// Query describes one semantic search. Zero TopK and nil Threshold select the defaults.
type Query struct {
	Text      string
	Language  models.Language
	TopK      int
	Threshold *float64
}

type ScoredChunk struct {
	models.DocumentChunk
	Score float64 `json:"score"`
}

type Searcher struct {
	chunks   ChunkSource
	embedder core.EmbeddingProvider
}

func NewSearcher(chunks ChunkSource, embedder core.EmbeddingProvider) *Searcher {
	return &Searcher{chunks: chunks, embedder: embedder}
}

// Search embeds the query, scores every chunk stored for the query language and
// returns at most TopK chunks scoring at least Threshold, best first. Chunks
// with equal scores keep their storage order.
func (s *Searcher) Search(ctx context.Context, q Query) ([]ScoredChunk, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	threshold := DefaultThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}

	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := s.chunks.GetChunksByLanguage(ctx, q.Language)
	if err != nil {
		return nil, fmt.Errorf("load chunks for %s: %w", q.Language, err)
	}

	return rank(vec, chunks, topK, threshold), nil
}

func rank(vec []float32, chunks []models.DocumentChunk, topK int, threshold float64) []ScoredChunk {
	scored := make([]ScoredChunk, 0, len(chunks))
	for _, ch := range chunks {
		var score float64
		if len(ch.Embedding) > 0 {
			score = CosineSimilarity(vec, ch.Embedding)
		}
		if score >= threshold {
			scored = append(scored, ScoredChunk{DocumentChunk: ch, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
