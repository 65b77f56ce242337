package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/markdave123-py/libassist/internal/core/database"
	"github.com/markdave123-py/libassist/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/libassist/internal/core/object-client"
	"github.com/markdave123-py/libassist/internal/core/retrieval"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

type fakeQueue struct {
	jobs []ingestion_engine.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job ingestion_engine.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestDocumentService(t *testing.T) {
	ctx := context.Background()
	newSvc := func(queue UploadQueue, objs *objectclient.MemoryObjects) (*DocumentService, *db.MemoryStore) {
		store := db.NewMemoryStore()
		p := ingestion_engine.NewProcessor(store, unitEmbedder{}, nil, logger.Nop())
		if objs == nil {
			return NewDocumentService(store, p, nil, nil, "docs", logger.Nop()), store
		}
		return NewDocumentService(store, p, objs, queue, "docs", logger.Nop()), store
	}

	t.Run("Should process text and assign an id when missing", func(t *testing.T) {
		svc, store := newSvc(nil, nil)
		res, err := svc.ProcessText(ctx, ingestion_engine.DocumentInput{
			Title: "Правила", Content: "Текст правил", SourceType: models.SourceOther, Language: models.LanguageUkrainian,
		})
		require.NoError(t, err)
		assert.True(t, res.Success)

		list, err := store.ListDocumentMetadata(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.NotEmpty(t, list[0].DocumentID)
	})

	t.Run("Should refuse empty text", func(t *testing.T) {
		svc, _ := newSvc(nil, nil)
		_, err := svc.ProcessText(ctx, ingestion_engine.DocumentInput{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Should report disabled uploads", func(t *testing.T) {
		svc, _ := newSvc(nil, nil)
		_, err := svc.Upload(ctx, "a.pdf", "application/pdf", strings.NewReader("x"), ingestion_engine.DocumentInput{})
		assert.ErrorIs(t, err, ErrUploadsDisabled)
	})

	t.Run("Should store the file and queue a job", func(t *testing.T) {
		q := &fakeQueue{}
		objs := objectclient.NewMemoryObjects()
		svc, _ := newSvc(q, objs)

		rec, err := svc.Upload(ctx, "../Правила бібліотеки.pdf", "application/pdf", strings.NewReader("%PDF"), ingestion_engine.DocumentInput{
			SourceType: models.SourceOther, Language: models.LanguageUkrainian,
		})
		require.NoError(t, err)
		assert.Equal(t, "documents/"+rec.DocumentID+"/Правила_бібліотеки.pdf", rec.Key)

		require.Len(t, q.jobs, 1)
		assert.Equal(t, "Правила бібліотеки", q.jobs[0].Document.Title)
		assert.Equal(t, "application/pdf", q.jobs[0].ContentType)

		data, err := objs.GetFile(ctx, "docs", rec.Key)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(data))
	})

	t.Run("Should remove the stored file when the queue rejects it", func(t *testing.T) {
		q := &fakeQueue{err: errors.New("queue closed")}
		objs := objectclient.NewMemoryObjects()
		svc, _ := newSvc(q, objs)

		_, err := svc.Upload(ctx, "a.txt", "text/plain", strings.NewReader("x"), ingestion_engine.DocumentInput{DocumentID: "d1"})
		require.Error(t, err)
		_, err = objs.GetFile(ctx, "docs", "documents/d1/a.txt")
		assert.Error(t, err)
	})
}

func TestLibraryService(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.CreateResource(ctx, &models.LibraryResource{NameEn: "Scopus", Type: models.ResourceDatabase, URL: "https://www.scopus.com/"}))
	require.NoError(t, store.CreateResource(ctx, &models.LibraryResource{NameEn: "Catalog", Type: models.ResourceCatalog, URL: "https://cat"}))
	svc := NewLibraryService(store, store, retrieval.NewSearcher(store, unitEmbedder{}))

	t.Run("Should filter resources by query then by type", func(t *testing.T) {
		all, err := svc.Resources(ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		byType, err := svc.Resources(ctx, models.ResourceCatalog, "")
		require.NoError(t, err)
		require.Len(t, byType, 1)
		assert.Equal(t, "Catalog", byType[0].NameEn)

		byQuery, err := svc.Resources(ctx, models.ResourceCatalog, "scop")
		require.NoError(t, err)
		require.Len(t, byQuery, 1)
		assert.Equal(t, "Scopus", byQuery[0].NameEn)
	})

	t.Run("Should search chunks in the normalized language", func(t *testing.T) {
		require.NoError(t, store.CreateDocumentChunk(ctx, &models.DocumentChunk{ID: "c", DocumentID: "d", Language: models.LanguageUkrainian, Content: "x", Embedding: []float32{1, 0}}))
		got, err := svc.Search(ctx, retrieval.Query{Text: "x", Language: "zz"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 1.0, got[0].Score, 1e-9)

		_, err = svc.Search(ctx, retrieval.Query{Text: " "})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Should cap the analytics limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, store.LogUserQuery(ctx, &models.UserQuery{Query: "q"}))
		}
		got, err := svc.RecentQueries(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}
