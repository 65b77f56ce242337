package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/models"
)

func setupMockClient(t *testing.T) (*DatabaseClient, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})
	return NewDatabaseClientFromDB(sqlDB), mock
}

func TestDatabaseClient_DocumentMetadata(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Should insert metadata and read back server timestamps", func(t *testing.T) {
		c, mock := setupMockClient(t)
		meta := &models.DocumentMetadata{
			DocumentID: "doc-1", Title: "Правила", SourceType: models.SourceOther,
			Language: models.LanguageUkrainian, TotalChunks: 5,
		}
		mock.ExpectQuery(regexp.QuoteMeta(insertMetadataQuery)).
			WithArgs("doc-1", "Правила", "other", "uk", 5, false, nil, nil, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		require.NoError(t, c.CreateDocumentMetadata(ctx, meta))
		assert.Equal(t, now, meta.CreatedAt)
	})

	t.Run("Should map a missing row to ErrNotFound", func(t *testing.T) {
		c, mock := setupMockClient(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectMetadataQuery)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := c.GetDocumentMetadata(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("Should decode nullable columns", func(t *testing.T) {
		c, mock := setupMockClient(t)
		rows := sqlmock.NewRows([]string{
			"document_id", "title", "source_type", "language", "total_chunks", "is_processed",
			"processing_error", "url", "author", "published_date", "created_at", "updated_at",
		}).AddRow("doc-1", "T", "repository", "en", 5, false, "Partial processing completed", nil, "Ivanenko", nil, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(selectMetadataQuery)).WithArgs("doc-1").WillReturnRows(rows)

		m, err := c.GetDocumentMetadata(ctx, "doc-1")
		require.NoError(t, err)
		require.NotNil(t, m.ProcessingError)
		assert.Equal(t, "Partial processing completed", *m.ProcessingError)
		assert.Equal(t, models.SourceRepository, m.SourceType)
		assert.Equal(t, "Ivanenko", m.Author)
		assert.Empty(t, m.URL)
		assert.Nil(t, m.PublishedDate)
	})

	t.Run("Should report ErrNotFound when the outcome update touches no row", func(t *testing.T) {
		c, mock := setupMockClient(t)
		msg := "boom"
		mock.ExpectExec(regexp.QuoteMeta(updateOutcomeQuery)).
			WithArgs("doc-9", false, "boom").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := c.UpdateDocumentOutcome(ctx, "doc-9", false, &msg)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestDatabaseClient_Chunks(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Should insert a chunk with its vector", func(t *testing.T) {
		c, mock := setupMockClient(t)
		ch := &models.DocumentChunk{
			ID: "c1", DocumentID: "doc-1", DocumentTitle: "T", ChunkIndex: 0, Content: "text",
			Embedding: []float32{1, 0.5}, SourceType: models.SourceCatalog, Language: models.LanguageEnglish,
		}
		mock.ExpectQuery(regexp.QuoteMeta(insertChunkQuery)).
			WithArgs("c1", "doc-1", "T", nil, 0, "text", sqlmock.AnyArg(), "catalog", "en").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		require.NoError(t, c.CreateDocumentChunk(ctx, ch))
		assert.Equal(t, now, ch.CreatedAt)
	})

	t.Run("Should decode vectors and tolerate missing embeddings", func(t *testing.T) {
		c, mock := setupMockClient(t)
		rows := sqlmock.NewRows([]string{
			"id", "document_id", "document_title", "document_url", "chunk_index", "content", "embedding", "source_type", "language", "created_at",
		}).
			AddRow("c1", "doc-1", "T", "https://lib.example/doc", 0, "a", "[1,0.5]", "other", "uk", now).
			AddRow("c2", "doc-1", "T", nil, 1, "b", nil, "other", "uk", now)
		mock.ExpectQuery(regexp.QuoteMeta(chunksByLangQuery)).WithArgs("uk").WillReturnRows(rows)

		got, err := c.GetChunksByLanguage(ctx, models.LanguageUkrainian)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, []float32{1, 0.5}, got[0].Embedding)
		assert.Equal(t, "https://lib.example/doc", got[0].DocumentURL)
		assert.Nil(t, got[1].Embedding)
	})

	t.Run("Should delete chunks by document", func(t *testing.T) {
		c, mock := setupMockClient(t)
		mock.ExpectExec(regexp.QuoteMeta(deleteChunksQuery)).WithArgs("doc-1").WillReturnResult(sqlmock.NewResult(0, 3))
		require.NoError(t, c.DeleteDocumentChunks(ctx, "doc-1"))
	})
}

func TestDatabaseClient_Resources(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	cols := []string{"id", "name_en", "name_uk", "name_ru", "description_en", "description_uk", "description_ru", "type", "url", "keywords", "created_at", "updated_at"}

	t.Run("Should search every text field with an escaped pattern", func(t *testing.T) {
		c, mock := setupMockClient(t)
		rows := sqlmock.NewRows(cols).
			AddRow(7, "Catalog", "Електронний каталог", "Электронный каталог", nil, "Пошук", nil, "catalog", "https://cat.example", `["books"]`, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(searchResourcesQuery)).WithArgs(`%100\%\_каталог%`).WillReturnRows(rows)

		got, err := c.SearchResources(ctx, "100%_каталог")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Should return matching resources", func(t *testing.T) {
		c, mock := setupMockClient(t)
		rows := sqlmock.NewRows(cols).
			AddRow(7, "Catalog", "Електронний каталог", "Электронный каталог", nil, "Пошук", nil, "catalog", "https://cat.example", `["books"]`, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(searchResourcesQuery)).WithArgs("%каталог%").WillReturnRows(rows)

		got, err := c.SearchResources(ctx, "каталог")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(7), got[0].ID)
		assert.Equal(t, []string{"books"}, got[0].Keywords)
		assert.Equal(t, "Пошук", got[0].DescriptionUk)
		assert.Equal(t, models.ResourceCatalog, got[0].Type)
	})

	t.Run("Should insert a resource and take the generated id", func(t *testing.T) {
		c, mock := setupMockClient(t)
		r := &models.LibraryResource{NameEn: "Scopus", NameUk: "Scopus", NameRu: "Scopus", Type: models.ResourceDatabase, URL: "https://www.scopus.com/"}
		mock.ExpectQuery(regexp.QuoteMeta(insertResourceQuery)).
			WithArgs("Scopus", "Scopus", "Scopus", nil, nil, nil, "database", "https://www.scopus.com/", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

		require.NoError(t, c.CreateResource(ctx, r))
		assert.Equal(t, int64(11), r.ID)
	})

	t.Run("Should map an unknown url to ErrNotFound", func(t *testing.T) {
		c, mock := setupMockClient(t)
		mock.ExpectQuery(regexp.QuoteMeta(resourceByURLQuery)).WithArgs("https://nope").WillReturnRows(sqlmock.NewRows(cols))

		_, err := c.GetResourceByURL(ctx, "https://nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestDatabaseClient_Conversations(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Should insert a message and touch its conversation in one transaction", func(t *testing.T) {
		c, mock := setupMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(insertMessageQuery)).
			WithArgs(3, "user", "привіт").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))
		mock.ExpectExec(regexp.QuoteMeta(touchConversationQuery)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		msg := &models.Message{ConversationID: 3, Role: models.RoleUser, Content: "привіт"}
		require.NoError(t, c.CreateMessage(ctx, msg))
		assert.Equal(t, int64(42), msg.ID)
	})

	t.Run("Should roll back when the touch fails", func(t *testing.T) {
		c, mock := setupMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(insertMessageQuery)).
			WithArgs(3, "assistant", "x").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(43, now))
		mock.ExpectExec(regexp.QuoteMeta(touchConversationQuery)).WithArgs(3).WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := c.CreateMessage(ctx, &models.Message{ConversationID: 3, Role: models.RoleAssistant, Content: "x"})
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestDatabaseClient_QueryLog(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Should store resource ids as JSON", func(t *testing.T) {
		c, mock := setupMockClient(t)
		conv := int64(5)
		mock.ExpectQuery(regexp.QuoteMeta(insertQueryLogQuery)).
			WithArgs("user-1", int64(5), "каталог", "uk", "[1,2]").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))

		q := &models.UserQuery{UserID: "user-1", ConversationID: &conv, Query: "каталог", Language: models.LanguageUkrainian, ResourcesReturned: []int64{1, 2}}
		require.NoError(t, c.LogUserQuery(ctx, q))
		assert.Equal(t, int64(1), q.ID)
	})

	t.Run("Should decode recent queries", func(t *testing.T) {
		c, mock := setupMockClient(t)
		rows := sqlmock.NewRows([]string{"id", "user_id", "conversation_id", "query", "language", "resources_returned", "created_at"}).
			AddRow(2, nil, nil, "scopus", "en", "[4]", now)
		mock.ExpectQuery(regexp.QuoteMeta(recentQueriesQuery)).WithArgs(10).WillReturnRows(rows)

		got, err := c.ListRecentQueries(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Nil(t, got[0].ConversationID)
		assert.Equal(t, []int64{4}, got[0].ResourcesReturned)
	})
}

func TestEnsureBootstrapped(t *testing.T) {
	ctx := context.Background()

	t.Run("Should run the script when the meta table is missing", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery(regexp.QuoteMeta(metaTableExistsQuery)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		ran, err := EnsureBootstrapped(ctx, sqlDB)
		require.NoError(t, err)
		assert.True(t, ran)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should skip when the schema version is recorded", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery(regexp.QuoteMeta(metaTableExistsQuery)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(regexp.QuoteMeta(metaVersionQuery)).WithArgs(schemaVersion).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		ran, err := EnsureBootstrapped(ctx, sqlDB)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
