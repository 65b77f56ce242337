package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db *sql.DB
}

// NewDatabaseClient opens the pgx pool, checks connectivity and bootstraps the schema.
func NewDatabaseClient(ctx context.Context, databaseURL string, log logger.Logger) (*DatabaseClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	ran, err := EnsureBootstrapped(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if ran {
		log.Info("database schema bootstrapped", "version", schemaVersion)
	}

	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientFromDB wraps an already opened handle.
func NewDatabaseClientFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Document metadata

const (
	insertMetadataQuery = `INSERT INTO document_metadata (document_id, title, source_type, language, total_chunks, is_processed, processing_error, url, author, published_date) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at, updated_at`
	metadataColumns     = `document_id, title, source_type, language, total_chunks, is_processed, processing_error, url, author, published_date, created_at, updated_at`
	selectMetadataQuery = `SELECT ` + metadataColumns + ` FROM document_metadata WHERE document_id = $1`
	listMetadataQuery   = `SELECT ` + metadataColumns + ` FROM document_metadata ORDER BY created_at DESC`
	updateOutcomeQuery  = `UPDATE document_metadata SET is_processed = $2, processing_error = $3, updated_at = now() WHERE document_id = $1`
	deleteMetadataQuery = `DELETE FROM document_metadata WHERE document_id = $1`
)

func (c *DatabaseClient) CreateDocumentMetadata(ctx context.Context, meta *models.DocumentMetadata) error {
	if meta == nil {
		return errors.New("nil document metadata")
	}
	err := c.db.QueryRowContext(ctx, insertMetadataQuery,
		meta.DocumentID, meta.Title, meta.SourceType, meta.Language, meta.TotalChunks, meta.IsProcessed,
		nullString(meta.ProcessingError), emptyToNull(meta.URL), emptyToNull(meta.Author), nullTime(meta.PublishedDate),
	).Scan(&meta.CreatedAt, &meta.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document metadata %s: %w", meta.DocumentID, err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentMetadata(ctx context.Context, documentID string) (*models.DocumentMetadata, error) {
	m, err := scanMetadata(c.db.QueryRowContext(ctx, selectMetadataQuery, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (c *DatabaseClient) ListDocumentMetadata(ctx context.Context) ([]models.DocumentMetadata, error) {
	rows, err := c.db.QueryContext(ctx, listMetadataQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentOutcome(ctx context.Context, documentID string, isProcessed bool, processingError *string) error {
	res, err := c.db.ExecContext(ctx, updateOutcomeQuery, documentID, isProcessed, nullString(processingError))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", documentID, core.ErrNotFound)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocumentMetadata(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, deleteMetadataQuery, documentID)
	return err
}

// Document chunks

const (
	insertChunkQuery  = `INSERT INTO document_chunks (id, document_id, document_title, document_url, chunk_index, content, embedding, source_type, language) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`
	chunkColumns      = `id, document_id, document_title, document_url, chunk_index, content, embedding, source_type, language, created_at`
	chunksByLangQuery = `SELECT ` + chunkColumns + ` FROM document_chunks WHERE language = $1 ORDER BY document_id, chunk_index`
	chunksByDocQuery  = `SELECT ` + chunkColumns + ` FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`
	deleteChunksQuery = `DELETE FROM document_chunks WHERE document_id = $1`
)

func (c *DatabaseClient) CreateDocumentChunk(ctx context.Context, ch *models.DocumentChunk) error {
	if ch == nil {
		return errors.New("nil chunk")
	}
	var emb any
	if len(ch.Embedding) > 0 {
		emb = pgvector.NewVector(ch.Embedding)
	}
	err := c.db.QueryRowContext(ctx, insertChunkQuery,
		ch.ID, ch.DocumentID, ch.DocumentTitle, emptyToNull(ch.DocumentURL), ch.ChunkIndex, ch.Content, emb, ch.SourceType, ch.Language,
	).Scan(&ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chunk %s#%d: %w", ch.DocumentID, ch.ChunkIndex, err)
	}
	return nil
}

func (c *DatabaseClient) GetChunksByLanguage(ctx context.Context, lang models.Language) ([]models.DocumentChunk, error) {
	return c.queryChunks(ctx, chunksByLangQuery, lang)
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	return c.queryChunks(ctx, chunksByDocQuery, documentID)
}

func (c *DatabaseClient) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, deleteChunksQuery, documentID)
	return err
}

func (c *DatabaseClient) queryChunks(ctx context.Context, q string, arg any) ([]models.DocumentChunk, error) {
	rows, err := c.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch     models.DocumentChunk
			url    sql.NullString
			embRaw []byte
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.DocumentTitle, &url, &ch.ChunkIndex, &ch.Content, &embRaw, &ch.SourceType, &ch.Language, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		ch.DocumentURL = url.String
		if embRaw != nil {
			var v pgvector.Vector
			if err := v.Scan(embRaw); err != nil {
				return nil, fmt.Errorf("decode embedding of chunk %s: %w", ch.ID, err)
			}
			ch.Embedding = v.Slice()
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Library resources

const (
	insertResourceQuery  = `INSERT INTO library_resources (name_en, name_uk, name_ru, description_en, description_uk, description_ru, type, url, keywords) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at, updated_at`
	resourceColumns      = `id, name_en, name_uk, name_ru, description_en, description_uk, description_ru, type, url, keywords, created_at, updated_at`
	resourceByURLQuery   = `SELECT ` + resourceColumns + ` FROM library_resources WHERE url = $1 ORDER BY id LIMIT 1`
	listResourcesQuery   = `SELECT ` + resourceColumns + ` FROM library_resources ORDER BY id`
	resourcesByTypeQuery = `SELECT ` + resourceColumns + ` FROM library_resources WHERE type = $1 ORDER BY id`
	searchResourcesQuery = `SELECT ` + resourceColumns + ` FROM library_resources WHERE name_en ILIKE $1 OR name_uk ILIKE $1 OR name_ru ILIKE $1 OR description_en ILIKE $1 OR description_uk ILIKE $1 OR description_ru ILIKE $1 ORDER BY id`
)

func (c *DatabaseClient) CreateResource(ctx context.Context, r *models.LibraryResource) error {
	if r == nil {
		return errors.New("nil resource")
	}
	kw, err := marshalJSON(r.Keywords)
	if err != nil {
		return err
	}
	err = c.db.QueryRowContext(ctx, insertResourceQuery,
		r.NameEn, r.NameUk, r.NameRu,
		emptyToNull(r.DescriptionEn), emptyToNull(r.DescriptionUk), emptyToNull(r.DescriptionRu),
		r.Type, emptyToNull(r.URL), kw,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert resource %q: %w", r.URL, err)
	}
	return nil
}

func (c *DatabaseClient) GetResourceByURL(ctx context.Context, url string) (*models.LibraryResource, error) {
	r, err := scanResource(c.db.QueryRowContext(ctx, resourceByURLQuery, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *DatabaseClient) ListResources(ctx context.Context) ([]models.LibraryResource, error) {
	return c.queryResources(ctx, listResourcesQuery)
}

func (c *DatabaseClient) ListResourcesByType(ctx context.Context, t models.ResourceType) ([]models.LibraryResource, error) {
	return c.queryResources(ctx, resourcesByTypeQuery, t)
}

func (c *DatabaseClient) SearchResources(ctx context.Context, query string) ([]models.LibraryResource, error) {
	return c.queryResources(ctx, searchResourcesQuery, likePattern(query))
}

func (c *DatabaseClient) queryResources(ctx context.Context, q string, args ...any) ([]models.LibraryResource, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LibraryResource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Conversations and messages

const (
	insertConversationQuery = `INSERT INTO conversations (user_id, title, language) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	conversationColumns     = `id, user_id, title, language, created_at, updated_at`
	conversationByIDQuery   = `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	conversationsByUser     = `SELECT ` + conversationColumns + ` FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC`
	insertMessageQuery      = `INSERT INTO messages (conversation_id, role, content) VALUES ($1, $2, $3) RETURNING id, created_at`
	touchConversationQuery  = `UPDATE conversations SET updated_at = now() WHERE id = $1`
	messagesByConversation  = `SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY id`
)

func (c *DatabaseClient) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	return c.db.QueryRowContext(ctx, insertConversationQuery, conv.UserID, conv.Title, conv.Language).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
}

func (c *DatabaseClient) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, conversationByIDQuery, id).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.Language, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *DatabaseClient) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, conversationsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Language, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// CreateMessage inserts the message and bumps the conversation in one transaction.
func (c *DatabaseClient) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, insertMessageQuery, msg.ConversationID, msg.Role, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, touchConversationQuery, msg.ConversationID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("touch conversation: %w", err)
	}
	return tx.Commit()
}

func (c *DatabaseClient) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx, messagesByConversation, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Query log

const (
	insertQueryLogQuery = `INSERT INTO user_queries (user_id, conversation_id, query, language, resources_returned) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	recentQueriesQuery  = `SELECT id, user_id, conversation_id, query, language, resources_returned, created_at FROM user_queries ORDER BY created_at DESC, id DESC LIMIT $1`
)

func (c *DatabaseClient) LogUserQuery(ctx context.Context, q *models.UserQuery) error {
	if q == nil {
		return errors.New("nil user query")
	}
	ids, err := marshalJSON(q.ResourcesReturned)
	if err != nil {
		return err
	}
	var convID any
	if q.ConversationID != nil {
		convID = *q.ConversationID
	}
	return c.db.QueryRowContext(ctx, insertQueryLogQuery, emptyToNull(q.UserID), convID, q.Query, q.Language, ids).
		Scan(&q.ID, &q.CreatedAt)
}

func (c *DatabaseClient) ListRecentQueries(ctx context.Context, limit int) ([]models.UserQuery, error) {
	rows, err := c.db.QueryContext(ctx, recentQueriesQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserQuery
	for rows.Next() {
		var (
			q      models.UserQuery
			userID sql.NullString
			convID sql.NullInt64
			ids    []byte
		)
		if err := rows.Scan(&q.ID, &userID, &convID, &q.Query, &q.Language, &ids, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.UserID = userID.String
		if convID.Valid {
			v := convID.Int64
			q.ConversationID = &v
		}
		if len(ids) > 0 {
			if err := json.Unmarshal(ids, &q.ResourcesReturned); err != nil {
				return nil, fmt.Errorf("decode resources_returned of query %d: %w", q.ID, err)
			}
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (*models.DocumentMetadata, error) {
	var (
		m         models.DocumentMetadata
		procErr   sql.NullString
		url       sql.NullString
		author    sql.NullString
		published sql.NullTime
	)
	if err := row.Scan(
		&m.DocumentID, &m.Title, &m.SourceType, &m.Language, &m.TotalChunks, &m.IsProcessed,
		&procErr, &url, &author, &published, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if procErr.Valid {
		s := procErr.String
		m.ProcessingError = &s
	}
	m.URL = url.String
	m.Author = author.String
	if published.Valid {
		t := published.Time
		m.PublishedDate = &t
	}
	return &m, nil
}

func scanResource(row rowScanner) (*models.LibraryResource, error) {
	var (
		r              models.LibraryResource
		descEn, descUk sql.NullString
		descRu, url    sql.NullString
		keywords       []byte
	)
	if err := row.Scan(
		&r.ID, &r.NameEn, &r.NameUk, &r.NameRu, &descEn, &descUk, &descRu, &r.Type, &url, &keywords, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.DescriptionEn, r.DescriptionUk, r.DescriptionRu = descEn.String, descUk.String, descRu.String
	r.URL = url.String
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &r.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of resource %d: %w", r.ID, err)
		}
	}
	return &r, nil
}

func marshalJSON[T any](v []T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// likePattern wraps query for ILIKE with its wildcards escaped.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
