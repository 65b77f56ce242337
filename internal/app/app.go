package app

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/libassist/internal/api/handlers"
	"github.com/markdave123-py/libassist/internal/config"
	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/core/assistant"
	"github.com/markdave123-py/libassist/internal/core/catalog"
	db "github.com/markdave123-py/libassist/internal/core/database"
	"github.com/markdave123-py/libassist/internal/core/ingestion_engine"
	"github.com/markdave123-py/libassist/internal/core/language"
	"github.com/markdave123-py/libassist/internal/core/llm"
	objectclient "github.com/markdave123-py/libassist/internal/core/object-client"
	"github.com/markdave123-py/libassist/internal/core/retrieval"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
	"github.com/markdave123-py/libassist/internal/services"
)

type App struct {
	DBClient  core.DbClient
	Ingestor  ingestion_engine.Ingestor
	Syncer    *catalog.Syncer
	Scheduler *catalog.Scheduler
	Server    *Server

	cfg     *config.Config
	log     logger.Logger
	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{cfg: cfg, log: log}

	dbClient, err := db.NewStore(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	log.Info("database initialized and ready", "backend", cfg.StoreBackend)

	objClient, err := newObjectClient(appCtx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	a.closers = append(a.closers, geminiEmbedder.Close)

	var embedder core.EmbeddingProvider = geminiEmbedder
	if cfg.RedisURL != "" {
		rdb, err := llm.NewRedisClient(appCtx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("couldn't connect to redis, %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		embedder = llm.NewCachedEmbedder(geminiEmbedder, rdb, geminiEmbedder.Model(), cfg.EmbedCacheTTL, log)
		log.Info("embedding cache enabled", "ttl", cfg.EmbedCacheTTL)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the language model, %w", err)
	}
	a.closers = append(a.closers, llmProvider.Close)

	searcher := retrieval.NewSearcher(dbClient, embedder)

	opts := assistant.DefaultOptions()
	opts.TopK = cfg.SearchTopK
	opts.Threshold = cfg.SimilarityThreshold
	opts.Timeout = cfg.RequestTimeout
	opts.HistoryLimit = cfg.HistoryLimit
	generator := assistant.NewGenerator(dbClient, searcher, dbClient, llmProvider, opts, log.With("component", "assistant"))

	ingCfg := ingestion_engine.DefaultIngestConfig()
	processor := ingestion_engine.NewProcessor(dbClient, embedder, ingCfg, log.With("component", "processor"))

	var queue services.UploadQueue
	if objClient != nil {
		useReadability := false
		extractor := ingestion_engine.NewDocconvExtractor(useReadability)
		a.Ingestor = ingestion_engine.NewDocumentIngestor(objClient, extractor, processor, ingCfg, log.With("component", "ingestor"))
		queue = a.Ingestor
	}

	fetcher := catalog.NewHTTPFetcher(cfg.CatalogFetchTimeout)
	a.Syncer = catalog.NewSyncer(dbClient, fetcher, cfg.CatalogURL, log.With("component", "catalog"))
	if cfg.SyncInterval > 0 {
		a.Scheduler = catalog.NewScheduler(a.Syncer, cfg.SyncInterval, log.With("component", "scheduler"))
	}

	detector := language.NewDetector(models.Language(cfg.DefaultCyrillicLanguage), models.Language(cfg.DefaultLatinLanguage))
	conversations := services.NewConversationService(dbClient, generator, detector, cfg.HistoryLimit, log)
	documents := services.NewDocumentService(dbClient, processor, objClient, queue, cfg.BucketName, log)
	library := services.NewLibraryService(dbClient, dbClient, searcher)

	router := NewRouter(Routes{
		Chat:      handlers.NewChatHandler(conversations, log),
		Documents: handlers.NewDocumentHandler(documents, log),
		Resources: handlers.NewResourceHandler(library, log),
		Sync:      handlers.NewSyncHandler(a.Syncer),
	}, cfg.JWTSecret, cfg.RequestTimeout)
	a.Server = NewServer(":"+cfg.Port, router, log)

	return a, nil
}

// Start launches the background workers and the scheduler. It does not block.
func (a *App) Start(ctx context.Context) error {
	if a.Ingestor != nil {
		a.Ingestor.Start(ctx, a.cfg.IngestWorkers)
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the HTTP server, then the scheduler and the ingestion workers.
// Workers exit once the context passed to Start is cancelled.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Server.Shutdown(ctx)
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Ingestor != nil {
		a.Ingestor.Wait()
	}
	return err
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// newObjectClient returns S3 when a bucket is configured, the in-memory store
// for the memory backend, and nil when uploads are disabled.
func newObjectClient(ctx context.Context, cfg *config.Config, log logger.Logger) (core.ObjectClient, error) {
	switch {
	case cfg.BucketName != "":
		c, err := objectclient.NewS3Client(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		log.Info("object client initialized and ready", "bucket", cfg.BucketName)
		return c, nil
	case cfg.StoreBackend == config.BackendMemory:
		log.Warn("using in-memory object storage")
		return objectclient.NewMemoryObjects(), nil
	default:
		log.Warn("BUCKET_NAME not set; document uploads are disabled")
		return nil, nil
	}
}
