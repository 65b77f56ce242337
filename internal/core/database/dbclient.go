package db

import (
	"context"
	"fmt"

	"github.com/markdave123-py/libassist/internal/config"
	"github.com/markdave123-py/libassist/internal/core"
	"github.com/markdave123-py/libassist/internal/logger"
)

// NewStore picks the storage backend once, at startup.
func NewStore(ctx context.Context, cfg *config.Config, log logger.Logger) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return NewDatabaseClient(ctx, cfg.DatabaseURL, log)
	case config.BackendMemory:
		log.Warn("using the in-memory store; data is lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
