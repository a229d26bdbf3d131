// Package app holds the wiring shared by the binaries under cmd/: loggers,
// the configured store backend and the category taxonomy.
package app

import (
	"context"
	"fmt"

	"github.com/dompet-app/dompet/internal/config"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/infra/memory"
	"github.com/dompet-app/dompet/internal/infra/mongo"
	"github.com/dompet-app/dompet/internal/infra/sqlite"
	"github.com/dompet-app/dompet/internal/logger"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/rs/zerolog"
)

// NewLogger builds the logger for the named binary.
func NewLogger(cfg *config.Config, service string) zerolog.Logger {
	return logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: service,
	})
}

// Taxonomy returns the configured categories, or the defaults.
func Taxonomy(cfg *config.Config) domain.Taxonomy {
	names := cfg.Categories
	if len(names) == 0 {
		names = domain.DefaultCategories
	}
	return domain.NewTaxonomyWithFallback(cfg.FallbackCategory, names...)
}

// OpenStore connects the configured backend. The caller closes it.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLiteDBPath, sqlite.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("path", cfg.SQLiteDBPath).Msg("Using SQLite store")
		return s, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI, log)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		s := mongo.NewStore(mongo.NewMongoProvider(client, cfg.MongoDatabase), client, mongo.WithLogger(log))
		if err := s.EnsureIndexes(ctx); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB store")
		return s, nil
	}
	return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.StoreBackend)
}
