package cmd

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gofresh/internal/adapter"
	"github.com/dbsmedya/gofresh/internal/cache"
	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/logger"
)

// session bundles the components every database-touching command needs.
type session struct {
	cfg   *config.Config
	log   *logger.Logger
	db    adapter.Adapter
	store *cache.Store
}

// newSession loads and validates configuration, applies CLI overrides,
// initializes logging, and connects the vendor adapter.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.MaxParallel, overrides.NoCache)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := adapter.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		path, err := cfg.CachePath()
		if err != nil {
			db.Close()
			return nil, err
		}
		store = cache.Open(path)
	}

	return &session{cfg: cfg, log: log, db: db, store: store}, nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warnw("failed to close database connection", "error", err)
	}
}
