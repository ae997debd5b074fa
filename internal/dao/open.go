package dao

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/plugfox/foxy-entity-store/internal/config"
	"github.com/plugfox/foxy-entity-store/internal/kvstore"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/storage"
	"github.com/spf13/afero"
)

var errorUnsupportedBackend = errors.New("unsupported storage backend")

// Open builds the repository selected by cfg.Storage.Backend, behind the
// read cache when it is enabled. The returned func releases the backend.
func Open(cfg *config.Config, logger *slog.Logger, m metrics.Metrics) (Repository, func() error, error) {
	var (
		repo    Repository
		closeFn = func() error { return nil }
	)

	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendFile:
		fileDao := newFileDao(cfg, afero.NewOsFs(), logger, m)
		if err := fileDao.Check(context.Background()); err != nil {
			logger.Warn("Storage directory is not usable, saves will fail until it is created",
				slog.String("dir", fileDao.Dir()),
				slog.String("error", err.Error()),
			)
		}
		repo = fileDao
	case config.BackendMemory:
		memFs := afero.NewMemMapFs()
		fileDao := newFileDao(cfg, memFs, logger, m)
		if err := memFs.MkdirAll(fileDao.Dir(), 0o755); err != nil {
			return nil, nil, fmt.Errorf("memory storage setup error: %w", err)
		}
		repo = fileDao
	case config.BackendSQL:
		db, err := storage.New(&cfg.Database, logger, m)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection error: %w", err)
		}
		repo, closeFn = db, db.Close
	case config.BackendLevelDB:
		store, err := kvstore.NewLevelDBStore(cfg.Storage.Root, logger, m)
		if err != nil {
			return nil, nil, err
		}
		repo, closeFn = store, store.Close
	default:
		return nil, nil, fmt.Errorf("%w: %q", errorUnsupportedBackend, cfg.Storage.Backend)
	}

	if !cfg.Cache.Enabled {
		return repo, closeFn, nil
	}

	cached, err := NewCached(repo, &cfg.Cache, logger)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("cache setup error: %w", err)
	}

	return cached, func() error {
		_ = cached.Close()
		return closeFn()
	}, nil
}

func newFileDao(cfg *config.Config, fsys afero.Fs, logger *slog.Logger, m metrics.Metrics) *EntityDao {
	opts := []Option{
		WithFs(fsys),
		WithLogger(logger),
		WithMetrics(m),
		WithReadMode(ParseReadMode(cfg.Storage.ReadMode)),
		WithFileMode(os.FileMode(cfg.Storage.FileMode)),
	}
	if cfg.Storage.SafePaths {
		opts = append(opts, WithSafePaths())
	}

	return New(cfg.Storage.Root, opts...)
}
