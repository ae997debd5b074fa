package dao

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/ristretto"
	"github.com/plugfox/foxy-entity-store/internal/config"
	"github.com/plugfox/foxy-entity-store/internal/model"
)

const cacheBufferItems = 64

// Cached is a read-through cache in front of another Repository.
// Only successful reads and writes are cached, misses always reach the backend.
type Cached struct {
	next   Repository
	cache  *ristretto.Cache[string, *model.Entity]
	logger *slog.Logger
}

var (
	_ Repository = (*Cached)(nil)
	_ Checker    = (*Cached)(nil)
)

// NewCached wraps next with a cache bounded by cfg.MaxCost payload bytes.
func NewCached(next Repository, cfg *config.CacheConfig, logger *slog.Logger) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *model.Entity]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cacheBufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		next:   next,
		cache:  cache,
		logger: logger,
	}, nil
}

// Save writes through to the backend and refreshes the cached copy.
func (c *Cached) Save(ctx context.Context, entity *model.Entity) error {
	if err := c.next.Save(ctx, entity); err != nil {
		c.cache.Del(entity.UID())
		return err
	}

	c.cache.Set(entity.UID(), entity, cost(entity))

	return nil
}

// Get serves from memory when possible.
func (c *Cached) Get(ctx context.Context, uid string) (*model.Entity, error) {
	if entity, ok := c.cache.Get(uid); ok {
		c.logger.DebugContext(ctx, "Entity cache hit", slog.String("uid", uid))

		return entity, nil
	}

	entity, err := c.next.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	c.cache.Set(uid, entity, cost(entity))

	return entity, nil
}

// Check forwards to the wrapped repository when it is a Checker.
func (c *Cached) Check(ctx context.Context) error {
	if checker, ok := c.next.(Checker); ok {
		return checker.Check(ctx)
	}

	return nil
}

// Wait blocks until pending cache writes are applied.
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close releases the cache, the wrapped repository is left open.
func (c *Cached) Close() error {
	c.cache.Close()
	return nil
}

func cost(entity *model.Entity) int64 {
	return int64(len(entity.UID()) + len(entity.Payload()))
}
