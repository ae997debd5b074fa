package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/model"
	"github.com/plugfox/foxy-entity-store/internal/utility"
	levelDb "github.com/syndtr/goleveldb/leveldb"
)

const backendName = "leveldb"

// LevelDBStore keeps entity payloads in an embedded LevelDB keyed by uid.
type LevelDBStore struct {
	db      *levelDb.DB
	path    string
	logger  *slog.Logger
	metrics metrics.Metrics
}

func NewLevelDBStore(path string, logger *slog.Logger, m metrics.Metrics) (*LevelDBStore, error) {
	db, err := levelDb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}

	if m == nil {
		m = metrics.NewMetricsFake()
	}

	return &LevelDBStore{
		db:      db,
		path:    path,
		logger:  logger,
		metrics: m,
	}, nil
}

func (l *LevelDBStore) Save(ctx context.Context, entity *model.Entity) error {
	if err := model.ValidateUID(entity.UID()); err != nil {
		return err
	}

	l.logger.DebugContext(ctx, "Start to save entity", slog.String("entity", entity.String()), slog.String("path", l.path))

	payload := []byte(entity.Payload())
	if err := l.db.Put([]byte(entity.UID()), payload, nil); err != nil {
		return storeErrors.WrapIO("save", entity.UID(), err)
	}

	l.metrics.LogEntityEvent(metrics.EventEntitySave, backendName, map[string]interface{}{"bytes": len(payload)})

	return nil
}

func (l *LevelDBStore) Get(ctx context.Context, uid string) (*model.Entity, error) {
	if err := model.ValidateUID(uid); err != nil {
		return nil, err
	}

	l.logger.DebugContext(ctx, "Start to find entity by uid", slog.String("uid", uid))

	value, err := l.db.Get([]byte(uid), nil)
	if err != nil {
		if errors.Is(err, levelDb.ErrNotFound) {
			l.metrics.LogEntityEvent(metrics.EventEntityGet, backendName, map[string]interface{}{"found": false})
			return nil, storeErrors.WrapNotFound(uid)
		}
		return nil, storeErrors.WrapIO("get", uid, err)
	}

	if offset := utility.InvalidUTF8Offset(value); offset >= 0 {
		return nil, storeErrors.WrapDecode(uid, offset)
	}

	l.metrics.LogEntityEvent(metrics.EventEntityGet, backendName, map[string]interface{}{"found": true, "bytes": len(value)})

	return model.NewEntity(uid, string(value)), nil
}

func (l *LevelDBStore) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
