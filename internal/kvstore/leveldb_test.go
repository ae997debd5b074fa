package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
	"github.com/plugfox/foxy-entity-store/internal/log"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/model"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) *LevelDBStore {
	t.Helper()

	store, err := NewLevelDBStore(path, log.Discard(), nil)
	require.NoError(t, err)

	return store
}

func TestLevelDBSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, filepath.Join(t.TempDir(), "db"))
	defer store.Close()

	require.NoError(t, store.Save(ctx, model.NewEntity("user-1", "line 1\nline 2")))

	entity, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", entity.UID())
	require.Equal(t, "line 1\nline 2", entity.Payload())
	require.Equal(t, model.NewEntity("user-1", "").HashCode(), entity.HashCode())
}

func TestLevelDBOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, filepath.Join(t.TempDir(), "db"))
	defer store.Close()

	require.NoError(t, store.Save(ctx, model.NewEntity("user-1", "first")))
	require.NoError(t, store.Save(ctx, model.NewEntity("user-1", "second")))

	entity, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "second", entity.Payload())
}

func TestLevelDBErrors(t *testing.T) {
	ctx := context.Background()
	recorder := metrics.NewRecorder()
	store, err := NewLevelDBStore(filepath.Join(t.TempDir(), "db"), log.Discard(), recorder)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "nonexistent-uid")
	require.ErrorIs(t, err, storeErrors.ErrNotFound)

	_, err = store.Get(ctx, "../escape")
	require.ErrorIs(t, err, storeErrors.ErrInvalidUID)

	require.ErrorIs(t, store.Save(ctx, model.NewEntity("", "x")), storeErrors.ErrInvalidUID)

	require.NoError(t, store.db.Put([]byte("broken"), []byte{0xff, 0xfe}, nil))
	_, err = store.Get(ctx, "broken")
	require.ErrorIs(t, err, storeErrors.ErrDecode)

	events := recorder.Events()
	require.Len(t, events, 1)
	require.Equal(t, metrics.EventEntityGet, events[0].Name)
	require.Equal(t, false, events[0].Fields["found"])
}

func TestLevelDBPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db")

	// Create store, write, and close
	{
		store := newStore(t, path)
		require.NoError(t, store.Save(ctx, model.NewEntity("persistent", "value")))
		require.NoError(t, store.Close())
	}

	// Reopen store and verify data is still there
	{
		store := newStore(t, path)
		defer store.Close()

		entity, err := store.Get(ctx, "persistent")
		require.NoError(t, err)
		require.Equal(t, "value", entity.Payload())
	}
}
