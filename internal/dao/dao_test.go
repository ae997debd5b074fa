package dao

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newMemDao(opts ...Option) (*EntityDao, afero.Fs) {
	memFs := afero.NewMemMapFs()
	return New("/store/", append([]Option{WithFs(memFs)}, opts...)...), memFs
}

func TestSaveCreatesFileUnderRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir() + string(os.PathSeparator)
	dao := New(root)

	require.NoError(t, dao.Save(ctx, model.NewEntity("user-1", "hello world")))

	content, err := os.ReadFile(root + "user-1")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))

	entity, err := dao.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", entity.UID())
	require.Equal(t, "hello world", entity.Payload())
}

func TestGetMissingEntity(t *testing.T) {
	ctx := context.Background()
	dao := New(t.TempDir() + string(os.PathSeparator))

	entity, err := dao.Get(ctx, "nonexistent-uid")
	require.ErrorIs(t, err, storeErrors.ErrNotFound)
	require.Nil(t, entity)

	entity, ok := dao.Find(ctx, "nonexistent-uid")
	require.False(t, ok)
	require.Nil(t, entity)
}

func TestRoundTrip(t *testing.T) {
	testcases := []struct {
		Name    string
		UID     string
		Payload string
	}{
		{Name: "Plain text", UID: "user-1", Payload: "hello world"},
		{Name: "Empty payload", UID: "empty", Payload: ""},
		{Name: "Unicode", UID: "заметка", Payload: "привет, мир ✓"},
		{Name: "Hidden uid", UID: ".hidden", Payload: "x"},
	}

	for _, mode := range []ReadMode{ReadModeExact, ReadModeLines} {
		for _, testcase := range testcases {
			t.Run(mode.String()+"/"+testcase.Name, func(t *testing.T) {
				ctx := context.Background()
				dao, _ := newMemDao(WithReadMode(mode))

				require.NoError(t, dao.Save(ctx, model.NewEntity(testcase.UID, testcase.Payload)))

				entity, ok := dao.Find(ctx, testcase.UID)
				require.True(t, ok)
				require.Equal(t, testcase.UID, entity.UID())
				require.Equal(t, testcase.Payload, entity.Payload())
				require.Equal(t, model.NewEntity(testcase.UID, "").HashCode(), entity.HashCode())
			})
		}
	}
}

func TestMultilinePayload(t *testing.T) {
	ctx := context.Background()
	payload := "line 1\nline 2\r\nline 3\n"

	t.Run("Lines mode drops line breaks", func(t *testing.T) {
		dao, _ := newMemDao(WithReadMode(ReadModeLines))
		require.NoError(t, dao.Save(ctx, model.NewEntity("note", payload)))

		entity, err := dao.Get(ctx, "note")
		require.NoError(t, err)
		require.Equal(t, "line 1line 2line 3", entity.Payload())
		require.NotEqual(t, payload, entity.Payload())
	})

	t.Run("Default mode drops line breaks", func(t *testing.T) {
		dao, _ := newMemDao()
		require.NoError(t, dao.Save(ctx, model.NewEntity("note", "a\nb")))

		entity, ok := dao.Find(ctx, "note")
		require.True(t, ok)
		require.Equal(t, "ab", entity.Payload())
	})

	t.Run("Exact mode keeps line breaks", func(t *testing.T) {
		dao, _ := newMemDao(WithReadMode(ReadModeExact))
		require.NoError(t, dao.Save(ctx, model.NewEntity("note", payload)))

		entity, err := dao.Get(ctx, "note")
		require.NoError(t, err)
		require.Equal(t, payload, entity.Payload())
	})

	t.Run("Lines mode keeps a lone trailing carriage return", func(t *testing.T) {
		dao, _ := newMemDao(WithReadMode(ReadModeLines))
		require.NoError(t, dao.Save(ctx, model.NewEntity("note", "a\nb\r")))

		entity, err := dao.Get(ctx, "note")
		require.NoError(t, err)
		require.Equal(t, "ab\r", entity.Payload())
	})
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	dao, memFs := newMemDao()

	require.NoError(t, dao.Save(ctx, model.NewEntity("user-1", "a much longer first payload")))
	require.NoError(t, dao.Save(ctx, model.NewEntity("user-1", "second")))

	content, err := afero.ReadFile(memFs, "/store/user-1")
	require.NoError(t, err)
	require.Equal(t, "second", string(content))

	entity, err := dao.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "second", entity.Payload())
}

func TestUndecodableContent(t *testing.T) {
	for _, mode := range []ReadMode{ReadModeExact, ReadModeLines} {
		t.Run(mode.String(), func(t *testing.T) {
			dao, memFs := newMemDao(WithReadMode(mode))
			require.NoError(t, afero.WriteFile(memFs, "/store/broken", []byte("ok\nbad \xff\n"), 0o644))

			entity, err := dao.Get(context.Background(), "broken")
			require.ErrorIs(t, err, storeErrors.ErrDecode)
			require.ErrorContains(t, err, "byte 7")
			require.Nil(t, entity)
		})
	}
}

func TestInvalidUID(t *testing.T) {
	ctx := context.Background()
	outside := t.TempDir()
	root := filepath.Join(outside, "store")
	require.NoError(t, os.Mkdir(root, 0o755))
	dao := New(root, WithSafePaths())

	for _, uid := range []string{"", ".", "..", "../escaped", "a/b", `a\b`} {
		err := dao.Save(ctx, model.NewEntity(uid, "payload"))
		require.ErrorIs(t, err, storeErrors.ErrInvalidUID, "uid %q", uid)

		_, err = dao.Get(ctx, uid)
		require.ErrorIs(t, err, storeErrors.ErrInvalidUID, "uid %q", uid)
	}

	_, err := os.Stat(filepath.Join(outside, "escaped"))
	require.True(t, os.IsNotExist(err))
}

func TestPathConcatenatesRoot(t *testing.T) {
	testcases := []struct {
		Name     string
		Root     string
		UID      string
		Expected string
	}{
		{Name: "Directory root", Root: "/tmp/store/", UID: "user-1", Expected: "/tmp/store/user-1"},
		{Name: "Prefix root", Root: "/tmp/x/store-", UID: "user-1", Expected: "/tmp/x/store-user-1"},
		{Name: "Nested uid", Root: "/tmp/store/", UID: "sub/x", Expected: "/tmp/store/sub/x"},
		{Name: "Empty uid", Root: "/tmp/store/", UID: "", Expected: "/tmp/store/"},
	}

	for _, testcase := range testcases {
		t.Run(testcase.Name, func(t *testing.T) {
			path, err := New(testcase.Root).Path(testcase.UID)
			require.NoError(t, err)
			require.Equal(t, testcase.Expected, path)
		})
	}
}

func TestSaveWithPrefixRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dao := New(filepath.Join(dir, "store-"))

	require.NoError(t, dao.Save(ctx, model.NewEntity("user-1", "hello world")))

	content, err := os.ReadFile(filepath.Join(dir, "store-user-1"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))

	_, err = os.Stat(filepath.Join(dir, "store-"))
	require.True(t, os.IsNotExist(err))

	entity, err := dao.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "hello world", entity.Payload())
}

func TestSaveNestedUID(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir() + string(os.PathSeparator)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	dao := New(root)

	require.NoError(t, dao.Save(ctx, model.NewEntity("sub/x", "p")))

	content, err := os.ReadFile(filepath.Join(root, "sub", "x"))
	require.NoError(t, err)
	require.Equal(t, "p", string(content))

	entity, err := dao.Get(ctx, "sub/x")
	require.NoError(t, err)
	require.Equal(t, "sub/x", entity.UID())
	require.Equal(t, "p", entity.Payload())

	err = dao.Save(ctx, model.NewEntity("missing/x", "p"))
	require.ErrorIs(t, err, storeErrors.ErrIO)
}

func TestSafePathsJoinRoot(t *testing.T) {
	withSeparator := New("/tmp/store/", WithSafePaths())
	withoutSeparator := New("/tmp/store", WithSafePaths())

	a, err := withSeparator.Path("user-1")
	require.NoError(t, err)
	b, err := withoutSeparator.Path("user-1")
	require.NoError(t, err)

	require.Equal(t, filepath.FromSlash("/tmp/store/user-1"), a)
	require.Equal(t, a, b)
	require.Equal(t, "/tmp/store/", withSeparator.RootPath())
}

func TestIOFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing root", func(t *testing.T) {
		dao := New(filepath.Join(t.TempDir(), "missing") + string(os.PathSeparator))

		err := dao.Save(ctx, model.NewEntity("user-1", "x"))
		require.ErrorIs(t, err, storeErrors.ErrIO)
		require.NotErrorIs(t, err, storeErrors.ErrNotFound)

		_, err = dao.Get(ctx, "user-1")
		require.ErrorIs(t, err, storeErrors.ErrNotFound)
	})

	t.Run("Read-only filesystem", func(t *testing.T) {
		dao := New("/store", WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))

		err := dao.Save(ctx, model.NewEntity("user-1", "x"))
		require.ErrorIs(t, err, storeErrors.ErrIO)
	})

	t.Run("Directory instead of file", func(t *testing.T) {
		root := t.TempDir() + string(os.PathSeparator)
		require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
		dao := New(root)

		_, err := dao.Get(ctx, "dir")
		require.ErrorIs(t, err, storeErrors.ErrIO)

		_, ok := dao.Find(ctx, "dir")
		require.False(t, ok)
	})
}

func TestFileMode(t *testing.T) {
	root := t.TempDir()
	dao := New(root, WithSafePaths(), WithFileMode(0o600))

	require.NoError(t, dao.Save(context.Background(), model.NewEntity("secret", "x")))

	info, err := os.Stat(filepath.Join(root, "secret"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewDoesNotTouchFilesystem(t *testing.T) {
	memFs := afero.NewMemMapFs()
	_ = New("/not/created/", WithFs(memFs))

	exists, err := afero.DirExists(memFs, "/not/created")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMetricsEvents(t *testing.T) {
	ctx := context.Background()
	recorder := metrics.NewRecorder()
	dao, _ := newMemDao(WithMetrics(recorder))

	require.NoError(t, dao.Save(ctx, model.NewEntity("user-1", "hello")))
	_, err := dao.Get(ctx, "user-1")
	require.NoError(t, err)
	_, err = dao.Get(ctx, "user-2")
	require.Error(t, err)

	events := recorder.Events()
	require.Len(t, events, 3)

	require.Equal(t, metrics.EventEntitySave, events[0].Name)
	require.Equal(t, 5, events[0].Fields["bytes"])
	require.Equal(t, "MemMapFS", events[0].Tags["backend"])

	require.Equal(t, metrics.EventEntityGet, events[1].Name)
	require.Equal(t, true, events[1].Fields["found"])

	require.Equal(t, metrics.EventEntityGet, events[2].Name)
	require.Equal(t, false, events[2].Fields["found"])
}

func TestParseReadMode(t *testing.T) {
	require.Equal(t, ReadModeLines, ParseReadMode("lines"))
	require.Equal(t, ReadModeLines, ParseReadMode(" LINES "))
	require.Equal(t, ReadModeExact, ParseReadMode("exact"))
	require.Equal(t, ReadModeExact, ParseReadMode(" Exact"))
	require.Equal(t, ReadModeLines, ParseReadMode(""))
	require.Equal(t, ReadModeLines, New("/store/").readMode)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	memFs := afero.NewMemMapFs()
	require.NoError(t, memFs.MkdirAll("/store", 0o755))
	require.NoError(t, afero.WriteFile(memFs, "/file", []byte("x"), 0o644))

	testcases := []struct {
		Name        string
		Dao         *EntityDao
		ExpectedDir string
		IsHealthy   bool
	}{
		{Name: "Directory root", Dao: New("/store/", WithFs(memFs)), ExpectedDir: "/store", IsHealthy: true},
		{Name: "Prefix root", Dao: New("/store/entity-", WithFs(memFs)), ExpectedDir: "/store", IsHealthy: true},
		{Name: "Safe paths root", Dao: New("/store", WithFs(memFs), WithSafePaths()), ExpectedDir: "/store", IsHealthy: true},
		{Name: "Missing directory", Dao: New("/missing/", WithFs(memFs)), ExpectedDir: "/missing"},
		{Name: "File instead of directory", Dao: New("/file", WithFs(memFs), WithSafePaths()), ExpectedDir: "/file"},
	}

	for _, testcase := range testcases {
		t.Run(testcase.Name, func(t *testing.T) {
			require.Equal(t, filepath.FromSlash(testcase.ExpectedDir), testcase.Dao.Dir())

			err := testcase.Dao.Check(ctx)
			if testcase.IsHealthy {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, storeErrors.ErrIO)
			}
		})
	}
}
