package dao

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
	"github.com/plugfox/foxy-entity-store/internal/log"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/model"
	"github.com/plugfox/foxy-entity-store/internal/utility"
	"github.com/spf13/afero"
)

// Repository is the save/get contract shared by every entity backend.
type Repository interface {
	// Save stores the entity payload under its uid, replacing any previous one.
	Save(ctx context.Context, entity *model.Entity) error
	// Get loads the entity stored under uid. Failures wrap ErrNotFound,
	// ErrInvalidUID, ErrIO or ErrDecode from the errors package.
	Get(ctx context.Context, uid string) (*model.Entity, error)
}

// Checker is implemented by repositories that can report whether their
// backing store is usable without touching any entity.
type Checker interface {
	Check(ctx context.Context) error
}

// ReadMode controls how stored files are turned back into payloads.
type ReadMode int

const (
	// ReadModeLines joins the lines of the file without separators,
	// so line breaks are lost.
	ReadModeLines ReadMode = iota
	// ReadModeExact returns the file content byte for byte.
	ReadModeExact
)

// ParseReadMode maps a config value to a ReadMode, lines by default.
func ParseReadMode(mode string) ReadMode {
	if strings.EqualFold(strings.TrimSpace(mode), "exact") {
		return ReadModeExact
	}

	return ReadModeLines
}

func (m ReadMode) String() string {
	if m == ReadModeExact {
		return "exact"
	}

	return "lines"
}

const defaultFileMode os.FileMode = 0o644

// EntityDao stores each entity as one file at rootPath followed by its uid.
// It keeps no state besides its settings, concurrent calls on the same uid
// are ordered by the filesystem only.
type EntityDao struct {
	rootPath  string
	fs        afero.Fs
	logger    *slog.Logger
	metrics   metrics.Metrics
	readMode  ReadMode
	fileMode  os.FileMode
	safePaths bool
}

var (
	_ Repository = (*EntityDao)(nil)
	_ Checker    = (*EntityDao)(nil)
)

var errorNotDirectory = errors.New("not a directory")

// Option configures an EntityDao.
type Option func(*EntityDao)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(d *EntityDao) {
		d.fs = fs
	}
}

// WithLogger sets the logger, the default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(d *EntityDao) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics sink, the default is a no-op.
func WithMetrics(m metrics.Metrics) Option {
	return func(d *EntityDao) {
		d.metrics = m
	}
}

// WithReadMode sets how payloads are read back.
func WithReadMode(mode ReadMode) Option {
	return func(d *EntityDao) {
		d.readMode = mode
	}
}

// WithFileMode sets the permissions of created files.
func WithFileMode(mode os.FileMode) Option {
	return func(d *EntityDao) {
		d.fileMode = mode
	}
}

// WithSafePaths confines every entity to a single file directly inside
// rootPath: uids are checked with model.ValidateUID and joined to the root
// as a directory.
func WithSafePaths() Option {
	return func(d *EntityDao) {
		d.safePaths = true
	}
}

// New creates a DAO rooted at rootPath. The root is kept as given and is
// not checked for existence.
func New(rootPath string, opts ...Option) *EntityDao {
	d := &EntityDao{
		rootPath: rootPath,
		fs:       afero.NewOsFs(),
		logger:   log.Discard(),
		metrics:  metrics.NewMetricsFake(),
		readMode: ReadModeLines,
		fileMode: defaultFileMode,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// RootPath returns the root the DAO was created with.
func (d *EntityDao) RootPath() string {
	return d.rootPath
}

// Path returns the file that holds the entity with the given uid.
// By default it is rootPath and uid concatenated as strings, so a root
// without a trailing separator acts as a file name prefix and a uid may
// name a file in a subdirectory.
func (d *EntityDao) Path(uid string) (string, error) {
	if !d.safePaths {
		return d.rootPath + uid, nil
	}

	if err := model.ValidateUID(uid); err != nil {
		return "", err
	}

	return filepath.Join(d.rootPath, uid), nil
}

// Dir returns the directory entity files are created in. Without safe paths
// a root that does not end in a separator is a file name prefix, so the
// directory is its parent.
func (d *EntityDao) Dir() string {
	if d.safePaths || strings.HasSuffix(d.rootPath, "/") || strings.HasSuffix(d.rootPath, string(filepath.Separator)) {
		return filepath.Clean(d.rootPath)
	}

	return filepath.Dir(d.rootPath)
}

// Check fails with ErrIO when Dir is missing or is not a directory.
func (d *EntityDao) Check(_ context.Context) error {
	dir := d.Dir()

	info, err := d.fs.Stat(dir)
	if err != nil {
		return storeErrors.WrapIO("stat", dir, err)
	}
	if !info.IsDir() {
		return storeErrors.WrapIO("stat", dir, errorNotDirectory)
	}

	return nil
}

// Save writes the entity payload to its file, creating or truncating it.
func (d *EntityDao) Save(ctx context.Context, entity *model.Entity) error {
	d.logger.DebugContext(ctx, "Start to save entity",
		slog.String("entity", entity.String()),
		slog.String("root", d.rootPath),
	)

	path, err := d.Path(entity.UID())
	if err != nil {
		return err
	}

	begin := time.Now()
	payload := []byte(entity.Payload())
	if err := afero.WriteFile(d.fs, path, payload, d.fileMode); err != nil {
		d.logger.ErrorContext(ctx, "Entity save failed", slog.String("path", path), slog.Any("error", err))
		return storeErrors.WrapIO("save", entity.UID(), err)
	}

	d.metrics.LogEntityEvent(metrics.EventEntitySave, d.fs.Name(), map[string]interface{}{
		"bytes":   len(payload),
		"elapsed": time.Since(begin).Microseconds(),
	})

	return nil
}

// Get reads the entity stored under uid.
func (d *EntityDao) Get(ctx context.Context, uid string) (*model.Entity, error) {
	d.logger.DebugContext(ctx, "Start to find entity by uid", slog.String("uid", uid))

	path, err := d.Path(uid)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	file, err := d.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.metrics.LogEntityEvent(metrics.EventEntityGet, d.fs.Name(), map[string]interface{}{"found": false})
			return nil, storeErrors.WrapNotFound(uid)
		}

		return nil, storeErrors.WrapIO("open", uid, err)
	}
	defer file.Close()

	var payload string
	switch d.readMode {
	case ReadModeLines:
		payload, err = readLines(uid, file)
	default:
		payload, err = readExact(uid, file)
	}
	if err != nil {
		d.logger.WarnContext(ctx, "Entity read failed", slog.String("path", path), slog.Any("error", err))
		return nil, err
	}

	d.metrics.LogEntityEvent(metrics.EventEntityGet, d.fs.Name(), map[string]interface{}{
		"found":   true,
		"bytes":   len(payload),
		"elapsed": time.Since(begin).Microseconds(),
	})

	return model.NewEntity(uid, payload), nil
}

// Find is Get with every failure reported as absence.
func (d *EntityDao) Find(ctx context.Context, uid string) (*model.Entity, bool) {
	return Find(ctx, d, uid, d.logger)
}

// Find looks uid up in repo and collapses every failure into absence,
// logging the cause at debug level.
func Find(ctx context.Context, repo Repository, uid string, logger *slog.Logger) (*model.Entity, bool) {
	entity, err := repo.Get(ctx, uid)
	if err != nil {
		logger.DebugContext(ctx, "Entity lookup missed", slog.String("uid", uid), slog.Any("error", err))
		return nil, false
	}

	return entity, true
}

func readExact(uid string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", storeErrors.WrapIO("read", uid, err)
	}

	if offset := utility.InvalidUTF8Offset(data); offset >= 0 {
		return "", storeErrors.WrapDecode(uid, offset)
	}

	return string(data), nil
}

// readLines drops "\n" and "\r\n" terminators and concatenates the lines.
func readLines(uid string, r io.Reader) (string, error) {
	reader := bufio.NewReader(r)

	var (
		text     strings.Builder
		consumed int
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", storeErrors.WrapIO("read", uid, err)
		}

		if offset := utility.InvalidUTF8Offset([]byte(line)); offset >= 0 {
			return "", storeErrors.WrapDecode(uid, consumed+offset)
		}
		consumed += len(line)

		if trimmed, ok := strings.CutSuffix(line, "\n"); ok {
			line = strings.TrimSuffix(trimmed, "\r")
		}
		text.WriteString(line)

		if err != nil {
			return text.String(), nil
		}
	}
}
