package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	config "github.com/plugfox/foxy-entity-store/internal/config"
	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
	"github.com/plugfox/foxy-entity-store/internal/metrics"
	"github.com/plugfox/foxy-entity-store/internal/model"
	"github.com/plugfox/foxy-entity-store/internal/utility"
	storage_logger "github.com/plugfox/foxy-entity-store/internal/storage/storage_logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Storage keeps entities in the "entities" table of a SQL database.
type Storage struct {
	db      *gorm.DB
	metrics metrics.Metrics
	driver  string
}

func New(cfg *config.DatabaseConfig, logger *slog.Logger, m metrics.Metrics) (*Storage, error) {
	dialector, err := createDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{},
			Logger:         storage_logger.NewGormSlogLogger(logger),
			NowFunc:        func() time.Time { return time.Now().UTC() },
		})
	if err != nil {
		return nil, err
	}

	// Migrations
	const timeout = 15 * time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.WithContext(ctx).AutoMigrate(&model.EntityRecord{}); err != nil {
		return nil, err
	}

	if m == nil {
		m = metrics.NewMetricsFake()
	}

	return &Storage{db: db, metrics: m, driver: dialector.Name()}, nil
}

// Close - close the database connection
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Check - ping the database
func (s *Storage) Check(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storeErrors.WrapIO("ping", s.driver, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeErrors.WrapIO("ping", s.driver, err)
	}
	return nil
}

// Save - insert or replace the entity row
func (s *Storage) Save(ctx context.Context, entity *model.Entity) error {
	if err := model.ValidateUID(entity.UID()); err != nil {
		return err
	}

	record := model.NewEntityRecord(entity)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
	if err != nil {
		return storeErrors.WrapIO("save", entity.UID(), err)
	}

	s.metrics.LogEntityEvent(metrics.EventEntitySave, s.driver, map[string]interface{}{"bytes": len(record.Payload)})

	return nil
}

// Get - get the entity by uid
func (s *Storage) Get(ctx context.Context, uid string) (*model.Entity, error) {
	if err := model.ValidateUID(uid); err != nil {
		return nil, err
	}

	var record model.EntityRecord
	if err := s.db.WithContext(ctx).First(&record, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.LogEntityEvent(metrics.EventEntityGet, s.driver, map[string]interface{}{"found": false})
			return nil, storeErrors.WrapNotFound(uid)
		}
		return nil, storeErrors.WrapIO("get", uid, err)
	}

	if offset := utility.InvalidUTF8Offset([]byte(record.Payload)); offset >= 0 {
		return nil, storeErrors.WrapDecode(uid, offset)
	}

	s.metrics.LogEntityEvent(metrics.EventEntityGet, s.driver, map[string]interface{}{"found": true, "bytes": len(record.Payload)})

	return record.ToEntity(), nil
}
