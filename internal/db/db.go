package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gamecenter/config"
	"gamecenter/internal/db/models"
	"gamecenter/internal/events"
	"gamecenter/internal/store"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("connected to the database")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.KVEntry{}, &models.RecordLog{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Msg("database migration completed")
	return nil
}

// KVStore keeps the key/value documents in the kv_entries table.
type KVStore struct {
	db *gorm.DB
}

func NewKVStore(db *gorm.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Load(ctx context.Context, key string) (json.RawMessage, error) {
	key, err := store.SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	var entry models.KVEntry
	err = s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return json.RawMessage(entry.Value), nil
}

func (s *KVStore) Save(ctx context.Context, key string, value json.RawMessage) error {
	key, err := store.SanitizeKey(key)
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("save %s: invalid JSON", key)
	}
	entry := models.KVEntry{Key: key, Value: string(value)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// AuditLog writes every event it receives to record_logs. Ticks are skipped.
type AuditLog struct {
	db *gorm.DB
}

func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) Handle(ctx context.Context, ev events.Event) {
	if ev.Type == events.StationTicked {
		return
	}
	entry := models.RecordLog{
		EventType:  ev.Type,
		Subject:    ev.Subject,
		Payload:    string(ev.Payload),
		OccurredAt: ev.OccurredAt,
	}
	if len(ev.Payload) == 0 {
		entry.Payload = "null"
	}
	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("event_type", ev.Type).Msg("audit log write failed")
	}
}

// Recent returns the latest audit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]models.RecordLog, error) {
	var out []models.RecordLog
	err := a.db.WithContext(ctx).Order("occurred_at desc, id desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return out, nil
}
