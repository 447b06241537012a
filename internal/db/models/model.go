package models

import (
	"time"
)

// KVEntry is one document of the key/value store.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:100"`
	Value     string    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// RecordLog is the audit trail of domain events.
type RecordLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	EventType  string    `gorm:"size:100;not null;index"`
	Subject    string    `gorm:"size:100;index"`
	Payload    string    `gorm:"type:jsonb"`
	OccurredAt time.Time `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}
