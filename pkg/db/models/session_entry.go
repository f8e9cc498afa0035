package models

import "time"

// SessionEntry is one persisted session key/value pair, scoped per terminal namespace.
type SessionEntry struct {
	Namespace string    `gorm:"column:namespace;primaryKey;size:64"`
	Key       string    `gorm:"column:key;primaryKey;size:64"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SessionEntry) TableName() string {
	return "session_entries"
}
