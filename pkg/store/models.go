package store

import "time"

// EntryModel is one durable key/value row.
type EntryModel struct {
	Key       string    `gorm:"column:entry_key;primaryKey"`
	Value     string    `gorm:"column:entry_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (EntryModel) TableName() string {
	return "kv_entries"
}
