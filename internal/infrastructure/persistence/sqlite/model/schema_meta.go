package model

import "time"

const (
	SchemaVersionKey     = "schema_version"
	CurrentSchemaVersion = "1"
)

// SchemaMeta records facts about the migrated schema, such as its version.
type SchemaMeta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}

// All lists every model migrated by init-db, in dependency order.
func All() []any {
	return []any{
		&SchemaMeta{},
		&Game{},
		&GameVersion{},
		&VersionEvent{},
		&QCReport{},
		&CacheEntry{},
	}
}
