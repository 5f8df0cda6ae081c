package model

type VersionEvent struct {
	EventID    uint64 `gorm:"column:event_id;primaryKey;autoIncrement"`
	VersionID  string `gorm:"column:version_id;type:text;not null;index"`
	Actor      string `gorm:"column:actor;type:text;not null"`
	Action     string `gorm:"column:action;type:text;not null"`
	FromStatus string `gorm:"column:from_status;type:text;not null"`
	ToStatus   string `gorm:"column:to_status;type:text;not null"`
	Note       string `gorm:"column:note;type:text;not null;default:''"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null"`
}

func (VersionEvent) TableName() string {
	return "version_events"
}
