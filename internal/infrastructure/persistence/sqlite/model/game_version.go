package model

import "gorm.io/datatypes"

type GameVersion struct {
	ID          string `gorm:"column:id;type:text;primaryKey"`
	GameID      string `gorm:"column:game_id;type:text;not null;uniqueIndex:idx_game_version,priority:1"`
	Version     string `gorm:"column:version;type:text;not null;uniqueIndex:idx_game_version,priority:2"`
	Status      string `gorm:"column:status;type:text;not null;index"`
	StoragePath string `gorm:"column:storage_path;type:text;not null;default:''"`
	EntryFile   string `gorm:"column:entry_file;type:text;not null;default:''"`
	Runtime     string `gorm:"column:runtime;type:text;not null;default:''"`

	Title       string                      `gorm:"column:title;type:text;not null;default:''"`
	Description string                      `gorm:"column:description;type:text;not null;default:''"`
	Grade       string                      `gorm:"column:grade;type:text;not null;default:''"`
	Subject     string                      `gorm:"column:subject;type:text;not null;default:''"`
	Skills      datatypes.JSONSlice[string] `gorm:"column:skills"`
	Themes      datatypes.JSONSlice[string] `gorm:"column:themes"`
	Level       string                      `gorm:"column:level;type:text;not null;default:''"`
	LinkGithub  string                      `gorm:"column:link_github;type:text;not null;default:''"`

	QATestedDevices    bool   `gorm:"column:qa_tested_devices;not null;default:false"`
	QATestedAudio      bool   `gorm:"column:qa_tested_audio;not null;default:false"`
	QAGameplayComplete bool   `gorm:"column:qa_gameplay_complete;not null;default:false"`
	QAContentVerified  bool   `gorm:"column:qa_content_verified;not null;default:false"`
	QANote             string `gorm:"column:qa_note;type:text;not null;default:''"`

	CreatedBy        string  `gorm:"column:created_by;type:text;not null"`
	LastCodeUpdateBy *string `gorm:"column:last_code_update_by;type:text"`
	LastCodeUpdateAt *string `gorm:"column:last_code_update_at;type:text"`
	CreatedAt        string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt        string  `gorm:"column:updated_at;type:text;not null"`
}

func (GameVersion) TableName() string {
	return "game_versions"
}
