package model

import "gorm.io/datatypes"

type QCReport struct {
	ReportID      string         `gorm:"column:report_id;type:text;primaryKey"`
	VersionID     string         `gorm:"column:version_id;type:text;not null;index"`
	Actor         string         `gorm:"column:actor;type:text;not null"`
	OverallResult string         `gorm:"column:overall_result;type:text;not null;index"`
	CriticalCount int            `gorm:"column:critical_count;not null"`
	WarningCount  int            `gorm:"column:warning_count;not null"`
	ReportJSON    datatypes.JSON `gorm:"column:report_json;not null"`
	CreatedAt     string         `gorm:"column:created_at;type:text;not null;index"`
}

func (QCReport) TableName() string {
	return "qc_reports"
}
