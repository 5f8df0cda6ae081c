package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gamepub/internal/errs"
	"gamepub/internal/infrastructure/persistence/sqlite/model"
	"gamepub/internal/ports"
)

type VersionRepository struct {
	db *gorm.DB
}

var _ ports.VersionRepository = (*VersionRepository)(nil)

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *VersionRepository) CreateGame(ctx context.Context, game ports.GameRecord) (ports.GameRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.GameRecord{}, err
	}

	row := model.Game{
		GameID:    game.GameID,
		Title:     game.Title,
		OwnerID:   game.OwnerID,
		CreatedAt: game.CreatedAt,
		UpdatedAt: game.UpdatedAt,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return ports.GameRecord{}, errs.Wrap(result.Error, "insert game")
	}
	if result.RowsAffected == 0 {
		return ports.GameRecord{}, fmt.Errorf("%w: %s", ports.ErrGameExists, game.GameID)
	}
	return mapGame(row), nil
}

func (r *VersionRepository) GetGame(ctx context.Context, gameID string) (ports.GameRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.GameRecord{}, err
	}

	var row model.Game
	if err := db.Where("game_id = ?", gameID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.GameRecord{}, ports.ErrGameNotFound
		}
		return ports.GameRecord{}, errs.Wrap(err, "query game")
	}
	return mapGame(row), nil
}

func (r *VersionRepository) ListGames(ctx context.Context, ownerID string) ([]ports.GameRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Game{})
	if owner := strings.TrimSpace(ownerID); owner != "" {
		query = query.Where("owner_id = ?", owner)
	}

	var rows []model.Game
	if err := query.Order("game_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query games")
	}

	items := make([]ports.GameRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapGame(row))
	}
	return items, nil
}

func (r *VersionRepository) CreateVersion(ctx context.Context, v ports.GameVersionRecord) (ports.GameVersionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.GameVersionRecord{}, err
	}

	row := toVersionRow(v)
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return ports.GameVersionRecord{}, errs.Wrap(result.Error, "insert game version")
	}
	if result.RowsAffected == 0 {
		return ports.GameVersionRecord{}, fmt.Errorf("%w: %s@%s", ports.ErrVersionExists, v.GameID, v.Version)
	}
	return mapVersion(row), nil
}

func (r *VersionRepository) GetVersion(ctx context.Context, versionID string) (ports.GameVersionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.GameVersionRecord{}, err
	}

	var row model.GameVersion
	if err := db.Where("id = ?", versionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.GameVersionRecord{}, ports.ErrVersionNotFound
		}
		return ports.GameVersionRecord{}, errs.Wrap(err, "query game version")
	}
	return mapVersion(row), nil
}

func (r *VersionRepository) FindVersion(ctx context.Context, gameID string, version string) (ports.GameVersionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.GameVersionRecord{}, err
	}

	var row model.GameVersion
	if err := db.Where("game_id = ? AND version = ?", gameID, version).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.GameVersionRecord{}, ports.ErrVersionNotFound
		}
		return ports.GameVersionRecord{}, errs.Wrap(err, "query game version by number")
	}
	return mapVersion(row), nil
}

func (r *VersionRepository) ListVersions(ctx context.Context, gameID string) ([]ports.GameVersionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.GameVersion
	if err := db.Where("game_id = ?", gameID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query game versions")
	}

	items := make([]ports.GameVersionRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapVersion(row))
	}
	return items, nil
}

func (r *VersionRepository) SaveVersion(ctx context.Context, v ports.GameVersionRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toVersionRow(v)
	result := db.Model(&model.GameVersion{}).
		Where("id = ?", v.ID).
		Select(
			"storage_path", "entry_file", "runtime",
			"title", "description", "grade", "subject", "skills", "themes", "level", "link_github",
			"qa_tested_devices", "qa_tested_audio", "qa_gameplay_complete", "qa_content_verified", "qa_note",
			"last_code_update_by", "last_code_update_at", "updated_at",
		).
		Updates(&row)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update game version")
	}
	if result.RowsAffected == 0 {
		return ports.ErrVersionNotFound
	}
	return nil
}

func (r *VersionRepository) UpdateVersionStatus(ctx context.Context, versionID string, from string, to string, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.GameVersion{}).
		Where("id = ? AND status = ?", versionID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update game version status")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.GetVersion(ctx, versionID); err != nil {
		return err
	}
	return fmt.Errorf("%w: expected %s", ports.ErrStatusConflict, from)
}

func (r *VersionRepository) AppendVersionEvent(ctx context.Context, input ports.VersionEventCreate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.VersionEvent{
		VersionID:  input.VersionID,
		Actor:      input.Actor,
		Action:     input.Action,
		FromStatus: input.FromStatus,
		ToStatus:   input.ToStatus,
		Note:       input.Note,
		CreatedAt:  input.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert version event")
	}
	return nil
}

func (r *VersionRepository) ListVersionEvents(ctx context.Context, versionID string) ([]ports.VersionEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.VersionEvent
	if err := db.Where("version_id = ?", versionID).Order("event_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query version events")
	}

	items := make([]ports.VersionEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.VersionEvent{
			EventID:    row.EventID,
			VersionID:  row.VersionID,
			Actor:      row.Actor,
			Action:     row.Action,
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			Note:       row.Note,
			CreatedAt:  row.CreatedAt,
		})
	}
	return items, nil
}

func (r *VersionRepository) CreateQCReport(ctx context.Context, report ports.QCReportRecord) (ports.QCReportRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.QCReportRecord{}, err
	}

	row := model.QCReport{
		ReportID:      report.ReportID,
		VersionID:     report.VersionID,
		Actor:         report.Actor,
		OverallResult: report.OverallResult,
		CriticalCount: report.CriticalCount,
		WarningCount:  report.WarningCount,
		ReportJSON:    report.ReportJSON,
		CreatedAt:     report.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.QCReportRecord{}, errs.Wrap(err, "insert qc report")
	}
	return mapQCReport(row), nil
}

func (r *VersionRepository) ListQCReports(ctx context.Context, versionID string, limit int) ([]ports.QCReportRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.QCReport{}).
		Where("version_id = ?", versionID).
		Order("created_at desc").
		Order("report_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.QCReport
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query qc reports")
	}

	items := make([]ports.QCReportRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapQCReport(row))
	}
	return items, nil
}

func mapGame(row model.Game) ports.GameRecord {
	return ports.GameRecord{
		GameID:    row.GameID,
		Title:     row.Title,
		OwnerID:   row.OwnerID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toVersionRow(v ports.GameVersionRecord) model.GameVersion {
	return model.GameVersion{
		ID:                 v.ID,
		GameID:             v.GameID,
		Version:            v.Version,
		Status:             v.Status,
		StoragePath:        v.StoragePath,
		EntryFile:          v.EntryFile,
		Runtime:            v.Runtime,
		Title:              v.Metadata.Title,
		Description:        v.Metadata.Description,
		Grade:              v.Metadata.Grade,
		Subject:            v.Metadata.Subject,
		Skills:             nonNilStrings(v.Metadata.Skills),
		Themes:             nonNilStrings(v.Metadata.Themes),
		Level:              v.Metadata.Level,
		LinkGithub:         v.Metadata.LinkGithub,
		QATestedDevices:    v.SelfQA.TestedDevices,
		QATestedAudio:      v.SelfQA.TestedAudio,
		QAGameplayComplete: v.SelfQA.GameplayComplete,
		QAContentVerified:  v.SelfQA.ContentVerified,
		QANote:             v.SelfQA.Note,
		CreatedBy:          v.CreatedBy,
		LastCodeUpdateBy:   optionalString(v.LastCodeUpdateBy),
		LastCodeUpdateAt:   optionalString(v.LastCodeUpdateAt),
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}

func mapVersion(row model.GameVersion) ports.GameVersionRecord {
	return ports.GameVersionRecord{
		ID:          row.ID,
		GameID:      row.GameID,
		Version:     row.Version,
		Status:      row.Status,
		StoragePath: row.StoragePath,
		EntryFile:   row.EntryFile,
		Runtime:     row.Runtime,
		Metadata: ports.VersionMetadata{
			Title:       row.Title,
			Description: row.Description,
			Grade:       row.Grade,
			Subject:     row.Subject,
			Skills:      []string(row.Skills),
			Themes:      []string(row.Themes),
			Level:       row.Level,
			LinkGithub:  row.LinkGithub,
		},
		SelfQA: ports.SelfQARecord{
			TestedDevices:    row.QATestedDevices,
			TestedAudio:      row.QATestedAudio,
			GameplayComplete: row.QAGameplayComplete,
			ContentVerified:  row.QAContentVerified,
			Note:             row.QANote,
		},
		CreatedBy:        row.CreatedBy,
		LastCodeUpdateBy: derefString(row.LastCodeUpdateBy),
		LastCodeUpdateAt: derefString(row.LastCodeUpdateAt),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func mapQCReport(row model.QCReport) ports.QCReportRecord {
	return ports.QCReportRecord{
		ReportID:      row.ReportID,
		VersionID:     row.VersionID,
		Actor:         row.Actor,
		OverallResult: row.OverallResult,
		CriticalCount: row.CriticalCount,
		WarningCount:  row.WarningCount,
		ReportJSON:    []byte(row.ReportJSON),
		CreatedAt:     row.CreatedAt,
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
