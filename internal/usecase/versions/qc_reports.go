package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/qcreport"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

const defaultQCReportLimit = 20

// RecordQCReport aggregates a test run, stores the report against the version
// and, with AutoDecide, records the verdict on a version under review.
func (s *Service) RecordQCReport(ctx context.Context, input RecordQCReportInput) (RecordQCReportResult, error) {
	if err := s.ready(ctx); err != nil {
		return RecordQCReportResult{}, err
	}
	actor := input.Actor
	if !actor.Valid() {
		return RecordQCReportResult{}, errActorRequired
	}
	if !version.HasRole(actor.Roles, version.RoleQC) && !actor.IsAdmin() {
		return RecordQCReportResult{}, errs.Wrap(ErrForbidden, "recording QC reports requires qc or admin role")
	}

	report := qcreport.Aggregate(input.Results, s.Thresholds(), s.now())
	body, err := json.Marshal(report)
	if err != nil {
		return RecordQCReportResult{}, errs.Wrap(err, "encode qc report")
	}

	result := RecordQCReportResult{Report: report}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetVersion(txCtx, strings.TrimSpace(input.VersionID))
		if err != nil {
			return err
		}

		now := s.nowUTCString()
		saved, err := s.repo.CreateQCReport(txCtx, ports.QCReportRecord{
			ReportID:      uuid.NewString(),
			VersionID:     current.ID,
			Actor:         actor.UserID,
			OverallResult: string(report.OverallResult),
			CriticalCount: len(report.CriticalIssues),
			WarningCount:  len(report.Warnings),
			ReportJSON:    body,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		result.ReportID = saved.ReportID
		if err := s.repo.AppendVersionEvent(txCtx, ports.VersionEventCreate{
			VersionID:  current.ID,
			Actor:      actor.UserID,
			Action:     eventQCReport,
			FromStatus: current.Status,
			ToStatus:   current.Status,
			Note:       fmt.Sprintf("%s (%s)", report.OverallResult, saved.ReportID),
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		if !input.AutoDecide || version.Status(current.Status) != version.StatusQCProcessing {
			return nil
		}
		action := version.ActionRecordPass
		if report.OverallResult == qcreport.VerdictFail {
			action = version.ActionRecordFail
		}
		decided, err := s.transitionTx(txCtx, TransitionInput{
			VersionID: current.ID,
			Action:    action,
			Actor:     actor,
			Note:      "qc report " + saved.ReportID,
		})
		if err != nil {
			return err
		}
		result.Transition = &decided
		return nil
	}); err != nil {
		return RecordQCReportResult{}, err
	}

	if result.Transition != nil {
		s.setCacheBestEffort(ctx, cacheVersionStatusKey(result.Transition.VersionID), string(result.Transition.To))
		s.publishBestEffort(ctx, *result.Transition, actor)
	}
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "versions.service")),
		"qc report recorded",
		slog.String("version_id", input.VersionID),
		slog.String("report_id", result.ReportID),
		slog.String("verdict", string(report.OverallResult)),
		slog.Bool("auto_decided", result.Transition != nil),
	)
	return result, nil
}

// ListQCReports returns the newest reports of a version first.
func (s *Service) ListQCReports(ctx context.Context, versionID string, limit int) ([]QCReportItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQCReportLimit
	}
	versionID = strings.TrimSpace(versionID)
	if _, err := s.repo.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListQCReports(ctx, versionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]QCReportItem, 0, len(rows))
	for _, row := range rows {
		var report qcreport.Report
		if err := json.Unmarshal(row.ReportJSON, &report); err != nil {
			return nil, errs.Wrapf(err, "decode qc report %s", row.ReportID)
		}
		out = append(out, QCReportItem{
			ReportID:      row.ReportID,
			VersionID:     row.VersionID,
			Actor:         row.Actor,
			OverallResult: qcreport.Verdict(row.OverallResult),
			Report:        report,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}
