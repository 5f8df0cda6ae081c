package versions

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
	"gamepub/internal/usecase/upload"
)

const (
	eventCreate   = "create"
	eventUpload   = "upload"
	eventEditMeta = "edit_metadata"
	eventSelfQA   = "self_qa"
	eventQCReport = "qc_report"
)

// CreateVersion registers a new draft version of a game the actor owns.
func (s *Service) CreateVersion(ctx context.Context, input CreateVersionInput) (VersionDetail, error) {
	if err := s.ready(ctx); err != nil {
		return VersionDetail{}, err
	}
	if !input.Actor.Valid() {
		return VersionDetail{}, errActorRequired
	}
	number := strings.TrimSpace(input.Version)
	if res := version.ValidateVersion(number); !res.Valid {
		return VersionDetail{}, errs.New(errs.KindValidation, res.Error)
	}

	var created ports.GameVersionRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		game, err := s.repo.GetGame(txCtx, strings.TrimSpace(input.GameID))
		if err != nil {
			return err
		}
		if game.OwnerID != input.Actor.UserID && !input.Actor.IsAdmin() {
			return errs.Wrapf(ErrForbidden, "game %s is owned by another developer", game.GameID)
		}

		created, err = s.createDraftTx(txCtx, game.GameID, number, input.Actor)
		return err
	}); err != nil {
		return VersionDetail{}, err
	}

	s.setCacheBestEffort(ctx, cacheVersionStatusKey(created.ID), created.Status)
	return toVersionDetail(created), nil
}

func (s *Service) createDraftTx(ctx context.Context, gameID string, number string, actor ports.Actor) (ports.GameVersionRecord, error) {
	now := s.nowUTCString()
	created, err := s.repo.CreateVersion(ctx, ports.GameVersionRecord{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Version:   number,
		Status:    string(version.StatusDraft),
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return ports.GameVersionRecord{}, err
	}
	if err := s.repo.AppendVersionEvent(ctx, ports.VersionEventCreate{
		VersionID: created.ID,
		Actor:     actor.UserID,
		Action:    eventCreate,
		ToStatus:  created.Status,
		CreatedAt: now,
	}); err != nil {
		return ports.GameVersionRecord{}, err
	}
	return created, nil
}

func (s *Service) GetVersion(ctx context.Context, versionID string) (VersionDetail, error) {
	if err := s.ready(ctx); err != nil {
		return VersionDetail{}, err
	}
	v, err := s.repo.GetVersion(ctx, strings.TrimSpace(versionID))
	if err != nil {
		return VersionDetail{}, err
	}
	return toVersionDetail(v), nil
}

// ListVersions returns the versions of a game, newest semantic version first.
func (s *Service) ListVersions(ctx context.Context, gameID string) ([]VersionDetail, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	gameID = strings.TrimSpace(gameID)
	if _, err := s.repo.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListVersions(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out := make([]VersionDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, toVersionDetail(r))
	}
	sortBySemverDesc(out)
	return out, nil
}

// UpdateMetadata records a freshly transferred archive against gameID. A missing
// game is registered to the actor and a missing version is created as a draft;
// an existing version must still be editable by the actor.
func (s *Service) UpdateMetadata(ctx context.Context, gameID string, update upload.MetadataUpdate) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	actor := update.Actor
	if !actor.Valid() {
		return "", errActorRequired
	}
	gameID = strings.TrimSpace(gameID)
	number := strings.TrimSpace(update.Version)
	if res := version.ValidateVersion(number); !res.Valid {
		return "", errs.New(errs.KindValidation, res.Error)
	}
	storagePath := strings.TrimSpace(update.StoragePath)
	if storagePath == "" {
		return "", errs.New(errs.KindValidation, "storage path is required")
	}

	var versionID string
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		game, err := s.ensureGameTx(txCtx, gameID, update.Metadata.Title, actor)
		if err != nil {
			return err
		}
		current, err := s.repo.FindVersion(txCtx, game.GameID, number)
		switch {
		case errors.Is(err, ports.ErrVersionNotFound):
			if err := payloadReplaceable(game, nil, actor); err != nil {
				return err
			}
			current, err = s.createDraftTx(txCtx, game.GameID, number, actor)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if err := payloadReplaceable(game, &current, actor); err != nil {
			return err
		}

		now := s.nowUTCString()
		current.StoragePath = storagePath
		current.EntryFile = strings.TrimSpace(update.EntryPoint)
		current.Runtime = strings.TrimSpace(update.Runtime)
		current.Metadata = toRecordMetadata(update.Metadata)
		current.LastCodeUpdateBy = actor.UserID
		current.LastCodeUpdateAt = now
		current.UpdatedAt = now
		if err := s.repo.SaveVersion(txCtx, current); err != nil {
			return err
		}
		versionID = current.ID
		return s.repo.AppendVersionEvent(txCtx, ports.VersionEventCreate{
			VersionID:  current.ID,
			Actor:      actor.UserID,
			Action:     eventUpload,
			FromStatus: current.Status,
			ToStatus:   current.Status,
			Note:       storagePath,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return "", err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "versions.service")),
		"version payload updated",
		slog.String("game_id", gameID),
		slog.String("version", number),
		slog.String("version_id", versionID),
		slog.String("storage_path", storagePath),
	)
	return versionID, nil
}

// CheckUpload reports whether actor may upload a payload for gameID at versionNumber.
// It changes nothing; UpdateMetadata applies the same rule again when it writes.
func (s *Service) CheckUpload(ctx context.Context, gameID string, versionNumber string, actor ports.Actor) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !actor.Valid() {
		return errActorRequired
	}
	gameID = strings.TrimSpace(gameID)
	number := strings.TrimSpace(versionNumber)
	if res := version.ValidateVersion(number); !res.Valid {
		return errs.New(errs.KindValidation, res.Error)
	}

	game, err := s.repo.GetGame(ctx, gameID)
	switch {
	case errors.Is(err, ports.ErrGameNotFound):
		if !canAuthor(actor) {
			return errs.Wrap(ErrForbidden, "register game requires developer or admin role")
		}
		if res := version.ValidateGameID(gameID); !res.Valid {
			return errs.New(errs.KindValidation, res.Error)
		}
		return nil
	case err != nil:
		return err
	}

	current, err := s.repo.FindVersion(ctx, game.GameID, number)
	switch {
	case errors.Is(err, ports.ErrVersionNotFound):
		return payloadReplaceable(game, nil, actor)
	case err != nil:
		return err
	}
	return payloadReplaceable(game, &current, actor)
}

// payloadReplaceable applies the edit rule to an upload target; current is nil
// when the version does not exist yet.
func payloadReplaceable(game ports.GameRecord, current *ports.GameVersionRecord, actor ports.Actor) error {
	isOwner := game.OwnerID == actor.UserID
	if current == nil {
		if !isOwner && !actor.IsAdmin() {
			return errs.Wrapf(ErrForbidden, "game %s is owned by another developer", game.GameID)
		}
		return nil
	}
	status := version.Status(current.Status)
	if !version.CanEdit(status, isOwner, actor.IsAdmin()) {
		return errs.Wrapf(version.ErrNotEditable, "version %s is %s", current.Version, status)
	}
	return nil
}

func (s *Service) ensureGameTx(ctx context.Context, gameID string, title string, actor ports.Actor) (ports.GameRecord, error) {
	game, err := s.repo.GetGame(ctx, gameID)
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, ports.ErrGameNotFound) {
		return ports.GameRecord{}, err
	}
	if !canAuthor(actor) {
		return ports.GameRecord{}, errs.Wrap(ErrForbidden, "register game requires developer or admin role")
	}
	if res := version.ValidateGameID(gameID); !res.Valid {
		return ports.GameRecord{}, errs.New(errs.KindValidation, res.Error)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = gameID
	}
	now := s.nowUTCString()
	return s.repo.CreateGame(ctx, ports.GameRecord{
		GameID:    gameID,
		Title:     title,
		OwnerID:   actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// EditMetadata applies patch to an editable version.
func (s *Service) EditMetadata(ctx context.Context, versionID string, actor ports.Actor, patch MetadataPatch) (VersionDetail, error) {
	return s.editVersion(ctx, versionID, actor, eventEditMeta, func(v *ports.GameVersionRecord) {
		m := fromRecordMetadata(v.Metadata)
		applyPatch(&m, patch)
		v.Metadata = toRecordMetadata(m)
	})
}

// UpdateSelfQA replaces the self-QA checklist of an editable version.
func (s *Service) UpdateSelfQA(ctx context.Context, versionID string, actor ports.Actor, checklist version.SelfQAChecklist) (VersionDetail, error) {
	return s.editVersion(ctx, versionID, actor, eventSelfQA, func(v *ports.GameVersionRecord) {
		v.SelfQA = fromSelfQA(checklist)
	})
}

func (s *Service) editVersion(ctx context.Context, versionID string, actor ports.Actor, action string, apply func(*ports.GameVersionRecord)) (VersionDetail, error) {
	if err := s.ready(ctx); err != nil {
		return VersionDetail{}, err
	}
	if !actor.Valid() {
		return VersionDetail{}, errActorRequired
	}

	var saved ports.GameVersionRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetVersion(txCtx, strings.TrimSpace(versionID))
		if err != nil {
			return err
		}
		game, err := s.repo.GetGame(txCtx, current.GameID)
		if err != nil {
			return err
		}
		status := version.Status(current.Status)
		if !version.CanEdit(status, game.OwnerID == actor.UserID, actor.IsAdmin()) {
			return errs.Wrapf(version.ErrNotEditable, "version %s is %s", current.Version, status)
		}

		apply(&current)
		now := s.nowUTCString()
		current.UpdatedAt = now
		if err := s.repo.SaveVersion(txCtx, current); err != nil {
			return err
		}
		saved = current
		return s.repo.AppendVersionEvent(txCtx, ports.VersionEventCreate{
			VersionID:  current.ID,
			Actor:      actor.UserID,
			Action:     action,
			FromStatus: current.Status,
			ToStatus:   current.Status,
			CreatedAt:  now,
		})
	}); err != nil {
		return VersionDetail{}, err
	}
	return toVersionDetail(saved), nil
}

func applyPatch(m *Metadata, p MetadataPatch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&m.Title, p.Title)
	set(&m.Description, p.Description)
	set(&m.Grade, p.Grade)
	set(&m.Subject, p.Subject)
	set(&m.Level, p.Level)
	set(&m.LinkGithub, p.LinkGithub)
	if p.Skills != nil {
		m.Skills = p.Skills
	}
	if p.Themes != nil {
		m.Themes = p.Themes
	}
}
