package versions

import (
	"context"
	"log/slog"
	"strings"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

// Transition applies a lifecycle action for the actor. Ownership of the game
// grants the owner role; submit also requires an archive and a complete self-QA
// checklist.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	if err := s.ready(ctx); err != nil {
		return TransitionResult{}, err
	}
	if !input.Actor.Valid() {
		return TransitionResult{}, errActorRequired
	}

	var result TransitionResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.transitionTx(txCtx, input)
		return err
	}); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "versions.service")),
			"transition rejected",
			slog.String("version_id", input.VersionID),
			slog.String("action", string(input.Action)),
			slog.String("actor", input.Actor.UserID),
			slog.Any("err", errs.Loggable(err)),
		)
		return TransitionResult{}, err
	}

	s.setCacheBestEffort(ctx, cacheVersionStatusKey(result.VersionID), string(result.To))
	s.publishBestEffort(ctx, result, input.Actor)
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "versions.service")),
		"version transitioned",
		slog.String("version_id", result.VersionID),
		slog.String("from", string(result.From)),
		slog.String("to", string(result.To)),
		slog.String("role", string(result.Role)),
		slog.String("actor", input.Actor.UserID),
	)
	return result, nil
}

func (s *Service) transitionTx(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	current, err := s.repo.GetVersion(ctx, strings.TrimSpace(input.VersionID))
	if err != nil {
		return TransitionResult{}, err
	}
	game, err := s.repo.GetGame(ctx, current.GameID)
	if err != nil {
		return TransitionResult{}, err
	}

	from, err := version.ParseStatus(current.Status)
	if err != nil {
		return TransitionResult{}, errs.Wrapf(err, "version %s", current.ID)
	}
	to, role, err := version.AttemptTransitionAny(from, input.Action, input.Actor.RolesFor(game.OwnerID))
	if err != nil {
		return TransitionResult{}, err
	}

	if input.Action == version.ActionSubmit {
		if err := submitReady(current); err != nil {
			return TransitionResult{}, err
		}
	}

	now := s.nowUTCString()
	if err := s.repo.UpdateVersionStatus(ctx, current.ID, string(from), string(to), now); err != nil {
		return TransitionResult{}, err
	}
	if err := s.repo.AppendVersionEvent(ctx, ports.VersionEventCreate{
		VersionID:  current.ID,
		Actor:      input.Actor.UserID,
		Action:     string(input.Action),
		FromStatus: string(from),
		ToStatus:   string(to),
		Note:       strings.TrimSpace(input.Note),
		CreatedAt:  now,
	}); err != nil {
		return TransitionResult{}, err
	}

	return TransitionResult{
		VersionID: current.ID,
		GameID:    current.GameID,
		Version:   current.Version,
		From:      from,
		To:        to,
		Action:    input.Action,
		Role:      role,
	}, nil
}

// AvailableActions lists what the actor may do to the version right now.
func (s *Service) AvailableActions(ctx context.Context, versionID string, actor ports.Actor) ([]version.Action, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	current, err := s.repo.GetVersion(ctx, strings.TrimSpace(versionID))
	if err != nil {
		return nil, err
	}
	game, err := s.repo.GetGame(ctx, current.GameID)
	if err != nil {
		return nil, err
	}
	actions := version.AvailableActions(version.Status(current.Status), actor.RolesFor(game.OwnerID))
	if submitReady(current) == nil {
		return actions, nil
	}
	out := make([]version.Action, 0, len(actions))
	for _, a := range actions {
		if a != version.ActionSubmit {
			out = append(out, a)
		}
	}
	return out, nil
}

// submitReady is the gate submit needs beyond the transition table: a stored
// archive and a complete self-QA checklist.
func submitReady(current ports.GameVersionRecord) error {
	if strings.TrimSpace(current.StoragePath) == "" {
		return ErrNoArchive
	}
	checklist := toSelfQA(current.SelfQA)
	if !version.ValidateSelfQA(checklist) {
		return errs.Wrapf(version.ErrSelfQAIncomplete, "missing %s", strings.Join(checklist.MissingItems(), ", "))
	}
	return nil
}

// History returns the audit trail of a version, oldest first.
func (s *Service) History(ctx context.Context, versionID string) ([]HistoryItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	versionID = strings.TrimSpace(versionID)
	if _, err := s.repo.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}

	events, err := s.repo.ListVersionEvents(ctx, versionID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryItem, 0, len(events))
	for _, e := range events {
		out = append(out, HistoryItem{
			EventID:   e.EventID,
			Actor:     e.Actor,
			Action:    e.Action,
			From:      e.FromStatus,
			To:        e.ToStatus,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) publishBestEffort(ctx context.Context, result TransitionResult, actor ports.Actor) {
	if s.events == nil {
		return
	}
	err := s.events.PublishTransition(ctx, ports.TransitionEvent{
		VersionID: result.VersionID,
		GameID:    result.GameID,
		Version:   result.Version,
		From:      string(result.From),
		To:        string(result.To),
		Action:    string(result.Action),
		Role:      string(result.Role),
		Actor:     actor.UserID,
		At:        s.nowUTCString(),
	})
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "versions.service")),
			"publish transition event failed",
			slog.String("version_id", result.VersionID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
