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

// RegisterGame creates a game owned by the acting developer.
func (s *Service) RegisterGame(ctx context.Context, input RegisterGameInput) (GameDetail, error) {
	if err := s.ready(ctx); err != nil {
		return GameDetail{}, err
	}
	if !input.Actor.Valid() {
		return GameDetail{}, errActorRequired
	}
	if !canAuthor(input.Actor) {
		return GameDetail{}, errs.Wrap(ErrForbidden, "register game requires developer or admin role")
	}

	gameID := strings.TrimSpace(input.GameID)
	if res := version.ValidateGameID(gameID); !res.Valid {
		return GameDetail{}, errs.New(errs.KindValidation, res.Error)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = gameID
	}

	now := s.nowUTCString()
	var created ports.GameRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.repo.CreateGame(txCtx, ports.GameRecord{
			GameID:    gameID,
			Title:     title,
			OwnerID:   input.Actor.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	}); err != nil {
		return GameDetail{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "versions.service")),
		"game registered",
		slog.String("game_id", gameID),
		slog.String("owner_id", input.Actor.UserID),
	)
	return toGameDetail(created), nil
}

func (s *Service) GetGame(ctx context.Context, gameID string) (GameDetail, error) {
	if err := s.ready(ctx); err != nil {
		return GameDetail{}, err
	}
	game, err := s.repo.GetGame(ctx, strings.TrimSpace(gameID))
	if err != nil {
		return GameDetail{}, err
	}
	return toGameDetail(game), nil
}

// ListGames returns the actor's own games; admins and reviewers see every game.
func (s *Service) ListGames(ctx context.Context, actor ports.Actor) ([]GameDetail, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if !actor.Valid() {
		return nil, errActorRequired
	}

	owner := actor.UserID
	if seesAllGames(actor) {
		owner = ""
	}
	games, err := s.repo.ListGames(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]GameDetail, 0, len(games))
	for _, g := range games {
		out = append(out, toGameDetail(g))
	}
	return out, nil
}

func seesAllGames(actor ports.Actor) bool {
	for _, r := range actor.Roles {
		switch r {
		case version.RoleAdmin, version.RoleQC, version.RoleCTO, version.RoleCEO:
			return true
		}
	}
	return false
}
