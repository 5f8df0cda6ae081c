package ports

import (
	"context"
	"errors"
	"strings"

	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
)

var ErrUnauthenticated = errs.WithKind(errors.New("authentication required"), errs.KindUnauthenticated)

// Actor is the acting user and the global roles granted to them. Ownership of a
// game is not a global role; services derive version.RoleOwner per game.
type Actor struct {
	UserID string
	Roles  []version.Role
}

func (a Actor) IsAdmin() bool {
	return version.HasRole(a.Roles, version.RoleAdmin)
}

func (a Actor) Valid() bool {
	return strings.TrimSpace(a.UserID) != ""
}

// RolesFor returns the actor's roles for a game owned by ownerID, owner first.
func (a Actor) RolesFor(ownerID string) []version.Role {
	out := make([]version.Role, 0, len(a.Roles)+1)
	if a.Valid() && a.UserID == ownerID {
		out = append(out, version.RoleOwner)
	}
	for _, r := range a.Roles {
		if r != version.RoleOwner {
			out = append(out, r)
		}
	}
	return out
}

// IdentityProvider turns a bearer credential into an Actor.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (Actor, error)
}
