package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

const issuer = "gamepub"

// UserClaims carries the publisher identity in an HS256 token.
type UserClaims struct {
	UserID string   `json:"uid"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.IdentityProvider = (*JWTProvider)(nil)

func NewJWTProvider(secret string, ttl time.Duration) (*JWTProvider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTProvider{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// IssueToken signs a token for userID with the given global roles.
func (p *JWTProvider) IssueToken(userID string, roles []version.Role) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return "", errs.Wrapf(version.ErrUnknownRole, "role %q", r)
		}
		if r == version.RoleOwner {
			continue
		}
		names = append(names, string(r))
	}

	now := p.now()
	claims := UserClaims{
		UserID: userID,
		Roles:  names,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", errs.Wrap(err, "sign token")
	}
	return signed, nil
}

func (p *JWTProvider) Authenticate(ctx context.Context, token string) (ports.Actor, error) {
	if ctx == nil {
		return ports.Actor{}, errors.New("context is required")
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ports.Actor{}, ports.ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &UserClaims{}, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return ports.Actor{}, errs.Wrapf(ports.ErrUnauthenticated, "parse token: %v", err)
	}
	claims, ok := parsed.Claims.(*UserClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return ports.Actor{}, errs.Wrap(ports.ErrUnauthenticated, "invalid token claims")
	}

	roles, err := version.ParseRoles(claims.Roles)
	if err != nil {
		return ports.Actor{}, errs.Wrapf(ports.ErrUnauthenticated, "token roles: %v", err)
	}
	return ports.Actor{UserID: claims.UserID, Roles: roles}, nil
}
