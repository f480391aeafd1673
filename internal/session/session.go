package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/bookstore/internal/models"
)

var (
	ErrNoToken    = errors.New("no persisted token")
	ErrEmptyToken = errors.New("token is empty")
	ErrSuperseded = errors.New("session operation superseded by a newer one")
	ErrClosed     = errors.New("session store closed")
)

type State int

const (
	Uninitialized State = iota
	Hydrating
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Hydrating:
		return "hydrating"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// Snapshot is an immutable copy of the session at one point in time.
type Snapshot struct {
	Token   string
	User    *models.UserIdentity
	Loading bool
	State   State
	// ExpiresAt is read from the token's exp claim when the token is a JWT.
	ExpiresAt time.Time
}

// IsAuthenticated never reports true for a token whose identity has not been
// resolved yet.
func (s Snapshot) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

func (s Snapshot) IsAdmin() bool {
	return s.User.IsAdmin()
}

// TokenStorage is the durable single-slot home of the bearer token.
type TokenStorage interface {
	// Load returns ErrNoToken when the slot is empty.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type IdentityExchanger interface {
	TokenInfo(ctx context.Context, token string) (*models.UserIdentity, error)
}

type LogoutNotifier interface {
	Logout(ctx context.Context, token string) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
