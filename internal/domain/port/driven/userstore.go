// Package driven defines the driven-side port interfaces and their
// sentinel errors. Adapters implement these; application services depend
// only on them.
package driven

import (
	"context"
	"errors"

	"github.com/undermod/gitback/internal/domain/model"
)

// Sentinel errors returned by UserStore implementations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
)

// UserStore defines the driven port for account persistence.
// Create returns ErrEmailTaken when the email is already registered.
// Lookups return ErrUserNotFound when no matching row exists.
type UserStore interface {
	Create(ctx context.Context, user model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	// LinkGitHub stores the GitHub identity and access token on an
	// existing account. Called on every OAuth callback so a refreshed
	// token always replaces the stored one.
	LinkGitHub(ctx context.Context, userID string, githubID int64, githubLogin, token string) error
}
