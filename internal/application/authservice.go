// Package application contains the use-case services. Each service depends
// only on port interfaces so it can be tested with in-memory fakes.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/auth"
	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrValidation wraps input validation failures so handlers can map
	// them to a 400 response.
	ErrValidation = errors.New("validation failed")
)

// validate is the shared validator instance for all service input structs.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SignupInput is the validated payload for account creation.
type SignupInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AuthService manages accounts: email/password signup and login, plus
// linking a GitHub identity after the OAuth callback.
type AuthService struct {
	users driven.UserStore
}

func NewAuthService(users driven.UserStore) *AuthService {
	return &AuthService{users: users}
}

// Signup creates a new account with a bcrypt-hashed password.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := model.User{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		HashedPassword: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user signed up", "user_id", user.ID)

	return s.users.GetByID(ctx, user.ID)
}

// Login verifies an email/password pair and returns the account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, driven.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.HashedPassword == "" {
		// OAuth-only account, no password set.
		return nil, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.HashedPassword, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Me returns the account behind a session.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// LinkGitHub attaches a GitHub identity and access token to an existing
// account. Used when an already signed-in user connects GitHub.
func (s *AuthService) LinkGitHub(ctx context.Context, userID string, ghUser *auth.GitHubUser, token string) (*model.User, error) {
	if err := s.users.LinkGitHub(ctx, userID, ghUser.ID, ghUser.Login, token); err != nil {
		return nil, err
	}

	slog.Info("github identity linked", "user_id", userID, "github_login", ghUser.Login)

	return s.users.GetByID(ctx, userID)
}

// UpsertFromGitHub resolves the account for a completed OAuth exchange and
// stores the granted access token. Match order: existing GitHub link, then
// email, then a fresh account.
func (s *AuthService) UpsertFromGitHub(ctx context.Context, ghUser *auth.GitHubUser, token string) (*model.User, error) {
	user, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	switch {
	case err == nil:
		if err := s.users.LinkGitHub(ctx, user.ID, ghUser.ID, ghUser.Login, token); err != nil {
			return nil, err
		}
		return s.users.GetByID(ctx, user.ID)
	case !errors.Is(err, driven.ErrUserNotFound):
		return nil, err
	}

	if ghUser.Email != "" {
		user, err = s.users.GetByEmail(ctx, ghUser.Email)
		switch {
		case err == nil:
			if err := s.users.LinkGitHub(ctx, user.ID, ghUser.ID, ghUser.Login, token); err != nil {
				return nil, err
			}
			slog.Info("github identity linked to existing account", "user_id", user.ID)
			return s.users.GetByID(ctx, user.ID)
		case !errors.Is(err, driven.ErrUserNotFound):
			return nil, err
		}
	}

	name := ghUser.Name
	if name == "" {
		name = ghUser.Login
	}
	email := ghUser.Email
	if email == "" {
		// GitHub hides the email when the user opts out of sharing it.
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", ghUser.ID, ghUser.Login)
	}

	created := model.User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
	}
	if err := s.users.Create(ctx, created); err != nil {
		return nil, err
	}
	if err := s.users.LinkGitHub(ctx, created.ID, ghUser.ID, ghUser.Login, token); err != nil {
		return nil, err
	}

	slog.Info("user created from github oauth", "user_id", created.ID, "github_login", ghUser.Login)

	return s.users.GetByID(ctx, created.ID)
}
