package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, email, hashed_password, github_id, github_login, github_token, created_at, updated_at`

// Create inserts a new account. An empty ID is assigned a fresh UUID; the
// caller reads it back from the passed struct's Email lookup if needed.
func (r *UserRepo) Create(ctx context.Context, user model.User) error {
	const query = `INSERT INTO users (id, name, email, hashed_password, github_id, github_login, github_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		user.ID, user.Name, user.Email,
		nullString(user.HashedPassword), nullInt64(user.GitHubID),
		nullString(user.GitHubLogin), nullString(user.GitHubToken),
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("create user %s: %w", user.Email, driven.ErrEmailTaken)
		}
		return fmt.Errorf("create user %s: %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by id. Returns ErrUserNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email. Returns ErrUserNotFound when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.getOne(ctx, query, email)
}

// GetByGitHubID retrieves a user by linked GitHub id. Returns
// ErrUserNotFound when no account is linked to it.
func (r *UserRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE github_id = ?`
	return r.getOne(ctx, query, githubID)
}

// LinkGitHub stores the GitHub identity and access token on an existing
// account. The token is replaced on every call so a refreshed OAuth grant
// always wins.
func (r *UserRepo) LinkGitHub(ctx context.Context, userID string, githubID int64, githubLogin, token string) error {
	const query = `UPDATE users SET github_id = ?, github_login = ?, github_token = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		githubID, githubLogin, token, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("link github for user %s: %w", userID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("link github for user %s: %w", userID, driven.ErrUserNotFound)
	}

	return nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.Reader.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func scanUser(s scanner) (*model.User, error) {
	var (
		user               model.User
		hashedPassword     sql.NullString
		githubID           sql.NullInt64
		githubLogin        sql.NullString
		githubToken        sql.NullString
		createdAt, updated string
	)

	err := s.Scan(&user.ID, &user.Name, &user.Email, &hashedPassword,
		&githubID, &githubLogin, &githubToken, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	user.HashedPassword = hashedPassword.String
	user.GitHubID = githubID.Int64
	user.GitHubLogin = githubLogin.String
	user.GitHubToken = githubToken.String

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &user, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
