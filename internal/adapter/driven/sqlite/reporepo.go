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
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

const repoColumns = `id, user_id, github_repo_id, name, full_name, description, html_url, private,
	language, stargazers_count, forks_count, github_updated_at, created_at, updated_at`

// Add inserts a selection. The UNIQUE (user_id, github_repo_id) constraint
// is the duplicate guard; no pre-check precedes the insert.
func (r *RepoRepo) Add(ctx context.Context, repo model.SelectedRepository) error {
	const query = `INSERT INTO user_selected_repositories
		(id, user_id, github_repo_id, name, full_name, description, html_url, private,
		 language, stargazers_count, forks_count, github_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if repo.ID == "" {
		repo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	if repo.UpdatedAt.IsZero() {
		repo.UpdatedAt = now
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		repo.ID, repo.UserID, repo.GitHubRepoID, repo.Name, repo.FullName,
		repo.Description, repo.HTMLURL, boolToInt(repo.Private),
		repo.Language, repo.StargazersCount, repo.ForksCount,
		nullTime(repo.GitHubUpdatedAt), formatTime(repo.CreatedAt), formatTime(repo.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrRepoAlreadySelected)
		}
		return fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	return nil
}

// GetByID retrieves one selection scoped to its owner. A repository owned
// by another user behaves as if it did not exist.
func (r *RepoRepo) GetByID(ctx context.Context, userID, id string) (*model.SelectedRepository, error) {
	query := `SELECT ` + repoColumns + ` FROM user_selected_repositories WHERE id = ? AND user_id = ?`

	repo, err := scanSelectedRepository(r.db.Reader.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrRepoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}

	return repo, nil
}

// GetAny retrieves one selection without owner scoping, for the public
// feedback intake.
func (r *RepoRepo) GetAny(ctx context.Context, id string) (*model.SelectedRepository, error) {
	query := `SELECT ` + repoColumns + ` FROM user_selected_repositories WHERE id = ?`

	repo, err := scanSelectedRepository(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrRepoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}

	return repo, nil
}

// List filters the user's selections case-insensitively over name, full
// name and description, newest-updated first, paginated.
func (r *RepoRepo) List(ctx context.Context, userID, query string, page, pageSize int) (*driven.RepoPage, error) {
	where := `WHERE user_id = ?`
	args := []any{userID}

	if query != "" {
		where += ` AND (name LIKE ? OR full_name LIKE ? OR description LIKE ?)`
		p := likePattern(query)
		args = append(args, p, p, p)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM user_selected_repositories ` + where
	if err := r.db.Reader.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count repositories: %w", err)
	}

	if page < 1 {
		page = 1
	}
	listQuery := `SELECT ` + repoColumns + ` FROM user_selected_repositories ` + where +
		` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Reader.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	items := []model.SelectedRepository{}
	for rows.Next() {
		repo, err := scanSelectedRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		items = append(items, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return &driven.RepoPage{
		Items:      items,
		TotalCount: total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// Update rewrites the mutable attributes of a selection (manual edit or
// re-sync from GitHub). Returns ErrRepoNotFound if the row does not exist
// for the owning user.
func (r *RepoRepo) Update(ctx context.Context, repo model.SelectedRepository) error {
	const query = `UPDATE user_selected_repositories
		SET name = ?, full_name = ?, description = ?, html_url = ?, private = ?,
		    language = ?, stargazers_count = ?, forks_count = ?, github_updated_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		repo.Name, repo.FullName, repo.Description, repo.HTMLURL, boolToInt(repo.Private),
		repo.Language, repo.StargazersCount, repo.ForksCount,
		nullTime(repo.GitHubUpdatedAt), formatTime(time.Now()),
		repo.ID, repo.UserID,
	)
	if err != nil {
		return fmt.Errorf("update repository %s: %w", repo.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update repository %s: %w", repo.ID, driven.ErrRepoNotFound)
	}

	return nil
}

// Delete removes a selection. Foreign-key cascade removes all dependent
// feedback and image rows in the same statement.
func (r *RepoRepo) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM user_selected_repositories WHERE id = ? AND user_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete repository %s: %w", id, driven.ErrRepoNotFound)
	}

	return nil
}

// SelectedGitHubIDs returns the GitHub repo ids the user already imported.
func (r *RepoRepo) SelectedGitHubIDs(ctx context.Context, userID string) (map[int64]bool, error) {
	const query = `SELECT github_repo_id FROM user_selected_repositories WHERE user_id = ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list selected github ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan github id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate github ids: %w", err)
	}

	return ids, nil
}

// Count returns the number of repositories the user has selected.
func (r *RepoRepo) Count(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM user_selected_repositories WHERE user_id = ?`

	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count repositories: %w", err)
	}

	return n, nil
}

func scanSelectedRepository(s scanner) (*model.SelectedRepository, error) {
	var (
		repo               model.SelectedRepository
		private            int
		githubUpdatedAt    sql.NullString
		createdAt, updated string
	)

	err := s.Scan(&repo.ID, &repo.UserID, &repo.GitHubRepoID, &repo.Name, &repo.FullName,
		&repo.Description, &repo.HTMLURL, &private, &repo.Language,
		&repo.StargazersCount, &repo.ForksCount, &githubUpdatedAt, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	repo.Private = private != 0

	if githubUpdatedAt.Valid {
		if repo.GitHubUpdatedAt, err = parseTime(githubUpdatedAt.String); err != nil {
			return nil, fmt.Errorf("parse github_updated_at: %w", err)
		}
	}
	if repo.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if repo.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &repo, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
