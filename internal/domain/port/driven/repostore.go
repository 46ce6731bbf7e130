package driven

import (
	"context"
	"errors"

	"github.com/undermod/gitback/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist
	// or is not owned by the calling user.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadySelected indicates the user has already imported the
	// GitHub repository. Raised by the unique (user_id, github_repo_id)
	// constraint, not by a separate pre-check.
	ErrRepoAlreadySelected = errors.New("repository already selected")
)

// RepoPage is one page of a filtered repository listing.
type RepoPage struct {
	Items      []model.SelectedRepository
	TotalCount int
	TotalPages int
}

// RepoStore defines the driven port for selected-repository persistence.
// All operations are scoped to the owning user: a repository belonging to
// another user behaves as if it did not exist.
type RepoStore interface {
	// Add inserts a selection. Returns ErrRepoAlreadySelected when the
	// user already imported the same GitHub repository.
	Add(ctx context.Context, repo model.SelectedRepository) error
	GetByID(ctx context.Context, userID, id string) (*model.SelectedRepository, error)
	// GetAny retrieves a selection regardless of owner. Used by the public
	// feedback intake, which knows only the repository id.
	GetAny(ctx context.Context, id string) (*model.SelectedRepository, error)
	// List filters case-insensitively over name, full name and
	// description, newest-updated first, pageSize items per page.
	List(ctx context.Context, userID, query string, page, pageSize int) (*RepoPage, error)
	Update(ctx context.Context, repo model.SelectedRepository) error
	// Delete removes the selection; dependent feedback and image rows go
	// with it via foreign-key cascade.
	Delete(ctx context.Context, userID, id string) error
	// SelectedGitHubIDs returns the set of GitHub repository ids the user
	// has already imported, used to filter the import listing.
	SelectedGitHubIDs(ctx context.Context, userID string) (map[int64]bool, error)
	Count(ctx context.Context, userID string) (int, error)
}
