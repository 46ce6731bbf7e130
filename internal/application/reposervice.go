package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// ListPageSize is the fixed page size for repository and feedback listings.
const ListPageSize = 10

// RepoService manages the user's selected repositories and their link to
// GitHub: import listing, selection, manual add, re-sync, and removal.
type RepoService struct {
	repos     driven.RepoStore
	users     driven.UserStore
	images    driven.ImageStore
	assets    driven.AssetStore
	newClient driven.GitHubClientFactory
}

func NewRepoService(
	repos driven.RepoStore,
	users driven.UserStore,
	images driven.ImageStore,
	assets driven.AssetStore,
	newClient driven.GitHubClientFactory,
) *RepoService {
	return &RepoService{
		repos:     repos,
		users:     users,
		images:    images,
		assets:    assets,
		newClient: newClient,
	}
}

// clientFor builds a GitHub client bound to the user's stored OAuth token.
func (s *RepoService) clientFor(ctx context.Context, userID string) (driven.GitHubClient, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasGitHubToken() {
		return nil, driven.ErrNoGitHubToken
	}
	return s.newClient(user.GitHubToken), nil
}

// ListAvailable returns the user's GitHub repositories that have not been
// selected yet, most recently updated first. The selected-id set is passed
// down so the client drops them page by page.
func (s *RepoService) ListAvailable(ctx context.Context, userID string) ([]model.GitHubRepo, error) {
	selected, err := s.repos.SelectedGitHubIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return client.ListUserRepos(ctx, selected)
}

// Add imports a repository from a GitHub API payload. Duplicate selections
// surface as driven.ErrRepoAlreadySelected.
func (s *RepoService) Add(ctx context.Context, userID string, gh model.GitHubRepo) (*model.SelectedRepository, error) {
	repo := selectedFromGitHub(userID, gh)
	if err := s.repos.Add(ctx, repo); err != nil {
		return nil, err
	}

	slog.Info("repository selected", "user_id", userID, "repo", repo.FullName)

	return s.repos.GetByID(ctx, userID, repo.ID)
}

// AddByName imports a repository by its owner/name pair, fetching the
// attributes from GitHub first.
func (s *RepoService) AddByName(ctx context.Context, userID, fullName string) (*model.SelectedRepository, error) {
	owner, name, err := model.SplitFullName(fullName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	gh, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	return s.Add(ctx, userID, *gh)
}

// List returns one page of the user's selections filtered by an optional
// text query.
func (s *RepoService) List(ctx context.Context, userID, query string, page int) (*driven.RepoPage, error) {
	return s.repos.List(ctx, userID, query, page, ListPageSize)
}

// Get returns one selection scoped to its owner.
func (s *RepoService) Get(ctx context.Context, userID, id string) (*model.SelectedRepository, error) {
	return s.repos.GetByID(ctx, userID, id)
}

// Update rewrites the editable attributes of a selection.
func (s *RepoService) Update(ctx context.Context, repo model.SelectedRepository) (*model.SelectedRepository, error) {
	if err := s.repos.Update(ctx, repo); err != nil {
		return nil, err
	}
	return s.repos.GetByID(ctx, repo.UserID, repo.ID)
}

// Sync refreshes a selection from the current GitHub repository state.
func (s *RepoService) Sync(ctx context.Context, userID, id string) (*model.SelectedRepository, error) {
	repo, err := s.repos.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	owner, name, err := repo.OwnerRepo()
	if err != nil {
		return nil, err
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	gh, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	refreshed := selectedFromGitHub(userID, *gh)
	refreshed.ID = repo.ID
	refreshed.CreatedAt = repo.CreatedAt
	if err := s.repos.Update(ctx, refreshed); err != nil {
		return nil, err
	}

	slog.Info("repository synced", "user_id", userID, "repo", refreshed.FullName)

	return s.repos.GetByID(ctx, userID, id)
}

// Delete removes a selection. Remote image assets of all dependent feedback
// are destroyed best-effort first; the row delete then cascades over
// feedback and image rows.
func (s *RepoService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.repos.GetByID(ctx, userID, id); err != nil {
		return err
	}

	images, err := s.images.ListByRepository(ctx, id)
	if err != nil {
		return err
	}
	for _, img := range images {
		if err := s.assets.Delete(ctx, img.URL); err != nil {
			slog.Warn("failed to delete remote image asset", "url", img.URL, "error", err)
		}
	}

	if err := s.repos.Delete(ctx, userID, id); err != nil {
		return err
	}

	slog.Info("repository removed", "user_id", userID, "repository_id", id, "images_cleaned", len(images))

	return nil
}

func selectedFromGitHub(userID string, gh model.GitHubRepo) model.SelectedRepository {
	return model.SelectedRepository{
		ID:              uuid.NewString(),
		UserID:          userID,
		GitHubRepoID:    gh.ID,
		Name:            gh.Name,
		FullName:        gh.FullName,
		Description:     gh.Description,
		HTMLURL:         gh.HTMLURL,
		Private:         gh.Private,
		Language:        gh.Language,
		StargazersCount: gh.StargazersCount,
		ForksCount:      gh.ForksCount,
		GitHubUpdatedAt: gh.UpdatedAt,
	}
}
