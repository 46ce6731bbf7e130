package driven

import (
	"context"
	"errors"

	"github.com/undermod/gitback/internal/domain/model"
)

// Sentinel errors returned by GitHubClient implementations.
var (
	// ErrNoGitHubToken indicates the user has no linked GitHub account,
	// so no API call was attempted.
	ErrNoGitHubToken = errors.New("no github access token for user")

	// ErrGitHubRepoNotFound indicates GitHub returned 404 for the
	// owner/repo pair.
	ErrGitHubRepoNotFound = errors.New("no repository with this owner or name was found")

	// ErrGitHubUnavailable wraps any other GitHub API failure; the
	// message carries the upstream status text and body.
	ErrGitHubUnavailable = errors.New("github api request failed")
)

// IssueRequest is the payload for creating a GitHub issue from feedback.
type IssueRequest struct {
	Title  string
	Body   string
	Labels []string
}

// GitHubClient defines the driven port for the GitHub REST API, bound to
// one user's access token.
type GitHubClient interface {
	// ListUserRepos pages through every repository visible to the
	// authenticated user (100 per page), dropping ids in exclude as each
	// page arrives. Any non-success page aborts the whole fetch.
	ListUserRepos(ctx context.Context, exclude map[int64]bool) ([]model.GitHubRepo, error)
	// GetRepository fetches a single repository. Returns
	// ErrGitHubRepoNotFound on 404.
	GetRepository(ctx context.Context, owner, repo string) (*model.GitHubRepo, error)
	// CreateIssue opens an issue and returns its HTML URL. Returns
	// ErrGitHubRepoNotFound on 404.
	CreateIssue(ctx context.Context, owner, repo string, req IssueRequest) (string, error)
}

// GitHubClientFactory builds a client for the given access token. The
// composition root supplies the real constructor; tests supply fakes.
type GitHubClientFactory func(token string) GitHubClient
