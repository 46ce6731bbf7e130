// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github
// library, bound to one user's OAuth access token.
type Client struct {
	gh *gh.Client
}

// NewClient creates a GitHub API client for the given access token with the
// following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with bearer auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// Factory adapts NewClient to the GitHubClientFactory port for the
// composition root.
func Factory(token string) driven.GitHubClient {
	return NewClient(token)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ListUserRepos retrieves every repository visible to the authenticated
// user, sorted most-recently-updated first. It handles pagination
// automatically (100 per page), dropping excluded ids page by page; any
// failed page aborts the whole fetch.
func (c *Client) ListUserRepos(ctx context.Context, exclude map[int64]bool) ([]model.GitHubRepo, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	all := []model.GitHubRepo{}

	for {
		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing user repositories (page %d): %w: %w",
				opts.Page, driven.ErrGitHubUnavailable, err)
		}

		logRateLimit(resp, "user/repos", opts.Page, len(repos))

		for _, repo := range repos {
			if exclude[repo.GetID()] {
				continue
			}
			all = append(all, mapRepository(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetRepository fetches a single repository by owner and name. A 404 is
// translated to ErrGitHubRepoNotFound so callers can render a specific
// message.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*model.GitHubRepo, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("fetching %s/%s: %w", owner, repo, driven.ErrGitHubRepoNotFound)
		}
		return nil, fmt.Errorf("fetching %s/%s: %w: %w", owner, repo, driven.ErrGitHubUnavailable, err)
	}

	logRateLimit(resp, owner+"/"+repo, 0, 1)

	mapped := mapRepository(r)
	return &mapped, nil
}

// CreateIssue opens an issue and returns its HTML URL. A 404 is translated
// to ErrGitHubRepoNotFound.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, req driven.IssueRequest) (string, error) {
	issueReq := &gh.IssueRequest{
		Title: gh.Ptr(req.Title),
		Body:  gh.Ptr(req.Body),
	}
	if len(req.Labels) > 0 {
		issueReq.Labels = &req.Labels
	}

	issue, resp, err := c.gh.Issues.Create(ctx, owner, repo, issueReq)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("creating issue in %s/%s: %w", owner, repo, driven.ErrGitHubRepoNotFound)
		}
		return "", fmt.Errorf("creating issue in %s/%s: %w: %w", owner, repo, driven.ErrGitHubUnavailable, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/issues", 0, 1)

	return issue.GetHTMLURL(), nil
}

// mapRepository converts a go-github Repository to the domain type. It uses
// GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) model.GitHubRepo {
	return model.GitHubRepo{
		ID:              r.GetID(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		Description:     r.GetDescription(),
		HTMLURL:         r.GetHTMLURL(),
		Private:         r.GetPrivate(),
		Language:        r.GetLanguage(),
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		UpdatedAt:       r.GetUpdatedAt().Time,
	}
}

// isNotFound reports whether err is a GitHub 404 response.
func isNotFound(err error) bool {
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
