package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/undermod/gitback/internal/adapter/driven/github"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) (*ghAdapter.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	require.NoError(t, err)

	return client, server
}

// repoJSON is a helper struct for building GitHub API repository responses.
type repoJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	Private         bool   `json:"private"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func TestListUserRepos_SinglePage(t *testing.T) {
	repos := []repoJSON{
		{
			ID:              101,
			Name:            "hello-world",
			FullName:        "octocat/hello-world",
			Description:     "My first repository",
			HTMLURL:         "https://github.com/octocat/hello-world",
			Language:        "Go",
			StargazersCount: 80,
			ForksCount:      9,
			UpdatedAt:       "2026-01-02T12:00:00Z",
		},
		{
			ID:        102,
			Name:      "secret-plans",
			FullName:  "octocat/secret-plans",
			HTMLURL:   "https://github.com/octocat/secret-plans",
			Private:   true,
			UpdatedAt: "2026-01-01T00:00:00Z",
		},
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/repos", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(repos)
	})

	client, _ := newTestClient(t, handler)
	result, err := client.ListUserRepos(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, int64(101), result[0].ID)
	assert.Equal(t, "hello-world", result[0].Name)
	assert.Equal(t, "octocat/hello-world", result[0].FullName)
	assert.Equal(t, "My first repository", result[0].Description)
	assert.Equal(t, "Go", result[0].Language)
	assert.Equal(t, 80, result[0].StargazersCount)
	assert.Equal(t, 9, result[0].ForksCount)
	assert.False(t, result[0].Private)
	assert.False(t, result[0].UpdatedAt.IsZero())

	assert.Equal(t, int64(102), result[1].ID)
	assert.True(t, result[1].Private)
}

func TestListUserRepos_Pagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")

		w.Header().Set("Content-Type", "application/json")

		if page == "" || page == "1" {
			// Page 1: include Link header pointing to page 2
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
			json.NewEncoder(w).Encode([]repoJSON{
				{ID: 1, Name: "one", FullName: "octocat/one", UpdatedAt: "2026-01-02T00:00:00Z"},
			})
		} else {
			// Page 2: no Link header (last page)
			json.NewEncoder(w).Encode([]repoJSON{
				{ID: 2, Name: "two", FullName: "octocat/two", UpdatedAt: "2026-01-01T00:00:00Z"},
			})
		}
	})

	client, _ := newTestClient(t, handler)
	result, err := client.ListUserRepos(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "octocat/one", result[0].FullName)
	assert.Equal(t, "octocat/two", result[1].FullName)
}

func TestListUserRepos_ExcludesPerPage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")

		w.Header().Set("Content-Type", "application/json")

		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
			json.NewEncoder(w).Encode([]repoJSON{
				{ID: 1, Name: "one", FullName: "octocat/one", UpdatedAt: "2026-01-04T00:00:00Z"},
				{ID: 2, Name: "two", FullName: "octocat/two", UpdatedAt: "2026-01-03T00:00:00Z"},
			})
		} else {
			json.NewEncoder(w).Encode([]repoJSON{
				{ID: 3, Name: "three", FullName: "octocat/three", UpdatedAt: "2026-01-02T00:00:00Z"},
				{ID: 4, Name: "four", FullName: "octocat/four", UpdatedAt: "2026-01-01T00:00:00Z"},
			})
		}
	})

	client, _ := newTestClient(t, handler)
	result, err := client.ListUserRepos(context.Background(), map[int64]bool{1: true, 4: true})

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "octocat/two", result[0].FullName)
	assert.Equal(t, "octocat/three", result[1].FullName)
}

func TestListUserRepos_Empty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]repoJSON{})
	})

	client, _ := newTestClient(t, handler)
	result, err := client.ListUserRepos(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestListUserRepos_APIError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.ListUserRepos(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrGitHubUnavailable)
	assert.Contains(t, err.Error(), "listing user repositories")
	assert.Contains(t, err.Error(), "401")
}

func TestGetRepository(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/hello-world", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(repoJSON{
			ID:       101,
			Name:     "hello-world",
			FullName: "octocat/hello-world",
			HTMLURL:  "https://github.com/octocat/hello-world",
		})
	})

	client, _ := newTestClient(t, handler)
	repo, err := client.GetRepository(context.Background(), "octocat", "hello-world")

	require.NoError(t, err)
	assert.Equal(t, int64(101), repo.ID)
	assert.Equal(t, "octocat/hello-world", repo.FullName)
}

func TestGetRepository_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.GetRepository(context.Background(), "octocat", "nope")

	assert.ErrorIs(t, err, driven.ErrGitHubRepoNotFound)
}

func TestCreateIssue(t *testing.T) {
	var received struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels"`
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/octocat/hello-world/issues", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 12, "html_url": "https://github.com/octocat/hello-world/issues/12"}`)
	})

	client, _ := newTestClient(t, handler)
	url, err := client.CreateIssue(context.Background(), "octocat", "hello-world", driven.IssueRequest{
		Title:  "Crash on save",
		Body:   "Steps to reproduce",
		Labels: []string{"bug"},
	})

	require.NoError(t, err)
	assert.Equal(t, "https://github.com/octocat/hello-world/issues/12", url)
	assert.Equal(t, "Crash on save", received.Title)
	assert.Equal(t, "Steps to reproduce", received.Body)
	assert.Equal(t, []string{"bug"}, received.Labels)
}

func TestCreateIssue_RepoNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.CreateIssue(context.Background(), "octocat", "gone", driven.IssueRequest{
		Title: "x", Body: "y",
	})

	assert.ErrorIs(t, err, driven.ErrGitHubRepoNotFound)
}

func TestCreateIssue_UpstreamFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "Resource not accessible by integration"}`)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.CreateIssue(context.Background(), "octocat", "hello-world", driven.IssueRequest{
		Title: "x", Body: "y",
	})

	assert.ErrorIs(t, err, driven.ErrGitHubUnavailable)
	assert.Contains(t, err.Error(), "403")
}
