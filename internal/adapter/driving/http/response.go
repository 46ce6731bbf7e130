package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/undermod/gitback/internal/application"
	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// UserResponse is the JSON representation of an account. The GitHub token
// never leaves the server.
type UserResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	GitHubLogin     string `json:"github_login,omitempty"`
	GitHubConnected bool   `json:"github_connected"`
	CreatedAt       string `json:"created_at"`
}

// RepoResponse is the JSON representation of a selected repository.
type RepoResponse struct {
	ID              string `json:"id"`
	GitHubRepoID    int64  `json:"github_repo_id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	Private         bool   `json:"private"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	GitHubUpdatedAt string `json:"github_updated_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// GitHubRepoResponse is the JSON representation of an importable GitHub
// repository that has not been selected yet.
type GitHubRepoResponse struct {
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

// FeedbackResponse is the JSON representation of a feedback item.
type FeedbackResponse struct {
	ID             string          `json:"id"`
	RepositoryID   string          `json:"repository_id"`
	UserName       string          `json:"user_name"`
	UserEmail      string          `json:"user_email"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	ContentHTML    string          `json:"content_html,omitempty"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	GitHubIssueURL string          `json:"github_issue_url,omitempty"`
	Repository     *RepoResponse   `json:"repository,omitempty"`
	Images         []ImageResponse `json:"images,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// ImageResponse is the JSON representation of a feedback attachment.
type ImageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// RepoPageResponse is one page of the repository listing.
type RepoPageResponse struct {
	Items      []RepoResponse `json:"items"`
	TotalCount int            `json:"total_count"`
	TotalPages int            `json:"total_pages"`
	Page       int            `json:"page"`
}

// FeedbackPageResponse is one page of the feedback listing.
type FeedbackPageResponse struct {
	Items      []FeedbackResponse `json:"items"`
	TotalCount int                `json:"total_count"`
	TotalPages int                `json:"total_pages"`
	Page       int                `json:"page"`
}

// TrendPointResponse is one month bucket of the dashboard trend.
type TrendPointResponse struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SignupRequest is the JSON body for account creation.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AddRepoRequest is the JSON body for selecting a repository: either a
// GitHub API payload from the import listing, or just a full name for the
// manual add path.
type AddRepoRequest struct {
	FullName        string `json:"full_name"`
	GitHubRepoID    int64  `json:"github_repo_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	Private         bool   `json:"private"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	UpdatedAt       string `json:"updated_at"`
}

// UpdateRepoRequest is the JSON body for the repository edit endpoint.
type UpdateRepoRequest struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Private     bool   `json:"private"`
	Language    string `json:"language"`
}

func toUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		GitHubLogin:     u.GitHubLogin,
		GitHubConnected: u.HasGitHubToken(),
		CreatedAt:       u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toRepoResponse(r model.SelectedRepository) RepoResponse {
	resp := RepoResponse{
		ID:              r.ID,
		GitHubRepoID:    r.GitHubRepoID,
		Name:            r.Name,
		FullName:        r.FullName,
		Description:     r.Description,
		HTMLURL:         r.HTMLURL,
		Private:         r.Private,
		Language:        r.Language,
		StargazersCount: r.StargazersCount,
		ForksCount:      r.ForksCount,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !r.GitHubUpdatedAt.IsZero() {
		resp.GitHubUpdatedAt = r.GitHubUpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toGitHubRepoResponse(r model.GitHubRepo) GitHubRepoResponse {
	resp := GitHubRepoResponse{
		ID:              r.ID,
		Name:            r.Name,
		FullName:        r.FullName,
		Description:     r.Description,
		HTMLURL:         r.HTMLURL,
		Private:         r.Private,
		Language:        r.Language,
		StargazersCount: r.StargazersCount,
		ForksCount:      r.ForksCount,
	}
	if !r.UpdatedAt.IsZero() {
		resp.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toFeedbackResponse(f model.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:             f.ID,
		RepositoryID:   f.RepositoryID,
		UserName:       f.UserName,
		UserEmail:      f.UserEmail,
		Title:          f.Title,
		Content:        f.Content,
		Type:           string(f.Type),
		Status:         string(f.Status),
		GitHubIssueURL: f.GitHubIssueURL,
		CreatedAt:      f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toFeedbackDetailResponse renders the full detail view, content converted
// to sanitized HTML included.
func toFeedbackDetailResponse(d application.FeedbackDetail) FeedbackResponse {
	resp := toFeedbackResponse(d.Feedback)
	resp.ContentHTML = renderMarkdown(d.Feedback.Content)

	repo := toRepoResponse(d.Repository)
	resp.Repository = &repo

	resp.Images = make([]ImageResponse, 0, len(d.Images))
	for _, img := range d.Images {
		resp.Images = append(resp.Images, ImageResponse{ID: img.ID, URL: img.URL})
	}

	return resp
}

func toFeedbackPageResponse(page *driven.FeedbackPage, pageNum int) FeedbackPageResponse {
	items := make([]FeedbackResponse, 0, len(page.Items))
	for _, it := range page.Items {
		resp := toFeedbackResponse(it.Feedback)
		repo := toRepoResponse(it.Repository)
		resp.Repository = &repo
		items = append(items, resp)
	}

	return FeedbackPageResponse{
		Items:      items,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
		Page:       pageNum,
	}
}
