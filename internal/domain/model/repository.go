package model

import (
	"fmt"
	"strings"
	"time"
)

// SelectedRepository is a user's claim on one GitHub repository for
// feedback collection. (UserID, GitHubRepoID) is unique: a user cannot
// import the same GitHub repository twice.
type SelectedRepository struct {
	ID              string
	UserID          string
	GitHubRepoID    int64
	Name            string
	FullName        string // "owner/repo"
	Description     string
	HTMLURL         string
	Private         bool
	Language        string
	StargazersCount int
	ForksCount      int
	GitHubUpdatedAt time.Time // zero when never synced
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OwnerRepo splits FullName into its owner and repo components.
func (r *SelectedRepository) OwnerRepo() (string, string, error) {
	return SplitFullName(r.FullName)
}

// SplitFullName splits an "owner/repo" string into its two components.
func SplitFullName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// GitHubRepo is a repository as returned by the GitHub API, before it is
// selected. Only the fields the import flow needs are carried.
type GitHubRepo struct {
	ID              int64
	Name            string
	FullName        string
	Description     string
	HTMLURL         string
	Private         bool
	Language        string
	StargazersCount int
	ForksCount      int
	UpdatedAt       time.Time
}
