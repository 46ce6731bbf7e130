package model

import "time"

// User is an account that owns selected repositories. A user signs up with
// email/password, via GitHub OAuth, or both (a linked account).
type User struct {
	ID             string
	Name           string
	Email          string
	HashedPassword string // empty for OAuth-only accounts
	GitHubID       int64  // 0 when no GitHub account is linked
	GitHubLogin    string
	GitHubToken    string // OAuth access token; empty until GitHub is linked
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasGitHubToken reports whether the user can call the GitHub API.
func (u *User) HasGitHubToken() bool {
	return u.GitHubToken != ""
}
