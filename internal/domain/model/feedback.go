package model

import "time"

// Feedback is a single submission against a selected repository, created by
// the public form or by the owner.
type Feedback struct {
	ID             string
	RepositoryID   string
	UserName       string // submitter, not the repository owner
	UserEmail      string
	Title          string
	Content        string
	Type           FeedbackType
	Status         FeedbackStatus
	GitHubIssueURL string // set only by the mark-submitted operation
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsSubmitted reports whether the feedback reached its terminal state.
func (f *Feedback) IsSubmitted() bool {
	return f.Status == FeedbackStatusSubmitted && f.GitHubIssueURL != ""
}

// FeedbackImage is an uploaded attachment owned by exactly one feedback row.
type FeedbackImage struct {
	ID         string
	FeedbackID string
	URL        string
}
