package model

import "strings"

// FeedbackType categorizes a feedback submission.
type FeedbackType string

const (
	FeedbackTypeBug            FeedbackType = "BUG"
	FeedbackTypeFeatureRequest FeedbackType = "FEATURE_REQUEST"
	FeedbackTypeOther          FeedbackType = "OTHER"
)

// ParseFeedbackType matches s against the known types case-insensitively.
// Returns false when s is not a valid type.
func ParseFeedbackType(s string) (FeedbackType, bool) {
	switch FeedbackType(strings.ToUpper(s)) {
	case FeedbackTypeBug:
		return FeedbackTypeBug, true
	case FeedbackTypeFeatureRequest:
		return FeedbackTypeFeatureRequest, true
	case FeedbackTypeOther:
		return FeedbackTypeOther, true
	}
	return "", false
}

// IssueLabel returns the GitHub label derived from the type: lower-cased
// with underscores replaced by hyphens, e.g. "feature-request".
func (t FeedbackType) IssueLabel() string {
	return strings.ReplaceAll(strings.ToLower(string(t)), "_", "-")
}

// FeedbackStatus tracks a feedback item through triage.
//
// Legal transitions: PENDING → SUBMITTED (via successful issue publication
// only) and PENDING → REJECTED (manual). SUBMITTED is terminal once the
// issue URL is recorded.
type FeedbackStatus string

const (
	FeedbackStatusPending   FeedbackStatus = "PENDING"
	FeedbackStatusSubmitted FeedbackStatus = "SUBMITTED"
	FeedbackStatusRejected  FeedbackStatus = "REJECTED"
)

// ParseFeedbackStatus matches s against the known statuses case-insensitively.
func ParseFeedbackStatus(s string) (FeedbackStatus, bool) {
	switch FeedbackStatus(strings.ToUpper(s)) {
	case FeedbackStatusPending:
		return FeedbackStatusPending, true
	case FeedbackStatusSubmitted:
		return FeedbackStatusSubmitted, true
	case FeedbackStatusRejected:
		return FeedbackStatusRejected, true
	}
	return "", false
}
