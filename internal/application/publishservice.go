package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// PublishService converts a feedback into a GitHub issue on the parent
// repository and marks the feedback submitted with the issue URL.
type PublishService struct {
	feedbacks driven.FeedbackStore
	repos     driven.RepoStore
	images    driven.ImageStore
	users     driven.UserStore
	newClient driven.GitHubClientFactory
	baseURL   string
}

func NewPublishService(
	feedbacks driven.FeedbackStore,
	repos driven.RepoStore,
	images driven.ImageStore,
	users driven.UserStore,
	newClient driven.GitHubClientFactory,
	baseURL string,
) *PublishService {
	return &PublishService{
		feedbacks: feedbacks,
		repos:     repos,
		images:    images,
		users:     users,
		newClient: newClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Publish creates the GitHub issue and transitions the feedback to
// SUBMITTED. Only PENDING feedback is publishable: the store's status
// update is guarded the same way, so any other state must be rejected
// before the issue exists. The two steps are not atomic: if the status
// update fails after the issue was created, the issue stays and the error
// is surfaced.
func (s *PublishService) Publish(ctx context.Context, userID, feedbackID string) (*model.Feedback, error) {
	feedback, err := s.feedbacks.GetByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if feedback.Status == model.FeedbackStatusSubmitted {
		return nil, driven.ErrFeedbackAlreadySubmitted
	}
	if feedback.Status != model.FeedbackStatusPending {
		return nil, fmt.Errorf("%w: only pending feedback can be published", ErrValidation)
	}

	repo, err := s.repos.GetByID(ctx, userID, feedback.RepositoryID)
	if err != nil {
		return nil, err
	}
	owner, name, err := repo.OwnerRepo()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasGitHubToken() {
		return nil, driven.ErrNoGitHubToken
	}

	images, err := s.images.ListByFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}

	req := driven.IssueRequest{
		Title:  feedback.Title,
		Body:   s.composeBody(*feedback, images),
		Labels: []string{feedback.Type.IssueLabel()},
	}

	issueURL, err := s.newClient(user.GitHubToken).CreateIssue(ctx, owner, name, req)
	if err != nil {
		return nil, err
	}

	if err := s.feedbacks.MarkSubmitted(ctx, feedbackID, issueURL); err != nil {
		return nil, fmt.Errorf("issue %s created but status update failed: %w", issueURL, err)
	}

	slog.Info("feedback published",
		"feedback_id", feedbackID, "repo", repo.FullName, "issue_url", issueURL)

	return s.feedbacks.GetByID(ctx, feedbackID)
}

// composeBody renders the issue body: submitter line, type, status, then
// the content, then one Markdown image per attachment.
func (s *PublishService) composeBody(feedback model.Feedback, images []model.FeedbackImage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Submitted by:** %s (%s)\n", feedback.UserName, feedback.UserEmail)
	fmt.Fprintf(&b, "**Type:** %s\n", feedback.Type)
	fmt.Fprintf(&b, "**Status:** %s\n", feedback.Status)
	b.WriteString("\n")
	b.WriteString(feedback.Content)
	b.WriteString("\n")

	if len(images) > 0 {
		b.WriteString("\n")
		for _, img := range images {
			fmt.Fprintf(&b, "![image](%s)\n", s.qualifyURL(img.URL))
		}
	}

	return b.String()
}

// qualifyURL prefixes relative image URLs with the application base URL so
// they resolve from the GitHub issue page. Absolute URLs pass unchanged.
func (s *PublishService) qualifyURL(url string) string {
	if strings.HasPrefix(url, "/") {
		return s.baseURL + url
	}
	return url
}
