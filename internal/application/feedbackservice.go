package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// FeedbackDetail is a feedback row with its attachments and parent
// repository.
type FeedbackDetail struct {
	Feedback   model.Feedback
	Repository model.SelectedRepository
	Images     []model.FeedbackImage
}

// CreateFeedbackInput is the public intake payload.
type CreateFeedbackInput struct {
	RepositoryID string `json:"repository_id" validate:"required"`
	UserName     string `json:"user_name" validate:"required,max=100"`
	UserEmail    string `json:"user_email" validate:"required,email,max=254"`
	Title        string `json:"title" validate:"required,max=200"`
	Content      string `json:"content" validate:"required,max=10000"`
	Type         string `json:"type" validate:"required"`
}

// UpdateFeedbackInput is the owner-side triage payload.
type UpdateFeedbackInput struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=10000"`
	Type    string `json:"type" validate:"required"`
	Status  string `json:"status" validate:"required"`
}

// FeedbackService handles public feedback intake and owner-side triage.
type FeedbackService struct {
	feedbacks driven.FeedbackStore
	repos     driven.RepoStore
	images    driven.ImageStore
	imageSvc  *ImageService
}

func NewFeedbackService(
	feedbacks driven.FeedbackStore,
	repos driven.RepoStore,
	images driven.ImageStore,
	imageSvc *ImageService,
) *FeedbackService {
	return &FeedbackService{
		feedbacks: feedbacks,
		repos:     repos,
		images:    images,
		imageSvc:  imageSvc,
	}
}

// Create persists a public submission with optional attachments. The
// feedback row commits first; if the image batch then fails, the row is
// deleted again so no feedback is left referencing half-uploaded images.
func (s *FeedbackService) Create(ctx context.Context, in CreateFeedbackInput, files []Upload) (*FeedbackDetail, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	fbType, ok := model.ParseFeedbackType(in.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown feedback type %q", ErrValidation, in.Type)
	}
	if err := ValidateBatch(files); err != nil {
		return nil, err
	}

	repo, err := s.repos.GetAny(ctx, in.RepositoryID)
	if err != nil {
		return nil, err
	}

	feedback := model.Feedback{
		ID:           uuid.NewString(),
		RepositoryID: repo.ID,
		UserName:     in.UserName,
		UserEmail:    in.UserEmail,
		Title:        in.Title,
		Content:      in.Content,
		Type:         fbType,
		Status:       model.FeedbackStatusPending,
	}
	if err := s.feedbacks.Create(ctx, feedback); err != nil {
		return nil, err
	}

	images, err := s.imageSvc.SaveBatch(ctx, feedback.ID, files)
	if err != nil {
		if delErr := s.feedbacks.Delete(ctx, feedback.ID); delErr != nil {
			slog.Error("failed to roll back feedback after image failure",
				"feedback_id", feedback.ID, "error", delErr)
		}
		return nil, err
	}

	slog.Info("feedback created",
		"feedback_id", feedback.ID, "repository_id", repo.ID, "images", len(images))

	created, err := s.feedbacks.GetByID(ctx, feedback.ID)
	if err != nil {
		return nil, err
	}

	return &FeedbackDetail{Feedback: *created, Repository: *repo, Images: images}, nil
}

// List returns one page of feedback across the user's repositories. The
// query matches submitter name/email, repository name, and title as text,
// plus exact type/status when it names an enum value.
func (s *FeedbackService) List(ctx context.Context, userID, query string, page int) (*driven.FeedbackPage, error) {
	return s.feedbacks.List(ctx, userID, query, page, ListPageSize)
}

// Get returns one feedback with attachments, scoped to the owner of its
// repository.
func (s *FeedbackService) Get(ctx context.Context, userID, id string) (*FeedbackDetail, error) {
	feedback, repo, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	images, err := s.images.ListByFeedback(ctx, id)
	if err != nil {
		return nil, err
	}

	return &FeedbackDetail{Feedback: *feedback, Repository: *repo, Images: images}, nil
}

// Update edits a feedback during triage. A non-empty files batch replaces
// all existing attachments. Submitted feedback is immutable; its content
// must keep matching the published issue.
func (s *FeedbackService) Update(ctx context.Context, userID, id string, in UpdateFeedbackInput, files []Upload) (*FeedbackDetail, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	fbType, ok := model.ParseFeedbackType(in.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown feedback type %q", ErrValidation, in.Type)
	}
	status, ok := model.ParseFeedbackStatus(in.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown feedback status %q", ErrValidation, in.Status)
	}
	if err := ValidateBatch(files); err != nil {
		return nil, err
	}

	feedback, _, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if feedback.IsSubmitted() {
		return nil, driven.ErrFeedbackAlreadySubmitted
	}
	if status == model.FeedbackStatusSubmitted {
		return nil, fmt.Errorf("%w: submission happens through publishing, not editing", ErrValidation)
	}

	feedback.Title = in.Title
	feedback.Content = in.Content
	feedback.Type = fbType
	feedback.Status = status
	if err := s.feedbacks.Update(ctx, *feedback); err != nil {
		return nil, err
	}

	if len(files) > 0 {
		if err := s.replaceImages(ctx, id, files); err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, userID, id)
}

// replaceImages swaps the full attachment set of a feedback.
func (s *FeedbackService) replaceImages(ctx context.Context, feedbackID string, files []Upload) error {
	existing, err := s.images.ListByFeedback(ctx, feedbackID)
	if err != nil {
		return err
	}
	for _, img := range existing {
		if err := s.imageSvc.Delete(ctx, img); err != nil && !errors.Is(err, driven.ErrImageNotFound) {
			return err
		}
	}

	_, err = s.imageSvc.SaveBatch(ctx, feedbackID, files)
	return err
}

// Delete removes a feedback with its attachments. Remote assets go first,
// best-effort; the row delete then cascades over the image rows.
func (s *FeedbackService) Delete(ctx context.Context, userID, id string) error {
	if _, _, err := s.getOwned(ctx, userID, id); err != nil {
		return err
	}

	images, err := s.images.ListByFeedback(ctx, id)
	if err != nil {
		return err
	}
	for _, img := range images {
		if err := s.imageSvc.Delete(ctx, img); err != nil && !errors.Is(err, driven.ErrImageNotFound) {
			return err
		}
	}

	if err := s.feedbacks.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("feedback deleted", "feedback_id", id, "images_cleaned", len(images))

	return nil
}

// DeleteImage removes a single attachment from a feedback the user owns.
func (s *FeedbackService) DeleteImage(ctx context.Context, userID, feedbackID, imageID string) error {
	if _, _, err := s.getOwned(ctx, userID, feedbackID); err != nil {
		return err
	}

	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if image.FeedbackID != feedbackID {
		return driven.ErrImageNotFound
	}

	return s.imageSvc.Delete(ctx, *image)
}

// getOwned loads a feedback and verifies the user owns its repository.
// Someone else's feedback behaves as missing.
func (s *FeedbackService) getOwned(ctx context.Context, userID, id string) (*model.Feedback, *model.SelectedRepository, error) {
	feedback, err := s.feedbacks.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	repo, err := s.repos.GetByID(ctx, userID, feedback.RepositoryID)
	if err != nil {
		if errors.Is(err, driven.ErrRepoNotFound) {
			return nil, nil, driven.ErrFeedbackNotFound
		}
		return nil, nil, err
	}

	return feedback, repo, nil
}
