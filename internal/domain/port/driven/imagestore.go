package driven

import (
	"context"
	"errors"

	"github.com/undermod/gitback/internal/domain/model"
)

// ErrImageNotFound indicates the requested feedback image does not exist.
var ErrImageNotFound = errors.New("feedback image not found")

// ImageStore defines the driven port for feedback-image row persistence.
// Remote asset cleanup is the AssetStore's concern; these rows are the
// authoritative record.
type ImageStore interface {
	// CreateBatch inserts all rows in one statement. Called only after
	// every upload in the batch succeeded.
	CreateBatch(ctx context.Context, images []model.FeedbackImage) error
	GetByID(ctx context.Context, id string) (*model.FeedbackImage, error)
	ListByFeedback(ctx context.Context, feedbackID string) ([]model.FeedbackImage, error)
	// ListByRepository returns every image of every feedback under the
	// repository, used for remote cleanup before a repository delete.
	ListByRepository(ctx context.Context, repositoryID string) ([]model.FeedbackImage, error)
	Delete(ctx context.Context, id string) error
}
