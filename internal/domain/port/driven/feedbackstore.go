package driven

import (
	"context"
	"errors"
	"time"

	"github.com/undermod/gitback/internal/domain/model"
)

// Sentinel errors returned by FeedbackStore implementations.
var (
	// ErrFeedbackNotFound indicates the requested feedback does not exist.
	ErrFeedbackNotFound = errors.New("feedback not found")

	// ErrFeedbackAlreadySubmitted indicates the feedback already carries
	// an issue URL; SUBMITTED is terminal.
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
)

// FeedbackWithRepo pairs a feedback row with its parent repository for
// listing and dashboard views.
type FeedbackWithRepo struct {
	Feedback   model.Feedback
	Repository model.SelectedRepository
}

// FeedbackPage is one page of a filtered feedback listing.
type FeedbackPage struct {
	Items      []FeedbackWithRepo
	TotalCount int
	TotalPages int
}

// MonthCount is the number of feedback rows created in one calendar month.
type MonthCount struct {
	Month string // "YYYY-MM"
	Count int
}

// FeedbackStore defines the driven port for feedback persistence.
// Listing and aggregate queries are scoped to the repositories owned by
// the given user; single-row reads are scoped via the parent repository.
type FeedbackStore interface {
	Create(ctx context.Context, fb model.Feedback) error
	GetByID(ctx context.Context, id string) (*model.Feedback, error)
	// List matches query against submitter name/email, parent repository
	// name and title, OR exactly against a type/status enum value when
	// the query equals one case-insensitively.
	List(ctx context.Context, userID, query string, page, pageSize int) (*FeedbackPage, error)
	Update(ctx context.Context, fb model.Feedback) error
	Delete(ctx context.Context, id string) error
	// MarkSubmitted is the only writer of the issue URL. It transitions
	// PENDING → SUBMITTED and returns ErrFeedbackAlreadySubmitted when
	// the row already left PENDING.
	MarkSubmitted(ctx context.Context, id, issueURL string) error
	CountByStatus(ctx context.Context, userID string) (map[model.FeedbackStatus]int, error)
	// MonthlyCounts buckets feedback created since the given time by
	// calendar month, oldest first. Months without feedback are absent.
	MonthlyCounts(ctx context.Context, userID string, since time.Time) ([]MonthCount, error)
	// Latest returns the n most recently updated feedback rows with
	// their parent repositories.
	Latest(ctx context.Context, userID string, n int) ([]FeedbackWithRepo, error)
}
