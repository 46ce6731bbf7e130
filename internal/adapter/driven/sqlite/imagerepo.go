package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ImageStore = (*ImageRepo)(nil)

// ImageRepo is the SQLite implementation of the ImageStore port.
type ImageRepo struct {
	db *DB
}

// NewImageRepo creates an ImageRepo backed by the given DB.
func NewImageRepo(db *DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// CreateBatch inserts all image rows in one multi-row statement. A no-op
// for an empty batch.
func (r *ImageRepo) CreateBatch(ctx context.Context, images []model.FeedbackImage) error {
	if len(images) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO feedback_images (id, feedback_id, url) VALUES `)

	args := make([]any, 0, len(images)*3)
	for i, img := range images {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")

		id := img.ID
		if id == "" {
			id = uuid.NewString()
		}
		args = append(args, id, img.FeedbackID, img.URL)
	}

	if _, err := r.db.Writer.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %d feedback images: %w", len(images), err)
	}

	return nil
}

// GetByID retrieves one image row. Returns ErrImageNotFound when absent.
func (r *ImageRepo) GetByID(ctx context.Context, id string) (*model.FeedbackImage, error) {
	const query = `SELECT id, feedback_id, url FROM feedback_images WHERE id = ?`

	var img model.FeedbackImage
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&img.ID, &img.FeedbackID, &img.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback image %s: %w", id, err)
	}

	return &img, nil
}

// ListByFeedback returns all images attached to one feedback row.
func (r *ImageRepo) ListByFeedback(ctx context.Context, feedbackID string) ([]model.FeedbackImage, error) {
	const query = `SELECT id, feedback_id, url FROM feedback_images WHERE feedback_id = ?`
	return r.list(ctx, query, feedbackID)
}

// ListByRepository returns every image of every feedback under the given
// repository, used for remote cleanup before a repository delete.
func (r *ImageRepo) ListByRepository(ctx context.Context, repositoryID string) ([]model.FeedbackImage, error) {
	const query = `SELECT i.id, i.feedback_id, i.url
		FROM feedback_images i
		JOIN feedback f ON f.id = i.feedback_id
		WHERE f.repository_id = ?`
	return r.list(ctx, query, repositoryID)
}

// Delete removes one image row. Returns ErrImageNotFound when absent.
func (r *ImageRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM feedback_images WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete feedback image %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete feedback image %s: %w", id, driven.ErrImageNotFound)
	}

	return nil
}

func (r *ImageRepo) list(ctx context.Context, query string, arg any) ([]model.FeedbackImage, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list feedback images: %w", err)
	}
	defer rows.Close()

	images := []model.FeedbackImage{}
	for rows.Next() {
		var img model.FeedbackImage
		if err := rows.Scan(&img.ID, &img.FeedbackID, &img.URL); err != nil {
			return nil, fmt.Errorf("scan feedback image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback images: %w", err)
	}

	return images, nil
}
