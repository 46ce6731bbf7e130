package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/undermod/gitback/internal/domain/model"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

// Attachment limits.
const (
	MaxImageFiles     = 5
	MaxImageFileSize  = 5 << 20  // 5 MB per file
	MaxImageBatchSize = 20 << 20 // 20 MB per batch
	uploadConcurrency = 3
)

var (
	ErrTooManyFiles         = fmt.Errorf("at most %d images are allowed", MaxImageFiles)
	ErrImageTooLarge        = errors.New("image exceeds the 5 MB limit")
	ErrBatchTooLarge        = errors.New("images exceed the 20 MB combined limit")
	ErrUnsupportedImageType = errors.New("only JPEG, PNG, and WebP images are allowed")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Upload is one attachment read fully into memory.
type Upload struct {
	Filename string
	Data     []byte
}

// ImageService uploads feedback attachments to the asset host and records
// their delivery URLs. Uploads within a batch run through a bounded pool of
// 3 workers.
type ImageService struct {
	images driven.ImageStore
	assets driven.AssetStore
}

func NewImageService(images driven.ImageStore, assets driven.AssetStore) *ImageService {
	return &ImageService{images: images, assets: assets}
}

// ValidateBatch enforces the attachment limits. Content type is sniffed
// from the file bytes, not taken from the client-declared MIME type.
func ValidateBatch(files []Upload) error {
	if len(files) > MaxImageFiles {
		return fmt.Errorf("%w: %w", ErrValidation, ErrTooManyFiles)
	}

	var total int
	for _, f := range files {
		if len(f.Data) > MaxImageFileSize {
			return fmt.Errorf("%w: %s: %w", ErrValidation, f.Filename, ErrImageTooLarge)
		}
		total += len(f.Data)

		if !allowedImageTypes[http.DetectContentType(f.Data)] {
			return fmt.Errorf("%w: %s: %w", ErrValidation, f.Filename, ErrUnsupportedImageType)
		}
	}
	if total > MaxImageBatchSize {
		return fmt.Errorf("%w: %w", ErrValidation, ErrBatchTooLarge)
	}

	return nil
}

// SaveBatch uploads the files concurrently and records one image row per
// upload, in input order. On any upload failure, assets uploaded so far are
// destroyed best-effort and no rows are written.
func (s *ImageService) SaveBatch(ctx context.Context, feedbackID string, files []Upload) ([]model.FeedbackImage, error) {
	if err := ValidateBatch(files); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	urls := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			url, err := s.assets.Upload(gctx, bytes.NewReader(f.Data), f.Filename)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", f.Filename, err)
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.cleanupUploads(ctx, urls)
		return nil, err
	}

	images := make([]model.FeedbackImage, len(files))
	for i, url := range urls {
		images[i] = model.FeedbackImage{
			ID:         uuid.NewString(),
			FeedbackID: feedbackID,
			URL:        url,
		}
	}
	if err := s.images.CreateBatch(ctx, images); err != nil {
		s.cleanupUploads(ctx, urls)
		return nil, err
	}

	slog.Info("feedback images stored", "feedback_id", feedbackID, "count", len(images))

	return images, nil
}

// Delete removes an image row and destroys its remote asset. A failed
// remote destroy is logged and ignored; the local row always goes.
func (s *ImageService) Delete(ctx context.Context, image model.FeedbackImage) error {
	if err := s.assets.Delete(ctx, image.URL); err != nil {
		slog.Warn("failed to delete remote image asset", "url", image.URL, "error", err)
	}
	return s.images.Delete(ctx, image.ID)
}

func (s *ImageService) cleanupUploads(ctx context.Context, urls []string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.assets.Delete(ctx, url); err != nil {
			slog.Warn("failed to clean up uploaded asset", "url", url, "error", err)
		}
	}
}
