package driven

import (
	"context"
	"io"
)

// AssetStore defines the driven port for the external image host.
type AssetStore interface {
	// Upload streams one image to the asset host and returns its public
	// URL.
	Upload(ctx context.Context, r io.Reader, filename string) (string, error)
	// Delete removes the remote asset behind the given public URL.
	// Callers treat failures as non-fatal; the local image row is the
	// authoritative record.
	Delete(ctx context.Context, url string) error
}
