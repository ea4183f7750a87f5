// Package store persists sanitized traces per function, run and tier so a
// benchmark can be replayed offline.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/imishinist/coldbench/internal/models"
)

// ErrNotFound is returned by Load when nothing was saved for the key.
var ErrNotFound = errors.New("traces not found")

type Store interface {
	// Save replaces the traces stored for function, runID and tier.
	Save(ctx context.Context, function, runID string, tier models.Tier, traces []models.MinimalTrace) error
	Load(ctx context.Context, function, runID string, tier models.Tier) ([]models.MinimalTrace, error)
	Close() error
}

// New opens the store selected by driver, "file" or "sqlite".
func New(driver, path string) (Store, error) {
	switch driver {
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}
