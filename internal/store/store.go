// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/beaterboo/beaterboo/internal/models"
)

// Sentinel errors let the repository and handlers tell ownership violations
// and missing sets apart from connectivity failures.
var (
	// ErrNotFound means no word set exists with the given id in this tier.
	ErrNotFound = errors.New("word set not found")

	// ErrNotPermitted means the calling device does not own the set.
	ErrNotPermitted = errors.New("device does not own this word set")

	// ErrReadOnly means the tier cannot persist or delete anything.
	ErrReadOnly = errors.New("storage tier is read-only")
)

// Tier is one interchangeable word-set backend. The repository tries tiers
// in order and interprets their failures; tiers themselves never fall back.
type Tier interface {
	// Name identifies the tier in logs.
	Name() string

	// LoadAll returns every word set known to this tier, newest first.
	LoadAll(ctx context.Context) ([]models.WordSet, error)

	// Save persists the set and its full card collection, stamping ownership
	// for the given device. The returned set carries any assigned fields.
	Save(ctx context.Context, set models.WordSet, deviceID string) (models.WordSet, error)

	// CanDelete reports whether deviceID may delete the set. Returns
	// ErrNotFound if no such set exists.
	CanDelete(ctx context.Context, setID, deviceID string) (bool, error)

	// Delete removes the set and its cards. Fails closed: ErrNotPermitted if
	// the device does not own the set, ErrNotFound if it does not exist.
	Delete(ctx context.Context, setID, deviceID string) error
}

// CacheTier is a tier that can additionally be refreshed wholesale with the
// result of a successful remote read.
type CacheTier interface {
	Tier

	// Replace overwrites the cached collection, preserving records still
	// pending sync to the remote store.
	Replace(ctx context.Context, sets []models.WordSet) error
}
