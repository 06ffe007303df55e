// internal/repo/repository.go
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/beaterboo/beaterboo/internal/models"
	"github.com/beaterboo/beaterboo/internal/store"
)

// Operation names a repository call for fallback-policy decisions.
type Operation string

const (
	OpLoadAll   Operation = "loadAll"
	OpSave      Operation = "save"
	OpCanDelete Operation = "canDelete"
	OpDelete    Operation = "delete"
)

// Decision is the outcome of the fallback policy for one failed tier attempt.
type Decision int

const (
	// NextTier retries the operation against the next tier in order.
	NextTier Decision = iota
	// Fail surfaces the error to the caller.
	Fail
)

// FallbackPolicy maps a failed tier attempt to a decision. Fallback order and
// per-operation policy live here as data rather than scattered conditionals.
type FallbackPolicy func(op Operation, err error) Decision

// Config selects the offline-write policy (see DESIGN.md). With
// OfflineWrites false (the production default), saves surface remote
// failures alongside an optimistically stamped set, and deletes fail closed.
// With OfflineWrites true, saves land in the cache tier flagged PendingSync
// and deletes may proceed against the cache.
type Config struct {
	OfflineWrites bool
}

// Repository orchestrates the storage tiers. Every operation attempts the
// preferred tier first and consults the fallback policy on failure; tier
// attempts are strictly sequential, never speculative.
type Repository struct {
	remote   store.Tier      // nil when the remote store is not configured
	cache    store.CacheTier // nil when the cache is not configured
	defaults store.Tier
	cfg      Config
	policy   FallbackPolicy
	log      *logrus.Logger
}

// New builds a repository over the given tiers. remote and cache may be nil;
// the defaults tier is always present.
func New(remote store.Tier, cache store.CacheTier, cfg Config, log *logrus.Logger) *Repository {
	if log == nil {
		log = logrus.New()
	}
	r := &Repository{
		remote:   remote,
		cache:    cache,
		defaults: store.NewDefaultsTier(),
		cfg:      cfg,
		log:      log,
	}
	r.policy = r.defaultPolicy
	return r
}

// defaultPolicy: ownership violations and missing sets are definitive answers
// from whichever tier produced them, never a reason to fall back. Reads
// always fall back on connectivity failures; writes and deletes only under
// the offline policy.
func (r *Repository) defaultPolicy(op Operation, err error) Decision {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotPermitted) {
		return Fail
	}
	switch op {
	case OpLoadAll:
		return NextTier
	case OpSave, OpCanDelete, OpDelete:
		if r.cfg.OfflineWrites {
			return NextTier
		}
		return Fail
	}
	return Fail
}

// LoadAll returns every known word set, degrading remote → cache → defaults.
// It never fails: with zero connectivity the built-in catalog is returned.
func (r *Repository) LoadAll(ctx context.Context) []models.WordSet {
	if r.remote != nil {
		sets, err := r.remote.LoadAll(ctx)
		if err == nil {
			r.refreshCache(ctx, sets)
			return sets
		}
		r.log.WithError(err).WithField("tier", r.remote.Name()).Warn("loadAll falling back")
	}

	if r.cache != nil {
		sets, err := r.cache.LoadAll(ctx)
		if err == nil && len(sets) > 0 {
			return sets
		}
		if err != nil {
			r.log.WithError(err).WithField("tier", r.cache.Name()).Warn("loadAll falling back")
		}
	}

	sets, _ := r.defaults.LoadAll(ctx)
	return sets
}

// refreshCache keeps the persisted tiers loosely synchronized after a
// successful remote read. Best effort only.
func (r *Repository) refreshCache(ctx context.Context, sets []models.WordSet) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Replace(ctx, sets); err != nil {
		r.log.WithError(err).Warn("failed to refresh word set cache")
	}
}

// stamp assigns the fields the caller may omit: set id, creation time,
// creator device, and per-card ids. Existing values are preserved.
func stamp(set models.WordSet, deviceID string) models.WordSet {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}
	if set.IsCustom && set.CreatorDeviceID == "" {
		set.CreatorDeviceID = deviceID
	}
	for i := range set.Cards {
		if set.Cards[i].ID == "" {
			set.Cards[i].ID = uuid.NewString()
		}
	}
	return set
}

// Save persists the set for the given device.
//
// Remote success returns the saved set. On remote failure the behavior
// follows the configured policy: offline mode writes the set to the cache
// tier flagged PendingSync; otherwise the stamped set is returned together
// with the error so the caller can proceed optimistically while knowing the
// write did not land.
func (r *Repository) Save(ctx context.Context, set models.WordSet, deviceID string) (models.WordSet, error) {
	set = stamp(set, deviceID)

	if r.remote != nil {
		saved, err := r.remote.Save(ctx, set, deviceID)
		if err == nil {
			return saved, nil
		}
		if r.policy(OpSave, err) == Fail {
			return set, fmt.Errorf("remote save failed: %w", err)
		}
		r.log.WithError(err).WithField("tier", r.remote.Name()).Warn("save falling back to cache")
	} else if !r.cfg.OfflineWrites {
		return set, fmt.Errorf("remote save failed: %w", errRemoteUnavailable)
	}

	if r.cache != nil {
		set.PendingSync = true
		saved, err := r.cache.Save(ctx, set, deviceID)
		if err == nil {
			return saved, nil
		}
		return set, fmt.Errorf("cache save failed: %w", err)
	}
	return set, errRemoteUnavailable
}

var errRemoteUnavailable = errors.New("remote store unavailable")

// CanDelete reports whether the device may delete the set. Connectivity
// failures answer false; under the offline policy the cache tier is consulted
// instead.
func (r *Repository) CanDelete(ctx context.Context, setID, deviceID string) (bool, error) {
	if r.remote != nil {
		ok, err := r.remote.CanDelete(ctx, setID, deviceID)
		if err == nil || r.policy(OpCanDelete, err) == Fail {
			return ok, err
		}
		r.log.WithError(err).WithField("tier", r.remote.Name()).Warn("canDelete falling back to cache")
	} else if !r.cfg.OfflineWrites {
		return false, nil
	}

	if r.cache != nil {
		return r.cache.CanDelete(ctx, setID, deviceID)
	}
	return false, store.ErrNotFound
}

// Delete removes the set if the device owns it. Destructive operations fail
// closed on connectivity loss unless the offline policy is enabled, in which
// case the delete proceeds against the cache tier. On remote success the
// cached copy is removed too, best effort.
func (r *Repository) Delete(ctx context.Context, setID, deviceID string) error {
	if r.remote != nil {
		err := r.remote.Delete(ctx, setID, deviceID)
		if err == nil {
			r.evictCached(ctx, setID, deviceID)
			return nil
		}
		if r.policy(OpDelete, err) == Fail {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotPermitted) {
				return err
			}
			return fmt.Errorf("remote delete failed: %w", err)
		}
		r.log.WithError(err).WithField("tier", r.remote.Name()).Warn("delete falling back to cache")
	} else if !r.cfg.OfflineWrites {
		return fmt.Errorf("remote delete failed: %w", errRemoteUnavailable)
	}

	if r.cache != nil {
		return r.cache.Delete(ctx, setID, deviceID)
	}
	return store.ErrNotFound
}

// evictCached drops the deleted set from the cache so a later degraded read
// does not resurrect it.
func (r *Repository) evictCached(ctx context.Context, setID, deviceID string) {
	if r.cache == nil {
		return
	}
	err := r.cache.Delete(ctx, setID, deviceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.WithError(err).Warn("failed to evict deleted set from cache")
	}
}
