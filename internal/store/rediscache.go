// internal/store/rediscache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beaterboo/beaterboo/internal/models"
	"github.com/beaterboo/beaterboo/internal/ownership"
)

// DefaultCacheKey is the Redis key holding the serialized collection.
const DefaultCacheKey = "beaterboo_wordsets"

// RedisCacheTier is the local persistent cache: a single key holding the
// whole serialized collection, read wholesale, merged in memory, and written
// back wholesale. No partial-record updates.
//
// Ownership policy: sets that have round-tripped through the remote store
// (creator recorded, not pending sync) follow the same creator-device rule as
// the remote tier. Sets written here while offline are locally owned and
// always deletable.
type RedisCacheTier struct {
	rdb *redis.Client
	key string
}

// NewRedisCacheTier connects a Redis client and verifies connectivity.
func NewRedisCacheTier(addr string, db int) (*RedisCacheTier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisCacheTier{rdb: rdb, key: DefaultCacheKey}, nil
}

// NewRedisCacheTierWithClient wraps an existing client, using key instead of
// DefaultCacheKey if non-empty.
func NewRedisCacheTierWithClient(rdb *redis.Client, key string) *RedisCacheTier {
	if key == "" {
		key = DefaultCacheKey
	}
	return &RedisCacheTier{rdb: rdb, key: key}
}

// Close releases the underlying client.
func (t *RedisCacheTier) Close() error {
	return t.rdb.Close()
}

func (t *RedisCacheTier) Name() string { return "redis-cache" }

func (t *RedisCacheTier) read(ctx context.Context) ([]models.WordSet, error) {
	data, err := t.rdb.Get(ctx, t.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read word set cache: %w", err)
	}

	var sets []models.WordSet
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("failed to decode word set cache: %w", err)
	}
	return sets, nil
}

func (t *RedisCacheTier) write(ctx context.Context, sets []models.WordSet) error {
	data, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("failed to encode word set cache: %w", err)
	}
	if err := t.rdb.Set(ctx, t.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write word set cache: %w", err)
	}
	return nil
}

// LoadAll returns the cached collection, newest first.
func (t *RedisCacheTier) LoadAll(ctx context.Context) ([]models.WordSet, error) {
	sets, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].CreatedAt.After(sets[j].CreatedAt)
	})
	return sets, nil
}

// Save merges the set into the cached collection, replacing any record with
// the same id.
func (t *RedisCacheTier) Save(ctx context.Context, set models.WordSet, deviceID string) (models.WordSet, error) {
	if set.IsCustom && set.CreatorDeviceID == "" {
		set.CreatorDeviceID = deviceID
	}

	sets, err := t.read(ctx)
	if err != nil {
		return models.WordSet{}, err
	}

	replaced := false
	for i := range sets {
		if sets[i].ID == set.ID {
			sets[i] = set
			replaced = true
			break
		}
	}
	if !replaced {
		sets = append(sets, set)
	}

	if err := t.write(ctx, sets); err != nil {
		return models.WordSet{}, err
	}
	return set, nil
}

// locallyOwned reports whether the record never round-tripped remotely and is
// therefore deletable by this install regardless of creator.
func locallyOwned(ws models.WordSet) bool {
	return ws.PendingSync || ws.CreatorDeviceID == ""
}

// CanDelete applies the cache-tier ownership policy.
func (t *RedisCacheTier) CanDelete(ctx context.Context, setID, deviceID string) (bool, error) {
	sets, err := t.read(ctx)
	if err != nil {
		return false, err
	}
	for _, ws := range sets {
		if ws.ID != setID {
			continue
		}
		if ws.IsCustom && locallyOwned(ws) {
			return true, nil
		}
		return ownership.Authorize(ownership.ActionDelete, ws, deviceID), nil
	}
	return false, ErrNotFound
}

// Delete removes the set from the cached collection, failing closed on
// ownership.
func (t *RedisCacheTier) Delete(ctx context.Context, setID, deviceID string) error {
	sets, err := t.read(ctx)
	if err != nil {
		return err
	}

	kept := sets[:0]
	found := false
	for _, ws := range sets {
		if ws.ID != setID {
			kept = append(kept, ws)
			continue
		}
		found = true
		deletable := (ws.IsCustom && locallyOwned(ws)) ||
			ownership.Authorize(ownership.ActionDelete, ws, deviceID)
		if !deletable {
			return ErrNotPermitted
		}
	}
	if !found {
		return ErrNotFound
	}
	return t.write(ctx, kept)
}

// Replace refreshes the cache with the result of a successful remote read,
// keeping records still pending sync that the remote result does not cover.
func (t *RedisCacheTier) Replace(ctx context.Context, sets []models.WordSet) error {
	current, err := t.read(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(sets))
	merged := make([]models.WordSet, 0, len(sets))
	for _, ws := range sets {
		seen[ws.ID] = struct{}{}
		merged = append(merged, ws)
	}
	for _, ws := range current {
		if _, ok := seen[ws.ID]; !ok && ws.PendingSync {
			merged = append(merged, ws)
		}
	}
	return t.write(ctx, merged)
}
