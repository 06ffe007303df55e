// internal/repo/repository_test.go
package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beaterboo/beaterboo/internal/models"
	"github.com/beaterboo/beaterboo/internal/ownership"
	"github.com/beaterboo/beaterboo/internal/store"
)

// fakeTier is an in-memory tier with toggleable failure and latency, used to
// exercise the repository's fallback behavior without a database.
type fakeTier struct {
	mu      sync.Mutex
	name    string
	sets    []models.WordSet
	failing bool
	delay   time.Duration
}

var errTierDown = errors.New("tier unreachable")

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) gate(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.failing {
		return errTierDown
	}
	return nil
}

func (f *fakeTier) LoadAll(ctx context.Context) ([]models.WordSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(ctx); err != nil {
		return nil, err
	}
	out := make([]models.WordSet, len(f.sets))
	copy(out, f.sets)
	return out, nil
}

func (f *fakeTier) Save(ctx context.Context, set models.WordSet, deviceID string) (models.WordSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(ctx); err != nil {
		return models.WordSet{}, err
	}
	for i := range f.sets {
		if f.sets[i].ID == set.ID {
			f.sets[i] = set
			return set, nil
		}
	}
	f.sets = append(f.sets, set)
	return set, nil
}

func (f *fakeTier) find(setID string) (models.WordSet, bool) {
	for _, ws := range f.sets {
		if ws.ID == setID {
			return ws, true
		}
	}
	return models.WordSet{}, false
}

func (f *fakeTier) CanDelete(ctx context.Context, setID, deviceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(ctx); err != nil {
		return false, err
	}
	ws, ok := f.find(setID)
	if !ok {
		return false, store.ErrNotFound
	}
	return ownership.Authorize(ownership.ActionDelete, ws, deviceID), nil
}

func (f *fakeTier) Delete(ctx context.Context, setID, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(ctx); err != nil {
		return err
	}
	ws, ok := f.find(setID)
	if !ok {
		return store.ErrNotFound
	}
	if !ownership.Authorize(ownership.ActionDelete, ws, deviceID) {
		return store.ErrNotPermitted
	}
	kept := f.sets[:0]
	for _, s := range f.sets {
		if s.ID != setID {
			kept = append(kept, s)
		}
	}
	f.sets = kept
	return nil
}

// fakeCache adds the wholesale Replace used after successful remote reads.
type fakeCache struct {
	fakeTier
	replaced int
}

func (f *fakeCache) Replace(ctx context.Context, sets []models.WordSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(ctx); err != nil {
		return err
	}
	f.replaced++
	f.sets = append([]models.WordSet(nil), sets...)
	return nil
}

func newTestRepo(remote *fakeTier, cache *fakeCache, offline bool) *Repository {
	var rt store.Tier
	if remote != nil {
		rt = remote
	}
	var ct store.CacheTier
	if cache != nil {
		ct = cache
	}
	return New(rt, ct, Config{OfflineWrites: offline}, nil)
}

func customSet(id, name, creator string) models.WordSet {
	return models.WordSet{
		ID: id, Name: name, IsCustom: true, CreatorDeviceID: creator,
		CreatedAt: time.Now().UTC(),
		Cards:     []models.TabooCard{{ID: "c1", MainWord: "Calcio", TabooWords: []string{"Pallone", "Goal", "Campo", "Squadra", "Giocatore"}}},
	}
}

func TestLoadAllPrefersRemoteAndRefreshesCache(t *testing.T) {
	remote := &fakeTier{name: "remote", sets: []models.WordSet{customSet("r1", "Remote", "dev-a")}}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache"}}
	r := newTestRepo(remote, cache, false)

	sets := r.LoadAll(context.Background())
	require.Len(t, sets, 1)
	require.Equal(t, "r1", sets[0].ID)

	// Successful remote read refreshes the cache.
	require.Equal(t, 1, cache.replaced)
	require.Len(t, cache.sets, 1)
}

func TestLoadAllFallsBackToCache(t *testing.T) {
	remote := &fakeTier{name: "remote", failing: true}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", sets: []models.WordSet{customSet("c1", "Cached", "dev-a")}}}
	r := newTestRepo(remote, cache, false)

	sets := r.LoadAll(context.Background())
	require.Len(t, sets, 1)
	require.Equal(t, "c1", sets[0].ID)
}

func TestLoadAllFallsBackToDefaults(t *testing.T) {
	remote := &fakeTier{name: "remote", failing: true}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", failing: true}}
	r := newTestRepo(remote, cache, false)

	sets := r.LoadAll(context.Background())
	require.NotEmpty(t, sets, "loadAll must never return nothing")
	for _, ws := range sets {
		require.False(t, ws.IsCustom)
	}
}

func TestLoadAllWithNoTiersServesDefaults(t *testing.T) {
	r := newTestRepo(nil, nil, false)
	sets := r.LoadAll(context.Background())
	require.NotEmpty(t, sets)
}

func TestSaveStampsMissingFields(t *testing.T) {
	remote := &fakeTier{name: "remote"}
	r := newTestRepo(remote, nil, false)

	in := models.WordSet{
		Name: "Sport", IsCustom: true,
		Cards: []models.TabooCard{{MainWord: "Tennis", TabooWords: []string{"Racchetta", "Rete", "Campo", "Palla", "Servizio"}}},
	}
	saved, err := r.Save(context.Background(), in, "dev-a")
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())
	require.Equal(t, "dev-a", saved.CreatorDeviceID)
	require.NotEmpty(t, saved.Cards[0].ID)
}

func TestSavePreservesExistingStamp(t *testing.T) {
	remote := &fakeTier{name: "remote"}
	r := newTestRepo(remote, nil, false)

	created := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	in := customSet("keep-id", "Sport", "dev-a")
	in.CreatedAt = created

	saved, err := r.Save(context.Background(), in, "dev-b")
	require.NoError(t, err)
	require.Equal(t, "keep-id", saved.ID)
	require.Equal(t, created, saved.CreatedAt)
	require.Equal(t, "dev-a", saved.CreatorDeviceID, "creator is never reassigned")
}

func TestSaveOptimisticEchoOnRemoteFailure(t *testing.T) {
	remote := &fakeTier{name: "remote", failing: true}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache"}}
	r := newTestRepo(remote, cache, false)

	saved, err := r.Save(context.Background(), models.WordSet{Name: "Sport", IsCustom: true}, "dev-a")
	require.Error(t, err, "fail-closed mode surfaces the remote failure")
	require.NotEmpty(t, saved.ID, "caller still gets a stamped set to proceed optimistically")
	require.Empty(t, cache.sets, "fail-closed mode must not write the cache")
}

func TestSaveOfflinePolicyWritesCache(t *testing.T) {
	remote := &fakeTier{name: "remote", failing: true}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache"}}
	r := newTestRepo(remote, cache, true)

	saved, err := r.Save(context.Background(), models.WordSet{Name: "Sport", IsCustom: true}, "dev-a")
	require.NoError(t, err)
	require.True(t, saved.PendingSync)
	require.Len(t, cache.sets, 1)
	require.True(t, cache.sets[0].PendingSync)
}

func TestDeleteFailsClosedOnRemoteFailure(t *testing.T) {
	remote := &fakeTier{name: "remote", failing: true}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", sets: []models.WordSet{customSet("x", "Sport", "dev-a")}}}
	r := newTestRepo(remote, cache, false)

	err := r.Delete(context.Background(), "x", "dev-a")
	require.Error(t, err)
	require.Len(t, cache.sets, 1, "fail-closed delete must not touch the cache")
}

func TestDeleteOfflinePolicyUsesCache(t *testing.T) {
	remote := &fakeTier{name: "remote", failing: true}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", sets: []models.WordSet{customSet("x", "Sport", "dev-a")}}}
	r := newTestRepo(remote, cache, true)

	require.NoError(t, r.Delete(context.Background(), "x", "dev-a"))
	require.Empty(t, cache.sets)
}

func TestDeleteEvictsCacheAfterRemoteSuccess(t *testing.T) {
	remote := &fakeTier{name: "remote", sets: []models.WordSet{customSet("x", "Sport", "dev-a")}}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", sets: []models.WordSet{customSet("x", "Sport", "dev-a")}}}
	r := newTestRepo(remote, cache, false)

	require.NoError(t, r.Delete(context.Background(), "x", "dev-a"))
	require.Empty(t, remote.sets)
	require.Empty(t, cache.sets, "deleted set must not be resurrected by a degraded read")
}

// TestDeleteAuthorizationBoundary walks the two-device scenario: A creates a
// set, B may neither check out as owner nor delete it, A may do both.
func TestDeleteAuthorizationBoundary(t *testing.T) {
	remote := &fakeTier{name: "remote"}
	r := newTestRepo(remote, nil, false)
	ctx := context.Background()

	saved, err := r.Save(ctx, models.WordSet{Name: "Sport", IsCustom: true,
		Cards: []models.TabooCard{{MainWord: "Basket", TabooWords: []string{"Canestro", "Palla", "NBA", "Rimbalzo", "Tiro"}}},
	}, "device-A")
	require.NoError(t, err)

	canB, err := r.CanDelete(ctx, saved.ID, "device-B")
	require.NoError(t, err)
	require.False(t, canB)

	canA, err := r.CanDelete(ctx, saved.ID, "device-A")
	require.NoError(t, err)
	require.True(t, canA)

	err = r.Delete(ctx, saved.ID, "device-B")
	require.ErrorIs(t, err, store.ErrNotPermitted)
	require.Len(t, remote.sets, 1, "refused delete must leave the set in place")

	require.NoError(t, r.Delete(ctx, saved.ID, "device-A"))
	for _, ws := range r.LoadAll(ctx) {
		require.NotEqual(t, saved.ID, ws.ID)
	}
}

func TestNotFoundIsNotATierFailure(t *testing.T) {
	remote := &fakeTier{name: "remote"}
	// The cache knows a set with this id; a wrong fallback would find it.
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", sets: []models.WordSet{customSet("ghost", "Ghost", "dev-a")}}}
	r := newTestRepo(remote, cache, true)

	_, err := r.CanDelete(context.Background(), "ghost", "dev-a")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = r.Delete(context.Background(), "ghost", "dev-a")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Len(t, cache.sets, 1)
}

// TestSlowRemoteFailsCleanly models an exhausted pool: the remote attempt
// blocks past the caller's deadline, is treated as a tier failure, and reads
// still degrade instead of hanging.
func TestSlowRemoteFailsCleanly(t *testing.T) {
	remote := &fakeTier{name: "remote", delay: 500 * time.Millisecond}
	cache := &fakeCache{fakeTier: fakeTier{name: "cache", sets: []models.WordSet{customSet("c1", "Cached", "dev-a")}}}
	r := newTestRepo(remote, cache, false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	sets := r.LoadAll(ctx)
	require.Less(t, time.Since(start), 400*time.Millisecond, "must not wait out the slow tier")
	require.Len(t, sets, 1)
	require.Equal(t, "c1", sets[0].ID)
}
