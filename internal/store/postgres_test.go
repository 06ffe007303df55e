// internal/store/postgres_test.go
package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/beaterboo/beaterboo/internal/models"
)

// newTestPostgresTier connects to the database named by
// BEATERBOO_TEST_DATABASE_URL, skipping the test when unset.
func newTestPostgresTier(t *testing.T) *PostgresTier {
	t.Helper()
	url := os.Getenv("BEATERBOO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BEATERBOO_TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	ctx := context.Background()
	tier, err := NewPostgresTier(ctx, PostgresConfig{URL: url})
	if err != nil {
		t.Fatalf("failed to connect postgres tier: %v", err)
	}
	t.Cleanup(tier.Close)

	if err := tier.InitSchema(ctx); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return tier
}

func testSet(creator string) models.WordSet {
	return models.WordSet{
		ID:              uuid.NewString(),
		Name:            "Sport",
		Description:     "Parole di sport",
		IsCustom:        true,
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
		CreatorDeviceID: creator,
		Cards: []models.TabooCard{
			{MainWord: "Tennis", TabooWords: []string{"Racchetta", "Rete", "Campo", "Palla", "Servizio"}},
			{MainWord: "Nuoto", TabooWords: []string{"Piscina", "Acqua", "Vasca", "Bracciata", "Costume"}},
		},
	}
}

func findSet(sets []models.WordSet, id string) (models.WordSet, bool) {
	for _, ws := range sets {
		if ws.ID == id {
			return ws, true
		}
	}
	return models.WordSet{}, false
}

func TestPostgresRoundTrip(t *testing.T) {
	tier := newTestPostgresTier(t)
	ctx := context.Background()

	deviceID := "test-device-" + uuid.NewString()
	set := testSet(deviceID)
	t.Cleanup(func() { _ = tier.Delete(ctx, set.ID, deviceID) })

	if _, err := tier.Save(ctx, set, deviceID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sets, err := tier.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	got, ok := findSet(sets, set.ID)
	if !ok {
		t.Fatalf("saved set %s not returned by LoadAll", set.ID)
	}
	if got.Name != set.Name || got.Description != set.Description || !got.IsCustom {
		t.Fatalf("set fields mismatched: %+v", got)
	}
	if got.CreatorDeviceID != deviceID {
		t.Fatalf("creator = %q, want %q", got.CreatorDeviceID, deviceID)
	}
	if len(got.Cards) != len(set.Cards) {
		t.Fatalf("expected %d cards, got %d", len(set.Cards), len(got.Cards))
	}
	want := map[string][]string{}
	for _, c := range set.Cards {
		want[c.MainWord] = c.TabooWords
	}
	for _, c := range got.Cards {
		tw, ok := want[c.MainWord]
		if !ok {
			t.Fatalf("unexpected card %q", c.MainWord)
		}
		if len(tw) != len(c.TabooWords) {
			t.Fatalf("card %q taboo words mismatched", c.MainWord)
		}
	}
}

// TestPostgresUpdateReplacesCardsWholesale verifies the delete-then-insert
// card replacement: after an update only the new collection remains, and name
// changes stick while creator and creation time stay immutable.
func TestPostgresUpdateReplacesCardsWholesale(t *testing.T) {
	tier := newTestPostgresTier(t)
	ctx := context.Background()

	deviceID := "test-device-" + uuid.NewString()
	set := testSet(deviceID)
	t.Cleanup(func() { _ = tier.Delete(ctx, set.ID, deviceID) })

	if _, err := tier.Save(ctx, set, deviceID); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}

	updated := set
	updated.Name = "Sport aggiornato"
	updated.Cards = []models.TabooCard{
		{MainWord: "Sci", TabooWords: []string{"Neve", "Pista", "Montagna", "Discesa", "Bastoncini"}},
	}
	// A different device id on the update must not steal ownership.
	otherDevice := "test-device-" + uuid.NewString()
	if _, err := tier.Save(ctx, updated, otherDevice); err != nil {
		t.Fatalf("update save failed: %v", err)
	}

	sets, err := tier.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	got, ok := findSet(sets, set.ID)
	if !ok {
		t.Fatal("updated set missing")
	}
	if got.Name != "Sport aggiornato" {
		t.Fatalf("name not updated: %q", got.Name)
	}
	if len(got.Cards) != 1 || got.Cards[0].MainWord != "Sci" {
		t.Fatalf("old and new cards mixed after update: %+v", got.Cards)
	}
	if got.CreatorDeviceID != deviceID {
		t.Fatalf("creator reassigned on update: %q", got.CreatorDeviceID)
	}
}

func TestPostgresOwnership(t *testing.T) {
	tier := newTestPostgresTier(t)
	ctx := context.Background()

	deviceA := "test-device-A-" + uuid.NewString()
	deviceB := "test-device-B-" + uuid.NewString()
	set := testSet(deviceA)
	t.Cleanup(func() { _ = tier.Delete(ctx, set.ID, deviceA) })

	if _, err := tier.Save(ctx, set, deviceA); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if can, err := tier.CanDelete(ctx, set.ID, deviceB); err != nil || can {
		t.Fatalf("CanDelete(B) = (%v, %v), want (false, nil)", can, err)
	}
	if can, err := tier.CanDelete(ctx, set.ID, deviceA); err != nil || !can {
		t.Fatalf("CanDelete(A) = (%v, %v), want (true, nil)", can, err)
	}

	if err := tier.Delete(ctx, set.ID, deviceB); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("Delete(B): expected ErrNotPermitted, got %v", err)
	}
	sets, _ := tier.LoadAll(ctx)
	if _, ok := findSet(sets, set.ID); !ok {
		t.Fatal("set vanished after refused delete")
	}

	if err := tier.Delete(ctx, set.ID, deviceA); err != nil {
		t.Fatalf("Delete(A) failed: %v", err)
	}
	sets, _ = tier.LoadAll(ctx)
	if _, ok := findSet(sets, set.ID); ok {
		t.Fatal("set still present after owner delete")
	}

	if _, err := tier.CanDelete(ctx, set.ID, deviceA); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CanDelete after delete: expected ErrNotFound, got %v", err)
	}
}

func TestPostgresDeleteUnknownSet(t *testing.T) {
	tier := newTestPostgresTier(t)
	err := tier.Delete(context.Background(), uuid.NewString(), "any-device")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
