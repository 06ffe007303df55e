// internal/store/memory.go
package store

import (
	"context"
	"time"

	"github.com/beaterboo/beaterboo/internal/models"
)

// DefaultsTier serves the fixed built-in catalog. It is always available,
// never mutated, and only used when both persisted tiers are unreachable.
type DefaultsTier struct {
	catalog []models.WordSet
}

// NewDefaultsTier builds the tier over the built-in catalog.
func NewDefaultsTier() *DefaultsTier {
	return &DefaultsTier{catalog: DefaultCatalog()}
}

func (t *DefaultsTier) Name() string { return "defaults" }

// LoadAll returns a deep copy so callers cannot mutate the catalog.
func (t *DefaultsTier) LoadAll(ctx context.Context) ([]models.WordSet, error) {
	out := make([]models.WordSet, len(t.catalog))
	for i, ws := range t.catalog {
		out[i] = ws.Clone()
	}
	return out, nil
}

func (t *DefaultsTier) Save(ctx context.Context, set models.WordSet, deviceID string) (models.WordSet, error) {
	return models.WordSet{}, ErrReadOnly
}

// CanDelete is always false: built-in sets are owned by nobody.
func (t *DefaultsTier) CanDelete(ctx context.Context, setID, deviceID string) (bool, error) {
	for _, ws := range t.catalog {
		if ws.ID == setID {
			return false, nil
		}
	}
	return false, ErrNotFound
}

func (t *DefaultsTier) Delete(ctx context.Context, setID, deviceID string) error {
	return ErrReadOnly
}

// DefaultCatalog is the built-in starter content shipped with the game.
func DefaultCatalog() []models.WordSet {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []models.WordSet{
		{
			ID:          "default-base",
			Name:        "Set Base",
			Description: "Il set di parole classico del gioco Taboo",
			IsCustom:    false,
			CreatedAt:   created,
			Cards: []models.TabooCard{
				{ID: "1", MainWord: "Calcio", TabooWords: []string{"Pallone", "Goal", "Campo", "Squadra", "Giocatore"}},
				{ID: "2", MainWord: "Pizza", TabooWords: []string{"Margherita", "Forno", "Mozzarella", "Pomodoro", "Napoli"}},
				{ID: "3", MainWord: "Mare", TabooWords: []string{"Spiaggia", "Acqua", "Onde", "Estate", "Sabbia"}},
				{ID: "4", MainWord: "Cinema", TabooWords: []string{"Film", "Schermo", "Popcorn", "Attore", "Sala"}},
				{ID: "5", MainWord: "Montagna", TabooWords: []string{"Neve", "Sci", "Vetta", "Alpi", "Scalare"}},
				{ID: "6", MainWord: "Caffè", TabooWords: []string{"Tazzina", "Espresso", "Bar", "Zucchero", "Moka"}},
			},
		},
		{
			ID:          "default-viaggi",
			Name:        "In Viaggio",
			Description: "Parole a tema viaggi e vacanze",
			IsCustom:    false,
			CreatedAt:   created,
			Cards: []models.TabooCard{
				{ID: "1", MainWord: "Aeroporto", TabooWords: []string{"Aereo", "Volo", "Valigia", "Pista", "Partenza"}},
				{ID: "2", MainWord: "Treno", TabooWords: []string{"Binario", "Stazione", "Biglietto", "Vagone", "Rotaie"}},
				{ID: "3", MainWord: "Albergo", TabooWords: []string{"Camera", "Prenotazione", "Reception", "Stelle", "Notte"}},
				{ID: "4", MainWord: "Passaporto", TabooWords: []string{"Documento", "Frontiera", "Visto", "Foto", "Dogana"}},
			},
		},
	}
}
