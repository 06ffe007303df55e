// internal/words/fallback.go
package words

import (
	"fmt"
	"strings"

	"github.com/beaterboo/beaterboo/internal/models"
)

// fallbackCards is the deterministic local list served when the generative
// provider is unavailable or returns garbage.
var fallbackCards = []models.TabooCard{
	{MainWord: "Gelato", TabooWords: []string{"Cono", "Freddo", "Estate", "Gusto", "Cioccolato"}},
	{MainWord: "Bicicletta", TabooWords: []string{"Pedali", "Ruote", "Manubrio", "Casco", "Pedalare"}},
	{MainWord: "Natale", TabooWords: []string{"Albero", "Regali", "Dicembre", "Babbo", "Festa"}},
	{MainWord: "Scuola", TabooWords: []string{"Banco", "Maestra", "Compiti", "Lezione", "Alunni"}},
	{MainWord: "Libro", TabooWords: []string{"Pagine", "Leggere", "Autore", "Storia", "Capitolo"}},
	{MainWord: "Musica", TabooWords: []string{"Note", "Canzone", "Ascoltare", "Concerto", "Strumento"}},
	{MainWord: "Cucina", TabooWords: []string{"Fornelli", "Pentola", "Chef", "Ricetta", "Cibo"}},
	{MainWord: "Giardino", TabooWords: []string{"Fiori", "Erba", "Piante", "Prato", "Annaffiare"}},
	{MainWord: "Telefono", TabooWords: []string{"Chiamata", "Squillo", "Numero", "Cellulare", "Messaggio"}},
	{MainWord: "Ospedale", TabooWords: []string{"Medico", "Infermiere", "Malato", "Cura", "Ambulanza"}},
	{MainWord: "Teatro", TabooWords: []string{"Palco", "Attori", "Sipario", "Spettacolo", "Applausi"}},
	{MainWord: "Mercato", TabooWords: []string{"Bancarella", "Frutta", "Verdura", "Comprare", "Prezzo"}},
	{MainWord: "Orologio", TabooWords: []string{"Ore", "Lancette", "Polso", "Tempo", "Sveglia"}},
	{MainWord: "Pittura", TabooWords: []string{"Quadro", "Pennello", "Colori", "Tela", "Artista"}},
	{MainWord: "Calzino", TabooWords: []string{"Piede", "Scarpa", "Lana", "Paio", "Indossare"}},
}

// FallbackCards returns up to count cards from the built-in list, skipping
// excluded main words. The output is deterministic: same inputs, same cards,
// with stable ids.
func FallbackCards(count int, excludeWords []string) []models.TabooCard {
	excluded := wordSet(excludeWords)

	out := make([]models.TabooCard, 0, count)
	for i, c := range fallbackCards {
		if len(out) == count {
			break
		}
		if _, ex := excluded[strings.ToLower(c.MainWord)]; ex {
			continue
		}
		card := c
		card.ID = fmt.Sprintf("fallback-%d", i+1)
		card.TabooWords = append([]string(nil), c.TabooWords...)
		out = append(out, card)
	}
	return out
}
