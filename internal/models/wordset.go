// internal/models/wordset.go
package models

import "time"

// TabooCard is one guessing unit: the word to guess plus the words the
// clue-giver is forbidden to say. Card IDs are unique within their set only.
type TabooCard struct {
	ID         string   `json:"id"`
	MainWord   string   `json:"mainWord"`
	TabooWords []string `json:"tabooWords"`
}

// WordSet is a named deck of taboo cards, either built-in (IsCustom=false,
// never owned, never deletable) or user-generated (IsCustom=true, owned by
// the device that created it).
type WordSet struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	IsCustom        bool        `json:"isCustom"`
	CreatedAt       time.Time   `json:"createdAt"`
	CreatorDeviceID string      `json:"creatorDeviceId,omitempty"`
	Cards           []TabooCard `json:"cards"`

	// PendingSync marks a set written to the local cache tier while the
	// remote store was unreachable. It has not round-tripped remotely yet.
	PendingSync bool `json:"pendingSync,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (ws WordSet) Clone() WordSet {
	out := ws
	out.Cards = make([]TabooCard, len(ws.Cards))
	for i, c := range ws.Cards {
		cc := c
		cc.TabooWords = append([]string(nil), c.TabooWords...)
		out.Cards[i] = cc
	}
	return out
}

// Device is a pseudo-identity for one client installation. It is a heuristic
// fingerprint used purely for ownership attribution, not a credential.
type Device struct {
	DeviceID string    `json:"deviceId"`
	LastSeen time.Time `json:"lastSeen"`
}
