// internal/ownership/guard.go
package ownership

import "github.com/beaterboo/beaterboo/internal/models"

// Action is a destructive operation gated by the guard.
type Action string

const (
	ActionDelete Action = "delete"
	ActionModify Action = "modify"
)

// Authorize decides whether deviceID may perform a destructive action on the
// set. Built-in sets are never deletable or modifiable; custom sets only by
// their creating device. The device id is a heuristic fingerprint, so this is
// ownership attribution, not access control.
//
// Callers against the remote tier must re-check inside the delete
// transaction itself; this predicate alone leaves a check-to-use gap.
func Authorize(action Action, set models.WordSet, deviceID string) bool {
	if !set.IsCustom {
		return false
	}
	return deviceID != "" && set.CreatorDeviceID == deviceID
}
