// Package achievements holds the reconciliation core of the milestone
// widget: combining the static catalog with per-user unlock records,
// driving the unlock lifecycle, and merging accounts on sign-in.
package achievements

import (
	"github.com/fallcrate/milestone-web/internal/models"
)

// GridWidth is the fixed column count of the achievement grid. Neighbor
// relations are purely positional within this layout.
const GridWidth = 10

// GridHeight bounds the grid vertically; entries past the last row have
// no bottom neighbors.
const GridHeight = 10

// Combine merges the catalog with an owner's unlock records into the
// derived view. One Achievement per catalog entry, in catalog order;
// entries with no stored record come out locked. Pure and idempotent.
func Combine(catalog []models.CatalogEntry, records []models.UserRecord, ownerID string) []models.Achievement {
	achievements := make([]models.Achievement, 0, len(catalog))

	for _, entry := range catalog {
		record := models.UserRecord{
			ID:      entry.ID,
			GameID:  entry.GameID,
			OwnerID: ownerID,
			State:   models.StateLocked,
		}
		for _, stored := range records {
			if stored.ID == entry.ID && stored.GameID == entry.GameID {
				record = stored
				break
			}
		}

		achievements = append(achievements, models.Achievement{
			ID:          entry.ID,
			GameID:      entry.GameID,
			Title:       entry.Title,
			Description: entry.Description,
			OwnerID:     record.OwnerID,
			UnlockedAt:  record.UnlockedAt,
			State:       record.State,
		})
	}

	return achievements
}

// Neighbors are the up-to-four grid neighbors of one achievement. A nil
// direction means the entry sits on that edge of the grid.
type Neighbors struct {
	Top    *models.Achievement
	Bottom *models.Achievement
	Left   *models.Achievement
	Right  *models.Achievement
}

// GetNeighbors resolves the grid neighbors of the achievement with the
// given id by flat-index arithmetic. Neighbors never wrap across a row or
// column boundary.
func GetNeighbors(id string, achievements []models.Achievement) Neighbors {
	index := -1
	for i, a := range achievements {
		if a.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return Neighbors{}
	}

	row := index / GridWidth
	column := index % GridWidth

	var neighbors Neighbors
	if row > 0 {
		neighbors.Top = &achievements[index-GridWidth]
	}
	if row < GridHeight-1 && index+GridWidth < len(achievements) {
		neighbors.Bottom = &achievements[index+GridWidth]
	}
	if column > 0 {
		neighbors.Left = &achievements[index-1]
	}
	if column < GridWidth-1 && index+1 < len(achievements) {
		neighbors.Right = &achievements[index+1]
	}
	return neighbors
}

// All returns the non-nil neighbors.
func (n Neighbors) All() []*models.Achievement {
	all := make([]*models.Achievement, 0, 4)
	for _, neighbor := range []*models.Achievement{n.Top, n.Bottom, n.Left, n.Right} {
		if neighbor != nil {
			all = append(all, neighbor)
		}
	}
	return all
}

// StateSet is the set of unlock states a neighbor may hold to make a
// locked entry reachable.
type StateSet map[models.UnlockState]bool

// NewStateSet builds a StateSet from its members.
func NewStateSet(states ...models.UnlockState) StateSet {
	set := make(StateSet, len(states))
	for _, state := range states {
		set[state] = true
	}
	return set
}

// DefaultReachableStates matches the widget's default behavior: only a
// fully unlocked neighbor exposes a locked entry.
func DefaultReachableStates() StateSet {
	return NewStateSet(models.StateUnlocked)
}

// Selectable reports whether an achievement can be clicked into the
// popover: any non-locked entry, or a locked entry with at least one
// neighbor whose state is in reachable.
func Selectable(a models.Achievement, achievements []models.Achievement, reachable StateSet) bool {
	if !a.Locked() {
		return true
	}
	for _, neighbor := range GetNeighbors(a.ID, achievements).All() {
		if reachable[neighbor.State] {
			return true
		}
	}
	return false
}
