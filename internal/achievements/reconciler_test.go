package achievements

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallcrate/milestone-web/internal/models"
)

const testGameID = "fallcrate"

func makeCatalog(n int) []models.CatalogEntry {
	catalog := make([]models.CatalogEntry, 0, n)
	for i := 0; i < n; i++ {
		catalog = append(catalog, models.CatalogEntry{
			ID:          fmt.Sprintf("entry-%d", i),
			GameID:      testGameID,
			Title:       fmt.Sprintf("Entry %d", i),
			Description: "test entry",
		})
	}
	return catalog
}

func unlockedRecord(id, ownerID string, state models.UnlockState) models.UserRecord {
	now := time.Now()
	return models.UserRecord{
		ID:         id,
		GameID:     testGameID,
		OwnerID:    ownerID,
		UnlockedAt: &now,
		State:      state,
	}
}

func TestCombineProducesOneViewPerCatalogEntry(t *testing.T) {
	catalog := makeCatalog(100)
	records := []models.UserRecord{
		unlockedRecord("entry-3", "owner-1", models.StateUnlocked),
		unlockedRecord("entry-42", "owner-1", models.StateNewlyUnlocked),
	}

	achievements := Combine(catalog, records, "owner-1")

	require.Len(t, achievements, 100)
	for i, a := range achievements {
		assert.Equal(t, catalog[i].ID, a.ID, "catalog order must be preserved")
		assert.Equal(t, catalog[i].Title, a.Title)
	}

	assert.Equal(t, models.StateUnlocked, achievements[3].State)
	assert.NotNil(t, achievements[3].UnlockedAt)
	assert.Equal(t, models.StateNewlyUnlocked, achievements[42].State)
}

func TestCombineSynthesizesLockedDefaults(t *testing.T) {
	achievements := Combine(makeCatalog(5), nil, "owner-1")

	require.Len(t, achievements, 5)
	for _, a := range achievements {
		assert.Equal(t, models.StateLocked, a.State)
		assert.Nil(t, a.UnlockedAt)
		assert.Equal(t, "owner-1", a.OwnerID)
	}
}

func TestCombineIsIdempotent(t *testing.T) {
	catalog := makeCatalog(30)
	records := []models.UserRecord{
		unlockedRecord("entry-7", "owner-1", models.StateUnlocked),
	}

	first := Combine(catalog, records, "owner-1")
	second := Combine(catalog, records, "owner-1")

	assert.Equal(t, first, second)
}

func TestCombineIgnoresRecordsFromOtherGames(t *testing.T) {
	catalog := makeCatalog(3)
	foreign := unlockedRecord("entry-0", "owner-1", models.StateUnlocked)
	foreign.GameID = "other-game"

	achievements := Combine(catalog, []models.UserRecord{foreign}, "owner-1")

	assert.Equal(t, models.StateLocked, achievements[0].State)
}

func TestNeighborsAtGridEdges(t *testing.T) {
	achievements := Combine(makeCatalog(100), nil, "owner-1")

	topLeft := GetNeighbors("entry-0", achievements)
	assert.Nil(t, topLeft.Top)
	assert.Nil(t, topLeft.Left)
	require.NotNil(t, topLeft.Right)
	require.NotNil(t, topLeft.Bottom)
	assert.Equal(t, "entry-1", topLeft.Right.ID)
	assert.Equal(t, "entry-10", topLeft.Bottom.ID)

	topRight := GetNeighbors("entry-9", achievements)
	assert.Nil(t, topRight.Top)
	assert.Nil(t, topRight.Right)
	require.NotNil(t, topRight.Left)
	assert.Equal(t, "entry-8", topRight.Left.ID)

	bottomLeft := GetNeighbors("entry-90", achievements)
	assert.Nil(t, bottomLeft.Bottom)
	assert.Nil(t, bottomLeft.Left)
	require.NotNil(t, bottomLeft.Top)
	assert.Equal(t, "entry-80", bottomLeft.Top.ID)

	center := GetNeighbors("entry-55", achievements)
	assert.Len(t, center.All(), 4)
}

func TestNeighborsOnPartialGrid(t *testing.T) {
	achievements := Combine(makeCatalog(15), nil, "owner-1")

	// Second row ends at entry-14; nothing below the first row's tail.
	n := GetNeighbors("entry-5", achievements)
	assert.Nil(t, n.Bottom)

	// entry-14 is the last entry of a short second row.
	last := GetNeighbors("entry-14", achievements)
	assert.Nil(t, last.Right)
	assert.Nil(t, last.Bottom)
	require.NotNil(t, last.Top)
	assert.Equal(t, "entry-4", last.Top.ID)
}

func TestNeighborsUnknownID(t *testing.T) {
	achievements := Combine(makeCatalog(10), nil, "owner-1")
	assert.Empty(t, GetNeighbors("missing", achievements).All())
}

func TestSelectable(t *testing.T) {
	catalog := makeCatalog(100)
	records := []models.UserRecord{
		unlockedRecord("entry-55", "owner-1", models.StateUnlocked),
		unlockedRecord("entry-22", "owner-1", models.StateNewlyUnlocked),
	}
	achievements := Combine(catalog, records, "owner-1")

	byID := func(id string) models.Achievement {
		for _, a := range achievements {
			if a.ID == id {
				return a
			}
		}
		t.Fatalf("no achievement %s", id)
		return models.Achievement{}
	}

	defaults := DefaultReachableStates()

	// Non-locked entries are always selectable.
	assert.True(t, Selectable(byID("entry-55"), achievements, defaults))
	assert.True(t, Selectable(byID("entry-22"), achievements, defaults))

	// Locked next to an unlocked neighbor.
	assert.True(t, Selectable(byID("entry-56"), achievements, defaults))
	assert.True(t, Selectable(byID("entry-45"), achievements, defaults))

	// Locked with no reachable neighbor.
	assert.False(t, Selectable(byID("entry-0"), achievements, defaults))

	// Newly unlocked neighbors only count when the state set says so.
	assert.False(t, Selectable(byID("entry-23"), achievements, defaults))
	extended := NewStateSet(models.StateUnlocked, models.StateNewlyUnlocked)
	assert.True(t, Selectable(byID("entry-23"), achievements, extended))
}
