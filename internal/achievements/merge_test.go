package achievements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage/memory"
)

func seedRecord(t *testing.T, store *memory.Store, id, ownerID string, state models.UnlockState, at time.Time) {
	t.Helper()
	_, err := store.SaveUserRecord(context.Background(), models.UserRecord{
		ID:         id,
		GameID:     testGameID,
		OwnerID:    ownerID,
		UnlockedAt: &at,
		State:      state,
	})
	require.NoError(t, err)
}

func TestMergeRehomesAndDeletesSource(t *testing.T) {
	store := memory.NewStore()
	merger := NewMerger(store)
	ctx := context.Background()

	seedRecord(t, store, "entry-x", "anon", models.StateUnlocked, time.Now())
	seedRecord(t, store, "entry-y", "account", models.StateUnlocked, time.Now())

	event := models.MergeEvent{SourceOwnerID: "anon", TargetOwnerID: "account"}
	require.NoError(t, merger.Merge(ctx, event))

	sourceRecords, err := store.FetchUserRecords(ctx, "anon")
	require.NoError(t, err)
	assert.Empty(t, sourceRecords)

	targetRecords, err := store.FetchUserRecords(ctx, "account")
	require.NoError(t, err)
	require.Len(t, targetRecords, 2)

	ids := []string{targetRecords[0].ID, targetRecords[1].ID}
	assert.ElementsMatch(t, []string{"entry-x", "entry-y"}, ids)
	for _, record := range targetRecords {
		assert.Equal(t, "account", record.OwnerID)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	merger := NewMerger(store)
	ctx := context.Background()

	seedRecord(t, store, "entry-x", "anon", models.StateUnlocked, time.Now())

	event := models.MergeEvent{SourceOwnerID: "anon", TargetOwnerID: "account"}
	require.NoError(t, merger.Merge(ctx, event))

	savesAfterFirst := store.SaveCalls
	deletesAfterFirst := store.DeleteCalls

	require.NoError(t, merger.Merge(ctx, event))
	assert.Equal(t, savesAfterFirst, store.SaveCalls, "re-running a completed merge must not write")
	assert.Equal(t, deletesAfterFirst, store.DeleteCalls)
}

func TestMergeConflictTargetWins(t *testing.T) {
	store := memory.NewStore()
	merger := NewMerger(store)
	ctx := context.Background()

	sourceTime := time.Now().Add(-time.Hour)
	targetTime := time.Now()
	seedRecord(t, store, "entry-x", "anon", models.StateUnlocked, sourceTime)
	seedRecord(t, store, "entry-x", "account", models.StateUnlocked, targetTime)

	event := models.MergeEvent{SourceOwnerID: "anon", TargetOwnerID: "account"}
	require.NoError(t, merger.Merge(ctx, event))

	sourceRecords, err := store.FetchUserRecords(ctx, "anon")
	require.NoError(t, err)
	assert.Empty(t, sourceRecords)

	targetRecords, err := store.FetchUserRecords(ctx, "account")
	require.NoError(t, err)
	require.Len(t, targetRecords, 1)
	require.NotNil(t, targetRecords[0].UnlockedAt)
	assert.Equal(t, targetTime, *targetRecords[0].UnlockedAt, "the target's own record survives untouched")
}

func TestMergePartialFailureSurfacesAndRetries(t *testing.T) {
	store := memory.NewStore()
	merger := NewMerger(store)
	ctx := context.Background()

	seedRecord(t, store, "entry-x", "anon", models.StateUnlocked, time.Now())

	store.Err = assert.AnError
	event := models.MergeEvent{SourceOwnerID: "anon", TargetOwnerID: "account"}
	require.Error(t, merger.Merge(ctx, event))

	// A retry after the store recovers completes the merge.
	store.Err = nil
	require.NoError(t, merger.Merge(ctx, event))

	targetRecords, err := store.FetchUserRecords(ctx, "account")
	require.NoError(t, err)
	assert.Len(t, targetRecords, 1)
}

func TestMergeValidatesOwners(t *testing.T) {
	merger := NewMerger(memory.NewStore())
	ctx := context.Background()

	assert.Error(t, merger.Merge(ctx, models.MergeEvent{TargetOwnerID: "account"}))
	assert.Error(t, merger.Merge(ctx, models.MergeEvent{SourceOwnerID: "anon"}))
	assert.NoError(t, merger.Merge(ctx, models.MergeEvent{SourceOwnerID: "same", TargetOwnerID: "same"}))
}
