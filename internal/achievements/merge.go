package achievements

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fallcrate/milestone-web/internal/logger"
	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/storage"
)

// Merger re-homes an anonymous owner's unlock records onto an
// authenticated owner when the two identities are linked. It is invoked
// directly with the linking event; it does not watch for events itself.
type Merger struct {
	store storage.Store
}

func NewMerger(store storage.Store) *Merger {
	return &Merger{store: store}
}

// Merge moves every record of event.SourceOwnerID to event.TargetOwnerID.
// Records the target already holds win as-is and the source copy is
// dropped. Per-record operations run concurrently; a partial failure is
// surfaced without rolling back records that already moved, and re-running
// the merge is idempotent, so the caller may simply retry.
func (m *Merger) Merge(ctx context.Context, event models.MergeEvent) error {
	if event.SourceOwnerID == "" || event.TargetOwnerID == "" {
		return fmt.Errorf("merge requires both owner ids")
	}
	if event.SourceOwnerID == event.TargetOwnerID {
		return nil
	}

	var sourceRecords, targetRecords []models.UserRecord

	fetch, fetchCtx := errgroup.WithContext(ctx)
	fetch.Go(func() error {
		var err error
		sourceRecords, err = m.store.FetchUserRecords(fetchCtx, event.SourceOwnerID)
		return err
	})
	fetch.Go(func() error {
		var err error
		targetRecords, err = m.store.FetchUserRecords(fetchCtx, event.TargetOwnerID)
		return err
	})
	if err := fetch.Wait(); err != nil {
		return fmt.Errorf("failed to fetch records for merge: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, source := range sourceRecords {
		source := source
		g.Go(func() error {
			return m.mergeRecord(gctx, source, targetRecords, event.TargetOwnerID)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("merge %s -> %s incomplete: %w", event.SourceOwnerID, event.TargetOwnerID, err)
	}

	logger.New().Info(fmt.Sprintf("merged %d records from %s into %s",
		len(sourceRecords), event.SourceOwnerID, event.TargetOwnerID))
	return nil
}

// mergeRecord re-homes one source record: save a copy under the target
// first, then delete the original, so a crash between the two never loses
// the unlock. Records the target already has are only deleted.
func (m *Merger) mergeRecord(ctx context.Context, source models.UserRecord, targetRecords []models.UserRecord, targetOwnerID string) error {
	taken := false
	for _, target := range targetRecords {
		if target.SameEntry(source) {
			taken = true
			break
		}
	}

	if !taken {
		rehomed := source
		rehomed.OwnerID = targetOwnerID
		if _, err := m.store.SaveUserRecord(ctx, rehomed); err != nil {
			return err
		}
	}

	return m.store.DeleteUserRecord(ctx, source.ID, source.GameID, source.OwnerID)
}
