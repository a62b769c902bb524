package usecase

import (
	"context"
	"fmt"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ports"
)

// SnapshotProjector derives a tracked item's materialized state from its
// ledger. The snapshot is never computed by applying a delta to the old
// snapshot: it is always re-derived from whatever event is now latest,
// which makes backdated corrections safe. Projection is idempotent and
// safe to re-run at any time.
type SnapshotProjector struct {
	ledgerRepo ports.LedgerRepository
	itemRepo   ports.TrackedItemRepository
}

// NewSnapshotProjector creates a snapshot projector
func NewSnapshotProjector(ledgerRepo ports.LedgerRepository, itemRepo ports.TrackedItemRepository) *SnapshotProjector {
	return &SnapshotProjector{
		ledgerRepo: ledgerRepo,
		itemRepo:   itemRepo,
	}
}

// Project copies the quantity, location and status of the item's latest
// event (by occurrence timestamp, ties broken by insertion order) onto
// the tracked item record. Returns the event the snapshot was projected
// from.
func (p *SnapshotProjector) Project(ctx context.Context, trackedItemID string) (*domain.LedgerEvent, error) {
	latest, err := p.ledgerRepo.Latest(ctx, trackedItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest event: %w", err)
	}

	if err := p.itemRepo.UpdateSnapshot(ctx, trackedItemID, latest.Quantity, latest.Location, latest.Status); err != nil {
		return nil, fmt.Errorf("failed to update snapshot: %w", err)
	}

	return latest, nil
}
