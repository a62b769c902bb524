package ports

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/domain"
)

// PeriodKey identifies the aggregation bucket a monthly upsert merges
// into: one row per item, location, period and event kind.
type PeriodKey struct {
	TrackedItemID string
	Location      string
	Period        domain.Period
	Kind          domain.EventKind
}

// LedgerRepository defines the interface for ledger event persistence.
// The ledger is append-only: events are inserted or amended in place,
// never deleted.
type LedgerRepository interface {
	// Append inserts a new ledger event; it never merges
	Append(ctx context.Context, event *domain.LedgerEvent) error

	// UpsertByPeriod atomically merges the event into the row matching
	// its period key, summing quantities, or inserts it when no such row
	// exists. The increment-or-insert must execute as a single statement
	// in the store so concurrent calls for the same key cannot lose
	// updates or produce duplicate rows. Returns the resulting row.
	UpsertByPeriod(ctx context.Context, event *domain.LedgerEvent) (*domain.LedgerEvent, error)

	// FindByID retrieves an event by its ID
	FindByID(ctx context.Context, id string) (*domain.LedgerEvent, error)

	// Update amends a historical event in place (correction path)
	Update(ctx context.Context, event *domain.LedgerEvent) error

	// Latest returns the item's chronologically latest event by
	// occurrence timestamp, ties broken by insertion order
	Latest(ctx context.Context, trackedItemID string) (*domain.LedgerEvent, error)

	// ListByItem retrieves the item's history, newest first
	ListByItem(ctx context.Context, trackedItemID string, limit int) ([]*domain.LedgerEvent, error)

	// ExistsForPeriod reports whether an event with the given key exists
	ExistsForPeriod(ctx context.Context, key PeriodKey) (bool, error)
}

// TrackedItemRepository defines the interface for snapshot persistence
type TrackedItemRepository interface {
	// Create saves a new tracked item
	Create(ctx context.Context, item *domain.TrackedItem) error

	// FindByID retrieves a tracked item by its ID
	FindByID(ctx context.Context, id string) (*domain.TrackedItem, error)

	// UpdateSnapshot writes the projected quantity/location/status onto
	// the item record and stamps updated_at
	UpdateSnapshot(ctx context.Context, itemID string, quantity float64, location, status string) error

	// Retire persists a soft-retired item's state; the ledger is
	// untouched. Callers mutate the entity with TrackedItem.Retire first.
	Retire(ctx context.Context, item *domain.TrackedItem) error
}
