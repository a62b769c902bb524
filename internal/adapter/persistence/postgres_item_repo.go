package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ports"
)

// PostgresItemRepository implements TrackedItemRepository using PostgreSQL
type PostgresItemRepository struct {
	db *sql.DB
}

// NewPostgresItemRepository creates a new PostgreSQL tracked item repository
func NewPostgresItemRepository(db *sql.DB) ports.TrackedItemRepository {
	return &PostgresItemRepository{db: db}
}

// Create saves a new tracked item
func (r *PostgresItemRepository) Create(ctx context.Context, item *domain.TrackedItem) error {
	query := `
		INSERT INTO tracked_items (id, organization_id, asset_id, name, quantity, location, status, retired, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.OrganizationID,
		item.AssetID,
		item.Name,
		item.Quantity,
		item.Location,
		item.Status,
		item.Retired,
		item.CreatedBy,
		item.CreatedAt,
		item.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create tracked item: %w", err)
	}

	return nil
}

// FindByID retrieves a tracked item by its ID
func (r *PostgresItemRepository) FindByID(ctx context.Context, id string) (*domain.TrackedItem, error) {
	query := `
		SELECT id, organization_id, asset_id, name, quantity, location, status, retired, created_by, created_at, updated_at
		FROM tracked_items
		WHERE id = $1
	`

	var item domain.TrackedItem
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.OrganizationID,
		&item.AssetID,
		&item.Name,
		&item.Quantity,
		&item.Location,
		&item.Status,
		&item.Retired,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to find tracked item: %w", err)
	}

	return &item, nil
}

// UpdateSnapshot writes the projected state onto the tracked item. Only
// the snapshot projector calls this; the item's quantity, location and
// status are a cached view of the ledger, never independent state.
func (r *PostgresItemRepository) UpdateSnapshot(ctx context.Context, itemID string, quantity float64, location, status string) error {
	query := `
		UPDATE tracked_items
		SET quantity = $2, location = $3, status = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, quantity, location, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

// Retire persists a soft-retired tracked item; its ledger stays intact
func (r *PostgresItemRepository) Retire(ctx context.Context, item *domain.TrackedItem) error {
	query := `
		UPDATE tracked_items
		SET retired = $2, status = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, item.ID, item.Retired, item.Status, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to retire tracked item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}
