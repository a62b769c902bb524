package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ports"
)

const ledgerColumns = `id, organization_id, tracked_item_id, kind, quantity, location, notes, status, period, occurred_at, created_by, raw_payload, created_at`

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL
type PostgresLedgerRepository struct {
	db *sql.DB
}

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository
func NewPostgresLedgerRepository(db *sql.DB) ports.LedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// Append inserts a new ledger event. A duplicate period-bucketed event
// (intake/audit for an existing item+location+month) violates the
// partial unique index and surfaces as ErrDuplicatePeriodicCheck.
func (r *PostgresLedgerRepository) Append(ctx context.Context, event *domain.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	payloadJSON, err := marshalPayload(event.RawPayload)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.OrganizationID,
		event.TrackedItemID,
		string(event.Kind),
		event.Quantity,
		event.Location,
		event.Notes,
		event.Status,
		string(event.Period),
		event.OccurredAt,
		event.CreatedBy,
		payloadJSON,
		event.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePeriodicCheck
		}
		return fmt.Errorf("failed to append ledger event: %w", err)
	}

	return nil
}

// UpsertByPeriod merges the event into the row matching its period key,
// summing quantities, or inserts it when no row exists. The whole
// increment-or-insert is one statement, so concurrent calls for the same
// key serialize on the row instead of racing a find-then-write.
func (r *PostgresLedgerRepository) UpsertByPeriod(ctx context.Context, event *domain.LedgerEvent) (*domain.LedgerEvent, error) {
	query := `
		INSERT INTO ledger_events (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tracked_item_id, location, period, kind) WHERE kind IN ('intake', 'audit')
		DO UPDATE SET
			quantity = ledger_events.quantity + EXCLUDED.quantity,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			occurred_at = EXCLUDED.occurred_at,
			created_by = EXCLUDED.created_by
		RETURNING ` + ledgerColumns

	payloadJSON, err := marshalPayload(event.RawPayload)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, query,
		event.ID,
		event.OrganizationID,
		event.TrackedItemID,
		string(event.Kind),
		event.Quantity,
		event.Location,
		event.Notes,
		event.Status,
		string(event.Period),
		event.OccurredAt,
		event.CreatedBy,
		payloadJSON,
		event.CreatedAt,
	)

	merged, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ledger event: %w", err)
	}

	return merged, nil
}

// FindByID retrieves a ledger event by its ID
func (r *PostgresLedgerRepository) FindByID(ctx context.Context, id string) (*domain.LedgerEvent, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to find ledger event: %w", err)
	}

	return event, nil
}

// Update amends a historical event in place. The row never leaves the
// ledger; only its recorded values change.
func (r *PostgresLedgerRepository) Update(ctx context.Context, event *domain.LedgerEvent) error {
	query := `
		UPDATE ledger_events
		SET quantity = $2, location = $3, notes = $4, status = $5,
			period = $6, occurred_at = $7, raw_payload = $8
		WHERE id = $1
	`

	payloadJSON, err := marshalPayload(event.RawPayload)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Quantity,
		event.Location,
		event.Notes,
		event.Status,
		string(event.Period),
		event.OccurredAt,
		payloadJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to update ledger event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// Latest returns the item's chronologically latest event. Ties in
// occurrence timestamp are broken by insertion order: the most recently
// written row wins.
func (r *PostgresLedgerRepository) Latest(ctx context.Context, trackedItemID string) (*domain.LedgerEvent, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_events
		WHERE tracked_item_id = $1
		ORDER BY occurred_at DESC, created_at DESC
		LIMIT 1
	`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, trackedItemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to find latest ledger event: %w", err)
	}

	return event, nil
}

// ListByItem retrieves an item's history, newest first
func (r *PostgresLedgerRepository) ListByItem(ctx context.Context, trackedItemID string, limit int) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_events
		WHERE tracked_item_id = $1
		ORDER BY occurred_at DESC, created_at DESC
	`

	args := []interface{}{trackedItemID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	var events []*domain.LedgerEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger events: %w", err)
	}

	return events, nil
}

// ExistsForPeriod reports whether an event with the given period key exists
func (r *PostgresLedgerRepository) ExistsForPeriod(ctx context.Context, key ports.PeriodKey) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ledger_events
			WHERE tracked_item_id = $1 AND location = $2 AND period = $3 AND kind = $4
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, key.TrackedItemID, key.Location, string(key.Period), string(key.Kind)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check period event: %w", err)
	}

	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*domain.LedgerEvent, error) {
	var event domain.LedgerEvent
	var payloadJSON []byte

	err := row.Scan(
		&event.ID,
		&event.OrganizationID,
		&event.TrackedItemID,
		&event.Kind,
		&event.Quantity,
		&event.Location,
		&event.Notes,
		&event.Status,
		&event.Period,
		&event.OccurredAt,
		&event.CreatedBy,
		&payloadJSON,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &event.RawPayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw payload: %w", err)
		}
	}

	return &event, nil
}

func marshalPayload(payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw payload: %w", err)
	}
	return payloadJSON, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
