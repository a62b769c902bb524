package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a ledger event
type EventKind string

const (
	EventKindIntake     EventKind = "intake"
	EventKindAudit      EventKind = "audit"
	EventKindAddition   EventKind = "addition"
	EventKindRemoval    EventKind = "removal"
	EventKindTransfer   EventKind = "transfer"
	EventKindDisposal   EventKind = "disposal"
	EventKindAdjustment EventKind = "adjustment"
)

// Valid reports whether the kind is one of the known event kinds
func (k EventKind) Valid() bool {
	switch k {
	case EventKindIntake, EventKindAudit, EventKindAddition, EventKindRemoval,
		EventKindTransfer, EventKindDisposal, EventKindAdjustment:
		return true
	}
	return false
}

// Period is the calendar-month bucket an event belongs to, formatted as
// "yyyy-mm". Monthly upserts aggregate on this key.
type Period string

// PeriodOf derives the period bucket from an occurrence timestamp
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

// LedgerEvent is one entry in a tracked item's append-only history.
// Rows are never deleted; a historical event may be amended in place
// through the correction operation, which re-projects the snapshot.
type LedgerEvent struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	TrackedItemID  string                 `json:"tracked_item_id"`
	Kind           EventKind              `json:"kind"`
	Quantity       float64                `json:"quantity"`
	Location       string                 `json:"location"`
	Notes          string                 `json:"notes"`
	Status         string                 `json:"status"`
	Period         Period                 `json:"period"`
	OccurredAt     time.Time              `json:"occurred_at"`
	CreatedBy      string                 `json:"created_by"`
	RawPayload     map[string]interface{} `json:"raw_payload,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewLedgerEvent creates a ledger event with its period bucket derived
// from the occurrence timestamp
func NewLedgerEvent(orgID, itemID string, kind EventKind, quantity float64, location string, occurredAt time.Time, createdBy string) *LedgerEvent {
	return &LedgerEvent{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		TrackedItemID:  itemID,
		Kind:           kind,
		Quantity:       quantity,
		Location:       location,
		Status:         ItemStatusActive,
		Period:         PeriodOf(occurredAt),
		OccurredAt:     occurredAt,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC(),
	}
}

// EventCorrection is an in-place patch against a historical event. Nil
// fields are left untouched. Changing OccurredAt also moves the event's
// period bucket.
type EventCorrection struct {
	Quantity   *float64               `json:"quantity,omitempty"`
	Location   *string                `json:"location,omitempty"`
	Notes      *string                `json:"notes,omitempty"`
	Status     *string                `json:"status,omitempty"`
	OccurredAt *time.Time             `json:"occurred_at,omitempty"`
	RawPayload map[string]interface{} `json:"raw_payload,omitempty"`
}

// Apply copies the patch onto the event
func (c EventCorrection) Apply(e *LedgerEvent) {
	if c.Quantity != nil {
		e.Quantity = *c.Quantity
	}
	if c.Location != nil {
		e.Location = *c.Location
	}
	if c.Notes != nil {
		e.Notes = *c.Notes
	}
	if c.Status != nil {
		e.Status = *c.Status
	}
	if c.OccurredAt != nil {
		e.OccurredAt = *c.OccurredAt
		e.Period = PeriodOf(*c.OccurredAt)
	}
	if c.RawPayload != nil {
		e.RawPayload = c.RawPayload
	}
}
