package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, Period("2025-06"), PeriodOf(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)))

	// local April 1st just after midnight at UTC+2 is still March in UTC
	early := time.Date(2025, time.April, 1, 0, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	assert.Equal(t, Period("2025-03"), PeriodOf(early))
}

func TestNewLedgerEvent(t *testing.T) {
	occurred := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	event := NewLedgerEvent("org-1", "item-1", EventKindAudit, 12, "warehouse-a", occurred, "user-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventKindAudit, event.Kind)
	assert.Equal(t, Period("2025-06"), event.Period)
	assert.Equal(t, 12.0, event.Quantity)
	assert.Equal(t, ItemStatusActive, event.Status)
}

func TestEventKind_Valid(t *testing.T) {
	for _, kind := range []EventKind{
		EventKindIntake, EventKindAudit, EventKindAddition, EventKindRemoval,
		EventKindTransfer, EventKindDisposal, EventKindAdjustment,
	} {
		assert.True(t, kind.Valid(), string(kind))
	}
	assert.False(t, EventKind("restock").Valid())
}

func TestEventCorrection_Apply(t *testing.T) {
	occurred := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	event := NewLedgerEvent("org-1", "item-1", EventKindAddition, 10, "shelf-1", occurred, "user-1")

	newQuantity := 50.0
	newOccurred := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	patch := EventCorrection{
		Quantity:   &newQuantity,
		OccurredAt: &newOccurred,
	}
	patch.Apply(event)

	assert.Equal(t, 50.0, event.Quantity)
	assert.Equal(t, newOccurred, event.OccurredAt)
	assert.Equal(t, Period("2025-02"), event.Period)
	// untouched fields keep their values
	assert.Equal(t, "shelf-1", event.Location)
	assert.Equal(t, EventKindAddition, event.Kind)
}

func TestTrackedItem_Retire(t *testing.T) {
	item := NewTrackedItem("org-1", "asset-1", "Ladder", 3, "depot", "user-1")

	item.Retire()

	assert.True(t, item.Retired)
	assert.Equal(t, ItemStatusInactive, item.Status)
}
