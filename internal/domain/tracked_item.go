package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
)

// TrackedItem is the materialized snapshot of one asset's stock. Its
// quantity, location and status always mirror the item's latest ledger
// event; only the snapshot projector mutates them. Items are never
// deleted, only soft-retired.
type TrackedItem struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AssetID        string    `json:"asset_id"`
	Name           string    `json:"name"`
	Quantity       float64   `json:"quantity"`
	Location       string    `json:"location"`
	Status         string    `json:"status"`
	Retired        bool      `json:"retired"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewTrackedItem creates a tracked item seeded with its intake quantity
func NewTrackedItem(orgID, assetID, name string, quantity float64, location, createdBy string) *TrackedItem {
	now := time.Now().UTC()
	return &TrackedItem{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		AssetID:        assetID,
		Name:           name,
		Quantity:       quantity,
		Location:       location,
		Status:         ItemStatusActive,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Retire soft-retires the item. The ledger is kept intact.
func (i *TrackedItem) Retire() {
	i.Retired = true
	i.Status = ItemStatusInactive
	i.UpdatedAt = time.Now().UTC()
}
