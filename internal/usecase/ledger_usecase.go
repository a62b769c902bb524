package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/formula"
	"github.com/stocktrail/stocktrail/internal/ports"
)

// ProvisionItemRequest represents the request to provision a tracked item
type ProvisionItemRequest struct {
	OrganizationID string  `json:"organization_id" validate:"required"`
	AssetID        string  `json:"asset_id" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Quantity       float64 `json:"quantity"`
	Location       string  `json:"location"`
	Notes          string  `json:"notes"`
	ActorID        string  `json:"actor_id"`
}

// ProvisionItemResponse carries the new item and its intake event
type ProvisionItemResponse struct {
	Item   *domain.TrackedItem `json:"item"`
	Intake *domain.LedgerEvent `json:"intake"`
}

// RecordSubmissionRequest represents a form submission against a tracked item
type RecordSubmissionRequest struct {
	TrackedItemID string                 `json:"tracked_item_id"`
	Schema        domain.FormSchema      `json:"schema"`
	Values        domain.FormSubmission  `json:"values"`
	MappedValues  map[string]float64     `json:"mapped_values,omitempty"`
	Kind          domain.EventKind       `json:"kind"`
	Location      string                 `json:"location"`
	Notes         string                 `json:"notes"`
	Status        string                 `json:"status"`
	OccurredAt    time.Time              `json:"occurred_at"`
	ActorID       string                 `json:"actor_id"`
	// ExplicitQuantity is the fallback recorded when no field carried an
	// inventory action.
	ExplicitQuantity *float64 `json:"explicit_quantity,omitempty"`
	// IdempotencyKey, when set, makes retried deliveries of the same
	// submission detectable before any ledger write.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SubmissionResponse carries the appended event and resolution diagnostics
type SubmissionResponse struct {
	Event         *domain.LedgerEvent `json:"event"`
	Snapshot      *domain.TrackedItem `json:"snapshot"`
	ActionApplied bool                `json:"action_applied"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// PeriodCheckRequest represents a month-bucketed check contribution.
// Contributions with the same item/location/period/kind accumulate into
// a single ledger row.
type PeriodCheckRequest struct {
	TrackedItemID  string           `json:"tracked_item_id"`
	Quantity       float64          `json:"quantity"`
	Location       string           `json:"location"`
	Kind           domain.EventKind `json:"kind"`
	Notes          string           `json:"notes"`
	Status         string           `json:"status"`
	OccurredAt     time.Time        `json:"occurred_at"`
	ActorID        string           `json:"actor_id"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// CorrectEventRequest represents an in-place amendment of a historical event
type CorrectEventRequest struct {
	EventID string                 `json:"event_id"`
	Patch   domain.EventCorrection `json:"patch"`
	Reason  string                 `json:"reason"`
	ActorID string                 `json:"actor_id"`
}

// CorrectionResponse carries the amended event and the re-projected snapshot
type CorrectionResponse struct {
	Event    *domain.LedgerEvent `json:"event"`
	Snapshot *domain.TrackedItem `json:"snapshot"`
}

// LedgerUseCase orchestrates the reconciliation engine: formula
// evaluation, action resolution, ledger writes and snapshot projection.
type LedgerUseCase struct {
	itemRepo    ports.TrackedItemRepository
	ledgerRepo  ports.LedgerRepository
	projector   *SnapshotProjector
	idempotency ports.IdempotencyStore
	logger      ports.Logger
}

// NewLedgerUseCase creates a new ledger use case. idempotency and logger
// are optional collaborators.
func NewLedgerUseCase(
	itemRepo ports.TrackedItemRepository,
	ledgerRepo ports.LedgerRepository,
	projector *SnapshotProjector,
	idempotency ports.IdempotencyStore,
	logger ports.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		itemRepo:    itemRepo,
		ledgerRepo:  ledgerRepo,
		projector:   projector,
		idempotency: idempotency,
		logger:      logger,
	}
}

// ProvisionItem creates a tracked item seeded with its intake quantity
// and writes the intake ledger event for the intake month. The intake
// event is upserted so several intake contributions within the same
// month accumulate into one row.
func (uc *LedgerUseCase) ProvisionItem(ctx context.Context, req ProvisionItemRequest) (*ProvisionItemResponse, error) {
	if req.OrganizationID == "" || req.AssetID == "" || req.Name == "" {
		return nil, fmt.Errorf("validation failed: organization_id, asset_id and name are required")
	}

	item := domain.NewTrackedItem(req.OrganizationID, req.AssetID, req.Name, req.Quantity, req.Location, req.ActorID)
	if err := uc.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create tracked item: %w", err)
	}

	intake := domain.NewLedgerEvent(req.OrganizationID, item.ID, domain.EventKindIntake, req.Quantity, req.Location, item.CreatedAt, req.ActorID)
	intake.Notes = req.Notes
	if intake.Notes == "" {
		intake.Notes = "Initial intake quantity"
	}

	merged, err := uc.ledgerRepo.UpsertByPeriod(ctx, intake)
	if err != nil {
		return nil, fmt.Errorf("failed to write intake event: %w", err)
	}

	if _, err := uc.projector.Project(ctx, item.ID); err != nil {
		return nil, err
	}

	snapshot, err := uc.itemRepo.FindByID(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tracked item: %w", err)
	}

	return &ProvisionItemResponse{Item: snapshot, Intake: merged}, nil
}

// RecordSubmission turns a raw form submission into a ledger event:
// calculated fields are evaluated, action-tagged fields are resolved
// into the new quantity, the event is appended and the snapshot is
// re-projected. When no field carried an action the explicit quantity
// argument, if any, is recorded instead.
func (uc *LedgerUseCase) RecordSubmission(ctx context.Context, req RecordSubmissionRequest) (*SubmissionResponse, error) {
	if req.TrackedItemID == "" {
		return nil, fmt.Errorf("validation failed: tracked_item_id is required")
	}
	if !req.Kind.Valid() {
		return nil, domain.ErrInvalidEventKind
	}
	if err := req.Schema.ValidateActions(); err != nil {
		return nil, err
	}

	item, err := uc.itemRepo.FindByID(ctx, req.TrackedItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked item: %w", err)
	}
	if item.Retired {
		return nil, domain.ErrItemRetired
	}

	if err := uc.registerIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	// Period-bucketed kinds are unique per month: a second periodic
	// check for the same bucket is rejected, not silently merged.
	if req.Kind == domain.EventKindAudit || req.Kind == domain.EventKindIntake {
		exists, err := uc.ledgerRepo.ExistsForPeriod(ctx, ports.PeriodKey{
			TrackedItemID: req.TrackedItemID,
			Location:      req.Location,
			Period:        domain.PeriodOf(occurredAt),
			Kind:          req.Kind,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to check for existing period event: %w", err)
		}
		if exists {
			return nil, domain.ErrDuplicatePeriodicCheck
		}
	}

	values, warnings, err := uc.evaluateCalculatedFields(ctx, req)
	if err != nil {
		return nil, err
	}

	resolution := domain.ResolveActions(item.Quantity, req.Schema.Fields, values)
	warnings = append(warnings, resolutionWarnings(item.Quantity, resolution)...)

	quantity := resolution.NewQuantity
	if !resolution.ActionApplied && req.ExplicitQuantity != nil {
		quantity = *req.ExplicitQuantity
	}

	event := domain.NewLedgerEvent(item.OrganizationID, item.ID, req.Kind, quantity, req.Location, occurredAt, req.ActorID)
	event.Notes = req.Notes
	if req.Status != "" {
		event.Status = req.Status
	}
	event.RawPayload = values

	if err := uc.ledgerRepo.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append ledger event: %w", err)
	}

	if _, err := uc.projector.Project(ctx, item.ID); err != nil {
		return nil, err
	}

	snapshot, err := uc.itemRepo.FindByID(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tracked item: %w", err)
	}

	return &SubmissionResponse{
		Event:         event,
		Snapshot:      snapshot,
		ActionApplied: resolution.ActionApplied,
		Warnings:      warnings,
	}, nil
}

// RecordPeriodCheck merges a month-bucketed contribution into the
// matching ledger row, summing quantities, or inserts a new row when
// none exists. The merge is a single atomic statement in the store, so
// concurrent contributions for the same bucket cannot double-insert or
// undercount.
func (uc *LedgerUseCase) RecordPeriodCheck(ctx context.Context, req PeriodCheckRequest) (*SubmissionResponse, error) {
	if req.TrackedItemID == "" {
		return nil, fmt.Errorf("validation failed: tracked_item_id is required")
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.EventKindAudit
	}
	if kind != domain.EventKindAudit && kind != domain.EventKindIntake {
		return nil, domain.ErrInvalidEventKind
	}

	item, err := uc.itemRepo.FindByID(ctx, req.TrackedItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked item: %w", err)
	}
	if item.Retired {
		return nil, domain.ErrItemRetired
	}

	if err := uc.registerIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	event := domain.NewLedgerEvent(item.OrganizationID, item.ID, kind, req.Quantity, req.Location, occurredAt, req.ActorID)
	event.Notes = req.Notes
	if req.Status != "" {
		event.Status = req.Status
	}

	merged, err := uc.ledgerRepo.UpsertByPeriod(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert period event: %w", err)
	}

	if _, err := uc.projector.Project(ctx, item.ID); err != nil {
		return nil, err
	}

	snapshot, err := uc.itemRepo.FindByID(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tracked item: %w", err)
	}

	return &SubmissionResponse{Event: merged, Snapshot: snapshot, ActionApplied: true}, nil
}

// CorrectEvent amends a historical ledger event in place and re-derives
// the owning item's snapshot from whatever event is now latest. The
// snapshot is never patched with a delta, so corrections to non-latest
// events cannot corrupt current stock.
func (uc *LedgerUseCase) CorrectEvent(ctx context.Context, req CorrectEventRequest) (*CorrectionResponse, error) {
	if req.EventID == "" {
		return nil, fmt.Errorf("validation failed: event_id is required")
	}

	event, err := uc.ledgerRepo.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger event: %w", err)
	}

	req.Patch.Apply(event)

	// Correction metadata rides in the raw payload so the audit trail
	// survives replay.
	if event.RawPayload == nil {
		event.RawPayload = map[string]interface{}{}
	}
	event.RawPayload["_corrected_by"] = req.ActorID
	event.RawPayload["_corrected_at"] = time.Now().UTC().Format(time.RFC3339)
	if req.Reason != "" {
		event.RawPayload["_correction_reason"] = req.Reason
	}

	if err := uc.ledgerRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update ledger event: %w", err)
	}

	if _, err := uc.projector.Project(ctx, event.TrackedItemID); err != nil {
		return nil, err
	}

	snapshot, err := uc.itemRepo.FindByID(ctx, event.TrackedItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tracked item: %w", err)
	}

	uc.logInfo(ctx, "ledger event corrected", map[string]interface{}{
		"event_id":        event.ID,
		"tracked_item_id": event.TrackedItemID,
		"corrected_by":    req.ActorID,
	})

	return &CorrectionResponse{Event: event, Snapshot: snapshot}, nil
}

// RebuildSnapshot re-projects the item's snapshot from its ledger
func (uc *LedgerUseCase) RebuildSnapshot(ctx context.Context, trackedItemID string) (*domain.TrackedItem, error) {
	if trackedItemID == "" {
		return nil, fmt.Errorf("validation failed: tracked_item_id is required")
	}

	if _, err := uc.projector.Project(ctx, trackedItemID); err != nil {
		return nil, err
	}

	item, err := uc.itemRepo.FindByID(ctx, trackedItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tracked item: %w", err)
	}
	return item, nil
}

// RetireItem soft-retires a tracked item. Its ledger stays intact and
// readable; further submissions against it are rejected.
func (uc *LedgerUseCase) RetireItem(ctx context.Context, trackedItemID string) (*domain.TrackedItem, error) {
	if trackedItemID == "" {
		return nil, fmt.Errorf("validation failed: tracked_item_id is required")
	}

	item, err := uc.itemRepo.FindByID(ctx, trackedItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked item: %w", err)
	}

	item.Retire()
	if err := uc.itemRepo.Retire(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to retire tracked item: %w", err)
	}

	uc.logInfo(ctx, "tracked item retired", map[string]interface{}{
		"tracked_item_id": trackedItemID,
	})

	return item, nil
}

// ListHistory retrieves an item's ledger, newest first
func (uc *LedgerUseCase) ListHistory(ctx context.Context, trackedItemID string, limit int) ([]*domain.LedgerEvent, error) {
	if trackedItemID == "" {
		return nil, fmt.Errorf("validation failed: tracked_item_id is required")
	}
	events, err := uc.ledgerRepo.ListByItem(ctx, trackedItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger events: %w", err)
	}
	return events, nil
}

// ValidateFormula runs the design-time formula check for form authors
func (uc *LedgerUseCase) ValidateFormula(formulaText string, fieldIDs, mappedKeys []string) formula.Validation {
	return formula.Validate(formulaText, fieldIDs, mappedKeys)
}

// evaluateCalculatedFields evaluates every formula-bearing field and
// writes the results into a copy of the submitted values. Defaulted
// placeholders are surfaced as warnings and logged for audit; the end
// user never sees an error for a missing mapping.
func (uc *LedgerUseCase) evaluateCalculatedFields(ctx context.Context, req RecordSubmissionRequest) (domain.FormSubmission, []string, error) {
	values := make(domain.FormSubmission, len(req.Values))
	for k, v := range req.Values {
		values[k] = v
	}

	vars := make(map[string]float64, len(req.MappedValues)+len(req.Values))
	for key, value := range req.MappedValues {
		vars["mapped."+key] = value
	}
	for _, field := range req.Schema.Fields {
		if v, ok := values.NumericValue(field.ID); ok {
			vars[field.ID] = v
		}
	}

	var warnings []string
	for _, field := range req.Schema.Fields {
		if field.Formula == "" {
			continue
		}
		result, err := formula.Evaluate(field.Formula, vars)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to evaluate formula for field %s: %w", field.ID, err)
		}
		values[field.ID] = result.Value
		vars[field.ID] = result.Value

		if len(result.Defaulted) > 0 {
			warning := fmt.Sprintf("field %s used-default-for: [%s]", field.DisplayName(), strings.Join(result.Defaulted, ", "))
			warnings = append(warnings, warning)
			uc.logWarn(ctx, "formula placeholders defaulted to zero", map[string]interface{}{
				"tracked_item_id": req.TrackedItemID,
				"field_id":        field.ID,
				"defaulted":       result.Defaulted,
			})
		}
	}

	return values, warnings, nil
}

func (uc *LedgerUseCase) registerIdempotencyKey(ctx context.Context, key string) error {
	if key == "" || uc.idempotency == nil {
		return nil
	}
	fresh, err := uc.idempotency.Register(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !fresh {
		return domain.ErrDuplicateSubmission
	}
	return nil
}

func resolutionWarnings(base float64, res domain.Resolution) []string {
	var warnings []string
	if len(res.AmbiguousSetFields) > 0 {
		warnings = append(warnings, fmt.Sprintf("multiple set fields carried values; first wins, ignored: [%s]", strings.Join(res.AmbiguousSetFields, ", ")))
	}
	if res.Clamped {
		warnings = append(warnings, fmt.Sprintf("calculated quantity was negative (base %g), adjusted to 0", base))
	}
	return warnings
}

func (uc *LedgerUseCase) logInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if uc.logger != nil {
		uc.logger.Info(ctx, message, fields)
	}
}

func (uc *LedgerUseCase) logWarn(ctx context.Context, message string, fields map[string]interface{}) {
	if uc.logger != nil {
		uc.logger.Warn(ctx, message, fields)
	}
}
