package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/formula"
	"github.com/stocktrail/stocktrail/internal/ports"
	"github.com/stocktrail/stocktrail/internal/usecase"
	apperror "github.com/stocktrail/stocktrail/pkg/error"
)

// LedgerService defines the behavior the handler depends on.
// Using an interface here makes the handler easily testable with mocks.
type LedgerService interface {
	ProvisionItem(ctx context.Context, req usecase.ProvisionItemRequest) (*usecase.ProvisionItemResponse, error)
	RecordSubmission(ctx context.Context, req usecase.RecordSubmissionRequest) (*usecase.SubmissionResponse, error)
	RecordPeriodCheck(ctx context.Context, req usecase.PeriodCheckRequest) (*usecase.SubmissionResponse, error)
	CorrectEvent(ctx context.Context, req usecase.CorrectEventRequest) (*usecase.CorrectionResponse, error)
	RebuildSnapshot(ctx context.Context, trackedItemID string) (*domain.TrackedItem, error)
	RetireItem(ctx context.Context, trackedItemID string) (*domain.TrackedItem, error)
	ListHistory(ctx context.Context, trackedItemID string, limit int) ([]*domain.LedgerEvent, error)
	ValidateFormula(formulaText string, fieldIDs, mappedKeys []string) formula.Validation
}

// InventoryHandler handles HTTP requests for the ledger engine
type InventoryHandler struct {
	ledger      LedgerService
	pinVerifier ports.PinVerifier
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(ledger LedgerService, pinVerifier ports.PinVerifier) *InventoryHandler {
	return &InventoryHandler{
		ledger:      ledger,
		pinVerifier: pinVerifier,
	}
}

// RegisterRoutes registers inventory routes
func (h *InventoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/items", h.ProvisionItem).Methods("POST")
	router.HandleFunc("/api/v1/items/{id}/submissions", h.RecordSubmission).Methods("POST")
	router.HandleFunc("/api/v1/items/{id}/period-checks", h.RecordPeriodCheck).Methods("POST")
	router.HandleFunc("/api/v1/items/{id}/history", h.ListHistory).Methods("GET")
	router.HandleFunc("/api/v1/items/{id}/snapshot/rebuild", h.RebuildSnapshot).Methods("POST")
	router.HandleFunc("/api/v1/items/{id}", h.RetireItem).Methods("DELETE")
	router.HandleFunc("/api/v1/events/{id}/corrections", h.CorrectEvent).Methods("POST")
	router.HandleFunc("/api/v1/formulas/validate", h.ValidateFormula).Methods("POST")
}

// ProvisionItem handles tracked item provisioning
func (h *InventoryHandler) ProvisionItem(w http.ResponseWriter, r *http.Request) {
	var req usecase.ProvisionItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.ActorID = actorID(r)

	response, err := h.ledger.ProvisionItem(r.Context(), req)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Tracked item provisioned", response)
}

// RecordSubmission handles a form submission against a tracked item
func (h *InventoryHandler) RecordSubmission(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id", "Tracked item ID is required")
		return
	}

	var req usecase.RecordSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.TrackedItemID = itemID
	req.ActorID = actorID(r)
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	response, err := h.ledger.RecordSubmission(r.Context(), req)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Submission recorded", response)
}

// RecordPeriodCheck handles a month-bucketed check contribution
func (h *InventoryHandler) RecordPeriodCheck(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id", "Tracked item ID is required")
		return
	}

	var req usecase.PeriodCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.TrackedItemID = itemID
	req.ActorID = actorID(r)
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	response, err := h.ledger.RecordPeriodCheck(r.Context(), req)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Period check recorded", response)
}

// CorrectEvent handles an in-place amendment of a historical event.
// Corrections are guarded by the correction PIN when one is configured.
func (h *InventoryHandler) CorrectEvent(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "event_id", "Event ID is required")
		return
	}

	if h.pinVerifier != nil {
		ok, err := h.pinVerifier.Verify(r.Header.Get("X-Correction-Pin"))
		if err != nil || !ok {
			writeError(w, http.StatusForbidden, "invalid_pin", "A valid correction PIN is required")
			return
		}
	}

	var req usecase.CorrectEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.EventID = eventID
	req.ActorID = actorID(r)

	response, err := h.ledger.CorrectEvent(r.Context(), req)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Event corrected", response)
}

// ListHistory handles retrieving an item's ledger
func (h *InventoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id", "Tracked item ID is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.ledger.ListHistory(r.Context(), itemID, limit)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "History retrieved", events)
}

// RebuildSnapshot handles an explicit snapshot re-projection
func (h *InventoryHandler) RebuildSnapshot(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id", "Tracked item ID is required")
		return
	}

	item, err := h.ledger.RebuildSnapshot(r.Context(), itemID)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Snapshot rebuilt", item)
}

// RetireItem handles soft-retiring a tracked item. The ledger stays
// intact; only new submissions are blocked.
func (h *InventoryHandler) RetireItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id", "Tracked item ID is required")
		return
	}

	item, err := h.ledger.RetireItem(r.Context(), itemID)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Tracked item retired", item)
}

// ValidateFormulaRequest is the design-time formula check payload
type ValidateFormulaRequest struct {
	Formula      string   `json:"formula"`
	FieldIDs     []string `json:"field_ids"`
	MappedFields []string `json:"mapped_fields"`
}

// ValidateFormula handles the design-time formula check for form authors
func (h *InventoryHandler) ValidateFormula(w http.ResponseWriter, r *http.Request) {
	var req ValidateFormulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	validation := h.ledger.ValidateFormula(req.Formula, req.FieldIDs, req.MappedFields)
	writeSuccess(w, http.StatusOK, "Formula validated", validation)
}

func (h *InventoryHandler) writeMappedError(w http.ResponseWriter, err error) {
	appErr := apperror.MapError(err)
	writeError(w, appErr.Status, appErr.Code, appErr.Message)
}

// actorID resolves the acting user: the auth middleware's context value
// when present, otherwise the X-User-ID header for development setups.
func actorID(r *http.Request) string {
	if userID, ok := r.Context().Value(userIDContextKey).(string); ok && userID != "" {
		return userID
	}
	return r.Header.Get("X-User-ID")
}
