package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/formula"
	"github.com/stocktrail/stocktrail/internal/usecase"
)

type mockLedgerService struct {
	mock.Mock
}

func (m *mockLedgerService) ProvisionItem(ctx context.Context, req usecase.ProvisionItemRequest) (*usecase.ProvisionItemResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ProvisionItemResponse), args.Error(1)
}

func (m *mockLedgerService) RecordSubmission(ctx context.Context, req usecase.RecordSubmissionRequest) (*usecase.SubmissionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.SubmissionResponse), args.Error(1)
}

func (m *mockLedgerService) RecordPeriodCheck(ctx context.Context, req usecase.PeriodCheckRequest) (*usecase.SubmissionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.SubmissionResponse), args.Error(1)
}

func (m *mockLedgerService) CorrectEvent(ctx context.Context, req usecase.CorrectEventRequest) (*usecase.CorrectionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.CorrectionResponse), args.Error(1)
}

func (m *mockLedgerService) RebuildSnapshot(ctx context.Context, trackedItemID string) (*domain.TrackedItem, error) {
	args := m.Called(ctx, trackedItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrackedItem), args.Error(1)
}

func (m *mockLedgerService) RetireItem(ctx context.Context, trackedItemID string) (*domain.TrackedItem, error) {
	args := m.Called(ctx, trackedItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrackedItem), args.Error(1)
}

func (m *mockLedgerService) ListHistory(ctx context.Context, trackedItemID string, limit int) ([]*domain.LedgerEvent, error) {
	args := m.Called(ctx, trackedItemID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LedgerEvent), args.Error(1)
}

func (m *mockLedgerService) ValidateFormula(formulaText string, fieldIDs, mappedKeys []string) formula.Validation {
	args := m.Called(formulaText, fieldIDs, mappedKeys)
	return args.Get(0).(formula.Validation)
}

type staticPinVerifier struct {
	pin string
}

func (v *staticPinVerifier) Verify(pin string) (bool, error) {
	return pin == v.pin, nil
}

func setupRouter(service LedgerService, pin *staticPinVerifier) *mux.Router {
	router := mux.NewRouter()
	var handler *InventoryHandler
	if pin != nil {
		handler = NewInventoryHandler(service, pin)
	} else {
		handler = NewInventoryHandler(service, nil)
	}
	handler.RegisterRoutes(router)
	return router
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var envelope Envelope
	assert.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope
}

func TestProvisionItemHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*mockLedgerService)
		expectedStatus int
		expectedOK     bool
	}{
		{
			name: "success",
			body: `{"organization_id":"org-1","asset_id":"asset-1","name":"Ladder","quantity":4}`,
			setupMock: func(m *mockLedgerService) {
				m.On("ProvisionItem", mock.Anything, mock.Anything).Return(&usecase.ProvisionItemResponse{
					Item: &domain.TrackedItem{ID: "item-1", Quantity: 4},
				}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedOK:     true,
		},
		{
			name:           "invalid json",
			body:           `{not json`,
			setupMock:      func(m *mockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			expectedOK:     false,
		},
		{
			name: "not found mapped to 404",
			body: `{"organization_id":"org-1","asset_id":"asset-1","name":"Ladder"}`,
			setupMock: func(m *mockLedgerService) {
				m.On("ProvisionItem", mock.Anything, mock.Anything).Return(nil, domain.ErrItemNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockLedgerService)
			tt.setupMock(service)
			router := setupRouter(service, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)
			envelope := decodeEnvelope(t, recorder)
			assert.Equal(t, tt.expectedOK, envelope.Status)
			service.AssertExpectations(t)
		})
	}
}

func TestRecordSubmissionHandler_PlumbsItemIDAndIdempotencyKey(t *testing.T) {
	service := new(mockLedgerService)
	service.On("RecordSubmission", mock.Anything, mock.MatchedBy(func(req usecase.RecordSubmissionRequest) bool {
		return req.TrackedItemID == "item-7" && req.IdempotencyKey == "delivery-9" && req.ActorID == "user-3"
	})).Return(&usecase.SubmissionResponse{
		Event: &domain.LedgerEvent{ID: "event-1"},
	}, nil)
	router := setupRouter(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/item-7/submissions", bytes.NewBufferString(`{"kind":"addition","values":{}}`))
	req.Header.Set("Idempotency-Key", "delivery-9")
	req.Header.Set("X-User-ID", "user-3")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	service.AssertExpectations(t)
}

func TestRecordSubmissionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{name: "duplicate period check", err: domain.ErrDuplicatePeriodicCheck, expectedStatus: http.StatusConflict},
		{name: "duplicate submission", err: domain.ErrDuplicateSubmission, expectedStatus: http.StatusConflict},
		{name: "retired item", err: domain.ErrItemRetired, expectedStatus: http.StatusBadRequest},
		{name: "unknown item", err: domain.ErrItemNotFound, expectedStatus: http.StatusNotFound},
		{name: "bad formula", err: &formula.SyntaxError{Formula: "{a}+", Reason: "unexpected end of expression"}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockLedgerService)
			service.On("RecordSubmission", mock.Anything, mock.Anything).Return(nil, tt.err)
			router := setupRouter(service, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/items/item-1/submissions", bytes.NewBufferString(`{"kind":"audit","values":{}}`))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)
			envelope := decodeEnvelope(t, recorder)
			assert.False(t, envelope.Status)
		})
	}
}

func TestRecordPeriodCheckHandler(t *testing.T) {
	service := new(mockLedgerService)
	service.On("RecordPeriodCheck", mock.Anything, mock.MatchedBy(func(req usecase.PeriodCheckRequest) bool {
		return req.TrackedItemID == "item-2" && req.Quantity == 5
	})).Return(&usecase.SubmissionResponse{
		Event: &domain.LedgerEvent{ID: "event-1", Quantity: 12},
	}, nil)
	router := setupRouter(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/item-2/period-checks", bytes.NewBufferString(`{"quantity":5,"location":"depot"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestCorrectEventHandler_PinGuard(t *testing.T) {
	tests := []struct {
		name           string
		pin            string
		expectedStatus int
		serviceCalled  bool
	}{
		{name: "valid pin", pin: "4321", expectedStatus: http.StatusOK, serviceCalled: true},
		{name: "wrong pin", pin: "0000", expectedStatus: http.StatusForbidden, serviceCalled: false},
		{name: "missing pin", pin: "", expectedStatus: http.StatusForbidden, serviceCalled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockLedgerService)
			if tt.serviceCalled {
				service.On("CorrectEvent", mock.Anything, mock.MatchedBy(func(req usecase.CorrectEventRequest) bool {
					return req.EventID == "event-5"
				})).Return(&usecase.CorrectionResponse{
					Event: &domain.LedgerEvent{ID: "event-5"},
				}, nil)
			}
			router := setupRouter(service, &staticPinVerifier{pin: "4321"})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/events/event-5/corrections", bytes.NewBufferString(`{"patch":{"quantity":50},"reason":"typo"}`))
			if tt.pin != "" {
				req.Header.Set("X-Correction-Pin", tt.pin)
			}
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)
			service.AssertExpectations(t)
		})
	}
}

func TestListHistoryHandler_LimitQuery(t *testing.T) {
	service := new(mockLedgerService)
	service.On("ListHistory", mock.Anything, "item-3", 5).Return([]*domain.LedgerEvent{
		{ID: "event-1"},
	}, nil)
	router := setupRouter(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/item-3/history?limit=5", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestRebuildSnapshotHandler(t *testing.T) {
	service := new(mockLedgerService)
	service.On("RebuildSnapshot", mock.Anything, "item-4").Return(&domain.TrackedItem{ID: "item-4", Quantity: 9}, nil)
	router := setupRouter(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/item-4/snapshot/rebuild", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestRetireItemHandler(t *testing.T) {
	service := new(mockLedgerService)
	service.On("RetireItem", mock.Anything, "item-6").Return(&domain.TrackedItem{ID: "item-6", Retired: true}, nil)
	router := setupRouter(service, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/items/item-6", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestValidateFormulaHandler(t *testing.T) {
	service := new(mockLedgerService)
	service.On("ValidateFormula", "{a}+{b}", []string{"a", "b"}, []string(nil)).Return(formula.Validation{
		Valid:            true,
		ReferencedFields: []string{"a", "b"},
	})
	router := setupRouter(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/formulas/validate", bytes.NewBufferString(`{"formula":"{a}+{b}","field_ids":["a","b"]}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	assert.True(t, envelope.Status)
	service.AssertExpectations(t)
}
