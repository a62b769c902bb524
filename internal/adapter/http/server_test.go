package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationMiddleware_AssignsID(t *testing.T) {
	handler := NewInventoryHandler(new(mockLedgerService), nil)
	server := NewServer(ServerConfig{Port: "0"}, handler, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("X-Correlation-ID"))
}

func TestCorrelationMiddleware_HonorsCallerID(t *testing.T) {
	handler := NewInventoryHandler(new(mockLedgerService), nil)
	server := NewServer(ServerConfig{Port: "0"}, handler, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "caller-supplied-id")
	recorder := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(recorder, req)

	assert.Equal(t, "caller-supplied-id", recorder.Header().Get("X-Correlation-ID"))
}
