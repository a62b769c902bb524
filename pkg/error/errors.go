package error

import (
	"errors"
	"net/http"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/formula"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "Conflict", Status: http.StatusConflict}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewConflict(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict}
}

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

// MapError translates engine errors into transport-level AppErrors.
// Storage failures stay internal; domain rejections keep their message.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var syntaxErr *formula.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewBadRequest(syntaxErr.Error())
	}

	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrEventNotFound):
		return NewNotFound(err.Error())
	case errors.Is(err, domain.ErrDuplicatePeriodicCheck), errors.Is(err, domain.ErrDuplicateSubmission):
		return NewConflict(err.Error())
	case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, domain.ErrInvalidEventKind), errors.Is(err, domain.ErrItemRetired):
		return NewBadRequest(err.Error())
	default:
		return NewInternalServer("An unexpected error occurred")
	}
}
