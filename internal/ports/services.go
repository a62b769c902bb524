package ports

import (
	"context"
)

// IdempotencyStore records submission keys so retried deliveries can be
// detected before any ledger write. Register returns false when the key
// was already seen inside its retention window.
type IdempotencyStore interface {
	Register(ctx context.Context, key string) (bool, error)
}

// PinVerifier checks the correction PIN guarding historical amendments
type PinVerifier interface {
	Verify(pin string) (bool, error)
}

// TokenService issues and validates API access tokens
type TokenService interface {
	Generate(userID string) (string, error)
	Validate(token string) (string, error)
}

// Logger is the structured logging surface the engine depends on
type Logger interface {
	Info(ctx context.Context, message string, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	Debug(ctx context.Context, message string, fields map[string]interface{})
}
