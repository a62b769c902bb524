package pin

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptPinService verifies the correction PIN guarding historical
// amendments against a bcrypt hash supplied through configuration.
type BcryptPinService struct {
	hash string
	cost int
}

// NewBcryptPinService creates a PIN service around a configured hash
func NewBcryptPinService(hash string, cost int) *BcryptPinService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPinService{hash: hash, cost: cost}
}

// HashPin hashes a raw PIN for storage in configuration
func (s *BcryptPinService) HashPin(pin string) (string, error) {
	if pin == "" {
		return "", fmt.Errorf("pin cannot be empty")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether the supplied PIN matches the configured hash
func (s *BcryptPinService) Verify(pin string) (bool, error) {
	if s.hash == "" || pin == "" {
		return false, fmt.Errorf("pin cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(s.hash), []byte(pin))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare pin: %w", err)
	}

	return true, nil
}
