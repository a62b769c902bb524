package domain

// DomainError represents a domain-specific error
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

var (
	ErrItemNotFound           = NewDomainError("tracked item not found")
	ErrEventNotFound          = NewDomainError("ledger event not found")
	ErrItemRetired            = NewDomainError("tracked item is retired")
	ErrInvalidAction          = NewDomainError("invalid inventory action")
	ErrInvalidEventKind       = NewDomainError("invalid event kind")
	ErrDuplicatePeriodicCheck = NewDomainError("a periodic check already exists for this item this month")
	ErrDuplicateSubmission    = NewDomainError("submission was already processed")
)
