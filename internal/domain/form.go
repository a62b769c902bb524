package domain

import (
	"strconv"
)

// InventoryAction declares how a submitted field value affects the
// tracked quantity. It is a closed enum: unknown tags are rejected at
// the boundary instead of silently behaving like "none".
type InventoryAction string

const (
	ActionNone     InventoryAction = "none"
	ActionAdd      InventoryAction = "add"
	ActionSubtract InventoryAction = "subtract"
	ActionSet      InventoryAction = "set"
)

// Valid reports whether the action is one of the known tags
func (a InventoryAction) Valid() bool {
	switch a {
	case ActionNone, ActionAdd, ActionSubtract, ActionSet:
		return true
	}
	return false
}

// FormFieldSpec is the slice of an externally-owned form schema the
// engine cares about: the field's identity, an optional arithmetic
// formula for calculated fields, and its inventory action tag.
type FormFieldSpec struct {
	ID      string          `json:"id"`
	Label   string          `json:"label,omitempty"`
	Type    string          `json:"type"`
	Formula string          `json:"formula,omitempty"`
	Action  InventoryAction `json:"inventory_action"`
}

// DisplayName is the label when present, otherwise the field id
func (f FormFieldSpec) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// FormSchema is the ordered field list supplied by the form designer
type FormSchema struct {
	Fields []FormFieldSpec `json:"fields"`
}

// ValidateActions rejects schemas carrying an unknown action tag
func (s FormSchema) ValidateActions() error {
	for _, field := range s.Fields {
		if field.Action != "" && !field.Action.Valid() {
			return ErrInvalidAction
		}
	}
	return nil
}

// FormSubmission is the raw field_id -> value map a user produced by
// filling out a form. It is transient input to the action resolver and
// is persisted verbatim as the ledger event's raw payload.
type FormSubmission map[string]interface{}

// NumericValue extracts a numeric submitted value. JSON numbers arrive
// as float64; numeric strings are accepted the way the submission UI
// sends them. Everything else is not numeric.
func (s FormSubmission) NumericValue(fieldID string) (float64, bool) {
	return asNumber(s[fieldID])
}

func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if v == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
