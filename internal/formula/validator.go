package formula

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Validation is the outcome of a design-time formula check. The
// referenced lists include every reference found in the formula, known
// or not, so UIs can highlight exactly what the author typed.
type Validation struct {
	Valid            bool     `json:"is_valid"`
	Reason           string   `json:"reason,omitempty"`
	ReferencedFields []string `json:"referenced_fields"`
	ReferencedMapped []string `json:"referenced_mapped_fields"`
}

// Validate checks a formula before it is allowed to be saved on a form:
// every referenced field id must exist in fieldIDs, every {mapped.*} key
// in mappedKeys, and the formula must parse as an arithmetic expression.
// The parse check is syntax-only: failures that depend on submitted
// values, like a divisor that happens to be zero, are runtime concerns
// and do not block saving. Callers exclude the field owning the formula
// from fieldIDs to forbid self-reference.
//
// This runs at form-design time only. Submissions always use the lenient
// Evaluate, so later changes to the mapped-field universe never break
// replay of old submissions.
func Validate(formula string, fieldIDs []string, mappedKeys []string) Validation {
	v := Validation{
		ReferencedFields: []string{},
		ReferencedMapped: []string{},
	}

	fields := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		fields[id] = true
	}
	mapped := make(map[string]bool, len(mappedKeys))
	for _, key := range mappedKeys {
		mapped[key] = true
	}

	for _, match := range placeholderPattern.FindAllStringSubmatch(formula, -1) {
		ref := match[1]

		if key, ok := strings.CutPrefix(ref, "mapped."); ok {
			v.ReferencedMapped = appendUnique(v.ReferencedMapped, key)
			if !mapped[key] && !mapped[ref] {
				v.Reason = fmt.Sprintf("unknown mapped field reference: %s", ref)
			}
			continue
		}

		v.ReferencedFields = appendUnique(v.ReferencedFields, ref)
		if !fields[ref] {
			v.Reason = fmt.Sprintf("unknown field reference: %s", ref)
		}
	}

	if v.Reason != "" {
		return v
	}

	if err := CheckSyntax(formula); err != nil {
		v.Reason = reasonFromError(err)
		return v
	}

	v.Valid = true
	return v
}

func reasonFromError(err error) string {
	if syntaxErr, ok := err.(*SyntaxError); ok {
		return syntaxErr.Reason
	}
	return err.Error()
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
