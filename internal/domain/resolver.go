package domain

// Resolution is the outcome of resolving action-tagged fields against a
// base quantity. When ActionApplied is false no field carried an action
// and NewQuantity equals the base; callers use that to fall back to an
// explicit quantity supplied outside the form.
type Resolution struct {
	NewQuantity        float64
	ActionApplied      bool
	AmbiguousSetFields []string
	Clamped            bool
}

// ResolveActions computes the new quantity from action-tagged fields and
// their submitted values. The policy, in order:
//
//  1. The first field in schema order tagged "set" with a numeric value
//     wins: its value replaces the base quantity outright and every
//     add/subtract field is ignored. Further numeric set fields are
//     reported in AmbiguousSetFields; callers may treat that as an
//     error. Only the winning set field itself is exempt from the
//     accumulation pass, so nothing is ever double-applied.
//  2. With no winning set, every "add"/"subtract" field with a numeric
//     value accumulates onto the running quantity in schema order. A
//     negative running result is clamped to zero and Clamped is set.
//  3. If no field triggered an action, NewQuantity equals base and
//     ActionApplied is false.
//
// The resolver is pure: no I/O, no clock, no randomness.
func ResolveActions(base float64, fields []FormFieldSpec, values FormSubmission) Resolution {
	res := Resolution{NewQuantity: base}

	winningSet := -1
	for i, field := range fields {
		if field.Action != ActionSet {
			continue
		}
		if value, ok := values.NumericValue(field.ID); ok {
			if winningSet < 0 {
				winningSet = i
				res.NewQuantity = value
				res.ActionApplied = true
			} else {
				res.AmbiguousSetFields = append(res.AmbiguousSetFields, field.ID)
			}
		}
	}
	if winningSet >= 0 {
		return res
	}

	accumulated := false
	for _, field := range fields {
		if field.Action != ActionAdd && field.Action != ActionSubtract {
			continue
		}
		value, ok := values.NumericValue(field.ID)
		if !ok {
			continue
		}
		if field.Action == ActionAdd {
			res.NewQuantity += value
		} else {
			res.NewQuantity -= value
		}
		res.ActionApplied = true
		accumulated = true
	}

	if accumulated && res.NewQuantity < 0 {
		res.NewQuantity = 0
		res.Clamped = true
	}

	return res
}
