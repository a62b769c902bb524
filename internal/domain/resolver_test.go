package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveActions_SetSuppressesAccumulation(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "received", Action: ActionAdd},
		{ID: "counted", Action: ActionSet},
		{ID: "broken", Action: ActionSubtract},
	}
	values := FormSubmission{"received": 5.0, "counted": 100.0, "broken": 2.0}

	res := ResolveActions(50, fields, values)

	assert.True(t, res.ActionApplied)
	assert.Equal(t, 100.0, res.NewQuantity)
	assert.Empty(t, res.AmbiguousSetFields)
	assert.False(t, res.Clamped)
}

func TestResolveActions_Accumulation(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "in", Action: ActionAdd},
		{ID: "extra", Action: ActionAdd},
		{ID: "out", Action: ActionSubtract},
	}
	values := FormSubmission{"in": 10.0, "extra": 5.0, "out": 2.0}

	res := ResolveActions(0, fields, values)

	assert.True(t, res.ActionApplied)
	assert.Equal(t, 13.0, res.NewQuantity)
}

func TestResolveActions_NoActionFields(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "comment", Action: ActionNone},
		{ID: "photo"},
	}
	values := FormSubmission{"comment": "looks fine"}

	res := ResolveActions(42, fields, values)

	assert.False(t, res.ActionApplied)
	assert.Equal(t, 42.0, res.NewQuantity)
}

func TestResolveActions_ActionFieldWithoutNumericValueIgnored(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "adjust", Action: ActionSet},
		{ID: "in", Action: ActionAdd},
	}
	values := FormSubmission{"adjust": "not a number", "in": 3.0}

	res := ResolveActions(7, fields, values)

	assert.True(t, res.ActionApplied)
	assert.Equal(t, 10.0, res.NewQuantity)
}

func TestResolveActions_AmbiguousSets(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "count_a", Action: ActionSet},
		{ID: "count_b", Action: ActionSet},
		{ID: "count_c", Action: ActionSet},
	}
	values := FormSubmission{"count_a": 10.0, "count_b": 20.0, "count_c": 30.0}

	res := ResolveActions(5, fields, values)

	assert.Equal(t, 10.0, res.NewQuantity)
	assert.Equal(t, []string{"count_b", "count_c"}, res.AmbiguousSetFields)
}

func TestResolveActions_NegativeResultClampedToZero(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "out", Action: ActionSubtract},
	}
	values := FormSubmission{"out": 10.0}

	res := ResolveActions(4, fields, values)

	assert.True(t, res.ActionApplied)
	assert.Equal(t, 0.0, res.NewQuantity)
	assert.True(t, res.Clamped)
}

func TestResolveActions_NumericStringValues(t *testing.T) {
	fields := []FormFieldSpec{
		{ID: "in", Action: ActionAdd},
	}
	values := FormSubmission{"in": "2.5"}

	res := ResolveActions(1, fields, values)

	assert.True(t, res.ActionApplied)
	assert.Equal(t, 3.5, res.NewQuantity)
}

func TestFormSchema_ValidateActions(t *testing.T) {
	valid := FormSchema{Fields: []FormFieldSpec{
		{ID: "a", Action: ActionAdd},
		{ID: "b"},
	}}
	assert.NoError(t, valid.ValidateActions())

	invalid := FormSchema{Fields: []FormFieldSpec{
		{ID: "a", Action: InventoryAction("increment")},
	}}
	assert.ErrorIs(t, invalid.ValidateActions(), ErrInvalidAction)
}
