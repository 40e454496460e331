package variable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/planweave/tally/internal/variable"
)

func TestFold_SumsByNormalizedName(t *testing.T) {
	s := variable.Fold([]variable.Variable{
		{Name: "Flour", Quantity: 2, Unit: "cups"},
		{Name: " flour ", Quantity: 3},
		{Name: "sugar", Quantity: 1, Unit: "tbsp", Category: "baking"},
	})

	assert.Len(t, s, 2)
	assert.Equal(t, 5.0, s.Quantity("flour"))
	assert.Equal(t, "cups", s["flour"].Unit)
	assert.Equal(t, 1.0, s.Quantity("Sugar"))
	assert.Equal(t, "baking", s["sugar"].Category)
}

func TestFold_FirstNonEmptyUnitWins(t *testing.T) {
	s := variable.Fold([]variable.Variable{
		{Name: "water", Quantity: 1},
		{Name: "water", Quantity: 2, Unit: "ml"},
		{Name: "water", Quantity: 3, Unit: "l"},
	})
	assert.Equal(t, 6.0, s.Quantity("water"))
	assert.Equal(t, "ml", s["water"].Unit)
}

func TestFold_SkipsBlankNames(t *testing.T) {
	s := variable.Fold([]variable.Variable{
		{Name: "   ", Quantity: 9},
		{Name: "eggs", Quantity: 2},
	})
	assert.Len(t, s, 1)
}

func TestMerge_DoesNotMutateOperands(t *testing.T) {
	a := variable.Fold([]variable.Variable{{Name: "flour", Quantity: 2, Unit: "cups"}})
	b := variable.Fold([]variable.Variable{{Name: "flour", Quantity: 3}, {Name: "salt", Quantity: 1, Unit: "tsp"}})

	out := a.Merge(b)

	assert.Equal(t, 5.0, out.Quantity("flour"))
	assert.Equal(t, "cups", out["flour"].Unit)
	assert.Equal(t, 1.0, out.Quantity("salt"))
	// Operands unchanged.
	assert.Equal(t, 2.0, a.Quantity("flour"))
	assert.Equal(t, 3.0, b.Quantity("flour"))
}

func TestScale(t *testing.T) {
	cases := []struct {
		name   string
		factor float64
		want   float64
	}{
		{"double", 2, 8},
		{"zero", 0, 0},
		{"negative", -1.5, -6},
		{"fractional", 0.25, 1},
	}
	base := variable.Fold([]variable.Variable{{Name: "flour", Quantity: 4, Unit: "cups"}})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := base.Scale(tc.factor)
			assert.Equal(t, tc.want, out.Quantity("flour"))
			assert.Equal(t, "cups", out["flour"].Unit)
			assert.Equal(t, 4.0, base.Quantity("flour"))
		})
	}
}
