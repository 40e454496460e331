package coordinator

import (
	"math"

	"github.com/planweave/tally/internal/item"
	"github.com/planweave/tally/internal/variable"
)

// Discrepancy is one variable whose recomputed quantity differs from
// the expected one beyond the float tolerance.
type Discrepancy struct {
	Variable   string  `json:"variable"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
	Difference float64 `json:"difference"`
}

// ValidationResult reports whether a fresh recomputation matches an
// externally expected summary. Mismatches are returned as data, never
// raised.
type ValidationResult struct {
	IsValid       bool             `json:"is_valid"`
	ActualSummary variable.Summary `json:"actual_summary"`
	Discrepancies []Discrepancy    `json:"discrepancies,omitempty"`
}

// ValidateUpdate recomputes itemID's summary bypassing the cache and
// diffs every variable name present in either summary.
func (c *Coordinator) ValidateUpdate(itemID string, expected variable.Summary, items item.Map, vars variable.Map) *ValidationResult {
	actual := c.calc.CalculateFresh(itemID, items, vars)
	res := &ValidationResult{IsValid: true, ActualSummary: actual}

	names := make(map[string]struct{}, len(expected)+len(actual))
	for name := range expected {
		names[name] = struct{}{}
	}
	for name := range actual {
		names[name] = struct{}{}
	}
	for name := range names {
		want := expected[name].Quantity
		got := actual[name].Quantity
		if diff := math.Abs(want - got); diff > c.tolerance {
			res.IsValid = false
			res.Discrepancies = append(res.Discrepancies, Discrepancy{
				Variable:   name,
				Expected:   want,
				Actual:     got,
				Difference: diff,
			})
		}
	}
	return res
}
