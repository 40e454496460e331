package variable

import "strings"

// Amount is one aggregated entry in a Summary.
type Amount struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
	Category string  `json:"category,omitempty"`
}

// Summary maps normalized variable names to aggregated amounts.
// Summaries are treated as immutable once handed out: Fold, Merge
// and Scale all allocate a new map.
type Summary map[string]Amount

// Fold left-folds a list of variables into a Summary, summing
// quantities of same-named entries and keeping the first non-empty
// unit and category.
func Fold(vars []Variable) Summary {
	s := make(Summary, len(vars))
	for _, v := range vars {
		key := NormalizeName(v.Name)
		if key == "" {
			continue
		}
		cur, ok := s[key]
		if !ok {
			s[key] = Amount{Name: strings.TrimSpace(v.Name), Quantity: v.Quantity, Unit: v.Unit, Category: v.Category}
			continue
		}
		cur.Quantity += v.Quantity
		if cur.Unit == "" {
			cur.Unit = v.Unit
		}
		if cur.Category == "" {
			cur.Category = v.Category
		}
		s[key] = cur
	}
	return s
}

// Merge combines two summaries into a new one. Quantities of
// same-named entries are summed; the receiver's unit and category
// win when non-empty.
func (s Summary) Merge(other Summary) Summary {
	out := s.Clone()
	for key, add := range other {
		cur, ok := out[key]
		if !ok {
			out[key] = add
			continue
		}
		cur.Quantity += add.Quantity
		if cur.Unit == "" {
			cur.Unit = add.Unit
		}
		if cur.Category == "" {
			cur.Category = add.Category
		}
		out[key] = cur
	}
	return out
}

// Scale multiplies every quantity by factor, returning a new Summary.
func (s Summary) Scale(factor float64) Summary {
	out := make(Summary, len(s))
	for key, a := range s {
		a.Quantity *= factor
		out[key] = a
	}
	return out
}

// Clone returns a shallow copy safe to mutate independently.
func (s Summary) Clone() Summary {
	out := make(Summary, len(s))
	for key, a := range s {
		out[key] = a
	}
	return out
}

// Quantity returns the aggregated quantity for name (0 if absent).
func (s Summary) Quantity(name string) float64 {
	return s[NormalizeName(name)].Quantity
}
