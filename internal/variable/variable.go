package variable

import "strings"

// Variable is a single quantity declared directly on an item.
// The engine reads these records and never mutates them; all
// combination produces new Summary values.
type Variable struct {
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Category string  `json:"category,omitempty" yaml:"category,omitempty"`
}

// Map associates an item ID with its directly declared variables.
type Map map[string][]Variable

// NormalizeName produces the canonical key for a variable name.
// Names are unique per item after trimming and lowercasing.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
