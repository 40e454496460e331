package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks the config for:
//   - Duplicate item IDs
//   - Parent references to unknown items or to the item itself
//   - Empty or non-finite variable declarations
//   - Out-of-range engine settings
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Engine.MaxCascadeDepth < 0 {
		errs = append(errs, "engine: max_cascade_depth must not be negative")
	}
	if cfg.Engine.CacheTTLSeconds < 0 {
		errs = append(errs, "engine: cache_ttl_seconds must not be negative")
	}
	if cfg.Engine.BatchSize < 0 {
		errs = append(errs, "engine: batch_size must not be negative")
	}

	ids := make(map[string]struct{}, len(cfg.Items))
	for i, def := range cfg.Items {
		if def.ID == "" {
			errs = append(errs, fmt.Sprintf("items[%d]: id is required", i))
			continue
		}
		if _, dup := ids[def.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate item id %q", def.ID))
		}
		ids[def.ID] = struct{}{}
	}

	for _, def := range cfg.Items {
		for _, p := range def.Parents {
			if p.ID == "" {
				errs = append(errs, fmt.Sprintf("item %s: parent id is required", def.ID))
				continue
			}
			if p.ID == def.ID {
				errs = append(errs, fmt.Sprintf("item %s: cannot be its own parent", def.ID))
			}
			if _, known := ids[p.ID]; !known {
				errs = append(errs, fmt.Sprintf("item %s: parent %q is not a declared item", def.ID, p.ID))
			}
		}
		for j, v := range def.Variables {
			if strings.TrimSpace(v.Name) == "" {
				errs = append(errs, fmt.Sprintf("item %s: variables[%d]: name is required", def.ID, j))
			}
			if math.IsNaN(v.Quantity) || math.IsInf(v.Quantity, 0) {
				errs = append(errs, fmt.Sprintf("item %s: variable %q: quantity must be finite", def.ID, v.Name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
