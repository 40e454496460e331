package config

import (
	"time"

	"github.com/planweave/tally/internal/item"
	"github.com/planweave/tally/internal/variable"
)

// Config is the top-level YAML structure: engine tunables plus the
// seed items and their declared variables.
type Config struct {
	Version string     `yaml:"version"`
	Engine  EngineConf `yaml:"engine"`
	Items   []ItemDef  `yaml:"items"`
}

// EngineConf holds tunable aggregation settings.
type EngineConf struct {
	MaxCascadeDepth   int     `yaml:"max_cascade_depth"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	CacheMaxEntries   int     `yaml:"cache_max_entries"`
	BatchSize         int     `yaml:"batch_size"`
	FloatTolerance    float64 `yaml:"float_tolerance"`
	DisableCycleCheck bool    `yaml:"disable_cycle_check"`
}

// CacheTTL returns the configured TTL as a duration.
func (e EngineConf) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLSeconds) * time.Second
}

// ItemDef declares one seed item, its parent references and its
// directly declared variables.
type ItemDef struct {
	ID        string              `yaml:"id"`
	Parents   []item.ParentRef    `yaml:"parents,omitempty"`
	Children  []string            `yaml:"children,omitempty"`
	Variables []variable.Variable `yaml:"variables,omitempty"`
}

// ItemMap converts the seed definitions into the provider map.
func (c *Config) ItemMap() item.Map {
	m := make(item.Map, len(c.Items))
	for _, def := range c.Items {
		m[def.ID] = &item.Item{ID: def.ID, Parents: def.Parents, Children: def.Children}
	}
	return m
}

// VariableMap converts the seed definitions into the variable
// provider map.
func (c *Config) VariableMap() variable.Map {
	m := make(variable.Map, len(c.Items))
	for _, def := range c.Items {
		if len(def.Variables) > 0 {
			m[def.ID] = def.Variables
		}
	}
	return m
}
