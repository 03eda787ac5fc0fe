package config

import (
	"fmt"

	"github.com/kilianp07/ecom/core/factory"
	"github.com/kilianp07/ecom/pkg/export"
)

// SceneConfig controls how the community is optimised.
type SceneConfig struct {
	Name string `json:"name"`
	// Workers bounds parallel member evaluation; 0 uses GOMAXPROCS.
	Workers int `json:"workers"`
	// Evaluator selects the fitness function, "cost" by default.
	Evaluator factory.ModuleConfig `json:"evaluator"`
	// Runs is the number of independent runs, each seeded with optimizer.seed+i.
	Runs int `json:"runs"`
	// Export writes the best schedule of all runs when a path is set.
	Export ExportConfig `json:"export"`
}

// ExportConfig selects where the best schedule is written.
type ExportConfig struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// SetDefaults fills unset fields.
func (c *SceneConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "community"
	}
	if c.Evaluator.Type == "" {
		c.Evaluator.Type = "cost"
	}
	if c.Runs == 0 {
		c.Runs = 1
	}
	if c.Export.Path != "" && c.Export.Format == "" {
		c.Export.Format = "json"
	}
}

// Validate checks the numeric settings.
func (c SceneConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", c.Runs)
	}
	if c.Export.Path != "" {
		if _, err := export.ParseFormat(c.Export.Format); err != nil {
			return err
		}
	}
	return nil
}
