// Package plugins holds the evaluators a scene can be configured with.
package plugins

import (
	"github.com/kilianp07/ecom/core/factory"
	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/scene"
)

// EvaluatorFactory builds an evaluator for a community from raw config.
type EvaluatorFactory func(c *resource.Community, conf map[string]any) (scene.Evaluator, error)

var evaluators = factory.NewRegistry[EvaluatorFactory]()

// RegisterEvaluator adds an evaluator factory identified by name.
func RegisterEvaluator(name string, f EvaluatorFactory) error {
	return evaluators.Register(name, func(map[string]any) (EvaluatorFactory, error) { return f, nil })
}

// NewEvaluator builds the evaluator selected by cfg for c.
func NewEvaluator(c *resource.Community, cfg factory.ModuleConfig) (scene.Evaluator, error) {
	f, err := evaluators.Create(factory.ModuleConfig{Type: cfg.Type})
	if err != nil {
		return nil, err
	}
	return f(c, cfg.Conf)
}

// Evaluators lists the registered evaluator names.
func Evaluators() []string { return evaluators.Names() }
