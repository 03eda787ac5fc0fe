package plugins

import (
	"github.com/kilianp07/ecom/core/factory"
	"github.com/kilianp07/ecom/core/resource"
	"github.com/kilianp07/ecom/core/scene"
	"github.com/kilianp07/ecom/core/schedule"
)

func init() {
	_ = RegisterEvaluator("cost", func(c *resource.Community, conf map[string]any) (scene.Evaluator, error) {
		var cc struct {
			SlackPenalty *float64 `json:"slack_penalty"`
		}
		if err := factory.Decode(conf, &cc); err != nil {
			return nil, err
		}
		e, err := scene.NewCostEvaluator(c)
		if err != nil {
			return nil, err
		}
		if cc.SlackPenalty != nil {
			e.SlackPenalty = *cc.SlackPenalty
		}
		return e, nil
	})

	// constant scores every schedule the same; the search then only
	// exercises the repair pipeline.
	_ = RegisterEvaluator("constant", func(_ *resource.Community, conf map[string]any) (scene.Evaluator, error) {
		var cc struct {
			Value float64 `json:"value"`
		}
		if err := factory.Decode(conf, &cc); err != nil {
			return nil, err
		}
		return scene.EvaluatorFunc(func(*schedule.Candidate) float64 { return cc.Value }), nil
	})
}
