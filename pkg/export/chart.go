package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is the best-fitness trace of one run.
type Series struct {
	Name  string
	Trace []float64
}

// ConvergenceChartHTML renders the traces as a line chart with one line per
// run. Iteration 0 is the initial population.
func ConvergenceChartHTML(w io.Writer, title string, runs ...Series) error {
	if len(runs) == 0 {
		return fmt.Errorf("convergence chart: no runs")
	}
	steps := 0
	for _, r := range runs {
		steps = max(steps, len(r.Trace))
	}
	xs := make([]int, steps)
	for i := range xs {
		xs[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "best fitness", Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xs)
	for _, r := range runs {
		data := make([]opts.LineData, len(r.Trace))
		for i, v := range r.Trace {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(r.Name, data)
	}
	return line.Render(w)
}
