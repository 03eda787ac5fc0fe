package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ecom/pkg/export"
)

var plotFlags struct {
	out   string
	scene string
	since time.Duration
	limit int
	title string
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the convergence of persisted runs as an HTML chart",
	RunE:  runPlot,
}

func init() {
	f := plotCmd.Flags()
	f.StringVarP(&plotFlags.out, "out", "o", "convergence.html", "output file")
	f.StringVar(&plotFlags.scene, "scene", "", "only runs of this scene")
	f.DurationVar(&plotFlags.since, "since", 0, "only runs started within this duration")
	f.IntVar(&plotFlags.limit, "limit", 5, "most recent runs to plot (0 for all)")
	f.StringVar(&plotFlags.title, "title", "Convergence", "chart title")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, _ []string) (err error) {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Query(context.Background(), historyQuery(plotFlags.scene, plotFlags.since, plotFlags.limit))
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no runs to plot")
	}
	series := make([]export.Series, len(recs))
	for i, r := range recs {
		series[i] = export.Series{Name: fmt.Sprintf("%s %s", r.Scene, r.ID[:min(8, len(r.ID))]), Trace: r.Trace}
	}

	f, err := os.Create(plotFlags.out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := export.ConvergenceChartHTML(f, plotFlags.title, series...); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d runs to %s\n", len(recs), plotFlags.out)
	return nil
}
