package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ecom/config"
	"github.com/kilianp07/ecom/core/runlog"
	"github.com/kilianp07/ecom/pkg/export"
)

var historyFlags struct {
	scene  string
	since  time.Duration
	limit  int
	id     string
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted runs or print the schedule of one run",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.scene, "scene", "", "only runs of this scene")
	f.DurationVar(&historyFlags.since, "since", 0, "only runs started within this duration")
	f.IntVar(&historyFlags.limit, "limit", 20, "most recent runs to show (0 for all)")
	f.StringVar(&historyFlags.id, "id", "", "print the best schedule of this run")
	f.StringVar(&historyFlags.format, "format", "csv", "schedule format with --id: json, csv or yaml")
	rootCmd.AddCommand(historyCmd)
}

func openStore() (runlog.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := runlog.NewStore(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("runlog is disabled in %s", cfgPath)
	}
	return store, nil
}

func historyQuery(scene string, since time.Duration, limit int) runlog.Query {
	q := runlog.Query{Scene: scene, Limit: limit}
	if since > 0 {
		q.Start = time.Now().Add(-since)
	}
	return q
}

func runHistory(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if historyFlags.id != "" {
		format, err := export.ParseFormat(historyFlags.format)
		if err != nil {
			return err
		}
		rec, err := store.Get(ctx, historyFlags.id)
		if err != nil {
			return fmt.Errorf("run %s: %w", historyFlags.id, err)
		}
		doc := export.Document{RunID: rec.ID, Scene: rec.Scene, BestFitness: rec.BestFitness, Variables: rec.Schedule}
		return export.Write(cmd.OutOrStdout(), format, doc)
	}

	recs, err := store.Query(ctx, historyQuery(historyFlags.scene, historyFlags.since, historyFlags.limit))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tSTARTED\tDURATION\tITERATIONS\tBEST\tENS\tSTOPPED")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.6g\t%.4g\t%t\n",
			r.ID, r.Scene, r.Started.Format(time.RFC3339), r.Finished.Sub(r.Started).Round(time.Millisecond),
			r.Iterations, r.BestFitness, r.ENS, r.Stopped)
	}
	return w.Flush()
}
