package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ecom/app"
	"github.com/kilianp07/ecom/config"
	"github.com/kilianp07/ecom/infra/logger"
	_ "github.com/kilianp07/ecom/infra/metrics"
)

var runFlags struct {
	runs   int
	seed   int64
	export string
	format string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimise the community schedule",
	RunE:  runScene,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.runs, "runs", 0, "number of independent runs (overrides scene.runs)")
	f.Int64Var(&runFlags.seed, "seed", -1, "optimizer seed (overrides optimizer.seed)")
	f.StringVarP(&runFlags.export, "export", "o", "", "write the best schedule to this file")
	f.StringVar(&runFlags.format, "format", "", "export format: json, csv or yaml")
	rootCmd.AddCommand(runCmd)
}

func runScene(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runFlags.runs > 0 {
		cfg.Scene.Runs = runFlags.runs
	}
	if runFlags.seed >= 0 {
		cfg.Optimizer.Seed = uint64(runFlags.seed)
	}
	if runFlags.export != "" {
		cfg.Scene.Export = config.ExportConfig{Path: runFlags.export, Format: runFlags.format}
		cfg.Scene.SetDefaults()
		if err := cfg.Scene.Validate(); err != nil {
			return err
		}
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	results, err := svc.Run(ctx)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tITERATIONS\tEVALUATIONS\tBEST\tSTORAGE SLACK\tVEHICLE SLACK\tENS\tGRID EXCESS")
	for _, r := range results {
		inf := r.Infeasibility
		fmt.Fprintf(w, "%s\t%d\t%d\t%.6g\t%.4g\t%.4g\t%.4g\t%.4g\n",
			r.RunID, r.Iterations, r.Evaluations, r.BestFitness,
			inf.StorageSlack, inf.VehicleSlack, inf.ENS, inf.GridExcess)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
