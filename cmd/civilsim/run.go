package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/analysis"
	"github.com/talgya/civil-violence/internal/experiment"
	"github.com/talgya/civil-violence/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			steps, _ := cmd.Flags().GetInt("steps")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run, err := experiment.Execute(ctx, cfg.Model, steps)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				if err := db.SaveRun(run); err != nil {
					return fmt.Errorf("save run: %w", err)
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, run)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().Int64("seed", 0, "Random seed (default: fresh crypto seed)")
	cmd.Flags().Int("steps", 0, "Maximum iterations (default: model.max_iter)")
	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run independent replicates and summarize their outbreaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("runs")
			steps, _ := cmd.Flags().GetInt("steps")
			if n < 1 {
				return fmt.Errorf("--runs must be at least 1, got %d", n)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runs, err := experiment.Replicates(ctx, cfg.Model, n, steps)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				if err := saveRuns(db, runs); err != nil {
					return err
				}
			}

			series := make([][]int, len(runs))
			for i, r := range runs {
				series[i] = r.Actives()
			}
			summary := analysis.Summarize(series, cfg.Model.OutbreakThreshold)

			if jsonOutput(cmd) {
				return writeJSON(cmd, summary)
			}
			for _, r := range runs {
				printRun(cmd.OutOrStdout(), r)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().Int64("seed", 0, "Base seed; replicate i uses seed+i")
	cmd.Flags().Int("runs", 10, "Number of replicates")
	cmd.Flags().Int("steps", 0, "Maximum iterations per run (default: model.max_iter)")
	return cmd
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Vary one parameter and summarize outbreaks at each value",
		Long: fmt.Sprintf(`Vary one parameter over evenly spaced values and run replicates at each.

Sweepable parameters: %v`, experiment.SweepParams()),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			param, _ := cmd.Flags().GetString("param")
			from, _ := cmd.Flags().GetFloat64("from")
			to, _ := cmd.Flags().GetFloat64("to")
			points, _ := cmd.Flags().GetInt("points")
			n, _ := cmd.Flags().GetInt("runs")
			steps, _ := cmd.Flags().GetInt("steps")
			if points < 1 || n < 1 {
				return fmt.Errorf("--points and --runs must be at least 1")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			results, err := experiment.Sweep(ctx, cfg.Model, param, experiment.Linspace(from, to, points), n, steps)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				for _, pt := range results {
					if err := saveRuns(db, pt.Runs); err != nil {
						return err
					}
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, results)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %10s %10s %10s %12s\n", param, "outbreaks", "mean_peak", "max_peak", "mean_length")
			for _, pt := range results {
				fmt.Fprintf(w, "%-12.4g %10.3f %10.1f %10d %12.1f\n",
					pt.Value, pt.Summary.MeanCount, pt.Summary.MeanPeak, pt.Summary.MaxPeak, pt.Summary.MeanDuration)
			}
			return nil
		},
	}
	cmd.Flags().Int64("seed", 0, "Base seed shared by every sweep point")
	cmd.Flags().String("param", "initial_legitimacy", "Parameter to vary")
	cmd.Flags().Float64("from", 0.5, "First value")
	cmd.Flags().Float64("to", 0.9, "Last value")
	cmd.Flags().Int("points", 5, "Number of values")
	cmd.Flags().Int("runs", 5, "Replicates per value")
	cmd.Flags().Int("steps", 0, "Maximum iterations per run (default: model.max_iter)")
	return cmd
}

func saveRuns(db *persistence.DB, runs []*experiment.Run) error {
	for _, r := range runs {
		if err := db.SaveRun(r); err != nil {
			return fmt.Errorf("save run %s: %w", r.ID, err)
		}
	}
	slog.Info("runs saved", "count", len(runs))
	return nil
}

func printRun(w io.Writer, r *experiment.Run) {
	last := r.Records[len(r.Records)-1]
	fmt.Fprintf(w, "run %s  seed %d  %s ticks in %s\n",
		r.ID, r.Seed, humanize.Comma(int64(last.Step)), r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintf(w, "  final: quiescent %s  active %s  jailed %s  legitimacy %.3f\n",
		humanize.Comma(int64(last.Quiescent)), humanize.Comma(int64(last.Active)),
		humanize.Comma(int64(last.Jailed)), last.Legitimacy)
	fmt.Fprintf(w, "  outbreaks: %d counted live, %d closed", last.Outbreaks, len(r.Outbreaks))
	if len(r.Outbreaks) > 0 {
		peaks, durations := analysis.Outbreaks(r.Actives(), r.Params.OutbreakThreshold)
		fmt.Fprintf(w, "  peaks %v  durations %v", peaks, durations)
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, s analysis.Summary) {
	fmt.Fprintf(w, "%s runs, %s outbreaks (%.2f per run)\n",
		humanize.Comma(int64(s.Runs)), humanize.Comma(int64(s.Outbreaks)), s.MeanCount)
	fmt.Fprintf(w, "  peak: mean %.1f max %d  duration: mean %.1f max %d\n",
		s.MeanPeak, s.MaxPeak, s.MeanDuration, s.MaxDuration)
}
