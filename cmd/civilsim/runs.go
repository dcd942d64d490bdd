package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/persistence"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs saved in the run store",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

// openRequiredStore opens the configured run store and fails when none is set.
func openRequiredStore(cmd *cobra.Command) (*persistence.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("no run store configured (store.path or CIVILSIM_DB)")
	}
	return db, nil
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRequiredStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs()
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if jsonOutput(cmd) {
				if runs == nil {
					runs = []persistence.RunSummary{}
				}
				return writeJSON(cmd, runs)
			}
			w := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(w, "%s  seed %-20d %-13s %s ticks  %d outbreaks  %s\n",
					r.ID, r.Seed, r.Topology, humanize.Comma(int64(r.Steps)), r.Outbreaks,
					humanize.Time(time.UnixMilli(r.FinishedMs)))
			}
			return nil
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one stored run (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRequiredStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			id := "latest"
			if len(args) == 1 {
				id = args[0]
			}
			events, _ := cmd.Flags().GetInt("events")
			run, err := db.LoadRun(id, events)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, run)
			}
			printStoredRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().Int("events", 10, "Number of recent events to show")
	return cmd
}

func printStoredRun(w io.Writer, r *persistence.StoredRun) {
	s := r.Summary
	fmt.Fprintf(w, "run %s  seed %d  %s  saved %s\n",
		s.ID, s.Seed, s.Topology, humanize.Time(time.UnixMilli(s.FinishedMs)))
	if n := len(r.Steps); n > 0 {
		last := r.Steps[n-1]
		fmt.Fprintf(w, "  final tick %s: quiescent %s  active %s  jailed %s  legitimacy %.3f\n",
			humanize.Comma(int64(last.Step)), humanize.Comma(int64(last.Quiescent)),
			humanize.Comma(int64(last.Active)), humanize.Comma(int64(last.Jailed)), last.Legitimacy)
	}
	fmt.Fprintf(w, "  outbreaks (threshold %d): %d\n", r.Params.OutbreakThreshold, len(r.Outbreaks))
	for _, o := range r.Outbreaks {
		fmt.Fprintf(w, "    tick %d  peak %d  lasted %d\n", o.Start, o.Peak, o.Duration)
	}
	for _, e := range r.Events {
		fmt.Fprintf(w, "  [%d] %s: %s\n", e.Tick, e.Category, e.Description)
	}
}
