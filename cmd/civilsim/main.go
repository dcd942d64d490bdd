// Command civilsim runs the civil violence simulation with network
// hardship contagion.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/config"
	"github.com/talgya/civil-violence/internal/logging"
	"github.com/talgya/civil-violence/internal/persistence"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "civilsim",
		Short: "Civil violence agent-based simulation",
		Long: `civilsim simulates citizens and cops on a toroidal grid. Citizens
rebel when grievance outweighs the perceived risk of arrest; hardship
spreads along a social network between active citizens.

Runs can be executed once, replicated in batches, swept over one
parameter, or served live over HTTP.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newBatchCmd(),
		newSweepCmd(),
		newServeCmd(),
		newStewardCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput(cmd) {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "civilsim version %s\n", version)
			}
		},
	}
}

// loadConfig resolves the configuration for a command: file, environment,
// then the seed and log-level flags. It installs the logger and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if f := cmd.Flags().Lookup("seed"); f != nil && f.Changed {
		seed, _ := cmd.Flags().GetInt64("seed")
		cfg.Model.Seed = &seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Logging.Level, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the run store when one is configured. A nil DB means
// persistence is disabled.
func openStore(cfg *config.Config) (*persistence.DB, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	db, err := persistence.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	slog.Info("run store opened", "path", cfg.Store.Path)
	return db, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
