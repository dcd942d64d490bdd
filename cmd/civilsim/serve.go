package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/api"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/experiment"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a live simulation behind the HTTP API",
		Long: `Run one simulation in real time and serve its state over HTTP.

POST endpoints (speed, interventions) require CIVILSIM_ADMIN_KEY.
The run is saved to the store, if configured, when it finishes or the
process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.API.Port = port
			}
			speed, _ := cmd.Flags().GetFloat64("speed")
			keepServing, _ := cmd.Flags().GetBool("keep-serving")

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			started := time.Now()
			m, err := engine.NewModel(cfg.Model)
			if err != nil {
				return err
			}

			eng := engine.NewEngine(m)
			eng.SetSpeed(speed)
			eng.OnTick = func(m *engine.Model, rec engine.ModelRecord) {
				if rec.Step%100 == 0 {
					slog.Info("tick",
						"step", humanize.Comma(int64(rec.Step)),
						"active", rec.Active,
						"jailed", rec.Jailed,
						"legitimacy", fmt.Sprintf("%.3f", rec.Legitimacy),
					)
				}
			}

			srv := (&api.Server{
				Eng:      eng,
				DB:       db,
				Port:     cfg.API.Port,
				AdminKey: cfg.API.AdminKey,
			}).Start()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runErr := eng.Run(ctx)
			if runErr == nil && ctx.Err() == nil {
				slog.Info("simulation finished", "tick", eng.Tick())
				if keepServing {
					slog.Info("serving final state until interrupted")
					<-ctx.Done()
				}
			}

			if db != nil {
				var run *experiment.Run
				eng.Do(func(m *engine.Model) error {
					run = experiment.Capture(m, started)
					return nil
				})
				if err := db.SaveRun(run); err != nil {
					slog.Error("failed to save run", "error", err)
				} else {
					slog.Info("run saved", "run", run.ID, "ticks", len(run.Records)-1)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("HTTP shutdown", "error", err)
			}
			return runErr
		},
	}
	cmd.Flags().Int64("seed", 0, "Random seed (default: fresh crypto seed)")
	cmd.Flags().Int("port", 0, "HTTP port (default: api.port)")
	cmd.Flags().Float64("speed", 1, "Ticks per engine interval (0 = paused)")
	cmd.Flags().Bool("keep-serving", true, "Keep serving after the run finishes")
	return cmd
}
