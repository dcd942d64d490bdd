package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/steward"
)

func newStewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steward",
		Short: "Watch a live run and target influencers when unrest builds",
		Long: `Observe a running "civilsim serve" instance over its API and jail or
remove an influencer whenever the active count stays above the threshold.
Requires the server's admin key (CIVILSIM_ADMIN_KEY).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.API.AdminKey == "" {
				return fmt.Errorf("steward requires an admin key (CIVILSIM_ADMIN_KEY or api.admin_key)")
			}

			st := cfg.Steward
			flags := cmd.Flags()
			if flags.Changed("url") {
				st.URL, _ = flags.GetString("url")
			}
			if flags.Changed("interval") {
				st.Interval, _ = flags.GetDuration("interval")
			}
			if flags.Changed("threshold") {
				st.Threshold, _ = flags.GetInt("threshold")
			}
			if flags.Changed("cooldown") {
				st.Cooldown, _ = flags.GetInt("cooldown")
			}
			if flags.Changed("action") {
				st.Action, _ = flags.GetString("action")
			}
			if st.Interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", st.Interval)
			}

			s, err := steward.New(st.URL, cfg.API.AdminKey, steward.Policy{
				Threshold: st.Threshold,
				Cooldown:  st.Cooldown,
				Action:    st.Action,
			}, steward.LoadMemory(st.MemoryPath))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("steward starting",
				"url", st.URL,
				"interval", st.Interval,
				"threshold", st.Threshold,
				"action", st.Action,
			)
			if err := s.WaitReady(ctx, 5*time.Minute); err != nil {
				return err
			}
			s.Run(ctx, st.Interval)
			return nil
		},
	}
	cmd.Flags().String("url", "", "civilsim API base URL (default: steward.url)")
	cmd.Flags().Duration("interval", 0, "Time between cycles (default: steward.interval)")
	cmd.Flags().Int("threshold", 0, "Active count that triggers an intervention (default: steward.threshold)")
	cmd.Flags().Int("cooldown", 0, "Minimum ticks between interventions (default: steward.cooldown)")
	cmd.Flags().String("action", "", "jail_influencer or remove_influencer (default: steward.action)")
	return cmd
}
