package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/careaudit-cli/internal/config"
	"github.com/sells-group/careaudit-cli/internal/db"
	"github.com/sells-group/careaudit-cli/internal/pipeline"
)

var thresholdsState string

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Re-evaluate sponsorship tiers of every sponsored facility",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := normalizeState(thresholdsState)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := setup(ctx, config.JobThresholds)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.Registry.Get(state); err != nil {
			return err
		}
		if err := e.withBilling(ctx); err != nil {
			return err
		}

		p := pipeline.New(pipeline.Deps{
			Store:   e.Store,
			Tiers:   e.Tiers,
			Alerter: e.Alerter,
			Metrics: e.Metrics,
		})
		_, err = p.Sweep(ctx, state, db.PageSize)
		e.pushMetrics(cmd.Context(), pipeline.JobThresholds, state)
		return err
	},
}

func init() {
	addStateFlag(thresholdsCmd, &thresholdsState)
	rootCmd.AddCommand(thresholdsCmd)
}
