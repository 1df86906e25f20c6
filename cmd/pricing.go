package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/config"
)

var pricingState string

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Send grandfathered-rate reminders and migrate expired rates to current prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := normalizeState(pricingState)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		e, err := setup(ctx, config.JobPricing)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.withBilling(ctx); err != nil {
			return err
		}

		// Subscriptions are account-wide; --state scopes the run label only.
		rep, err := e.Billing.RunGrandfathered(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("pricing: complete", append(rep.Fields(), zap.String("jurisdiction", state))...)
		return nil
	},
}

func init() {
	addStateFlag(pricingCmd, &pricingState)
	rootCmd.AddCommand(pricingCmd)
}
