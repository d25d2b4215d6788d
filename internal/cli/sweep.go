package cli

import (
	"context"

	"github.com/1rokoko/stripe-deposit-sub000/internal/reauth"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one reauthorization cycle and print its stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		var scheduler *reauth.Scheduler
		app := fx.New(serviceModules(), fx.Populate(&scheduler))

		return runOnce(cmd.Context(), app, func(ctx context.Context) error {
			stats, err := scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), stats)
		})
	},
}
