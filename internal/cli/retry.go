package cli

import (
	"context"

	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Drain one batch of the webhook retry queue and print its stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		var processor *retryqueue.Processor
		app := fx.New(serviceModules(), fx.Populate(&processor))

		return runOnce(cmd.Context(), app, func(ctx context.Context) error {
			stats, err := processor.RunOnce(ctx)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), stats)
		})
	},
}
