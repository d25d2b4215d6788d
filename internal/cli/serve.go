package cli

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/reauth"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	"github.com/1rokoko/stripe-deposit-sub000/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, webhook endpoint and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			serviceModules(),
			retryqueue.Worker,
			reauth.Worker,
			server.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}
