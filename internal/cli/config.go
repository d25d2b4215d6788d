package cli

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), cfg.Masked())
	},
}
