package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/opera/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Resolves defaults, the configuration file, the .env file, OPERA_*
environment variables and flags, in that order, and prints the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}
		cfg, err := cli.LoadConfig(opts)
		if err != nil {
			return err
		}
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
