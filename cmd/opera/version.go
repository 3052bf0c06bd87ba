package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/opera"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of opera",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "opera version %s\n", strings.TrimSpace(opera.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
