package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tesla-sdk/internal/conf"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", conf.Version)
	},
}
