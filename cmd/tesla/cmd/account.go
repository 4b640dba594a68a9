package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(vehiclesCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the signed-in account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c, err := signedIn(ctx)
		cobra.CheckErr(err)

		me, err := c.Account().Me(ctx)
		cobra.CheckErr(err)
		printJSON(cmd, me)
	},
}

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "List the vehicles of the account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c, err := signedIn(cmd.Context())
		cobra.CheckErr(err)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID\tVIN\tSTATE")
		for _, v := range c.Vehicles() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name(), v.Summary.IDS, v.Summary.VIN, v.Summary.State)
		}
		cobra.CheckErr(w.Flush())
	},
}
