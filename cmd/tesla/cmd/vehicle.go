package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"tesla-sdk/internal/api"
)

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(commandCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state <vehicle> [kind]",
	Short: "Print vehicle state, vehicle_data by default",
	Long:  "Print vehicle state. kind is one of: " + strings.Join(api.StateKinds(), ", "),
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		kind := "vehicle_data"
		if len(args) == 2 {
			kind = args[1]
		}

		c, err := signedIn(ctx)
		cobra.CheckErr(err)
		v, err := c.Vehicle(args[0])
		cobra.CheckErr(err)

		raw, err := v.State.Get(ctx, kind)
		cobra.CheckErr(err)
		printJSON(cmd, raw)
	},
}

var commandCmd = &cobra.Command{
	Use:   "command <vehicle> <name> [key=value...]",
	Short: "Send a command to a vehicle",
	Long: `Send a command to a vehicle. Parameters are passed as key=value pairs,
for example: tesla command Red set_charge_limit percent=80
The wake_up command wakes the car and prints its summary.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		params, err := parseParams(args[2:])
		cobra.CheckErr(err)

		c, err := signedIn(ctx)
		cobra.CheckErr(err)
		v, err := c.Vehicle(args[0])
		cobra.CheckErr(err)

		if args[1] == "wake_up" {
			summary, err := v.Command.WakeUp(ctx)
			cobra.CheckErr(err)
			printJSON(cmd, summary)
			return
		}

		res, err := v.Command.Send(ctx, args[1], params)
		cobra.CheckErr(err)
		printJSON(cmd, res)
		if !res.Result {
			cobra.CheckErr(fmt.Errorf("%s failed: %s", args[1], res.Reason))
		}
	},
}

func parseParams(pairs []string) (url.Values, error) {
	params := url.Values{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
		}
		params.Add(key, value)
	}
	return params, nil
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	cobra.CheckErr(enc.Encode(v))
}
