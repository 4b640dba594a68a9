package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the loaded configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		cobra.CheckErr(err)

		if cfg.Vehicle.SpeedLimitPIN != "" {
			cfg.Vehicle.SpeedLimitPIN = "****"
		}
		if cfg.Vehicle.ValetPIN != "" {
			cfg.Vehicle.ValetPIN = "****"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", viper.GetString("config"))
		fmt.Fprintf(cmd.OutOrStdout(), "Cache file: %s\n", cfg.CachePath())
		cobra.CheckErr(yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg))
	},
}
