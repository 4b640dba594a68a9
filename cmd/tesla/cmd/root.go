package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tesla-sdk/internal/auth"
	"tesla-sdk/internal/biz"
	"tesla-sdk/internal/conf"
)

var verbose = false
var workdir = ""

var (
	rootCmd = &cobra.Command{
		Use:          "tesla",
		Short:        "Tesla owner API client",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if workdir != "" {
				err := os.Chdir(workdir)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Failed to change working directory: %v\n", err)
					os.Exit(1)
				}
			}
			if err := conf.LoadEnv(".env"); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
			}

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			if os.Getenv("PRETTY_LOGS") != "false" {
				logger := slog.New(
					console.NewHandler(os.Stderr, &console.HandlerOptions{Level: logLevel}),
				)
				slog.SetDefault(logger)
			} else {
				slog.SetLogLoggerLevel(logLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
)

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func init() {
	viper.SetEnvPrefix("TESLA")
	viper.AutomaticEnv()
	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.StringVarP(&workdir, "workdir", "w", "", "working directory")
	persistentFlags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	persistentFlags.StringP("config", "c", "", "config file, relative to working directory")
	persistentFlags.StringP("email", "e", "", "account email, overrides the config file")
	viper.BindPFlag("config", persistentFlags.Lookup("config"))
	viper.BindPFlag("email", persistentFlags.Lookup("email"))
}

// loadConfig reads the config file and applies the --email flag.
func loadConfig() (*conf.Config, error) {
	cfg, err := conf.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", viper.GetString("config"), err)
	}
	if email := viper.GetString("email"); email != "" {
		cfg.Email = email
	}
	return cfg, nil
}

func newClient() (*biz.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return biz.NewClient(cfg, slog.Default())
}

// signedIn returns a client with a usable token, prompting for a browser
// sign-in when the cache holds none.
func signedIn(ctx context.Context) (*biz.Client, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx, auth.NewPromptAuthenticator()); err != nil {
		return nil, err
	}
	return c, nil
}
