package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var verifyIdentity = false
var signOut = false

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(refreshCmd)

	loginCmd.Flags().BoolVar(&verifyIdentity, "verify", false, "verify the id_token against the SSO service keys")
	logoutCmd.Flags().BoolVar(&signOut, "sign-out", false, "also sign out of the SSO service in the browser")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in, reusing the cached token when possible",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c, err := signedIn(ctx)
		cobra.CheckErr(err)

		session := c.Session()
		if verifyIdentity {
			claims, err := session.VerifyIdentity(ctx)
			cobra.CheckErr(err)
			slog.Info("Identity verified", "sub", claims.Sub, "email", claims.Email)
		}

		tok, _ := session.CurrentToken()
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s at %s\n", session.Identity(), session.SSOBaseURL())
		if tok.ExpiresAt != 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Token expires %s\n", time.Unix(tok.ExpiresAt, 0).Format(time.RFC3339))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d vehicle(s)\n", len(c.Vehicles()))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the cached token",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c, err := newClient()
		cobra.CheckErr(err)

		// restore the cached token without starting an authorization;
		// Logout still clears a token Login could not restore
		if err := c.Session().Login(ctx); err != nil {
			slog.Warn("Cached token not restored", "error", err)
		}
		logoutURL, err := c.Logout(ctx, signOut)
		cobra.CheckErr(err)
		if logoutURL == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed out, cache %s updated\n", c.CachePath())
		if !signOut {
			fmt.Fprintf(cmd.OutOrStdout(), "To end the browser session open %s\n", logoutURL)
		}
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the cached token",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c, err := newClient()
		cobra.CheckErr(err)

		cobra.CheckErr(c.Session().Login(ctx))
		if !c.Session().IsAuthorized() {
			cobra.CheckErr(fmt.Errorf("not signed in, run tesla login"))
		}
		tok, err := c.Refresh(ctx)
		cobra.CheckErr(err)
		fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed, expires %s\n", time.Unix(tok.ExpiresAt, 0).Format(time.RFC3339))
	},
}
