package cmd

import (
	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	Long: `Revoke the stored token at the identity provider and remove it locally.

The local token is removed even when the revocation request fails, so a
logout always ends the session from the client's point of view.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if err := a.client.Revoke(cmd.Context(), nil, nil); err != nil {
			cmd.PrintErrf("Warning: server-side revocation failed: %v\n", err)
			cmd.Println("Local session ended.")
			return nil
		}
		cmd.Println("Logged out.")
		return nil
	})
}
