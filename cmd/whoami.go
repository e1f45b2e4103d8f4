package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

// Whoami-specific flags
var whoamiJSON bool

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current principal",
	Long: `Fetch the current principal from the identity provider's whoami endpoint.

The request goes through the intercepted pipeline: an expired access token
is refreshed transparently before the principal is returned.`,
	RunE: runWhoami,
}

func init() {
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "print the principal as JSON")
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		principal, err := a.sessions.Fetch(cmd.Context())
		if err != nil {
			return err
		}

		if whoamiJSON {
			out, err := json.MarshalIndent(principal, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}

		cmd.Println(principal.Username)
		if principal.Email != "" {
			printKeyValue("Email", principal.Email)
		}
		if name := strings.TrimSpace(principal.GivenName + " " + principal.Surname); name != "" {
			printKeyValue("Name", name)
		}
		if len(principal.Groups) > 0 {
			printKeyValue("Groups", strings.Join(principal.Groups, ", "))
		}
		if len(principal.Authorities) > 0 {
			printKeyValue("Authorities", strings.Join(principal.Authorities, ", "))
		}
		return nil
	})
}
