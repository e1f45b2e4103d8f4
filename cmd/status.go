package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"authkit/internal/token"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored token's status",
	Long: `Inspect the locally stored token without contacting the identity provider.

Shows which token store is active, whether a token is present, and when it
expires. Use whoami to verify the token against the server.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		printKeyValue("Store", a.manager.StoreType())

		record, err := a.manager.Token(cmd.Context())
		if errors.Is(err, token.ErrNoToken) {
			printKeyValue("Token", "none (run 'authkit login')")
			return nil
		}
		if err != nil {
			return err
		}

		printKeyValue("Token", "present")
		printKeyValue("Type", record.TokenType)
		if record.RefreshToken != "" {
			printKeyValue("Refresh", "available")
		} else {
			printKeyValue("Refresh", "not available")
		}

		switch {
		case record.ExpiresAt.IsZero():
			printKeyValue("Expires", "unknown")
		case record.Expired(time.Now()):
			printKeyValue("Expires", "expired "+record.ExpiresAt.Format(time.RFC3339))
		default:
			printKeyValue("Expires", record.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	})
}
