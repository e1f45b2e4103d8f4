package cmd

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"authkit/internal/oauth"
)

// Login-specific flags
var (
	loginUsername string
	loginPassword string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate to the identity provider",
	Long: `Exchange a username and password for an OAuth token.

The token is written to the configured token store and reused by every
subsequent command until it expires or is revoked with logout.

Examples:
  authkit login --username jlpicard            # password read from stdin
  authkit login -u jlpicard -p <password>      # password on the command line`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username or email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withApp(func(a *app) error {
		username := loginUsername
		if username == "" {
			var err error
			username, err = promptLine(cmd, "Username: ")
			if err != nil {
				return err
			}
		}

		password := loginPassword
		if password == "" {
			var err error
			password, err = promptLine(cmd, "Password: ")
			if err != nil {
				return err
			}
		}

		credentials := url.Values{}
		credentials.Set("username", username)
		credentials.Set("password", password)

		_, err := a.client.Authenticate(ctx, credentials, nil)
		if oauth.IsMFARequired(err) {
			code, promptErr := promptLine(cmd, "MFA code: ")
			if promptErr != nil {
				return promptErr
			}
			_, err = a.client.ChallengeMFA(ctx, oauth.ChallengeState(err), code)
		}
		if err != nil {
			return err
		}

		cmd.Printf("Logged in as %s\n", username)
		return nil
	})
}

// promptLine writes a prompt and reads one line from the command's input.
func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)

	in := cmd.InOrStdin()
	if in == nil {
		in = os.Stdin
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
