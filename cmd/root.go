package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"authkit/internal/oauth"
	"authkit/internal/session"
	"authkit/internal/token"
	"authkit/pkg/logging"
)

// Exit codes for CLI commands. These follow common conventions so scripts
// can distinguish "log in first" from a failed exchange.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the credential exchange failed.
	ExitCodeAuthFailed = 3
)

// Global flags shared by every subcommand.
var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command for the authkit application.
var rootCmd = &cobra.Command{
	Use:   "authkit",
	Short: "Manage tokens and sessions against a hosted identity provider",
	Long: `authkit binds a client application to a hosted identity provider.

It exchanges credentials for OAuth tokens, persists them in a pluggable
token store, refreshes them transparently, and answers who the current
user is.`,
	// SilenceUsage prevents cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.InitForCLI(level, os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command. It is called from the
// main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It is called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "authkit version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error onto a semantic exit code.
func getExitCode(err error) int {
	if errors.Is(err, token.ErrNoToken) || errors.Is(err, session.ErrUnauthenticated) {
		return ExitCodeAuthRequired
	}

	var oauthErr *oauth.Error
	if errors.As(err, &oauthErr) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config directory (default is $HOME/.config/authkit)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
