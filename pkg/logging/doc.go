// Package logging provides the structured logging setup for authkit commands.
//
// It is a thin layer over Go's standard slog package: InitForCLI installs a
// text handler with a minimum level, and the Debug/Info/Warn/Error helpers
// tag every entry with a subsystem attribute so log output from the token,
// oauth and session layers can be told apart.
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("bootstrap", "starting up")
//	logging.Error("oauth", err, "token exchange failed")
package logging
