// Package session tracks the authenticated principal and gates navigation
// on it.
//
// Service caches the principal returned by the whoami endpoint. The cache is
// three-state: unknown (never fetched), anonymous (fetched, not logged in)
// and authenticated. Guard consumes that cache to decide per-route
// navigation outcomes (resume, redirect or cancel) for routes declaring
// authentication or authorization requirements.
package session
