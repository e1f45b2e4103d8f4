// Package events provides the typed event bus that authkit uses to signal
// authentication and session state changes to the host application.
//
// Hosts either consume a channel obtained from Bus.Subscribe or register a
// callback with Bus.Notify. Publishing never blocks: subscribers that fall
// behind lose events rather than stalling the token lifecycle.
package events
