// Package oauth implements the client-side OAuth2 flows against the hosted
// identity provider: credential authentication, refresh-token exchange with
// single-flight de-duplication, factor challenges and revocation.
//
// The client owns no token state itself; it updates the token manager as a
// side effect of successful exchanges and signals lifecycle changes on the
// event bus. Construct one Client per logical session.
package oauth
