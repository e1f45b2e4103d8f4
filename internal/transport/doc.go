// Package transport implements the request interceptor pipeline as
// http.RoundTripper layers.
//
// AuthRoundTripper runs on the way out: it attaches the Authorization header
// to cross-origin requests unless the URL is blacklisted. RetryRoundTripper
// runs on the way back: terminal 400 OAuth errors purge the stored token,
// while refreshable 401s trigger one refresh-and-retry. NewPipeline stacks
// the two on a base transport in that order.
package transport
