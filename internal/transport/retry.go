package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"authkit/internal/events"
	"authkit/internal/oauth"
	"authkit/internal/token"
)

// maxErrorBody caps how much of an error response is buffered for
// inspection.
const maxErrorBody = 1 << 20

// Refresher is the slice of the OAuth client the retry interceptor needs.
type Refresher interface {
	Refresh(ctx context.Context, extraParams url.Values, extraHeaders http.Header) ([]byte, error)
}

// RetryRoundTripper reacts to OAuth error responses.
//
// A 400 with a terminal credential code purges the stored token and emits
// OAuthRequestError: the credentials are bad and no retry can help. A 401
// with a refreshable code triggers one refresh and, on success, replays the
// original request once.
//
// The single-attempt guard is scoped to the round tripper, not to an
// individual request chain: after a failed refresh, unrelated concurrent
// failing requests are suppressed too until a later authentication or
// successful replay resets the guard, so a dead session never hammers the
// token endpoint.
type RetryRoundTripper struct {
	base      http.RoundTripper
	manager   *token.Manager
	refresher Refresher
	bus       *events.Bus

	attempted   atomic.Bool
	unsubscribe func()
}

// NewRetryRoundTripper creates the response-error interceptor. When a bus is
// supplied the guard resets on every Authenticated event, so a fresh login
// re-arms retries.
func NewRetryRoundTripper(base http.RoundTripper, manager *token.Manager, refresher Refresher, bus *events.Bus) (*RetryRoundTripper, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	if manager == nil {
		return nil, fmt.Errorf("retry transport: token manager is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("retry transport: refresher is required")
	}

	r := &RetryRoundTripper{
		base:      base,
		manager:   manager,
		refresher: refresher,
		bus:       bus,
	}
	if bus != nil {
		r.unsubscribe = bus.Notify(func(events.Event) {
			r.attempted.Store(false)
		}, events.Authenticated)
	}
	return r, nil
}

// Close releases the event subscription.
func (r *RetryRoundTripper) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// Reset re-arms the single-attempt guard.
func (r *RetryRoundTripper) Reset() {
	r.attempted.Store(false)
}

func (r *RetryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Buffer the error body so it can be inspected here and still read by
	// the caller.
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	oauthErr := oauth.ParseErrorBody(resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusBadRequest && oauth.IsTerminalCredentialError(oauthErr):
		slog.Warn("terminal OAuth error, discarding stored token",
			"code", oauthErr.Code,
			"url", req.URL.Redacted(),
		)
		if err := r.manager.RemoveToken(req.Context()); err != nil {
			slog.Warn("failed to discard token", "error", err.Error())
		}
		r.publish(oauthErr)
		return resp, nil

	case resp.StatusCode == http.StatusUnauthorized && oauth.IsRefreshableTokenError(oauthErr):
		return r.refreshAndRetry(req, resp, oauthErr)

	default:
		return resp, nil
	}
}

func (r *RetryRoundTripper) refreshAndRetry(req *http.Request, resp *http.Response, oauthErr *oauth.Error) (*http.Response, error) {
	if !r.attempted.CompareAndSwap(false, true) {
		// A refresh was already spent for this session.
		r.publish(oauthErr)
		return resp, nil
	}

	if _, err := r.refresher.Refresh(req.Context(), nil, nil); err != nil {
		slog.Warn("refresh after 401 failed", "error", err.Error())
		r.publish(oauthErr)
		return resp, nil
	}

	retry, ok := replayableRequest(req)
	if !ok {
		slog.Warn("cannot replay request after refresh, body is not reproducible",
			"url", req.URL.Redacted(),
		)
		r.publish(oauthErr)
		return resp, nil
	}

	slog.Debug("retrying request with refreshed token", "url", req.URL.Redacted())
	resp.Body.Close()

	retryResp, err := r.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if retryResp.StatusCode < 400 {
		// The session works again; re-arm the guard.
		r.attempted.Store(false)
	}
	return retryResp, nil
}

// replayableRequest clones req for a second attempt. The stale Authorization
// header is stripped so the outgoing interceptor attaches the refreshed one.
func replayableRequest(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(req.Context())
	retry.Header.Del("Authorization")

	if req.Body == nil || req.Body == http.NoBody {
		return retry, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry.Body = body
	return retry, true
}

func (r *RetryRoundTripper) publish(oauthErr *oauth.Error) {
	if r.bus != nil {
		r.bus.Publish(events.OAuthRequestError, oauthErr)
	}
}
