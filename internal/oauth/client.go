package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"authkit/internal/events"
	"authkit/internal/token"
)

// DefaultHTTPTimeout bounds requests to the identity provider when no client
// is supplied.
const DefaultHTTPTimeout = 30 * time.Second

// Grant types used by the client. Hosts may override grant_type in the
// credential values for social or otherwise federated exchanges.
const (
	GrantPassword        = "password"
	GrantRefreshToken    = "refresh_token"
	GrantFactorChallenge = "factor_challenge"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// ClientConfig configures an OAuth Client.
type ClientConfig struct {
	// TokenEndpoint receives every grant exchange.
	TokenEndpoint string

	// RevokeEndpoint receives revocation requests.
	RevokeEndpoint string

	// Manager owns the token record the client maintains.
	Manager *token.Manager

	// Bus receives authentication lifecycle events. Optional.
	Bus *events.Bus

	// HTTPClient is used for provider requests. Use a plain client here, not
	// the intercepted pipeline: grant requests must never carry a bearer
	// header or trigger refresh-and-retry themselves.
	HTTPClient *http.Client
}

// Client performs the network operations of the token lifecycle against the
// identity provider, updating the token manager as a side effect. One Client
// serves one logical session; construct another for a second tenant rather
// than sharing.
type Client struct {
	tokenEndpoint  string
	revokeEndpoint string
	manager        *token.Manager
	bus            *events.Bus
	httpClient     *http.Client

	// refreshGroup collapses concurrent Refresh calls into a single network
	// request; all callers observe the same result.
	refreshGroup singleflight.Group
}

// NewClient creates a Client and wires it into the manager as the refresher
// used for expiry-triggered header composition.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("oauth client: token endpoint is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("oauth client: token manager is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	c := &Client{
		tokenEndpoint:  cfg.TokenEndpoint,
		revokeEndpoint: cfg.RevokeEndpoint,
		manager:        cfg.Manager,
		bus:            cfg.Bus,
		httpClient:     httpClient,
	}

	cfg.Manager.SetRefresher(token.RefresherFunc(func(ctx context.Context) error {
		_, err := c.Refresh(ctx, nil, nil)
		return err
	}))

	return c, nil
}

// Authenticate exchanges credentials for a token. The grant type defaults to
// password; social and federated flows override it through the credential
// values. On success the raw response is stored through the token manager
// and returned; on failure the manager is left untouched.
func (c *Client) Authenticate(ctx context.Context, credentials url.Values, extraHeaders http.Header) ([]byte, error) {
	data := cloneValues(credentials)
	if data.Get("grant_type") == "" {
		data.Set("grant_type", GrantPassword)
	}

	body, err := c.postForm(ctx, c.tokenEndpoint, data, extraHeaders)
	if err != nil {
		if IsMFARequired(err) {
			c.publish(events.MFARequired, err)
		} else {
			c.publish(events.AuthenticationFailure, err)
		}
		return nil, err
	}

	if _, err := c.manager.SetToken(ctx, body); err != nil {
		return nil, err
	}

	slog.Info("authentication succeeded", "grant_type", data.Get("grant_type"))
	c.publish(events.Authenticated, nil)
	return body, nil
}

// Refresh exchanges the stored refresh token for a new record. Concurrent
// calls share a single in-flight request. A failed refresh removes the
// stored token: a token that cannot be refreshed is treated as invalid.
//
// The shared request runs under the context of the caller that started it;
// later joiners observe its result even if their own context ends first.
func (c *Client) Refresh(ctx context.Context, extraParams url.Values, extraHeaders http.Header) ([]byte, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx, extraParams, extraHeaders)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) doRefresh(ctx context.Context, extraParams url.Values, extraHeaders http.Header) ([]byte, error) {
	refreshToken, err := c.manager.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	data := cloneValues(extraParams)
	data.Set("grant_type", GrantRefreshToken)
	data.Set("refresh_token", refreshToken)

	body, err := c.postForm(ctx, c.tokenEndpoint, data, extraHeaders)
	if err != nil {
		slog.Warn("token refresh failed, discarding stored token", "error", err.Error())
		if removeErr := c.manager.RemoveToken(ctx); removeErr != nil {
			slog.Warn("failed to discard token after refresh failure", "error", removeErr.Error())
		}
		return nil, err
	}

	if _, err := c.manager.SetToken(ctx, body); err != nil {
		return nil, err
	}
	slog.Debug("token refreshed")
	return body, nil
}

// Revoke asks the provider to revoke the current token, preferring the
// refresh token with a matching token_type_hint. Revocation is best-effort
// server-side: the local token is removed and SessionEnd emitted whether or
// not the provider call succeeds, and only then does a server error surface.
func (c *Client) Revoke(ctx context.Context, extraParams url.Values, extraHeaders http.Header) error {
	rec, err := c.manager.Token(ctx)
	if err != nil {
		return err
	}

	data := cloneValues(extraParams)
	if rec.RefreshToken != "" {
		data.Set("token", rec.RefreshToken)
		data.Set("token_type_hint", "refresh_token")
	} else {
		data.Set("token", rec.AccessToken)
		data.Set("token_type_hint", "access_token")
	}

	_, postErr := c.postForm(ctx, c.revokeEndpoint, data, extraHeaders)

	if err := c.manager.RemoveToken(ctx); err != nil {
		return err
	}
	c.publish(events.SessionEnd, nil)

	if postErr != nil {
		slog.Warn("server-side revocation failed, local token removed anyway",
			"error", postErr.Error(),
		)
		return postErr
	}
	return nil
}

// ChallengeMFA completes a pending factor challenge, exchanging the challenge
// state and the user-supplied code for a token.
func (c *Client) ChallengeMFA(ctx context.Context, state, code string) ([]byte, error) {
	data := url.Values{}
	data.Set("grant_type", GrantFactorChallenge)
	data.Set("state", state)
	data.Set("code", code)
	return c.Authenticate(ctx, data, nil)
}

// postForm issues a form-encoded POST and returns the response body. Error
// statuses are mapped to *Error; transport failures are returned verbatim.
func (c *Client) postForm(ctx context.Context, endpoint string, data url.Values, extraHeaders http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for key, values := range extraHeaders {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, ParseErrorBody(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) publish(t events.Type, payload any) {
	if c.bus != nil {
		c.bus.Publish(t, payload)
	}
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
