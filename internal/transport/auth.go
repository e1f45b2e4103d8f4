package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"authkit/internal/token"
)

// AuthRoundTripper attaches the Authorization header to outgoing requests
// that leave the application's own origin. Requests matching a blacklist
// pattern, or already carrying an Authorization header, pass through
// unmodified. A request for which no header can be composed proceeds bare:
// being logged out is not a transport error.
type AuthRoundTripper struct {
	base      http.RoundTripper
	manager   *token.Manager
	appHost   string // normalized host:port, empty when no origin is configured
	blacklist []*regexp.Regexp
}

// NewAuthRoundTripper creates the outgoing interceptor. appOrigin may be
// empty, in which case every request is considered cross-origin.
func NewAuthRoundTripper(base http.RoundTripper, manager *token.Manager, appOrigin string, blacklist []string) (*AuthRoundTripper, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	if manager == nil {
		return nil, fmt.Errorf("auth transport: token manager is required")
	}

	var appHost string
	if appOrigin != "" {
		u, err := url.Parse(appOrigin)
		if err != nil {
			return nil, fmt.Errorf("auth transport: invalid app origin %q: %w", appOrigin, err)
		}
		appHost = normalizeHost(u)
	}

	patterns := make([]*regexp.Regexp, 0, len(blacklist))
	for _, pattern := range blacklist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("auth transport: invalid blacklist pattern %q: %w", pattern, err)
		}
		patterns = append(patterns, re)
	}

	return &AuthRoundTripper{
		base:      base,
		manager:   manager,
		appHost:   appHost,
		blacklist: patterns,
	}, nil
}

// normalizeHost returns host:port with the scheme's default port made
// explicit, so "https://api.example.com" and "https://api.example.com:443"
// compare equal.
func normalizeHost(u *url.URL) string {
	host := u.Host
	if !strings.Contains(host, ":") {
		switch u.Scheme {
		case "https":
			host += ":443"
		case "http":
			host += ":80"
		}
	}
	return host
}

func (a *AuthRoundTripper) blacklisted(u *url.URL) bool {
	target := u.String()
	for _, re := range a.blacklist {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}

func (a *AuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if a.appHost != "" && normalizeHost(req.URL) == a.appHost {
		return a.base.RoundTrip(req)
	}
	if a.blacklisted(req.URL) || req.Header.Get("Authorization") != "" {
		return a.base.RoundTrip(req)
	}

	header, err := a.manager.AuthorizationHeader(req.Context())
	if err != nil {
		slog.Debug("no authorization header available, request proceeds unauthenticated",
			"url", req.URL.Redacted(),
		)
		return a.base.RoundTrip(req)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", header)
	return a.base.RoundTrip(authed)
}
