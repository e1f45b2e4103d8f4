package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Cookie is a Store keeping values in an http.CookieJar scoped to the API
// origin. It is meant for deployments where the API and the application live
// on different origins and the session has to ride in a cookie attached to
// the API host rather than in same-site storage.
type Cookie struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewCookie creates a cookie store for the given API origin. When jar is nil
// a fresh public-suffix-aware jar is created; passing the jar shared with the
// SDK's HTTP client makes the stored record travel with API requests.
func NewCookie(origin string, jar http.CookieJar) (*Cookie, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("cookie store: invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cookie store: origin %q must be absolute", origin)
	}

	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return &Cookie{jar: jar, origin: u}, nil
}

// Jar exposes the underlying jar so it can be shared with an http.Client.
func (c *Cookie) Jar() http.CookieJar {
	return c.jar
}

// cookieName maps a storage key to a valid cookie name.
func cookieName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}

func (c *Cookie) Get(_ context.Context, key string) ([]byte, error) {
	name := cookieName(key)
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name != name {
			continue
		}
		value, err := base64.RawURLEncoding.DecodeString(ck.Value)
		if err != nil {
			return nil, fmt.Errorf("cookie store: corrupt value for %q: %w", key, err)
		}
		return value, nil
	}
	return nil, ErrNotFound
}

func (c *Cookie) Put(_ context.Context, key string, value []byte) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:     cookieName(key),
		Value:    base64.RawURLEncoding.EncodeToString(value),
		Path:     "/",
		Secure:   c.origin.Scheme == "https",
		HttpOnly: true,
	}})
	return nil
}

func (c *Cookie) Remove(_ context.Context, key string) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:    cookieName(key),
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(1, 0),
	}})
	return nil
}
