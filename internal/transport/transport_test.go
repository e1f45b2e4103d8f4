package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authkit/internal/config"
	"authkit/internal/events"
	"authkit/internal/store"
	"authkit/internal/token"
)

func newTestManager(t *testing.T) *token.Manager {
	t.Helper()

	registry := store.NewRegistry()
	require.NoError(t, registry.Register(config.StoreTypeMemory, store.NewMemory()))

	m, err := token.NewManager(token.ManagerConfig{
		Registry:             registry,
		StoreType:            config.StoreTypeMemory,
		StorageKey:           config.DefaultStorageKey,
		PreserveRefreshToken: true,
	})
	require.NoError(t, err)
	return m
}

func seed(t *testing.T, m *token.Manager, accessToken string) {
	t.Helper()
	_, err := m.SetToken(context.Background(),
		[]byte(`{"access_token":"`+accessToken+`","refresh_token":"r1","token_type":"bearer","expires_in":3600}`))
	require.NoError(t, err)
}

type refresherFunc func(ctx context.Context, extraParams url.Values, extraHeaders http.Header) ([]byte, error)

func (f refresherFunc) Refresh(ctx context.Context, p url.Values, h http.Header) ([]byte, error) {
	return f(ctx, p, h)
}

func TestAuthRoundTripper_AttachesHeaderCrossOrigin(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	m := newTestManager(t)
	seed(t, m, "abc")

	rt, err := NewAuthRoundTripper(nil, m, "https://app.example.com", nil)
	require.NoError(t, err)
	client := &http.Client{Transport: rt}

	_, err = client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestAuthRoundTripper_SkipsOwnOrigin(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	m := newTestManager(t)
	seed(t, m, "abc")

	// The app origin is the test server itself, so the request is
	// first-party and gets no header.
	rt, err := NewAuthRoundTripper(nil, m, server.URL, nil)
	require.NoError(t, err)
	client := &http.Client{Transport: rt}

	_, err = client.Get(server.URL + "/partials/home.html")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestAuthRoundTripper_BlacklistNeverGetsHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	m := newTestManager(t)
	seed(t, m, "abc")

	rt, err := NewAuthRoundTripper(nil, m, "", config.DefaultBlacklist)
	require.NoError(t, err)
	client := &http.Client{Transport: rt}

	for _, path := range []string{"/oauth/token", "/oauth/revoke", "/login", "/register"} {
		gotAuth = "unset"
		_, err = client.Post(server.URL+path, "application/x-www-form-urlencoded", strings.NewReader("x=1"))
		require.NoError(t, err)
		assert.Empty(t, gotAuth, "path %s must not carry a bearer header", path)
	}
}

func TestAuthRoundTripper_PreservesExistingHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	m := newTestManager(t)
	seed(t, m, "abc")

	rt, err := NewAuthRoundTripper(nil, m, "", nil)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err = (&http.Client{Transport: rt}).Do(req)
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlcjpwYXNz", gotAuth)
}

func TestAuthRoundTripper_NoTokenProceedsBare(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestManager(t) // nothing stored

	rt, err := NewAuthRoundTripper(nil, m, "", nil)
	require.NoError(t, err)

	resp, err := (&http.Client{Transport: rt}).Get(server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, gotAuth)
}

// retryFixture wires the full pipeline against a server that accepts only
// the token named in want.
type retryFixture struct {
	manager  *token.Manager
	bus      *events.Bus
	client   *http.Client
	refreshN int
}

func newRetryFixture(t *testing.T, refreshOutcome func(f *retryFixture) error) *retryFixture {
	t.Helper()

	f := &retryFixture{
		manager: newTestManager(t),
		bus:     events.NewBus(),
	}

	refresher := refresherFunc(func(ctx context.Context, _ url.Values, _ http.Header) ([]byte, error) {
		f.refreshN++
		if err := refreshOutcome(f); err != nil {
			return nil, err
		}
		return []byte("{}"), nil
	})

	cfg := config.Default()
	cfg.AppOrigin = ""
	client, err := NewPipeline(cfg, f.manager, refresher, f.bus, nil)
	require.NoError(t, err)
	f.client = client
	return f
}

func acceptOnly(want string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+want {
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{"ok":true}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid_token"}`)
	}
}

func TestRetryRoundTripper_RefreshAndRetryOnce(t *testing.T) {
	server := httptest.NewServer(acceptOnly("fresh"))
	defer server.Close()

	f := newRetryFixture(t, func(f *retryFixture) error {
		seed(t, f.manager, "fresh")
		return nil
	})
	seed(t, f.manager, "stale")

	resp, err := f.client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.refreshN)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestRetryRoundTripper_SecondConsecutive401DoesNotRefreshAgain(t *testing.T) {
	server := httptest.NewServer(acceptOnly("never-issued"))
	defer server.Close()

	f := newRetryFixture(t, func(f *retryFixture) error {
		// The refresh "succeeds" but the server still rejects the result.
		seed(t, f.manager, "still-stale")
		return nil
	})
	seed(t, f.manager, "stale")
	errEvents, cancel := f.bus.Subscribe(events.OAuthRequestError)
	defer cancel()

	resp, err := f.client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, f.refreshN, "the retried 401 must not trigger a second refresh")

	// The guard stays armed for the next request too.
	resp, err = f.client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, f.refreshN)

	select {
	case <-errEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("OAUTH_REQUEST_ERROR event not emitted")
	}
}

func TestRetryRoundTripper_FailedRefreshEmitsErrorAndStops(t *testing.T) {
	server := httptest.NewServer(acceptOnly("never-issued"))
	defer server.Close()

	f := newRetryFixture(t, func(f *retryFixture) error {
		return assert.AnError
	})
	seed(t, f.manager, "stale")
	errEvents, cancel := f.bus.Subscribe(events.OAuthRequestError)
	defer cancel()

	resp, err := f.client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, f.refreshN)

	select {
	case <-errEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("OAUTH_REQUEST_ERROR event not emitted")
	}
}

func TestRetryRoundTripper_AuthenticatedEventRearmsGuard(t *testing.T) {
	server := httptest.NewServer(acceptOnly("fresh"))
	defer server.Close()

	f := newRetryFixture(t, func(f *retryFixture) error {
		return assert.AnError
	})
	seed(t, f.manager, "stale")

	resp, err := f.client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, f.refreshN)

	// A fresh login resets the guard...
	f.bus.Publish(events.Authenticated, nil)
	require.Eventually(t, func() bool {
		resp, err := f.client.Get(server.URL + "/api/things")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return f.refreshN == 2
	}, 2*time.Second, 20*time.Millisecond, "guard was not re-armed after authentication")
}

func TestRetryRoundTripper_TerminalErrorPurgesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant"}`)
	}))
	defer server.Close()

	f := newRetryFixture(t, func(f *retryFixture) error { return nil })
	seed(t, f.manager, "abc")
	errEvents, cancel := f.bus.Subscribe(events.OAuthRequestError)
	defer cancel()

	resp, err := f.client.Get(server.URL + "/api/things")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, f.refreshN, "terminal errors must not trigger a refresh")

	_, err = f.manager.Token(context.Background())
	assert.ErrorIs(t, err, token.ErrNoToken)

	select {
	case <-errEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("OAUTH_REQUEST_ERROR event not emitted")
	}

	// The error body is still readable by the caller.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"invalid_grant"}`, string(body))
}

func TestRetryRoundTripper_PassesThroughUnrelatedErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"account_locked"}`)
	}))
	defer server.Close()

	f := newRetryFixture(t, func(f *retryFixture) error { return nil })
	seed(t, f.manager, "abc")

	resp, err := f.client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, f.refreshN)

	// Token stays: the error is not one of the OAuth invalidation codes.
	_, err = f.manager.Token(context.Background())
	assert.NoError(t, err)
}
