package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"authkit/internal/events"
)

// ErrUnauthenticated is returned when the whoami endpoint reports that no
// principal is logged in.
var ErrUnauthenticated = errors.New("session: not authenticated")

// State is the session cache state.
type State int

const (
	// StateUnknown means the principal has never been fetched.
	StateUnknown State = iota

	// StateAnonymous means the endpoint was consulted and nobody is logged
	// in.
	StateAnonymous

	// StateAuthenticated means a principal is cached.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ServiceConfig configures a session Service.
type ServiceConfig struct {
	// MeEndpoint is the whoami URL.
	MeEndpoint string

	// HTTPClient should be the intercepted pipeline client so the whoami
	// request carries the bearer header.
	HTTPClient *http.Client

	// Bus is subscribed for SessionEnd to drop the cache. Optional.
	Bus *events.Bus
}

// Service fetches and caches the current principal.
type Service struct {
	mu         sync.RWMutex
	meEndpoint string
	httpClient *http.Client
	state      State
	current    *Principal

	// group collapses concurrent whoami fetches.
	group singleflight.Group

	unsubscribe func()
}

// NewService creates a session service. When a bus is supplied the cache is
// invalidated on SessionEnd, so a logout is observed without a refetch.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.MeEndpoint == "" {
		return nil, fmt.Errorf("session service: whoami endpoint is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	s := &Service{
		meEndpoint: cfg.MeEndpoint,
		httpClient: httpClient,
		state:      StateUnknown,
	}
	if cfg.Bus != nil {
		s.unsubscribe = cfg.Bus.Notify(func(events.Event) {
			s.Invalidate()
		}, events.SessionEnd)
	}
	return s, nil
}

// Close releases the event subscription.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Current returns the cached principal and the cache state without touching
// the network. The principal is nil unless the state is StateAuthenticated.
func (s *Service) Current() (*Principal, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.state
}

// Invalidate drops the cache back to the unknown state.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.state = StateUnknown
}

// Fetch retrieves the principal from the whoami endpoint and caches it.
// A 401 marks the session anonymous and returns ErrUnauthenticated; other
// failures leave the cache untouched. Concurrent calls share one request.
func (s *Service) Fetch(ctx context.Context) (*Principal, error) {
	v, err, _ := s.group.Do("whoami", func() (any, error) {
		return s.doFetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Principal), nil
}

func (s *Service) doFetch(ctx context.Context) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.meEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		s.mu.Lock()
		s.current = nil
		s.state = StateAnonymous
		s.mu.Unlock()
		return nil, ErrUnauthenticated

	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("session: whoami failed with status %d: %s", resp.StatusCode, body)
	}

	var principal Principal
	if err := json.NewDecoder(resp.Body).Decode(&principal); err != nil {
		return nil, fmt.Errorf("session: decoding whoami response: %w", err)
	}

	s.mu.Lock()
	s.current = &principal
	s.state = StateAuthenticated
	s.mu.Unlock()

	slog.Debug("session principal cached", "username", principal.Username)
	return &principal, nil
}
