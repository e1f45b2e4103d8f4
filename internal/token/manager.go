package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"authkit/internal/store"
	pkgstrings "authkit/pkg/strings"
)

// Refresher exchanges the stored refresh token for a fresh record. The OAuth
// client implements it; the manager only triggers it when composing an
// Authorization header from an expired record.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// ManagerConfig configures a token Manager.
type ManagerConfig struct {
	// Registry resolves token stores by name.
	Registry *store.Registry

	// StoreType names the initially active store.
	StoreType string

	// StorageKey is the key the record is persisted under.
	StorageKey string

	// PreserveRefreshToken keeps the previous refresh token when a new
	// record omits one. When false the refresh token is cleared instead.
	PreserveRefreshToken bool
}

// Manager owns the current token record. All mutations write through to the
// active token store; the store itself carries no token logic.
type Manager struct {
	mu                   sync.RWMutex
	registry             *store.Registry
	active               store.Store
	storeType            string
	storageKey           string
	preserveRefreshToken bool
	refresher            Refresher

	now func() time.Time // test seam
}

// NewManager creates a Manager using the named store from the registry.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("token manager: registry is required")
	}
	if cfg.StorageKey == "" {
		return nil, fmt.Errorf("token manager: storage key is required")
	}

	active, err := cfg.Registry.Get(cfg.StoreType)
	if err != nil {
		return nil, err
	}

	return &Manager{
		registry:             cfg.Registry,
		active:               active,
		storeType:            cfg.StoreType,
		storageKey:           cfg.StorageKey,
		preserveRefreshToken: cfg.PreserveRefreshToken,
		now:                  time.Now,
	}, nil
}

// SetRefresher wires the OAuth client used for expiry-triggered refreshes.
func (m *Manager) SetRefresher(r Refresher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresher = r
}

// SetStoreType switches the backing store for subsequent reads and writes.
// Existing data is not migrated.
func (m *Manager) SetStoreType(name string) error {
	s, err := m.registry.Get(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = s
	m.storeType = name
	return nil
}

// StoreType returns the name of the active store.
func (m *Manager) StoreType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storeType
}

func (m *Manager) currentStore() store.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SetToken normalizes a raw grant response and persists it, replacing any
// existing record. When the response omits a refresh token and the manager
// is configured to preserve it, the previous refresh token is carried over;
// there is no other merging across refresh cycles.
func (m *Manager) SetToken(ctx context.Context, raw []byte) (Record, error) {
	rec, err := FromResponse(raw, m.now())
	if err != nil {
		return Record{}, err
	}

	if rec.RefreshToken == "" && m.preserveRefreshToken {
		if prev, err := m.Token(ctx); err == nil {
			rec.RefreshToken = prev.RefreshToken
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("serializing token record: %w", err)
	}
	if err := m.currentStore().Put(ctx, m.storageKey, data); err != nil {
		return Record{}, err
	}

	slog.Info("SECURITY_AUDIT: token stored",
		"event", "token_stored",
		"store", m.StoreType(),
		"access_token", pkgstrings.MaskSecret(rec.AccessToken),
		"expires_at", rec.ExpiresAt.Format(time.RFC3339),
		"has_refresh_token", rec.RefreshToken != "",
	)
	return rec, nil
}

// Token returns the stored record, or ErrNoToken when none is persisted.
func (m *Manager) Token(ctx context.Context) (Record, error) {
	data, err := m.currentStore().Get(ctx, m.storageKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, ErrNoToken
		}
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("deserializing token record: %w", err)
	}
	return rec, nil
}

// RemoveToken deletes the stored record. Removing when nothing is stored
// succeeds.
func (m *Manager) RemoveToken(ctx context.Context) error {
	if err := m.currentStore().Remove(ctx, m.storageKey); err != nil {
		return err
	}
	slog.Info("SECURITY_AUDIT: token removed",
		"event", "token_removed",
		"store", m.StoreType(),
	)
	return nil
}

// AccessToken returns the stored access token, or ErrNoToken.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	rec, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if rec.AccessToken == "" {
		return "", ErrNoToken
	}
	return rec.AccessToken, nil
}

// RefreshToken returns the stored refresh token, or ErrNoToken.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	rec, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if rec.RefreshToken == "" {
		return "", ErrNoToken
	}
	return rec.RefreshToken, nil
}

// TokenType returns the stored token type, or ErrNoToken.
func (m *Manager) TokenType(ctx context.Context) (string, error) {
	rec, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if rec.TokenType == "" {
		return "", ErrNoToken
	}
	return rec.TokenType, nil
}

// AuthorizationHeader composes the Authorization header value from the
// stored record. When the record has expired and a refresher is wired, one
// refresh is triggered and composition retried once; a failed refresh
// propagates as the composition failure.
func (m *Manager) AuthorizationHeader(ctx context.Context) (string, error) {
	rec, err := m.Token(ctx)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	refresher := m.refresher
	m.mu.RUnlock()

	if rec.Expired(m.now()) && refresher != nil {
		slog.Debug("stored token expired, refreshing before composing header")
		if err := refresher.Refresh(ctx); err != nil {
			return "", err
		}
		rec, err = m.Token(ctx)
		if err != nil {
			return "", err
		}
	}

	return rec.AuthorizationValue()
}
