package store

import (
	"fmt"
	"io"
	"sync"

	"authkit/internal/config"
)

// Registry maps store names to implementations. The token manager resolves
// its active store through a Registry, so hosts can register custom stores
// and select them by name in configuration.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register adds a store under the given name. Registering a nil store or a
// name that is already taken is an error.
func (r *Registry) Register(name string, s Store) error {
	if name == "" {
		return fmt.Errorf("store registry: name must not be empty")
	}
	if s == nil {
		return fmt.Errorf("store registry: store %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store registry: %q already registered", name)
	}
	r.stores[name] = s
	return nil
}

// Close releases every registered store that holds resources, such as the
// file store's change watcher.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.stores {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// Get returns the store registered under name.
func (r *Registry) Get(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("store registry: unrecognised token store %q", name)
	}
	return s, nil
}

// Defaults builds a registry holding the built-in stores described by cfg.
// The cookie store is only registered when an API origin can be derived from
// the token endpoint or the configured store type demands it.
func Defaults(cfg config.Config) (*Registry, error) {
	r := NewRegistry()

	if err := r.Register(config.StoreTypeMemory, NewMemory()); err != nil {
		return nil, err
	}

	fileStore, err := NewFile(cfg.TokenStore.StorageDir)
	if err != nil {
		// Only fatal when the file store is the one selected.
		if cfg.TokenStore.Type == config.StoreTypeFile {
			return nil, err
		}
	} else if err := r.Register(config.StoreTypeFile, fileStore); err != nil {
		return nil, err
	}

	if origin := cfg.Endpoints.Token; origin != "" {
		cookieStore, err := NewCookie(origin, nil)
		if err == nil {
			if err := r.Register(config.StoreTypeCookie, cookieStore); err != nil {
				return nil, err
			}
		} else if cfg.TokenStore.Type == config.StoreTypeCookie {
			return nil, err
		}
	}

	return r, nil
}
