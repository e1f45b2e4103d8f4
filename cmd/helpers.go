package cmd

import (
	"fmt"
	"net/http"

	"authkit/internal/config"
	"authkit/internal/events"
	"authkit/internal/oauth"
	"authkit/internal/session"
	"authkit/internal/store"
	"authkit/internal/token"
	"authkit/internal/transport"
)

// app bundles the wired-up SDK components a command operates on.
type app struct {
	cfg      config.Config
	registry *store.Registry
	manager  *token.Manager
	bus      *events.Bus
	client   *oauth.Client

	// httpClient is the intercepted pipeline: it attaches the bearer
	// header and performs the one refresh-and-retry on 401.
	httpClient *http.Client
	sessions   *session.Service
}

// newApp loads configuration and assembles the token store, token manager,
// OAuth client, request pipeline and session service.
func newApp() (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	registry, err := store.Defaults(cfg)
	if err != nil {
		return nil, err
	}

	manager, err := token.NewManager(token.ManagerConfig{
		Registry:             registry,
		StoreType:            cfg.TokenStore.Type,
		StorageKey:           cfg.TokenStore.StorageKey,
		PreserveRefreshToken: cfg.PreserveRefreshToken,
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	bus := events.NewBus()
	client, err := oauth.NewClient(oauth.ClientConfig{
		TokenEndpoint:  cfg.Endpoints.Token,
		RevokeEndpoint: cfg.Endpoints.Revoke,
		Manager:        manager,
		Bus:            bus,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	httpClient, err := transport.NewPipeline(cfg, manager, client, bus, nil)
	if err != nil {
		registry.Close()
		return nil, err
	}

	sessions, err := session.NewService(session.ServiceConfig{
		MeEndpoint: cfg.Endpoints.Me,
		HTTPClient: httpClient,
		Bus:        bus,
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		registry:   registry,
		manager:    manager,
		bus:        bus,
		client:     client,
		httpClient: httpClient,
		sessions:   sessions,
	}, nil
}

// Close releases the session subscription and any store resources.
func (a *app) Close() {
	a.sessions.Close()
	a.registry.Close()
}

// withApp wires an app for the duration of one command run.
func withApp(fn func(*app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printKeyValue(key, value string) {
	fmt.Printf("  %-12s %s\n", key+":", value)
}
