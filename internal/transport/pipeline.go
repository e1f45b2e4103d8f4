package transport

import (
	"net/http"

	"authkit/internal/config"
	"authkit/internal/events"
	"authkit/internal/token"
)

// NewPipeline assembles the full interceptor chain into an http.Client:
// retry handling wraps header attachment, which wraps base. The returned
// client is what application code should use for API requests.
func NewPipeline(cfg config.Config, manager *token.Manager, refresher Refresher, bus *events.Bus, base http.RoundTripper) (*http.Client, error) {
	auth, err := NewAuthRoundTripper(base, manager, cfg.AppOrigin, cfg.Interceptor.Blacklist)
	if err != nil {
		return nil, err
	}
	retry, err := NewRetryRoundTripper(auth, manager, refresher, bus)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: retry,
		Timeout:   cfg.HTTPTimeout,
	}, nil
}
