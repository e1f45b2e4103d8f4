package config

import "time"

// Store type names understood out of the box.
const (
	StoreTypeMemory = "memory"
	StoreTypeFile   = "file"
	StoreTypeCookie = "cookie"
)

// DefaultStorageKey is the key token records are persisted under.
const DefaultStorageKey = "authkit:token"

// DefaultBlacklist lists URL patterns that must never carry a bearer header:
// the grant and revocation endpoints plus the login and registration forms.
var DefaultBlacklist = []string{
	`/oauth/token$`,
	`/oauth/revoke$`,
	`/login$`,
	`/register$`,
}

// Default returns the baseline configuration. Loaded files and environment
// variables overlay it.
func Default() Config {
	return Config{
		Endpoints: EndpointsConfig{
			Token:  "/oauth/token",
			Revoke: "/oauth/revoke",
			Me:     "/me",
		},
		TokenStore: TokenStoreConfig{
			Type:       StoreTypeMemory,
			StorageKey: DefaultStorageKey,
		},
		Interceptor: InterceptorConfig{
			Blacklist: append([]string(nil), DefaultBlacklist...),
		},
		Routes: RoutesConfig{
			Login:            "login",
			DefaultPostLogin: "home",
		},
		HTTPTimeout:          30 * time.Second,
		PreserveRefreshToken: true,
	}
}
