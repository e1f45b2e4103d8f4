package config

import "time"

// Config is the top-level configuration for the SDK.
type Config struct {
	// AppOrigin is the origin the host application is served from. Requests
	// to the same host are considered first-party and never receive a bearer
	// header from the outgoing interceptor.
	AppOrigin string `yaml:"appOrigin" env:"AUTHKIT_APP_ORIGIN"`

	Endpoints   EndpointsConfig   `yaml:"endpoints"`
	TokenStore  TokenStoreConfig  `yaml:"tokenStore"`
	Interceptor InterceptorConfig `yaml:"interceptor"`
	Routes      RoutesConfig      `yaml:"routes"`

	// HTTPTimeout bounds every request to the identity provider.
	HTTPTimeout time.Duration `yaml:"httpTimeout" env:"AUTHKIT_HTTP_TIMEOUT"`

	// PreserveRefreshToken keeps the previous refresh token when a refresh
	// response omits one. When false the stored refresh token is cleared
	// instead, treating its absence as rotation.
	PreserveRefreshToken bool `yaml:"preserveRefreshToken" env:"AUTHKIT_PRESERVE_REFRESH_TOKEN"`
}

// EndpointsConfig holds the identity provider endpoint URLs.
type EndpointsConfig struct {
	// Token is the OAuth token endpoint, used for every grant exchange.
	Token string `yaml:"token" env:"AUTHKIT_TOKEN_ENDPOINT"`

	// Revoke is the OAuth revocation endpoint.
	Revoke string `yaml:"revoke" env:"AUTHKIT_REVOKE_ENDPOINT"`

	// Me is the whoami endpoint returning the current principal.
	Me string `yaml:"me" env:"AUTHKIT_ME_ENDPOINT"`
}

// TokenStoreConfig selects and configures the backing token store.
type TokenStoreConfig struct {
	// Type names the registered store implementation: "memory", "file" or
	// "cookie". Custom stores registered by the host are addressed by the
	// name they were registered under.
	Type string `yaml:"type" env:"AUTHKIT_TOKEN_STORE"`

	// StorageKey is the key the serialized token record is stored under.
	StorageKey string `yaml:"storageKey"`

	// StorageDir is the directory used by the file store.
	StorageDir string `yaml:"storageDir" env:"AUTHKIT_TOKEN_STORAGE_DIR"`
}

// InterceptorConfig configures the outgoing request interceptor.
type InterceptorConfig struct {
	// Blacklist is a set of regular expressions matched against outgoing
	// request URLs. Matching requests never receive an Authorization header.
	Blacklist []string `yaml:"blacklist"`
}

// RoutesConfig names the routes the session guard treats specially.
type RoutesConfig struct {
	// Login is the route presenting the login form. Authenticated users
	// navigating to it are redirected to DefaultPostLogin.
	Login string `yaml:"login"`

	// DefaultPostLogin is where authenticated users land after login.
	DefaultPostLogin string `yaml:"defaultPostLogin"`
}
