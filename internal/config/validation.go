package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors collects every invalid field found in one pass.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	messages := make([]string, len(ve))
	for i, err := range ve {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

func (ve *ValidationErrors) add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for internal consistency. It returns a
// ValidationErrors value listing every problem, or nil.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.AppOrigin != "" {
		if _, err := url.Parse(c.AppOrigin); err != nil {
			errs.add("appOrigin", fmt.Sprintf("invalid URL: %v", err))
		}
	}

	checkEndpoint := func(field, value string) {
		if value == "" {
			errs.add(field, "must not be empty")
			return
		}
		if _, err := url.Parse(value); err != nil {
			errs.add(field, fmt.Sprintf("invalid URL: %v", err))
		}
	}
	checkEndpoint("endpoints.token", c.Endpoints.Token)
	checkEndpoint("endpoints.revoke", c.Endpoints.Revoke)
	checkEndpoint("endpoints.me", c.Endpoints.Me)

	if c.TokenStore.Type == "" {
		errs.add("tokenStore.type", "must not be empty")
	}
	if c.TokenStore.StorageKey == "" {
		errs.add("tokenStore.storageKey", "must not be empty")
	}
	for _, pattern := range c.Interceptor.Blacklist {
		if _, err := regexp.Compile(pattern); err != nil {
			errs.add("interceptor.blacklist", fmt.Sprintf("invalid pattern %q: %v", pattern, err))
		}
	}

	if c.HTTPTimeout < 0 {
		errs.add("httpTimeout", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
