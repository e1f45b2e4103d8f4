package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire error codes consumed by the SDK.
const (
	CodeInvalidGrant   = "invalid_grant"
	CodeInvalidRequest = "invalid_request"
	CodeInvalidToken   = "invalid_token"
	CodeInvalidClient  = "invalid_client"
	CodeMFARequired    = "mfa_required"
)

// fallbackMessage is used when an error body carries no usable message.
const fallbackMessage = "An error occurred when communicating with the server."

// Error is an OAuth error response from the identity provider.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"-"`

	// State is the opaque challenge handle accompanying an mfa_required
	// response; it is echoed back in the factor challenge exchange.
	State string `json:"state,omitempty"`
}

// ChallengeState extracts the factor challenge handle from an mfa_required
// error, or "" when err is anything else.
func ChallengeState(err error) string {
	var oauthErr *Error
	if errors.As(err, &oauthErr) && oauthErr.Code == CodeMFARequired {
		return oauthErr.State
	}
	return ""
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fallbackMessage
	}
	if e.Code == "" {
		return fmt.Sprintf("oauth: %s (status %d)", msg, e.Status)
	}
	return fmt.Sprintf("oauth: %s: %s (status %d)", e.Code, msg, e.Status)
}

// ParseErrorBody builds an *Error from an HTTP error response body of the
// form {error, message?}. Bodies that are not JSON still yield an Error
// carrying the status and the fallback message.
func ParseErrorBody(status int, body []byte) *Error {
	oauthErr := &Error{Status: status}
	_ = json.Unmarshal(body, oauthErr)
	return oauthErr
}

// ErrorCode extracts the wire error code from err, or "" when err is not an
// identity provider error.
func ErrorCode(err error) string {
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		return oauthErr.Code
	}
	return ""
}

// IsTerminalCredentialError reports whether err is an invalid_grant or
// invalid_request response: the credentials are bad and retrying is useless.
func IsTerminalCredentialError(err error) bool {
	code := ErrorCode(err)
	return code == CodeInvalidGrant || code == CodeInvalidRequest
}

// IsRefreshableTokenError reports whether err is an invalid_token or
// invalid_client response, the class of 401s that warrant one refresh
// attempt before giving up.
func IsRefreshableTokenError(err error) bool {
	code := ErrorCode(err)
	return code == CodeInvalidToken || code == CodeInvalidClient
}

// IsMFARequired reports whether err demands a factor challenge.
func IsMFARequired(err error) bool {
	return ErrorCode(err) == CodeMFARequired
}
