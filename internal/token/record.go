package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no token record is stored, or when a requested
// field is absent from the stored record.
var ErrNoToken = errors.New("no token present")

// expiryMargin is subtracted from the server-supplied lifetime so the token
// is treated as expired slightly before the server would reject it.
const expiryMargin = time.Second

// Record is the persisted token entity. At most one Record exists per
// session; writes fully replace the previous one.
type Record struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
}

// wireToken is the raw grant response as the identity provider sends it.
type wireToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// FromResponse builds a Record from a raw grant response body, canonicalizing
// the snake_case wire fields. ExpiresAt is computed from expires_in captured
// at receipt time, minus a small safety margin. When the response carries no
// expires_in, the exp claim of a JWT access token is used instead; failing
// that the record has no local expiry.
func FromResponse(raw []byte, now time.Time) (Record, error) {
	var wire wireToken
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Record{}, fmt.Errorf("parsing token response: %w", err)
	}
	if wire.AccessToken == "" {
		return Record{}, fmt.Errorf("token response has no access_token")
	}

	rec := Record{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		TokenType:    wire.TokenType,
	}

	switch {
	case wire.ExpiresIn > 0:
		rec.ExpiresAt = now.Add(time.Duration(wire.ExpiresIn)*time.Second - expiryMargin)
	default:
		if exp, ok := jwtExpiry(wire.AccessToken); ok {
			rec.ExpiresAt = exp.Add(-expiryMargin)
		}
	}

	return rec, nil
}

// jwtExpiry extracts the exp claim from a JWT access token. The signature is
// not verified: the server is trusted for metadata about its own token, and
// the value only drives the local refresh schedule.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the record's expiry has passed. Records without a
// local expiry never expire locally.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// AuthorizationValue composes the Authorization header value for the record,
// capitalizing the first letter of the token type ("bearer abc" becomes
// "Bearer abc"). It fails with ErrNoToken when the type or access token is
// missing.
func (r Record) AuthorizationValue() (string, error) {
	if r.TokenType == "" || r.AccessToken == "" {
		return "", ErrNoToken
	}
	tokenType := strings.ToUpper(r.TokenType[:1]) + r.TokenType[1:]
	return tokenType + " " + r.AccessToken, nil
}

// ToOAuth2Token converts the record for use with x/oauth2-aware code.
func (r Record) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.ExpiresAt,
	}
}

// FromOAuth2Token builds a Record from an x/oauth2 token.
func FromOAuth2Token(t *oauth2.Token) Record {
	return Record{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    t.Expiry,
	}
}
