package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse_CanonicalizesWireFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := []byte(`{
		"access_token": "abc",
		"refresh_token": "def",
		"token_type": "bearer",
		"expires_in": 3600
	}`)

	rec, err := FromResponse(raw, now)
	require.NoError(t, err)

	assert.Equal(t, "abc", rec.AccessToken)
	assert.Equal(t, "def", rec.RefreshToken)
	assert.Equal(t, "bearer", rec.TokenType)
	assert.Equal(t, now.Add(3600*time.Second-time.Second), rec.ExpiresAt)
}

func TestFromResponse_NoExpiresInFallsBackToJWTExp(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	rec, err := FromResponse([]byte(`{"access_token":"`+signed+`","token_type":"bearer"}`), time.Now())
	require.NoError(t, err)

	assert.Equal(t, exp.Add(-time.Second).Unix(), rec.ExpiresAt.Unix())
}

func TestFromResponse_OpaqueTokenWithoutExpiry(t *testing.T) {
	rec, err := FromResponse([]byte(`{"access_token":"opaque","token_type":"bearer"}`), time.Now())
	require.NoError(t, err)

	assert.True(t, rec.ExpiresAt.IsZero())
	assert.False(t, rec.Expired(time.Now().Add(24*time.Hour)))
}

func TestFromResponse_Invalid(t *testing.T) {
	_, err := FromResponse([]byte(`not json`), time.Now())
	assert.Error(t, err)

	_, err = FromResponse([]byte(`{"token_type":"bearer"}`), time.Now())
	assert.Error(t, err)
}

func TestRecord_Expired(t *testing.T) {
	now := time.Now()

	assert.False(t, Record{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Record{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
	assert.True(t, Record{ExpiresAt: now}.Expired(now))
}

func TestRecord_AuthorizationValue(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		want    string
		wantErr bool
	}{
		{
			name: "capitalizes token type",
			rec:  Record{TokenType: "bearer", AccessToken: "abc"},
			want: "Bearer abc",
		},
		{
			name: "already capitalized",
			rec:  Record{TokenType: "Bearer", AccessToken: "abc"},
			want: "Bearer abc",
		},
		{
			name:    "missing token type",
			rec:     Record{AccessToken: "abc"},
			wantErr: true,
		},
		{
			name:    "missing access token",
			rec:     Record{TokenType: "bearer"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rec.AuthorizationValue()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_OAuth2Conversion(t *testing.T) {
	rec := Record{
		AccessToken:  "abc",
		RefreshToken: "def",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	assert.Equal(t, rec, FromOAuth2Token(rec.ToOAuth2Token()))
}
