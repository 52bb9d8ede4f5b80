package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: testSecret})
	require.NoError(t, err)

	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		token, err := Sign(testSecret, userID, "ana@example.com", time.Hour)
		require.NoError(t, err)

		id, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, id.UserID)
		assert.Equal(t, "ana@example.com", id.Email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := Sign("another-secret", userID, "", time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := Sign(testSecret, userID, "", -time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "ana",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("missing expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: userID.String(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})
}

func TestVerifier_Audience(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: testSecret, Audience: "authenticated"})
	require.NoError(t, err)

	token, err := Sign(testSecret, uuid.New(), "", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken), "token without aud claim must be rejected")
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: ErrMissingToken},
		{header: "Basic dXNlcjpwYXNz", wantErr: ErrInvalidToken},
		{header: "Bearer ", wantErr: ErrInvalidToken},
		{header: "Bearer", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
