package host

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeader(t *testing.T, claims HeaderClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-real-key"))
	require.NoError(t, err)
	return token
}

func TestInspectHeader(t *testing.T) {
	exp := time.Now().Add(-time.Minute)
	token := signedHeader(t, HeaderClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
		ClientID:         "client_1",
		RotatingToken:    "rot",
	})

	for _, header := range []string{token, "Bearer " + token, "bearer  " + token} {
		claims, err := InspectHeader(header)
		require.NoError(t, err, header)
		assert.Equal(t, "client_1", claims.ClientID)
		assert.Equal(t, "rot", claims.RotatingToken)
		assert.True(t, claims.Expired(time.Now()))
	}
}

func TestInspectHeaderRejectsGarbage(t *testing.T) {
	for _, header := range []string{"", "Bearer ", "not-a-token"} {
		_, err := InspectHeader(header)
		assert.Error(t, err, header)
	}
}
