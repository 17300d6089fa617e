package authtoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/roomd/internal/authtoken"
)

func newTestIssuer() *authtoken.Issuer {
	return authtoken.New(authtoken.Config{
		Username:  "operator",
		Password:  "correct-horse-battery-staple",
		JWTSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:  time.Hour,
	})
}

func TestAuthenticateSuccessIssuesValidToken(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.Authenticate("operator", "correct-horse-battery-staple", "", "203.0.113.5:1234")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "operator", claims.Sub)
}

func TestAuthenticateWrongPasswordFails(t *testing.T) {
	issuer := newTestIssuer()

	_, err := issuer.Authenticate("operator", "wrong", "", "203.0.113.5:1234")
	require.ErrorIs(t, err, authtoken.ErrInvalidCredentials)
}

func TestAuthenticateRateLimitsAfterRepeatedFailures(t *testing.T) {
	issuer := authtoken.New(authtoken.Config{
		Username:           "operator",
		Password:           "secret",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		MaxLoginAttempts:   3,
		LoginWindowSeconds: 60,
	})

	for i := 0; i < 3; i++ {
		_, err := issuer.Authenticate("operator", "wrong", "", "198.51.100.9:1")
		require.ErrorIs(t, err, authtoken.ErrInvalidCredentials)
	}

	_, err := issuer.Authenticate("operator", "secret", "", "198.51.100.9:1")
	require.ErrorIs(t, err, authtoken.ErrRateLimited)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	issuer := newTestIssuer()
	token, err := issuer.CreateToken("operator", "")
	require.NoError(t, err)

	tampered := token[:len(token)-1] + "x"
	_, err = issuer.ValidateToken(tampered)
	require.ErrorIs(t, err, authtoken.ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issuer := authtoken.New(authtoken.Config{
		Username:  "operator",
		Password:  "secret",
		JWTSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:  -time.Minute,
	})

	token, err := issuer.CreateToken("operator", "")
	require.NoError(t, err)

	_, err = issuer.ValidateToken(token)
	require.ErrorIs(t, err, authtoken.ErrExpiredToken)
}

func TestValidateTokenRejectsMalformed(t *testing.T) {
	issuer := newTestIssuer()

	_, err := issuer.ValidateToken("not-a-token")
	require.ErrorIs(t, err, authtoken.ErrInvalidToken)
}

func TestCheckRoomAllowsMatchingRoom(t *testing.T) {
	issuer := newTestIssuer()
	token, err := issuer.CreateToken("operator", "room-1")
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.NoError(t, claims.CheckRoom("room-1"))
}

func TestCheckRoomRejectsMismatchedRoom(t *testing.T) {
	issuer := newTestIssuer()
	token, err := issuer.CreateToken("operator", "room-1")
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.ErrorIs(t, claims.CheckRoom("room-2"), authtoken.ErrRoomScopeMismatch)
}

func TestCheckRoomWildcardAllowsAnyRoom(t *testing.T) {
	issuer := newTestIssuer()
	token, err := issuer.CreateToken("operator", "")
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.NoError(t, claims.CheckRoom("room-1"))
	require.NoError(t, claims.CheckRoom("room-2"))
}
