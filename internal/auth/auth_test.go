package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
)

func testUser() domain.User {
	return domain.User{ID: uuid.New(), Email: "ana@example.com", Role: domain.RoleDriver}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	u := testUser()

	token, err := issuer.Issue(u)
	require.NoError(t, err)

	p, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, u.Email, p.Email)
	assert.Equal(t, domain.RoleDriver, p.Role)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", time.Hour).Issue(testUser())
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Verify(token)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestTokenIssuer_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{Role: "ADMIN", RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Verify(token)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestTokenIssuer_Garbage(t *testing.T) {
	_, err := NewTokenIssuer("secret", time.Hour).Verify("not-a-token")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
