// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// BcryptCost is the work factor used for stored password hashes.
const BcryptCost = 10

// Claims is the JWT payload. The subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. ttl is the lifetime of issued tokens.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for u.
func (t *TokenIssuer) Issue(u domain.User) (string, error) {
	now := t.now()
	claims := Claims{
		Email: u.Email,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth.TokenIssuer.Issue: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the caller it identifies. Every failure
// wraps domain.ErrUnauthorized.
func (t *TokenIssuer) Verify(token string) (domain.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if !parsed.Valid {
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: invalid token subject", domain.ErrUnauthorized)
	}
	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return domain.Principal{}, fmt.Errorf("%w: invalid token role", domain.ErrUnauthorized)
	}
	return domain.Principal{UserID: id, Email: claims.Email, Role: role}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth.HashPassword: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
