// Package auth issues and checks access tokens and hashes passwords.
//
// AUTHENTICATION FLOW:
//  1. POST /api/auth/register or /api/auth/login returns {token, user}
//  2. The client sends the token on every protected call as
//     "Authorization: Bearer <token>"
//  3. RequireAuth validates it and puts the claims in the request context
//
// Tokens are stateless HS256 JWTs carrying {id, email}; the server needs only
// the secret to verify them.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "mindflow"

	// DefaultTokenExpiry is used when no expiry is configured.
	DefaultTokenExpiry = time.Hour

	minSecretLength = 16
)

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims is the JWT payload: the user's id and email plus the registered
// claims (issuer, issued-at, expiry).
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a TokenService signing with secret. A zero expiry
// means DefaultTokenExpiry.
func NewTokenService(secret string, expiry time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &TokenService{secret: []byte(secret), expiry: expiry}, nil
}

// RandomSecret returns a 256-bit hex secret. Used when no secret is
// configured; tokens signed with it die with the process.
func RandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Generate signs a token for the user valid for the configured expiry.
func (s *TokenService) Generate(userID, email string) (string, error) {
	return s.GenerateWithDuration(userID, email, s.expiry)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative d
// yields an already expired token, which tests rely on.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies tokenStr.
//
// The signature, the HS256 algorithm, the issuer and a present, unexpired
// "exp" claim are all required. Failures are ErrTokenExpired or
// ErrInvalidToken (wrapping the library's reason).
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", ErrInvalidToken)
	}
	return c, nil
}
