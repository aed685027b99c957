// Package auth provides session tokens, the GitHub OAuth flow, and the
// runner key check for the tournament API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Student visits /auth/github/login → redirected to GitHub
// 2. GitHub calls back /auth/github/callback with a code
// 3. Server exchanges code for the GitHub login, checks the course roster
// 4. Server issues a JWT session token, stores it in an HttpOnly cookie
// 5. On subsequent API calls, middleware reads the cookie, validates the JWT,
//    and sets the login in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store
// session data. All the information needed (login, expiry) is inside the
// signed token, and the signature ensures nobody can tamper with it without
// the secret key. No session table, no lookup per request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionTTL is how long a session cookie stays valid. Long enough to cover
// a working session on the standings page; students re-authenticate through
// GitHub afterwards, which is a single redirect when they're still signed in.
const sessionTTL = 8 * time.Hour

const issuer = "code-battles"

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. The standard "sub" claim carries the player's
// GitHub login — the registry key everything else resolves from.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new session token for the given login.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, fast, and fine for a
// single-server deployment where signer and verifier are the same process.
func (s *TokenService) Generate(login string) (string, error) {
	return s.GenerateWithDuration(login, sessionTTL)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests and for issuing short-lived tokens.
func (s *TokenService) GenerateWithDuration(login string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
// Returns the login (stored in the "sub" claim) if the token is valid.
//
// jwt.WithValidMethods pins the algorithm to HS256 — without it, an attacker
// could send a token with a different "alg" header and the library might
// accept it (the classic algorithm confusion attack).
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	login := c.Subject
	if login == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return login, nil
}
