// Package auth provides token, password and social-login helpers for the API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A user signs up, follows the emailed verification link, then logs in
//     with email/username and password, or picks a social provider at
//     /api/users/auth/{provider}.
//  2. Either way the server issues a signed JWT access token.
//  3. Clients send it back as "Authorization: Bearer <jwt>" (or the "token"
//     cookie); the middleware validates it and stores the Payload in the
//     request context.
//
// The same TokenService also signs the short-lived links sent by email
// (verify email, reset password). Each token carries a Purpose so a reset
// link can never be used as an access token and vice versa.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes.
const (
	PurposeAccess        = "access"
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

var (
	// ErrTokenInvalid is returned for malformed, tampered or wrongly signed
	// tokens, and for tokens issued for a different purpose.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

// Payload is the data carried inside a token.
type Payload struct {
	UserID   int64
	Username string
	Email    string
	Role     string
	Purpose  string
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret, issuer and default lifetime taken from the
// configuration object. There is no package-level secret.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: JWT issuer must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// claims is the JWT payload. "sub" holds the numeric user ID as a string,
// the rest of the Payload rides in private claims.
type claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// Generate signs a token for p with the configured default lifetime.
// An empty Purpose is treated as PurposeAccess.
func (s *TokenService) Generate(p Payload) (string, error) {
	return s.GenerateWithDuration(p, s.ttl)
}

// GenerateWithDuration signs a token for p that expires after d.
// Used for time-boxed email links, and in tests with a negative d to produce
// an already expired token.
func (s *TokenService) GenerateWithDuration(p Payload, d time.Duration) (string, error) {
	if p.UserID <= 0 {
		return "", errors.New("auth: token payload needs a user id")
	}
	if p.Purpose == "" {
		p.Purpose = PurposeAccess
	}

	now := time.Now()
	c := claims{
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role,
		Purpose:  p.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns its Payload.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and carries an expiry at all
//   - Issuer matches the configured issuer
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// Every failure maps to ErrTokenExpired or ErrTokenInvalid; callers never
// receive a partially decoded payload.
func (s *TokenService) Validate(tokenStr string) (*Payload, error) {
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

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
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}

	return &Payload{
		UserID:   userID,
		Username: c.Username,
		Email:    c.Email,
		Role:     c.Role,
		Purpose:  c.Purpose,
	}, nil
}

// ValidatePurpose validates tokenStr and additionally requires it to have
// been issued for purpose.
func (s *TokenService) ValidatePurpose(tokenStr, purpose string) (*Payload, error) {
	p, err := s.Validate(tokenStr)
	if err != nil {
		return nil, err
	}
	if p.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %q, want %q", ErrTokenInvalid, p.Purpose, purpose)
	}
	return p, nil
}
