package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/digestmail/digestmail/internal/config"
)

// Token errors
var (
	ErrAuthDisabled = errors.New("token auth is disabled: no secret configured")
	ErrInvalidToken = errors.New("token is invalid or expired")
)

// TokenService issues and validates bearer tokens for the compose API.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// TokenClaims represents the claims in a compose API token.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// NewTokenService creates a new TokenService. An empty secret disables auth.
func NewTokenService(cfg config.SecurityConfig) *TokenService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenService{
		secret: []byte(cfg.TokenSecret),
		ttl:    ttl,
		issuer: cfg.Issuer,
	}
}

// Enabled reports whether requests must carry a token
func (s *TokenService) Enabled() bool {
	return len(s.secret) > 0
}

// Issue signs a token for subject and returns it with its expiry.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrAuthDisabled
	}

	now := time.Now()
	expiry := now.Add(s.ttl)
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiry, nil
}

// Validate parses and verifies a token.
func (s *TokenService) Validate(tokenString string) (*TokenClaims, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}

	claims := &TokenClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
