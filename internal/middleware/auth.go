// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aharstad/benchtop/internal/config"
	"github.com/aharstad/benchtop/internal/logging"
)

// TokenManager mints and validates the bearer tokens that guard mutating
// cache endpoints. Tokens are HMAC-SHA256 signed and stateless; they cannot
// be revoked before expiry.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a manager from auth configuration. The secret is
// held as []byte to avoid string interning.
func NewTokenManager(cfg *config.AuthConfig) (*TokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required but was empty")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
	}, nil
}

// Mint creates a signed token for the given subject, valid for the
// configured TTL.
func (m *TokenManager) Mint(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string, returning its claims.
// Tokens signed with an unexpected algorithm are rejected to prevent
// algorithm confusion attacks.
func (m *TokenManager) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// RequireToken rejects requests that do not carry a valid bearer token.
// A nil manager disables the check, for deployments with auth turned off.
func RequireToken(m *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				respondUnauthorized(w, "Missing bearer token")
				return
			}

			if _, err := m.Validate(tokenString); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("Rejected request with invalid token")
				respondUnauthorized(w, "Invalid bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// respondUnauthorized writes a 401 in the standard response envelope so
// clients see one shape on every endpoint, authenticated or not.
func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body, err := json.Marshal(map[string]interface{}{
		"status": "error",
		"data":   nil,
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC(),
		},
	})
	if err != nil {
		return
	}
	_, _ = w.Write(body)
}
