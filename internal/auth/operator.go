// Package auth issues and verifies operator bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const issuer = "leadsms"

type operatorKey struct{}

// OperatorClaims identify the operator in the subject.
type OperatorClaims struct {
	jwt.RegisteredClaims
}

// IssueOperatorToken signs an HS256 token for subject valid for ttl.
func IssueOperatorToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("operator jwt secret is empty")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	now := time.Now()
	claims := OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOperatorToken verifies raw and returns its subject.
func ParseOperatorToken(secret, raw string) (string, error) {
	var claims OperatorClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("invalid operator token: %w", err)
	}
	return claims.Subject, nil
}

// RequireOperator rejects requests without a valid bearer token.
// With an empty secret every request is rejected.
func RequireOperator(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || secret == "" {
				unauthorized(w)
				return
			}
			subject, err := ParseOperatorToken(secret, strings.TrimSpace(raw))
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("operator token rejected")
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, subject)))
		})
	}
}

// Operator returns the authenticated operator name, if any.
func Operator(ctx context.Context) string {
	s, _ := ctx.Value(operatorKey{}).(string)
	return s
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","kind":"Unauthorized"}`))
}
