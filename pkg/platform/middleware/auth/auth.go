// Package auth verifies member bearer tokens and places the member id in the
// request context. Admission services trust that id without re-checking it.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "clubhouse/pkg/domain"
	"clubhouse/pkg/requestcontext"
)

// JWTValidator defines the interface for validating member tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the verified facts from a member token.
type Claims struct {
	MemberID id.MemberID
	Subject  string
}

// HS256Validator validates HMAC-signed member tokens.
type HS256Validator struct {
	key    []byte
	issuer string
}

// NewHS256Validator builds a validator for tokens signed with key and issued
// by issuer.
func NewHS256Validator(key, issuer string) *HS256Validator {
	return &HS256Validator{key: []byte(key), issuer: issuer}
}

// ValidateToken checks signature, expiry and issuer, and parses the subject
// as a member id.
func (v *HS256Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	memberID, err := id.ParseMemberID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject: %w", err)
	}
	return &Claims{MemberID: memberID, Subject: claims.Subject}, nil
}

// Sign issues a member token; used by tooling and tests.
func (v *HS256Validator) Sign(memberID id.MemberID, now time.Time, ttl time.Duration) (string, error) {
	if memberID.IsNil() {
		return "", errors.New("member id required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   memberID.String(),
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.key)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireMember rejects requests without a valid member bearer token.
func RequireMember(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithMemberID(ctx, claims.MemberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
