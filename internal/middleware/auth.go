package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/S1riyS/drive-core/server/pkg/httpjson"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
	"github.com/golang-jwt/jwt/v5"
)

type userKey struct{}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator verifies HS256 bearer tokens. The subject claim is the user id.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret string, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// IssueToken signs a token for userID. Production tokens come from the
// identity provider; this is used by tests and the dev CLI.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a raw token and returns its subject.
func (a *Authenticator) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's user id in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		raw, ok := bearerToken(r)
		if !ok {
			_ = httpjson.Error(w, http.StatusUnauthorized, "unauthenticated", ErrMissingToken.Error())
			return
		}

		userID, err := a.Verify(raw)
		if err != nil {
			logger.Debug("Rejected token", slogext.Err(err))
			_ = httpjson.Error(w, http.StatusUnauthorized, "unauthenticated", ErrInvalidToken.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}
