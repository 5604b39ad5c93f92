package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

type contextKey string

const (
	profileCtxKey   contextKey = "profile"
	requestIDCtxKey contextKey = "requestID"
)

// TokenVerifier checks HS256 bearer tokens issued by the identity provider
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify returns the subject of a valid token
func (v *TokenVerifier) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("invalid token: no subject")
	}
	return claims.Subject, nil
}

// Issue signs a token for subject; used by the CLI and tests
func (v *TokenVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.secret)
}

// auth resolves the bearer token to a profile and stores it on the context.
// EventSource cannot set headers, so /events also accepts ?access_token=.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		subject, err := s.tokens.Verify(token)
		if err != nil {
			s.logger.Debug("Rejected token", zap.Error(err))
			s.writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		profile, err := s.deps.Store.GetProfile(r.Context(), subject)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				s.writeError(w, r, http.StatusForbidden, "no profile for this account")
				return
			}
			s.internalError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), profileCtxKey, *profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Role.CanApprove() {
			s.respondErr(w, r, model.ErrNotPermitted)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if r.URL.Path == "/events" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func actorFrom(r *http.Request) model.Profile {
	p, _ := r.Context().Value(profileCtxKey).(model.Profile)
	return p
}
