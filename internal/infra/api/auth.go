package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"content-enrichment/internal/infra/logging"
)

// AuthGuard verifies Supabase-issued access tokens. Supabase signs user JWTs
// with the project's shared HS256 secret; the sub claim carries the user id.
type AuthGuard struct {
	secret []byte
}

func NewAuthGuard(secret string) *AuthGuard {
	return &AuthGuard{secret: []byte(secret)}
}

type userClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (g *AuthGuard) parse(tok string) (*userClaims, error) {
	claims := &userClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Require rejects requests without a valid bearer token and threads the
// authenticated user id through the request context.
func (g *AuthGuard) Require() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := g.parse(strings.TrimSpace(hdr[7:]))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := logging.WithUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
