// Package auth guards mutating catalog operations with a shared API key.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/petcatalog/internal/errors"
	"github.com/abgdnv/petcatalog/pkg/web"
)

// HeaderAPIKey carries the caller credential.
const HeaderAPIKey = "X-API-Key"

// Gate compares caller credentials against a secret fixed at construction.
type Gate struct {
	secret []byte
	logger *slog.Logger
}

// NewGate creates a gate for the given secret.
func NewGate(secret string, logger *slog.Logger) *Gate {
	return &Gate{
		secret: []byte(secret),
		logger: logger.With("component", "auth"),
	}
}

// Authorize returns ErrUnauthorized unless credential matches the configured secret.
func (g *Gate) Authorize(credential string) error {
	if credential == "" || len(g.secret) == 0 {
		return perrors.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(credential), g.secret) != 1 {
		return perrors.ErrUnauthorized
	}
	return nil
}

// Middleware rejects requests without a valid X-API-Key header before they reach next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Authorize(r.Header.Get(HeaderAPIKey)); err != nil {
			web.RespondError(w, g.logger, http.StatusUnauthorized, "Missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
