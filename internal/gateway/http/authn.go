package http

import (
	"net/http"
	"strings"

	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/service"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/slogx"
)

// Authn requires a valid access token on the request and stashes the
// resulting identity in the context for handlers downstream.
//
// Tokens normally arrive as "Authorization: Bearer <token>". Browser
// WebSocket clients can't set headers on the upgrade request, so an
// access_token query parameter is accepted as a fallback.
func Authn(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := bearerToken(r)
			if raw == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			identity, err := tokens.ValidateAccess(ctx, raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				httpx.WriteError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx = httpx.WithIdentity(ctx, identity.ID, identity.ExtensionID, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthnBypass skips token validation and injects a fixed identity.
// Development only; wired up solely when the config says so.
func AuthnBypass(identity domain.Identity) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := httpx.WithIdentity(r.Context(), identity.ID, identity.ExtensionID, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(authz, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}
