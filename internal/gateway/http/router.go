package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/hub"
	"github.com/uitrace/gateway/internal/gateway/metrics"
	"github.com/uitrace/gateway/internal/gateway/service"
	"github.com/uitrace/gateway/internal/gateway/store"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	env           string
	buildVersion  string
	allowedOrigin string
	startTime     time.Time
	logger        *slog.Logger

	store        store.Store
	TokenService *service.TokenService
	Keys         KeyResolver
	Hub          *hub.Hub

	// SkipSignature and SkipAuthn swap the real guards for the dev
	// bypass variants. Config only ever sets them in development.
	SkipSignature bool
	SkipAuthn     bool
	DevIdentity   domain.Identity
}

func NewRouter(
	env, buildVersion, allowedOrigin string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		env:           env,
		buildVersion:  buildVersion,
		allowedOrigin: allowedOrigin,
		startTime:     time.Now(),
		store:         st,
		logger:        logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		metrics.Middleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerExtension()
	r.registerWebSocket()
	r.registerSystem()

	r.Mux.Handle("GET /metrics", metrics.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// signatureGuard returns the configured request-signing policy.
func (r *Router) signatureGuard() httpx.Middleware {
	if r.SkipSignature {
		r.logger.Warn("signature verification DISABLED, development mode only")
		return SignatureBypass()
	}
	return SignatureGuard(r.Keys)
}

// authn returns the configured bearer-token policy.
func (r *Router) authn() httpx.Middleware {
	if r.SkipAuthn {
		r.logger.Warn("token validation DISABLED, development mode only")
		return AuthnBypass(r.DevIdentity)
	}
	return Authn(r.TokenService)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Tokens: r.TokenService, Env: r.env}

	// POST /auth/token - strict rate limit by IP, applied before the
	// signature guard so unverified traffic can't burn RSA verifies
	r.Mux.Handle("POST /v1/auth/token",
		httpx.Chain(http.HandlerFunc(h.HandleIssueToken),
			httpx.RateLimitByIP(httpx.StrictLimit),
			r.signatureGuard(),
		),
	)

	// POST /auth/refresh - signed like issuance: a stolen refresh token
	// alone must not mint access tokens
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
			r.signatureGuard(),
		),
	)

	// GET /auth/dev-test - unauthenticated smoke check, dev only
	if r.env == "development" {
		r.Mux.Handle("GET /v1/auth/dev-test",
			httpx.Chain(http.HandlerFunc(h.HandleDevTest),
				httpx.RateLimitByIP(httpx.PublicLimit),
			),
		)
	}
}

func (r *Router) registerExtension() {
	h := &ExtensionHandler{Hub: r.Hub, Version: r.buildVersion}
	authn := r.authn()

	// POST /extension/actions - moderate rate limit per extension
	r.Mux.Handle("POST /v1/extension/actions",
		httpx.Chain(http.HandlerFunc(h.HandleRecordAction),
			authn,
			httpx.RateLimitByExtension(httpx.ModerateLimit),
		),
	)

	// POST /extension/feedback - moderate rate limit per extension
	r.Mux.Handle("POST /v1/extension/feedback",
		httpx.Chain(http.HandlerFunc(h.HandleSubmitFeedback),
			authn,
			httpx.RateLimitByExtension(httpx.ModerateLimit),
		),
	)

	// GET /extension/status - moderate rate limit per extension
	r.Mux.Handle("GET /v1/extension/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			authn,
			httpx.RateLimitByExtension(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerWebSocket() {
	h := &WSHandler{Hub: r.Hub, AllowedOrigin: r.allowedOrigin}

	// GET /ws - authenticated upgrade; no rate limit, the connection
	// itself is the scarce resource
	r.Mux.Handle("GET /ws",
		httpx.Chain(h,
			r.authn(),
		),
	)
}

func (r *Router) registerSystem() {
	h := &SystemHandler{
		Store:   r.store,
		Hub:     r.Hub,
		Version: r.buildVersion,
		Started: r.startTime,
	}

	// Health check endpoints - high limits, monitoring polls these
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.HandleLivez),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.HandleReadyz),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
