package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/uitrace/gateway/internal/gateway/metrics"
	"github.com/uitrace/gateway/internal/gateway/service"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/slogx"
)

// AuthHandler serves the credential lifecycle endpoints.
type AuthHandler struct {
	Tokens *service.TokenService
	Env    string
}

type tokenRequest struct {
	ExtensionID string `json:"extensionId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// HandleIssueToken exchanges a signed request for an access/refresh
// pair. The signature guard has already authenticated the caller by the
// time this runs; the body's extensionId names who the pair is for.
func (h *AuthHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExtensionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Extension ID is required")
		return
	}

	pair, err := h.Tokens.Issue(ctx, req.ExtensionID)
	if err != nil {
		slogx.FromContext(ctx).Error("token issue failed", "extension_id", req.ExtensionID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	metrics.RecordTokenIssued("pair")
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleRefresh trades a valid refresh token for a new access token.
// The refresh token itself is never rotated here.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	access, err := h.Tokens.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		slogx.FromContext(ctx).Error("token refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	metrics.RecordTokenIssued("refresh")
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

// HandleDevTest confirms the gateway is reachable without any
// credentials. Registered only when the environment is development.
func (h *AuthHandler) HandleDevTest(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Extension authentication is working",
		"mode":      h.Env,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
