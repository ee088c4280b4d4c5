package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/pkg/idx"
	"github.com/uitrace/gateway/pkg/slogx"
)

// Default token lifetimes. Long-lived because the extension has no
// interactive user to re-authenticate; the refresh window is the only
// recovery path. Refresh TTL must always exceed access TTL, which
// Config validation enforces at startup.
const (
	DefaultAccessTokenTTL  = 30 * 24 * time.Hour
	DefaultRefreshTokenTTL = 60 * 24 * time.Hour
)

var (
	// ErrInvalidToken covers signature and expiry failures on access
	// tokens.
	ErrInvalidToken = errors.New("invalid_token")

	// ErrWrongTokenType reports a structurally valid token presented in
	// the wrong role, e.g. a refresh token replayed as an access
	// credential.
	ErrWrongTokenType = errors.New("wrong_token_type")

	// ErrInvalidRefresh is the single externally visible refresh
	// failure. Expired, malformed, wrong-secret and wrong-type all
	// collapse into it so callers can't probe which check failed.
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
)

// TokenClaims is the signed payload carried by both token types. The
// registered ID is the opaque identity shared by an issued pair; the
// Subject duplicates ExtensionID for standard-claims tooling.
type TokenClaims struct {
	jwt.RegisteredClaims

	ExtensionID string           `json:"extensionId"`
	Role        string           `json:"role"`
	TokenType   domain.TokenType `json:"type"`
}

// TokenService mints and validates the access/refresh credential pair.
// Tokens are self-contained HS256 JWTs signed with distinct secrets per
// type, so a leaked refresh secret cannot forge access tokens and vice
// versa. Validation is stateless: there is no token table and no
// revocation before natural expiry.
type TokenService struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issue mints a fresh identity and returns an access/refresh pair
// sharing it. Both tokens carry the same id, extension id and role;
// only the type and expiry differ.
func (s *TokenService) Issue(ctx context.Context, extensionID string) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	identity := idx.New().String()

	access, err := s.sign(s.claims(identity, extensionID, domain.TokenTypeAccess, now, s.AccessTTL), s.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(s.claims(identity, extensionID, domain.TokenTypeRefresh, now, s.RefreshTTL), s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	slogx.FromContext(ctx).Info("token pair issued",
		"extension_id", extensionID,
		"token_id", identity,
	)

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccess verifies signature and expiry against the access
// secret and returns the decoded identity. A token that verifies but
// carries the wrong type fails with ErrWrongTokenType; this is the
// guard against refresh tokens being replayed as access credentials.
func (s *TokenService) ValidateAccess(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := s.verify(token, s.AccessSecret)
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}

	if claims.TokenType != domain.TokenTypeAccess {
		return domain.Identity{}, ErrWrongTokenType
	}

	return claims.identity(), nil
}

// Refresh verifies a refresh token and mints a new access token that
// keeps the identity but gets a fresh expiry. No new refresh token is
// issued; refresh tokens are single-lifetime. Every verification
// failure returns ErrInvalidRefresh with the cause logged, never
// exposed.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.verify(refreshToken, s.RefreshSecret)
	if err != nil {
		log.Warn("refresh token rejected", "err", err)
		return "", ErrInvalidRefresh
	}

	if claims.TokenType != domain.TokenTypeRefresh {
		log.Warn("refresh token rejected", "err", "wrong token type", "type", claims.TokenType)
		return "", ErrInvalidRefresh
	}

	now := time.Now().UTC()
	next := s.claims(claims.ID, claims.ExtensionID, domain.TokenTypeAccess, now, s.AccessTTL)
	next.Role = claims.Role

	access, err := s.sign(next, s.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	log.Info("access token refreshed", "extension_id", claims.ExtensionID, "token_id", claims.ID)
	return access, nil
}

func (s *TokenService) claims(
	identity, extensionID string,
	tokenType domain.TokenType,
	now time.Time,
	ttl time.Duration,
) TokenClaims {
	return TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        identity,
			Issuer:    s.Issuer,
			Subject:   extensionID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ExtensionID: extensionID,
		Role:        domain.RoleExtension,
		TokenType:   tokenType,
	}
}

func (s *TokenService) sign(claims TokenClaims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *TokenService) verify(token string, secret []byte) (*TokenClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	parsed, err := parser.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse or verify: %w", err)
	}

	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}

	if s.Issuer != "" && claims.Issuer != s.Issuer {
		return nil, errors.New("issuer mismatch")
	}

	return claims, nil
}

func (c *TokenClaims) identity() domain.Identity {
	return domain.Identity{
		ID:          c.ID,
		ExtensionID: c.ExtensionID,
		Role:        c.Role,
		Type:        c.TokenType,
	}
}
