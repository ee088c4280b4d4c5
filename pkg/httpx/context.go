package httpx

import "context"

type ctxKey string

const (
	// CtxKeyExtensionID is the authenticated extension identity.
	CtxKeyExtensionID ctxKey = "extension_id"
	// CtxKeyTokenID is the id shared by the issued access/refresh pair.
	CtxKeyTokenID ctxKey = "token_id"
	// CtxKeyRole is the flat role string carried by the token.
	CtxKeyRole ctxKey = "role"
)

// ExtensionIDFromCtx returns the authenticated extension id, or "" when
// the request never passed token authentication.
func ExtensionIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyExtensionID).(string); ok {
		return v
	}
	return ""
}

// WithIdentity stamps the verified token identity onto the context for
// downstream handlers and rate limiting.
func WithIdentity(ctx context.Context, tokenID, extensionID, role string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyTokenID, tokenID)
	ctx = context.WithValue(ctx, CtxKeyExtensionID, extensionID)
	return context.WithValue(ctx, CtxKeyRole, role)
}
