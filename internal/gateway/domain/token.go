package domain

// TokenType discriminates the two halves of an issued credential pair.
// Access tokens authorize ordinary API calls; refresh tokens exist only
// to mint new access tokens and must never be accepted in their place.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// RoleExtension is the only role this service issues. Authorization is
// a flat string; there is no policy engine behind it.
const RoleExtension = "extension"

// Identity is the decoded payload of a verified token.
type Identity struct {
	ID          string    `json:"id"`
	ExtensionID string    `json:"extensionId"`
	Role        string    `json:"role"`
	Type        TokenType `json:"type"`
}

// TokenPair is what a successful issuance returns. Both tokens share
// the same identity id but carry different types and lifetimes.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
