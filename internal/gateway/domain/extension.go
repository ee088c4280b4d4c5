package domain

import "time"

// Extension is a registered client identity: the extension id the
// client presents in headers plus the public half of its key pair. The
// private half never reaches the gateway.
type Extension struct {
	ID          string
	ExtensionID string
	PublicKey   []byte // PEM
	Label       string
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// Revoked reports whether the registration has been withdrawn. Revoked
// extensions fail signature resolution, which rejects their requests
// before any cryptography runs.
func (e Extension) Revoked() bool {
	return e.RevokedAt != nil
}
