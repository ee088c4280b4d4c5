package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/uitrace/gateway/internal/gateway/store"
)

// ErrUnknownExtension reports that no usable public key exists for the
// presented extension id. The signature guard turns it into a plain
// 401; which registry path failed is never revealed to the caller.
var ErrUnknownExtension = errors.New("unknown_extension")

// KeyDirectory resolves extension public keys for the signature guard.
// It checks the SQLite registry first and falls back to the bootstrap
// key supplied via environment config, which keeps the single-extension
// deployment working with no database rows at all.
type KeyDirectory struct {
	Store store.Store

	// Bootstrap maps extension id to PEM public key material seeded
	// from configuration. Read-only after startup.
	Bootstrap map[string][]byte
}

// PublicKey returns the PEM public key registered for extensionID.
// Revoked registrations resolve to ErrUnknownExtension.
func (d *KeyDirectory) PublicKey(ctx context.Context, extensionID string) ([]byte, error) {
	if d.Store != nil {
		ext, err := d.Store.Extensions().GetByExtensionID(ctx, extensionID)
		switch {
		case err == nil:
			if ext.Revoked() {
				return nil, ErrUnknownExtension
			}
			return ext.PublicKey, nil
		case errors.Is(err, store.ErrNotFound):
			// fall through to the bootstrap set
		default:
			return nil, fmt.Errorf("resolve extension key: %w", err)
		}
	}

	if key, ok := d.Bootstrap[extensionID]; ok {
		return key, nil
	}

	return nil, ErrUnknownExtension
}
