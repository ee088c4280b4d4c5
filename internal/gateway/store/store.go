package store

import (
	"context"
	"errors"

	"github.com/uitrace/gateway/internal/gateway/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the extension registry.
// Concrete drivers (sqlite today) implement it. The registry holds only
// public key material; tokens and session state are deliberately never
// persisted.
type Store interface {
	Extensions() Extensions

	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}

// Extensions is the registry of known extension identities and their
// public keys.
type Extensions interface {
	// Create inserts a new registration (id provided by the app via ULID).
	// Returns ErrAlreadyExists when the extension id is already registered.
	Create(ctx context.Context, e domain.Extension) error

	// GetByExtensionID returns the registration for the id presented in
	// the X-Extension-ID header.
	GetByExtensionID(ctx context.Context, extensionID string) (domain.Extension, error)

	// List returns all registrations, newest first.
	List(ctx context.Context) ([]domain.Extension, error)

	// Revoke marks a registration as withdrawn. Revoked extensions fail
	// key resolution from then on.
	Revoke(ctx context.Context, extensionID string) error
}
