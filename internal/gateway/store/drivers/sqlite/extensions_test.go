package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/store"
	"github.com/uitrace/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/uitrace/gateway/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore("file:" + t.TempDir() + "/registry.db?_journal_mode=WAL")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func sampleExtension(extensionID string) domain.Extension {
	return domain.Extension{
		ID:          idx.New().String(),
		ExtensionID: extensionID,
		PublicKey:   []byte("-----BEGIN PUBLIC KEY-----\nMA==\n-----END PUBLIC KEY-----\n"),
		Label:       "test extension",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestExtensionsCreateAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	ext := sampleExtension("ext-1")
	require.NoError(t, s.Extensions().Create(ctx, ext))

	got, err := s.Extensions().GetByExtensionID(ctx, "ext-1")
	require.NoError(t, err)
	require.Equal(t, ext.ID, got.ID)
	require.Equal(t, ext.PublicKey, got.PublicKey)
	require.False(t, got.Revoked())
}

func TestExtensionsDuplicateExtensionID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Extensions().Create(ctx, sampleExtension("ext-dup")))
	err := s.Extensions().Create(ctx, sampleExtension("ext-dup"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestExtensionsGetUnknown(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.Extensions().GetByExtensionID(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestExtensionsRevoke(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Extensions().Create(ctx, sampleExtension("ext-r")))
	require.NoError(t, s.Extensions().Revoke(ctx, "ext-r"))

	got, err := s.Extensions().GetByExtensionID(ctx, "ext-r")
	require.NoError(t, err)
	require.True(t, got.Revoked())

	// Second revoke finds nothing left to revoke.
	require.ErrorIs(t, s.Extensions().Revoke(ctx, "ext-r"), store.ErrNotFound)
	require.ErrorIs(t, s.Extensions().Revoke(ctx, "never-existed"), store.ErrNotFound)
}

func TestExtensionsList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Extensions().Create(ctx, sampleExtension("ext-a")))
	require.NoError(t, s.Extensions().Create(ctx, sampleExtension("ext-b")))

	all, err := s.Extensions().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
