package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/store"
)

type extensionsRepo struct {
	db *sql.DB
}

func (r *extensionsRepo) Create(ctx context.Context, e domain.Extension) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO extensions (id, extension_id, public_key, label, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ExtensionID, string(e.PublicKey), e.Label, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *extensionsRepo) GetByExtensionID(ctx context.Context, extensionID string) (domain.Extension, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, extension_id, public_key, label, created_at, revoked_at
		FROM extensions WHERE extension_id = ?`, extensionID)

	ext, err := scanExtension(row)
	if err != nil {
		return domain.Extension{}, mapNotFound(err)
	}
	return ext, nil
}

func (r *extensionsRepo) List(ctx context.Context) ([]domain.Extension, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, extension_id, public_key, label, created_at, revoked_at
		FROM extensions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Extension
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, rows.Err()
}

func (r *extensionsRepo) Revoke(ctx context.Context, extensionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE extensions SET revoked_at = ?
		WHERE extension_id = ? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), extensionID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExtension(row scannable) (domain.Extension, error) {
	var (
		ext       domain.Extension
		publicKey string
		createdAt string
		revokedAt sql.NullString
	)

	err := row.Scan(&ext.ID, &ext.ExtensionID, &publicKey, &ext.Label, &createdAt, &revokedAt)
	if err != nil {
		return domain.Extension{}, err
	}

	ext.PublicKey = []byte(publicKey)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		ext.CreatedAt = t
	}
	if revokedAt.Valid {
		if t, err := time.Parse(time.RFC3339, revokedAt.String); err == nil {
			ext.RevokedAt = &t
		}
	}

	return ext, nil
}
