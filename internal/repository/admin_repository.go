package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// AdminRepository persists the singleton admin credential.
type AdminRepository interface {
	Get(ctx context.Context) (*domain.AdminCredential, error)
	SessionVersion(ctx context.Context) (int64, error)
	// EnsureAdmin creates the credential if it is absent and reports whether it did.
	EnsureAdmin(ctx context.Context, pinHash string) (bool, error)
	// UpsertPin overwrites the PIN unconditionally and bumps the session version.
	UpsertPin(ctx context.Context, pinHash string) error
	// UpdatePin replaces the PIN only if the session version still equals
	// expectedVersion, and returns the bumped version.
	UpdatePin(ctx context.Context, pinHash string, expectedVersion int64) (int64, error)
	BumpSessionVersion(ctx context.Context) (int64, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository returns a Postgres-backed implementation.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

func (r *adminRepository) Get(ctx context.Context) (*domain.AdminCredential, error) {
	const query = `
        SELECT id, pin_hash, session_version, updated_at
        FROM admin_credentials WHERE id=$1`

	var cred domain.AdminCredential
	if err := r.pool.QueryRow(ctx, query, domain.AdminCredentialID).Scan(
		&cred.ID,
		&cred.PinHash,
		&cred.SessionVersion,
		&cred.UpdatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &cred, nil
}

func (r *adminRepository) SessionVersion(ctx context.Context) (int64, error) {
	const query = `SELECT session_version FROM admin_credentials WHERE id=$1`

	var version int64
	if err := r.pool.QueryRow(ctx, query, domain.AdminCredentialID).Scan(&version); err != nil {
		return 0, mapPgError(err)
	}
	return version, nil
}

func (r *adminRepository) EnsureAdmin(ctx context.Context, pinHash string) (bool, error) {
	const query = `
        INSERT INTO admin_credentials (id, pin_hash, session_version, updated_at)
        VALUES ($1, $2, 1, NOW())
        ON CONFLICT (id) DO NOTHING`

	cmd, err := r.pool.Exec(ctx, query, domain.AdminCredentialID, pinHash)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *adminRepository) UpsertPin(ctx context.Context, pinHash string) error {
	const query = `
        INSERT INTO admin_credentials (id, pin_hash, session_version, updated_at)
        VALUES ($1, $2, 1, NOW())
        ON CONFLICT (id) DO UPDATE
        SET pin_hash=EXCLUDED.pin_hash,
            session_version=admin_credentials.session_version + 1,
            updated_at=NOW()`

	_, err := r.pool.Exec(ctx, query, domain.AdminCredentialID, pinHash)
	return err
}

func (r *adminRepository) UpdatePin(ctx context.Context, pinHash string, expectedVersion int64) (int64, error) {
	const query = `
        UPDATE admin_credentials
        SET pin_hash=$1, session_version=session_version + 1, updated_at=NOW()
        WHERE id=$2 AND session_version=$3
        RETURNING session_version`

	var version int64
	err := r.pool.QueryRow(ctx, query, pinHash, domain.AdminCredentialID, expectedVersion).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if _, getErr := r.SessionVersion(ctx); getErr != nil {
		return 0, getErr
	}
	return 0, ErrConflict
}

func (r *adminRepository) BumpSessionVersion(ctx context.Context) (int64, error) {
	const query = `
        UPDATE admin_credentials
        SET session_version=session_version + 1, updated_at=NOW()
        WHERE id=$1
        RETURNING session_version`

	var version int64
	if err := r.pool.QueryRow(ctx, query, domain.AdminCredentialID).Scan(&version); err != nil {
		return 0, mapPgError(err)
	}
	return version, nil
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
