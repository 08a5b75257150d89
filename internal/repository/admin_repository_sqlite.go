package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/feedback-service/internal/domain"
)

type adminRow struct {
	ID             int64     `db:"id"`
	PinHash        string    `db:"pin_hash"`
	SessionVersion int64     `db:"session_version"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type sqliteAdminRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteAdminRepository returns an SQLite-backed implementation.
func NewSQLiteAdminRepository(db *sqlx.DB) AdminRepository {
	return &sqliteAdminRepository{db: db, now: utcNow}
}

func (r *sqliteAdminRepository) Get(ctx context.Context) (*domain.AdminCredential, error) {
	var row adminRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, pin_hash, session_version, updated_at FROM admin_credentials WHERE id = ?`,
		domain.AdminCredentialID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	return &domain.AdminCredential{
		ID:             row.ID,
		PinHash:        row.PinHash,
		SessionVersion: row.SessionVersion,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func (r *sqliteAdminRepository) SessionVersion(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.GetContext(ctx, &version,
		`SELECT session_version FROM admin_credentials WHERE id = ?`, domain.AdminCredentialID)
	if err != nil {
		return 0, mapSQLError(err)
	}
	return version, nil
}

func (r *sqliteAdminRepository) EnsureAdmin(ctx context.Context, pinHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_credentials (id, pin_hash, session_version, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (id) DO NOTHING`,
		domain.AdminCredentialID, pinHash, r.now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *sqliteAdminRepository) UpsertPin(ctx context.Context, pinHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_credentials (id, pin_hash, session_version, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET pin_hash = excluded.pin_hash,
		     session_version = admin_credentials.session_version + 1,
		     updated_at = excluded.updated_at`,
		domain.AdminCredentialID, pinHash, r.now())
	return err
}

func (r *sqliteAdminRepository) UpdatePin(ctx context.Context, pinHash string, expectedVersion int64) (int64, error) {
	var version int64
	err := r.db.QueryRowxContext(ctx,
		`UPDATE admin_credentials
		 SET pin_hash = ?, session_version = session_version + 1, updated_at = ?
		 WHERE id = ? AND session_version = ?
		 RETURNING session_version`,
		pinHash, r.now(), domain.AdminCredentialID, expectedVersion).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if _, getErr := r.SessionVersion(ctx); getErr != nil {
		return 0, getErr
	}
	return 0, ErrConflict
}

func (r *sqliteAdminRepository) BumpSessionVersion(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.QueryRowxContext(ctx,
		`UPDATE admin_credentials
		 SET session_version = session_version + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING session_version`,
		r.now(), domain.AdminCredentialID).Scan(&version)
	if err != nil {
		return 0, mapSQLError(err)
	}
	return version, nil
}

func mapSQLError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func utcNow() time.Time {
	return time.Now().UTC()
}
