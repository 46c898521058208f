package repository

import (
	"context"
	"database/sql"
	"time"
)

const (
	qInsertRefresh = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`
	qFindRefresh   = `SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ? LIMIT 1`
	qRevokeHash    = `UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND revoked_at IS NULL`
	qRevokeUser    = `UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE user_id = ? AND revoked_at IS NULL`
	qPurgeRefresh  = `DELETE FROM refresh_tokens WHERE expires_at < ? OR revoked_at < ?`
)

// TokenRepo keeps staff refresh tokens. Only the SHA-256 of a token is
// ever stored.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx, qInsertRefresh, userID, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns the owner of a live token. Revoked, expired and
// unknown tokens all yield ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		owner   uint64
		expires time.Time
		revoked sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, qFindRefresh, tokenHash).Scan(&owner, &expires, &revoked); err != nil {
		return 0, notFound(err)
	}
	if revoked.Valid || !expires.After(time.Now().UTC()) {
		return 0, ErrNotFound
	}
	return owner, nil
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, qRevokeHash, tokenHash)
	return err
}

func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx, qRevokeUser, userID)
	return err
}

// PurgeExpired deletes tokens that expired, or were revoked, before cutoff.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	res, err := r.db.ExecContext(ctx, qPurgeRefresh, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
