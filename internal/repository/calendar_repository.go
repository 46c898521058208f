package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// CalendarRepo stores calendar sync settings (a single row, id 1) and the
// OAuth tokens of connected providers.
type CalendarRepo struct {
	db *sql.DB
}

func NewCalendarRepo(db *sql.DB) *CalendarRepo { return &CalendarRepo{db: db} }

// Settings returns the sync settings. A missing row reads as everything off.
func (r *CalendarRepo) Settings(ctx context.Context) (model.CalendarSettings, error) {
	const q = `SELECT auto_sync, google_enabled, outlook_enabled, updated_at FROM calendar_settings WHERE id = 1`
	var s model.CalendarSettings
	err := r.db.QueryRowContext(ctx, q).Scan(&s.AutoSync, &s.GoogleEnabled, &s.OutlookEnabled, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarSettings{}, nil
	}
	return s, err
}

// SaveSettings upserts the sync settings.
func (r *CalendarRepo) SaveSettings(ctx context.Context, s model.CalendarSettings) error {
	const q = `INSERT INTO calendar_settings (id, auto_sync, google_enabled, outlook_enabled) VALUES (1, ?, ?, ?)
		ON DUPLICATE KEY UPDATE auto_sync = VALUES(auto_sync), google_enabled = VALUES(google_enabled),
		outlook_enabled = VALUES(outlook_enabled)`
	_, err := r.db.ExecContext(ctx, q, s.AutoSync, s.GoogleEnabled, s.OutlookEnabled)
	return err
}

// Token returns the stored token of provider.
func (r *CalendarRepo) Token(ctx context.Context, provider string) (*model.CalendarToken, error) {
	const q = `SELECT provider, access_token, refresh_token, token_type, expiry, updated_at
		FROM calendar_tokens WHERE provider = ?`
	var (
		t       model.CalendarToken
		refresh sql.NullString
		expiry  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, provider).Scan(&t.Provider, &t.AccessToken, &refresh, &t.TokenType, &expiry, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.RefreshToken = refresh.String
	if expiry.Valid {
		t.Expiry = expiry.Time
	}
	return &t, nil
}

// SaveToken upserts the token of t.Provider. An empty refresh token keeps
// the one already stored, since providers only send it on first consent.
func (r *CalendarRepo) SaveToken(ctx context.Context, t model.CalendarToken) error {
	const q = `INSERT INTO calendar_tokens (provider, access_token, refresh_token, token_type, expiry)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE access_token = VALUES(access_token),
		refresh_token = COALESCE(VALUES(refresh_token), refresh_token),
		token_type = VALUES(token_type), expiry = VALUES(expiry)`
	var expiry any
	if !t.Expiry.IsZero() {
		expiry = t.Expiry.UTC()
	}
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	_, err := r.db.ExecContext(ctx, q, t.Provider, t.AccessToken, nullString(t.RefreshToken), tokenType, expiry)
	return err
}

// DeleteToken forgets the token of provider.
func (r *CalendarRepo) DeleteToken(ctx context.Context, provider string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendar_tokens WHERE provider = ?`, provider)
	return err
}
