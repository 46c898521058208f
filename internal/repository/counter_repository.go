package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/soundrent-backoffice/internal/reference"
)

// CounterRepo is the MySQL reference sequence. Each year owns one row in
// reference_counters that is locked for the duration of an increment, so
// concurrent savers always receive distinct numbers.
type CounterRepo struct {
	db *sql.DB
}

func NewCounterRepo(db *sql.DB) *CounterRepo { return &CounterRepo{db: db} }

var _ reference.Sequence = (*CounterRepo)(nil)
var _ reference.Seeder = (*CounterRepo)(nil)

// MaxRefSeq returns the highest sequence among existing references of year.
func (r *CounterRepo) MaxRefSeq(ctx context.Context, year int) (int, error) {
	refs, err := NewReservationRepo(r.db).RefsForYear(ctx, year)
	if err != nil {
		return 0, err
	}
	return reference.MaxSeq(year, refs), nil
}

// NextSeq increments and returns the counter of year. The first call of a
// year seeds the row from the references already stored.
func (r *CounterRepo) NextSeq(ctx context.Context, year int) (int, error) {
	n, err := r.nextSeq(ctx, year)
	if errors.Is(err, ErrDuplicate) {
		// Another writer created the row between our SELECT and INSERT.
		return r.nextSeq(ctx, year)
	}
	return n, err
}

func (r *CounterRepo) nextSeq(ctx context.Context, year int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var seq int
	err = tx.QueryRowContext(ctx, `SELECT seq FROM reference_counters WHERE year = ? FOR UPDATE`, year).Scan(&seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		base, err := r.MaxRefSeq(ctx, year)
		if err != nil {
			return 0, err
		}
		seq = base + 1
		if _, err := tx.ExecContext(ctx, `INSERT INTO reference_counters (year, seq) VALUES (?, ?)`, year, seq); err != nil {
			if isDuplicate(err) {
				return 0, ErrDuplicate
			}
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		seq++
		if _, err := tx.ExecContext(ctx, `UPDATE reference_counters SET seq = ? WHERE year = ?`, seq, year); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return seq, nil
}
