package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// PaymentRepo persists paiements. Rows are insert-only; corrections are made
// by deleting and re-entering a payment.
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, type, montant_eur, moyen, date_paiement, notes, auto_type, created_at`

func scanPayment(s rowScanner) (*model.Payment, error) {
	var (
		p        model.Payment
		datePaie sql.NullTime
		notes    sql.NullString
		autoType sql.NullString
	)
	if err := s.Scan(&p.ID, &p.ReservationID, &p.Type, &p.MontantEUR, &p.Moyen, &datePaie, &notes, &autoType, &p.CreatedAt); err != nil {
		return nil, err
	}
	if datePaie.Valid {
		p.DatePaiement = model.NewDate(datePaie.Time)
	}
	p.Notes = notes.String
	if autoType.Valid {
		v := autoType.String
		p.AutoType = &v
	}
	return &p, nil
}

// Get returns the payment with the given id.
func (r *PaymentRepo) Get(ctx context.Context, id uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM paiements WHERE id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// Insert writes p. A second automatic payment of the same type for the same
// reservation violates uq_paiements_auto and yields ErrDuplicate.
func (r *PaymentRepo) Insert(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO paiements (reservation_id, type, montant_eur, moyen, date_paiement, notes, auto_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	var autoType any
	if p.AutoType != nil {
		autoType = *p.AutoType
	}
	result, err := r.db.ExecContext(ctx, q, p.ReservationID, p.Type, p.MontantEUR, p.Moyen,
		p.DatePaiement.String(), p.Notes, autoType)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert %s payment for reservation %d: %w", p.Type, p.ReservationID, ErrDuplicate)
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.Get(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

// ListByReservation returns the payments of one reservation, oldest first.
func (r *PaymentRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM paiements WHERE reservation_id = ? ORDER BY date_paiement, id`
	return r.query(ctx, q, reservationID)
}

// List returns the latest payments across reservations, optionally of one
// type.
func (r *PaymentRepo) List(ctx context.Context, typ string, limit int) ([]model.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if typ != "" {
		const q = `SELECT ` + paymentColumns + ` FROM paiements WHERE type = ? ORDER BY date_paiement DESC, id DESC LIMIT ?`
		return r.query(ctx, q, typ, limit)
	}
	const q = `SELECT ` + paymentColumns + ` FROM paiements ORDER BY date_paiement DESC, id DESC LIMIT ?`
	return r.query(ctx, q, limit)
}

// Delete removes a payment.
func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM paiements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PaymentRepo) query(ctx context.Context, q string, args ...any) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
