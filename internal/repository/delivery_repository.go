package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// DeliveryRepo persists livraisons. A reservation holds at most one row per
// delivery type (uq_livraisons_type).
type DeliveryRepo struct {
	db *sql.DB
}

func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

const deliveryColumns = `id, reservation_id, type, statut, date_prevue, heure_prevue, date_effective, heure_effective,
	adresse, ville, code_postal, contact_nom, contact_telephone, notes, created_at, updated_at`

func scanDelivery(s rowScanner) (*model.Delivery, error) {
	var (
		d         model.Delivery
		prevue    sql.NullTime
		effective sql.NullTime
		notes     sql.NullString
	)
	err := s.Scan(&d.ID, &d.ReservationID, &d.Type, &d.Statut, &prevue, &d.HeurePrevue, &effective, &d.HeureEffective,
		&d.Adresse, &d.Ville, &d.CodePostal, &d.ContactNom, &d.ContactTelephone, &notes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if prevue.Valid {
		d.DatePrevue = model.NewDate(prevue.Time)
	}
	d.DateEffective = datePtr(effective)
	d.Notes = notes.String
	return &d, nil
}

// Get returns the delivery with the given id.
func (r *DeliveryRepo) Get(ctx context.Context, id uint64) (*model.Delivery, error) {
	const q = `SELECT ` + deliveryColumns + ` FROM livraisons WHERE id = ?`
	d, err := scanDelivery(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// Insert writes d. A second row of the same type for the reservation yields
// ErrDuplicate.
func (r *DeliveryRepo) Insert(ctx context.Context, d *model.Delivery) error {
	const q = `INSERT INTO livraisons (reservation_id, type, statut, date_prevue, heure_prevue,
		adresse, ville, code_postal, contact_nom, contact_telephone, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, d.ReservationID, d.Type, d.Statut, d.DatePrevue.String(), d.HeurePrevue,
		d.Adresse, d.Ville, d.CodePostal, d.ContactNom, d.ContactTelephone, d.Notes)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert %s for reservation %d: %w", d.Type, d.ReservationID, ErrDuplicate)
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
	*d = *fresh
	return nil
}

// ListByReservation returns the deliveries of one reservation.
func (r *DeliveryRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Delivery, error) {
	const q = `SELECT ` + deliveryColumns + ` FROM livraisons WHERE reservation_id = ? ORDER BY date_prevue, id`
	return r.query(ctx, q, reservationID)
}

// List returns deliveries matching f by planned date. Cancelled deliveries
// are only listed when f.Statut asks for them.
func (r *DeliveryRepo) List(ctx context.Context, f model.DeliveryFilter) ([]model.Delivery, error) {
	var (
		where []string
		args  []any
	)
	if f.Statut != "" {
		where = append(where, "statut = ?")
		args = append(args, f.Statut)
	} else {
		where = append(where, "statut <> 'Annulée'")
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.ReservationID != 0 {
		where = append(where, "reservation_id = ?")
		args = append(args, f.ReservationID)
	}
	if f.From != nil {
		where = append(where, "date_prevue >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "date_prevue <= ?")
		args = append(args, f.To.String())
	}
	q := `SELECT ` + deliveryColumns + ` FROM livraisons WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date_prevue, heure_prevue, id`
	return r.query(ctx, q, args...)
}

// Delete removes a delivery.
func (r *DeliveryRepo) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM livraisons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets the statut and the effective date and time. A nil date
// clears them.
func (r *DeliveryRepo) UpdateStatus(ctx context.Context, id uint64, statut string, date *model.Date, heure string) error {
	const q = `UPDATE livraisons SET statut = ?, date_effective = ?, heure_effective = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, statut, dateArg(date), heure, id); err != nil {
		return err
	}
	_, err := r.Get(ctx, id)
	return err
}

func (r *DeliveryRepo) query(ctx context.Context, q string, args ...any) ([]model.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
