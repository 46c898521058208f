package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// ReservationRepo persists reservations and drafts. Drafts live in the same
// table with is_draft = 1 and statut Brouillon. All timestamps are UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, ref, client_id, pack_id, full_name, email, telephone,
	date_event, date_fin_event, heure_event, heure_fin_event, ville_zone, adresse_event, statut,
	prix_total_ttc, montant_total, acompte_du, acompte_regle, solde_du, solde_regle,
	caution_eur, caution_statut, caution_retenue_eur, deadline_paiement,
	technicien_necessaire, livraison_aller, livraison_retour, remise_pourcentage, notes,
	is_draft, draft_updated_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		r                 model.Reservation
		ref, notes        sql.NullString
		clientID, packID  sql.NullInt64
		dateEvt, dateFin  sql.NullTime
		deadline, draftAt sql.NullTime
		zone              string
	)
	err := s.Scan(
		&r.ID, &ref, &clientID, &packID, &r.FullName, &r.Email, &r.Telephone,
		&dateEvt, &dateFin, &r.HeureEvent, &r.HeureFinEvent, &zone, &r.AdresseEvent, &r.Statut,
		&r.PrixTotalTTC, &r.MontantTotal, &r.AcompteDu, &r.AcompteRegle, &r.SoldeDu, &r.SoldeRegle,
		&r.CautionEUR, &r.CautionStatut, &r.CautionRetenueEUR, &deadline,
		&r.TechnicienNecessaire, &r.LivraisonAller, &r.LivraisonRetour, &r.RemisePourcentage, &notes,
		&r.IsDraft, &draftAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Ref = ref.String
	r.Notes = notes.String
	r.VilleZone = model.Zone(zone)
	r.ClientID = idPtr(clientID)
	r.PackID = idPtr(packID)
	r.DateEvent = datePtr(dateEvt)
	r.DateFinEvent = datePtr(dateFin)
	r.DeadlinePaiement = timePtr(deadline)
	r.DraftUpdatedAt = timePtr(draftAt)
	return &r, nil
}

// reservationArgs lists the writable columns in the order used by Insert
// and Update.
func reservationArgs(r *model.Reservation) []any {
	return []any{
		nullString(r.Ref), r.ClientID, r.PackID, r.FullName, r.Email, r.Telephone,
		dateArg(r.DateEvent), dateArg(r.DateFinEvent), r.HeureEvent, r.HeureFinEvent,
		string(r.VilleZone), r.AdresseEvent, r.Statut,
		r.PrixTotalTTC, r.MontantTotal, r.AcompteDu, r.AcompteRegle, r.SoldeDu, r.SoldeRegle,
		r.CautionEUR, r.CautionStatut, r.CautionRetenueEUR, timeArg(r.DeadlinePaiement),
		r.TechnicienNecessaire, r.LivraisonAller, r.LivraisonRetour, r.RemisePourcentage, r.Notes,
		r.IsDraft, timeArg(r.DraftUpdatedAt),
	}
}

const reservationWritable = `ref, client_id, pack_id, full_name, email, telephone,
	date_event, date_fin_event, heure_event, heure_fin_event, ville_zone, adresse_event, statut,
	prix_total_ttc, montant_total, acompte_du, acompte_regle, solde_du, solde_regle,
	caution_eur, caution_statut, caution_retenue_eur, deadline_paiement,
	technicien_necessaire, livraison_aller, livraison_retour, remise_pourcentage, notes,
	is_draft, draft_updated_at`

// Get returns the reservation with the given id.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// Insert writes a new reservation and refreshes it from the database so the
// generated id and timestamps are populated. A duplicate ref yields
// ErrDuplicate.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	q := `INSERT INTO reservations (` + reservationWritable + `) VALUES (` + placeholders(30) + `)`
	result, err := r.db.ExecContext(ctx, q, reservationArgs(res)...)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert reservation %q: %w", res.Ref, ErrDuplicate)
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	return r.reload(ctx, uint64(id), res)
}

// Update overwrites every writable column of an existing reservation.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	cols := strings.Split(reservationWritable, ",")
	for i, c := range cols {
		cols[i] = strings.TrimSpace(c) + " = ?"
	}
	q := `UPDATE reservations SET ` + strings.Join(cols, ", ") + ` WHERE id = ?`
	args := append(reservationArgs(res), res.ID)
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("update reservation %d: %w", res.ID, ErrDuplicate)
		}
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when nothing changed; tell that
		// apart from a missing row.
		if _, err := r.Get(ctx, res.ID); err != nil {
			return err
		}
	}
	return r.reload(ctx, res.ID, res)
}

func (r *ReservationRepo) reload(ctx context.Context, id uint64, dst *model.Reservation) error {
	fresh, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	*dst = *fresh
	return nil
}

// ReservationPatch updates a subset of columns. Nil fields are left as is.
type ReservationPatch struct {
	AcompteRegle  *bool
	SoldeRegle    *bool
	Statut        *string
	CautionStatut *string
}

// Patch applies p to reservation id.
func (r *ReservationRepo) Patch(ctx context.Context, id uint64, p ReservationPatch) error {
	var (
		sets []string
		args []any
	)
	if p.AcompteRegle != nil {
		sets = append(sets, "acompte_regle = ?")
		args = append(args, *p.AcompteRegle)
	}
	if p.SoldeRegle != nil {
		sets = append(sets, "solde_regle = ?")
		args = append(args, *p.SoldeRegle)
	}
	if p.Statut != nil {
		sets = append(sets, "statut = ?")
		args = append(args, *p.Statut)
	}
	if p.CautionStatut != nil {
		sets = append(sets, "caution_statut = ?")
		args = append(args, *p.CautionStatut)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := `UPDATE reservations SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND is_draft = 0`
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a reservation. Payments and deliveries cascade.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM reservations WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns reservations matching f ordered by event date, most recent
// first. Drafts are excluded unless f.IncludeDrafts is set.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeDrafts {
		where = append(where, "is_draft = 0")
	}
	if f.Statut != "" {
		where = append(where, "statut = ?")
		args = append(args, f.Statut)
	}
	if f.ClientID != 0 {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Year != 0 {
		where = append(where, "YEAR(date_event) = ?")
		args = append(args, f.Year)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date_event DESC, id DESC`
	limit := f.Limit
	if limit <= 0 || limit > model.MaxPage {
		limit = model.MaxPage
	}
	q += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(f.Offset, 0))
	return r.query(ctx, q, args...)
}

// ListDrafts returns the most recently edited drafts first.
func (r *ReservationRepo) ListDrafts(ctx context.Context, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE is_draft = 1 OR statut = 'Brouillon'
		ORDER BY draft_updated_at DESC, created_at DESC
		LIMIT ?`
	return r.query(ctx, q, limit)
}

// DeleteDraft removes a draft. Finalized reservations are never touched and
// yield ErrConflict.
func (r *ReservationRepo) DeleteDraft(ctx context.Context, id uint64) error {
	const q = `DELETE FROM reservations WHERE id = ? AND is_draft = 1`
	result, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// PurgeDrafts deletes drafts not edited since before and returns how many
// were removed.
func (r *ReservationRepo) PurgeDrafts(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM reservations
		WHERE is_draft = 1 AND COALESCE(draft_updated_at, created_at) < ?`
	result, err := r.db.ExecContext(ctx, q, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RefsForYear returns every reference issued for year.
func (r *ReservationRepo) RefsForYear(ctx context.Context, year int) ([]string, error) {
	const q = `SELECT ref FROM reservations WHERE ref LIKE ?`
	rows, err := r.db.QueryContext(ctx, q, fmt.Sprintf("RES-%d-%%", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListMissingRef returns final reservations that were saved without a
// reference.
func (r *ReservationRepo) ListMissingRef(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE is_draft = 0 AND (ref IS NULL OR ref = '' OR ref = 'N/A')
		ORDER BY created_at`
	return r.query(ctx, q)
}

// SetRef assigns a reference to a reservation that has none.
func (r *ReservationRepo) SetRef(ctx context.Context, id uint64, ref string) error {
	const q = `UPDATE reservations SET ref = ? WHERE id = ? AND (ref IS NULL OR ref = '' OR ref = 'N/A')`
	_, err := r.db.ExecContext(ctx, q, ref, id)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
