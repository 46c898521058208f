package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// ClientRepo reads and writes clients.
type ClientRepo struct {
	db *sql.DB
}

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

const clientColumns = `id, prenom, nom, email, telephone, adresse, notes, created_at, updated_at`

func scanClient(s rowScanner) (*model.Client, error) {
	var (
		c     model.Client
		notes sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Prenom, &c.Nom, &c.Email, &c.Telephone, &c.Adresse, &notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Notes = notes.String
	return &c, nil
}

// Get returns the client with the given id.
func (r *ClientRepo) Get(ctx context.Context, id uint64) (*model.Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`
	c, err := scanClient(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// List returns clients ordered by name. A non-empty search matches name,
// email or phone.
func (r *ClientRepo) List(ctx context.Context, search string, limit, offset int) ([]model.Client, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + clientColumns + ` FROM clients`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		q += ` WHERE nom LIKE ? OR prenom LIKE ? OR email LIKE ? OR telephone LIKE ?`
		args = append(args, like, like, like, like)
	}
	q += ` ORDER BY nom, prenom LIMIT ? OFFSET ?`
	args = append(args, limit, max(offset, 0))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts c and fills in its id and timestamps.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client) error {
	const q = `INSERT INTO clients (prenom, nom, email, telephone, adresse, notes) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, c.Prenom, c.Nom, c.Email, c.Telephone, c.Adresse, c.Notes)
	if err != nil {
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
	*c = *fresh
	return nil
}

// Update overwrites the editable fields of c.
func (r *ClientRepo) Update(ctx context.Context, c *model.Client) error {
	const q = `UPDATE clients SET prenom = ?, nom = ?, email = ?, telephone = ?, adresse = ?, notes = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, c.Prenom, c.Nom, c.Email, c.Telephone, c.Adresse, c.Notes, c.ID); err != nil {
		return err
	}
	fresh, err := r.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}
