package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// PackRepo reads and writes equipment packs.
type PackRepo struct {
	db *sql.DB
}

func NewPackRepo(db *sql.DB) *PackRepo { return &PackRepo{db: db} }

const packColumns = `id, nom_pack, description, prix_base_ttc, actif, created_at, updated_at`

func scanPack(s rowScanner) (*model.Pack, error) {
	var (
		p    model.Pack
		desc sql.NullString
	)
	if err := s.Scan(&p.ID, &p.NomPack, &desc, &p.PrixBaseTTC, &p.Actif, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

// Get returns the pack with the given id.
func (r *PackRepo) Get(ctx context.Context, id uint64) (*model.Pack, error) {
	const q = `SELECT ` + packColumns + ` FROM packs WHERE id = ?`
	p, err := scanPack(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// List returns packs by name; inactive packs only when all is set.
func (r *PackRepo) List(ctx context.Context, all bool) ([]model.Pack, error) {
	q := `SELECT ` + packColumns + ` FROM packs`
	if !all {
		q += ` WHERE actif = 1`
	}
	q += ` ORDER BY nom_pack`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts p and fills in its id and timestamps.
func (r *PackRepo) Create(ctx context.Context, p *model.Pack) error {
	const q = `INSERT INTO packs (nom_pack, description, prix_base_ttc, actif) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, p.NomPack, p.Description, p.PrixBaseTTC, p.Actif)
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
	*p = *fresh
	return nil
}

// Update overwrites the editable fields of p.
func (r *PackRepo) Update(ctx context.Context, p *model.Pack) error {
	const q = `UPDATE packs SET nom_pack = ?, description = ?, prix_base_ttc = ?, actif = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, p.NomPack, p.Description, p.PrixBaseTTC, p.Actif, p.ID); err != nil {
		return err
	}
	fresh, err := r.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}
