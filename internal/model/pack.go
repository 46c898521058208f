package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pack is a named bundle of equipment with a base price.
type Pack struct {
	ID          uint64          `json:"id"`
	NomPack     string          `json:"nom_pack"`
	Description string          `json:"description"`
	PrixBaseTTC decimal.Decimal `json:"prix_base_ttc"`
	Actif       bool            `json:"actif"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
