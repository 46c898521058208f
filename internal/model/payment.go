package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment types.
const (
	PaymentAcompte = "Acompte"
	PaymentSolde   = "Solde"
	PaymentAutre   = "Autre"
)

// ValidPaymentType reports whether t is a known payment type.
func ValidPaymentType(t string) bool {
	return t == PaymentAcompte || t == PaymentSolde || t == PaymentAutre
}

// Payment records money received against a reservation. Payments are never
// updated once written; they can only be deleted.
//
// AutoType is set on payments created by reconciliation. The store keeps it
// unique per reservation so that a concurrent double save cannot produce two
// automatic deposits.
type Payment struct {
	ID            uint64          `json:"id"`
	ReservationID uint64          `json:"reservation_id"`
	Type          string          `json:"type"`
	MontantEUR    decimal.Decimal `json:"montant_eur"`
	Moyen         string          `json:"moyen"`
	DatePaiement  Date            `json:"date_paiement"`
	Notes         string          `json:"notes"`
	AutoType      *string         `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
}
