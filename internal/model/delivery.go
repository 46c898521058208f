package model

import "time"

// Delivery types.
const (
	DeliveryLivraison    = "Livraison"
	DeliveryRecuperation = "Récupération"
)

// Delivery statuts.
const (
	DeliveryPrevue   = "Prévue"
	DeliveryEnCours  = "En cours"
	DeliveryEffectue = "Effectuée"
	DeliveryReportee = "Reportée"
	DeliveryAnnulee  = "Annulée"
)

// ValidDeliveryStatut reports whether s is a known delivery statut.
func ValidDeliveryStatut(s string) bool {
	switch s {
	case DeliveryPrevue, DeliveryEnCours, DeliveryEffectue, DeliveryReportee, DeliveryAnnulee:
		return true
	}
	return false
}

// Delivery is a drop-off (Livraison) or pickup (Récupération) derived from a
// reservation's delivery flags.
type Delivery struct {
	ID               uint64    `json:"id"`
	ReservationID    uint64    `json:"reservation_id"`
	Type             string    `json:"type"`
	Statut           string    `json:"statut"`
	DatePrevue       Date      `json:"date_prevue"`
	HeurePrevue      string    `json:"heure_prevue"`
	DateEffective    *Date     `json:"date_effective"`
	HeureEffective   string    `json:"heure_effective,omitempty"`
	Adresse          string    `json:"adresse"`
	Ville            string    `json:"ville"`
	CodePostal       string    `json:"code_postal"`
	ContactNom       string    `json:"contact_nom"`
	ContactTelephone string    `json:"contact_telephone"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Started reports whether operators have already acted on the delivery.
func (d Delivery) Started() bool {
	return d.Statut == DeliveryEnCours || d.Statut == DeliveryEffectue
}

// DeliveryFilter narrows delivery listings.
type DeliveryFilter struct {
	Type          string
	Statut        string
	ReservationID uint64
	From, To      *Date
}
