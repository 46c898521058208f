package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Zone is the delivery area of an event.
type Zone string

const (
	ZoneParis     Zone = "Paris"
	ZoneHorsParis Zone = "Hors Paris"
	ZoneRetrait   Zone = "Retrait agence"
)

// Valid reports whether z is one of the known zones.
func (z Zone) Valid() bool {
	switch z {
	case ZoneParis, ZoneHorsParis, ZoneRetrait:
		return true
	}
	return false
}

// Reservation lifecycle statuts.
const (
	StatutBrouillon   = "Brouillon"
	StatutConfirmee   = "Confirmée"
	StatutAcomptePaye = "Acompte payé"
	StatutSoldee      = "Soldée"
	StatutAnnulee     = "Annulée"
)

// FinalStatut reports whether s is a statut a non-draft reservation may hold.
func FinalStatut(s string) bool {
	switch s {
	case StatutConfirmee, StatutAcomptePaye, StatutSoldee, StatutAnnulee:
		return true
	}
	return false
}

// Caution (security deposit) statuts.
const (
	CautionAPercevoir    = "À percevoir"
	CautionRecue         = "Reçue"
	CautionRestituee     = "Restituée"
	CautionPartiellement = "Partiellement retenue"
)

// ValidCautionStatut reports whether s is a known caution statut.
func ValidCautionStatut(s string) bool {
	switch s {
	case CautionAPercevoir, CautionRecue, CautionRestituee, CautionPartiellement:
		return true
	}
	return false
}

// Reservation is a booking of a pack for a client at an event date.
//
// Fields:
//  ID, Ref            – store id and human reference (RES-YYYY-NNN, empty on drafts).
//  ClientID, PackID   – nil only while the reservation is a draft.
//  FullName, Email,
//  Telephone          – client contact copied at save time.
//  DateEvent ...      – event window; HeureEvent/HeureFinEvent are "HH:MM".
//  PrixTotalTTC       – base pack price as edited by the operator.
//  MontantTotal       – derived total after surcharges and discount.
//  AcompteDu          – deposit amount, user-set.
//  SoldeDu            – derived balance, max(0, total − acompte).
//  DeadlinePaiement   – event date minus 72 hours.
//  IsDraft            – true while the form is autosaved; Statut is Brouillon then.
type Reservation struct {
	ID                   uint64          `json:"id"`
	Ref                  string          `json:"ref,omitempty"`
	ClientID             *uint64         `json:"client_id"`
	PackID               *uint64         `json:"pack_id"`
	FullName             string          `json:"full_name"`
	Email                string          `json:"email"`
	Telephone            string          `json:"telephone"`
	DateEvent            *Date           `json:"date_event"`
	DateFinEvent         *Date           `json:"date_fin_event"`
	HeureEvent           string          `json:"heure_event"`
	HeureFinEvent        string          `json:"heure_fin_event"`
	VilleZone            Zone            `json:"ville_zone"`
	AdresseEvent         string          `json:"adresse_event"`
	Statut               string          `json:"statut"`
	PrixTotalTTC         decimal.Decimal `json:"prix_total_ttc"`
	MontantTotal         decimal.Decimal `json:"montant_total"`
	AcompteDu            decimal.Decimal `json:"acompte_du"`
	AcompteRegle         bool            `json:"acompte_regle"`
	SoldeDu              decimal.Decimal `json:"solde_du"`
	SoldeRegle           bool            `json:"solde_regle"`
	CautionEUR           decimal.Decimal `json:"caution_eur"`
	CautionStatut        string          `json:"caution_statut"`
	CautionRetenueEUR    decimal.Decimal `json:"caution_retenue_eur"`
	DeadlinePaiement     *time.Time      `json:"deadline_paiement"`
	TechnicienNecessaire bool            `json:"technicien_necessaire"`
	LivraisonAller       bool            `json:"livraison_aller"`
	LivraisonRetour      bool            `json:"livraison_retour"`
	RemisePourcentage    decimal.Decimal `json:"remise_pourcentage"`
	Notes                string          `json:"notes"`
	IsDraft              bool            `json:"is_draft"`
	DraftUpdatedAt       *time.Time      `json:"draft_updated_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// MaxPage is the largest page a reservation listing returns. Callers that
// need every row page with Offset until a page comes back short.
const MaxPage = 500

// ReservationFilter narrows reservation listings. Zero values do not filter.
type ReservationFilter struct {
	Statut        string
	ClientID      uint64
	IncludeDrafts bool
	Year          int
	Limit         int
	Offset        int
}
