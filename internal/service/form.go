package service

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/pricing"
)

// Default form values.
const (
	DefaultHeureEvent    = "14:00"
	DefaultHeureFinEvent = "18:00"
	DefaultRetourHeure   = "10:00"
)

// DefaultCaution is the security deposit proposed on a new form.
var DefaultCaution = decimal.NewFromInt(200)

var hundred = decimal.NewFromInt(100)

// ReservationForm is the edit form as submitted by the operator. ID is set
// when editing a final reservation; DraftID when finalizing an autosaved
// draft. Both zero means a new reservation.
type ReservationForm struct {
	ID                   uint64          `json:"id"`
	DraftID              uint64          `json:"draft_id"`
	ClientID             uint64          `json:"client_id"`
	PackID               uint64          `json:"pack_id"`
	DateEvent            *model.Date     `json:"date_event"`
	DateFinEvent         *model.Date     `json:"date_fin_event"`
	HeureEvent           string          `json:"heure_event"`
	HeureFinEvent        string          `json:"heure_fin_event"`
	VilleZone            model.Zone      `json:"ville_zone"`
	AdresseEvent         string          `json:"adresse_event"`
	Statut               string          `json:"statut"`
	PrixTotalTTC         decimal.Decimal `json:"prix_total_ttc"`
	RemisePourcentage    decimal.Decimal `json:"remise_pourcentage"`
	TechnicienNecessaire bool            `json:"technicien_necessaire"`
	LivraisonAller       bool            `json:"livraison_aller"`
	LivraisonRetour      bool            `json:"livraison_retour"`
	CautionEUR           decimal.Decimal `json:"caution_eur"`
	CautionStatut        string          `json:"caution_statut"`
	CautionRetenueEUR    decimal.Decimal `json:"caution_retenue_eur"`
	AcompteDu            decimal.Decimal `json:"acompte_du"`
	AcompteRegle         bool            `json:"acompte_regle"`
	SoldeRegle           bool            `json:"solde_regle"`
	Notes                string          `json:"notes"`
}

// roundAmounts brings money and percentage inputs to the two decimals the
// store keeps, so a stored total can be recomputed from stored inputs.
func (f *ReservationForm) roundAmounts() {
	for _, d := range []*decimal.Decimal{
		&f.PrixTotalTTC, &f.RemisePourcentage, &f.CautionEUR, &f.CautionRetenueEUR, &f.AcompteDu,
	} {
		*d = d.Round(2)
	}
}

func (f *ReservationForm) normalize() {
	f.roundAmounts()
	f.HeureEvent = strings.TrimSpace(f.HeureEvent)
	f.HeureFinEvent = strings.TrimSpace(f.HeureFinEvent)
	f.AdresseEvent = strings.TrimSpace(f.AdresseEvent)
	f.Notes = strings.TrimSpace(f.Notes)
	if f.VilleZone == "" {
		f.VilleZone = model.ZoneParis
	}
	if f.CautionStatut == "" {
		f.CautionStatut = model.CautionAPercevoir
	}
	if f.Statut == "" || f.Statut == model.StatutBrouillon {
		f.Statut = model.StatutConfirmee
	}
}

// Validate checks the form for a final save.
func (f ReservationForm) Validate() error {
	ve := &ValidationError{}
	if f.ClientID == 0 {
		ve.add("client_id", "client obligatoire")
	}
	if f.PackID == 0 {
		ve.add("pack_id", "pack obligatoire")
	}
	if f.DateEvent == nil || f.DateEvent.IsZero() {
		ve.add("date_event", "date de l'événement obligatoire")
	}
	startH, startM, okStart := model.ParseClock(f.HeureEvent)
	if f.HeureEvent == "" {
		ve.add("heure_event", "heure de début obligatoire")
	} else if !okStart {
		ve.add("heure_event", "format HH:MM attendu")
	}
	if f.DateFinEvent != nil && !f.DateFinEvent.IsZero() && f.DateEvent != nil && f.DateFinEvent.Before(*f.DateEvent) {
		ve.add("date_fin_event", "la date de fin précède la date de début")
	}
	if f.HeureFinEvent != "" {
		endH, endM, ok := model.ParseClock(f.HeureFinEvent)
		switch {
		case !ok:
			ve.add("heure_fin_event", "format HH:MM attendu")
		case okStart && f.singleDay() && endH*60+endM <= startH*60+startM:
			ve.add("heure_fin_event", "l'heure de fin doit suivre l'heure de début")
		}
	}
	for _, m := range []struct {
		field string
		v     decimal.Decimal
	}{
		{"prix_total_ttc", f.PrixTotalTTC},
		{"acompte_du", f.AcompteDu},
		{"caution_eur", f.CautionEUR},
		{"caution_retenue_eur", f.CautionRetenueEUR},
	} {
		if m.v.IsNegative() {
			ve.add(m.field, "montant négatif")
		}
	}
	if f.RemisePourcentage.IsNegative() || f.RemisePourcentage.GreaterThan(hundred) {
		ve.add("remise_pourcentage", "doit être compris entre 0 et 100")
	}
	if f.VilleZone != "" && !f.VilleZone.Valid() {
		ve.add("ville_zone", "zone inconnue")
	}
	if f.Statut != "" && f.Statut != model.StatutBrouillon && !model.FinalStatut(f.Statut) {
		ve.add("statut", "statut inconnu")
	}
	if f.CautionStatut != "" && !model.ValidCautionStatut(f.CautionStatut) {
		ve.add("caution_statut", "statut de caution inconnu")
	}
	return ve.orNil()
}

func (f ReservationForm) singleDay() bool {
	return f.DateFinEvent == nil || f.DateFinEvent.IsZero() || (f.DateEvent != nil && f.DateFinEvent.Equal(*f.DateEvent))
}

// applyTo copies the form onto r. Client contact fields are set separately.
func (f ReservationForm) applyTo(r *model.Reservation) {
	clientID, packID := f.ClientID, f.PackID
	r.ClientID = &clientID
	r.PackID = &packID
	r.DateEvent = f.DateEvent
	r.DateFinEvent = nil
	if f.DateFinEvent != nil && !f.DateFinEvent.IsZero() {
		r.DateFinEvent = f.DateFinEvent
	}
	r.HeureEvent = model.Clock(f.HeureEvent, DefaultHeureEvent)
	r.HeureFinEvent = ""
	if f.HeureFinEvent != "" {
		r.HeureFinEvent = model.Clock(f.HeureFinEvent, "")
	}
	r.VilleZone = f.VilleZone
	r.AdresseEvent = f.AdresseEvent
	r.Statut = f.Statut
	r.PrixTotalTTC = f.PrixTotalTTC
	r.RemisePourcentage = f.RemisePourcentage
	r.TechnicienNecessaire = f.TechnicienNecessaire
	r.LivraisonAller = f.LivraisonAller
	r.LivraisonRetour = f.LivraisonRetour
	r.CautionEUR = f.CautionEUR
	r.CautionStatut = f.CautionStatut
	r.CautionRetenueEUR = f.CautionRetenueEUR
	r.AcompteDu = f.AcompteDu
	r.AcompteRegle = f.AcompteRegle
	r.SoldeRegle = f.SoldeRegle
	r.Notes = f.Notes
}

// QuoteResult is the live pricing preview of a form.
type QuoteResult struct {
	pricing.Quote
	DeadlinePaiement *time.Time `json:"deadline_paiement"`
	DeadlineNear     bool       `json:"deadline_near"`
}

// Quote prices a form without persisting it. Out of range discounts are
// clamped rather than rejected so the preview follows every keystroke.
func Quote(f ReservationForm, now time.Time) QuoteResult {
	if f.VilleZone == "" {
		f.VilleZone = model.ZoneParis
	}
	f.roundAmounts()
	q := pricing.Calculate(pricing.Input{
		BasePrice:         f.PrixTotalTTC,
		Zone:              f.VilleZone,
		LivraisonAller:    f.LivraisonAller,
		LivraisonRetour:   f.LivraisonRetour,
		Technicien:        f.TechnicienNecessaire,
		RemisePourcentage: f.RemisePourcentage,
		CautionEUR:        f.CautionEUR,
		CautionStatut:     f.CautionStatut,
		CautionRetenueEUR: f.CautionRetenueEUR,
		AcompteDu:         f.AcompteDu,
	})
	res := QuoteResult{Quote: q, DeadlinePaiement: pricing.DeadlineFor(f.DateEvent)}
	if res.DeadlinePaiement != nil {
		res.DeadlineNear = pricing.DeadlineNear(*res.DeadlinePaiement, now)
	}
	return res
}

func trim(s string) string { return strings.TrimSpace(s) }

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
