// Package pricing derives reservation totals, balances and payment deadlines.
// Every function here is pure; callers re-run Calculate whenever an input
// changes.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

var (
	// DeliveryUnitParis is charged per delivery leg inside Paris.
	DeliveryUnitParis = decimal.NewFromInt(40)
	// DeliveryUnitOutside is charged per delivery leg outside Paris.
	DeliveryUnitOutside = decimal.NewFromInt(80)
	// TechnicianFee is the flat technician surcharge.
	TechnicianFee = decimal.NewFromInt(80)

	hundred = decimal.NewFromInt(100)
)

// Input carries every field the total depends on.
type Input struct {
	BasePrice         decimal.Decimal
	Zone              model.Zone
	LivraisonAller    bool
	LivraisonRetour   bool
	Technicien        bool
	RemisePourcentage decimal.Decimal
	CautionEUR        decimal.Decimal
	CautionStatut     string
	CautionRetenueEUR decimal.Decimal
	AcompteDu         decimal.Decimal
}

// Quote is the breakdown of a computed price.
type Quote struct {
	DeliveryCost   decimal.Decimal `json:"delivery_cost"`
	TechnicianCost decimal.Decimal `json:"technician_cost"`
	CautionRetenue decimal.Decimal `json:"caution_retenue"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Remise         decimal.Decimal `json:"remise_pourcentage"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	SoldeDu        decimal.Decimal `json:"solde_du"`
}

// DeliveryCost returns the delivery surcharge for the given zone and legs.
// Agency pickup never pays delivery.
func DeliveryCost(zone model.Zone, aller, retour bool) decimal.Decimal {
	if zone == model.ZoneRetrait {
		return decimal.Zero
	}
	unit := DeliveryUnitOutside
	if zone == model.ZoneParis {
		unit = DeliveryUnitParis
	}
	cost := decimal.Zero
	if aller {
		cost = cost.Add(unit)
	}
	if retour {
		cost = cost.Add(unit)
	}
	return cost
}

// ClampRemise bounds a discount percentage to [0, 100].
func ClampRemise(p decimal.Decimal) decimal.Decimal {
	return clamp(p, decimal.Zero, hundred)
}

// RetainedCaution returns the part of the security deposit added to the
// total. It is zero unless the deposit is partially retained, and never
// exceeds the deposit itself.
func RetainedCaution(statut string, retenue, caution decimal.Decimal) decimal.Decimal {
	if statut != model.CautionPartiellement {
		return decimal.Zero
	}
	upper := decimal.Max(caution, decimal.Zero)
	return clamp(retenue, decimal.Zero, upper)
}

// Calculate applies, in order: delivery legs, technician, retained deposit,
// discount, rounding to cents and the non-negative clamps.
func Calculate(in Input) Quote {
	q := Quote{
		DeliveryCost:   DeliveryCost(in.Zone, in.LivraisonAller, in.LivraisonRetour),
		TechnicianCost: decimal.Zero,
		CautionRetenue: RetainedCaution(in.CautionStatut, in.CautionRetenueEUR, in.CautionEUR),
		Remise:         ClampRemise(in.RemisePourcentage),
	}
	if in.Technicien {
		q.TechnicianCost = TechnicianFee
	}

	q.Subtotal = in.BasePrice.Add(q.DeliveryCost).Add(q.TechnicianCost).Add(q.CautionRetenue)

	q.Discount = q.Subtotal.Mul(q.Remise).Div(hundred)
	total := q.Subtotal.Sub(q.Discount).Round(2)
	q.Total = decimal.Max(total, decimal.Zero)
	q.Discount = q.Discount.Round(2)

	q.SoldeDu = Solde(q.Total, in.AcompteDu)
	return q
}

// Solde is the balance still due: max(0, round(total − acompte, 2)).
func Solde(total, acompte decimal.Decimal) decimal.Decimal {
	return decimal.Max(total.Sub(acompte).Round(2), decimal.Zero)
}

// InputFrom extracts the pricing inputs of a reservation.
func InputFrom(r *model.Reservation) Input {
	return Input{
		BasePrice:         r.PrixTotalTTC,
		Zone:              r.VilleZone,
		LivraisonAller:    r.LivraisonAller,
		LivraisonRetour:   r.LivraisonRetour,
		Technicien:        r.TechnicienNecessaire,
		RemisePourcentage: r.RemisePourcentage,
		CautionEUR:        r.CautionEUR,
		CautionStatut:     r.CautionStatut,
		CautionRetenueEUR: r.CautionRetenueEUR,
		AcompteDu:         r.AcompteDu,
	}
}

// Apply recomputes the derived columns of r in place and returns the quote.
// The stored discount and retained deposit are normalized to the values
// actually used.
func Apply(r *model.Reservation) Quote {
	q := Calculate(InputFrom(r))
	r.MontantTotal = q.Total
	r.SoldeDu = q.SoldeDu
	r.RemisePourcentage = q.Remise
	r.CautionRetenueEUR = q.CautionRetenue
	r.DeadlinePaiement = DeadlineFor(r.DateEvent)
	return q
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
