package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// Quick actions offered on the reservation list.
const (
	ActionAcomptePaye      = "acompte_paye"
	ActionSoldePaye        = "solde_paye"
	ActionCautionRecue     = "caution_recue"
	ActionCautionRestituee = "caution_restituee"
)

// QuickActionResult reports the payment a quick action created, if any.
type QuickActionResult struct {
	Reservation *model.Reservation `json:"reservation"`
	Payment     *model.Payment     `json:"payment,omitempty"`
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

// QuickAction applies one of the list shortcuts to a final reservation.
func (s *ReservationService) QuickAction(ctx context.Context, id uint64, action string) (*QuickActionResult, error) {
	var (
		patch   repository.ReservationPatch
		payType string
	)
	switch action {
	case ActionAcomptePaye:
		payType = model.PaymentAcompte
		patch = repository.ReservationPatch{AcompteRegle: boolPtr(true), Statut: strPtr(model.StatutAcomptePaye)}
	case ActionSoldePaye:
		payType = model.PaymentSolde
		patch = repository.ReservationPatch{SoldeRegle: boolPtr(true), Statut: strPtr(model.StatutSoldee)}
	case ActionCautionRecue:
		patch = repository.ReservationPatch{CautionStatut: strPtr(model.CautionRecue)}
	case ActionCautionRestituee:
		patch = repository.ReservationPatch{CautionStatut: strPtr(model.CautionRestituee)}
	default:
		return nil, invalid("action", fmt.Sprintf("action inconnue %q", action))
	}

	r, err := s.reservations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsDraft {
		return nil, invalid("id", "action impossible sur un brouillon")
	}

	out := &QuickActionResult{}
	if payType != "" {
		amount := r.AcompteDu
		if payType == model.PaymentSolde {
			amount = r.SoldeDu
		}
		p, err := s.ensurePayment(ctx, r, payType, amount)
		if err != nil {
			return nil, persistence("create payment", err)
		}
		out.Payment = p
	}
	if err := s.reservations.Patch(ctx, id, patch); err != nil {
		return nil, persistence("update reservation", err)
	}
	if r, err = s.reservations.Get(ctx, id); err != nil {
		return nil, err
	}
	out.Reservation = r

	ev := events.Event{Name: events.PaymentUpdated, ReservationID: id, Ref: r.Ref, Action: action}
	if out.Payment != nil {
		ev.PaymentsCreated = 1
	}
	s.events.Publish(ctx, ev)
	return out, nil
}

// ensurePayment inserts a payment of typ unless the amount is zero or one
// already exists.
func (s *ReservationService) ensurePayment(ctx context.Context, r *model.Reservation, typ string, amount decimal.Decimal) (*model.Payment, error) {
	if !amount.IsPositive() {
		return nil, nil
	}
	existing, err := s.payments.ListByReservation(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.Type == typ {
			return nil, nil
		}
	}
	note := fmt.Sprintf("%s marqué comme payé depuis la liste des réservations - %s", typ, r.Ref)
	p, err := s.insertPayment(ctx, r.ID, typ, amount, note, true)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, nil
	}
	return p, err
}
