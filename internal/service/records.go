package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// PaymentForm is a payment entered by hand.
type PaymentForm struct {
	ReservationID uint64          `json:"reservation_id"`
	Type          string          `json:"type"`
	MontantEUR    decimal.Decimal `json:"montant_eur"`
	Moyen         string          `json:"moyen"`
	DatePaiement  *model.Date     `json:"date_paiement"`
	Notes         string          `json:"notes"`
}

// RecordPayment stores a manual payment. Unlike reconciliation it accepts
// any type, including a second payment of a type already present.
func (s *ReservationService) RecordPayment(ctx context.Context, f PaymentForm) (*model.Payment, error) {
	ve := &ValidationError{}
	if f.ReservationID == 0 {
		ve.add("reservation_id", "réservation obligatoire")
	}
	if !model.ValidPaymentType(f.Type) {
		ve.add("type", "type de paiement inconnu")
	}
	if !f.MontantEUR.IsPositive() {
		ve.add("montant_eur", "montant strictement positif attendu")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	r, err := s.reservations.Get(ctx, f.ReservationID)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{
		ReservationID: r.ID,
		Type:          f.Type,
		MontantEUR:    f.MontantEUR,
		Moyen:         strings.TrimSpace(f.Moyen),
		DatePaiement:  s.today(),
		Notes:         strings.TrimSpace(f.Notes),
	}
	if p.Moyen == "" {
		p.Moyen = DefaultMoyen
	}
	if f.DatePaiement != nil && !f.DatePaiement.IsZero() {
		p.DatePaiement = *f.DatePaiement
	}
	if err := s.payments.Insert(ctx, p); err != nil {
		return nil, persistence("insert payment", err)
	}
	s.events.Publish(ctx, events.Event{Name: events.PaymentUpdated, ReservationID: r.ID, Ref: r.Ref, Action: "manual", PaymentsCreated: 1})
	return p, nil
}

// DeletePayment removes a payment.
func (s *ReservationService) DeletePayment(ctx context.Context, id uint64) error {
	p, err := s.payments.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, events.Event{Name: events.PaymentUpdated, ReservationID: p.ReservationID, Action: "deleted"})
	return nil
}

// DeleteReservation removes a reservation with its payments and
// deliveries.
func (s *ReservationService) DeleteReservation(ctx context.Context, id uint64) error {
	if err := s.reservations.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, events.Event{Name: events.ReservationUpdated, ReservationID: id, Action: "deleted"})
	s.events.Publish(ctx, events.Event{Name: events.DeliveriesUpdated, ReservationID: id, Action: "deleted"})
	return nil
}
