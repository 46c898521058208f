package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// DefaultMoyen is the payment method recorded on generated payments.
const DefaultMoyen = "CB"

type paymentNeed struct {
	typ    string
	amount decimal.Decimal
	note   string
}

// paymentNeeds lists the payments the reservation's paid flags call for.
func paymentNeeds(r *model.Reservation) []paymentNeed {
	var needs []paymentNeed
	if r.AcompteRegle && r.AcompteDu.IsPositive() {
		needs = append(needs, paymentNeed{model.PaymentAcompte, r.AcompteDu, autoNote(model.PaymentAcompte, r.Ref)})
	}
	if r.SoldeRegle && r.SoldeDu.IsPositive() {
		needs = append(needs, paymentNeed{model.PaymentSolde, r.SoldeDu, autoNote(model.PaymentSolde, r.Ref)})
	}
	return needs
}

func autoNote(typ, ref string) string {
	return fmt.Sprintf("%s créé automatiquement lors de la sauvegarde de la réservation %s", typ, ref)
}

// reconcilePayments inserts the Acompte and Solde payments that are marked
// paid but missing. The two types are handled concurrently; a duplicate key
// from the store means another save got there first and is not an error.
func (s *ReservationService) reconcilePayments(ctx context.Context, r *model.Reservation) ([]model.Payment, error) {
	needs := paymentNeeds(r)
	if len(needs) == 0 {
		return nil, nil
	}
	existing, err := s.payments.ListByReservation(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Type] = true
	}

	var (
		mu      sync.Mutex
		created []model.Payment
		errs    []error
		g       errgroup.Group
	)
	for _, n := range needs {
		if have[n.typ] {
			continue
		}
		n := n
		g.Go(func() error {
			p, err := s.insertPayment(ctx, r.ID, n.typ, n.amount, n.note, true)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, repository.ErrDuplicate):
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", n.typ, err))
			default:
				created = append(created, *p)
			}
			return nil
		})
	}
	_ = g.Wait()
	sortPayments(created)
	return created, errors.Join(errs...)
}

func (s *ReservationService) insertPayment(ctx context.Context, reservationID uint64, typ string, amount decimal.Decimal, note string, auto bool) (*model.Payment, error) {
	p := &model.Payment{
		ReservationID: reservationID,
		Type:          typ,
		MontantEUR:    amount,
		Moyen:         DefaultMoyen,
		DatePaiement:  s.today(),
		Notes:         note,
	}
	if auto {
		t := typ
		p.AutoType = &t
	}
	if err := s.payments.Insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Acompte sorts before Solde.
func sortPayments(ps []model.Payment) {
	if len(ps) == 2 && ps[0].Type == model.PaymentSolde {
		ps[0], ps[1] = ps[1], ps[0]
	}
}
