package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/pricing"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// Fixed values copied onto generated deliveries.
const (
	DeliveryCodePostal    = "00000"
	DeliveryContact       = "Client"
	DefaultLivraisonHeure = "14:00"
)

// desiredDeliveries derives the deliveries a reservation's flags call for,
// keyed by type. A reservation without an event date yields none.
func desiredDeliveries(r *model.Reservation, pack *model.Pack) map[string]model.Delivery {
	out := make(map[string]model.Delivery, 2)
	if r.DateEvent == nil || r.DateEvent.IsZero() {
		return out
	}
	contact := r.FullName
	if contact == "" {
		contact = DeliveryContact
	}
	packName := ""
	if pack != nil {
		packName = pack.NomPack
	}
	base := model.Delivery{
		ReservationID:    r.ID,
		Statut:           model.DeliveryPrevue,
		Adresse:          r.AdresseEvent,
		Ville:            string(r.VilleZone),
		CodePostal:       DeliveryCodePostal,
		ContactNom:       contact,
		ContactTelephone: r.Telephone,
	}
	notes := fmt.Sprintf("Pack: %s | Réf: %s", packName, r.Ref)

	if r.LivraisonAller {
		d := base
		d.Type = model.DeliveryLivraison
		d.DatePrevue = *r.DateEvent
		d.HeurePrevue = model.Clock(r.HeureEvent, DefaultLivraisonHeure)
		d.Notes = notes + " | Livraison aller vers " + string(r.VilleZone)
		out[d.Type] = d
	}
	if r.LivraisonRetour {
		d := base
		d.Type = model.DeliveryRecuperation
		if r.DateFinEvent != nil && !r.DateFinEvent.IsZero() {
			d.DatePrevue = *r.DateFinEvent
		} else {
			d.DatePrevue = r.DateEvent.AddDays(1)
		}
		d.HeurePrevue = DefaultRetourHeure
		d.Notes = notes + " | Récupération retour depuis " + string(r.VilleZone)
		out[d.Type] = d
	}
	return out
}

// reconcileDeliveries inserts missing deliveries and removes the ones whose
// flag was cleared. Deliveries already in progress or done are kept and
// reported as protected. Existing rows of a desired type are left as is so
// operator edits survive later saves.
func (s *ReservationService) reconcileDeliveries(ctx context.Context, r *model.Reservation, pack *model.Pack) (DeliveryChanges, error) {
	var changes DeliveryChanges
	desired := desiredDeliveries(r, pack)
	existing, err := s.deliveries.ListByReservation(ctx, r.ID)
	if err != nil {
		return changes, fmt.Errorf("list deliveries: %w", err)
	}

	var (
		toInsert []model.Delivery
		toDelete []model.Delivery
		seen     = make(map[string]bool, len(existing))
	)
	for _, d := range existing {
		_, want := desired[d.Type]
		switch {
		case want && !seen[d.Type]:
			seen[d.Type] = true
		case d.Started():
			changes.Protected = append(changes.Protected, d)
		default:
			// Undesired type, or a duplicate left over from older data.
			toDelete = append(toDelete, d)
		}
	}
	for _, typ := range []string{model.DeliveryLivraison, model.DeliveryRecuperation} {
		if d, ok := desired[typ]; ok && !seen[typ] {
			toInsert = append(toInsert, d)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, d := range toInsert {
		d := d
		g.Go(func() error {
			err := s.deliveries.Insert(ctx, &d)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, repository.ErrDuplicate):
			case err != nil:
				errs = append(errs, fmt.Errorf("insert %s: %w", d.Type, err))
			default:
				changes.Created = append(changes.Created, d)
			}
			return nil
		})
	}
	for _, d := range toDelete {
		d := d
		g.Go(func() error {
			err := s.deliveries.Delete(ctx, d.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				errs = append(errs, fmt.Errorf("delete %s %d: %w", d.Type, d.ID, err))
			default:
				changes.Removed = append(changes.Removed, d.ID)
			}
			return nil
		})
	}
	_ = g.Wait()
	sortDeliveries(changes.Created)
	return changes, errors.Join(errs...)
}

// Livraison sorts before Récupération.
func sortDeliveries(ds []model.Delivery) {
	if len(ds) == 2 && ds[0].Type == model.DeliveryRecuperation {
		ds[0], ds[1] = ds[1], ds[0]
	}
}

// SyncSummary reports a bulk delivery reconciliation.
type SyncSummary struct {
	Reservations int      `json:"reservations"`
	Created      int      `json:"created"`
	Removed      int      `json:"removed"`
	Protected    int      `json:"protected"`
	Errors       []string `json:"errors,omitempty"`
}

// listAll pages through every reservation matching f.
func (s *ReservationService) listAll(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	var all []model.Reservation
	f.Limit = model.MaxPage
	for f.Offset = 0; ; f.Offset += model.MaxPage {
		page, err := s.reservations.List(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < model.MaxPage {
			return all, nil
		}
	}
}

// SyncAllDeliveries reconciles the deliveries of every final reservation
// that is not cancelled. Failures are collected per reservation.
func (s *ReservationService) SyncAllDeliveries(ctx context.Context) (SyncSummary, error) {
	var sum SyncSummary
	rows, err := s.listAll(ctx, model.ReservationFilter{})
	if err != nil {
		return sum, err
	}
	packs := make(map[uint64]*model.Pack)
	for i := range rows {
		r := &rows[i]
		if r.IsDraft || r.Statut == model.StatutAnnulee {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Reservations++
		pack := s.cachedPack(ctx, packs, r.PackID)
		changes, err := s.reconcileDeliveries(ctx, r, pack)
		sum.Created += len(changes.Created)
		sum.Removed += len(changes.Removed)
		sum.Protected += len(changes.Protected)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", r.Ref, err))
		}
	}
	if sum.Created > 0 || sum.Removed > 0 {
		s.events.Publish(ctx, events.Event{
			Name:              events.DeliveriesUpdated,
			Action:            "sync-all",
			DeliveriesCreated: sum.Created,
			DeliveriesRemoved: sum.Removed,
		})
	}
	s.log.Info("deliveries synchronised",
		zap.Int("reservations", sum.Reservations), zap.Int("created", sum.Created),
		zap.Int("removed", sum.Removed), zap.Int("errors", len(sum.Errors)))
	return sum, nil
}

func (s *ReservationService) cachedPack(ctx context.Context, cache map[uint64]*model.Pack, id *uint64) *model.Pack {
	if id == nil {
		return nil
	}
	if p, ok := cache[*id]; ok {
		return p
	}
	p, err := s.packs.Get(ctx, *id)
	if err != nil {
		p = nil
	}
	cache[*id] = p
	return p
}

// UpdateDeliveryStatus moves a delivery to statut. Starting or completing
// a delivery stamps the effective date and time; going back to Prévue
// clears them.
func (s *ReservationService) UpdateDeliveryStatus(ctx context.Context, id uint64, statut string) (*model.Delivery, error) {
	if !model.ValidDeliveryStatut(statut) {
		return nil, invalid("statut", "statut de livraison inconnu")
	}
	d, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var (
		date  *model.Date
		heure string
	)
	switch statut {
	case model.DeliveryEnCours, model.DeliveryEffectue:
		now := s.now().In(pricing.Paris)
		today := model.NewDate(now)
		date, heure = &today, now.Format("15:04")
	case model.DeliveryPrevue:
	default:
		date, heure = d.DateEffective, d.HeureEffective
	}
	if err := s.deliveries.UpdateStatus(ctx, id, statut, date, heure); err != nil {
		return nil, persistence("update delivery", err)
	}
	d.Statut, d.DateEffective, d.HeureEffective = statut, date, heure
	s.events.Publish(ctx, events.Event{Name: events.DeliveriesUpdated, ReservationID: d.ReservationID, Action: "statut"})
	return d, nil
}
