package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/pricing"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

// Deps wires a ReservationService. Calendar and Events are optional.
type Deps struct {
	Reservations ReservationStore
	Clients      ClientStore
	Packs        PackStore
	Payments     PaymentStore
	Deliveries   DeliveryStore
	Refs         RefAllocator
	Calendar     CalendarPusher
	Events       Publisher
	Log          *zap.Logger
	Now          func() time.Time
}

// ReservationService validates, prices and persists reservations and keeps
// their payments, deliveries and calendar events in line.
type ReservationService struct {
	reservations ReservationStore
	clients      ClientStore
	packs        PackStore
	payments     PaymentStore
	deliveries   DeliveryStore
	refs         RefAllocator
	calendar     CalendarPusher
	events       Publisher
	log          *zap.Logger
	now          func() time.Time
}

// NewReservationService panics when a required store is missing.
func NewReservationService(d Deps) *ReservationService {
	if d.Reservations == nil || d.Clients == nil || d.Packs == nil || d.Payments == nil || d.Deliveries == nil || d.Refs == nil {
		panic("service: nil store passed to NewReservationService")
	}
	s := &ReservationService{
		reservations: d.Reservations,
		clients:      d.Clients,
		packs:        d.Packs,
		payments:     d.Payments,
		deliveries:   d.Deliveries,
		refs:         d.Refs,
		calendar:     d.Calendar,
		events:       d.Events,
		log:          d.Log,
		now:          d.Now,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Calendar push outcomes.
const (
	CalendarPushed  = "pushed"
	CalendarSkipped = "skipped"
	CalendarFailed  = "failed"
)

// DeliveryChanges lists what delivery reconciliation did.
type DeliveryChanges struct {
	Created   []model.Delivery `json:"created"`
	Removed   []uint64         `json:"removed"`
	Protected []model.Delivery `json:"protected"`
}

// Changed reports whether any delivery row was written.
func (c DeliveryChanges) Changed() bool {
	return len(c.Created) > 0 || len(c.Removed) > 0
}

// SaveResult is the outcome of a successful primary write.
type SaveResult struct {
	Reservation     *model.Reservation      `json:"reservation"`
	Created         bool                    `json:"created"`
	PaymentsCreated []model.Payment         `json:"payments_created"`
	Deliveries      DeliveryChanges         `json:"deliveries"`
	Calendar        string                  `json:"calendar"`
	Warnings        []ReconciliationWarning `json:"warnings"`
}

// Save validates and persists a final reservation, then reconciles its
// payments, deliveries and calendar event. A *ValidationError or
// *PersistenceError means nothing after the failing step ran; any later
// failure is reported in SaveResult.Warnings and the save stands.
func (s *ReservationService) Save(ctx context.Context, form ReservationForm) (*SaveResult, error) {
	form.normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	client, err := s.clients.Get(ctx, form.ClientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("client_id", "client introuvable")
		}
		return nil, persistence("load client", err)
	}
	pack, err := s.packs.Get(ctx, form.PackID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("pack_id", "pack introuvable")
		}
		return nil, persistence("load pack", err)
	}

	res, existing, err := s.target(ctx, form)
	if err != nil {
		return nil, err
	}
	form.applyTo(res)
	res.FullName = client.FullName()
	res.Email = client.Email
	res.Telephone = client.Telephone
	res.IsDraft = false
	res.DraftUpdatedAt = nil
	pricing.Apply(res)

	if err := s.persist(ctx, res, existing); err != nil {
		return nil, err
	}

	result := &SaveResult{Reservation: res, Created: !existing || form.DraftID != 0, Calendar: CalendarSkipped}
	log := s.log.With(zap.Uint64("reservation_id", res.ID), zap.String("ref", res.Ref))

	// Each step is isolated: a failure or panic is turned into a warning and
	// the following steps still run.
	s.step(ctx, log, result, StepPayments, func() error {
		created, err := s.reconcilePayments(ctx, res)
		result.PaymentsCreated = created
		return err
	})
	s.step(ctx, log, result, StepDeliveries, func() error {
		changes, err := s.reconcileDeliveries(ctx, res, pack)
		result.Deliveries = changes
		return err
	})
	if s.calendar != nil {
		result.Calendar = CalendarFailed
		s.step(ctx, log, result, StepCalendar, func() error {
			pushed, err := s.calendar.Push(ctx, res, pack)
			if err != nil {
				return err
			}
			result.Calendar = CalendarSkipped
			if pushed {
				result.Calendar = CalendarPushed
			}
			return nil
		})
	}

	s.notifySave(ctx, result)
	log.Info("reservation saved",
		zap.Bool("created", result.Created),
		zap.Int("payments_created", len(result.PaymentsCreated)),
		zap.Int("deliveries_created", len(result.Deliveries.Created)),
		zap.Int("deliveries_removed", len(result.Deliveries.Removed)),
		zap.String("calendar", result.Calendar),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// target loads the row the form writes to, or returns a fresh reservation.
// existing reports whether the row is already stored.
func (s *ReservationService) target(ctx context.Context, form ReservationForm) (*model.Reservation, bool, error) {
	switch {
	case form.ID != 0:
		r, err := s.reservations.Get(ctx, form.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, false, invalid("id", "réservation introuvable")
			}
			return nil, false, persistence("load reservation", err)
		}
		return r, true, nil
	case form.DraftID != 0:
		r, err := s.reservations.Get(ctx, form.DraftID)
		if errors.Is(err, repository.ErrNotFound) {
			// The draft expired or was discarded meanwhile; save as new.
			return &model.Reservation{}, false, nil
		}
		if err != nil {
			return nil, false, persistence("load draft", err)
		}
		if !r.IsDraft {
			return nil, false, invalid("draft_id", "ce brouillon a déjà été finalisé")
		}
		return r, true, nil
	}
	return &model.Reservation{}, false, nil
}

// persist writes res, allocating a reference first when it has none. A
// reference collision on insert is retried once with a fresh reference.
func (s *ReservationService) persist(ctx context.Context, res *model.Reservation, existing bool) error {
	for attempt := 0; ; attempt++ {
		if !hasRef(res.Ref) {
			ref, err := s.refs.Allocate(ctx)
			if err != nil {
				return persistence("allocate reference", err)
			}
			res.Ref = ref
		}
		var err error
		if existing {
			err = s.reservations.Update(ctx, res)
		} else {
			err = s.reservations.Insert(ctx, res)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrDuplicate) && attempt == 0 {
			s.log.Warn("reference collision, reallocating", zap.String("ref", res.Ref))
			res.Ref = ""
			continue
		}
		return persistence("save reservation", err)
	}
}

func hasRef(ref string) bool {
	return ref != "" && ref != "N/A"
}

func (s *ReservationService) step(ctx context.Context, log *zap.Logger, result *SaveResult, name string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("interrompu: %w", err)
	}
	log.Warn("reconciliation step failed", zap.String("step", name), zap.Error(err))
	result.Warnings = append(result.Warnings, ReconciliationWarning{Step: name, Message: err.Error(), Err: err})
}

func (s *ReservationService) notifySave(ctx context.Context, result *SaveResult) {
	res := result.Reservation
	action := "updated"
	if result.Created {
		action = "created"
	}
	s.events.Publish(ctx, events.Event{
		Name:              events.ReservationUpdated,
		ReservationID:     res.ID,
		Ref:               res.Ref,
		Action:            action,
		PaymentsCreated:   len(result.PaymentsCreated),
		DeliveriesCreated: len(result.Deliveries.Created),
		DeliveriesRemoved: len(result.Deliveries.Removed),
	})
	if len(result.PaymentsCreated) > 0 {
		s.events.Publish(ctx, events.Event{
			Name:            events.PaymentUpdated,
			ReservationID:   res.ID,
			Ref:             res.Ref,
			Action:          "auto",
			PaymentsCreated: len(result.PaymentsCreated),
		})
	}
	if result.Deliveries.Changed() {
		s.events.Publish(ctx, events.Event{
			Name:              events.DeliveriesUpdated,
			ReservationID:     res.ID,
			Ref:               res.Ref,
			Action:            "reconcile",
			DeliveriesCreated: len(result.Deliveries.Created),
			DeliveriesRemoved: len(result.Deliveries.Removed),
		})
	}
}

// Get returns one reservation.
func (s *ReservationService) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.Get(ctx, id)
}

// List returns reservations matching f.
func (s *ReservationService) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	return s.reservations.List(ctx, f)
}

// FixMissingRefs assigns references to final reservations saved without
// one and returns how many were fixed.
func (s *ReservationService) FixMissingRefs(ctx context.Context) (int, error) {
	rows, err := s.reservations.ListMissingRef(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, r := range rows {
		ref, err := s.refs.Allocate(ctx)
		if err != nil {
			return fixed, err
		}
		if err := s.reservations.SetRef(ctx, r.ID, ref); err != nil {
			s.log.Warn("assign reference failed", zap.Uint64("reservation_id", r.ID), zap.Error(err))
			continue
		}
		fixed++
	}
	if fixed > 0 {
		s.events.Publish(ctx, events.Event{Name: events.ReservationUpdated, Action: "refs-fixed"})
	}
	return fixed, nil
}

// today is the current business day in Paris.
func (s *ReservationService) today() model.Date {
	return model.NewDate(s.now().In(pricing.Paris))
}
