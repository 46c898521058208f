// Package service holds the reservation engine: the save orchestrator and
// its payment, delivery and calendar reconciliation steps, draft autosave,
// and the quick statut actions of the list views. Storage and external
// collaborators are reached through the small interfaces below.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

type ReservationStore interface {
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	Insert(ctx context.Context, r *model.Reservation) error
	Update(ctx context.Context, r *model.Reservation) error
	Patch(ctx context.Context, id uint64, p repository.ReservationPatch) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
	ListDrafts(ctx context.Context, limit int) ([]model.Reservation, error)
	DeleteDraft(ctx context.Context, id uint64) error
	PurgeDrafts(ctx context.Context, before time.Time) (int64, error)
	ListMissingRef(ctx context.Context) ([]model.Reservation, error)
	SetRef(ctx context.Context, id uint64, ref string) error
}

type ClientStore interface {
	Get(ctx context.Context, id uint64) (*model.Client, error)
}

type PackStore interface {
	Get(ctx context.Context, id uint64) (*model.Pack, error)
}

type PaymentStore interface {
	Get(ctx context.Context, id uint64) (*model.Payment, error)
	Delete(ctx context.Context, id uint64) error
	Insert(ctx context.Context, p *model.Payment) error
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
}

type DeliveryStore interface {
	Get(ctx context.Context, id uint64) (*model.Delivery, error)
	Insert(ctx context.Context, d *model.Delivery) error
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Delivery, error)
	Delete(ctx context.Context, id uint64) error
	UpdateStatus(ctx context.Context, id uint64, statut string, date *model.Date, heure string) error
}

// RefAllocator hands out reservation references.
type RefAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// CalendarPusher mirrors a saved reservation to the connected external
// calendars. It reports pushed=false when no calendar is connected.
type CalendarPusher interface {
	Push(ctx context.Context, r *model.Reservation, pack *model.Pack) (pushed bool, err error)
}

// Publisher receives the change notifications.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) {}
