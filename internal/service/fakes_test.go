package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
)

var errStore = errors.New("store unavailable")

type fakeReservations struct {
	mu        sync.Mutex
	rows      map[uint64]model.Reservation
	nextID    uint64
	inserts   int
	updates   int
	listCalls int
	failWrite error
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{rows: make(map[uint64]model.Reservation)}
}

func (f *fakeReservations) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeReservations) refTaken(ref string, id uint64) bool {
	if ref == "" {
		return false
	}
	for _, r := range f.rows {
		if r.Ref == ref && r.ID != id {
			return true
		}
	}
	return false
}

func (f *fakeReservations) Insert(_ context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	if f.refTaken(r.Ref, 0) {
		return repository.ErrDuplicate
	}
	f.nextID++
	f.inserts++
	r.ID = f.nextID
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.rows[r.ID] = *r
	return nil
}

func (f *fakeReservations) Update(_ context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	if _, ok := f.rows[r.ID]; !ok {
		return repository.ErrNotFound
	}
	if f.refTaken(r.Ref, r.ID) {
		return repository.ErrDuplicate
	}
	f.updates++
	f.rows[r.ID] = *r
	return nil
}

func (f *fakeReservations) Patch(_ context.Context, id uint64, p repository.ReservationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.AcompteRegle != nil {
		r.AcompteRegle = *p.AcompteRegle
	}
	if p.SoldeRegle != nil {
		r.SoldeRegle = *p.SoldeRegle
	}
	if p.Statut != nil {
		r.Statut = *p.Statut
	}
	if p.CautionStatut != nil {
		r.CautionStatut = *p.CautionStatut
	}
	f.rows[id] = r
	return nil
}

func (f *fakeReservations) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeReservations) List(_ context.Context, flt model.ReservationFilter) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.rows {
		if r.IsDraft && !flt.IncludeDrafts {
			continue
		}
		if flt.Statut != "" && r.Statut != flt.Statut {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	f.listCalls++
	limit := flt.Limit
	if limit <= 0 || limit > model.MaxPage {
		limit = model.MaxPage
	}
	if flt.Offset >= len(out) {
		return nil, nil
	}
	out = out[flt.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReservations) ListDrafts(_ context.Context, limit int) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.rows {
		if r.IsDraft {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DraftUpdatedAt.After(*out[j].DraftUpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReservations) DeleteDraft(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !r.IsDraft {
		return repository.ErrConflict
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeReservations) PurgeDrafts(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.rows {
		if r.IsDraft && r.DraftUpdatedAt != nil && r.DraftUpdatedAt.Before(before) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeReservations) ListMissingRef(_ context.Context) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.rows {
		if !r.IsDraft && (r.Ref == "" || r.Ref == "N/A") {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeReservations) SetRef(_ context.Context, id uint64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Ref = ref
	f.rows[id] = r
	return nil
}

type fakeClients map[uint64]model.Client

func (f fakeClients) Get(_ context.Context, id uint64) (*model.Client, error) {
	c, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

type fakePacks map[uint64]model.Pack

func (f fakePacks) Get(_ context.Context, id uint64) (*model.Pack, error) {
	p, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type fakePayments struct {
	mu      sync.Mutex
	rows    map[uint64]model.Payment
	nextID  uint64
	inserts int
	// hideExisting makes ListByReservation return nothing, as a concurrent
	// save that has not committed yet would see it.
	hideExisting bool
	failList     error
}

func newFakePayments() *fakePayments { return &fakePayments{rows: make(map[uint64]model.Payment)} }

func (f *fakePayments) Get(_ context.Context, id uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakePayments) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakePayments) Insert(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.AutoType != nil {
		for _, e := range f.rows {
			if e.ReservationID == p.ReservationID && e.AutoType != nil && *e.AutoType == *p.AutoType {
				return repository.ErrDuplicate
			}
		}
	}
	f.nextID++
	f.inserts++
	p.ID = f.nextID
	f.rows[p.ID] = *p
	return nil
}

func (f *fakePayments) ListByReservation(_ context.Context, id uint64) ([]model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	if f.hideExisting {
		return nil, nil
	}
	var out []model.Payment
	for _, p := range f.rows {
		if p.ReservationID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePayments) ofType(reservationID uint64, typ string) []model.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payment
	for _, p := range f.rows {
		if p.ReservationID == reservationID && p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

type fakeDeliveries struct {
	mu       sync.Mutex
	rows     map[uint64]model.Delivery
	nextID   uint64
	failList error
}

func newFakeDeliveries() *fakeDeliveries { return &fakeDeliveries{rows: make(map[uint64]model.Delivery)} }

func (f *fakeDeliveries) Get(_ context.Context, id uint64) (*model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (f *fakeDeliveries) Insert(_ context.Context, d *model.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.ReservationID == d.ReservationID && e.Type == d.Type {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	d.ID = f.nextID
	f.rows[d.ID] = *d
	return nil
}

func (f *fakeDeliveries) ListByReservation(_ context.Context, id uint64) ([]model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []model.Delivery
	for _, d := range f.rows {
		if d.ReservationID == id {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDeliveries) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeDeliveries) UpdateStatus(_ context.Context, id uint64, statut string, date *model.Date, heure string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Statut, d.DateEffective, d.HeureEffective = statut, date, heure
	f.rows[id] = d
	return nil
}

func (f *fakeDeliveries) ofType(reservationID uint64, typ string) []model.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Delivery
	for _, d := range f.rows {
		if d.ReservationID == reservationID && d.Type == typ {
			out = append(out, d)
		}
	}
	return out
}

type fakeRefs struct {
	mu  sync.Mutex
	seq int
}

func (f *fakeRefs) Allocate(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("RES-2025-%03d", f.seq), nil
}

type fakeCalendar struct {
	calls int
	fn    func() (bool, error)
}

func (f *fakeCalendar) Push(context.Context, *model.Reservation, *model.Pack) (bool, error) {
	f.calls++
	if f.fn == nil {
		return true, nil
	}
	return f.fn()
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) names() []events.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Name, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Name
	}
	return out
}

type fixture struct {
	svc          *ReservationService
	reservations *fakeReservations
	payments     *fakePayments
	deliveries   *fakeDeliveries
	calendar     *fakeCalendar
	events       *recordedEvents
}

// fixedNow is 2025-06-01 10:30 in Paris.
var fixedNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

func newFixture() *fixture {
	fx := &fixture{
		reservations: newFakeReservations(),
		payments:     newFakePayments(),
		deliveries:   newFakeDeliveries(),
		calendar:     &fakeCalendar{},
		events:       &recordedEvents{},
	}
	fx.svc = NewReservationService(Deps{
		Reservations: fx.reservations,
		Clients:      fakeClients{1: {ID: 1, Prenom: "Camille", Nom: "Durand", Email: "camille@example.com", Telephone: "0601020304"}},
		Packs:        fakePacks{7: {ID: 7, NomPack: "Pack Soirée", PrixBaseTTC: decimal.NewFromInt(100), Actif: true}},
		Payments:     fx.payments,
		Deliveries:   fx.deliveries,
		Refs:         &fakeRefs{},
		Calendar:     fx.calendar,
		Events:       fx.events,
		Now:          func() time.Time { return fixedNow },
	})
	return fx
}

func mustDate(s string) *model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// validForm is the Paris example: 100 base, both legs, 50 deposit.
func validForm() ReservationForm {
	return ReservationForm{
		ClientID:        1,
		PackID:          7,
		DateEvent:       mustDate("2025-06-10"),
		HeureEvent:      "19:00",
		HeureFinEvent:   "23:30",
		VilleZone:       model.ZoneParis,
		AdresseEvent:    "12 rue de la Paix",
		PrixTotalTTC:    dec(100),
		LivraisonAller:  true,
		LivraisonRetour: true,
		CautionEUR:      dec(200),
		AcompteDu:       dec(50),
	}
}
