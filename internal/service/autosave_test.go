package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingUpserter struct {
	mu     sync.Mutex
	calls  []ReservationForm
	ids    []uint64
	nextID uint64
	done   chan struct{}
}

func newCountingUpserter() *countingUpserter {
	return &countingUpserter{nextID: 100, done: make(chan struct{}, 16)}
}

func (c *countingUpserter) UpsertDraft(_ context.Context, id uint64, f ReservationForm) (uint64, bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, f)
	c.ids = append(c.ids, id)
	if id == 0 {
		c.nextID++
		id = c.nextID
	}
	c.mu.Unlock()
	c.done <- struct{}{}
	return id, false, nil
}

func (c *countingUpserter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestAutosaverFlushCoalescesBurst(t *testing.T) {
	up := newCountingUpserter()
	a := NewAutosaver(up, time.Hour, nil)
	for i := 1; i <= 5; i++ {
		a.Schedule("s1", ReservationForm{Notes: string(rune('a' + i))})
	}
	id, err := a.Flush("s1")
	if err != nil {
		t.Fatal(err)
	}
	if up.count() != 1 {
		t.Fatalf("upserts = %d, want 1", up.count())
	}
	if up.calls[0].Notes != "f" {
		t.Errorf("saved notes = %q, want the last edit", up.calls[0].Notes)
	}
	if id != 101 || a.DraftID("s1") != 101 {
		t.Errorf("draft id = %d, want 101", id)
	}
}

func TestAutosaverDebounceFires(t *testing.T) {
	up := newCountingUpserter()
	a := NewAutosaver(up, 10*time.Millisecond, nil)
	a.Schedule("s1", ReservationForm{Notes: "x"})
	a.Schedule("s1", ReservationForm{Notes: "y"})

	select {
	case <-up.done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced upsert never ran")
	}
	if up.count() != 1 {
		t.Errorf("upserts = %d, want 1", up.count())
	}
}

func TestAutosaverReusesDraftID(t *testing.T) {
	up := newCountingUpserter()
	a := NewAutosaver(up, time.Hour, nil)
	a.Schedule("s1", ReservationForm{Notes: "1"})
	if _, err := a.Flush("s1"); err != nil {
		t.Fatal(err)
	}
	a.Schedule("s1", ReservationForm{Notes: "2"})
	if _, err := a.Flush("s1"); err != nil {
		t.Fatal(err)
	}
	if up.ids[0] != 0 || up.ids[1] != 101 {
		t.Errorf("upsert ids = %v, want [0 101]", up.ids)
	}
}

func TestAutosaverResumeAndForget(t *testing.T) {
	up := newCountingUpserter()
	a := NewAutosaver(up, time.Hour, nil)
	a.Resume("s1", 7)
	a.Schedule("s1", ReservationForm{Notes: "suite"})
	if id, _ := a.Flush("s1"); id != 7 {
		t.Errorf("Flush() id = %d, want 7", id)
	}
	a.Forget("s1")
	if a.DraftID("s1") != 0 {
		t.Error("DraftID() after Forget is not zero")
	}
	if id, err := a.Flush("unknown"); id != 0 || err != nil {
		t.Errorf("Flush(unknown) = %d, %v", id, err)
	}
}

func TestAutosaverSessionsAreIndependent(t *testing.T) {
	up := newCountingUpserter()
	a := NewAutosaver(up, time.Hour, nil)
	a.Schedule("s1", ReservationForm{Notes: "a"})
	a.Schedule("s2", ReservationForm{Notes: "b"})
	id1, _ := a.Flush("s1")
	id2, _ := a.Flush("s2")
	if id1 == id2 {
		t.Errorf("sessions share draft id %d", id1)
	}
	if n := a.Prune(time.Now().Add(time.Minute)); n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
}

func TestSaveSessionBeforeDebounceLeavesNoDraft(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	a := NewAutosaver(fx.svc, 20*time.Millisecond, nil)
	const key = "1:default"

	a.Schedule(key, validForm())
	res, err := fx.svc.SaveSession(ctx, a, key, validForm())
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	if d, err := fx.svc.LatestDraft(ctx); err != nil || d != nil {
		t.Fatalf("LatestDraft() = %+v, %v; want no draft left", d, err)
	}
	if n := len(fx.reservations.rows); n != 1 {
		t.Errorf("stored %d rows, want the single final reservation", n)
	}
	if res.Reservation.IsDraft || res.Reservation.Ref == "" {
		t.Errorf("reservation = draft %v ref %q, want final with ref", res.Reservation.IsDraft, res.Reservation.Ref)
	}
	if a.DraftID(key) != 0 {
		t.Errorf("session still bound to draft %d", a.DraftID(key))
	}
}

func TestSaveSessionConvertsSessionDraftInPlace(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	a := NewAutosaver(fx.svc, time.Hour, nil)
	const key = "1:tab"

	a.Schedule(key, validForm())
	draftID, err := a.Flush(key)
	if err != nil || draftID == 0 {
		t.Fatalf("Flush() = %d, %v", draftID, err)
	}
	res, err := fx.svc.SaveSession(ctx, a, key, validForm())
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if res.Reservation.ID != draftID {
		t.Errorf("saved reservation %d, want draft %d converted", res.Reservation.ID, draftID)
	}
	if fx.reservations.inserts != 1 {
		t.Errorf("inserts = %d, want 1", fx.reservations.inserts)
	}
}

func TestSaveSessionDiscardsOtherSessionDraft(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	a := NewAutosaver(fx.svc, time.Hour, nil)
	const key = "1:default"

	resumed, _, err := fx.svc.UpsertDraft(ctx, 0, validForm())
	if err != nil {
		t.Fatal(err)
	}
	a.Schedule(key, validForm())
	stray, err := a.Flush(key)
	if err != nil || stray == resumed {
		t.Fatalf("Flush() = %d, %v", stray, err)
	}

	form := validForm()
	form.DraftID = resumed
	res, err := fx.svc.SaveSession(ctx, a, key, form)
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if res.Reservation.ID != resumed {
		t.Errorf("saved %d, want resumed draft %d", res.Reservation.ID, resumed)
	}
	if _, err := fx.svc.Get(ctx, stray); err == nil {
		t.Errorf("draft %d of the session was left behind", stray)
	}
}

func TestSaveSessionKeepsDraftOnValidationError(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	a := NewAutosaver(fx.svc, time.Hour, nil)
	const key = "1:default"

	form := validForm()
	form.HeureEvent = "19h"
	a.Schedule(key, form)
	if _, err := fx.svc.SaveSession(ctx, a, key, form); !IsValidation(err) {
		t.Fatalf("SaveSession() error = %v, want validation error", err)
	}
	d, err := fx.svc.LatestDraft(ctx)
	if err != nil || d == nil {
		t.Fatalf("LatestDraft() = %v, %v; want the draft kept", d, err)
	}
	if a.DraftID(key) != d.ID {
		t.Errorf("session draft = %d, want %d", a.DraftID(key), d.ID)
	}
}
