package events

import (
	"context"
	"testing"
)

func TestPublishFiltersByName(t *testing.T) {
	b := NewBus(nil)
	var all, payments []Name
	b.Subscribe(func(_ context.Context, ev Event) { all = append(all, ev.Name) })
	b.Subscribe(func(_ context.Context, ev Event) { payments = append(payments, ev.Name) }, PaymentUpdated)

	ctx := context.Background()
	b.Publish(ctx, Event{Name: ReservationUpdated})
	b.Publish(ctx, Event{Name: PaymentUpdated})
	b.Publish(ctx, Event{Name: DeliveriesUpdated})

	if len(all) != 3 {
		t.Errorf("catch-all received %d events, want 3", len(all))
	}
	if len(payments) != 1 || payments[0] != PaymentUpdated {
		t.Errorf("payment subscriber received %v", payments)
	}
}

func TestPublishStampsEvent(t *testing.T) {
	b := NewBus(nil)
	var got Event
	b.Subscribe(func(_ context.Context, ev Event) { got = ev })
	b.Publish(context.Background(), Event{Name: ReservationUpdated, ReservationID: 3})
	if got.ID == "" || got.At.IsZero() {
		t.Errorf("event not stamped: %+v", got)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := NewBus(nil)
	called := false
	b.Subscribe(func(context.Context, Event) { panic("boom") })
	b.Subscribe(func(context.Context, Event) { called = true })
	b.Publish(context.Background(), Event{Name: ReservationUpdated})
	if !called {
		t.Error("second subscriber not called after first panicked")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus(nil)
	n := 0
	unsub := b.Subscribe(func(context.Context, Event) { n++ })
	b.Publish(context.Background(), Event{Name: ReservationUpdated})
	unsub()
	unsub()
	b.Publish(context.Background(), Event{Name: ReservationUpdated})
	if n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestChannelDropsWhenFull(t *testing.T) {
	b := NewBus(nil)
	ch, cancel := b.Channel(1, DeliveriesUpdated)
	b.Publish(context.Background(), Event{Name: DeliveriesUpdated, ReservationID: 1})
	b.Publish(context.Background(), Event{Name: DeliveriesUpdated, ReservationID: 2})
	cancel()

	var got []uint64
	for ev := range ch {
		got = append(got, ev.ReservationID)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("received %v, want [1]", got)
	}
}
