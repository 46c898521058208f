// Package events is the in-process notification bus. Services publish a
// named event after each write; list views, the RabbitMQ bridge and the
// browser event stream subscribe to refresh themselves.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Name identifies an event kind.
type Name string

const (
	ReservationUpdated Name = "reservation-updated"
	PaymentUpdated     Name = "reservation-payment-updated"
	DeliveriesUpdated  Name = "livraisons-updated"
)

// Event is the payload shared by all event kinds. Counters are only set by
// the publisher that knows them.
type Event struct {
	ID                string    `json:"id"`
	Name              Name      `json:"name"`
	ReservationID     uint64    `json:"reservation_id,omitempty"`
	Ref               string    `json:"ref,omitempty"`
	Action            string    `json:"action,omitempty"`
	PaymentsCreated   int       `json:"payments_created,omitempty"`
	DeliveriesCreated int       `json:"deliveries_created,omitempty"`
	DeliveriesRemoved int       `json:"deliveries_removed,omitempty"`
	At                time.Time `json:"at"`
}

// Handler receives events. It runs on the publisher's goroutine and must
// not block for long.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	id    uint64
	names map[Name]bool
	fn    Handler
}

// Bus fans events out to subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	log    *zap.Logger
	now    func() time.Time
}

// NewBus returns an empty bus. A nil logger discards output.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, now: time.Now}
}

// Subscribe registers fn for the given names, or for every event when no
// name is given. The returned function removes the subscription.
func (b *Bus) Subscribe(fn Handler, names ...Name) (unsubscribe func()) {
	s := subscription{fn: fn}
	if len(names) > 0 {
		s.names = make(map[Name]bool, len(names))
		for _, n := range names {
			s.names[n] = true
		}
	}
	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i := range b.subs {
				if b.subs[i].id == s.id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish stamps ev with an id and time when missing and delivers it. A
// panicking subscriber is logged and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = b.now().UTC()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.names != nil && !s.names[ev.Name] {
			continue
		}
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked",
				zap.String("event", string(ev.Name)), zap.Uint64("subscription", s.id), zap.Any("panic", r))
		}
	}()
	s.fn(ctx, ev)
}

// Channel subscribes a buffered channel. Events are dropped for that
// subscriber when its buffer is full.
func (b *Bus) Channel(size int, names ...Name) (<-chan Event, func()) {
	ch := make(chan Event, size)
	var mu sync.Mutex
	closed := false
	unsub := b.Subscribe(func(_ context.Context, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			b.log.Debug("event dropped for slow subscriber", zap.String("event", string(ev.Name)))
		}
	}, names...)
	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}
