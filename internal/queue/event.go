// Package queue carries reservation events over RabbitMQ. The publisher
// forwards bus events to a durable queue; the consumer turns them into an
// activity log and evicts cached list responses.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
)

// DefaultQueue is the durable queue reservation events are routed to.
const DefaultQueue = "reservation.events"

// ActivityLine renders ev as one line of the activity log.
func ActivityLine(ev events.Event) string {
	var b strings.Builder
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	fmt.Fprintf(&b, "[%s] %s", at.Format(time.RFC3339), ev.Name)
	if ev.ReservationID != 0 {
		fmt.Fprintf(&b, " | reservation_id=%d", ev.ReservationID)
	}
	if ev.Ref != "" {
		fmt.Fprintf(&b, " | ref=%s", ev.Ref)
	}
	if ev.Action != "" {
		fmt.Fprintf(&b, " | action=%s", ev.Action)
	}
	if ev.PaymentsCreated > 0 {
		fmt.Fprintf(&b, " | payments_created=%d", ev.PaymentsCreated)
	}
	if ev.DeliveriesCreated > 0 || ev.DeliveriesRemoved > 0 {
		fmt.Fprintf(&b, " | deliveries=+%d/-%d", ev.DeliveriesCreated, ev.DeliveriesRemoved)
	}
	if ev.ID != "" {
		fmt.Fprintf(&b, " | event_id=%s", ev.ID)
	}
	b.WriteByte('\n')
	return b.String()
}
