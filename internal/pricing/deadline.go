package pricing

import (
	"time"
	_ "time/tzdata"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// DeadlineWindow is how long before the event the balance is due.
const DeadlineWindow = 72 * time.Hour

// Paris is the business time zone. Event dates, deadlines and calendar
// entries are all expressed in it.
var Paris = mustLoad("Europe/Paris")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Deadline returns the payment deadline for an event starting at eventAt.
func Deadline(eventAt time.Time) time.Time {
	return eventAt.Add(-DeadlineWindow)
}

// DeadlineFor returns the deadline of an event date taken at midnight in
// Paris, or nil when the date is unknown.
func DeadlineFor(d *model.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	dl := Deadline(d.In(Paris, "00:00", "00:00"))
	return &dl
}

// DeadlineNear reports whether deadline falls within the next 72 hours of
// now, or has already passed.
func DeadlineNear(deadline, now time.Time) bool {
	return deadline.Sub(now) <= DeadlineWindow
}
