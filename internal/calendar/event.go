// Package calendar mirrors reservations into Google Calendar and Outlook
// calendars and exports them as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// DefaultCalendarName is the calendar created in each connected account.
const DefaultCalendarName = "SoundRent Réservations"

// DefaultDuration is used when a reservation has no usable end time.
const DefaultDuration = 4 * time.Hour

// Google event colour ids.
const (
	colorSoldee  = "10"
	colorAcompte = "5"
	colorDefault = "1"
)

// Calendar is a calendar of a provider account.
type Calendar struct {
	ID   string
	Name string
}

// Event is the provider-neutral shape of a calendar event.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	ColorID     string
}

// Marker is the description line tying an event to reservation id.
func Marker(id uint64) string {
	return fmt.Sprintf("SoundRent-ID: %d", id)
}

// HasMarker reports whether description carries the marker of id on a line
// of its own.
func HasMarker(description string, id uint64) bool {
	want := Marker(id)
	for _, line := range strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

// BuildEvent derives the calendar event of a reservation in loc. It returns
// false when the reservation has no event date.
func BuildEvent(r *model.Reservation, packName string, loc *time.Location) (Event, bool) {
	if r.DateEvent == nil || r.DateEvent.IsZero() {
		return Event{}, false
	}
	start := r.DateEvent.In(loc, r.HeureEvent, "14:00")
	end := start.Add(DefaultDuration)
	if _, _, ok := model.ParseClock(r.HeureFinEvent); ok {
		day := *r.DateEvent
		if r.DateFinEvent != nil && !r.DateFinEvent.IsZero() {
			day = *r.DateFinEvent
		}
		if e := day.In(loc, r.HeureFinEvent, ""); e.After(start) {
			end = e
		}
	}

	lines := []string{
		"Pack: " + orDash(packName),
		"Statut: " + r.Statut,
		"Zone: " + string(r.VilleZone),
	}
	if r.AdresseEvent != "" {
		lines = append(lines, "Adresse: "+r.AdresseEvent)
	}
	if r.Notes != "" {
		lines = append(lines, "Notes: "+r.Notes)
	}
	lines = append(lines, "", Marker(r.ID))

	location := r.AdresseEvent
	if location == "" {
		location = string(r.VilleZone)
	}
	return Event{
		Summary:     fmt.Sprintf("%s - %s", r.Ref, r.FullName),
		Description: strings.Join(lines, "\n"),
		Location:    location,
		Start:       start,
		End:         end,
		TimeZone:    loc.String(),
		ColorID:     colorFor(r.Statut),
	}, true
}

func colorFor(statut string) string {
	switch statut {
	case model.StatutSoldee:
		return colorSoldee
	case model.StatutAcomptePaye:
		return colorAcompte
	}
	return colorDefault
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
