package calendar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

const icsStamp = "20060102T150405Z"

// WriteICS renders reservations as an iCalendar feed. Times are written in
// UTC. Drafts, cancelled reservations and reservations without a date are
// left out.
func WriteICS(w io.Writer, name string, rows []model.Reservation, packNames map[uint64]string, loc *time.Location, now time.Time) error {
	bw := bufio.NewWriter(w)
	line := func(s string) {
		bw.WriteString(foldICS(s))
		bw.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//SoundRent//Back-office//FR")
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")
	line("X-WR-CALNAME:" + escapeICS(name))
	stamp := now.UTC().Format(icsStamp)
	for i := range rows {
		r := &rows[i]
		if r.IsDraft || r.Statut == model.StatutAnnulee {
			continue
		}
		ev, ok := BuildEvent(r, packNames[derefID(r.PackID)], loc)
		if !ok {
			continue
		}
		line("BEGIN:VEVENT")
		line(fmt.Sprintf("UID:reservation-%d@soundrent", r.ID))
		line("DTSTAMP:" + stamp)
		line("DTSTART:" + ev.Start.UTC().Format(icsStamp))
		line("DTEND:" + ev.End.UTC().Format(icsStamp))
		line("SUMMARY:" + escapeICS(ev.Summary))
		line("DESCRIPTION:" + escapeICS(ev.Description))
		line("LOCATION:" + escapeICS(ev.Location))
		line("STATUS:CONFIRMED")
		line("END:VEVENT")
	}
	line("END:VCALENDAR")
	return bw.Flush()
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

func escapeICS(s string) string { return icsEscaper.Replace(s) }

// foldICS splits content lines longer than 75 octets, never inside a UTF-8
// sequence.
func foldICS(s string) string {
	const limit = 75
	if len(s) <= limit {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		size := len(string(r))
		if n+size > limit {
			b.WriteString("\r\n ")
			n = 1
		}
		b.WriteRune(r)
		n += size
	}
	return b.String()
}

// ExportICS writes the feed of every final reservation.
func (s *Service) ExportICS(ctx context.Context, w io.Writer, now time.Time) error {
	if s.reservations == nil {
		return fmt.Errorf("calendar: no reservation source")
	}
	rows, err := s.allReservations(ctx)
	if err != nil {
		return err
	}
	return WriteICS(w, s.name, rows, s.packNames(ctx, rows), s.loc, now)
}
