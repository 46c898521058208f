package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time of day. It marshals to JSON as
// "YYYY-MM-DD" and maps to a MySQL DATE column.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location and returns it
// anchored at UTC midnight.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD". A full RFC 3339 timestamp is accepted and
// truncated to its date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// Equal reports whether d and o denote the same day.
func (d Date) Equal(o Date) bool { return d.String() == o.String() }

// In returns the instant of hhmm on day d in loc. An empty or malformed
// hhmm falls back to def.
func (d Date) In(loc *time.Location, hhmm, def string) time.Time {
	h, m, ok := ParseClock(hhmm)
	if !ok {
		h, m, _ = ParseClock(def)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns read with or without
// parseTime.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case []byte:
		p, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = p
		return nil
	case string:
		p, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = p
		return nil
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("model: cannot scan %T into Date", src)
}

// ParseClock parses "HH:MM" or "HH:MM:SS" and returns hour and minute.
func ParseClock(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	switch len(s) {
	case 5:
	case 8:
		layout = "15:04:05"
	default:
		return 0, 0, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// Clock normalizes s to "HH:MM", returning def when s is not a valid time.
func Clock(s, def string) string {
	h, m, ok := ParseClock(s)
	if !ok {
		return def
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
