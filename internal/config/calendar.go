package config

import "time"

// CalendarConfig holds OAuth client credentials for the calendar providers.
// A provider whose client id is empty cannot be connected.
type CalendarConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	MSClientID         string
	MSClientSecret     string
	MSTenant           string
	RedirectURL        string        // OAuth callback, e.g. https://host/v1/calendar/callback
	SuccessURL         string        // where the browser lands after the callback
	StateTTL           time.Duration // lifetime of the signed OAuth state
	CalendarName       string
	TimeZone           string
	RequestTimeout     time.Duration
}

func LoadCalendarConfig() CalendarConfig {
	return CalendarConfig{
		GoogleClientID:     envStr("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envStr("GOOGLE_CLIENT_SECRET", ""),
		MSClientID:         envStr("MICROSOFT_CLIENT_ID", ""),
		MSClientSecret:     envStr("MICROSOFT_CLIENT_SECRET", ""),
		MSTenant:           envStr("MICROSOFT_TENANT", "common"),
		RedirectURL:        envStr("CALENDAR_REDIRECT_URL", "http://localhost:8080/v1/calendar/callback"),
		SuccessURL:         envStr("CALENDAR_SUCCESS_URL", "/calendar-sync"),
		StateTTL:           envDur("CALENDAR_STATE_TTL", 10*time.Minute),
		CalendarName:       envStr("CALENDAR_NAME", "SoundRent Réservations"),
		TimeZone:           envStr("CALENDAR_TIMEZONE", "Europe/Paris"),
		RequestTimeout:     envDur("CALENDAR_TIMEOUT", 15*time.Second),
	}
}
