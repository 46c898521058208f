package model

import "time"

// Calendar providers.
const (
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
)

// CalendarSettings is the single row of calendar sync preferences.
type CalendarSettings struct {
	AutoSync       bool      `json:"auto_sync"`
	GoogleEnabled  bool      `json:"google_enabled"`
	OutlookEnabled bool      `json:"outlook_enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Enabled reports whether provider is switched on.
func (s CalendarSettings) Enabled(provider string) bool {
	switch provider {
	case ProviderGoogle:
		return s.GoogleEnabled
	case ProviderOutlook:
		return s.OutlookEnabled
	}
	return false
}

// CalendarToken is an OAuth token pair held server-side for a provider.
type CalendarToken struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	UpdatedAt    time.Time
}
