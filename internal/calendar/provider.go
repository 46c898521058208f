package calendar

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// ErrUnknownProvider is returned for a provider name other than google or
// outlook.
var ErrUnknownProvider = errors.New("calendar: unknown provider")

// Provider is the set of calendar operations the pusher needs. Google and
// Outlook implement it symmetrically.
type Provider interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	CreateCalendar(ctx context.Context, name, timeZone string) (Calendar, error)
	// ListEvents returns events of calendarID whose text matches search.
	ListEvents(ctx context.Context, calendarID, search string) ([]Event, error)
	CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Factory opens a provider client authenticated by ts.
type Factory func(ctx context.Context, provider string, ts oauth2.TokenSource) (Provider, error)

// DefaultFactory builds the real Google and Microsoft Graph clients.
func DefaultFactory(ctx context.Context, provider string, ts oauth2.TokenSource) (Provider, error) {
	switch provider {
	case model.ProviderGoogle:
		return NewGoogle(ctx, ts)
	case model.ProviderOutlook:
		return NewOutlook(oauth2.NewClient(ctx, ts), ""), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}
