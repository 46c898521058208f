package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Google talks to the Google Calendar API.
type Google struct {
	svc *gcal.Service
}

// NewGoogle returns a Google Calendar client using ts.
func NewGoogle(ctx context.Context, ts oauth2.TokenSource) (*Google, error) {
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Google{svc: svc}, nil
}

func (g *Google) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var out []Calendar
	err := g.svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			out = append(out, Calendar{ID: item.Id, Name: item.Summary})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return out, nil
}

func (g *Google) CreateCalendar(ctx context.Context, name, timeZone string) (Calendar, error) {
	c, err := g.svc.Calendars.Insert(&gcal.Calendar{Summary: name, TimeZone: timeZone}).Context(ctx).Do()
	if err != nil {
		return Calendar{}, fmt.Errorf("create calendar: %w", err)
	}
	return Calendar{ID: c.Id, Name: c.Summary}, nil
}

func (g *Google) ListEvents(ctx context.Context, calendarID, search string) ([]Event, error) {
	var out []Event
	call := g.svc.Events.List(calendarID).Q(search).ShowDeleted(false).MaxResults(250)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			out = append(out, Event{ID: item.Id, Summary: item.Summary, Description: item.Description, Location: item.Location})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (g *Google) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := g.svc.Events.Insert(calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		ColorId:     ev.ColorID,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent ignores events that are already gone.
func (g *Google) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
