package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GraphBaseURL is the Microsoft Graph v1.0 endpoint.
const GraphBaseURL = "https://graph.microsoft.com/v1.0"

// graphTime is the local wall-clock layout Graph expects next to a
// timeZone field.
const graphTime = "2006-01-02T15:04:05"

// Outlook talks to Outlook calendars through Microsoft Graph. The HTTP
// client must add the bearer token, as oauth2.NewClient does.
type Outlook struct {
	hc   *http.Client
	base string
}

// NewOutlook returns a Graph client. An empty base selects GraphBaseURL.
func NewOutlook(hc *http.Client, base string) *Outlook {
	if base == "" {
		base = GraphBaseURL
	}
	return &Outlook{hc: hc, base: strings.TrimRight(base, "/")}
}

type graphCalendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphEvent struct {
	ID       string         `json:"id,omitempty"`
	Subject  string         `json:"subject"`
	Body     graphBody      `json:"body"`
	Start    *graphDateTime `json:"start,omitempty"`
	End      *graphDateTime `json:"end,omitempty"`
	Location graphLocation  `json:"location"`
}

// GraphError is a non-2xx Graph response.
type GraphError struct {
	Status  int
	Code    string
	Message string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph: %d %s: %s", e.Status, e.Code, e.Message)
}

func (o *Outlook) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	target := path
	if !strings.HasPrefix(path, "http") {
		target = o.base + path
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := o.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &GraphError{Status: resp.StatusCode, Code: e.Error.Code, Message: e.Error.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (o *Outlook) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var out []Calendar
	next := "/me/calendars?$select=id,name"
	for next != "" {
		var page struct {
			Value    []graphCalendar `json:"value"`
			NextLink string          `json:"@odata.nextLink"`
		}
		if err := o.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list calendars: %w", err)
		}
		for _, c := range page.Value {
			out = append(out, Calendar{ID: c.ID, Name: c.Name})
		}
		next = page.NextLink
	}
	return out, nil
}

func (o *Outlook) CreateCalendar(ctx context.Context, name, _ string) (Calendar, error) {
	var c graphCalendar
	if err := o.do(ctx, http.MethodPost, "/me/calendars", map[string]string{"name": name}, &c); err != nil {
		return Calendar{}, fmt.Errorf("create calendar: %w", err)
	}
	return Calendar{ID: c.ID, Name: c.Name}, nil
}

// ListEvents pages through the calendar and filters on subject and body,
// since Graph cannot search event bodies server side.
func (o *Outlook) ListEvents(ctx context.Context, calendarID, search string) ([]Event, error) {
	var out []Event
	next := "/me/calendars/" + url.PathEscape(calendarID) + "/events?$select=id,subject,body,location&$top=100"
	for next != "" {
		var page struct {
			Value    []graphEvent `json:"value"`
			NextLink string       `json:"@odata.nextLink"`
		}
		if err := o.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, e := range page.Value {
			if search != "" && !strings.Contains(e.Body.Content, search) && !strings.Contains(e.Subject, search) {
				continue
			}
			out = append(out, Event{ID: e.ID, Summary: e.Subject, Description: e.Body.Content, Location: e.Location.DisplayName})
		}
		next = page.NextLink
	}
	return out, nil
}

func (o *Outlook) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	loc := ev.Start.Location()
	in := graphEvent{
		Subject:  ev.Summary,
		Body:     graphBody{ContentType: "text", Content: ev.Description},
		Start:    &graphDateTime{DateTime: ev.Start.In(loc).Format(graphTime), TimeZone: ev.TimeZone},
		End:      &graphDateTime{DateTime: ev.End.In(loc).Format(graphTime), TimeZone: ev.TimeZone},
		Location: graphLocation{DisplayName: ev.Location},
	}
	var created graphEvent
	if err := o.do(ctx, http.MethodPost, "/me/calendars/"+url.PathEscape(calendarID)+"/events", in, &created); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return created.ID, nil
}

// DeleteEvent ignores events that are already gone.
func (o *Outlook) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	path := "/me/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
	err := o.do(ctx, http.MethodDelete, path, nil, nil)
	var ge *GraphError
	if errors.As(err, &ge) && ge.Status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

