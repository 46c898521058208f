package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
)

// EventsHandler relays bus events to browsers as Server-Sent Events.
type EventsHandler struct {
	Bus       *events.Bus
	Heartbeat time.Duration
	Log       *zap.Logger
}

func NewEventsHandler(bus *events.Bus, log *zap.Logger) *EventsHandler {
	return &EventsHandler{Bus: bus, Heartbeat: 25 * time.Second, Log: log}
}

// Stream holds the connection open and writes one SSE message per event,
// with a comment line as keep-alive.
func (h *EventsHandler) Stream(c echo.Context) error {
	w := c.Response()
	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "streaming unsupported"})
	}
	ch, stop := h.Bus.Channel(32)
	defer stop()

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	tick := time.NewTicker(h.Heartbeat)
	defer tick.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.Log.Warn("encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
