package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/calendar"
	"github.com/iliyamo/soundrent-backoffice/internal/config"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/utils"
)

// CalendarHandler manages calendar connections and sync.
type CalendarHandler struct {
	Cal    *calendar.Service
	OAuth  *calendar.OAuth
	Secret string
	Cfg    config.CalendarConfig
	Log    *zap.Logger
}

func NewCalendarHandler(cal *calendar.Service, oauth *calendar.OAuth, secret string, cfg config.CalendarConfig, log *zap.Logger) *CalendarHandler {
	return &CalendarHandler{Cal: cal, OAuth: oauth, Secret: secret, Cfg: cfg, Log: log}
}

func (h *CalendarHandler) Status(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Cal.Status(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *CalendarHandler) UpdateSettings(c echo.Context) error {
	var in model.CalendarSettings
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Cal.UpdateSettings(ctx, in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Connect returns the consent URL of :provider. The state is a short-lived
// JWT naming the provider and the user.
func (h *CalendarHandler) Connect(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	provider := c.Param("provider")
	state, err := utils.NewStateToken(h.Secret, provider, uid, h.Cfg.StateTTL)
	if err != nil {
		return fail(c, h.Log, err)
	}
	u, err := h.OAuth.AuthURL(provider, state)
	switch {
	case errors.Is(err, calendar.ErrUnknownProvider):
		return badRequest(c, "unknown provider")
	case errors.Is(err, calendar.ErrNotConfigured):
		return c.JSON(http.StatusNotImplemented, echo.Map{"error": "provider not configured"})
	case err != nil:
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": u})
}

// Callback completes the OAuth round trip and sends the browser back to
// the settings page with the outcome in the query string.
func (h *CalendarHandler) Callback(c echo.Context) error {
	claims, err := utils.ParseStateToken(h.Secret, c.QueryParam("state"))
	if err != nil {
		return badRequest(c, "invalid state")
	}
	if msg := c.QueryParam("error"); msg != "" {
		return c.Redirect(http.StatusFound, h.landing(claims.Provider, "denied"))
	}
	code := c.QueryParam("code")
	if code == "" {
		return badRequest(c, "code required")
	}
	if err := h.Cal.Connect(c.Request().Context(), claims.Provider, code); err != nil {
		h.Log.Warn("calendar connect failed", zap.String("provider", claims.Provider), zap.String("user", claims.Subject), zap.Error(err))
		return c.Redirect(http.StatusFound, h.landing(claims.Provider, "error"))
	}
	h.Log.Info("calendar connected", zap.String("provider", claims.Provider), zap.String("user", claims.Subject))
	return c.Redirect(http.StatusFound, h.landing(claims.Provider, "connected"))
}

func (h *CalendarHandler) landing(provider, status string) string {
	q := url.Values{"provider": {provider}, "status": {status}}
	return h.Cfg.SuccessURL + "?" + q.Encode()
}

func (h *CalendarHandler) Disconnect(c echo.Context) error {
	provider := c.Param("provider")
	if provider != model.ProviderGoogle && provider != model.ProviderOutlook {
		return badRequest(c, "unknown provider")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Cal.Disconnect(ctx, provider); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Sync pushes every reservation to the enabled calendars.
func (h *CalendarHandler) Sync(c echo.Context) error {
	rep, err := h.Cal.SyncAll(c.Request().Context())
	if errors.Is(err, calendar.ErrNotConfigured) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "aucun calendrier activé"})
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// ICS serves the iCalendar feed.
func (h *CalendarHandler) ICS(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	var buf bytes.Buffer
	if err := h.Cal.ExportICS(ctx, &buf, time.Now()); err != nil {
		return fail(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="soundrent.ics"`)
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
