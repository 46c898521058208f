package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/service"
)

// DraftHandler drives autosave of the reservation form. An open form is
// identified by the user and the "session" query parameter, so two tabs of
// the same user keep separate drafts.
type DraftHandler struct {
	Svc      *service.ReservationService
	Autosave *service.Autosaver
	Log      *zap.Logger
}

func NewDraftHandler(svc *service.ReservationService, a *service.Autosaver, log *zap.Logger) *DraftHandler {
	return &DraftHandler{Svc: svc, Autosave: a, Log: log}
}

// sessionKey identifies the open form of the caller.
func sessionKey(c echo.Context) (string, error) {
	uid, err := currentUser(c)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(c.QueryParam("session"))
	if s == "" {
		s = "default"
	}
	if len(s) > 64 {
		return "", echo.NewHTTPError(http.StatusBadRequest, "session too long")
	}
	return fmt.Sprintf("%d:%s", uid, s), nil
}

// Schedule records the form state; it is written once the user pauses.
func (h *DraftHandler) Schedule(c echo.Context) error {
	key, err := sessionKey(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var form service.ReservationForm
	if err := c.Bind(&form); err != nil {
		return badRequest(c, "invalid body")
	}
	if form.DraftID != 0 && h.Autosave.DraftID(key) == 0 {
		h.Autosave.Resume(key, form.DraftID)
	}
	h.Autosave.Schedule(key, form)
	return c.JSON(http.StatusAccepted, echo.Map{"draft_id": h.Autosave.DraftID(key)})
}

// Flush writes the pending state immediately, as before leaving the page.
func (h *DraftHandler) Flush(c echo.Context) error {
	key, err := sessionKey(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, err := h.Autosave.Flush(key)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"draft_id": id})
}

// Close forgets the session once the form was saved or abandoned.
func (h *DraftHandler) Close(c echo.Context) error {
	key, err := sessionKey(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Autosave.Forget(key)
	return c.NoContent(http.StatusNoContent)
}

// Latest returns the most recently touched draft, 204 when there is none.
func (h *DraftHandler) Latest(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Svc.LatestDraft(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if d == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DraftHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Svc.ListDrafts(ctx, queryInt(c, "limit", 20))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if rows == nil {
		rows = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, rows)
}

// Discard deletes a draft. Finalized reservations are refused.
func (h *DraftHandler) Discard(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.DiscardDraft(ctx, id); err != nil {
		return fail(c, h.Log, err)
	}
	if key, err := sessionKey(c); err == nil && h.Autosave.DraftID(key) == id {
		h.Autosave.Forget(key)
	}
	return c.NoContent(http.StatusNoContent)
}
