package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/service"
)

// ReservationHandler exposes the reservation form and list.
type ReservationHandler struct {
	Svc      *service.ReservationService
	Autosave *service.Autosaver // nil disables session finalization
	Log      *zap.Logger
	Now      func() time.Time
}

func NewReservationHandler(svc *service.ReservationService, a *service.Autosaver, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Autosave: a, Log: log, Now: time.Now}
}

// List filters on statut, client_id and year; drafts=1 includes drafts.
func (h *ReservationHandler) List(c echo.Context) error {
	f := model.ReservationFilter{
		Statut: c.QueryParam("statut"),
		Year:   queryInt(c, "year", 0),
		Limit:  queryInt(c, "limit", 100),
		Offset: queryInt(c, "offset", 0),
	}
	f.IncludeDrafts, _ = strconv.ParseBool(c.QueryParam("drafts"))
	if v := c.QueryParam("client_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid client_id")
		}
		f.ClientID = id
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Svc.List(ctx, f)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if rows == nil {
		rows = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Create saves a new reservation, or finalizes the draft named in the body.
// The autosave session of the "session" query parameter is flushed first
// and closed on success, so no draft of the submitted form lingers.
func (h *ReservationHandler) Create(c echo.Context) error {
	var form service.ReservationForm
	if err := c.Bind(&form); err != nil {
		return badRequest(c, "invalid body")
	}
	form.ID = 0
	if h.Autosave == nil {
		return h.save(c, form)
	}
	key, err := sessionKey(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.SaveSession(ctx, h.Autosave, key, form)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return h.respond(c, res)
}

// Update saves the reservation of the path id.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var form service.ReservationForm
	if err := c.Bind(&form); err != nil {
		return badRequest(c, "invalid body")
	}
	form.ID, form.DraftID = id, 0
	return h.save(c, form)
}

func (h *ReservationHandler) save(c echo.Context, form service.ReservationForm) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.Save(ctx, form)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return h.respond(c, res)
}

// respond answers 201 for a new reservation and 200 otherwise. Warnings of
// the steps after the write travel in the body.
func (h *ReservationHandler) respond(c echo.Context, res *service.SaveResult) error {
	if res.Warnings == nil {
		res.Warnings = []service.ReconciliationWarning{}
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

// Quote prices the submitted form without saving it.
func (h *ReservationHandler) Quote(c echo.Context) error {
	var form service.ReservationForm
	if err := c.Bind(&form); err != nil {
		return badRequest(c, "invalid body")
	}
	return c.JSON(http.StatusOK, service.Quote(form, h.Now()))
}

func (h *ReservationHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.DeleteReservation(ctx, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// QuickAction runs one of the list shortcuts named by :action.
func (h *ReservationHandler) QuickAction(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.QuickAction(ctx, id, c.Param("action"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// FixRefs assigns references to final reservations missing one.
func (h *ReservationHandler) FixRefs(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Svc.FixMissingRefs(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"fixed": n})
}
