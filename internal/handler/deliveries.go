package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/service"
)

// DeliveryLister reads the delivery planning.
type DeliveryLister interface {
	List(ctx context.Context, f model.DeliveryFilter) ([]model.Delivery, error)
}

// DeliveryHandler serves the delivery planning.
type DeliveryHandler struct {
	Svc        *service.ReservationService
	Deliveries DeliveryLister
	Log        *zap.Logger
}

func NewDeliveryHandler(svc *service.ReservationService, d DeliveryLister, log *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{Svc: svc, Deliveries: d, Log: log}
}

// List filters on type, statut, reservation_id and a from/to date range.
func (h *DeliveryHandler) List(c echo.Context) error {
	f := model.DeliveryFilter{Type: c.QueryParam("type"), Statut: c.QueryParam("statut")}
	if v := c.QueryParam("reservation_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid reservation_id")
		}
		f.ReservationID = id
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		return fail(c, h.Log, err)
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Deliveries.List(ctx, f)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if rows == nil {
		rows = []model.Delivery{}
	}
	return c.JSON(http.StatusOK, rows)
}

type statutReq struct {
	Statut string `json:"statut"`
}

func (h *DeliveryHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req statutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Svc.UpdateDeliveryStatus(ctx, id, req.Statut)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// SyncAll reconciles the deliveries of every reservation.
func (h *DeliveryHandler) SyncAll(c echo.Context) error {
	sum, err := h.Svc.SyncAllDeliveries(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sum)
}
