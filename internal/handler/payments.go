package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/model"
	"github.com/iliyamo/soundrent-backoffice/internal/receipt"
	"github.com/iliyamo/soundrent-backoffice/internal/service"
)

// PaymentLister reads payments for the lists.
type PaymentLister interface {
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	List(ctx context.Context, typ string, limit int) ([]model.Payment, error)
}

// PaymentHandler records payments and serves their receipts.
type PaymentHandler struct {
	Svc      *service.ReservationService
	Payments PaymentLister
	Receipts *receipt.Service
	Log      *zap.Logger
}

func NewPaymentHandler(svc *service.ReservationService, p PaymentLister, r *receipt.Service, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Svc: svc, Payments: p, Receipts: r, Log: log}
}

// List returns the payments of ?reservation_id, or the latest payments,
// optionally of one ?type.
func (h *PaymentHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	var (
		rows []model.Payment
		err  error
	)
	if v := c.QueryParam("reservation_id"); v != "" {
		id, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return badRequest(c, "invalid reservation_id")
		}
		rows, err = h.Payments.ListByReservation(ctx, id)
	} else {
		rows, err = h.Payments.List(ctx, c.QueryParam("type"), queryInt(c, "limit", 200))
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	if rows == nil {
		rows = []model.Payment{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *PaymentHandler) Create(c echo.Context) error {
	var form service.PaymentForm
	if err := c.Bind(&form); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Svc.RecordPayment(ctx, form)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PaymentHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.DeletePayment(ctx, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Receipt renders the PDF receipt of a payment. Printing launches a
// browser, so the request context is used as is.
func (h *PaymentHandler) Receipt(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	pdf, name, err := h.Receipts.PDF(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", name))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// Archive uploads the receipt to Drive and returns the file id.
func (h *PaymentHandler) Archive(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	fileID, err := h.Receipts.ArchivePDF(c.Request().Context(), id)
	if errors.Is(err, receipt.ErrArchiveDisabled) {
		return c.JSON(http.StatusNotImplemented, echo.Map{"error": "archivage non configuré"})
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"drive_file_id": fileID})
}
