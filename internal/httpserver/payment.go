package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mvolkov/storecore/internal/logging"
	mw "github.com/mvolkov/storecore/internal/middleware"
	"github.com/mvolkov/storecore/internal/service"
	"github.com/mvolkov/storecore/internal/transport"
)

type PaymentHTTP struct {
	Svc *service.PaymentService
}

func (h *PaymentHTTP) Authorize(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.authorize")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	var req transport.AuthorizeRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("authorize_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.OrderID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id required")
	}

	attempt, err := h.Svc.Authorize(ctx, storeID, req.OrderID, req.Amount, req.Provider)
	if err != nil {
		l.Warn("authorize_error", "status", statusOf(err), "order_id", req.OrderID, "error", err)
		return httpError(err)
	}

	l.Info("authorize_success", "attempt_id", attempt.ID, "order_id", req.OrderID)
	return c.JSON(http.StatusCreated, attempt)
}

func (h *PaymentHTTP) Capture(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.capture")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var req transport.CaptureRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("capture_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	attempt, err := h.Svc.Capture(ctx, storeID, attemptID, req.Amount)
	if err != nil {
		l.Warn("capture_error", "status", statusOf(err), "attempt_id", attemptID, "error", err)
		return httpError(err)
	}

	l.Info("capture_success", "attempt_id", attempt.ID, "order_id", attempt.OrderID)
	return c.JSON(http.StatusOK, attempt)
}

func (h *PaymentHTTP) Refund(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.refund")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var req transport.RefundRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refund_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	attempt, err := h.Svc.Refund(ctx, storeID, attemptID, req.Amount, req.Reason)
	if err != nil {
		l.Warn("refund_error", "status", statusOf(err), "attempt_id", attemptID, "error", err)
		return httpError(err)
	}

	l.Info("refund_success", "attempt_id", attempt.ID, "new_status", attempt.Status)
	return c.JSON(http.StatusOK, attempt)
}

func (h *PaymentHTTP) Refundable(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.refundable")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	refundable, err := h.Svc.RefundableAmount(ctx, storeID, attemptID)
	if err != nil {
		l.Warn("refundable_error", "status", statusOf(err), "attempt_id", attemptID, "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.RefundableResponse{AttemptID: attemptID, Refundable: refundable})
}
