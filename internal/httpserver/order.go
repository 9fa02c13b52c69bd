package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mvolkov/storecore/internal/logging"
	mw "github.com/mvolkov/storecore/internal/middleware"
	"github.com/mvolkov/storecore/internal/models"
	"github.com/mvolkov/storecore/internal/service"
	"github.com/mvolkov/storecore/internal/transport"
	"github.com/mvolkov/storecore/internal/util"
)

type OrderHTTP struct {
	Svc     *service.OrderService
	Payment *service.PaymentService
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	order, err := h.Svc.Get(ctx, storeID, orderID)
	if err != nil {
		l.Warn("get_order_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	var customerID *uuid.UUID
	if v := c.QueryParam("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "customer_id is not a uuid")
		}
		customerID = &id
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.List(ctx, storeID, customerID, offset, limit)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.NewPaginated(orders, page, limit, offset, total))
}

func (h *OrderHTTP) Payments(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.payments")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	attempts, err := h.Payment.ListAttempts(ctx, storeID, orderID)
	if err != nil {
		l.Warn("list_payments_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, attempts)
}

func (h *OrderHTTP) Transition(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.transition")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var req transport.TransitionRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("transition_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status required")
	}

	meta := service.TransitionMeta{ActorID: mw.ActorID(c)}
	if req.TrackingNumber != "" {
		meta.Tracking = &models.Tracking{Number: req.TrackingNumber, URL: req.TrackingURL}
	}

	order, err := h.Svc.Transition(ctx, storeID, orderID, models.OrderStatus(req.Status), meta)
	if err != nil {
		l.Warn("transition_error", "status", statusOf(err), "target", req.Status, "error", err)
		return httpError(err)
	}

	l.Info("transition_success", "order_id", order.ID, "new_status", order.Status)
	return c.JSON(http.StatusOK, order)
}
