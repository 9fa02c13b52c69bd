package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mvolkov/storecore/internal/logging"
	mw "github.com/mvolkov/storecore/internal/middleware"
	"github.com/mvolkov/storecore/internal/service"
	"github.com/mvolkov/storecore/internal/transport"
)

type CheckoutHTTP struct {
	Svc *service.CheckoutService
}

func (h *CheckoutHTTP) Complete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.complete")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}
	customerID, err := mw.UserID(c)
	if err != nil {
		return err
	}
	ownerKey, err := mw.OwnerKey(c)
	if err != nil {
		return err
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.CheckoutItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	order, err := h.Svc.Complete(ctx, storeID, customerID, service.CheckoutInput{
		OwnerKey:        ownerKey,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingMethod:  req.ShippingMethod,
		DiscountCode:    req.DiscountCode,
	})
	if err != nil {
		l.Warn("checkout_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	l.Info("checkout_success", "order_id", order.ID, "order_number", order.OrderNumber)
	return c.JSON(http.StatusCreated, order)
}
