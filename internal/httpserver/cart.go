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

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.resolve")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}
	ownerKey, err := mw.OwnerKey(c)
	if err != nil {
		return err
	}

	resolved, err := h.Svc.Resolve(ctx, storeID, ownerKey)
	if err != nil {
		l.Warn("resolve_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, resolved)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}
	ownerKey, err := mw.OwnerKey(c)
	if err != nil {
		return err
	}

	var req transport.CartItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_item_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	item, err := h.Svc.AddItem(ctx, storeID, ownerKey, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		l.Warn("add_item_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	l.Info("add_item_success", "product_id", req.ProductID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}
	ownerKey, err := mw.OwnerKey(c)
	if err != nil {
		return err
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var req transport.CartItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	item, err := h.Svc.SetQuantity(ctx, storeID, ownerKey, productID, req.VariantID, req.Quantity)
	if err != nil {
		l.Warn("set_quantity_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}
	ownerKey, err := mw.OwnerKey(c)
	if err != nil {
		return err
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	var variantID *uuid.UUID
	if v := c.QueryParam("variant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "variant_id is not a uuid")
		}
		variantID = &id
	}

	if err := h.Svc.RemoveItem(ctx, storeID, ownerKey, productID, variantID); err != nil {
		l.Warn("remove_item_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	l.Info("remove_item_success", "product_id", productID)
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}
	ownerKey, err := mw.OwnerKey(c)
	if err != nil {
		return err
	}

	if err := h.Svc.Clear(ctx, storeID, ownerKey); err != nil {
		l.Warn("clear_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	l.Info("cart_cleared")
	return c.NoContent(http.StatusNoContent)
}
