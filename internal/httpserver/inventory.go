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

type InventoryHTTP struct {
	Svc *service.InventoryService
}

func (h *InventoryHTTP) Adjust(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "inventory.adjust")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	var req transport.AdjustStockRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("adjust_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	newStock, err := h.Svc.Adjust(ctx, storeID, service.AdjustInput{
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		Delta:         req.Delta,
		Reason:        models.StockReason(req.Reason),
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		ActorID:       mw.ActorID(c),
	})
	if err != nil {
		l.Warn("adjust_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	l.Info("adjust_success", "product_id", req.ProductID, "new_stock", newStock)
	return c.JSON(http.StatusOK, transport.AdjustStockResponse{NewStock: newStock})
}

func (h *InventoryHTTP) LowStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "inventory.low_stock")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	items, err := h.Svc.LowStock(ctx, storeID)
	if err != nil {
		l.Error("low_stock_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, items)
}

func (h *InventoryHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "inventory.history")

	storeID, err := mw.StoreID(c)
	if err != nil {
		return err
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("history_error", "status", 400, "reason", "id is not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not a uuid")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, entries, err := h.Svc.History(ctx, storeID, productID, offset, limit)
	if err != nil {
		l.Warn("history_error", "status", statusOf(err), "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.NewPaginated(entries, page, limit, offset, total))
}
