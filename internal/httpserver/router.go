package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mvolkov/storecore/internal/metrics"
	mw "github.com/mvolkov/storecore/internal/middleware"
)

type Deps struct {
	InventoryHandler *InventoryHTTP
	CartHandler      *CartHTTP
	CheckoutHandler  *CheckoutHTTP
	OrderHandler     *OrderHTTP
	PaymentHandler   *PaymentHTTP
	JWTSecret        []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	identity := mw.NewIdentity(d.JWTSecret)

	cart := e.Group("/cart")
	cart.Use(identity.RequireShopper)
	cart.GET("", d.CartHandler.Resolve)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PUT("/items/:id", d.CartHandler.SetQuantity)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.DELETE("", d.CartHandler.Clear)

	e.POST("/checkout", d.CheckoutHandler.Complete, identity.RequireAuth)

	orders := e.Group("/orders")
	orders.Use(identity.RequireAuth)
	orders.GET("", d.OrderHandler.List)
	orders.GET("/:id", d.OrderHandler.Get)
	orders.GET("/:id/payments", d.OrderHandler.Payments)
	orders.POST("/:id/transition", d.OrderHandler.Transition, identity.RequireAdmin)

	payments := e.Group("/payments")
	payments.Use(identity.RequireAuth)
	payments.POST("/authorize", d.PaymentHandler.Authorize)
	payments.POST("/:id/capture", d.PaymentHandler.Capture, identity.RequireAdmin)
	payments.POST("/:id/refund", d.PaymentHandler.Refund, identity.RequireAdmin)
	payments.GET("/:id/refundable", d.PaymentHandler.Refundable)

	inventory := e.Group("/inventory")
	inventory.Use(identity.RequireAdmin)
	inventory.POST("/adjust", d.InventoryHandler.Adjust)
	inventory.GET("/low-stock", d.InventoryHandler.LowStock)
	inventory.GET("/:id/history", d.InventoryHandler.History)
}
