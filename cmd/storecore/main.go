package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mvolkov/storecore/internal/config"
	"github.com/mvolkov/storecore/internal/httpserver"
	"github.com/mvolkov/storecore/internal/logging"
	"github.com/mvolkov/storecore/internal/metrics"
	mw "github.com/mvolkov/storecore/internal/middleware"
	"github.com/mvolkov/storecore/internal/models"
	"github.com/mvolkov/storecore/internal/notify"
	"github.com/mvolkov/storecore/internal/provider"
	"github.com/mvolkov/storecore/internal/repo"
	"github.com/mvolkov/storecore/internal/service"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.OpenDB(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	m := metrics.New(cfg.ServiceName)
	dispatcher := notify.New(cfg.KafkaBrokers, cfg.EventTopic)
	defer dispatcher.Close()

	gw := provider.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderTimeout)

	gormRepo := &repo.GormRepo{DB: db}
	inventorySvc := &service.InventoryService{Repo: gormRepo, Metrics: m}
	cartSvc := &service.CartService{Repo: gormRepo}
	orderSvc := &service.OrderService{Repo: gormRepo, Notifier: dispatcher, Metrics: m}
	checkoutSvc := &service.CheckoutService{
		Repo: gormRepo,
		Pricing: service.Pricing{
			TaxRateBP:        cfg.TaxRateBP,
			ShippingStandard: cfg.ShippingStandard,
			ShippingExpress:  cfg.ShippingExpress,
			Currency:         cfg.Currency,
		},
		Notifier: dispatcher,
		Metrics:  m,
	}
	paymentSvc := &service.PaymentService{
		Repo:     gormRepo,
		Provider: gw,
		Orders:   orderSvc,
		Currency: cfg.Currency,
		Metrics:  m,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(mw.RequestLogger(logger))
	e.Use(m.Middleware())
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		InventoryHandler: &httpserver.InventoryHTTP{Svc: inventorySvc},
		CartHandler:      &httpserver.CartHTTP{Svc: cartSvc},
		CheckoutHandler:  &httpserver.CheckoutHTTP{Svc: checkoutSvc},
		OrderHandler:     &httpserver.OrderHTTP{Svc: orderSvc, Payment: paymentSvc},
		PaymentHandler:   &httpserver.PaymentHTTP{Svc: paymentSvc},
		JWTSecret:        cfg.JWTAccessSecret,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Printf("%s stopped", cfg.ServiceName)
}
