package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/logging"
	"github.com/mvolkov/storecore/internal/metrics"
	"github.com/mvolkov/storecore/internal/models"
	"github.com/mvolkov/storecore/internal/notify"
	"github.com/mvolkov/storecore/internal/repo"
)

// allowedTransitions is the order state machine. Anything not listed fails
// with ErrInvalidTransition and leaves state untouched. REFUNDED is handled
// separately: it additionally requires refund transactions covering the full
// captured amount.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:       {models.OrderStatusPaid, models.OrderStatusPaymentFailed, models.OrderStatusCanceled},
	models.OrderStatusPaid:          {models.OrderStatusProcessing, models.OrderStatusCanceled, models.OrderStatusRefunded},
	models.OrderStatusProcessing:    {models.OrderStatusShipped, models.OrderStatusCanceled},
	models.OrderStatusShipped:       {models.OrderStatusDelivered},
	models.OrderStatusPaymentFailed: {models.OrderStatusPending},
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type TransitionMeta struct {
	Tracking *models.Tracking
	ActorID  string
}

// OrderService owns the order status state machine. The status column is
// mutated nowhere else; payment events reach it through Transition/
// transitionTx, never the other way around.
type OrderService struct {
	Repo     *repo.GormRepo
	Notifier *notify.Dispatcher
	Metrics  *metrics.Metrics
}

func (s *OrderService) Get(ctx context.Context, storeID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, storeID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, storeID uuid.UUID, customerID *uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	return s.Repo.ListOrders(ctx, storeID, customerID, offset, limit)
}

// Transition validates and applies a status change in its own transaction,
// then dispatches the matching notification. Payment flows use transitionTx
// instead so the status advance commits atomically with the payment write.
func (s *OrderService) Transition(ctx context.Context, storeID, orderID uuid.UUID, target models.OrderStatus, meta TransitionMeta) (*models.Order, error) {
	var (
		order *models.Order
		event string
	)
	err := s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		order, event, err = s.transitionTx(tx, storeID, orderID, target, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, order, event)
	return order, nil
}

// transitionTx runs the state machine inside the caller's transaction and
// returns the event to dispatch once that transaction commits.
func (s *OrderService) transitionTx(tx *gorm.DB, storeID, orderID uuid.UUID, target models.OrderStatus, meta TransitionMeta) (*models.Order, string, error) {
	order, err := s.Repo.GetOrderTx(tx, storeID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, "", err
	}

	if target == models.OrderStatusRefunded {
		if order.Status.IsTerminal() {
			return nil, "", fmt.Errorf("%s -> %s: %w", order.Status, target, ErrInvalidTransition)
		}
		captured, refunded, err := s.Repo.CapturedAcrossAttemptsTx(tx, storeID, orderID)
		if err != nil {
			return nil, "", err
		}
		if captured == 0 || refunded < captured {
			return nil, "", fmt.Errorf("refund does not cover captured amount: %w", ErrInvalidTransition)
		}
	} else if !transitionAllowed(order.Status, target) {
		return nil, "", fmt.Errorf("%s -> %s: %w", order.Status, target, ErrInvalidTransition)
	}

	// CAS on the loaded status: a concurrent transition that got there first
	// makes this one a conflict, not a silent overwrite.
	if err := s.Repo.CASOrderStatusTx(tx, storeID, orderID, order.Status, target); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%s -> %s: %w", order.Status, target, ErrInvalidTransition)
		}
		return nil, "", err
	}

	if target == models.OrderStatusCanceled || target == models.OrderStatusRefunded {
		if err := s.restoreInventoryTx(tx, order, target); err != nil {
			return nil, "", err
		}
	}

	if meta.Tracking != nil && (target == models.OrderStatusShipped || target == models.OrderStatusDelivered) {
		if err := s.Repo.SetOrderTrackingTx(tx, storeID, orderID, *meta.Tracking); err != nil {
			return nil, "", err
		}
		order.Tracking = meta.Tracking
	}

	order.Status = target
	return order, eventFor(target), nil
}

// restoreInventoryTx puts every order item's quantity back, at most once per
// order across cancel and refund. The check runs in the same transaction as
// the restore, and the log's unique reference index backs it durably.
func (s *OrderService) restoreInventoryTx(tx *gorm.DB, order *models.Order, target models.OrderStatus) error {
	restored, err := s.Repo.HasRestoreEntriesTx(tx, order.StoreID, order.ID.String())
	if err != nil {
		return err
	}
	if restored {
		return nil
	}

	reason := models.ReasonOrderCanceled
	if target == models.OrderStatusRefunded {
		reason = models.ReasonOrderRefunded
	}
	for _, item := range order.Items {
		_, err := s.Repo.AdjustStockTx(tx, repo.StockAdjustment{
			StoreID:       order.StoreID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			Delta:         item.Quantity,
			Reason:        reason,
			ReferenceType: "order",
			ReferenceID:   order.ID.String(),
			ActorID:       "system",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) afterTransition(ctx context.Context, order *models.Order, event string) {
	s.Metrics.CountTransition(string(order.Status))
	logging.FromContext(ctx).Info("order_transitioned",
		"store_id", order.StoreID,
		"order_id", order.ID,
		"status", order.Status,
	)
	if event == "" {
		return
	}
	s.Notifier.Notify(ctx, event, order.ID.String(), map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"store_id":     order.StoreID,
		"status":       order.Status,
	})
}

func eventFor(target models.OrderStatus) string {
	switch target {
	case models.OrderStatusPaid:
		return notify.EventOrderPaid
	case models.OrderStatusShipped:
		return notify.EventOrderShipped
	case models.OrderStatusCanceled:
		return notify.EventOrderCanceled
	case models.OrderStatusRefunded:
		return notify.EventOrderRefunded
	case models.OrderStatusPaymentFailed:
		return notify.EventPaymentFailed
	}
	return ""
}
