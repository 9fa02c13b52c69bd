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
	"github.com/mvolkov/storecore/internal/provider"
	"github.com/mvolkov/storecore/internal/repo"
)

// PaymentService owns the attempt/transaction lifecycle. It is the only
// component allowed to move an order to PAID, PAYMENT_FAILED or REFUNDED,
// and it does so one-way through OrderService; order transitions never call
// back into payments.
//
// Provider calls run outside any database transaction; the local status flip
// happens in a short follow-up transaction, so provider latency never
// extends a lock's lifetime. A provider transport error (timeout included)
// leaves the attempt in its prior state: callers re-query before retrying.
type PaymentService struct {
	Repo     *repo.GormRepo
	Provider provider.Provider
	Orders   *OrderService
	Currency string
	Metrics  *metrics.Metrics
}

func (s *PaymentService) Authorize(ctx context.Context, storeID, orderID uuid.UUID, amount int64, providerName string) (*models.PaymentAttempt, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if providerName == "" {
		return nil, fmt.Errorf("%w: provider required", ErrValidation)
	}

	order, err := s.Orders.Get(ctx, storeID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order is %s, not PENDING: %w", order.Status, ErrInvalidTransition)
	}

	attempt := &models.PaymentAttempt{
		StoreID:  storeID,
		OrderID:  orderID,
		Provider: providerName,
		Status:   models.AttemptStatusInitiated,
		Amount:   amount,
		Currency: s.Currency,
	}
	err = s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		blocked, err := s.Repo.CreateAttemptTx(tx, attempt)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("order %s: %w", orderID, ErrAlreadyInFlight)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := s.Provider.Authorize(ctx, provider.ChargeRequest{
		Amount:    amount,
		Currency:  s.Currency,
		Reference: attempt.ID.String(),
	})
	if err != nil {
		// Transport failure: the attempt stays INITIATED so the caller can
		// re-query instead of assuming it failed.
		return attempt, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	var (
		failedOrder *models.Order
		event       string
	)
	err = s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		if result.Success {
			err := s.Repo.CASAttemptStatusTx(tx, storeID, attempt.ID,
				models.AttemptStatusInitiated, models.AttemptStatusAuthorized,
				map[string]any{"provider_reference": result.ProviderReference})
			if err != nil {
				return err
			}
			return s.Repo.AppendTransactionTx(tx, &models.PaymentTransaction{
				StoreID:           storeID,
				AttemptID:         attempt.ID,
				Type:              models.TransactionAuthorize,
				Amount:            amount,
				Currency:          s.Currency,
				ProviderReference: result.ProviderReference,
			})
		}

		err := s.Repo.CASAttemptStatusTx(tx, storeID, attempt.ID,
			models.AttemptStatusInitiated, models.AttemptStatusFailed,
			map[string]any{"failure_reason": result.FailureReason})
		if err != nil {
			return err
		}
		failedOrder, event, err = s.Orders.transitionTx(tx, storeID, orderID, models.OrderStatusPaymentFailed, TransitionMeta{ActorID: "payment"})
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		attempt.Status = models.AttemptStatusAuthorized
		attempt.ProviderReference = result.ProviderReference
		logging.FromContext(ctx).Info("payment_authorized",
			"store_id", storeID, "order_id", orderID, "attempt_id", attempt.ID, "amount", amount)
		return attempt, nil
	}

	attempt.Status = models.AttemptStatusFailed
	attempt.FailureReason = result.FailureReason
	s.Notifier(ctx, event, failedOrder)
	logging.FromContext(ctx).Warn("payment_authorize_failed",
		"store_id", storeID, "order_id", orderID, "attempt_id", attempt.ID, "reason", result.FailureReason)
	return attempt, fmt.Errorf("%w: %s", ErrProvider, result.FailureReason)
}

// Capture converts an authorized hold into a charge. Idempotent under retry:
// a second capture of the same attempt observes CAPTURED and gets
// ErrAlreadyCaptured with no second transaction row.
func (s *PaymentService) Capture(ctx context.Context, storeID, attemptID uuid.UUID, amount int64) (*models.PaymentAttempt, error) {
	attempt, err := s.getAttempt(ctx, storeID, attemptID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case models.AttemptStatusAuthorized:
	case models.AttemptStatusCaptured:
		s.Metrics.CountCapture("already_captured")
		return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrAlreadyCaptured)
	default:
		return nil, fmt.Errorf("attempt is %s, not AUTHORIZED: %w", attempt.Status, ErrInvalidTransition)
	}

	if amount == 0 {
		amount = attempt.Amount
	}
	if amount < 0 || amount > attempt.Amount {
		return nil, fmt.Errorf("%w: capture amount out of range", ErrValidation)
	}

	result, err := s.Provider.Capture(ctx, provider.ChargeRequest{
		Amount:    amount,
		Currency:  attempt.Currency,
		Reference: attempt.ProviderReference,
	})
	if err != nil {
		return attempt, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if !result.Success {
		s.Metrics.CountCapture("provider_failed")
		return attempt, fmt.Errorf("%w: %s", ErrProvider, result.FailureReason)
	}

	// Capture row and order status advance commit or fail together.
	var (
		order *models.Order
		event string
	)
	err = s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		err := s.Repo.CASAttemptStatusTx(tx, storeID, attemptID,
			models.AttemptStatusAuthorized, models.AttemptStatusCaptured, nil)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Lost the race: someone else captured first.
				return fmt.Errorf("attempt %s: %w", attemptID, ErrAlreadyCaptured)
			}
			return err
		}
		if err := s.Repo.AppendTransactionTx(tx, &models.PaymentTransaction{
			StoreID:           storeID,
			AttemptID:         attemptID,
			Type:              models.TransactionCapture,
			Amount:            amount,
			Currency:          attempt.Currency,
			ProviderReference: result.ProviderReference,
		}); err != nil {
			return err
		}
		order, event, err = s.Orders.transitionTx(tx, storeID, attempt.OrderID, models.OrderStatusPaid, TransitionMeta{ActorID: "payment"})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCaptured) {
			s.Metrics.CountCapture("already_captured")
		}
		return nil, err
	}

	attempt.Status = models.AttemptStatusCaptured
	s.Metrics.CountCapture("captured")
	logging.FromContext(ctx).Info("payment_captured",
		"store_id", storeID, "attempt_id", attemptID, "order_id", attempt.OrderID, "amount", amount)
	s.Notifier(ctx, event, order)
	return attempt, nil
}

// Refund pays money back against captured funds. The refundable balance is
// always derived from the transaction ledger inside the transaction, so
// concurrent refunds cannot exceed it.
func (s *PaymentService) Refund(ctx context.Context, storeID, attemptID uuid.UUID, amount int64, reason string) (*models.PaymentAttempt, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	attempt, err := s.getAttempt(ctx, storeID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptStatusCaptured && attempt.Status != models.AttemptStatusPartiallyRefunded {
		return nil, fmt.Errorf("attempt is %s, not refundable: %w", attempt.Status, ErrInvalidTransition)
	}

	// Advisory pre-check so an obviously excessive request never reaches the
	// provider; the authoritative check re-runs inside the transaction.
	refundable, err := s.RefundableAmount(ctx, storeID, attemptID)
	if err != nil {
		return nil, err
	}
	if amount > refundable {
		s.Metrics.CountRefund("exceeds_refundable")
		return nil, fmt.Errorf("requested %d, refundable %d: %w", amount, refundable, ErrExceedsRefundable)
	}

	result, err := s.Provider.Refund(ctx, provider.ChargeRequest{
		Amount:    amount,
		Currency:  attempt.Currency,
		Reference: attempt.ProviderReference,
	})
	if err != nil {
		return attempt, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if !result.Success {
		s.Metrics.CountRefund("provider_failed")
		return attempt, fmt.Errorf("%w: %s", ErrProvider, result.FailureReason)
	}

	var (
		order *models.Order
		event string
	)
	err = s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		refundable, err := s.Repo.RefundableTx(tx, attemptID)
		if err != nil {
			return err
		}
		if amount > refundable {
			return fmt.Errorf("requested %d, refundable %d: %w", amount, refundable, ErrExceedsRefundable)
		}

		if err := s.Repo.AppendTransactionTx(tx, &models.PaymentTransaction{
			StoreID:           storeID,
			AttemptID:         attemptID,
			Type:              models.TransactionRefund,
			Amount:            amount,
			Currency:          attempt.Currency,
			ProviderReference: result.ProviderReference,
		}); err != nil {
			return err
		}

		target := models.AttemptStatusPartiallyRefunded
		if refundable-amount == 0 {
			target = models.AttemptStatusRefunded
		}
		if err := s.Repo.CASAttemptStatusTx(tx, storeID, attemptID, attempt.Status, target, nil); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("attempt %s changed concurrently: %w", attemptID, ErrInvalidTransition)
			}
			return err
		}
		attempt.Status = target

		// Only a fully refunded attempt moves the order; the lifecycle
		// manager restores inventory as part of the same transaction.
		if target == models.AttemptStatusRefunded {
			order, event, err = s.Orders.transitionTx(tx, storeID, attempt.OrderID, models.OrderStatusRefunded, TransitionMeta{ActorID: "payment"})
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrExceedsRefundable) {
			s.Metrics.CountRefund("exceeds_refundable")
		}
		return nil, err
	}

	s.Metrics.CountRefund("refunded")
	logging.FromContext(ctx).Info("payment_refunded",
		"store_id", storeID, "attempt_id", attemptID, "amount", amount, "status", attempt.Status, "reason", reason)
	if order != nil {
		s.Notifier(ctx, event, order)
	}
	return attempt, nil
}

// RefundableAmount is a pure read over the transaction ledger.
func (s *PaymentService) RefundableAmount(ctx context.Context, storeID, attemptID uuid.UUID) (int64, error) {
	if _, err := s.getAttempt(ctx, storeID, attemptID); err != nil {
		return 0, err
	}
	captured, err := s.Repo.SumTransactions(ctx, attemptID, models.TransactionCapture)
	if err != nil {
		return 0, err
	}
	refunded, err := s.Repo.SumTransactions(ctx, attemptID, models.TransactionRefund)
	if err != nil {
		return 0, err
	}
	return captured - refunded, nil
}

func (s *PaymentService) GetAttempt(ctx context.Context, storeID, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	return s.getAttempt(ctx, storeID, attemptID)
}

// ListAttempts returns every attempt for an order, newest first, so callers
// can inspect retries and their outcomes.
func (s *PaymentService) ListAttempts(ctx context.Context, storeID, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	if _, err := s.Orders.Get(ctx, storeID, orderID); err != nil {
		return nil, err
	}
	return s.Repo.ListAttempts(ctx, storeID, orderID)
}

func (s *PaymentService) getAttempt(ctx context.Context, storeID, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	attempt, err := s.Repo.GetAttempt(ctx, storeID, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
		}
		return nil, err
	}
	return attempt, nil
}

// Notifier dispatches the deferred order event produced by a transition that
// committed inside one of this service's transactions.
func (s *PaymentService) Notifier(ctx context.Context, event string, order *models.Order) {
	if order == nil || event == "" {
		return
	}
	s.Orders.afterTransition(ctx, order, event)
}
