package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
)

// CreateAttemptTx inserts a new attempt after verifying no other attempt for
// the order is still in a non-terminal state. Returns true when an in-flight
// attempt blocked the insert.
func (r *GormRepo) CreateAttemptTx(tx *gorm.DB, attempt *models.PaymentAttempt) (bool, error) {
	var inflight int64
	err := tx.Model(&models.PaymentAttempt{}).
		Where("order_id = ? AND store_id = ? AND status IN ?",
			attempt.OrderID, attempt.StoreID,
			[]models.AttemptStatus{models.AttemptStatusInitiated, models.AttemptStatusAuthorized}).
		Count(&inflight).Error
	if err != nil {
		return false, err
	}
	if inflight > 0 {
		return true, nil
	}
	return false, tx.Create(attempt).Error
}

func (r *GormRepo) GetAttempt(ctx context.Context, storeID, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	return getAttempt(r.DB.WithContext(ctx), storeID, attemptID)
}

func getAttempt(db *gorm.DB, storeID, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := db.Where("id = ? AND store_id = ?", attemptID, storeID).First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *GormRepo) ListAttempts(ctx context.Context, storeID, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.DB.WithContext(ctx).
		Where("order_id = ? AND store_id = ?", orderID, storeID).
		Order("created_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// CASAttemptStatusTx is the conditional status flip linearizing concurrent
// operations on the same attempt: exactly one writer observes `from`.
func (r *GormRepo) CASAttemptStatusTx(tx *gorm.DB, storeID, attemptID uuid.UUID, from, to models.AttemptStatus, extra map[string]any) error {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.PaymentAttempt{}).
		Where("id = ? AND store_id = ? AND status = ?", attemptID, storeID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) AppendTransactionTx(tx *gorm.DB, txn *models.PaymentTransaction) error {
	return tx.Create(txn).Error
}

func (r *GormRepo) CountTransactions(ctx context.Context, attemptID uuid.UUID, txType models.TransactionType) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("attempt_id = ? AND type = ?", attemptID, txType).
		Count(&count).Error
	return count, err
}

func (r *GormRepo) SumTransactions(ctx context.Context, attemptID uuid.UUID, txType models.TransactionType) (int64, error) {
	return sumTransactions(r.DB.WithContext(ctx), attemptID, txType)
}

func sumTransactions(db *gorm.DB, attemptID uuid.UUID, txType models.TransactionType) (int64, error) {
	var sum int64
	err := db.Model(&models.PaymentTransaction{}).
		Where("attempt_id = ? AND type = ?", attemptID, txType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// RefundableTx derives the refundable balance from the transaction ledger.
// Never a stored counter, so it cannot drift.
func (r *GormRepo) RefundableTx(tx *gorm.DB, attemptID uuid.UUID) (int64, error) {
	captured, err := sumTransactions(tx, attemptID, models.TransactionCapture)
	if err != nil {
		return 0, err
	}
	refunded, err := sumTransactions(tx, attemptID, models.TransactionRefund)
	if err != nil {
		return 0, err
	}
	return captured - refunded, nil
}

// CapturedAcrossAttemptsTx sums CAPTURE and REFUND rows over every attempt of
// an order. Used to decide whether a refund covers the full captured amount.
func (r *GormRepo) CapturedAcrossAttemptsTx(tx *gorm.DB, storeID, orderID uuid.UUID) (captured int64, refunded int64, err error) {
	rows := []struct {
		Type  models.TransactionType
		Total int64
	}{}
	err = tx.Model(&models.PaymentTransaction{}).
		Select("payment_transactions.type AS type, COALESCE(SUM(payment_transactions.amount), 0) AS total").
		Joins("JOIN payment_attempts ON payment_attempts.id = payment_transactions.attempt_id").
		Where("payment_attempts.order_id = ? AND payment_attempts.store_id = ?", orderID, storeID).
		Group("payment_transactions.type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	for _, row := range rows {
		switch row.Type {
		case models.TransactionCapture:
			captured = row.Total
		case models.TransactionRefund:
			refunded = row.Total
		}
	}
	return captured, refunded, nil
}
