package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
)

func (r *GormRepo) CreateOrderTx(tx *gorm.DB, order *models.Order) error {
	return tx.Create(order).Error
}

// NextOrderNumberTx increments the per-store sequence and renders it as an
// order number, inside the caller's transaction.
func (r *GormRepo) NextOrderNumberTx(tx *gorm.DB, storeID uuid.UUID) (string, error) {
	res := tx.Model(&models.Store{}).
		Where("id = ?", storeID).
		UpdateColumn("order_seq", gorm.Expr("order_seq + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", gorm.ErrRecordNotFound
	}

	var store models.Store
	if err := tx.Where("id = ?", storeID).First(&store).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%06d", store.OrderSeq), nil
}

func (r *GormRepo) GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*models.Order, error) {
	return getOrder(r.DB.WithContext(ctx), storeID, orderID)
}

func (r *GormRepo) GetOrderTx(tx *gorm.DB, storeID, orderID uuid.UUID) (*models.Order, error) {
	return getOrder(tx, storeID, orderID)
}

func getOrder(db *gorm.DB, storeID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := db.Preload("Items").
		Where("id = ? AND store_id = ?", orderID, storeID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, storeID uuid.UUID, customerID *uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("store_id = ?", storeID)
	if customerID != nil {
		q = q.Where("customer_id = ?", customerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// CASOrderStatusTx flips the order status only if the current status still
// matches. Returns gorm.ErrRecordNotFound when the compare-and-swap lost,
// so two concurrent transitions on the same order race safely.
func (r *GormRepo) CASOrderStatusTx(tx *gorm.DB, storeID, orderID uuid.UUID, from, to models.OrderStatus) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND store_id = ? AND status = ?", orderID, storeID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SetOrderTrackingTx(tx *gorm.DB, storeID, orderID uuid.UUID, tracking models.Tracking) error {
	return tx.Model(&models.Order{}).
		Where("id = ? AND store_id = ?", orderID, storeID).
		Updates(map[string]any{
			"tracking_number": tracking.Number,
			"tracking_url":    tracking.URL,
		}).Error
}
