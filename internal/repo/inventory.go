package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
)

// ErrStockConflict reports a conditional stock update that matched the row
// but lost the stock >= quantity check.
var ErrStockConflict = errors.New("stock conflict")

type StockAdjustment struct {
	StoreID       uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	Delta         int64
	Reason        models.StockReason
	ReferenceType string
	ReferenceID   string
	ActorID       string
}

// AdjustStockTx applies a signed stock delta with a single conditional
// UPDATE, then appends exactly one log entry in the same transaction. A
// negative delta that would push stock below zero touches no rows and
// returns ErrStockConflict; a row that does not exist for the store returns
// gorm.ErrRecordNotFound.
func (r *GormRepo) AdjustStockTx(tx *gorm.DB, a StockAdjustment) (int64, error) {
	var (
		newStock int64
		err      error
	)
	if a.VariantID != nil {
		newStock, err = adjustVariantStock(tx, a)
	} else {
		newStock, err = adjustProductStock(tx, a)
	}
	if err != nil {
		return 0, err
	}

	entry := models.InventoryLogEntry{
		StoreID:        a.StoreID,
		ProductID:      a.ProductID,
		VariantID:      a.VariantID,
		Delta:          a.Delta,
		Reason:         a.Reason,
		ReferenceType:  a.ReferenceType,
		ReferenceID:    a.ReferenceID,
		ResultingStock: newStock,
		ActorID:        a.ActorID,
	}
	if a.VariantID != nil {
		entry.VariantKey = a.VariantID.String()
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	return newStock, nil
}

func adjustProductStock(tx *gorm.DB, a StockAdjustment) (int64, error) {
	q := tx.Model(&models.Product{}).
		Where("id = ? AND store_id = ?", a.ProductID, a.StoreID)
	if a.Delta < 0 {
		q = q.Where("stock >= ?", -a.Delta)
	}
	res := q.UpdateColumn("stock", gorm.Expr("stock + ?", a.Delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var p models.Product
		if err := tx.Where("id = ? AND store_id = ?", a.ProductID, a.StoreID).First(&p).Error; err != nil {
			return 0, err
		}
		return 0, ErrStockConflict
	}

	var p models.Product
	if err := tx.Where("id = ? AND store_id = ?", a.ProductID, a.StoreID).First(&p).Error; err != nil {
		return 0, err
	}
	return p.Stock, nil
}

func adjustVariantStock(tx *gorm.DB, a StockAdjustment) (int64, error) {
	q := tx.Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ? AND store_id = ?", a.VariantID, a.ProductID, a.StoreID)
	if a.Delta < 0 {
		q = q.Where("stock >= ?", -a.Delta)
	}
	res := q.UpdateColumn("stock", gorm.Expr("stock + ?", a.Delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var v models.ProductVariant
		if err := tx.Where("id = ? AND product_id = ? AND store_id = ?", a.VariantID, a.ProductID, a.StoreID).First(&v).Error; err != nil {
			return 0, err
		}
		return 0, ErrStockConflict
	}

	var v models.ProductVariant
	if err := tx.Where("id = ? AND product_id = ? AND store_id = ?", a.VariantID, a.ProductID, a.StoreID).First(&v).Error; err != nil {
		return 0, err
	}
	return v.Stock, nil
}

// HasRestoreEntriesTx reports whether a restoring adjustment already
// references this order, regardless of whether it came from a cancel or a
// refund. Used as the exactly-once guard before compensating inventory.
func (r *GormRepo) HasRestoreEntriesTx(tx *gorm.DB, storeID uuid.UUID, orderID string) (bool, error) {
	var count int64
	err := tx.Model(&models.InventoryLogEntry{}).
		Where("store_id = ? AND reference_type = ? AND reference_id = ? AND reason IN ?",
			storeID, "order", orderID,
			[]models.StockReason{models.ReasonOrderCanceled, models.ReasonOrderRefunded}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) LowStockProducts(ctx context.Context, storeID uuid.UUID) ([]models.Product, error) {
	var items []models.Product
	err := r.DB.WithContext(ctx).
		Where("store_id = ? AND stock <= low_stock_threshold", storeID).
		Order("stock ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) InventoryHistory(ctx context.Context, storeID, productID uuid.UUID, offset, limit int) (int64, []models.InventoryLogEntry, error) {
	q := r.DB.WithContext(ctx).Model(&models.InventoryLogEntry{}).
		Where("store_id = ? AND product_id = ?", storeID, productID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var entries []models.InventoryLogEntry
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return 0, nil, err
	}
	return total, entries, nil
}
