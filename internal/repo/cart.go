package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
)

func (r *GormRepo) GetCartItems(ctx context.Context, storeID uuid.UUID, ownerKey string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB.WithContext(ctx).
		Where("store_id = ? AND owner_key = ?", storeID, ownerKey).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddCartItem merges the quantity into an existing row for the same
// (owner, product, variant) key or creates a new one.
func (r *GormRepo) AddCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.CartItem{}).
			Where("store_id = ? AND owner_key = ? AND product_id = ?", item.StoreID, item.OwnerKey, item.ProductID)
		if item.VariantID != nil {
			q = q.Where("variant_id = ?", item.VariantID)
		} else {
			q = q.Where("variant_id IS NULL")
		}
		res := q.UpdateColumn("quantity", gorm.Expr("quantity + ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return cartItemRow(tx, item)
		}
		return tx.Create(item).Error
	})
}

func (r *GormRepo) SetCartItemQuantity(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.CartItem{}).
			Where("store_id = ? AND owner_key = ? AND product_id = ?", item.StoreID, item.OwnerKey, item.ProductID)
		if item.VariantID != nil {
			q = q.Where("variant_id = ?", item.VariantID)
		} else {
			q = q.Where("variant_id IS NULL")
		}
		res := q.UpdateColumn("quantity", item.Quantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return cartItemRow(tx, item)
	})
}

func cartItemRow(tx *gorm.DB, item *models.CartItem) error {
	q := tx.Where("store_id = ? AND owner_key = ? AND product_id = ?", item.StoreID, item.OwnerKey, item.ProductID)
	if item.VariantID != nil {
		q = q.Where("variant_id = ?", item.VariantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	return q.First(item).Error
}

func (r *GormRepo) RemoveCartItem(ctx context.Context, storeID uuid.UUID, ownerKey string, productID uuid.UUID, variantID *uuid.UUID) error {
	q := r.DB.WithContext(ctx).
		Where("store_id = ? AND owner_key = ? AND product_id = ?", storeID, ownerKey, productID)
	if variantID != nil {
		q = q.Where("variant_id = ?", variantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	res := q.Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, storeID uuid.UUID, ownerKey string) error {
	return r.DB.WithContext(ctx).
		Where("store_id = ? AND owner_key = ?", storeID, ownerKey).
		Delete(&models.CartItem{}).Error
}

func (r *GormRepo) ClearCartTx(tx *gorm.DB, storeID uuid.UUID, ownerKey string) error {
	return tx.
		Where("store_id = ? AND owner_key = ?", storeID, ownerKey).
		Delete(&models.CartItem{}).Error
}
