package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	return getProduct(r.DB.WithContext(ctx), storeID, productID)
}

func (r *GormRepo) GetProductTx(tx *gorm.DB, storeID, productID uuid.UUID) (*models.Product, error) {
	return getProduct(tx, storeID, productID)
}

func getProduct(db *gorm.DB, storeID, productID uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := db.Where("id = ? AND store_id = ?", productID, storeID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) GetVariant(ctx context.Context, storeID, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	return getVariant(r.DB.WithContext(ctx), storeID, productID, variantID)
}

func (r *GormRepo) GetVariantTx(tx *gorm.DB, storeID, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	return getVariant(tx, storeID, productID, variantID)
}

func getVariant(db *gorm.DB, storeID, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var v models.ProductVariant
	if err := db.Where("id = ? AND product_id = ? AND store_id = ?", variantID, productID, storeID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *GormRepo) GetDiscountCode(ctx context.Context, storeID uuid.UUID, code string) (*models.DiscountCode, error) {
	var d models.DiscountCode
	err := r.DB.WithContext(ctx).
		Where("store_id = ? AND code = ? AND active = ?", storeID, code, true).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}
