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
	"github.com/mvolkov/storecore/internal/repo"
)

// InventoryService owns the per-product stock counters and the append-only
// adjustment log. All stock mutations in the system go through Adjust (or
// its in-transaction form used by checkout and order compensation).
type InventoryService struct {
	Repo    *repo.GormRepo
	Metrics *metrics.Metrics
}

type AdjustInput struct {
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	Delta         int64
	Reason        models.StockReason
	ReferenceType string
	ReferenceID   string
	ActorID       string
}

var validReasons = map[models.StockReason]bool{
	models.ReasonOrderPlaced:      true,
	models.ReasonOrderCanceled:    true,
	models.ReasonOrderRefunded:    true,
	models.ReasonManualAdjustment: true,
	models.ReasonRestock:          true,
}

func (s *InventoryService) Adjust(ctx context.Context, storeID uuid.UUID, in AdjustInput) (int64, error) {
	if in.Delta == 0 {
		return 0, fmt.Errorf("%w: delta must be non-zero", ErrValidation)
	}
	if !validReasons[in.Reason] {
		return 0, fmt.Errorf("%w: unknown reason %q", ErrValidation, in.Reason)
	}
	if in.ProductID == uuid.Nil {
		return 0, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if in.ReferenceType == "" {
		in.ReferenceType = "manual"
	}
	if in.ReferenceID == "" {
		// Manual adjustments get a fresh reference so the append-only log's
		// uniqueness guard never collides across repeated adjustments.
		in.ReferenceID = uuid.NewString()
	}

	var newStock int64
	err := s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		newStock, err = s.Repo.AdjustStockTx(tx, repo.StockAdjustment{
			StoreID:       storeID,
			ProductID:     in.ProductID,
			VariantID:     in.VariantID,
			Delta:         in.Delta,
			Reason:        in.Reason,
			ReferenceType: in.ReferenceType,
			ReferenceID:   in.ReferenceID,
			ActorID:       in.ActorID,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("product %s: %w", in.ProductID, ErrNotFound)
		}
		if errors.Is(err, repo.ErrStockConflict) {
			s.Metrics.CountStockConflict()
			return 0, fmt.Errorf("product %s: %w", in.ProductID, ErrInsufficientStock)
		}
		return 0, err
	}

	logging.FromContext(ctx).Info("stock_adjusted",
		"store_id", storeID,
		"product_id", in.ProductID,
		"delta", in.Delta,
		"reason", in.Reason,
		"new_stock", newStock,
	)
	return newStock, nil
}

func (s *InventoryService) LowStock(ctx context.Context, storeID uuid.UUID) ([]models.Product, error) {
	return s.Repo.LowStockProducts(ctx, storeID)
}

func (s *InventoryService) History(ctx context.Context, storeID, productID uuid.UUID, offset, limit int) (int64, []models.InventoryLogEntry, error) {
	if productID == uuid.Nil {
		return 0, nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	return s.Repo.InventoryHistory(ctx, storeID, productID, offset, limit)
}
