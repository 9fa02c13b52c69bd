package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvolkov/storecore/internal/models"
)

func TestInventoryAdjust_Restock(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	product := seedProduct(t, r.DB, storeID, 1000, 3)
	svc := &InventoryService{Repo: r}

	newStock, err := svc.Adjust(context.Background(), storeID, AdjustInput{
		ProductID: product.ID,
		Delta:     5,
		Reason:    models.ReasonRestock,
		ActorID:   "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), newStock)
	assert.Equal(t, int64(8), reloadProduct(t, r.DB, product.ID).Stock)

	total, entries, err := svc.History(context.Background(), storeID, product.ID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, int64(5), entries[0].Delta)
	assert.Equal(t, models.ReasonRestock, entries[0].Reason)
	assert.Equal(t, int64(8), entries[0].ResultingStock)
	assert.Equal(t, "admin-1", entries[0].ActorID)
}

func TestInventoryAdjust_InsufficientStock(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	product := seedProduct(t, r.DB, storeID, 1000, 3)
	svc := &InventoryService{Repo: r}

	_, err := svc.Adjust(context.Background(), storeID, AdjustInput{
		ProductID: product.ID,
		Delta:     -4,
		Reason:    models.ReasonManualAdjustment,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// The conditional update never went through, and no log entry was written.
	assert.Equal(t, int64(3), reloadProduct(t, r.DB, product.ID).Stock)
	total, _, err := svc.History(context.Background(), storeID, product.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestInventoryAdjust_Validation(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	svc := &InventoryService{Repo: r}

	_, err := svc.Adjust(context.Background(), storeID, AdjustInput{
		ProductID: uuid.New(), Delta: 0, Reason: models.ReasonRestock,
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Adjust(context.Background(), storeID, AdjustInput{
		ProductID: uuid.New(), Delta: 1, Reason: "SHRINKAGE",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Adjust(context.Background(), storeID, AdjustInput{
		Delta: 1, Reason: models.ReasonRestock,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestInventoryAdjust_UnknownProduct(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	svc := &InventoryService{Repo: r}

	_, err := svc.Adjust(context.Background(), storeID, AdjustInput{
		ProductID: uuid.New(),
		Delta:     1,
		Reason:    models.ReasonRestock,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryAdjust_TenantIsolation(t *testing.T) {
	r := newTestRepo(t)
	storeA := seedStore(t, r.DB)
	storeB := seedStore(t, r.DB)
	product := seedProduct(t, r.DB, storeA, 1000, 3)
	svc := &InventoryService{Repo: r}

	_, err := svc.Adjust(context.Background(), storeB, AdjustInput{
		ProductID: product.ID,
		Delta:     1,
		Reason:    models.ReasonRestock,
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(3), reloadProduct(t, r.DB, product.ID).Stock)
}

func TestInventoryAdjust_VariantStock(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	product := seedProduct(t, r.DB, storeID, 1000, 3)
	variant := seedVariant(t, r.DB, product, 1200, 2)
	svc := &InventoryService{Repo: r}

	newStock, err := svc.Adjust(context.Background(), storeID, AdjustInput{
		ProductID: product.ID,
		VariantID: &variant.ID,
		Delta:     -2,
		Reason:    models.ReasonManualAdjustment,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), newStock)

	// Parent product stock is untouched when a variant is adjusted.
	assert.Equal(t, int64(3), reloadProduct(t, r.DB, product.ID).Stock)

	var v models.ProductVariant
	require.NoError(t, r.DB.First(&v, "id = ?", variant.ID).Error)
	assert.Equal(t, int64(0), v.Stock)
}

func TestInventoryLedger_SumMatchesStock(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	product := seedProduct(t, r.DB, storeID, 1000, 10)
	svc := &InventoryService{Repo: r}

	deltas := []int64{5, -3, -2, 7, -1}
	for _, d := range deltas {
		reason := models.ReasonRestock
		if d < 0 {
			reason = models.ReasonManualAdjustment
		}
		_, err := svc.Adjust(context.Background(), storeID, AdjustInput{
			ProductID: product.ID,
			Delta:     d,
			Reason:    reason,
		})
		require.NoError(t, err)
	}

	total, entries, err := svc.History(context.Background(), storeID, product.ID, 0, 100)
	require.NoError(t, err)
	require.Equal(t, int64(len(deltas)), total)

	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	assert.Equal(t, reloadProduct(t, r.DB, product.ID).Stock, int64(10)+sum)
}

func TestInventoryHistory_Pagination(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	product := seedProduct(t, r.DB, storeID, 1000, 0)
	svc := &InventoryService{Repo: r}

	for i := 0; i < 5; i++ {
		_, err := svc.Adjust(context.Background(), storeID, AdjustInput{
			ProductID: product.ID,
			Delta:     1,
			Reason:    models.ReasonRestock,
		})
		require.NoError(t, err)
	}

	total, page, err := svc.History(context.Background(), storeID, product.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	total, page, err = svc.History(context.Background(), storeID, product.ID, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 1)
}

func TestInventoryLowStock(t *testing.T) {
	r := newTestRepo(t)
	storeID := seedStore(t, r.DB)
	svc := &InventoryService{Repo: r}

	low := models.Product{StoreID: storeID, Name: "low", Price: 100, Stock: 2, LowStockThreshold: 5, IsPublished: true}
	ok := models.Product{StoreID: storeID, Name: "ok", Price: 100, Stock: 50, LowStockThreshold: 5, IsPublished: true}
	require.NoError(t, r.DB.Create(&low).Error)
	require.NoError(t, r.DB.Create(&ok).Error)

	items, err := svc.LowStock(context.Background(), storeID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)
}
