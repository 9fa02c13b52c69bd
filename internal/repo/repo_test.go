package repo

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return &GormRepo{DB: db}
}

func seed(t *testing.T, db *gorm.DB, stock int64) (uuid.UUID, *models.Product) {
	t.Helper()

	store := models.Store{ID: uuid.New(), Name: "s"}
	require.NoError(t, db.Create(&store).Error)
	product := models.Product{StoreID: store.ID, Name: "p", Price: 100, Stock: stock, IsPublished: true}
	require.NoError(t, db.Create(&product).Error)
	return store.ID, &product
}

func TestAdjustStockTx_ConflictOnUnderflow(t *testing.T) {
	r := newTestRepo(t)
	storeID, product := seed(t, r.DB, 2)

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		_, err := r.AdjustStockTx(tx, StockAdjustment{
			StoreID:       storeID,
			ProductID:     product.ID,
			Delta:         -3,
			Reason:        models.ReasonManualAdjustment,
			ReferenceType: "manual",
			ReferenceID:   uuid.NewString(),
		})
		return err
	})
	require.ErrorIs(t, err, ErrStockConflict)
}

func TestAdjustStockTx_DuplicateReferenceRejected(t *testing.T) {
	r := newTestRepo(t)
	storeID, product := seed(t, r.DB, 10)
	orderRef := uuid.NewString()

	adjust := func() error {
		return r.DB.Transaction(func(tx *gorm.DB) error {
			_, err := r.AdjustStockTx(tx, StockAdjustment{
				StoreID:       storeID,
				ProductID:     product.ID,
				Delta:         1,
				Reason:        models.ReasonOrderCanceled,
				ReferenceType: "order",
				ReferenceID:   orderRef,
			})
			return err
		})
	}

	require.NoError(t, adjust())

	// The log's unique reference index is the durable backstop: replaying the
	// same restoration cannot write a second entry or move stock again.
	require.Error(t, adjust())

	var p models.Product
	require.NoError(t, r.DB.First(&p, "id = ?", product.ID).Error)
	assert.Equal(t, int64(11), p.Stock)
}

func TestHasRestoreEntriesTx(t *testing.T) {
	r := newTestRepo(t)
	storeID, product := seed(t, r.DB, 10)
	orderRef := uuid.NewString()

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		found, err := r.HasRestoreEntriesTx(tx, storeID, orderRef)
		require.NoError(t, err)
		assert.False(t, found)

		_, err = r.AdjustStockTx(tx, StockAdjustment{
			StoreID:       storeID,
			ProductID:     product.ID,
			Delta:         2,
			Reason:        models.ReasonOrderRefunded,
			ReferenceType: "order",
			ReferenceID:   orderRef,
		})
		require.NoError(t, err)

		found, err = r.HasRestoreEntriesTx(tx, storeID, orderRef)
		require.NoError(t, err)
		assert.True(t, found)
		return nil
	})
	require.NoError(t, err)
}

func TestCASOrderStatusTx_LinearizesWriters(t *testing.T) {
	r := newTestRepo(t)
	storeID, _ := seed(t, r.DB, 10)

	order := models.Order{
		ID:          uuid.New(),
		StoreID:     storeID,
		OrderNumber: "ORD-000001",
		Status:      models.OrderStatusPending,
		CustomerID:  uuid.New(),
	}
	require.NoError(t, r.DB.Create(&order).Error)

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		return r.CASOrderStatusTx(tx, storeID, order.ID, models.OrderStatusPending, models.OrderStatusPaid)
	})
	require.NoError(t, err)

	// The second writer still holds the stale PENDING view and must lose.
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		return r.CASOrderStatusTx(tx, storeID, order.ID, models.OrderStatusPending, models.OrderStatusCanceled)
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var got models.Order
	require.NoError(t, r.DB.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
}

func TestNextOrderNumberTx_PerStoreSequence(t *testing.T) {
	r := newTestRepo(t)
	storeA, _ := seed(t, r.DB, 10)
	storeB, _ := seed(t, r.DB, 10)

	next := func(storeID uuid.UUID) string {
		var n string
		err := r.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			n, err = r.NextOrderNumberTx(tx, storeID)
			return err
		})
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, "ORD-000001", next(storeA))
	assert.Equal(t, "ORD-000002", next(storeA))
	assert.Equal(t, "ORD-000001", next(storeB))
}

func TestCreateAttemptTx_BlocksInflight(t *testing.T) {
	r := newTestRepo(t)
	storeID, _ := seed(t, r.DB, 10)
	orderID := uuid.New()

	create := func(status models.AttemptStatus) (bool, error) {
		attempt := &models.PaymentAttempt{
			StoreID:  storeID,
			OrderID:  orderID,
			Provider: "cardgate",
			Status:   status,
			Amount:   100,
			Currency: "USD",
		}
		var blocked bool
		err := r.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			blocked, err = r.CreateAttemptTx(tx, attempt)
			return err
		})
		return blocked, err
	}

	blocked, err := create(models.AttemptStatusInitiated)
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = create(models.AttemptStatusInitiated)
	require.NoError(t, err)
	assert.True(t, blocked)

	// Resolve the open attempt; FAILED is terminal and stops blocking.
	require.NoError(t, r.DB.Model(&models.PaymentAttempt{}).
		Where("order_id = ?", orderID).
		Update("status", models.AttemptStatusFailed).Error)

	blocked, err = create(models.AttemptStatusInitiated)
	require.NoError(t, err)
	assert.False(t, blocked)
}
