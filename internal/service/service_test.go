package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
	"github.com/mvolkov/storecore/internal/provider"
	"github.com/mvolkov/storecore/internal/repo"
)

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return &repo.GormRepo{DB: db}
}

func seedStore(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()

	store := models.Store{ID: uuid.New(), Name: "test store", Currency: "USD"}
	require.NoError(t, db.Create(&store).Error)
	return store.ID
}

func seedProduct(t *testing.T, db *gorm.DB, storeID uuid.UUID, price, stock int64) *models.Product {
	t.Helper()

	product := models.Product{
		StoreID:     storeID,
		Name:        "test product",
		Price:       price,
		Stock:       stock,
		IsPublished: true,
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

func seedVariant(t *testing.T, db *gorm.DB, product *models.Product, price, stock int64) *models.ProductVariant {
	t.Helper()

	variant := models.ProductVariant{
		StoreID:   product.StoreID,
		ProductID: product.ID,
		Name:      "test variant",
		Price:     price,
		Stock:     stock,
	}
	require.NoError(t, db.Create(&variant).Error)
	return &variant
}

func reloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", id).Error)
	return &product
}

func testAddress() models.Address {
	return models.Address{
		Name:       "Ada Lovelace",
		Line1:      "12 Analytical Row",
		City:       "London",
		PostalCode: "EC1A 1BB",
		Country:    "GB",
	}
}

// fakeProvider returns canned results and records how often each operation
// ran, so tests can assert a provider call happened (or did not).
type fakeProvider struct {
	authorizeResult provider.Result
	captureResult   provider.Result
	refundResult    provider.Result

	authorizeErr error
	captureErr   error
	refundErr    error

	authorizeCalls int
	captureCalls   int
	refundCalls    int
}

func okProvider() *fakeProvider {
	ok := provider.Result{Success: true, ProviderReference: "prov-ref-1"}
	return &fakeProvider{authorizeResult: ok, captureResult: ok, refundResult: ok}
}

func (f *fakeProvider) Authorize(ctx context.Context, req provider.ChargeRequest) (provider.Result, error) {
	f.authorizeCalls++
	return f.authorizeResult, f.authorizeErr
}

func (f *fakeProvider) Capture(ctx context.Context, req provider.ChargeRequest) (provider.Result, error) {
	f.captureCalls++
	return f.captureResult, f.captureErr
}

func (f *fakeProvider) Refund(ctx context.Context, req provider.ChargeRequest) (provider.Result, error) {
	f.refundCalls++
	return f.refundResult, f.refundErr
}

// newCheckout wires a checkout service with flat pricing so totals in tests
// stay easy to compute: 10% tax, 500 standard shipping.
func newCheckout(r *repo.GormRepo) *CheckoutService {
	return &CheckoutService{
		Repo: r,
		Pricing: Pricing{
			TaxRateBP:        1000,
			ShippingStandard: 500,
			ShippingExpress:  1500,
			Currency:         "USD",
		},
	}
}

// placeOrder runs a real checkout for a single product line and returns the
// resulting PENDING order.
func placeOrder(t *testing.T, r *repo.GormRepo, storeID uuid.UUID, product *models.Product, quantity int64) *models.Order {
	t.Helper()

	order, err := newCheckout(r).Complete(context.Background(), storeID, uuid.New(), CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: product.ID, Quantity: quantity, UnitPrice: product.Price},
		},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)
	return order
}
