package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
	"github.com/mvolkov/storecore/internal/provider"
	"github.com/mvolkov/storecore/internal/repo"
	"github.com/mvolkov/storecore/internal/service"
)

var testSecret = []byte("test-jwt-secret")

type stubProvider struct {
	result provider.Result
}

func (s *stubProvider) Authorize(ctx context.Context, req provider.ChargeRequest) (provider.Result, error) {
	return s.result, nil
}

func (s *stubProvider) Capture(ctx context.Context, req provider.ChargeRequest) (provider.Result, error) {
	return s.result, nil
}

func (s *stubProvider) Refund(ctx context.Context, req provider.ChargeRequest) (provider.Result, error) {
	return s.result, nil
}

type testEnv struct {
	E       *echo.Echo
	DB      *gorm.DB
	Repo    *repo.GormRepo
	StoreID uuid.UUID
	UserID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	store := models.Store{ID: uuid.New(), Name: "test store", Currency: "USD"}
	require.NoError(t, db.Create(&store).Error)

	r := &repo.GormRepo{DB: db}
	orders := &service.OrderService{Repo: r}
	payments := &service.PaymentService{
		Repo:     r,
		Provider: &stubProvider{result: provider.Result{Success: true, ProviderReference: "ref-1"}},
		Orders:   orders,
		Currency: "USD",
	}

	e := echo.New()
	Register(e, &Deps{
		InventoryHandler: &InventoryHTTP{Svc: &service.InventoryService{Repo: r}},
		CartHandler:      &CartHTTP{Svc: &service.CartService{Repo: r}},
		CheckoutHandler: &CheckoutHTTP{Svc: &service.CheckoutService{
			Repo:    r,
			Pricing: service.Pricing{TaxRateBP: 1000, ShippingStandard: 500, ShippingExpress: 1500, Currency: "USD"},
		}},
		OrderHandler:   &OrderHTTP{Svc: orders, Payment: payments},
		PaymentHandler: &PaymentHTTP{Svc: payments},
		JWTSecret:      testSecret,
	})

	return &testEnv{E: e, DB: db, Repo: r, StoreID: store.ID, UserID: uuid.New()}
}

func (env *testEnv) token(t *testing.T, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":      env.UserID.String(),
		"store_id": env.StoreID.String(),
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) seedProduct(t *testing.T, price, stock int64) *models.Product {
	t.Helper()

	product := models.Product{
		StoreID:     env.StoreID,
		Name:        "test product",
		Price:       price,
		Stock:       stock,
		IsPublished: true,
	}
	require.NoError(t, env.DB.Create(&product).Error)
	return &product
}

func checkoutBody(product *models.Product, quantity int64) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"product_id": product.ID, "quantity": quantity, "unit_price": product.Price},
		},
		"shipping_address": map[string]any{
			"name":        "Ada Lovelace",
			"line1":       "12 Analytical Row",
			"city":        "London",
			"postal_code": "EC1A 1BB",
			"country":     "GB",
		},
	}
}

func TestInventoryAdjustEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, 3)
	admin := env.token(t, "admin")

	rec := env.do(t, http.MethodPost, "/inventory/adjust", admin, map[string]any{
		"product_id": product.ID,
		"delta":      5,
		"reason":     "RESTOCK",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		NewStock int64 `json:"new_stock"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(8), resp.NewStock)

	rec = env.do(t, http.MethodPost, "/inventory/adjust", admin, map[string]any{
		"product_id": product.ID,
		"delta":      -100,
		"reason":     "MANUAL_ADJUSTMENT",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInventoryAdjustRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, 3)

	rec := env.do(t, http.MethodPost, "/inventory/adjust", env.token(t, "user"), map[string]any{
		"product_id": product.ID,
		"delta":      1,
		"reason":     "RESTOCK",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/inventory/adjust", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnonymousCartSession(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 2500, 10)

	add := func() *httptest.ResponseRecorder {
		raw, err := json.Marshal(map[string]any{"product_id": product.ID, "quantity": 2})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(string(raw)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-Session-Token", "anon-123")
		req.Header.Set("X-Store-ID", env.StoreID.String())
		rec := httptest.NewRecorder()
		env.E.ServeHTTP(rec, req)
		return rec
	}

	rec := add()
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Session-Token", "anon-123")
	req.Header.Set("X-Store-ID", env.StoreID.String())
	rec = httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart service.ResolvedCart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "session:anon-123", cart.Items[0].Item.OwnerKey)
	assert.Equal(t, int64(5000), cart.Subtotal)
}

func TestCartErrorsNeverLeakPersistenceDetails(t *testing.T) {
	env := newTestEnv(t)
	user := env.token(t, "user")

	require.NoError(t, env.DB.Migrator().DropTable(&models.CartItem{}))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodDelete, "/cart"},
	} {
		rec := env.do(t, tc.method, tc.path, user, nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "internal error")
		assert.NotContains(t, rec.Body.String(), "no such table")
	}
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 10000, 5)
	user := env.token(t, "user")
	admin := env.token(t, "admin")

	rec := env.do(t, http.MethodPost, "/checkout", user, checkoutBody(product, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "ORD-000001", order.OrderNumber)
	assert.Equal(t, int64(11500), order.Total)

	rec = env.do(t, http.MethodPost, "/payments/authorize", user, map[string]any{
		"order_id": order.ID,
		"amount":   order.Total,
		"provider": "cardgate",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var attempt models.PaymentAttempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attempt))
	assert.Equal(t, models.AttemptStatusAuthorized, attempt.Status)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/payments/%s/capture", attempt.ID), admin, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/orders/%s", order.ID), user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paid models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, models.OrderStatusPaid, paid.Status)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/payments/%s/refundable", attempt.ID), user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var refundable struct {
		Refundable int64 `json:"refundable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refundable))
	assert.Equal(t, order.Total, refundable.Refundable)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/orders/%s/payments", order.ID), user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var attempts []models.PaymentAttempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptStatusCaptured, attempts[0].Status)
}

func TestOrderTransitionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, 5)
	user := env.token(t, "user")
	admin := env.token(t, "admin")

	rec := env.do(t, http.MethodPost, "/checkout", user, checkoutBody(product, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	// Transitions are an admin surface.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/orders/%s/transition", order.ID), user, map[string]any{"status": "CANCELED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/orders/%s/transition", order.ID), admin, map[string]any{"status": "SHIPPED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/orders/%s/transition", order.ID), admin, map[string]any{"status": "CANCELED"})
	require.Equal(t, http.StatusOK, rec.Code)

	var product2 models.Product
	require.NoError(t, env.DB.First(&product2, "id = ?", product.ID).Error)
	assert.Equal(t, int64(5), product2.Stock)
}

func TestCheckoutPriceDriftEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, 5)
	user := env.token(t, "user")

	body := checkoutBody(product, 1)
	body["items"].([]map[string]any)[0]["unit_price"] = 900
	rec := env.do(t, http.MethodPost, "/checkout", user, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
