package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the tenant root. Every other entity carries StoreID and every
// query must filter by it.
type Store struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Name      string    `gorm:"not null"                  json:"name"`
	Currency  string    `gorm:"size:3;default:'USD'"      json:"currency"`
	OrderSeq  int64     `gorm:"not null;default:0"        json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	StoreID           uuid.UUID `gorm:"type:uuid;index;not null"   json:"store_id"`
	Name              string    `gorm:"not null"                   json:"name"`
	Description       string    `json:"description"`
	Price             int64     `gorm:"not null"                   json:"price"`
	Stock             int64     `gorm:"not null;default:0;check:stock>=0" json:"stock"`
	LowStockThreshold int64     `gorm:"not null;default:0"         json:"low_stock_threshold"`
	IsPublished       bool      `gorm:"not null;default:true"      json:"is_published"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type ProductVariant struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	StoreID           uuid.UUID `gorm:"type:uuid;index;not null"   json:"store_id"`
	ProductID         uuid.UUID `gorm:"type:uuid;index;not null"   json:"product_id"`
	Name              string    `gorm:"not null"                   json:"name"`
	Price             int64     `gorm:"not null"                   json:"price"`
	Stock             int64     `gorm:"not null;default:0;check:stock>=0" json:"stock"`
	LowStockThreshold int64     `gorm:"not null;default:0"         json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type StockReason string

const (
	ReasonOrderPlaced      StockReason = "ORDER_PLACED"
	ReasonOrderCanceled    StockReason = "ORDER_CANCELED"
	ReasonOrderRefunded    StockReason = "ORDER_REFUNDED"
	ReasonManualAdjustment StockReason = "MANUAL_ADJUSTMENT"
	ReasonRestock          StockReason = "RESTOCK"
)

// InventoryLogEntry is append-only: rows are never updated or deleted.
// The unique index doubles as the durable exactly-once guard for the
// cancel/refund restorations that reference an order.
type InventoryLogEntry struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey"  json:"id"`
	StoreID        uuid.UUID   `gorm:"type:uuid;index;not null;uniqueIndex:idx_inventory_ref,priority:1" json:"store_id"`
	ProductID      uuid.UUID   `gorm:"type:uuid;index;not null;uniqueIndex:idx_inventory_ref,priority:5" json:"product_id"`
	VariantID      *uuid.UUID  `gorm:"type:uuid"             json:"variant_id,omitempty"`
	VariantKey     string      `gorm:"not null;default:'';uniqueIndex:idx_inventory_ref,priority:6" json:"-"`
	Delta          int64       `gorm:"not null"              json:"delta"`
	Reason         StockReason `gorm:"not null;uniqueIndex:idx_inventory_ref,priority:4" json:"reason"`
	ReferenceType  string      `gorm:"not null;uniqueIndex:idx_inventory_ref,priority:2" json:"reference_type"`
	ReferenceID    string      `gorm:"not null;uniqueIndex:idx_inventory_ref,priority:3" json:"reference_id"`
	ResultingStock int64       `gorm:"not null"              json:"resulting_stock"`
	ActorID        string      `json:"actor_id"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (e *InventoryLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CartItem rows are keyed by (store, owner, product, variant). OwnerKey is
// "user:<uuid>" for authenticated carts or "session:<token>" for anonymous
// ones, so one open cart exists per key.
type CartItem struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID           uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_cart_owner_product,priority:1;not null" json:"store_id"`
	OwnerKey          string     `gorm:"uniqueIndex:idx_cart_owner_product,priority:2;not null" json:"owner_key"`
	ProductID         uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_cart_owner_product,priority:3;not null" json:"product_id"`
	VariantID         *uuid.UUID `gorm:"type:uuid"            json:"variant_id,omitempty"`
	VariantKey        string     `gorm:"not null;default:'';uniqueIndex:idx_cart_owner_product,priority:4" json:"-"`
	Quantity          int64      `gorm:"default:1;check:quantity>0" json:"quantity"`
	UnitPriceSnapshot int64      `gorm:"not null"             json:"unit_price_snapshot"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.VariantID != nil {
		c.VariantKey = c.VariantID.String()
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusPaid          OrderStatus = "PAID"
	OrderStatusProcessing    OrderStatus = "PROCESSING"
	OrderStatusShipped       OrderStatus = "SHIPPED"
	OrderStatusDelivered     OrderStatus = "DELIVERED"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
	OrderStatusCanceled      OrderStatus = "CANCELED"
	OrderStatusRefunded      OrderStatus = "REFUNDED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled || s == OrderStatusRefunded
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID         uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_store_order_number,priority:1" json:"store_id"`
	OrderNumber     string      `gorm:"not null;uniqueIndex:idx_store_order_number,priority:2" json:"order_number"`
	Status          OrderStatus `gorm:"not null;index"       json:"status"`
	CustomerID      uuid.UUID   `gorm:"type:uuid;index;not null" json:"customer_id"`
	Subtotal        int64       `gorm:"not null"             json:"subtotal"`
	Tax             int64       `gorm:"not null"             json:"tax"`
	Shipping        int64       `gorm:"not null"             json:"shipping"`
	Discount        int64       `gorm:"not null"             json:"discount"`
	Total           int64       `gorm:"not null"             json:"total"`
	ShippingAddress Address     `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	BillingAddress  Address     `gorm:"embedded;embeddedPrefix:bill_" json:"billing_address"`
	Tracking        *Tracking   `gorm:"embedded;embeddedPrefix:tracking_" json:"tracking,omitempty"`
	Items           []OrderItem `gorm:"foreignKey:OrderID"   json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Tracking is attached on SHIPPED/DELIVERED transitions; pure metadata.
type Tracking struct {
	Number string `json:"number"`
	URL    string `json:"url,omitempty"`
}

type OrderItem struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"order_id"`
	StoreID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"store_id"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null"   json:"product_id"`
	VariantID *uuid.UUID `gorm:"type:uuid"            json:"variant_id,omitempty"`
	Name      string     `gorm:"not null"             json:"name"`
	Quantity  int64      `gorm:"not null;check:quantity>0" json:"quantity"`
	UnitPrice int64      `gorm:"not null"             json:"unit_price"`
	LineTotal int64      `gorm:"not null"             json:"line_total"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type AttemptStatus string

const (
	AttemptStatusInitiated         AttemptStatus = "INITIATED"
	AttemptStatusAuthorized        AttemptStatus = "AUTHORIZED"
	AttemptStatusCaptured          AttemptStatus = "CAPTURED"
	AttemptStatusPartiallyRefunded AttemptStatus = "PARTIALLY_REFUNDED"
	AttemptStatusRefunded          AttemptStatus = "REFUNDED"
	AttemptStatusFailed            AttemptStatus = "FAILED"
)

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusRefunded || s == AttemptStatusFailed
}

type PaymentAttempt struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID           uuid.UUID     `gorm:"type:uuid;index;not null" json:"store_id"`
	OrderID           uuid.UUID     `gorm:"type:uuid;index;not null" json:"order_id"`
	Provider          string        `gorm:"not null"             json:"provider"`
	ProviderReference string        `json:"provider_reference,omitempty"`
	Status            AttemptStatus `gorm:"not null;index"       json:"status"`
	Amount            int64         `gorm:"not null"             json:"amount"`
	Currency          string        `gorm:"size:3;not null"      json:"currency"`
	FailureReason     string        `json:"failure_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (a *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type TransactionType string

const (
	TransactionAuthorize TransactionType = "AUTHORIZE"
	TransactionCapture   TransactionType = "CAPTURE"
	TransactionRefund    TransactionType = "REFUND"
)

// PaymentTransaction is an immutable ledger row per financial event on an
// attempt. Balances (refundable amount) are always derived from these rows,
// never stored.
type PaymentTransaction struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID           uuid.UUID       `gorm:"type:uuid;index;not null" json:"store_id"`
	AttemptID         uuid.UUID       `gorm:"type:uuid;index;not null" json:"attempt_id"`
	Type              TransactionType `gorm:"not null"             json:"type"`
	Amount            int64           `gorm:"not null"             json:"amount"`
	Currency          string          `gorm:"size:3;not null"      json:"currency"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (t *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// DiscountCode is the minimal server-side pricing rule consulted at checkout;
// client-submitted totals are never trusted.
type DiscountCode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_store_code,priority:1;not null" json:"store_id"`
	Code      string    `gorm:"uniqueIndex:idx_store_code,priority:2;not null" json:"code"`
	PercentBP int64     `gorm:"not null"             json:"percent_bp"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *DiscountCode) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// All returns every model for AutoMigrate.
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&ProductVariant{},
		&InventoryLogEntry{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&PaymentAttempt{},
		&PaymentTransaction{},
		&DiscountCode{},
	}
}
