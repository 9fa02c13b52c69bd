package transport

import (
	"github.com/google/uuid"

	"github.com/mvolkov/storecore/internal/models"
)

type AdjustStockRequest struct {
	ProductID     uuid.UUID  `json:"product_id"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	Delta         int64      `json:"delta"`
	Reason        string     `json:"reason"`
	ReferenceType string     `json:"reference_type,omitempty"`
	ReferenceID   string     `json:"reference_id,omitempty"`
}

type AdjustStockResponse struct {
	NewStock int64 `json:"new_stock"`
}

type CartItemRequest struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int64      `json:"quantity"`
}

type CheckoutItem struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int64      `json:"quantity"`
	UnitPrice int64      `json:"unit_price"`
}

type CheckoutRequest struct {
	Items           []CheckoutItem  `json:"items"`
	ShippingAddress models.Address  `json:"shipping_address"`
	BillingAddress  *models.Address `json:"billing_address,omitempty"`
	ShippingMethod  string          `json:"shipping_method"`
	DiscountCode    string          `json:"discount_code,omitempty"`
}

type TransitionRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
}

type AuthorizeRequest struct {
	OrderID  uuid.UUID `json:"order_id"`
	Amount   int64     `json:"amount"`
	Provider string    `json:"provider"`
}

type CaptureRequest struct {
	Amount int64 `json:"amount,omitempty"`
}

type RefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type RefundableResponse struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	Refundable int64     `json:"refundable"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

type Paginated struct {
	Data any      `json:"data"`
	Meta PageMeta `json:"meta"`
}

func NewPaginated(data any, page, limit, offset int, total int64) Paginated {
	return Paginated{
		Data: data,
		Meta: PageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	}
}
