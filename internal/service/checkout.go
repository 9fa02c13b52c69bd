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
	"github.com/mvolkov/storecore/internal/notify"
	"github.com/mvolkov/storecore/internal/repo"
)

// Pricing holds the server-side pricing rules applied at checkout.
type Pricing struct {
	TaxRateBP        int64
	ShippingStandard int64
	ShippingExpress  int64
	Currency         string
}

func (p Pricing) shippingFor(method string) (int64, error) {
	switch method {
	case "standard", "":
		return p.ShippingStandard, nil
	case "express":
		return p.ShippingExpress, nil
	default:
		return 0, fmt.Errorf("%w: unknown shipping method %q", ErrValidation, method)
	}
}

type CheckoutItem struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int64
	UnitPrice int64 // price the buyer saw; any drift rejects the checkout
}

type CheckoutInput struct {
	OwnerKey        string // cart to clear on success
	Items           []CheckoutItem
	ShippingAddress models.Address
	BillingAddress  *models.Address
	ShippingMethod  string
	DiscountCode    string
}

// CheckoutService converts a validated cart into a persisted PENDING order,
// atomically reserving inventory. The order, its items, the stock decrements,
// the log entries and the cart clear all commit together or not at all.
type CheckoutService struct {
	Repo     *repo.GormRepo
	Pricing  Pricing
	Notifier *notify.Dispatcher
	Metrics  *metrics.Metrics
}

func (s *CheckoutService) Complete(ctx context.Context, storeID, customerID uuid.UUID, in CheckoutInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	seen := make(map[string]bool, len(in.Items))
	for i := range in.Items {
		if in.Items[i].ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if in.Items[i].Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
		key := in.Items[i].ProductID.String()
		if in.Items[i].VariantID != nil {
			key += "/" + in.Items[i].VariantID.String()
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate item line for product %s", ErrValidation, in.Items[i].ProductID)
		}
		seen[key] = true
	}
	if err := validateAddress(in.ShippingAddress); err != nil {
		return nil, err
	}
	if in.BillingAddress != nil {
		if err := validateAddress(*in.BillingAddress); err != nil {
			return nil, err
		}
	}
	shipping, err := s.Pricing.shippingFor(in.ShippingMethod)
	if err != nil {
		return nil, err
	}

	var discountBP int64
	if in.DiscountCode != "" {
		code, err := s.Repo.GetDiscountCode(ctx, storeID, in.DiscountCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: unknown discount code", ErrValidation)
			}
			return nil, err
		}
		discountBP = code.PercentBP
	}

	// Order id is generated before any write so every inventory log entry
	// carries a stable reference even if the transaction retries.
	orderID := uuid.New()

	var order *models.Order
	txErr := s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		orderNumber, err := s.Repo.NextOrderNumberTx(tx, storeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("store %s: %w", storeID, ErrNotFound)
			}
			return err
		}

		var subtotal int64
		orderItems := make([]models.OrderItem, 0, len(in.Items))

		for _, item := range in.Items {
			product, err := s.Repo.GetProductTx(tx, storeID, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
				}
				return err
			}
			if !product.IsPublished {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
			}

			currentPrice := product.Price
			name := product.Name
			if item.VariantID != nil {
				variant, err := s.Repo.GetVariantTx(tx, storeID, item.ProductID, *item.VariantID)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("variant %s: %w", item.VariantID, ErrNotFound)
					}
					return err
				}
				currentPrice = variant.Price
				name = product.Name + " / " + variant.Name
			}

			if currentPrice != item.UnitPrice {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrPriceChanged)
			}

			// Conditional decrement; loses the race => whole checkout aborts
			// and every decrement already applied in this tx rolls back.
			_, err = s.Repo.AdjustStockTx(tx, repo.StockAdjustment{
				StoreID:       storeID,
				ProductID:     item.ProductID,
				VariantID:     item.VariantID,
				Delta:         -item.Quantity,
				Reason:        models.ReasonOrderPlaced,
				ReferenceType: "order",
				ReferenceID:   orderID.String(),
				ActorID:       customerID.String(),
			})
			if err != nil {
				if errors.Is(err, repo.ErrStockConflict) {
					return fmt.Errorf("product %s: %w", item.ProductID, ErrOutOfStock)
				}
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
				}
				return err
			}

			lineTotal := item.Quantity * currentPrice
			subtotal += lineTotal
			orderItems = append(orderItems, models.OrderItem{
				OrderID:   orderID,
				StoreID:   storeID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Name:      name,
				Quantity:  item.Quantity,
				UnitPrice: currentPrice,
				LineTotal: lineTotal,
			})
		}

		discount := subtotal * discountBP / 10000
		tax := (subtotal - discount) * s.Pricing.TaxRateBP / 10000

		billing := in.ShippingAddress
		if in.BillingAddress != nil {
			billing = *in.BillingAddress
		}

		order = &models.Order{
			ID:              orderID,
			StoreID:         storeID,
			OrderNumber:     orderNumber,
			Status:          models.OrderStatusPending,
			CustomerID:      customerID,
			Subtotal:        subtotal,
			Tax:             tax,
			Shipping:        shipping,
			Discount:        discount,
			Total:           subtotal + tax + shipping - discount,
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  billing,
			Items:           orderItems,
		}
		if err := s.Repo.CreateOrderTx(tx, order); err != nil {
			return err
		}

		if in.OwnerKey != "" {
			if err := s.Repo.ClearCartTx(tx, storeID, in.OwnerKey); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.Metrics.CountCheckout("rejected")
		return nil, txErr
	}

	s.Metrics.CountCheckout("completed")
	logging.FromContext(ctx).Info("checkout_completed",
		"store_id", storeID,
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.Total,
	)
	s.Notifier.Notify(ctx, notify.EventOrderCreated, order.ID.String(), map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"store_id":     storeID,
		"total":        order.Total,
	})
	return order, nil
}

func validateAddress(a models.Address) error {
	if a.Name == "" || a.Line1 == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return fmt.Errorf("%w: address requires name, line1, city, postal_code and country", ErrValidation)
	}
	return nil
}
