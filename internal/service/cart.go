package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvolkov/storecore/internal/models"
	"github.com/mvolkov/storecore/internal/repo"
)

// CartService mutates cart rows only; inventory is reserved at checkout, not
// at add-to-cart, so abandoned carts never hold stock.
type CartService struct {
	Repo *repo.GormRepo
}

type ResolvedItem struct {
	Item         models.CartItem `json:"item"`
	CurrentPrice int64           `json:"current_price"`
	CurrentStock int64           `json:"current_stock"`
}

type CartIssue struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Kind      string     `json:"kind"` // price_changed | insufficient_stock
	Detail    string     `json:"detail"`
}

type ResolvedCart struct {
	Items    []ResolvedItem `json:"items"`
	Subtotal int64          `json:"subtotal"`
	Issues   []CartIssue    `json:"issues"`
	Removed  []uuid.UUID    `json:"removed"`
}

func (s *CartService) AddItem(ctx context.Context, storeID uuid.UUID, ownerKey string, productID uuid.UUID, variantID *uuid.UUID, quantity int64) (*models.CartItem, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	}

	price, _, published, err := s.catalogState(ctx, storeID, productID, variantID)
	if err != nil {
		return nil, err
	}
	if !published {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}

	item := models.CartItem{
		StoreID:           storeID,
		OwnerKey:          ownerKey,
		ProductID:         productID,
		VariantID:         variantID,
		Quantity:          quantity,
		UnitPriceSnapshot: price,
	}
	if err := s.Repo.AddCartItem(ctx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CartService) SetQuantity(ctx context.Context, storeID uuid.UUID, ownerKey string, productID uuid.UUID, variantID *uuid.UUID, quantity int64) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	}

	item := models.CartItem{
		StoreID:   storeID,
		OwnerKey:  ownerKey,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}
	if err := s.Repo.SetCartItemQuantity(ctx, &item); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart item: %w", ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, storeID uuid.UUID, ownerKey string, productID uuid.UUID, variantID *uuid.UUID) error {
	err := s.Repo.RemoveCartItem(ctx, storeID, ownerKey, productID, variantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("cart item: %w", ErrNotFound)
	}
	return err
}

func (s *CartService) Clear(ctx context.Context, storeID uuid.UUID, ownerKey string) error {
	return s.Repo.ClearCart(ctx, storeID, ownerKey)
}

// Resolve re-prices and re-checks every cart line against the catalog
// without mutating the cart. Validation here is advisory; checkout re-runs
// it authoritatively inside its transaction.
func (s *CartService) Resolve(ctx context.Context, storeID uuid.UUID, ownerKey string) (*ResolvedCart, error) {
	items, err := s.Repo.GetCartItems(ctx, storeID, ownerKey)
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedCart{
		Items:   make([]ResolvedItem, 0, len(items)),
		Issues:  []CartIssue{},
		Removed: []uuid.UUID{},
	}

	for _, item := range items {
		price, stock, published, err := s.catalogState(ctx, storeID, item.ProductID, item.VariantID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				resolved.Removed = append(resolved.Removed, item.ProductID)
				continue
			}
			return nil, err
		}
		if !published {
			resolved.Removed = append(resolved.Removed, item.ProductID)
			continue
		}

		if price != item.UnitPriceSnapshot {
			resolved.Issues = append(resolved.Issues, CartIssue{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Kind:      "price_changed",
				Detail:    fmt.Sprintf("price changed from %d to %d", item.UnitPriceSnapshot, price),
			})
		}
		if stock < item.Quantity {
			resolved.Issues = append(resolved.Issues, CartIssue{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Kind:      "insufficient_stock",
				Detail:    fmt.Sprintf("requested %d, only %d in stock", item.Quantity, stock),
			})
		}

		resolved.Items = append(resolved.Items, ResolvedItem{
			Item:         item,
			CurrentPrice: price,
			CurrentStock: stock,
		})
		resolved.Subtotal += item.Quantity * price
	}

	return resolved, nil
}

func (s *CartService) catalogState(ctx context.Context, storeID, productID uuid.UUID, variantID *uuid.UUID) (price, stock int64, published bool, err error) {
	product, err := s.Repo.GetProduct(ctx, storeID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, false, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return 0, 0, false, err
	}
	if variantID == nil {
		return product.Price, product.Stock, product.IsPublished, nil
	}

	variant, err := s.Repo.GetVariant(ctx, storeID, productID, *variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, false, fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
		}
		return 0, 0, false, err
	}
	return variant.Price, variant.Stock, product.IsPublished, nil
}
