package repo

import (
	"context"

	"gorm.io/gorm"
)

type GormRepo struct {
	DB *gorm.DB
}

// Transaction runs fn inside a single database transaction. Every multi-step
// write (inventory decrement + order creation, capture + status advance,
// refund + status advance + restore) goes through here so partial application
// is never observable.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}
