package handler

import (
	"commerce-api/internal/model"

	"gorm.io/gorm"
)

// NewOrderResource configures the orders collection. Detail lines have no
// routes of their own; they travel with the order through $expand.
func NewOrderResource(deps *Deps) *Resource[model.Order, *model.Order] {
	r := NewResource[model.Order]("orders", deps)
	r.DuplicateMessage = "An order with this order number already exists"
	r.Duplicate = func(db *gorm.DB, candidate *model.Order) *gorm.DB {
		return db.Where("order_number = ?", candidate.OrderNumber)
	}
	return r
}
