package handler

import (
	"commerce-api/internal/model"

	"gorm.io/gorm"
)

// NewProductResource configures the products collection, keyed by UPC.
func NewProductResource(deps *Deps) *Resource[model.Product, *model.Product] {
	r := NewResource[model.Product]("products", deps)
	r.DuplicateMessage = "A product with this UPC already exists"
	r.Duplicate = func(db *gorm.DB, candidate *model.Product) *gorm.DB {
		return db.Where("upc = ?", candidate.UPC)
	}
	return r
}
