package handler

import (
	"commerce-api/internal/model"

	"gorm.io/gorm"
)

// NewProductBrandResource configures the productbrands lookup collection.
func NewProductBrandResource(deps *Deps) *Resource[model.ProductBrand, *model.ProductBrand] {
	r := NewResource[model.ProductBrand]("productbrands", deps)
	r.DuplicateMessage = "A product brand with this name already exists"
	r.Duplicate = func(db *gorm.DB, candidate *model.ProductBrand) *gorm.DB {
		return db.Where("product_brand = ?", candidate.ProductBrand)
	}
	return r
}
