package handler

import (
	"commerce-api/internal/model"

	"gorm.io/gorm"
)

// NewAddressResource configures the addresses collection. Uniqueness runs
// over both street lines so two suites at the same street stay distinct.
func NewAddressResource(deps *Deps) *Resource[model.Address, *model.Address] {
	r := NewResource[model.Address]("addresses", deps)
	r.DuplicateMessage = "An address with this street address already exists"
	r.Duplicate = func(db *gorm.DB, candidate *model.Address) *gorm.DB {
		return db.Where("street_address_1 = ? AND street_address_2 = ?",
			candidate.StreetAddress1, candidate.StreetAddress2)
	}
	return r
}
