package handler

import (
	"commerce-api/internal/model"

	"gorm.io/gorm"
)

// NewPhoneResource configures the phones collection.
func NewPhoneResource(deps *Deps) *Resource[model.Phone, *model.Phone] {
	r := NewResource[model.Phone]("phones", deps)
	r.DuplicateMessage = "A phone with this phone number already exists"
	r.Duplicate = func(db *gorm.DB, candidate *model.Phone) *gorm.DB {
		return db.Where("phone_number = ?", candidate.PhoneNumber)
	}
	return r
}
