package handler

import (
	"commerce-api/internal/model"
	"commerce-api/internal/store"

	"gorm.io/gorm"
)

// NewCustomerResource configures the customers collection. Customers are
// the only entity with navigable relations: addresses and phones link
// through join tables, orders link by reassigning ownership.
func NewCustomerResource(deps *Deps) *Resource[model.Customer, *model.Customer] {
	r := NewResource[model.Customer]("customers", deps)
	r.DuplicateMessage = "A customer with this email address already exists"
	r.Duplicate = func(db *gorm.DB, candidate *model.Customer) *gorm.DB {
		return db.Where("email_address = ?", candidate.EmailAddress)
	}
	r.Relations = map[string]Relation[model.Customer]{
		"addresses": {Link: linkAddress, Unlink: unlinkAddress},
		"phones":    {Link: linkPhone, Unlink: unlinkPhone},
		// Orders can be attached but never detached, since an order
		// without a customer would violate its ownership column.
		"orders": {Link: linkOrder},
	}
	return r
}

func linkAddress(db *gorm.DB, owner *model.Customer, key uint) error {
	var address model.Address
	if err := db.First(&address, key).Error; err != nil {
		return err
	}
	return db.Model(owner).Association("Addresses").Append(&address)
}

// unlinkAddress removes the join entry and the address row itself. An
// address only exists as an attribute of its customers. The lookup runs
// inside the owner's association so a key that was never linked to this
// customer is not found, and never deletes a row other customers share.
func unlinkAddress(db *gorm.DB, owner *model.Customer, key uint) error {
	var address model.Address
	if err := db.Model(owner).Association("Addresses").Find(&address, key); err != nil {
		return err
	}
	if address.ID == 0 {
		return store.ErrNotFound
	}
	if err := db.Model(owner).Association("Addresses").Delete(&address); err != nil {
		return err
	}
	return db.Delete(&address).Error
}

func linkPhone(db *gorm.DB, owner *model.Customer, key uint) error {
	var phone model.Phone
	if err := db.First(&phone, key).Error; err != nil {
		return err
	}
	return db.Model(owner).Association("Phones").Append(&phone)
}

// unlinkPhone mirrors unlinkAddress: the phone must be linked to this
// customer, and the row goes with the link.
func unlinkPhone(db *gorm.DB, owner *model.Customer, key uint) error {
	var phone model.Phone
	if err := db.Model(owner).Association("Phones").Find(&phone, key); err != nil {
		return err
	}
	if phone.ID == 0 {
		return store.ErrNotFound
	}
	if err := db.Model(owner).Association("Phones").Delete(&phone); err != nil {
		return err
	}
	return db.Delete(&phone).Error
}

func linkOrder(db *gorm.DB, owner *model.Customer, key uint) error {
	var order model.Order
	if err := db.First(&order, key).Error; err != nil {
		return err
	}
	return db.Model(&order).Update("customer_id", owner.ID).Error
}
