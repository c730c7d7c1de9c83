package model

// Customer is the root of the customer association graph. Addresses and
// phones are linked through join tables; orders belong to exactly one
// customer.
type Customer struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	FirstName    string `json:"first_name" gorm:"type:varchar(100);not null" validate:"required"`
	LastName     string `json:"last_name" gorm:"type:varchar(100);not null" validate:"required"`
	Suffix       string `json:"suffix,omitempty" gorm:"type:varchar(20)"`
	EmailAddress string `json:"email_address" gorm:"type:varchar(320);uniqueIndex;not null" validate:"required,email"`
	Audit

	Orders    []Order   `json:"orders,omitempty" gorm:"foreignKey:CustomerID"`
	Addresses []Address `json:"addresses,omitempty" gorm:"many2many:customer_addresses"`
	Phones    []Phone   `json:"phones,omitempty" gorm:"many2many:customer_phones"`
}
