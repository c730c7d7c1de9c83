package model

// Address represents a mailing address shared between customers through the
// customer_addresses join table. The composite unique index on the street
// lines is what turns a duplicate submission into a conflict at insert time.
type Address struct {
	ID             uint   `json:"id" gorm:"primarykey"`
	StreetAddress1 string `json:"street_address_1" gorm:"column:street_address_1;type:varchar(255);uniqueIndex:idx_addresses_street;not null" validate:"required"`
	StreetAddress2 string `json:"street_address_2,omitempty" gorm:"column:street_address_2;type:varchar(255);uniqueIndex:idx_addresses_street"`
	City           string `json:"city" gorm:"type:varchar(100);not null" validate:"required"`
	StateProvince  string `json:"state_province" gorm:"type:varchar(100);not null" validate:"required"`
	PostalCode     string `json:"postal_code" gorm:"type:varchar(20);not null" validate:"required"`
	Audit
}

// Phone represents a customer phone record, linked through the
// customer_phones join table.
type Phone struct {
	ID          uint   `json:"id" gorm:"primarykey"`
	PhoneNumber string `json:"phone_number" gorm:"type:varchar(30);uniqueIndex;not null" validate:"required"`
	PhoneType   string `json:"phone_type,omitempty" gorm:"type:varchar(20)"`
	Audit
}
