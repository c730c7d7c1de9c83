package model

// Product represents the product master data, keyed for uniqueness by UPC.
type Product struct {
	ID             uint    `json:"id" gorm:"primarykey"`
	UPC            string  `json:"upc" gorm:"type:varchar(20);uniqueIndex;not null" validate:"required"`
	ProductName    string  `json:"product_name" gorm:"type:varchar(255);not null" validate:"required"`
	Description    string  `json:"description,omitempty" gorm:"type:text"`
	Price          float64 `json:"price" gorm:"not null" validate:"min=0"`
	ProductBrandID uint    `json:"product_brand_id,omitempty" gorm:"index"`
	Audit

	ProductBrand *ProductBrand `json:"product_brand,omitempty" gorm:"foreignKey:ProductBrandID"`
}

// ProductBrand is lookup data for product branding.
type ProductBrand struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	ProductBrand string `json:"product_brand" gorm:"type:varchar(100);uniqueIndex;not null" validate:"required"`
	Audit
}

// All lists every persisted entity in migration order.
func All() []interface{} {
	return []interface{}{
		&Customer{},
		&Address{},
		&Phone{},
		&ProductBrand{},
		&Product{},
		&Order{},
		&OrderDetail{},
	}
}
