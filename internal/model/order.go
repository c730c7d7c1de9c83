package model

// Order status values. Stored as a small integer column.
const (
	OrderStatusPending   = 1
	OrderStatusPaid      = 2
	OrderStatusShipped   = 3
	OrderStatusDelivered = 4
	OrderStatusCancelled = 5
)

// Order belongs to a customer and owns its detail lines.
type Order struct {
	ID          uint   `json:"id" gorm:"primarykey"`
	CustomerID  uint   `json:"customer_id" gorm:"index;not null" validate:"required"`
	OrderNumber string `json:"order_number" gorm:"type:varchar(50);uniqueIndex;not null" validate:"required"`
	OrderStatus int    `json:"order_status" gorm:"not null;default:1" validate:"min=0,max=5"`
	Audit

	OrderDetails []OrderDetail `json:"order_details,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderDetail is a single line on an order. It has no routes of its own and
// is reachable only through order expansion.
type OrderDetail struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	OrderID   uint    `json:"order_id" gorm:"index;not null"`
	ProductID uint    `json:"product_id" gorm:"index;not null"`
	Quantity  int     `json:"quantity" gorm:"not null"`
	Price     float64 `json:"price" gorm:"not null"`
	Audit
}
