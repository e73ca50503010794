package models

import (
	"github.com/google/uuid"
)

// Order sources and statuses.
const (
	OrderSourceWeb     = "web"
	OrderSourceAndroid = "android"
	OrderSourceIOS     = "ios"

	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"

	DefaultCurrency = "LKR"
)

type Order struct {
	BaseModel
	ReferenceNumber   string      `gorm:"uniqueIndex" json:"reference_number"`
	Total             float64     `json:"total"`
	Currency          string      `json:"currency"`
	Source            string      `gorm:"index" json:"source"`
	Status            string      `gorm:"index" json:"status"`
	ShippingAddressID uuid.UUID   `gorm:"type:uuid" json:"shipping_address_id"`
	ShippingAddress   *Address    `json:"shipping_address,omitempty"`
	CartID            *uuid.UUID  `gorm:"type:uuid" json:"cart_id"`
	Items             []OrderItem `json:"items,omitempty"`
}

// OrderItem snapshots the product price at checkout time.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Quantity  int       `json:"quantity"`
}
