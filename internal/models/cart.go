package models

import "github.com/google/uuid"

// Cart is an anonymous shopping cart addressed by its session id.
type Cart struct {
	BaseModel
	SessionID uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"session_id"`
	Items     []CartItem `json:"items,omitempty"`
}

// CartItem holds one product line. A product appears at most once per cart.
type CartItem struct {
	BaseModel
	CartID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
}

// Total sums price x quantity over items whose product is loaded.
func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		if item.Product != nil {
			total += item.Product.Price * float64(item.Quantity)
		}
	}
	return total
}
