package models

import "github.com/google/uuid"

// Product is a priced offer made against a vehicle part request.
type Product struct {
	BaseModel
	RequestID   uuid.UUID           `gorm:"type:uuid;index" json:"request_id"`
	Request     *VehiclePartRequest `json:"request,omitempty"`
	ShopID      *uuid.UUID          `gorm:"type:uuid;index" json:"shop_id"`
	Name        string              `gorm:"not null" json:"name"`
	Description string              `json:"description"`
	Price       float64             `gorm:"not null" json:"price"`
	Image       string              `json:"image"`
}
