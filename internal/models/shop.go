package models

import "github.com/google/uuid"

// Shop is a parts seller that receives requests over WhatsApp.
type Shop struct {
	BaseModel
	Name        string        `gorm:"not null" json:"name"`
	PhoneNumber string        `json:"phone_number"`
	Email       string        `json:"email"`
	Active      bool          `gorm:"default:true" json:"active"`
	Requests    []RequestShop `json:"requests,omitempty"`
}

// RequestShop links a part request to a shop it was forwarded to.
type RequestShop struct {
	BaseModel
	RequestID uuid.UUID           `gorm:"type:uuid;uniqueIndex:idx_request_shop" json:"request_id"`
	Request   *VehiclePartRequest `json:"request,omitempty"`
	ShopID    uuid.UUID           `gorm:"type:uuid;uniqueIndex:idx_request_shop" json:"shop_id"`
	Shop      *Shop               `json:"shop,omitempty"`
	Message   string              `json:"message"`
	Notified  bool                `json:"notified"`
}
