package models

// Address is a shipping address captured at checkout.
type Address struct {
	BaseModel
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `gorm:"index" json:"country"`
	State     string `json:"state"`
	PostCode  string `gorm:"index" json:"post_code"`
	City      string `gorm:"index" json:"city"`
	Address1  string `json:"address1"`
}
