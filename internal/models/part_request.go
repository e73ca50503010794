package models

import (
	"strconv"

	"github.com/google/uuid"
)

// Vehicle types accepted on a part request.
var VehicleTypes = []string{"car", "truck", "motorcycle", "bus", "van", "suv", "other"}

// Part request statuses.
const (
	RequestStatusPending    = "pending"
	RequestStatusInProgress = "in_progress"
	RequestStatusCompleted  = "completed"
	RequestStatusCancelled  = "cancelled"
)

// VehiclePartRequest is a buyer asking shops for a specific part.
type VehiclePartRequest struct {
	BaseModel
	UserID       uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	User         *User         `json:"user,omitempty"`
	VehicleType  string        `json:"vehicle_type"`
	VehicleModel string        `json:"vehicle_model"`
	VehicleYear  int           `json:"vehicle_year"`
	PartName     string        `json:"part_name"`
	PartNumber   string        `json:"part_number"`
	VehicleImage string        `json:"vehicle_image"`
	PartImage    string        `json:"part_image"`
	PartVideo    string        `json:"part_video"`
	Description  string        `json:"description"`
	Status       string        `gorm:"index;default:'pending'" json:"status"`
	Products     []Product     `gorm:"foreignKey:RequestID" json:"products,omitempty"`
	Shops        []RequestShop `gorm:"foreignKey:RequestID" json:"shops,omitempty"`
}

// VehicleDisplay renders "<type> <model> (<year>)".
func (r *VehiclePartRequest) VehicleDisplay() string {
	return r.VehicleType + " " + r.VehicleModel + " (" + strconv.Itoa(r.VehicleYear) + ")"
}

// IsOpen reports whether a product offer may still complete the request.
func (r *VehiclePartRequest) IsOpen() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusInProgress
}

// IsValidRequestStatus reports whether status is one of the known values.
func IsValidRequestStatus(status string) bool {
	switch status {
	case RequestStatusPending, RequestStatusInProgress, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}
