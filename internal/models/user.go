package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"uniqueIndex" json:"uuid"`                // Public ID carried in API tokens
	Email     *string   `gorm:"uniqueIndex" json:"email,omitempty"`     // Nullable unique email
	Phone     *string   `gorm:"uniqueIndex" json:"phone,omitempty"`     // Nullable unique phone
	DeviceID  *string   `gorm:"uniqueIndex" json:"device_id,omitempty"` // For guest sessions
	PinHash   string    `json:"-"`                                      // Bcrypt hash, hidden from JSON
	IsGuest   bool      `gorm:"default:false" json:"is_guest"`
	Username  string    `gorm:"uniqueIndex" json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	HasPin    bool      `gorm:"-" json:"has_pin"`
}
