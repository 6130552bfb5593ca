package models

import "gorm.io/gorm"

// Holding is a user's position in one instrument. Quantity is always a
// positive integer; a holding that would reach zero is deleted instead
// of being kept at zero. At most one row exists per (user, instrument).
type Holding struct {
	gorm.Model
	UserID       uint `gorm:"uniqueIndex:idx_user_instrument" json:"user_id"`
	InstrumentID uint `gorm:"uniqueIndex:idx_user_instrument" json:"instrument_id"`
	Quantity     int  `gorm:"not null" json:"quantity"`
}
