package models

import "gorm.io/gorm"

// User represents a market participant with a cash balance.
// Balance never goes negative as a result of a ledger operation.
type User struct {
	gorm.Model
	Username string  `gorm:"uniqueIndex" json:"username"`
	Balance  float64 `json:"balance"`
}
