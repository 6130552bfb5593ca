package models

import (
	"time"

	"gorm.io/gorm"
)

// Instrument represents a tradable security whose price evolves over
// simulated time. Price, Drift and Volatility parameterize the price
// process; only the simulation engine mutates Price and LastUpdated.
type Instrument struct {
	gorm.Model
	Symbol      string    `gorm:"uniqueIndex" json:"symbol"`
	Name        string    `json:"name"`
	Price       float64   `gorm:"not null" json:"price"`
	Drift       float64   `json:"drift"`
	Volatility  float64   `json:"volatility"`
	LastUpdated time.Time `json:"last_updated"`
}
