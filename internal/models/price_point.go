package models

import (
	"time"

	"gorm.io/gorm"
)

// PricePoint is a single entry in an instrument's price history.
// Rows are append-only: one per instrument per simulated step,
// never updated or deleted.
type PricePoint struct {
	gorm.Model
	InstrumentID uint      `gorm:"index" json:"instrument_id"`
	Timestamp    time.Time `json:"timestamp"`
	Price        float64   `json:"price"`
}
