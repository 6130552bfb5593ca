package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"market-simulator-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// priceFloor is the minimum price an instrument can reach. Any step that
// would push a price below it is clamped up to the floor.
const priceFloor = 0.01

// NormalSource supplies standard-normal variates for the price process.
// *math/rand.Rand satisfies it; tests inject fixed sequences so runs are
// reproducible.
type NormalSource interface {
	NormFloat64() float64
}

// Engine owns instrument prices and the append-only price history. Prices
// evolve by geometric Brownian motion, one draw per instrument per step.
type Engine struct {
	logger *zap.Logger
	db     *gorm.DB
	rng    NormalSource

	// mu serializes advances: each step must consume the previous step's
	// output, and variates must be drawn in a deterministic order.
	mu sync.Mutex
}

// NewEngine creates a new price simulation engine.
func NewEngine(logger *zap.Logger, db *gorm.DB, rng NormalSource) *Engine {
	return &Engine{
		logger: logger,
		db:     db,
		rng:    rng,
	}
}

// Advance runs the given number of simulation steps over every instrument
// and returns the number of steps applied. Each step updates every
// instrument's price and timestamp and appends one history point per
// instrument, all inside a single transaction. steps <= 0 is a no-op.
func (e *Engine) Advance(steps int) (int, error) {
	if steps <= 0 {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	applied := 0
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var instruments []models.Instrument
		// Fixed iteration order keeps the variate sequence deterministic.
		if err := tx.Order("id").Find(&instruments).Error; err != nil {
			return fmt.Errorf("could not load instruments: %w", err)
		}

		for s := 0; s < steps; s++ {
			now := time.Now().UTC()
			for i := range instruments {
				inst := &instruments[i]
				e.step(inst, now)
				if err := tx.Save(inst).Error; err != nil {
					return fmt.Errorf("failed to save instrument '%s': %w", inst.Symbol, err)
				}
				point := models.PricePoint{
					InstrumentID: inst.ID,
					Timestamp:    now,
					Price:        inst.Price,
				}
				if err := tx.Create(&point).Error; err != nil {
					return fmt.Errorf("failed to record price point for '%s': %w", inst.Symbol, err)
				}
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("Simulation advanced", zap.Int("steps", applied))
	return applied, nil
}

// step applies one geometric Brownian motion step to a single instrument.
func (e *Engine) step(inst *models.Instrument, now time.Time) {
	z := e.rng.NormFloat64()
	logReturn := (inst.Drift - 0.5*inst.Volatility*inst.Volatility) + inst.Volatility*z
	candidate := inst.Price * math.Exp(logReturn)
	inst.Price = models.Round2(math.Max(candidate, priceFloor))
	inst.LastUpdated = now
}

// ListInstruments returns all instruments in id order.
func (e *Engine) ListInstruments() ([]models.Instrument, error) {
	var instruments []models.Instrument
	if err := e.db.Order("id").Find(&instruments).Error; err != nil {
		return nil, fmt.Errorf("could not load instruments: %w", err)
	}
	return instruments, nil
}

// CurrentPrice returns the last simulated price for the given symbol.
// Callers use this single snapshot for an entire trade; the value is
// never re-read mid-operation.
func (e *Engine) CurrentPrice(symbol string) (float64, error) {
	inst, err := e.findInstrument(symbol)
	if err != nil {
		return 0, err
	}
	return inst.Price, nil
}

// History returns the full price history for the given symbol, ordered by
// timestamp.
func (e *Engine) History(symbol string) ([]models.PricePoint, error) {
	inst, err := e.findInstrument(symbol)
	if err != nil {
		return nil, err
	}

	var points []models.PricePoint
	err = e.db.Where("instrument_id = ?", inst.ID).Order("timestamp").Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("could not load price history for '%s': %w", symbol, err)
	}
	return points, nil
}

func (e *Engine) findInstrument(symbol string) (*models.Instrument, error) {
	var inst models.Instrument
	err := e.db.Where("symbol = ?", symbol).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUnknownInstrument
	}
	if err != nil {
		return nil, fmt.Errorf("could not load instrument '%s': %w", symbol, err)
	}
	return &inst, nil
}

// Run advances the simulation by one step per tick until the context is
// cancelled. It backs the optional auto-advance mode; the manual advance
// endpoint goes through Advance directly either way.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting simulation loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping simulation loop...")
			return
		case <-ticker.C:
			if _, err := e.Advance(1); err != nil {
				e.logger.Error("Simulation step failed", zap.Error(err))
			}
		}
	}
}
