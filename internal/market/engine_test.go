package market

import (
	"math"
	"testing"
	"time"

	"market-simulator-go/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fixedSource replays a predetermined variate sequence, cycling when
// exhausted. It makes simulation runs fully reproducible.
type fixedSource struct {
	values []float64
	i      int
}

func (f *fixedSource) NormFloat64() float64 {
	v := f.values[f.i%len(f.values)]
	f.i++
	return v
}

// setupTest creates an isolated in-memory database with the market schema.
func setupTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&models.Instrument{}, &models.PricePoint{})
	assert.NoError(t, err)

	return db
}

func newTestEngine(db *gorm.DB, variates ...float64) *Engine {
	return NewEngine(zap.NewNop(), db, &fixedSource{values: variates})
}

func createInstrument(t *testing.T, db *gorm.DB, symbol string, price, drift, vol float64) *models.Instrument {
	inst := &models.Instrument{
		Symbol:      symbol,
		Name:        symbol + " Corp",
		Price:       price,
		Drift:       drift,
		Volatility:  vol,
		LastUpdated: time.Now().UTC(),
	}
	assert.NoError(t, db.Create(inst).Error)
	return inst
}

func TestAdvance_ZeroSteps_NoOp(t *testing.T) {
	db := setupTest(t)
	inst := createInstrument(t, db, "TECH", 100.0, 0.0008, 0.02)
	before := inst.LastUpdated
	engine := newTestEngine(db, 1.5)

	for _, steps := range []int{0, -3} {
		applied, err := engine.Advance(steps)
		assert.NoError(t, err)
		assert.Equal(t, 0, applied)
	}

	var reloaded models.Instrument
	assert.NoError(t, db.First(&reloaded, inst.ID).Error)
	assert.Equal(t, 100.0, reloaded.Price)
	assert.Equal(t, before.Unix(), reloaded.LastUpdated.Unix())

	var count int64
	assert.NoError(t, db.Model(&models.PricePoint{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAdvance_NoDriftNoVolatility_PriceUnchanged(t *testing.T) {
	db := setupTest(t)
	inst := createInstrument(t, db, "FLAT", 42.5, 0, 0)
	// The variate must not matter when volatility is zero.
	engine := newTestEngine(db, 3.7)

	applied, err := engine.Advance(1)
	assert.NoError(t, err)
	assert.Equal(t, 1, applied)

	var reloaded models.Instrument
	assert.NoError(t, db.First(&reloaded, inst.ID).Error)
	assert.Equal(t, 42.5, reloaded.Price)
}

func TestAdvance_AppliesGBMStep(t *testing.T) {
	db := setupTest(t)
	createInstrument(t, db, "TECH", 100.0, 0.001, 0.02)
	engine := newTestEngine(db, 0.5)

	_, err := engine.Advance(1)
	assert.NoError(t, err)

	logReturn := (0.001 - 0.5*0.02*0.02) + 0.02*0.5
	expected := models.Round2(100.0 * math.Exp(logReturn))

	price, err := engine.CurrentPrice("TECH")
	assert.NoError(t, err)
	assert.Equal(t, expected, price)
}

func TestAdvance_ClampsPriceToFloor(t *testing.T) {
	db := setupTest(t)
	createInstrument(t, db, "CRASH", 1.0, 0, 5.0)
	// A -10 sigma draw with volatility 5 drives the candidate price to
	// effectively zero.
	engine := newTestEngine(db, -10.0)

	_, err := engine.Advance(1)
	assert.NoError(t, err)

	price, err := engine.CurrentPrice("CRASH")
	assert.NoError(t, err)
	assert.Equal(t, 0.01, price)
}

func TestAdvance_PriceNeverBelowFloor(t *testing.T) {
	db := setupTest(t)
	createInstrument(t, db, "VOL", 50.0, -0.01, 0.8)
	engine := newTestEngine(db, -2.5, -1.8, -3.1, -0.9, -2.2)

	_, err := engine.Advance(50)
	assert.NoError(t, err)

	price, err := engine.CurrentPrice("VOL")
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, price, 0.01)
}

func TestAdvance_SequentialComposition(t *testing.T) {
	variates := []float64{0.3, -0.8, 1.2, 0.05, -0.4}

	dbA := setupTest(t)
	createInstrument(t, dbA, "TECH", 100.0, 0.0008, 0.02)
	engineA := newTestEngine(dbA, variates...)
	applied, err := engineA.Advance(5)
	assert.NoError(t, err)
	assert.Equal(t, 5, applied)

	dbB := setupTest(t)
	createInstrument(t, dbB, "TECH", 100.0, 0.0008, 0.02)
	engineB := newTestEngine(dbB, variates...)
	_, err = engineB.Advance(2)
	assert.NoError(t, err)
	_, err = engineB.Advance(3)
	assert.NoError(t, err)

	priceA, err := engineA.CurrentPrice("TECH")
	assert.NoError(t, err)
	priceB, err := engineB.CurrentPrice("TECH")
	assert.NoError(t, err)
	assert.Equal(t, priceA, priceB)

	historyA, err := engineA.History("TECH")
	assert.NoError(t, err)
	historyB, err := engineB.History("TECH")
	assert.NoError(t, err)
	assert.Len(t, historyA, 5)
	assert.Len(t, historyB, 5)
}

func TestAdvance_RecordsHistoryPerStep(t *testing.T) {
	db := setupTest(t)
	createInstrument(t, db, "TECH", 100.0, 0.0008, 0.02)
	createInstrument(t, db, "BIO", 90.0, 0.0005, 0.03)
	engine := newTestEngine(db, 0.1, -0.2, 0.3)

	_, err := engine.Advance(3)
	assert.NoError(t, err)

	for _, symbol := range []string{"TECH", "BIO"} {
		history, err := engine.History(symbol)
		assert.NoError(t, err)
		assert.Len(t, history, 3)

		// Timestamps non-decreasing, last entry matches the live price.
		for i := 1; i < len(history); i++ {
			assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
		}
		price, err := engine.CurrentPrice(symbol)
		assert.NoError(t, err)
		assert.Equal(t, price, history[len(history)-1].Price)
	}
}

func TestCurrentPrice_UnknownInstrument(t *testing.T) {
	db := setupTest(t)
	engine := newTestEngine(db, 0)

	_, err := engine.CurrentPrice("NOPE")
	assert.ErrorIs(t, err, models.ErrUnknownInstrument)
}

func TestHistory_UnknownInstrument(t *testing.T) {
	db := setupTest(t)
	engine := newTestEngine(db, 0)

	_, err := engine.History("NOPE")
	assert.ErrorIs(t, err, models.ErrUnknownInstrument)
}

func TestListInstruments(t *testing.T) {
	db := setupTest(t)
	createInstrument(t, db, "TECH", 100.0, 0.0008, 0.02)
	createInstrument(t, db, "BIO", 90.0, 0.0005, 0.03)
	engine := newTestEngine(db, 0)

	instruments, err := engine.ListInstruments()
	assert.NoError(t, err)
	assert.Len(t, instruments, 2)
	assert.Equal(t, "TECH", instruments[0].Symbol)
	assert.Equal(t, "BIO", instruments[1].Symbol)
}
