package ledger

import (
	"errors"
	"fmt"
	"sync"

	"market-simulator-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger owns user balances and holdings and enforces their consistency
// across trades. The instrument price is a snapshot supplied by the
// caller; the ledger never reads or caches prices itself.
type Ledger struct {
	logger *zap.Logger
	db     *gorm.DB

	// userLocks serializes trades per user. The balance check and the
	// debit must not interleave with another trade for the same user.
	userLocks sync.Map // uint -> *sync.Mutex
}

// NewLedger creates a new trading ledger.
func NewLedger(logger *zap.Logger, db *gorm.DB) *Ledger {
	return &Ledger{
		logger: logger,
		db:     db,
	}
}

// TradeReceipt confirms a committed trade. Amount is the cost for buys
// and the proceeds for sells.
type TradeReceipt struct {
	ID       string  `json:"id"`
	Side     string  `json:"side"`
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// Buy debits round2(price*quantity) from the user's balance and adds the
// shares to the user's holding, creating it on first purchase. The whole
// transition commits atomically or not at all.
func (l *Ledger) Buy(userID uint, symbol string, price float64, quantity int) (*TradeReceipt, error) {
	if quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}

	unlock := l.lockUser(userID)
	defer unlock()

	cost := models.Round2(price * float64(quantity))
	var receipt *TradeReceipt

	err := l.db.Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		inst, err := findInstrument(tx, symbol)
		if err != nil {
			return err
		}

		if user.Balance < cost {
			return models.ErrInsufficientBalance
		}
		user.Balance = models.Round2(user.Balance - cost)
		if err := tx.Save(user).Error; err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}

		var holding models.Holding
		err = tx.Where("user_id = ? AND instrument_id = ?", user.ID, inst.ID).First(&holding).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			holding = models.Holding{UserID: user.ID, InstrumentID: inst.ID, Quantity: quantity}
			if err := tx.Create(&holding).Error; err != nil {
				return fmt.Errorf("failed to create holding: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load holding: %w", err)
		default:
			holding.Quantity += quantity
			if err := tx.Save(&holding).Error; err != nil {
				return fmt.Errorf("failed to update holding: %w", err)
			}
		}

		receipt = &TradeReceipt{
			ID:       uuid.NewString(),
			Side:     models.SideBuy,
			Symbol:   inst.Symbol,
			Quantity: quantity,
			Amount:   cost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Trade committed",
		zap.String("side", models.SideBuy),
		zap.Uint("user_id", userID),
		zap.String("symbol", receipt.Symbol),
		zap.Int("quantity", quantity),
		zap.Float64("cost", cost),
	)
	return receipt, nil
}

// Sell credits round2(price*quantity) to the user's balance and removes
// the shares from the user's holding, deleting it when the quantity
// reaches zero. A sell can never create a negative position.
func (l *Ledger) Sell(userID uint, symbol string, price float64, quantity int) (*TradeReceipt, error) {
	if quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}

	unlock := l.lockUser(userID)
	defer unlock()

	proceeds := models.Round2(price * float64(quantity))
	var receipt *TradeReceipt

	err := l.db.Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		inst, err := findInstrument(tx, symbol)
		if err != nil {
			return err
		}

		var holding models.Holding
		err = tx.Where("user_id = ? AND instrument_id = ?", user.ID, inst.ID).First(&holding).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNoSuchPosition
		}
		if err != nil {
			return fmt.Errorf("failed to load holding: %w", err)
		}
		if holding.Quantity < quantity {
			return models.ErrInsufficientShares
		}

		user.Balance = models.Round2(user.Balance + proceeds)
		if err := tx.Save(user).Error; err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}

		holding.Quantity -= quantity
		if holding.Quantity == 0 {
			// Hard delete so the (user, instrument) unique index allows
			// a future rebuy.
			if err := tx.Unscoped().Delete(&holding).Error; err != nil {
				return fmt.Errorf("failed to delete holding: %w", err)
			}
		} else {
			if err := tx.Save(&holding).Error; err != nil {
				return fmt.Errorf("failed to update holding: %w", err)
			}
		}

		receipt = &TradeReceipt{
			ID:       uuid.NewString(),
			Side:     models.SideSell,
			Symbol:   inst.Symbol,
			Quantity: quantity,
			Amount:   proceeds,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Trade committed",
		zap.String("side", models.SideSell),
		zap.Uint("user_id", userID),
		zap.String("symbol", receipt.Symbol),
		zap.Int("quantity", quantity),
		zap.Float64("proceeds", proceeds),
	)
	return receipt, nil
}

// lockUser takes the per-user mutex and returns the unlock function.
func (l *Ledger) lockUser(userID uint) func() {
	v, _ := l.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func findUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	return &user, nil
}

func findInstrument(tx *gorm.DB, symbol string) (*models.Instrument, error) {
	var inst models.Instrument
	err := tx.Where("symbol = ?", symbol).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUnknownInstrument
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument '%s': %w", symbol, err)
	}
	return &inst, nil
}
