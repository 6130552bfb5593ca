package ledger

import (
	"fmt"

	"market-simulator-go/internal/models"
)

// Position is one line of a portfolio view: a holding valued at the
// instrument's current price.
type Position struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

// PortfolioView is a read-only projection of a user's cash and positions.
type PortfolioView struct {
	UserID    uint       `json:"user_id"`
	Username  string     `json:"username"`
	Balance   float64    `json:"balance"`
	Positions []Position `json:"positions"`
}

// Portfolio values the user's holdings at current instrument prices.
// It is recomputed from live state on every call, never cached.
func (l *Ledger) Portfolio(userID uint) (*PortfolioView, error) {
	user, err := findUser(l.db, userID)
	if err != nil {
		return nil, err
	}

	var holdings []models.Holding
	if err := l.db.Where("user_id = ?", user.ID).Order("instrument_id").Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("could not load holdings for user %d: %w", userID, err)
	}

	view := &PortfolioView{
		UserID:    user.ID,
		Username:  user.Username,
		Balance:   user.Balance,
		Positions: make([]Position, 0, len(holdings)),
	}
	for _, h := range holdings {
		var inst models.Instrument
		if err := l.db.First(&inst, h.InstrumentID).Error; err != nil {
			return nil, fmt.Errorf("could not load instrument %d: %w", h.InstrumentID, err)
		}
		view.Positions = append(view.Positions, Position{
			Symbol:   inst.Symbol,
			Name:     inst.Name,
			Quantity: h.Quantity,
			Price:    inst.Price,
			Value:    models.Round2(float64(h.Quantity) * inst.Price),
		})
	}
	return view, nil
}
