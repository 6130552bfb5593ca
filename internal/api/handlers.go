package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"market-simulator-go/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StockRead is the list-instruments payload for a single instrument.
type StockRead struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Volatility float64 `json:"volatility"`
	Drift      float64 `json:"drift"`
}

// TradeRequest is the submit-trade request body.
type TradeRequest struct {
	UserID   uint   `json:"user_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int    `json:"quantity"`
}

// TradeResponse is the submit-trade success payload. Cost is set for
// buys, Received for sells, matching the side label in Status.
type TradeResponse struct {
	Status   string   `json:"status"`
	Symbol   string   `json:"symbol"`
	Quantity int      `json:"quantity"`
	Cost     *float64 `json:"cost,omitempty"`
	Received *float64 `json:"received,omitempty"`
}

// SimulateResponse acknowledges an advance with the steps applied.
type SimulateResponse struct {
	Status string `json:"status"`
	Days   int    `json:"days"`
}

// HistoryPoint is one entry of the price-history payload.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// CreateUserRequest is the create-user request body. Balance defaults to
// the configured initial balance when omitted.
type CreateUserRequest struct {
	Username string   `json:"username"`
	Balance  *float64 `json:"balance"`
}

// UserRead is the list-users payload for a single user.
type UserRead struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) listStocksHandler(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.engine.ListInstruments()
	if err != nil {
		s.writeError(w, err)
		return
	}

	stocks := make([]StockRead, 0, len(instruments))
	for _, inst := range instruments {
		stocks = append(stocks, StockRead{
			Symbol:     inst.Symbol,
			Name:       inst.Name,
			Price:      inst.Price,
			Volatility: inst.Volatility,
			Drift:      inst.Drift,
		})
	}
	s.writeJSON(w, http.StatusOK, stocks)
}

func (s *Server) simulateStepHandler(w http.ResponseWriter, r *http.Request) {
	days := 1
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeErrorMessage(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}

	applied, err := s.engine.Advance(days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SimulateResponse{Status: "ok", Days: applied})
}

func (s *Server) tradeHandler(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Quantity and side are validated before any lookup happens.
	if req.Quantity <= 0 {
		s.writeError(w, models.ErrInvalidQuantity)
		return
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		s.writeError(w, models.ErrInvalidSide)
		return
	}

	// Single price snapshot for the whole trade; a concurrent simulation
	// step never changes an in-flight trade's cost.
	price, err := s.engine.CurrentPrice(req.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.Side == models.SideBuy {
		receipt, err := s.ledger.Buy(req.UserID, req.Symbol, price, req.Quantity)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, TradeResponse{
			Status:   "bought",
			Symbol:   receipt.Symbol,
			Quantity: receipt.Quantity,
			Cost:     &receipt.Amount,
		})
		return
	}

	receipt, err := s.ledger.Sell(req.UserID, req.Symbol, price, req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TradeResponse{
		Status:   "sold",
		Symbol:   receipt.Symbol,
		Quantity: receipt.Quantity,
		Received: &receipt.Amount,
	})
}

func (s *Server) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	view, err := s.ledger.Portfolio(uint(userID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) priceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	points, err := s.engine.History(symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	history := make([]HistoryPoint, 0, len(points))
	for _, p := range points {
		history = append(history, HistoryPoint{Timestamp: p.Timestamp, Price: p.Price})
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		s.writeErrorMessage(w, http.StatusBadRequest, "username is required")
		return
	}

	balance := s.cfg.Ledger.InitialBalance
	if req.Balance != nil {
		balance = *req.Balance
	}

	user, err := s.ledger.CreateUser(req.Username, balance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, UserRead{ID: user.ID, Username: user.Username, Balance: user.Balance})
}

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.ledger.ListUsers()
	if err != nil {
		s.writeError(w, err)
		return
	}

	reads := make([]UserRead, 0, len(users))
	for _, u := range users {
		reads = append(reads, UserRead{ID: u.ID, Username: u.Username, Balance: u.Balance})
	}
	s.writeJSON(w, http.StatusOK, reads)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps domain sentinel errors to status codes: lookup
// failures become 404, validation and funds/shares failures 400, and
// anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrUnknownUser), errors.Is(err, models.ErrUnknownInstrument):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidSide),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInsufficientShares),
		errors.Is(err, models.ErrNoSuchPosition),
		errors.Is(err, models.ErrDuplicateUsername):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
		s.writeErrorMessage(w, status, "internal error")
		return
	}
	s.writeErrorMessage(w, status, err.Error())
}

func (s *Server) writeErrorMessage(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
