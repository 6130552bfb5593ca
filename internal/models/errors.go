package models

import "errors"

// Trade sides accepted by the ledger and the API.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Sentinel errors for domain-level failures. Every rejected operation
// surfaces one of these so the API layer can map each to a distinct
// status code. None of them is retryable: the same input always fails
// the same way.
var (
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrInvalidSide         = errors.New("side must be 'buy' or 'sell'")
	ErrUnknownUser         = errors.New("user not found")
	ErrUnknownInstrument   = errors.New("instrument not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("not enough shares to sell")
	ErrNoSuchPosition      = errors.New("no position in instrument")
	ErrDuplicateUsername   = errors.New("username already exists")
)
