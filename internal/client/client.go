package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Stock is one instrument as returned by the list endpoint.
type Stock struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Volatility float64 `json:"volatility"`
	Drift      float64 `json:"drift"`
}

// TradeRequest is the request body for submitting a trade.
type TradeRequest struct {
	UserID   uint   `json:"user_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int    `json:"quantity"`
}

// TradeResponse is the confirmation for a committed trade.
type TradeResponse struct {
	Status   string   `json:"status"`
	Symbol   string   `json:"symbol"`
	Quantity int      `json:"quantity"`
	Cost     *float64 `json:"cost,omitempty"`
	Received *float64 `json:"received,omitempty"`
}

// SimulateResponse acknowledges a simulation advance.
type SimulateResponse struct {
	Status string `json:"status"`
	Days   int    `json:"days"`
}

// HistoryPoint is one price history entry.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Position is one valued holding in a portfolio.
type Position struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

// Portfolio is a user's cash balance plus valued positions.
type Portfolio struct {
	UserID    uint       `json:"user_id"`
	Username  string     `json:"username"`
	Balance   float64    `json:"balance"`
	Positions []Position `json:"positions"`
}

// User is one user as returned by the user endpoints.
type User struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

// Interface defines the client for the market simulator API.
type Interface interface {
	ListStocks() ([]Stock, error)
	SimulateStep(days int) (*SimulateResponse, error)
	SubmitTrade(req TradeRequest) (*TradeResponse, error)
	GetPortfolio(userID uint) (*Portfolio, error)
	GetPriceHistory(symbol string) ([]HistoryPoint, error)
	CreateUser(username string, balance float64) (*User, error)
	ListUsers() ([]User, error)
}

// Client is a rate-limited HTTP client for the market simulator API.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ Interface = (*Client)(nil)

// NewClient creates a new API client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		client:  resty.New().SetBaseURL(baseURL),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
}

// errorDetail is the error body the API returns for rejected operations.
type errorDetail struct {
	Detail string `json:"detail"`
}

// doRequest handles request execution with rate limiting and retry logic.
// Rejected operations (4xx) are never retried: the same input always
// fails the same way. Server errors and 429s are retried with backoff.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			// Result is bound to the success type; decode the error body directly.
			var detail errorDetail
			_ = json.Unmarshal(resp.Body(), &detail)
			if detail.Detail != "" {
				return nil, fmt.Errorf("request rejected (%s): %s", resp.Status(), detail.Detail)
			}
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// Exponential backoff: 1s, 2s, 4s
		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// ListStocks fetches all instruments.
func (c *Client) ListStocks() ([]Stock, error) {
	var stocks []Stock
	req := c.client.R().SetResult(&stocks)

	if _, err := c.doRequest(context.Background(), "GET", "/stocks", req); err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	return stocks, nil
}

// SimulateStep advances the simulation by the given number of steps.
func (c *Client) SimulateStep(days int) (*SimulateResponse, error) {
	req := c.client.R().
		SetQueryParam("days", strconv.Itoa(days)).
		SetResult(&SimulateResponse{})

	resp, err := c.doRequest(context.Background(), "POST", "/simulate/step", req)
	if err != nil {
		return nil, fmt.Errorf("failed to advance simulation: %w", err)
	}
	return resp.Result().(*SimulateResponse), nil
}

// SubmitTrade submits a buy or sell order for a user.
func (c *Client) SubmitTrade(tr TradeRequest) (*TradeResponse, error) {
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(tr).
		SetResult(&TradeResponse{})

	resp, err := c.doRequest(context.Background(), "POST", "/trade", req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit trade: %w", err)
	}
	return resp.Result().(*TradeResponse), nil
}

// GetPortfolio fetches a user's valued portfolio.
func (c *Client) GetPortfolio(userID uint) (*Portfolio, error) {
	req := c.client.R().SetResult(&Portfolio{})

	url := fmt.Sprintf("/users/%d/portfolio", userID)
	resp, err := c.doRequest(context.Background(), "GET", url, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return resp.Result().(*Portfolio), nil
}

// GetPriceHistory fetches the timestamp-ordered price history for a symbol.
func (c *Client) GetPriceHistory(symbol string) ([]HistoryPoint, error) {
	var history []HistoryPoint
	req := c.client.R().SetResult(&history)

	url := fmt.Sprintf("/stocks/%s/history", symbol)
	if _, err := c.doRequest(context.Background(), "GET", url, req); err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return history, nil
}

// CreateUser registers a new user with the given starting balance.
func (c *Client) CreateUser(username string, balance float64) (*User, error) {
	body := map[string]any{"username": username, "balance": balance}
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&User{})

	resp, err := c.doRequest(context.Background(), "POST", "/users", req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return resp.Result().(*User), nil
}

// ListUsers fetches all users.
func (c *Client) ListUsers() ([]User, error) {
	var users []User
	req := c.client.R().SetResult(&users)

	if _, err := c.doRequest(context.Background(), "GET", "/users", req); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
