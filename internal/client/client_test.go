package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := &Client{
		client:  resty.New().SetBaseURL(server.URL),
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}
	return c, server
}

func TestListStocks(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/stocks", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"symbol":"TECH","name":"TechNova","price":100.0,"volatility":0.02,"drift":0.0008}]`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		stocks, err := c.ListStocks()
		assert.NoError(t, err)
		assert.Len(t, stocks, 1)
		assert.Equal(t, "TECH", stocks[0].Symbol)
		assert.Equal(t, 100.0, stocks[0].Price)
	})

	t.Run("ServerError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "instrument not found"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.ListStocks()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list stocks")
		assert.Contains(t, err.Error(), "instrument not found")
	})
}

func TestSimulateStep(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simulate/step", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "5", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","days":5}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	resp, err := c.SimulateStep(5)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.Days)
}

func TestSubmitTrade(t *testing.T) {
	t.Run("Buy", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/trade", r.URL.Path)

			var req TradeRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, uint(1), req.UserID)
			assert.Equal(t, "TECH", req.Symbol)
			assert.Equal(t, "buy", req.Side)
			assert.Equal(t, 10, req.Quantity)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"bought","symbol":"TECH","quantity":10,"cost":1000.0}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		resp, err := c.SubmitTrade(TradeRequest{UserID: 1, Symbol: "TECH", Side: "buy", Quantity: 10})
		assert.NoError(t, err)
		assert.Equal(t, "bought", resp.Status)
		assert.NotNil(t, resp.Cost)
		assert.Equal(t, 1000.0, *resp.Cost)
		assert.Nil(t, resp.Received)
	})

	t.Run("Rejected", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "insufficient balance"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.SubmitTrade(TradeRequest{UserID: 1, Symbol: "TECH", Side: "buy", Quantity: 9999})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient balance")
	})
}

func TestGetPortfolio(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/7/portfolio", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":7,"username":"player1","balance":9000.0,"positions":[{"symbol":"TECH","name":"TechNova","quantity":10,"price":100.0,"value":1000.0}]}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	portfolio, err := c.GetPortfolio(7)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), portfolio.UserID)
	assert.Equal(t, 9000.0, portfolio.Balance)
	assert.Len(t, portfolio.Positions, 1)
	assert.Equal(t, 1000.0, portfolio.Positions[0].Value)
}

func TestGetPriceHistory(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stocks/TECH/history", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"timestamp":"2026-01-02T15:04:05Z","price":101.32},{"timestamp":"2026-01-03T15:04:05Z","price":99.87}]`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	history, err := c.GetPriceHistory("TECH")
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 101.32, history[0].Price)
	assert.True(t, history[0].Timestamp.Before(history[1].Timestamp))
}

func TestCreateUser(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "trader2", body["username"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":2,"username":"trader2","balance":5000.0}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	user, err := c.CreateUser("trader2", 5000.0)
	assert.NoError(t, err)
	assert.Equal(t, uint(2), user.ID)
	assert.Equal(t, 5000.0, user.Balance)
}

func TestListUsers(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"username":"player1","balance":10000.0}]`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	users, err := c.ListUsers()
	assert.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "player1", users[0].Username)
}
