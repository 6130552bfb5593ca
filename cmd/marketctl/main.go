package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"market-simulator-go/internal/client"
	"go.uber.org/zap"
)

const usage = `usage: marketctl [-url BASE_URL] COMMAND [ARGS]

commands:
  stocks                          list instruments
  step [DAYS]                     advance the simulation (default 1)
  history SYMBOL                  print price history for an instrument
  users                           list users
  create-user NAME [BALANCE]      register a user (default balance 10000)
  portfolio USER_ID               print a user's portfolio
  trade USER_ID SYMBOL SIDE QTY   submit a buy or sell
`

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the market simulator API")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	c := client.NewClient(*baseURL, zap.NewNop())

	var result any
	var err error

	switch cmd := args[0]; cmd {
	case "stocks":
		result, err = c.ListStocks()
	case "step":
		days := 1
		if len(args) > 1 {
			if days, err = strconv.Atoi(args[1]); err != nil {
				fatal(fmt.Errorf("DAYS must be an integer: %w", err))
			}
		}
		result, err = c.SimulateStep(days)
	case "history":
		if len(args) < 2 {
			fatal(fmt.Errorf("history requires SYMBOL"))
		}
		result, err = c.GetPriceHistory(args[1])
	case "users":
		result, err = c.ListUsers()
	case "create-user":
		if len(args) < 2 {
			fatal(fmt.Errorf("create-user requires NAME"))
		}
		balance := 10000.0
		if len(args) > 2 {
			if balance, err = strconv.ParseFloat(args[2], 64); err != nil {
				fatal(fmt.Errorf("BALANCE must be a number: %w", err))
			}
		}
		result, err = c.CreateUser(args[1], balance)
	case "portfolio":
		if len(args) < 2 {
			fatal(fmt.Errorf("portfolio requires USER_ID"))
		}
		var userID uint64
		if userID, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			fatal(fmt.Errorf("USER_ID must be an integer: %w", err))
		}
		result, err = c.GetPortfolio(uint(userID))
	case "trade":
		if len(args) < 5 {
			fatal(fmt.Errorf("trade requires USER_ID SYMBOL SIDE QTY"))
		}
		var userID uint64
		if userID, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			fatal(fmt.Errorf("USER_ID must be an integer: %w", err))
		}
		var qty int
		if qty, err = strconv.Atoi(args[4]); err != nil {
			fatal(fmt.Errorf("QTY must be an integer: %w", err))
		}
		result, err = c.SubmitTrade(client.TradeRequest{
			UserID:   uint(userID),
			Symbol:   args[2],
			Side:     args[3],
			Quantity: qty,
		})
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "marketctl: %v\n", err)
	os.Exit(1)
}
