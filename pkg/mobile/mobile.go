package mobile

import (
	"context"
	"encoding/json"
	"errors"

	"capitalfriends/pkg/capfriends"
)

// Core wraps the ledger engine for gomobile bindings. Structured values
// cross the binding as JSON strings.
type Core struct {
	core *capfriends.Core
}

// Open initializes the core with a database path.
func Open(dbPath string) (*Core, error) {
	core, err := capfriends.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Core{core: core}, nil
}

// Close releases resources.
func (c *Core) Close() error {
	if c == nil || c.core == nil {
		return nil
	}
	return c.core.Close()
}

// ErrorCode returns the engine error code carried by err, or "" for errors
// raised outside the engine.
func ErrorCode(err error) string {
	var coreErr *capfriends.Error
	if errors.As(err, &coreErr) {
		return string(coreErr.Code)
	}
	return ""
}

// CreatePortfolioJSON creates a portfolio from a JSON object and returns it.
func (c *Core) CreatePortfolioJSON(payloadJSON string) (string, error) {
	var p capfriends.Portfolio
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return "", err
	}
	created, err := c.core.CreatePortfolio(context.Background(), p)
	if err != nil {
		return "", err
	}
	return marshalJSON(created)
}

// ListPortfoliosJSON returns every portfolio.
func (c *Core) ListPortfoliosJSON() (string, error) {
	data, err := c.core.ListPortfolios(context.Background())
	if err != nil {
		return "", err
	}
	return marshalJSON(data)
}

// GetHoldingsJSON returns the active holdings of a portfolio.
func (c *Core) GetHoldingsJSON(portfolioID string) (string, error) {
	data, err := c.core.GetHoldings(context.Background(), portfolioID)
	if err != nil {
		return "", err
	}
	if data == nil {
		data = []capfriends.Holding{}
	}
	return marshalJSON(data)
}

// GetTransactionsJSON lists a portfolio's ledger rows, optionally for one fund.
func (c *Core) GetTransactionsJSON(portfolioID, fundCode string) (string, error) {
	data, err := c.core.ListTransactions(context.Background(), portfolioID, fundCode)
	if err != nil {
		return "", err
	}
	return marshalJSON(data)
}

// RecordTransactionJSON records a BUY, SELL or SWITCH intent and returns the
// written IDs.
func (c *Core) RecordTransactionJSON(payloadJSON string) (string, error) {
	var payload intentPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return "", err
	}
	result, err := c.core.RecordTransaction(context.Background(), capfriends.TransactionIntent{
		PortfolioID:         payload.PortfolioID,
		Kind:                payload.Kind,
		Subtype:             payload.Subtype,
		FundCode:            payload.FundCode,
		Date:                payload.Date,
		Units:               payload.Units,
		Price:               payload.Price,
		Notes:               payload.Notes,
		TargetAllocationPct: payload.TargetAllocationPct,
		ToFundCode:          payload.ToFundCode,
		ToPrice:             payload.ToPrice,
	})
	if err != nil {
		return "", err
	}
	return marshalJSON(result)
}

// AmendTransactionJSON applies a JSON patch to one ledger row.
func (c *Core) AmendTransactionJSON(id, patchJSON string) (string, error) {
	var payload patchPayload
	if err := json.Unmarshal([]byte(patchJSON), &payload); err != nil {
		return "", err
	}
	row, err := c.core.AmendTransaction(context.Background(), id, capfriends.TransactionPatch{
		Date:  payload.Date,
		Units: payload.Units,
		Price: payload.Price,
		Notes: payload.Notes,
	})
	if err != nil {
		return "", err
	}
	return marshalJSON(row)
}

// RetractTransaction removes a ledger row, or a whole switch pair.
func (c *Core) RetractTransaction(id string) error {
	return c.core.RetractTransaction(context.Background(), id)
}

// SetTargetAllocation sets the target percentage of a held fund.
func (c *Core) SetTargetAllocation(portfolioID, fundCode string, pct float64) error {
	return c.core.SetTargetAllocation(context.Background(), portfolioID, fundCode, capfriends.NewAmount(pct))
}

// GetRebalancePlanJSON computes a plan. pricesJSON maps fund codes to NAVs;
// an empty string uses the stored prices.
func (c *Core) GetRebalancePlanJSON(portfolioID, pricesJSON string) (string, error) {
	var prices capfriends.PriceSnapshot
	if pricesJSON != "" {
		if err := json.Unmarshal([]byte(pricesJSON), &prices); err != nil {
			return "", err
		}
	}
	plan, err := c.core.GetRebalancePlan(context.Background(), portfolioID, prices)
	if err != nil {
		return "", err
	}
	return marshalJSON(plan)
}

// GetBuySignalsJSON evaluates held funds of all portfolios against their
// recorded all-time highs.
func (c *Core) GetBuySignalsJSON() (string, error) {
	signals, err := c.core.GetBuySignals(context.Background(), nil, nil, nil)
	if err != nil {
		return "", err
	}
	return marshalJSON(signals)
}

// RecordPrice stores a NAV. An empty date means today.
func (c *Core) RecordPrice(fundCode, date string, price float64) error {
	return c.core.RecordPrice(context.Background(), capfriends.PricePoint{
		FundCode: fundCode,
		Date:     date,
		Price:    capfriends.NewAmount(price),
	})
}

func marshalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type intentPayload struct {
	PortfolioID         string             `json:"portfolio_id"`
	Kind                string             `json:"kind"`
	Subtype             string             `json:"subtype"`
	FundCode            string             `json:"fund_code"`
	Date                string             `json:"date"`
	Units               capfriends.Amount  `json:"units"`
	Price               capfriends.Amount  `json:"price"`
	Notes               string             `json:"notes"`
	TargetAllocationPct *capfriends.Amount `json:"target_allocation_pct"`
	ToFundCode          string             `json:"to_fund_code"`
	ToPrice             capfriends.Amount  `json:"to_price"`
}

type patchPayload struct {
	Date  *string            `json:"date"`
	Units *capfriends.Amount `json:"units"`
	Price *capfriends.Amount `json:"price"`
	Notes *string            `json:"notes"`
}
