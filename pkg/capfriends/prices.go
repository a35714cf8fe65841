package capfriends

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PricePoint is one recorded NAV.
type PricePoint struct {
	FundCode  string `json:"fund_code"`
	Date      string `json:"date"`
	Price     Amount `json:"price"`
	Source    string `json:"source"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// RecordPrice inserts or replaces the NAV of a fund for a date.
func (s *SQLiteStore) RecordPrice(ctx context.Context, p PricePoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fund_prices (fund_code, price_date, price, source, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(fund_code, price_date) DO UPDATE SET
			price = excluded.price,
			source = excluded.source,
			updated_at = CURRENT_TIMESTAMP
	`, p.FundCode, p.Date, p.Price, p.Source)
	if err != nil {
		return WrapError(ErrCodeDatabase, "record price", err)
	}
	return nil
}

// CurrentPrice returns the latest NAV dated on or before asOf.
func (s *SQLiteStore) CurrentPrice(ctx context.Context, fundCode string, asOf time.Time) (Amount, error) {
	var price Amount
	err := s.db.QueryRowContext(ctx, `
		SELECT price FROM fund_prices
		WHERE fund_code = ? AND price_date <= ?
		ORDER BY price_date DESC LIMIT 1
	`, fundCode, asOf.Format("2006-01-02")).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return Amount{}, NewErrorf(ErrCodePriceUnavailable, "no price for %s", fundCode)
	}
	if err != nil {
		return Amount{}, WrapError(ErrCodePriceUnavailable, "query price", err)
	}
	return price, nil
}

// HistoricalMax returns the highest NAV dated on or before asOf.
func (s *SQLiteStore) HistoricalMax(ctx context.Context, fundCode string, asOf time.Time) (Amount, error) {
	var price Amount
	// Prices are stored as TEXT; order numerically but read the exact text.
	err := s.db.QueryRowContext(ctx, `
		SELECT price FROM fund_prices
		WHERE fund_code = ? AND price_date <= ?
		ORDER BY CAST(price AS REAL) DESC LIMIT 1
	`, fundCode, asOf.Format("2006-01-02")).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return Amount{}, NewErrorf(ErrCodePriceUnavailable, "no price history for %s", fundCode)
	}
	if err != nil {
		return Amount{}, WrapError(ErrCodePriceUnavailable, "query price history", err)
	}
	return price, nil
}

// PriceHistory returns a fund's NAVs oldest first.
func (s *SQLiteStore) PriceHistory(ctx context.Context, fundCode string, limit int) ([]PricePoint, error) {
	if limit <= 0 {
		limit = 365
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT fund_code, price_date, price, source, updated_at FROM (
			SELECT * FROM fund_prices WHERE fund_code = ? ORDER BY price_date DESC LIMIT ?
		) ORDER BY price_date
	`, fundCode, limit)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query price history", err)
	}
	defer rows.Close()
	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		var updatedAt sql.NullString
		if err := rows.Scan(&p.FundCode, &p.Date, &p.Price, &p.Source, &updatedAt); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan price", err)
		}
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// priceRecorder is implemented by feeds that accept manual NAV entries.
type priceRecorder interface {
	RecordPrice(ctx context.Context, p PricePoint) error
	PriceHistory(ctx context.Context, fundCode string, limit int) ([]PricePoint, error)
}

// RecordPrice stores a NAV through the configured price feed.
func (c *Core) RecordPrice(ctx context.Context, p PricePoint) error {
	p.FundCode = normalizeFundCode(p.FundCode)
	if p.FundCode == "" {
		return NewError(ErrCodeInvalidInput, "fund code required")
	}
	if err := validatePositive("price", p.Price); err != nil {
		return err
	}
	if p.Date == "" {
		p.Date = todayISO(c.now)
	}
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return NewErrorf(ErrCodeInvalidInput, "invalid date %q", p.Date)
	}
	if p.Source == "" {
		p.Source = "manual"
	}
	rec, ok := c.prices.(priceRecorder)
	if !ok {
		return NewError(ErrCodeInternal, "price feed is read-only")
	}
	if err := rec.RecordPrice(ctx, p); err != nil {
		return err
	}
	c.logOperation(ctx, OperationLog{Operation: "PRICE_RECORDED", FundCode: stringPtr(p.FundCode), Details: stringPtr(p.Date + " " + p.Price.String())})
	return nil
}

// PriceHistory returns recorded NAVs for a fund.
func (c *Core) PriceHistory(ctx context.Context, fundCode string, limit int) ([]PricePoint, error) {
	rec, ok := c.prices.(priceRecorder)
	if !ok {
		return nil, NewError(ErrCodeInternal, "price feed has no history")
	}
	return rec.PriceHistory(ctx, normalizeFundCode(fundCode), limit)
}

// PriceSnapshotAt reads current prices and historical maxima for funds from
// the configured feed. Funds the feed cannot price are left out of the
// snapshot rather than zeroed, so the engine reports them unavailable.
func (c *Core) PriceSnapshotAt(ctx context.Context, fundCodes []string, asOf time.Time) (PriceSnapshot, ATHTable) {
	prices := PriceSnapshot{}
	aths := ATHTable{}
	if c.prices == nil {
		return prices, aths
	}
	for _, code := range fundCodes {
		code = normalizeFundCode(code)
		price, err := c.prices.CurrentPrice(ctx, code, asOf)
		switch {
		case err != nil:
			c.logger.Debug("price unavailable", "fund_code", code, "err", err)
		case !price.IsPositive():
			c.logger.Debug("price unavailable", "fund_code", code, "price", price.String())
		default:
			prices[code] = price
		}
		if high, err := c.prices.HistoricalMax(ctx, code, asOf); err == nil && high.IsPositive() {
			aths[code] = high
		}
	}
	return prices, aths
}
