package capfriends

import (
	"context"
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// RecordTransaction validates an intent and appends it to the ledger. BUY and
// SELL write one row; SWITCH writes a SELL and a BUY sharing a GroupID, both
// or neither.
//
// A target allocation on the intent is committed with the rows when the
// ledger store also holds the targets. With separate stores, a target write
// that fails after the rows landed returns the result together with the
// error.
func (c *Core) RecordTransaction(ctx context.Context, in TransactionIntent) (*RecordResult, error) {
	in = normalizeIntent(in)
	if in.PortfolioID == "" {
		return nil, NewError(ErrCodeInvalidInput, "portfolio_id required")
	}
	if err := c.normalizeDate(&in.Date); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(in.PortfolioID)
	defer unlock()

	if _, err := c.requirePortfolio(ctx, in.PortfolioID); err != nil {
		return nil, err
	}
	holdings, err := c.loadHoldings(ctx, in.PortfolioID)
	if err != nil {
		return nil, err
	}
	held, isHeld := findHolding(holdings, in.FundCode)
	if in.Subtype == "" {
		in.Subtype = defaultSubtype(in.Kind, isHeld)
	}
	if err := validateIntent(in, guardSnapshot{holdings: holdings}); err != nil {
		c.logger.Warn("transaction rejected",
			"portfolio_id", in.PortfolioID,
			"fund_code", in.FundCode,
			"kind", in.Kind,
			"err", err,
		)
		return nil, err
	}

	rows := buildRows(in, held, nowRFC3339(c.now))
	targetFund := in.FundCode
	if in.Kind == IntentSwitch {
		targetFund = in.ToFundCode
	}
	combined, canCombine := c.targetedAppender()
	targetWritten := false
	var appendErr error
	if in.TargetAllocationPct != nil && canCombine {
		appendErr = combined.AppendTransactionsWithTarget(ctx, rows, targetFund, *in.TargetAllocationPct)
		targetWritten = appendErr == nil
	} else {
		appendErr = c.ledger.AppendTransactions(ctx, rows)
	}
	if appendErr != nil {
		c.logger.Error("ledger append failed", "portfolio_id", in.PortfolioID, "err", appendErr)
		return nil, ledgerWriteError("append transaction", appendErr)
	}
	c.cache.invalidate(in.PortfolioID)

	result := &RecordResult{TransactionID: rows[0].ID, GroupID: rows[0].GroupID}
	if len(rows) > 1 {
		result.PairTransactionID = rows[1].ID
		c.logger.Info("switch recorded",
			"portfolio_id", in.PortfolioID,
			"from", in.FundCode,
			"to", in.ToFundCode,
			"units", in.Units.String(),
			"group_id", result.GroupID,
		)
	} else {
		c.logger.Info("transaction recorded",
			"portfolio_id", in.PortfolioID,
			"fund_code", in.FundCode,
			"side", rows[0].Side,
			"subtype", rows[0].Subtype,
			"units", in.Units.String(),
			"transaction_id", result.TransactionID,
		)
	}
	for _, r := range rows {
		c.logOperation(ctx, OperationLog{
			Operation:     "TRANSACTION_" + r.Side,
			PortfolioID:   stringPtr(r.PortfolioID),
			FundCode:      stringPtr(r.FundCode),
			TransactionID: stringPtr(r.ID),
			Details:       stringPtr(r.Subtype + " " + r.Units.String() + " @ " + r.PricePerUnit.String()),
		})
	}

	if in.TargetAllocationPct != nil && !targetWritten {
		if err := c.portfolios.SetTargetAllocation(ctx, in.PortfolioID, targetFund, *in.TargetAllocationPct); err != nil {
			return result, err
		}
	}
	if err := c.settle(ctx, in.PortfolioID); err != nil {
		return result, err
	}
	return result, nil
}

// AmendTransaction rewrites the editable fields of one ledger row. The legs
// of a SWITCH accept only notes; changing their date, units or price means
// retracting the switch and recording it again.
func (c *Core) AmendTransaction(ctx context.Context, id string, patch TransactionPatch) (*Transaction, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if patch.Date != nil {
		date := strings.TrimSpace(*patch.Date)
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, NewErrorf(ErrCodeInvalidInput, "invalid date %q, expected YYYY-MM-DD", date)
		}
		patch.Date = &date
	}

	row, unlock, err := c.lockTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if row.GroupID != "" && (patch.Date != nil || patch.Units != nil || patch.Price != nil) {
		return nil, NewError(ErrCodeInvalidInput, "switch legs can only amend notes; retract the switch and record it again").
			WithDetail("group_id", row.GroupID)
	}

	rows, err := c.ledger.ListTransactions(ctx, row.PortfolioID, row.FundCode)
	if err != nil {
		return nil, err
	}
	amended := applyPatch(*row, patch, nowRFC3339(c.now))
	if err := validateLedger(row.FundCode, replaceRow(rows, amended)); err != nil {
		return nil, err
	}
	if err := c.ledger.UpdateTransaction(ctx, amended); err != nil {
		return nil, ledgerWriteError("update transaction", err)
	}
	c.cache.invalidate(row.PortfolioID)
	c.logger.Info("transaction amended", "transaction_id", id, "portfolio_id", row.PortfolioID, "fund_code", row.FundCode)
	c.logOperation(ctx, OperationLog{
		Operation:     "TRANSACTION_AMENDED",
		PortfolioID:   stringPtr(row.PortfolioID),
		FundCode:      stringPtr(row.FundCode),
		TransactionID: stringPtr(id),
	})
	if err := c.settle(ctx, row.PortfolioID); err != nil {
		return &amended, err
	}
	return &amended, nil
}

// RetractTransaction removes a ledger row. Retracting either leg of a SWITCH
// removes both legs.
func (c *Core) RetractTransaction(ctx context.Context, id string) error {
	row, unlock, err := c.lockTransaction(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	all, err := c.ledger.ListTransactions(ctx, row.PortfolioID, "")
	if err != nil {
		return err
	}
	ids := []string{row.ID}
	if row.GroupID != "" {
		ids = ids[:0]
		for _, r := range all {
			if r.GroupID == row.GroupID {
				ids = append(ids, r.ID)
			}
		}
	}

	order, byFund := groupByFund(all)
	for _, fund := range order {
		if err := validateLedger(fund, withoutRows(byFund[fund], ids)); err != nil {
			return err
		}
	}

	if err := c.ledger.DeleteTransactions(ctx, ids); err != nil {
		return ledgerWriteError("delete transaction", err)
	}
	c.cache.invalidate(row.PortfolioID)
	c.logger.Info("transaction retracted", "transaction_id", id, "portfolio_id", row.PortfolioID, "rows", len(ids))
	for _, rid := range ids {
		c.logOperation(ctx, OperationLog{
			Operation:     "TRANSACTION_RETRACTED",
			PortfolioID:   stringPtr(row.PortfolioID),
			TransactionID: stringPtr(rid),
		})
	}
	return c.settle(ctx, row.PortfolioID)
}

// GetTransaction returns one ledger row.
func (c *Core) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewError(ErrCodeInvalidInput, "transaction id required")
	}
	row, err := c.ledger.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewErrorf(ErrCodeTransactionNotFound, "transaction %s not found", id)
	}
	return row, nil
}

// ListTransactions returns a portfolio's ledger in insertion order,
// optionally restricted to one fund.
func (c *Core) ListTransactions(ctx context.Context, portfolioID, fundCode string) ([]Transaction, error) {
	portfolioID = normalizePortfolioID(portfolioID)
	if _, err := c.requirePortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	rows, err := c.ledger.ListTransactions(ctx, portfolioID, normalizeFundCode(fundCode))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Transaction{}
	}
	return rows, nil
}

// targetedAppender returns the ledger store as a TargetedAppender when the
// same store also holds the target allocations.
func (c *Core) targetedAppender() (TargetedAppender, bool) {
	appender, ok := c.ledger.(TargetedAppender)
	if !ok {
		return nil, false
	}
	if store, ok := c.portfolios.(TargetedAppender); !ok || store != appender {
		return nil, false
	}
	return appender, true
}

// lockTransaction loads a row, takes its portfolio lock and reloads it so
// the caller sees the row as of lock acquisition.
func (c *Core) lockTransaction(ctx context.Context, id string) (*Transaction, func(), error) {
	row, err := c.GetTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlock := c.locks.lock(row.PortfolioID)
	row, err = c.GetTransaction(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return row, unlock, nil
}

// settle recomputes a portfolio's holdings after a write, caches them, and
// clears the targets of funds that are no longer held so an exited fund
// cannot bring a stale target back when it is bought again.
func (c *Core) settle(ctx context.Context, portfolioID string) error {
	rows, err := c.ledger.ListTransactions(ctx, portfolioID, "")
	if err != nil {
		return err
	}
	targets, err := c.portfolios.TargetAllocations(ctx, portfolioID)
	if err != nil {
		return err
	}
	holdings := activeHoldings(portfolioID, rows, targets)
	for fund, target := range targets {
		if target.IsZero() {
			continue
		}
		if _, ok := findHolding(holdings, fund); ok {
			continue
		}
		if err := c.portfolios.SetTargetAllocation(ctx, portfolioID, fund, Amount{}); err != nil {
			return err
		}
		c.logger.Debug("target cleared for exited fund", "portfolio_id", portfolioID, "fund_code", fund)
	}
	c.labelHoldings(ctx, holdings)
	c.cache.set(portfolioID, c.cache.generation(portfolioID), holdings)
	return nil
}

func (c *Core) normalizeDate(date *string) error {
	*date = strings.TrimSpace(*date)
	if *date == "" {
		*date = todayISO(c.now)
		return nil
	}
	if _, err := time.Parse(dateLayout, *date); err != nil {
		return NewErrorf(ErrCodeInvalidInput, "invalid date %q, expected YYYY-MM-DD", *date)
	}
	return nil
}

func normalizeIntent(in TransactionIntent) TransactionIntent {
	in.PortfolioID = normalizePortfolioID(in.PortfolioID)
	in.Kind = normalizeKind(in.Kind)
	in.Subtype = normalizeKind(in.Subtype)
	in.FundCode = normalizeFundCode(in.FundCode)
	in.ToFundCode = normalizeFundCode(in.ToFundCode)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

// defaultSubtype picks INITIAL for a first purchase, LUMPSUM for a top-up
// and WITHDRAWAL for a sale.
func defaultSubtype(kind string, held bool) string {
	switch kind {
	case IntentBuy:
		if held {
			return SubtypeLumpsum
		}
		return SubtypeInitial
	case IntentSell:
		return SubtypeWithdrawal
	case IntentSwitch:
		return SubtypeSwitch
	}
	return ""
}

// ledgerWriteError keeps coded store errors and classifies the rest as
// ledger write failures.
func ledgerWriteError(message string, err error) error {
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	return WrapError(ErrCodeLedgerWriteFailed, message, err)
}
