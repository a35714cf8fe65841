package capfriends

import (
	"github.com/shopspring/decimal"
)

// guardSnapshot is the aggregate state an intent is checked against.
type guardSnapshot struct {
	holdings []Holding
}

// validateIntent checks a normalized intent. It has no side effects.
func validateIntent(in TransactionIntent, snap guardSnapshot) error {
	if in.PortfolioID == "" {
		return NewError(ErrCodeInvalidInput, "portfolio_id required")
	}
	if in.FundCode == "" {
		return NewError(ErrCodeInvalidInput, "fund_code required")
	}
	if err := validatePositive("units", in.Units); err != nil {
		return err
	}
	if err := validatePositive("price", in.Price); err != nil {
		return err
	}

	switch in.Kind {
	case IntentBuy:
		if !containsString(buySubtypes, in.Subtype) {
			return NewErrorf(ErrCodeInvalidInput, "invalid subtype %q for BUY", in.Subtype)
		}
		if in.TargetAllocationPct != nil {
			return validateTarget(in.FundCode, *in.TargetAllocationPct, snap.holdings)
		}
		return nil
	case IntentSell:
		if !containsString(sellSubtypes, in.Subtype) {
			return NewErrorf(ErrCodeInvalidInput, "invalid subtype %q for SELL", in.Subtype)
		}
		if in.TargetAllocationPct != nil {
			return NewError(ErrCodeInvalidInput, "target allocation cannot be set on a SELL")
		}
		return validateSource(in.FundCode, in.Units, snap.holdings)
	case IntentSwitch:
		if in.ToFundCode == "" {
			return NewError(ErrCodeInvalidInput, "to_fund_code required for SWITCH")
		}
		if in.ToFundCode == in.FundCode {
			return NewErrorf(ErrCodeNoSelfSwitch, "cannot switch %s into itself", in.FundCode)
		}
		if err := validateSource(in.FundCode, in.Units, snap.holdings); err != nil {
			return err
		}
		if err := validatePositive("to_price", in.ToPrice); err != nil {
			return err
		}
		if in.TargetAllocationPct != nil {
			return validateTarget(in.ToFundCode, *in.TargetAllocationPct, snapAfterSwitch(in, snap.holdings))
		}
		return nil
	default:
		return NewErrorf(ErrCodeInvalidInput, "invalid kind: %s", in.Kind)
	}
}

func validatePositive(field string, v Amount) error {
	if !v.IsPositive() {
		return NewErrorf(ErrCodeInvalidAmount, "%s must be positive", field).
			WithDetail("field", field).
			WithDetail("value", v)
	}
	return nil
}

// validateSource checks the fund being sold is held with enough units.
func validateSource(fundCode string, units Amount, holdings []Holding) error {
	h, ok := findHolding(holdings, fundCode)
	if !ok {
		return NewErrorf(ErrCodeFundNotHeld, "fund %s is not held in this portfolio", fundCode).
			WithDetail("fund_code", fundCode)
	}
	if exceedsUnits(units.Decimal, h.Units.Decimal) {
		return NewErrorf(ErrCodeInsufficientUnits, "trying to sell %s units of %s but only %s held",
			units.StringFixed(4), fundCode, h.Units.StringFixed(4)).
			WithDetail("requested_units", units).
			WithDetail("held_units", h.Units)
	}
	return nil
}

// validateTarget enforces that the sum of target allocations over active
// holdings stays at or below 100 once fundCode's target becomes requested.
func validateTarget(fundCode string, requested Amount, holdings []Holding) error {
	if requested.IsNegative() || requested.GreaterThan(hundred) {
		return NewErrorf(ErrCodeInvalidAmount, "target allocation must be between 0 and 100, got %s", requested.String()).
			WithDetail("field", "target_allocation_pct").
			WithDetail("value", requested)
	}
	current := totalTarget(holdings, fundCode)
	if current.Add(requested.Decimal).GreaterThan(hundred) {
		return NewErrorf(ErrCodeAllocationExceeded,
			"target allocation would reach %s%% (current %s%% + requested %s%%)",
			current.Add(requested.Decimal).String(), current.String(), requested.String()).
			WithDetail("current_total", amountOf(current)).
			WithDetail("requested", requested).
			WithDetail("available", amountOf(maxZero(hundred.Sub(current))))
	}
	return nil
}

// snapAfterSwitch drops the source holding from the allocation base when the
// switch exits it completely.
func snapAfterSwitch(in TransactionIntent, holdings []Holding) []Holding {
	out := make([]Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.FundCode == in.FundCode && isZeroUnits(h.Units.Sub(in.Units.Decimal)) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// validateLedger replays a candidate ledger for one fund and rejects it if the
// position goes negative at any point. Amend and retract use it.
func validateLedger(fundCode string, rows []Transaction) error {
	running := decimal.Zero
	for _, r := range rows {
		switch r.Side {
		case SideBuy:
			running = running.Add(r.Units.Decimal)
		case SideSell:
			running = running.Sub(r.Units.Decimal)
		}
		if running.IsNegative() && !isZeroUnits(running) {
			return NewErrorf(ErrCodeInsufficientUnits,
				"change would leave %s with %s units after transaction %s", fundCode, running.StringFixed(4), r.ID).
				WithDetail("transaction_id", r.ID).
				WithDetail("units", amountOf(running))
		}
	}
	return nil
}

// validatePatch checks the amended values themselves.
func validatePatch(p TransactionPatch) error {
	if p.Units != nil {
		if err := validatePositive("units", *p.Units); err != nil {
			return err
		}
	}
	if p.Price != nil {
		if err := validatePositive("price", *p.Price); err != nil {
			return err
		}
	}
	if p.Date != nil && *p.Date == "" {
		return NewError(ErrCodeInvalidInput, "date cannot be empty")
	}
	return nil
}
